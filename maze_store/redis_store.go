package maze_store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"mazelab/grid_world"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "mazelab"

// RedisStore keeps each definition as a JSON string under <prefix>:maze:<name>, and
// the set of names under <prefix>:mazes.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore wraps a client. An empty prefix selects "mazelab".
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
	}
}

// DialRedis connects to addr and pings it.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", addr, err)
	}
	return client, nil
}

func (rs *RedisStore) mazeKey(name string) string {
	return rs.prefix + ":maze:" + name
}

func (rs *RedisStore) indexKey() string {
	return rs.prefix + ":mazes"
}

func (rs *RedisStore) Load(ctx context.Context, name string) (def grid_world.Definition, err error) {
	if err = checkName(name); err != nil {
		return
	}
	raw, err := rs.client.Get(ctx, rs.mazeKey(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return def, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return
	}
	if def, err = grid_world.ReadDefinition(bytes.NewReader(raw)); err != nil {
		return def, fmt.Errorf("%w: %s: %v", grid_world.ErrConfiguration, rs.mazeKey(name), err)
	}
	return
}

// Save writes the definition and indexes its name in one transaction.
func (rs *RedisStore) Save(ctx context.Context, def grid_world.Definition) error {
	if err := checkDefinition(def); err != nil {
		return err
	}
	buf := &bytes.Buffer{}
	if err := grid_world.WriteDefinition(buf, def); err != nil {
		return err
	}

	_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, rs.mazeKey(def.Name), buf.Bytes(), 0)
		pipe.SAdd(ctx, rs.indexKey(), def.Name)
		return nil
	})
	return err
}

// List returns the indexed names, sorted.
func (rs *RedisStore) List(ctx context.Context) ([]string, error) {
	names, err := rs.client.SMembers(ctx, rs.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a maze and its index entry.
func (rs *RedisStore) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	var removed *redis.IntCmd
	_, err := rs.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, rs.mazeKey(name))
		pipe.SRem(ctx, rs.indexKey(), name)
		return nil
	})
	if err != nil {
		return err
	}
	if removed.Val() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return nil
}
