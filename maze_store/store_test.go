package maze_store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"mazelab/grid_world"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"
)

func debugDefinition(name string) grid_world.Definition {
	return grid_world.MustFromArt(name, grid_world.DebugMaze).Definition()
}

// storeContract exercises behavior every Store must share.
func storeContract(store Store) {
	ctx := context.Background()
	name := "Lab_debug"

	Convey("A saved definition loads back unchanged", func() {
		def := debugDefinition(name)
		So(store.Save(ctx, def), ShouldBeNil)
		loaded, err := store.Load(ctx, name)
		So(err, ShouldBeNil)
		So(loaded, ShouldResemble, def)

		g, err := LoadGrid(ctx, store, name)
		So(err, ShouldBeNil)
		So(g.Kind(3, 3), ShouldEqual, grid_world.Goal)

		names, err := store.List(ctx)
		So(err, ShouldBeNil)
		So(names, ShouldContain, name)
	})

	Convey("Saving again overwrites", func() {
		def := debugDefinition(name)
		So(store.Save(ctx, def), ShouldBeNil)
		def.Cells[1].IsBlocked = true
		So(store.Save(ctx, def), ShouldBeNil)
		loaded, err := store.Load(ctx, name)
		So(err, ShouldBeNil)
		So(loaded.Cells[1].IsBlocked, ShouldBeTrue)
	})

	Convey("Deleted mazes are gone from the listing", func() {
		So(store.Save(ctx, debugDefinition("Lab_gone")), ShouldBeNil)
		So(store.Delete(ctx, "Lab_gone"), ShouldBeNil)
		_, err := store.Load(ctx, "Lab_gone")
		So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		names, err := store.List(ctx)
		So(err, ShouldBeNil)
		So(names, ShouldNotContain, "Lab_gone")

		So(errors.Is(store.Delete(ctx, "Lab_gone"), ErrNotFound), ShouldBeTrue)
		So(errors.Is(store.Delete(ctx, "bad.name"), grid_world.ErrConfiguration), ShouldBeTrue)
	})

	Convey("Unknown mazes are not found", func() {
		_, err := store.Load(ctx, "missing")
		So(errors.Is(err, ErrNotFound), ShouldBeTrue)
	})

	Convey("Invalid definitions and names are rejected before writing", func() {
		def := debugDefinition(name + "_bad")
		def.Goal = def.Start
		So(errors.Is(store.Save(ctx, def), grid_world.ErrInvariantViolation), ShouldBeTrue)
		_, err := store.Load(ctx, name+"_bad")
		So(errors.Is(err, ErrNotFound), ShouldBeTrue)

		def = debugDefinition("../escape")
		So(errors.Is(store.Save(ctx, def), grid_world.ErrConfiguration), ShouldBeTrue)
		_, err = store.Load(ctx, "a/b")
		So(errors.Is(err, grid_world.ErrConfiguration), ShouldBeTrue)
	})
}

func TestFileStore(t *testing.T) {
	Convey("When using a file store", t, func() {
		dir := t.TempDir()
		store := NewFileStore(dir)

		storeContract(store)

		Convey("Mazes live in their own folder", func() {
			So(store.Save(context.Background(), debugDefinition("Lab_4x4")), ShouldBeNil)
			_, err := os.Stat(filepath.Join(dir, "Lab_4x4", MapFile))
			So(err, ShouldBeNil)
		})

		Convey("Folders without a map and stray files are not listed", func() {
			So(os.MkdirAll(filepath.Join(dir, "empty"), 0o755), ShouldBeNil)
			So(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600), ShouldBeNil)
			names, err := store.List(context.Background())
			So(err, ShouldBeNil)
			So(names, ShouldBeEmpty)
		})

		Convey("A missing root lists nothing", func() {
			names, err := NewFileStore(filepath.Join(dir, "nope")).List(context.Background())
			So(err, ShouldBeNil)
			So(names, ShouldBeEmpty)
		})

		Convey("Corrupt map files are a configuration error", func() {
			So(os.MkdirAll(filepath.Join(dir, "broken"), 0o755), ShouldBeNil)
			So(os.WriteFile(filepath.Join(dir, "broken", MapFile), []byte("{"), 0o600), ShouldBeNil)
			_, err := store.Load(context.Background(), "broken")
			So(errors.Is(err, grid_world.ErrConfiguration), ShouldBeTrue)
		})
	})
}

func TestBundledMazes(t *testing.T) {
	Convey("When loading the bundled mazes", t, func() {
		store := NewFileStore(filepath.Join("..", "mazes"))
		names, err := store.List(context.Background())
		So(err, ShouldBeNil)
		So(names, ShouldContain, "Lab_4x4")
		So(names, ShouldContain, "Lab_6x6")

		for _, name := range names {
			g, err := LoadGrid(context.Background(), store, name)
			So(err, ShouldBeNil)
			So(g.Name(), ShouldEqual, name)
		}
	})
}

// Set MAZELAB_TEST_REDIS to a reachable address, e.g. localhost:6379, to run.
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("MAZELAB_TEST_REDIS")
	if addr == "" {
		t.Skip("MAZELAB_TEST_REDIS not set")
	}

	Convey("When using a redis store", t, func() {
		ctx := context.Background()
		client, err := DialRedis(ctx, addr, "", 0)
		So(err, ShouldBeNil)
		defer client.Close()

		// A unique prefix keeps runs from seeing each other's keys.
		prefix := "mazelab-test-" + uuid.NewString()
		store := NewRedisStore(client, prefix)
		defer func() {
			keys, _ := client.Keys(ctx, prefix+":*").Result()
			if len(keys) > 0 {
				client.Del(ctx, keys...)
			}
		}()

		storeContract(store)

	})
}
