// Package maze_store persists maze definitions by name.
package maze_store

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"mazelab/grid_world"
)

// ErrNotFound is returned when no maze of the requested name is stored.
var ErrNotFound = errors.New("maze not found")

// Store loads and saves maze definitions. Saved definitions are validated first, so a
// store never holds a maze that FromDefinition would reject.
type Store interface {
	Load(ctx context.Context, name string) (grid_world.Definition, error)
	Save(ctx context.Context, def grid_world.Definition) error
	List(ctx context.Context) ([]string, error)
	// Delete removes a maze, or returns ErrNotFound.
	Delete(ctx context.Context, name string) error
}

var validName = regexp.MustCompile(`^[A-Za-z0-9_\-]+$`)

// checkName rejects names which cannot be used as a directory or key component.
func checkName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("%w: invalid maze name %q", grid_world.ErrConfiguration, name)
	}
	return nil
}

// checkDefinition validates both the name and the grid invariants of a definition.
func checkDefinition(def grid_world.Definition) error {
	if err := checkName(def.Name); err != nil {
		return err
	}
	_, err := grid_world.FromDefinition(def)
	return err
}

// LoadGrid loads a definition and builds its grid.
func LoadGrid(ctx context.Context, store Store, name string, opts ...grid_world.Option) (*grid_world.Grid, error) {
	def, err := store.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	return grid_world.FromDefinition(def, opts...)
}
