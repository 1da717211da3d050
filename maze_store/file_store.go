package maze_store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"mazelab/grid_world"
)

// MapFile is the definition file inside each maze folder.
const MapFile = "map.json"

// FileStore keeps each maze in <dir>/<name>/map.json.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir, which need not exist until the first Save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (fst *FileStore) path(name string) string {
	return filepath.Join(fst.dir, name, MapFile)
}

func (fst *FileStore) Load(ctx context.Context, name string) (def grid_world.Definition, err error) {
	if err = checkName(name); err != nil {
		return
	}
	file, err := os.Open(fst.path(name))
	if errors.Is(err, fs.ErrNotExist) {
		return def, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return
	}
	defer file.Close()

	if def, err = grid_world.ReadDefinition(file); err != nil {
		return def, fmt.Errorf("%w: %s: %v", grid_world.ErrConfiguration, fst.path(name), err)
	}
	return
}

// Save writes the definition atomically by renaming a temp file over the map file.
func (fst *FileStore) Save(ctx context.Context, def grid_world.Definition) (err error) {
	if err = checkDefinition(def); err != nil {
		return
	}
	folder := filepath.Join(fst.dir, def.Name)
	if err = os.MkdirAll(folder, 0o755); err != nil {
		return
	}

	tmp, err := os.CreateTemp(folder, MapFile+".*")
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = grid_world.WriteDefinition(tmp, def); err != nil {
		_ = tmp.Close()
		return
	}
	if err = tmp.Close(); err != nil {
		return
	}
	return os.Rename(tmp.Name(), fst.path(def.Name))
}

// Delete removes the maze's folder.
func (fst *FileStore) Delete(ctx context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if _, err := os.Stat(fst.path(name)); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	} else if err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(fst.dir, name))
}

// List returns the names of the folders holding a map file, in directory order.
func (fst *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(fst.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	names := []string{}
	for _, entry := range entries {
		if !entry.IsDir() || checkName(entry.Name()) != nil {
			continue
		}
		if _, err := os.Stat(fst.path(entry.Name())); err == nil {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}
