package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore keeps artifacts as files in one directory.
type LocalStore struct {
	dir string
}

// NewLocalStore uses dir, creating it on first Save. An empty dir means the
// working directory.
func NewLocalStore(dir string) *LocalStore {
	if dir == "" {
		dir = "."
	}
	return &LocalStore{dir: dir}
}

// Dir returns the directory artifacts are written to.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save writes to a temp file and renames it so readers never see a partial file.
func (s *LocalStore) Save(ctx context.Context, name string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("LocalStore.Save: mkdir %q: %w", s.dir, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("LocalStore.Save: create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("LocalStore.Save: write %q: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("LocalStore.Save: close %q: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("LocalStore.Save: rename %q: %w", name, err)
	}
	return nil
}

// Load reads the named file.
func (s *LocalStore) Load(ctx context.Context, name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("LocalStore.Load: %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("LocalStore.Load: %s: %w", name, err)
	}
	return data, nil
}

var _ Store = (*LocalStore)(nil)
