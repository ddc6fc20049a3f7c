package catalog

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ClipStore serves clip audio by a slash separated path relative to the
// clips root.
type ClipStore interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Stat(ctx context.Context, path string) error
}

// FileStore reads clips from a directory on disk.
type FileStore struct {
	Root string
}

var _ ClipStore = (*FileStore)(nil)

func (s *FileStore) resolve(path string) (string, error) {
	local := filepath.FromSlash(path)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("clip path %q escapes the clips directory", path)
	}
	return filepath.Join(s.Root, local), nil
}

func (s *FileStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

func (s *FileStore) Stat(_ context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(full)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("clip path %q is a directory", path)
	}
	return nil
}
