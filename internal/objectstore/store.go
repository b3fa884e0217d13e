package objectstore

import (
	"context"
	"os"
	"path/filepath"
)

// Store archives build artifacts such as failed build logs.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// NullStore discards uploads.
type NullStore struct{}

func (NullStore) Put(_ context.Context, _ string, _ []byte, _ string) error { return nil }

// LocalStore writes objects below Dir, using the key as a relative path.
type LocalStore struct {
	Dir string
}

func (l LocalStore) Put(_ context.Context, key string, data []byte, _ string) error {
	path := filepath.Join(l.Dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
