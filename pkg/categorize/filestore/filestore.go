// Package filestore persists the category-cache snapshot to a single file,
// for embedded and desktop deployments.
package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type Store struct {
	path string
}

// New creates a store writing to path. The parent directory is created on
// first save.
func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read category cache: %w", err)
	}
	return data, nil
}

func (s *Store) Save(ctx context.Context, data []byte) error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	// Write-then-rename so a crash mid-write leaves the previous snapshot
	// intact instead of a truncated file.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write category cache: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write category cache: %w", err)
	}
	return nil
}
