package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrNotFound is returned when a requested path does not exist in storage.
var ErrNotFound = errors.New("not found")

// Storage provides an abstraction over key-value style file storage.
// Paths are slash separated and relative to the storage root.
type Storage interface {
	Read(ctx context.Context, path string) ([]byte, error)
	Write(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]string, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// ReadAll reads every object directly under prefix whose name ends with ext.
// The result is keyed by the object's base name without the extension.
func ReadAll(ctx context.Context, s Storage, prefix, ext string) (map[string][]byte, error) {
	paths, err := s.List(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(paths))
	for _, p := range paths {
		if !strings.HasSuffix(p, ext) {
			continue
		}
		data, err := s.Read(ctx, p)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// removed between List and Read
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		out[strings.TrimSuffix(path.Base(p), ext)] = data
	}
	return out, nil
}
