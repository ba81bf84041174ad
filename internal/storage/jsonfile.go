// Package storage persists flat record collections as single JSON array
// documents on local disk. Every mutation rewrites the whole document under an
// exclusive lock, so concurrent callers serialize per collection instead of
// racing on the file.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Collection is a file-backed list of records of type T.
type Collection[T any] struct {
	path string
	mu   sync.RWMutex
}

// NewCollection opens (or prepares to create) the document at path. The parent
// directory is created eagerly; the file itself appears on first write.
func NewCollection[T any](path string) (*Collection[T], error) {
	if path == "" {
		return nil, errors.New("collection path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("prepare collection dir: %w", err)
	}
	return &Collection[T]{path: path}, nil
}

// Path returns the backing file path.
func (c *Collection[T]) Path() string {
	return c.path
}

// All returns a snapshot of every record. A missing file reads as empty.
func (c *Collection[T]) All() ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.load()
}

// Mutate applies fn to the current records and rewrites the document with the
// returned slice. The whole read-mutate-rewrite sequence holds the writer
// lock. If fn returns an error nothing is written.
func (c *Collection[T]) Mutate(fn func(items []T) ([]T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load()
	if err != nil {
		return err
	}
	next, err := fn(items)
	if err != nil {
		return err
	}
	return c.rewrite(next)
}

func (c *Collection[T]) load() ([]T, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", c.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", c.path, err)
	}
	return items, nil
}

// rewrite replaces the document atomically via a temp file and rename so a
// crash mid-write never leaves a truncated store behind.
func (c *Collection[T]) rewrite(items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.path, err)
	}

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", c.path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", c.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp for %s: %w", c.path, err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", c.path, err)
	}
	return nil
}
