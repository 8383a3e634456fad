package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Cache persists the feed between runs.
type Cache interface {
	Load() ([]Notification, error)
	Save(items []Notification) error
}

// FileCache stores the feed as a JSON file, replaced atomically on every save.
type FileCache struct {
	Path string
}

func NewFileCache(path string) *FileCache {
	return &FileCache{Path: path}
}

func (c *FileCache) Load() ([]Notification, error) {
	data, err := os.ReadFile(c.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read feed cache: %w", err)
	}
	var items []Notification
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode feed cache: %w", err)
	}
	return items, nil
}

func (c *FileCache) Save(items []Notification) error {
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.Path), 0o755); err != nil {
		return err
	}
	tmp := c.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.Path)
}

// MemoryCache keeps the feed in memory only.
type MemoryCache struct {
	mu    sync.Mutex
	items []Notification
}

func (c *MemoryCache) Load() ([]Notification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Notification(nil), c.items...), nil
}

func (c *MemoryCache) Save(items []Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append([]Notification(nil), items...)
	return nil
}
