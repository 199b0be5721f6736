package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileCache keeps all entries in a single JSON document on disk.
//
// Every write rewrites the whole document through a temporary file and a
// rename, so a crash leaves either the old or the new document in place.
type FileCache struct {
	mu   sync.Mutex
	path string
}

var _ Cache = (*FileCache)(nil)

func NewFileCache(path string) (*FileCache, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, cacheErr("open file cache", "", errors.New("empty path"))
	}
	return &FileCache{path: path}, nil
}

// Path returns the location of the backing document.
func (c *FileCache) Path() string { return c.path }

func (c *FileCache) load() (map[string]string, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	entries := map[string]string{}
	if len(data) == 0 {
		return entries, nil
	}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *FileCache) save(entries map[string]string) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}

func (c *FileCache) Get(ctx context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := c.load()
	if err != nil {
		return "", false, cacheErr("get", key, err)
	}
	v, ok := entries[key]
	return v, ok, nil
}

func (c *FileCache) Set(ctx context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := c.load()
	if err != nil {
		return cacheErr("set", key, err)
	}
	entries[key] = value
	return cacheErr("set", key, c.save(entries))
}

func (c *FileCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries, err := c.load()
	if err != nil {
		return cacheErr("delete", key, err)
	}
	if _, ok := entries[key]; !ok {
		return nil
	}
	delete(entries, key)
	return cacheErr("delete", key, c.save(entries))
}

func (c *FileCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cacheErr("clear", "", c.save(map[string]string{}))
}

func (c *FileCache) Close() error { return nil }
