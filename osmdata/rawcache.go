package osmdata

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RawCache holds the last successfully fetched payload in a single file.
// Every successful fetch overwrites it. One RawCache should be shared by
// all sources of a process so that writes are serialized.
type RawCache struct {
	path string
	mu   sync.Mutex
}

// NewRawCache returns a cache backed by path.
func NewRawCache(path string) *RawCache {
	return &RawCache{path: path}
}

// Path returns the backing file.
func (c *RawCache) Path() string {
	return c.path
}

// Write replaces the cached payload. The file is swapped in with a rename
// so a concurrent reader never sees a partial payload.
func (c *RawCache) Write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}

// Read returns the cached payload. A missing or empty file is ErrCacheMiss.
func (c *RawCache) Read() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheMiss, err)
	}
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrCacheMiss, c.path)
	}
	return payload, nil
}
