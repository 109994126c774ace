package cache

import (
	"sync"

	"gioui.org/op/paint"
)

// ImageOpCache keeps uploaded paint.ImageOps so a frame that did not change
// is not re-uploaded to the GPU.
type ImageOpCache struct {
	mu    sync.RWMutex
	items map[string]paint.ImageOp
}

func NewImageOpCache() *ImageOpCache {
	return &ImageOpCache{items: make(map[string]paint.ImageOp)}
}

func (c *ImageOpCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	op, ok := c.items[key]
	return op, ok
}

func (c *ImageOpCache) Set(key string, value any) {
	op, ok := value.(paint.ImageOp)
	if !ok {
		return
	}
	c.mu.Lock()
	c.items[key] = op
	c.mu.Unlock()
}

func (c *ImageOpCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *ImageOpCache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]paint.ImageOp)
	c.mu.Unlock()
}
