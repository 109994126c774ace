package cache

import (
	"image"
	"sync"
)

// ImageCache stores decoded or derived images, e.g. zoomed copies of the
// current map surface.
type ImageCache struct {
	mu    sync.RWMutex
	items map[string]image.Image
}

func NewImageCache() *ImageCache {
	return &ImageCache{items: make(map[string]image.Image)}
}

func (c *ImageCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.items[key]
	return img, ok
}

func (c *ImageCache) Set(key string, value any) {
	img, ok := value.(image.Image)
	if !ok {
		return
	}
	c.mu.Lock()
	c.items[key] = img
	c.mu.Unlock()
}

func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *ImageCache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]image.Image)
	c.mu.Unlock()
}
