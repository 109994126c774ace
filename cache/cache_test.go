package cache

import (
	"image"
	"sync"
	"testing"

	"gioui.org/op/paint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Kind(t *testing.T) {
	assert.IsType(t, &ImageCache{}, New(KindImage))
	assert.IsType(t, &ImageOpCache{}, New(KindImageOp))
}

func TestImageCache_SetGetClear(t *testing.T) {
	c := New(KindImage)
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))

	c.Set("1.15", img)
	got, ok := c.Get("1.15")
	require.True(t, ok)
	assert.Same(t, img, got)

	// wrong value types are ignored
	c.Set("bogus", "not an image")
	_, ok = c.Get("bogus")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok = c.Get("1.15")
	assert.False(t, ok)
}

func TestImageOpCache_SetGet(t *testing.T) {
	c := New(KindImageOp)
	op := paint.NewImageOp(image.NewRGBA(image.Rect(0, 0, 2, 2)))

	c.Set("gen-1", op)
	c.Set("gen-2", image.NewRGBA(image.Rect(0, 0, 2, 2)))

	got, ok := c.Get("gen-1")
	require.True(t, ok)
	assert.IsType(t, paint.ImageOp{}, got)
	_, ok = c.Get("gen-2")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestImageCache_Concurrent(t *testing.T) {
	c := New(KindImage)
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("k", img)
				c.Get("k")
				if j%10 == i {
					c.Clear()
				}
			}
		}(i)
	}
	wg.Wait()
}
