package mapctl

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/olablt/gio-pipmap/render"
)

// Pan moves the viewport by (dx, dy) and clamps it inside the surface.
// Before the first render the move is kept but has no visible effect.
func (c *Controller) Pan(dx, dy int) {
	c.viewMu.Lock()
	c.viewport = clampRect(c.viewport.Add(image.Pt(dx, dy)), c.size)
	changed := c.touchLocked()
	c.viewMu.Unlock()

	if changed {
		c.notify()
	}
}

// ZoomIn increases the zoom by one step and reports whether it changed.
func (c *Controller) ZoomIn() bool {
	return c.setZoom(func(z, step float64) float64 { return z + step })
}

// ZoomOut decreases the zoom by one step and reports whether it changed.
func (c *Controller) ZoomOut() bool {
	return c.setZoom(func(z, step float64) float64 { return z - step })
}

func (c *Controller) setZoom(next func(z, step float64) float64) bool {
	c.viewMu.Lock()
	z := clampFloat(next(c.zoom, c.zoomStep), c.minZoom, c.maxZoom)
	if z == c.zoom {
		c.viewMu.Unlock()
		return false
	}
	c.zoom = z
	changed := c.touchLocked()
	c.viewMu.Unlock()

	c.logger.Debug().Float64("zoom", z).Msg("zoom changed")
	if changed {
		c.notify()
	}
	return true
}

// Viewport returns the visible window in surface coordinates at zoom 1.
func (c *Controller) Viewport() image.Rectangle {
	c.viewMu.Lock()
	defer c.viewMu.Unlock()
	return c.viewport
}

// Zoom returns the current zoom level.
func (c *Controller) Zoom() float64 {
	c.viewMu.Lock()
	defer c.viewMu.Unlock()
	return c.zoom
}

// recenter puts the viewport in the middle of the surface.
func (c *Controller) recenter() {
	c.viewMu.Lock()
	w, h := c.viewport.Dx(), c.viewport.Dy()
	x := max(0, (c.size-w)/2)
	y := max(0, (c.size-h)/2)
	c.viewport = image.Rect(x, y, x+w, y+h)
	c.viewDirty = true
	c.viewMu.Unlock()
}

// touchLocked marks the frame stale once a map is shown and reports
// whether it did. The caller holds viewMu.
func (c *Controller) touchLocked() bool {
	if !c.ready.Load() {
		return false
	}
	c.viewDirty = true
	return true
}

// Frame returns the viewport-sized image to display and a generation that
// changes whenever the image does. The image must not be modified.
func (c *Controller) Frame() (*image.RGBA, uint64) {
	c.viewMu.Lock()
	defer c.viewMu.Unlock()

	surfaceChanged := c.dirty.Swap(false)
	if surfaceChanged {
		c.scaled.Clear()
	}
	if c.frame != nil && !surfaceChanged && !c.viewDirty {
		return c.frame, c.frameGen
	}
	c.viewDirty = false

	surface := c.surface.Load()
	if surface == nil {
		c.frame = render.Placeholder(c.viewport.Size(), c.statusText())
	} else {
		c.frame = c.compose(surface)
	}
	c.frameGen++
	return c.frame, c.frameGen
}

func (c *Controller) statusText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stage == Complete && c.err != nil {
		return UnavailableText
	}
	return c.loadingText
}

// compose copies the viewport out of the surface scaled by the zoom. The
// source rectangle is clamped inside the scaled surface.
func (c *Controller) compose(surface *image.RGBA) *image.RGBA {
	vp := c.viewport
	out := image.NewRGBA(image.Rectangle{Max: vp.Size()})
	draw.Draw(out, out.Bounds(), image.NewUniform(render.Background), image.Point{}, draw.Src)

	src := surface
	at := vp.Min
	if c.zoom != 1 {
		src = c.scaledSurface(surface, c.zoom)
		side := src.Bounds().Dx()
		at = image.Pt(
			clampInt(int(float64(vp.Min.X)*c.zoom), 0, side-vp.Dx()),
			clampInt(int(float64(vp.Min.Y)*c.zoom), 0, side-vp.Dy()),
		)
	}
	draw.Draw(out, out.Bounds(), src, at, draw.Src)
	return out
}

func (c *Controller) scaledSurface(surface *image.RGBA, zoom float64) *image.RGBA {
	key := fmt.Sprintf("%.3f", zoom)
	if v, ok := c.scaled.Get(key); ok {
		return v.(*image.RGBA)
	}
	side := int(float64(c.size) * zoom)
	scaled := image.NewRGBA(image.Rect(0, 0, side, side))
	c.scaler.Scale(scaled, scaled.Bounds(), surface, surface.Bounds(), draw.Src, nil)
	c.scaled.Set(key, scaled)
	return scaled
}

// clampRect keeps r's size and moves it inside [0, size] on both axes.
func clampRect(r image.Rectangle, size int) image.Rectangle {
	x := clampInt(r.Min.X, 0, size-r.Dx())
	y := clampInt(r.Min.Y, 0, size-r.Dy())
	return image.Rect(x, y, x+r.Dx(), y+r.Dy())
}

// clampInt prefers lo when the range is empty.
func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func clampFloat(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
