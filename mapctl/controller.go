// Package mapctl drives progressive map loading: a small area is fetched
// and rendered first, then the radius widens in stages on one background
// goroutine while the UI pans and zooms over the latest surface.
package mapctl

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"

	"github.com/olablt/gio-pipmap/cache"
	"github.com/olablt/gio-pipmap/geo"
	"github.com/olablt/gio-pipmap/metrics"
	"github.com/olablt/gio-pipmap/osmdata"
	"github.com/olablt/gio-pipmap/worker"
)

const (
	// InitialFraction of the target radius is fetched first.
	InitialFraction = 0.3
	// GrowthFactor widens the radius between expansion stages.
	GrowthFactor = 1.5
	// CompleteFraction of the target radius ends the expansion.
	CompleteFraction = 0.95

	DefaultExpandInterval = 500 * time.Millisecond
	DefaultMinZoom        = 0.5
	DefaultMaxZoom        = 3.0
	DefaultZoom           = 1.0
	DefaultZoomStep       = 0.15

	LoadingText     = "Loading map..."
	UnavailableText = "Map unavailable"
)

// DataSource provides normalized map data for a bounding box.
type DataSource interface {
	Fetch(ctx context.Context, b geo.Bounds) (*osmdata.Data, error)
	LoadCached(ctx context.Context, b geo.Bounds) (*osmdata.Data, error)
}

// SourceFunc returns a fresh data source. Every stage gets its own, so no
// data is carried over between stages.
type SourceFunc func() DataSource

// Renderer draws normalized data onto a new surface.
type Renderer interface {
	Render(d *osmdata.Data, t geo.Transform) *image.RGBA
}

// Controller owns one map surface and its load sessions.
type Controller struct {
	newSource      SourceFunc
	renderer       Renderer
	size           int
	logger         zerolog.Logger
	expandInterval time.Duration
	sessionTimeout time.Duration
	onUpdate       func()

	pool   *worker.Pool
	ctx    context.Context
	cancel context.CancelFunc

	// session state, written by the background goroutine
	mu      sync.Mutex
	stage   Stage
	step    int
	center  geo.LatLng
	target  float64
	current float64
	err     error

	surface atomic.Pointer[image.RGBA]
	dirty   atomic.Bool
	ready   atomic.Bool

	// view state, written by the UI goroutine
	viewMu      sync.Mutex
	viewport    image.Rectangle
	zoom        float64
	minZoom     float64
	maxZoom     float64
	zoomStep    float64
	loadingText string
	scaler      draw.Scaler
	viewDirty   bool
	scaled      cache.Cache
	frame       *image.RGBA
	frameGen    uint64
}

type Option func(*Controller)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithExpandInterval sets the pause before each expansion stage.
func WithExpandInterval(d time.Duration) Option {
	return func(c *Controller) { c.expandInterval = d }
}

// WithSessionTimeout bounds a whole load session. Zero means no limit.
func WithSessionTimeout(d time.Duration) Option {
	return func(c *Controller) { c.sessionTimeout = d }
}

// WithViewport sets the visible window. It defaults to the whole surface.
func WithViewport(r image.Rectangle) Option {
	return func(c *Controller) { c.viewport = r }
}

// WithZoom sets the zoom range, the starting level and the step.
func WithZoom(minZoom, maxZoom, initial, step float64) Option {
	return func(c *Controller) {
		c.minZoom, c.maxZoom, c.zoom, c.zoomStep = minZoom, maxZoom, initial, step
	}
}

// WithSmoothScale selects bilinear instead of nearest-neighbor scaling for
// zoom levels other than 1.
func WithSmoothScale(smooth bool) Option {
	return func(c *Controller) {
		if smooth {
			c.scaler = draw.ApproxBiLinear
		} else {
			c.scaler = draw.NearestNeighbor
		}
	}
}

// WithLoadingText sets the status line shown before the first render.
func WithLoadingText(text string) Option {
	return func(c *Controller) { c.loadingText = text }
}

// WithOnUpdate registers fn to be called whenever a new frame is available.
// fn runs on the background goroutine and must not block.
func WithOnUpdate(fn func()) Option {
	return func(c *Controller) { c.onUpdate = fn }
}

// New creates a controller for a square surface of the given side.
func New(newSource SourceFunc, renderer Renderer, size int, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		newSource:      newSource,
		renderer:       renderer,
		size:           size,
		logger:         zerolog.Nop(),
		expandInterval: DefaultExpandInterval,
		ctx:            ctx,
		cancel:         cancel,
		viewport:       image.Rect(0, 0, size, size),
		zoom:           DefaultZoom,
		minZoom:        DefaultMinZoom,
		maxZoom:        DefaultMaxZoom,
		zoomStep:       DefaultZoomStep,
		loadingText:    LoadingText,
		scaler:         draw.NearestNeighbor,
		scaled:         cache.New(cache.KindImage),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.pool = worker.NewPool(1,
		worker.WithLogger(c.logger),
		worker.WithTaskTimeout(c.sessionTimeout),
	)
	c.viewport = clampRect(c.viewport, c.size)
	c.zoom = clampFloat(c.zoom, c.minZoom, c.maxZoom)
	return c
}

// Size returns the surface side in pixels.
func (c *Controller) Size() int {
	return c.size
}

// Fetch starts a progressive load around center. It returns false and
// changes nothing while another session is active.
func (c *Controller) Fetch(center geo.LatLng, radius float64) bool {
	initial := radius * InitialFraction
	return c.start(InitialLoad, center, radius, initial, func(ctx context.Context) error {
		return c.runFetch(ctx, center, radius, initial)
	})
}

// Load renders the cached map once. It returns false and changes nothing
// while another session is active.
func (c *Controller) Load(center geo.LatLng, radius float64) bool {
	return c.start(CacheLoad, center, radius, radius, func(ctx context.Context) error {
		return c.runLoad(ctx, center, radius)
	})
}

func (c *Controller) start(stage Stage, center geo.LatLng, target, current float64, work func(ctx context.Context) error) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stage.active() {
		c.logger.Debug().Stringer("stage", c.stage).Msg("load refused, session active")
		return false
	}
	if err := geo.Around(center, current).Validate(); err != nil {
		c.logger.Warn().Err(err).Float64("radius", target).Msg("load refused")
		return false
	}
	task := worker.Task{Ctx: c.ctx, Name: stage.String(), Work: work, Done: c.finish}
	if !c.pool.TrySubmit(task) {
		return false
	}

	c.stage = stage
	c.step = 0
	c.center = center
	c.target = target
	c.current = current
	c.err = nil
	c.logger.Info().
		Stringer("stage", stage).
		Float64("lat", center.Lat).
		Float64("lng", center.Lng).
		Float64("target_radius", target).
		Float64("radius", current).
		Msg("map load started")
	return true
}

func (c *Controller) runFetch(ctx context.Context, center geo.LatLng, target, radius float64) error {
	source := c.newSource()
	if err := c.renderStage(ctx, "initial", center, radius, func(b geo.Bounds) (*osmdata.Data, error) {
		return source.Fetch(ctx, b)
	}); err != nil {
		return err
	}
	c.recenter()
	c.ready.Store(true)
	c.setStage(Expanding, 1, radius)

	for step := 1; radius < target*CompleteFraction; step++ {
		c.setStage(Expanding, step, radius)
		if err := sleep(ctx, c.expandInterval); err != nil {
			return err
		}

		next := min(radius*GrowthFactor, target)
		c.logger.Info().Int("step", step).Float64("radius", next).Msg("expanding map")

		source := c.newSource()
		if err := c.renderStage(ctx, "expanding", center, next, func(b geo.Bounds) (*osmdata.Data, error) {
			return source.Fetch(ctx, b)
		}); err != nil {
			return err
		}
		radius = next
		c.setStage(Expanding, step, radius)
	}
	return nil
}

func (c *Controller) runLoad(ctx context.Context, center geo.LatLng, radius float64) error {
	source := c.newSource()
	if err := c.renderStage(ctx, "cache", center, radius, func(b geo.Bounds) (*osmdata.Data, error) {
		return source.LoadCached(ctx, b)
	}); err != nil {
		return err
	}
	c.recenter()
	c.ready.Store(true)
	return nil
}

// renderStage fetches the box of the given radius around center and
// publishes a full redraw of it.
func (c *Controller) renderStage(ctx context.Context, stage string, center geo.LatLng, radius float64, get func(geo.Bounds) (*osmdata.Data, error)) error {
	bounds := geo.Around(center, radius)
	tr, err := geo.SurfaceTransform(bounds, c.size)
	if err != nil {
		metrics.MapStagesTotal.WithLabelValues(stage, "error").Inc()
		return err
	}

	data, err := get(bounds)
	if err != nil {
		metrics.MapStagesTotal.WithLabelValues(stage, "error").Inc()
		return fmt.Errorf("%s stage: %w", stage, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	img := c.renderer.Render(data, tr)
	metrics.MapRenderDuration.Observe(time.Since(start).Seconds())
	metrics.MapStagesTotal.WithLabelValues(stage, "success").Inc()

	c.logger.Debug().
		Str("stage", stage).
		Float64("radius", radius).
		Int("ways", len(data.Ways)).
		Int("pois", len(data.POIs)).
		Dur("render", time.Since(start)).
		Msg("map stage rendered")

	c.publish(img)
	return nil
}

// publish replaces the surface wholesale. The previous surface is never
// written again, so a reader holding it stays consistent.
func (c *Controller) publish(img *image.RGBA) {
	c.surface.Store(img)
	c.dirty.Store(true)
	c.notify()
}

func (c *Controller) setStage(stage Stage, step int, radius float64) {
	c.mu.Lock()
	c.stage = stage
	c.step = step
	c.current = radius
	c.mu.Unlock()
}

// finish runs once the session's worker slot is free, so a caller that
// sees Complete can start the next session right away.
func (c *Controller) finish(err error) {
	c.mu.Lock()
	c.stage = Complete
	c.step = 0
	c.err = err
	current := c.current
	c.mu.Unlock()

	if err != nil {
		c.logger.Error().Err(err).Float64("radius", current).Msg("map load failed")
	} else {
		c.logger.Info().Float64("radius", current).Msg("map load complete")
	}
	// the placeholder text may have changed
	c.dirty.Store(true)
	c.notify()
}

func (c *Controller) notify() {
	if c.onUpdate != nil {
		c.onUpdate()
	}
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	s := State{
		Stage:         c.stage,
		Step:          c.step,
		Center:        c.center,
		TargetRadius:  c.target,
		CurrentRadius: c.current,
		Err:           c.err,
	}
	c.mu.Unlock()

	s.DataReady = c.ready.Load()
	c.viewMu.Lock()
	s.Viewport = c.viewport
	s.Zoom = c.zoom
	c.viewMu.Unlock()
	return s
}

// Ready reports whether a map has been rendered.
func (c *Controller) Ready() bool {
	return c.ready.Load()
}

// Surface returns the latest full rendered surface, or nil before the
// first render. Callers must not modify it.
func (c *Controller) Surface() *image.RGBA {
	return c.surface.Load()
}

// Wait blocks until the active session, if any, has ended.
func (c *Controller) Wait() {
	c.pool.Wait()
}

// Close cancels the active session and waits for it to stop.
func (c *Controller) Close() {
	c.cancel()
	c.pool.Shutdown()
	c.pool.Wait()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
