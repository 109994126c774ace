package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/olablt/gio-pipmap/config"
	"github.com/olablt/gio-pipmap/geocode"
	"github.com/olablt/gio-pipmap/logging"
	"github.com/olablt/gio-pipmap/mapctl"
	"github.com/olablt/gio-pipmap/metrics"
	"github.com/olablt/gio-pipmap/osmdata"
	"github.com/olablt/gio-pipmap/render"
)

// loadConfig reads the configuration with the global flags applied on top
// and builds the logger.
func loadConfig(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	v := config.NewViper()
	flags := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{
		"logging.level":  "log-level",
		"logging.format": "log-format",
		"metrics.addr":   "metrics-addr",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return nil, zerolog.Nop(), fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	cfg, err := config.FromViper(v, configPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("config error: %w", err)
	}
	return cfg, logging.New(cfg.Logging), nil
}

// newController wires the OSM provider, renderer and controller for one
// map screen.
func newController(cfg *config.Config, logger zerolog.Logger, opts ...mapctl.Option) (*mapctl.Controller, error) {
	var icons map[string]image.Image
	if cfg.Map.IconDir != "" {
		loaded, err := render.LoadIconDir(cfg.Map.IconDir)
		if err != nil {
			return nil, err
		}
		icons = loaded
		logger.Info().Str("dir", cfg.Map.IconDir).Int("icons", len(icons)).Msg("loaded icon overrides")
	}

	rawCache := osmdata.NewRawCache(cfg.OSM.CacheFile)
	httpClient := &http.Client{Timeout: cfg.OSM.Timeout}
	sourceLogger := logger.With().Str("component", "osm").Logger()
	newSource := func() mapctl.DataSource {
		return osmdata.NewProvider(rawCache,
			osmdata.WithHTTPClient(httpClient),
			osmdata.WithBaseURL(cfg.OSM.BaseURL),
			osmdata.WithUserAgent(cfg.OSM.UserAgent),
			osmdata.WithRetry(cfg.OSM.MaxAttempts, cfg.OSM.InitialBackoff, cfg.OSM.MaxBackoff),
			osmdata.WithRateLimit(cfg.OSM.RateLimit),
			osmdata.WithMaxPayload(cfg.OSM.MaxPayloadBytes),
			osmdata.WithLogger(sourceLogger),
		)
	}

	m := cfg.Map
	opts = append([]mapctl.Option{
		mapctl.WithLogger(logger.With().Str("component", "map").Logger()),
		mapctl.WithViewport(m.Display.Rect()),
		mapctl.WithZoom(m.ZoomMin, m.ZoomMax, m.ZoomDefault, m.ZoomStep),
		mapctl.WithSmoothScale(m.SmoothScale),
		mapctl.WithExpandInterval(m.ExpandInterval),
		mapctl.WithSessionTimeout(m.SessionTimeout),
	}, opts...)
	return mapctl.New(newSource, render.NewRenderer(icons), m.SurfaceSize, opts...), nil
}

// startSession loads from cache or fetches progressively, as configured.
func startSession(ctl *mapctl.Controller, cfg *config.Config, radius float64) bool {
	if cfg.Map.LoadCached {
		return ctl.Load(cfg.Map.Focus(), radius)
	}
	return ctl.Fetch(cfg.Map.Focus(), radius)
}

func newResolver(cfg *config.Config, logger zerolog.Logger) *geocode.Resolver {
	g := cfg.Geocode
	logger = logger.With().Str("component", "geocode").Logger()
	var client geocode.Reverser
	if g.Enabled {
		client = geocode.NewClient(g.BaseURL, g.UserAgent,
			geocode.WithRateLimit(g.RateLimit),
			geocode.WithRetry(g.MaxRetries, g.RetryDelay),
			geocode.WithClientLogger(logger),
		)
	}
	return geocode.NewResolver(client, geocode.NewLocationCache(g.CacheFile),
		geocode.WithTimeout(g.Timeout),
		geocode.WithDefaultName(g.DefaultName),
		geocode.WithLogger(logger),
	)
}

// serveMetrics exposes /metrics until ctx is done. An empty addr disables it.
func serveMetrics(ctx context.Context, addr string, logger zerolog.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics shutdown error")
		}
	}()
}
