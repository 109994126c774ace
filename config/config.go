// Package config loads PipMap settings from defaults, an optional YAML
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/olablt/gio-pipmap/geo"
	"github.com/olablt/gio-pipmap/logging"
)

// Config holds all application configuration.
type Config struct {
	Map     MapConfig      `mapstructure:"map"`
	OSM     OSMConfig      `mapstructure:"osm"`
	Geocode GeocodeConfig  `mapstructure:"geocode"`
	Logging logging.Config `mapstructure:"logging"`
	Metrics MetricsConfig  `mapstructure:"metrics"`
}

type MapConfig struct {
	Longitude      float64       `mapstructure:"longitude"`
	Latitude       float64       `mapstructure:"latitude"`
	LocalRadius    float64       `mapstructure:"local_radius"`
	WorldRadius    float64       `mapstructure:"world_radius"`
	SurfaceSize    int           `mapstructure:"surface_size"`
	Display        DisplayConfig `mapstructure:"display"`
	ZoomMin        float64       `mapstructure:"zoom_min"`
	ZoomMax        float64       `mapstructure:"zoom_max"`
	ZoomDefault    float64       `mapstructure:"zoom_default"`
	ZoomStep       float64       `mapstructure:"zoom_step"`
	SmoothScale    bool          `mapstructure:"smooth_scale"`
	ExpandInterval time.Duration `mapstructure:"expand_interval"`
	SessionTimeout time.Duration `mapstructure:"session_timeout"`
	LoadCached     bool          `mapstructure:"load_cached"`
	IconDir        string        `mapstructure:"icon_dir"`
}

// Focus is the point the maps are centered on.
func (m MapConfig) Focus() geo.LatLng {
	return geo.LatLng{Lat: m.Latitude, Lng: m.Longitude}
}

// DisplayConfig is the visible window inside the map surface.
type DisplayConfig struct {
	X      int `mapstructure:"x"`
	Y      int `mapstructure:"y"`
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

func (d DisplayConfig) Rect() image.Rectangle {
	return image.Rect(d.X, d.Y, d.X+d.Width, d.Y+d.Height)
}

type OSMConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	UserAgent       string        `mapstructure:"user_agent"`
	CacheFile       string        `mapstructure:"cache_file"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialBackoff  time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	MaxPayloadBytes int64         `mapstructure:"max_payload_bytes"`
}

type GeocodeConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BaseURL     string        `mapstructure:"base_url"`
	UserAgent   string        `mapstructure:"user_agent"`
	CacheFile   string        `mapstructure:"cache_file"`
	Timeout     time.Duration `mapstructure:"timeout"`
	DefaultName string        `mapstructure:"default_name"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	RateLimit   float64       `mapstructure:"rate_limit"`
}

type MetricsConfig struct {
	// Addr to serve /metrics on; empty disables the endpoint
	Addr string `mapstructure:"addr"`
}

// NewViper returns a viper instance with defaults and environment
// bindings. Callers may bind command line flags to it before FromViper.
func NewViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("map.longitude", -118.5723894)
	v.SetDefault("map.latitude", 34.3917171)
	v.SetDefault("map.local_radius", 0.003)
	v.SetDefault("map.world_radius", 0.1)
	v.SetDefault("map.surface_size", 480)
	v.SetDefault("map.display.x", 0)
	v.SetDefault("map.display.y", 0)
	v.SetDefault("map.display.width", 472)
	v.SetDefault("map.display.height", 240)
	v.SetDefault("map.zoom_min", 0.5)
	v.SetDefault("map.zoom_max", 3.0)
	v.SetDefault("map.zoom_default", 1.0)
	v.SetDefault("map.zoom_step", 0.15)
	v.SetDefault("map.smooth_scale", false)
	v.SetDefault("map.expand_interval", 500*time.Millisecond)
	v.SetDefault("map.session_timeout", 10*time.Minute)
	v.SetDefault("map.load_cached", false)
	v.SetDefault("map.icon_dir", "")

	v.SetDefault("osm.base_url", "https://api.openstreetmap.org")
	v.SetDefault("osm.user_agent", "PipMap/1.0")
	v.SetDefault("osm.cache_file", "map.cache")
	v.SetDefault("osm.timeout", 30*time.Second)
	v.SetDefault("osm.max_attempts", 5)
	v.SetDefault("osm.initial_backoff", 500*time.Millisecond)
	v.SetDefault("osm.max_backoff", 8*time.Second)
	v.SetDefault("osm.rate_limit", 2.0)
	v.SetDefault("osm.max_payload_bytes", 64<<20)

	v.SetDefault("geocode.enabled", true)
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "PipMap/1.0")
	v.SetDefault("geocode.cache_file", "location.cache")
	v.SetDefault("geocode.timeout", 5*time.Second)
	v.SetDefault("geocode.default_name", "Local Area")
	v.SetDefault("geocode.max_retries", 2)
	v.SetDefault("geocode.retry_delay", time.Second)
	v.SetDefault("geocode.rate_limit", 1.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("metrics.addr", "")

	// Environment variables: PIPMAP_OSM_BASE_URL -> osm.base_url
	v.SetEnvPrefix("PIPMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names kept for existing deployments.
	_ = v.BindEnv("map.longitude", "PIPMAP_MAP_LONGITUDE", "MAP_LONGITUDE")
	_ = v.BindEnv("map.latitude", "PIPMAP_MAP_LATITUDE", "MAP_LATITUDE")
	_ = v.BindEnv("map.load_cached", "PIPMAP_MAP_LOAD_CACHED", "LOAD_CACHED_MAP")

	return v
}

// Load reads configuration from defaults, the config file and the
// environment. An empty configFile looks for pipmap.yaml in . and
// ./configs and is fine when none exists.
func Load(configFile string) (*Config, error) {
	return FromViper(NewViper(), configFile)
}

// FromViper reads the config file into v, then decodes and validates.
func FromViper(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("pipmap")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that configuration values are present and sane.
func (c *Config) Validate() error {
	var errs []string

	m := c.Map
	if m.Latitude < -90 || m.Latitude > 90 {
		errs = append(errs, fmt.Sprintf("map.latitude must be -90..90, got %f", m.Latitude))
	}
	if m.Longitude < -180 || m.Longitude > 180 {
		errs = append(errs, fmt.Sprintf("map.longitude must be -180..180, got %f", m.Longitude))
	}
	if m.LocalRadius <= 0 {
		errs = append(errs, "map.local_radius must be positive")
	}
	if m.WorldRadius <= 0 {
		errs = append(errs, "map.world_radius must be positive")
	}
	if m.SurfaceSize <= 0 {
		errs = append(errs, "map.surface_size must be positive")
	}
	if m.Display.Width <= 0 || m.Display.Height <= 0 {
		errs = append(errs, "map.display width and height must be positive")
	} else if !m.Display.Rect().In(image.Rect(0, 0, m.SurfaceSize, m.SurfaceSize)) {
		errs = append(errs, fmt.Sprintf("map.display %v must fit in the %dpx surface", m.Display.Rect(), m.SurfaceSize))
	}
	if m.ZoomMin <= 0 || m.ZoomMin > m.ZoomMax {
		errs = append(errs, fmt.Sprintf("map.zoom_min must be positive and <= zoom_max, got %g..%g", m.ZoomMin, m.ZoomMax))
	}
	if m.ZoomDefault < m.ZoomMin || m.ZoomDefault > m.ZoomMax {
		errs = append(errs, fmt.Sprintf("map.zoom_default must be within zoom_min..zoom_max, got %g", m.ZoomDefault))
	}
	if m.ZoomStep <= 0 {
		errs = append(errs, "map.zoom_step must be positive")
	}
	if m.ExpandInterval < 0 {
		errs = append(errs, "map.expand_interval must not be negative")
	}
	if m.SessionTimeout < 0 {
		errs = append(errs, "map.session_timeout must not be negative")
	}

	if c.OSM.BaseURL == "" {
		errs = append(errs, "osm.base_url is required")
	}
	if c.OSM.CacheFile == "" {
		errs = append(errs, "osm.cache_file is required")
	}
	if c.OSM.MaxAttempts < 1 {
		errs = append(errs, "osm.max_attempts must be at least 1")
	}
	if c.OSM.InitialBackoff <= 0 || c.OSM.MaxBackoff < c.OSM.InitialBackoff {
		errs = append(errs, "osm backoff must satisfy 0 < initial_backoff <= max_backoff")
	}
	if c.OSM.RateLimit <= 0 {
		errs = append(errs, "osm.rate_limit must be positive")
	}
	if c.OSM.MaxPayloadBytes <= 0 {
		errs = append(errs, "osm.max_payload_bytes must be positive")
	}

	if c.Geocode.Enabled {
		if c.Geocode.BaseURL == "" {
			errs = append(errs, "geocode.base_url is required")
		}
		if c.Geocode.RateLimit <= 0 {
			errs = append(errs, "geocode.rate_limit must be positive")
		}
	}
	if c.Geocode.DefaultName == "" {
		errs = append(errs, "geocode.default_name is required")
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil {
		errs = append(errs, fmt.Sprintf("logging.level %q is not a level", c.Logging.Level))
	}
	if f := c.Logging.Format; f != "json" && f != "console" {
		errs = append(errs, fmt.Sprintf("logging.format must be json or console, got %q", f))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
