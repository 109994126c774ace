package config

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, -118.5723894, cfg.Map.Longitude)
	assert.Equal(t, 34.3917171, cfg.Map.Latitude)
	assert.Equal(t, 0.003, cfg.Map.LocalRadius)
	assert.Equal(t, 0.1, cfg.Map.WorldRadius)
	assert.Equal(t, 480, cfg.Map.SurfaceSize)
	assert.Equal(t, image.Rect(0, 0, 472, 240), cfg.Map.Display.Rect())
	assert.Equal(t, 0.5, cfg.Map.ZoomMin)
	assert.Equal(t, 3.0, cfg.Map.ZoomMax)
	assert.Equal(t, 1.0, cfg.Map.ZoomDefault)
	assert.Equal(t, 0.15, cfg.Map.ZoomStep)
	assert.Equal(t, 500*time.Millisecond, cfg.Map.ExpandInterval)
	assert.Equal(t, 10*time.Minute, cfg.Map.SessionTimeout)
	assert.False(t, cfg.Map.LoadCached)

	assert.Equal(t, "map.cache", cfg.OSM.CacheFile)
	assert.Equal(t, 5, cfg.OSM.MaxAttempts)
	assert.Equal(t, int64(64<<20), cfg.OSM.MaxPayloadBytes)
	assert.Equal(t, "location.cache", cfg.Geocode.CacheFile)
	assert.Equal(t, "Local Area", cfg.Geocode.DefaultName)
	assert.Equal(t, 5*time.Second, cfg.Geocode.Timeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_LegacyEnvironment(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MAP_LONGITUDE", "-0.1275")
	t.Setenv("MAP_LATITUDE", "51.507222")
	t.Setenv("LOAD_CACHED_MAP", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, -0.1275, cfg.Map.Longitude)
	assert.Equal(t, 51.507222, cfg.Map.Latitude)
	assert.True(t, cfg.Map.LoadCached)
}

func TestLoad_PrefixedEnvironmentWins(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("MAP_LONGITUDE", "-0.1275")
	t.Setenv("PIPMAP_MAP_LONGITUDE", "2.3522")
	t.Setenv("PIPMAP_OSM_MAX_ATTEMPTS", "9")
	t.Setenv("PIPMAP_MAP_EXPAND_INTERVAL", "2s")
	t.Setenv("PIPMAP_LOGGING_FORMAT", "json")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 2.3522, cfg.Map.Longitude)
	assert.Equal(t, 9, cfg.OSM.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Map.ExpandInterval)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	yaml := `
map:
  latitude: 40.7128
  longitude: -74.006
  surface_size: 960
  display:
    width: 800
    height: 400
  expand_interval: 250ms
osm:
  cache_file: /tmp/nyc.cache
geocode:
  enabled: false
metrics:
  addr: ":9090"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "pipmap.yaml"), []byte(yaml), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 40.7128, cfg.Map.Latitude)
	assert.Equal(t, 960, cfg.Map.SurfaceSize)
	assert.Equal(t, image.Rect(0, 0, 800, 400), cfg.Map.Display.Rect())
	assert.Equal(t, 250*time.Millisecond, cfg.Map.ExpandInterval)
	assert.Equal(t, "/tmp/nyc.cache", cfg.OSM.CacheFile)
	assert.False(t, cfg.Geocode.Enabled)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	// untouched keys keep their defaults
	assert.Equal(t, 0.15, cfg.Map.ZoomStep)
}

func TestLoad_ExplicitFile(t *testing.T) {
	chdir(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("map:\n  world_radius: 0.12\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.12, cfg.Map.WorldRadius)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate_CollectsErrors(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Map.Latitude = 123
	cfg.Map.LocalRadius = 0
	cfg.Map.Display.Width = 1000
	cfg.Map.ZoomDefault = 5
	cfg.Map.SessionTimeout = -time.Second
	cfg.OSM.MaxAttempts = 0
	cfg.OSM.MaxPayloadBytes = 0
	cfg.Logging.Format = "xml"

	err = cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"map.latitude",
		"map.local_radius",
		"map.display",
		"map.zoom_default",
		"map.session_timeout",
		"osm.max_attempts",
		"osm.max_payload_bytes",
		"logging.format",
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestMapConfig_Focus(t *testing.T) {
	m := MapConfig{Latitude: 1.5, Longitude: -2.5}
	assert.Equal(t, 1.5, m.Focus().Lat)
	assert.Equal(t, -2.5, m.Focus().Lng)
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
