package geocode

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/olablt/gio-pipmap/geo"
)

// Tolerance is how close, in degrees on each axis, a point must be to the
// cached one to reuse its name.
const Tolerance = 0.001

// Entry is the on-disk form of the location cache. The file holds a single
// entry, the last resolved point.
type Entry struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
	AreaName  string  `json:"area_name"`
}

// Matches reports whether ll is within Tolerance of the entry.
func (e Entry) Matches(ll geo.LatLng) bool {
	return math.Abs(e.Longitude-ll.Lng) < Tolerance && math.Abs(e.Latitude-ll.Lat) < Tolerance
}

// LocationCache stores the last resolved area name in a JSON file.
type LocationCache struct {
	path string
	mu   sync.Mutex
}

func NewLocationCache(path string) *LocationCache {
	return &LocationCache{path: path}
}

// Lookup returns the cached name for ll. Missing, unreadable or corrupt
// files are a miss.
func (c *LocationCache) Lookup(ll geo.LatLng) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := os.ReadFile(c.path)
	if err != nil {
		return "", false
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil || e.AreaName == "" {
		return "", false
	}
	if !e.Matches(ll) {
		return "", false
	}
	return e.AreaName, true
}

// Store replaces the cached entry.
func (c *LocationCache) Store(ll geo.LatLng, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := json.Marshal(Entry{Longitude: ll.Lng, Latitude: ll.Lat, AreaName: name})
	if err != nil {
		return fmt.Errorf("encode location cache: %w", err)
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}
	if err := os.WriteFile(c.path, raw, 0o644); err != nil {
		return fmt.Errorf("write location cache: %w", err)
	}
	return nil
}
