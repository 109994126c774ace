package osmdata

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/osm"

	"github.com/olablt/gio-pipmap/geo"
)

var (
	// ErrFetchFailed is returned when the map API could not be reached after all attempts.
	ErrFetchFailed = errors.New("osmdata: fetch failed")
	// ErrCacheMiss is returned when the raw cache file is missing or unusable.
	ErrCacheMiss = errors.New("osmdata: cache miss")
	// ErrPayloadTooLarge is returned when a response exceeds the payload limit.
	ErrPayloadTooLarge = errors.New("osmdata: payload too large")
)

// ParseError reports a payload that is not an OSM document at all.
// Malformed individual elements never produce one; they are skipped.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("osmdata: parse payload: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Node is a map node with its tags.
type Node struct {
	ID       osm.NodeID
	Location geo.LatLng
	Tags     osm.Tags
}

// Way is a road or path resolved to coordinates.
type Way struct {
	ID     osm.WayID
	Points []geo.LatLng
}

// POI is a named amenity.
type POI struct {
	Location geo.LatLng
	Name     string
	Category string
}

// Data is one normalized payload. Each fetch produces a new Data; nothing
// is merged across fetches.
type Data struct {
	// Bounds is the requested box and drives the render transform.
	Bounds geo.Bounds
	// Declared is the <bounds> element of the payload, if present.
	Declared *geo.Bounds

	Nodes map[osm.NodeID]Node
	Ways  []Way
	POIs  []POI

	SkippedNodes int
	SkippedWays  int
}

// Extent returns the bound of every resolved way point and POI.
func (d *Data) Extent() orb.Bound {
	var (
		b     orb.Bound
		first = true
	)
	add := func(ll geo.LatLng) {
		if first {
			b = ll.Point().Bound()
			first = false
			return
		}
		b = b.Extend(ll.Point())
	}
	for _, w := range d.Ways {
		for _, p := range w.Points {
			add(p)
		}
	}
	for _, p := range d.POIs {
		add(p.Location)
	}
	return b
}

// Empty reports whether there is nothing to draw.
func (d *Data) Empty() bool {
	return len(d.Ways) == 0 && len(d.POIs) == 0
}
