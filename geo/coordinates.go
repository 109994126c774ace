package geo

import (
	"errors"
	"fmt"
	"image"

	"github.com/paulmach/orb"
)

// ErrInvalidBounds is returned when a bounding box has no area.
var ErrInvalidBounds = errors.New("geo: invalid bounds")

// LatLng represents a geographical point
type LatLng struct {
	Lat, Lng float64
}

// Point returns the point in orb (lng, lat) order.
func (ll LatLng) Point() orb.Point {
	return orb.Point{ll.Lng, ll.Lat}
}

// Bounds is a rectangular geographic region.
type Bounds struct {
	MinLat, MinLng, MaxLat, MaxLng float64
}

// Around returns the square box extending radius degrees from center on both axes.
func Around(center LatLng, radius float64) Bounds {
	return Bounds{
		MinLat: center.Lat - radius,
		MinLng: center.Lng - radius,
		MaxLat: center.Lat + radius,
		MaxLng: center.Lng + radius,
	}
}

// Validate reports ErrInvalidBounds unless max > min on both axes.
func (b Bounds) Validate() error {
	if !(b.MaxLat > b.MinLat) || !(b.MaxLng > b.MinLng) {
		return fmt.Errorf("%w: lat [%f, %f] lng [%f, %f]", ErrInvalidBounds, b.MinLat, b.MaxLat, b.MinLng, b.MaxLng)
	}
	return nil
}

// Center returns the origin used by the transform.
func (b Bounds) Center() LatLng {
	return LatLng{
		Lat: b.MinLat + b.HalfHeight(),
		Lng: b.MinLng + b.HalfWidth(),
	}
}

// HalfWidth is half the longitude extent.
func (b Bounds) HalfWidth() float64 {
	return (b.MaxLng - b.MinLng) / 2
}

// HalfHeight is half the latitude extent.
func (b Bounds) HalfHeight() float64 {
	return (b.MaxLat - b.MinLat) / 2
}

// Bound converts the box to an orb.Bound.
func (b Bounds) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.MinLng, b.MinLat},
		Max: orb.Point{b.MaxLng, b.MaxLat},
	}
}

// Covers reports whether o lies entirely inside b.
func (b Bounds) Covers(o Bounds) bool {
	ob := b.Bound()
	return ob.Contains(o.Bound().Min) && ob.Contains(o.Bound().Max)
}

func (b Bounds) String() string {
	return fmt.Sprintf("%f,%f,%f,%f", b.MinLng, b.MinLat, b.MaxLng, b.MaxLat)
}

// Pixel is a point in surface space. Y grows downward.
type Pixel struct {
	X, Y float64
}

// Image rounds the pixel down to integer surface coordinates.
func (p Pixel) Image() image.Point {
	return image.Point{X: int(p.X), Y: int(p.Y)}
}
