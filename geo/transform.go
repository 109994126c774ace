package geo

import "image"

// Project converts a geographical point to surface coordinates.
//
// The bounds origin maps to offset. Scale is size / halfExtent / 2 on each
// axis, so with offset at the surface middle the box spans the whole
// surface. With flipY the vertical component is mirrored about offset.Y,
// because latitude grows upward while screen Y grows downward.
func Project(ll LatLng, b Bounds, size image.Point, offset Pixel, flipY bool) Pixel {
	wCoef := float64(size.X) / b.HalfWidth() / 2
	hCoef := float64(size.Y) / b.HalfHeight() / 2
	origin := b.Center()

	p := Pixel{
		X: (ll.Lng-origin.Lng)*wCoef + offset.X,
		Y: (ll.Lat-origin.Lat)*hCoef + offset.Y,
	}
	if flipY {
		p.Y = -p.Y + offset.Y*2
	}
	return p
}

// Transform binds one set of projection parameters so that every road and
// icon of a render is projected identically.
type Transform struct {
	Bounds Bounds
	Size   image.Point
	Offset Pixel
	FlipY  bool
}

// SurfaceTransform returns the transform used for a square surface: offset
// at the middle and Y flipped.
func SurfaceTransform(b Bounds, side int) (Transform, error) {
	if err := b.Validate(); err != nil {
		return Transform{}, err
	}
	return Transform{
		Bounds: b,
		Size:   image.Pt(side, side),
		Offset: Pixel{X: float64(side) / 2, Y: float64(side) / 2},
		FlipY:  true,
	}, nil
}

// Project converts one point.
func (t Transform) Project(ll LatLng) Pixel {
	return Project(ll, t.Bounds, t.Size, t.Offset, t.FlipY)
}

// Polyline converts an ordered list of points.
func (t Transform) Polyline(points []LatLng) []Pixel {
	out := make([]Pixel, len(points))
	for i, ll := range points {
		out[i] = t.Project(ll)
	}
	return out
}
