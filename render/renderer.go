package render

import (
	"image"
	"image/color"
	"math"

	"github.com/golang/freetype/raster"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/olablt/gio-pipmap/geo"
	"github.com/olablt/gio-pipmap/osmdata"
)

var (
	// Background fills the surface before drawing
	Background = color.RGBA{0, 0, 0, 255}
	// RoadColor is the accent color for ways
	RoadColor = color.RGBA{85, 251, 167, 255}
	// LabelColor is used for POI labels and status text
	LabelColor = color.RGBA{95, 255, 177, 255}
)

const (
	// StrokeWidth of roads in pixels
	StrokeWidth = 2
	// IconSize is the side of the scaled POI icon
	IconSize = 10

	labelDX = 17
	labelDY = 4

	// coordinates further out than this are clamped before rasterizing
	maxCoord = 1 << 20
)

// Renderer paints normalized map data onto fresh surfaces.
type Renderer struct {
	face  font.Face
	icons map[string]image.Image
}

// NewRenderer creates a renderer with the built-in icon set. Icons in
// overrides replace built-in ones of the same name.
func NewRenderer(overrides map[string]image.Image) *Renderer {
	icons := builtinIcons(LabelColor)
	for name, img := range overrides {
		icons[name] = img
	}
	return &Renderer{
		face:  basicfont.Face7x13,
		icons: icons,
	}
}

// Icon returns the icon for an amenity category.
func (r *Renderer) Icon(category string) (image.Image, bool) {
	name, ok := Amenities[category]
	if !ok {
		return nil, false
	}
	img, ok := r.icons[name]
	return img, ok
}

// Render allocates a new surface of t.Size and draws d onto it. The
// surface is never reused, so a caller may publish it while the previous
// one is still being read.
func (r *Renderer) Render(d *osmdata.Data, t geo.Transform) *image.RGBA {
	img := image.NewRGBA(image.Rectangle{Max: t.Size})
	draw.Draw(img, img.Bounds(), &image.Uniform{Background}, image.Point{}, draw.Src)

	r.drawWays(img, d.Ways, t)
	r.drawPOIs(img, d.POIs, t)
	return img
}

func (r *Renderer) drawWays(img *image.RGBA, ways []osmdata.Way, t geo.Transform) {
	rast := raster.NewRasterizer(img.Bounds().Dx(), img.Bounds().Dy())
	rast.UseNonZeroWinding = true
	painter := raster.NewRGBAPainter(img)
	painter.SetColor(RoadColor)

	for _, w := range ways {
		if len(w.Points) < 2 {
			continue
		}
		var path raster.Path
		for i, px := range t.Polyline(w.Points) {
			if i == 0 {
				path.Start(toFixed(px))
			} else {
				path.Add1(toFixed(px))
			}
		}
		rast.AddStroke(path, fixed.I(StrokeWidth), raster.ButtCapper, raster.RoundJoiner)
		rast.Rasterize(painter)
		rast.Clear()
	}
}

func (r *Renderer) drawPOIs(img *image.RGBA, pois []osmdata.POI, t geo.Transform) {
	for _, poi := range pois {
		icon, ok := r.Icon(poi.Category)
		if !ok {
			continue
		}
		at := t.Project(poi.Location).Image()

		dst := image.Rect(at.X, at.Y, at.X+IconSize, at.Y+IconSize)
		draw.NearestNeighbor.Scale(img, dst, icon, icon.Bounds(), draw.Over, nil)

		drawLabel(img, r.face, poi.Name, image.Pt(at.X+labelDX, at.Y+labelDY))
	}
}

// drawLabel draws text with its top-left corner at p on a background box.
func drawLabel(img *image.RGBA, face font.Face, text string, p image.Point) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(LabelColor),
		Face: face,
	}

	metrics := face.Metrics()
	width := d.MeasureString(text).Ceil()
	height := metrics.Height.Ceil()

	box := image.Rect(p.X, p.Y, p.X+width, p.Y+height)
	draw.Draw(img, box, &image.Uniform{Background}, image.Point{}, draw.Src)

	d.Dot = fixed.Point26_6{
		X: fixed.I(p.X),
		Y: fixed.I(p.Y) + metrics.Ascent,
	}
	d.DrawString(text)
}

// Placeholder returns a surface showing a single status line, used until
// the first map render or when no map could be loaded.
func Placeholder(size image.Point, text string) *image.RGBA {
	img := image.NewRGBA(image.Rectangle{Max: size})
	draw.Draw(img, img.Bounds(), &image.Uniform{Background}, image.Point{}, draw.Src)
	drawLabel(img, basicfont.Face7x13, text, image.Pt(10, 10))
	return img
}

func toFixed(p geo.Pixel) fixed.Point26_6 {
	return fixed.Point26_6{
		X: fixed.Int26_6(clamp(p.X) * 64),
		Y: fixed.Int26_6(clamp(p.Y) * 64),
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(-maxCoord, math.Min(v, maxCoord))
}
