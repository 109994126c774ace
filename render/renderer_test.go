package render

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olablt/gio-pipmap/geo"
	"github.com/olablt/gio-pipmap/osmdata"
)

const joesPayload = `<osm version="0.6">
 <node id="1" lat="34.395" lon="-118.575"><tag k="name" v="Joe's"/><tag k="amenity" v="pub"/></node>
 <node id="2" lat="34.396" lon="-118.574"/>
 <way id="10"><nd ref="1"/><nd ref="2"/></way>
</osm>`

var (
	joesBounds = geo.Bounds{MinLat: 34.39, MinLng: -118.58, MaxLat: 34.40, MaxLng: -118.57}
	joesPub    = geo.LatLng{Lat: 34.395, Lng: -118.575}
)

// renderJoes draws the Joe's pub payload on a 480px surface and returns
// it with the pixel the pub icon is anchored at.
func renderJoes(t *testing.T, r *Renderer) (*image.RGBA, image.Point) {
	t.Helper()
	data, err := osmdata.Normalize([]byte(joesPayload), joesBounds, zerolog.Nop())
	require.NoError(t, err)
	tr, err := geo.SurfaceTransform(joesBounds, 480)
	require.NoError(t, err)
	return r.Render(data, tr), tr.Project(joesPub).Image()
}

func isBackground(c color.RGBA) bool {
	return c == Background
}

func anyPixel(img *image.RGBA, rect image.Rectangle, match func(color.RGBA) bool) bool {
	rect = rect.Intersect(img.Bounds())
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			if match(img.RGBAAt(x, y)) {
				return true
			}
		}
	}
	return false
}

func TestRender_JoesPub(t *testing.T) {
	img, at := renderJoes(t, NewRenderer(nil))
	assert.Equal(t, image.Rect(0, 0, 480, 480), img.Bounds())
	// the pub sits at the bounds center and its pixel is truncated, not rounded
	assert.InDelta(t, 240, at.X, 1)
	assert.InDelta(t, 240, at.Y, 1)

	// the second node is up and to the right
	mid := image.Rect(262, 214, 267, 219)
	assert.True(t, anyPixel(img, mid, func(c color.RGBA) bool { return !isBackground(c) }), "road missing")

	// vault icon: row 4 column 4 of the mask is set
	assert.Equal(t, LabelColor, img.RGBAAt(at.X+4, at.Y+4))
	// row 4 column 1 is clear
	assert.NotEqual(t, LabelColor, img.RGBAAt(at.X+1, at.Y+4))

	label := image.Rect(at.X+labelDX, at.Y+labelDY, at.X+labelDX+40, at.Y+labelDY+13)
	assert.True(t, anyPixel(img, label, func(c color.RGBA) bool { return c == LabelColor }), "label missing")

	// far corner stays clear
	assert.Equal(t, Background, img.RGBAAt(5, 470))
}

func TestRender_Idempotent(t *testing.T) {
	r := NewRenderer(nil)
	a, _ := renderJoes(t, r)
	b, _ := renderJoes(t, r)
	assert.Equal(t, a.Pix, b.Pix)
	assert.NotSame(t, a, b)
}

func TestRender_SkipsUnknownCategories(t *testing.T) {
	data := &osmdata.Data{
		Bounds: joesBounds,
		POIs: []osmdata.POI{{
			Location: joesBounds.Center(),
			Name:     "Plaza Fountain",
			Category: "fountain",
		}},
	}
	tr, err := geo.SurfaceTransform(joesBounds, 100)
	require.NoError(t, err)

	img := NewRenderer(nil).Render(data, tr)
	assert.False(t, anyPixel(img, img.Bounds(), func(c color.RGBA) bool { return !isBackground(c) }))
}

func TestRender_SkipsSinglePointWays(t *testing.T) {
	data := &osmdata.Data{
		Bounds: joesBounds,
		Ways:   []osmdata.Way{{ID: 1, Points: []geo.LatLng{joesBounds.Center()}}},
	}
	tr, err := geo.SurfaceTransform(joesBounds, 64)
	require.NoError(t, err)

	img := NewRenderer(nil).Render(data, tr)
	assert.False(t, anyPixel(img, img.Bounds(), func(c color.RGBA) bool { return !isBackground(c) }))
}

func TestRender_FarAwayPointsDoNotPanic(t *testing.T) {
	data := &osmdata.Data{
		Bounds: joesBounds,
		Ways: []osmdata.Way{{ID: 1, Points: []geo.LatLng{
			{Lat: -80, Lng: 170},
			joesBounds.Center(),
		}}},
	}
	tr, err := geo.SurfaceTransform(joesBounds, 64)
	require.NoError(t, err)

	assert.NotPanics(t, func() { NewRenderer(nil).Render(data, tr) })
}

func TestRenderer_IconOverrides(t *testing.T) {
	red := color.RGBA{255, 0, 0, 255}
	icon := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			icon.SetRGBA(x, y, red)
		}
	}

	img, at := renderJoes(t, NewRenderer(map[string]image.Image{"vault": icon}))
	// a 20px icon is scaled down to IconSize
	assert.Equal(t, red, img.RGBAAt(at.X, at.Y))
	assert.Equal(t, red, img.RGBAAt(at.X+IconSize-1, at.Y+IconSize-1))
	assert.NotEqual(t, red, img.RGBAAt(at.X+IconSize, at.Y+IconSize))
	assert.NotEqual(t, red, img.RGBAAt(at.X-1, at.Y-1))
}

func TestLoadIconDir(t *testing.T) {
	dir := t.TempDir()
	icon := image.NewRGBA(image.Rect(0, 0, 4, 4))
	f, err := os.Create(filepath.Join(dir, "vault.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, icon))
	require.NoError(t, f.Close())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("icons"), 0o644))

	icons, err := LoadIconDir(dir)
	require.NoError(t, err)
	require.Contains(t, icons, "vault")
	assert.Len(t, icons, 1)
	assert.Equal(t, image.Rect(0, 0, 4, 4), icons["vault"].Bounds())

	_, err = LoadIconDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestPlaceholder(t *testing.T) {
	img := Placeholder(image.Pt(200, 100), "Loading map...")
	assert.Equal(t, image.Rect(0, 0, 200, 100), img.Bounds())
	assert.True(t, anyPixel(img, image.Rect(10, 10, 120, 23), func(c color.RGBA) bool { return c == LabelColor }))
	assert.Equal(t, Background, img.RGBAAt(190, 90))
}
