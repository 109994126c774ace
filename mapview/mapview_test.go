package mapview

import (
	"image"
	"testing"

	"gioui.org/f32"
	"gioui.org/layout"
	"gioui.org/op"
	"github.com/stretchr/testify/assert"
)

type fakeController struct {
	frame   *image.RGBA
	gen     uint64
	pans    []image.Point
	zoomIns int
}

func (f *fakeController) Frame() (*image.RGBA, uint64) { return f.frame, f.gen }
func (f *fakeController) Pan(dx, dy int)               { f.pans = append(f.pans, image.Pt(dx, dy)) }
func (f *fakeController) ZoomIn() bool                 { f.zoomIns++; return true }
func (f *fakeController) ZoomOut() bool                { return true }

func TestMapView_LayoutClampsToConstraints(t *testing.T) {
	ctl := &fakeController{frame: image.NewRGBA(image.Rect(0, 0, 472, 240)), gen: 1}
	mv := New(ctl)

	gtx := layout.Context{
		Ops:         new(op.Ops),
		Constraints: layout.Exact(image.Pt(400, 300)),
	}
	dims := mv.Layout(gtx)
	assert.Equal(t, image.Pt(400, 240), dims.Size)
}

func TestMapView_ImageOpReusedPerGeneration(t *testing.T) {
	ctl := &fakeController{frame: image.NewRGBA(image.Rect(0, 0, 10, 10)), gen: 1}
	mv := New(ctl)

	mv.imageOp(ctl.frame, 1)
	mv.imageOp(ctl.frame, 1)
	assert.Equal(t, 1, mv.ops.Len())

	mv.imageOp(image.NewRGBA(image.Rect(0, 0, 10, 10)), 2)
	assert.Equal(t, 1, mv.ops.Len(), "old generations are dropped")
	_, ok := mv.ops.Get("2")
	assert.True(t, ok)
}

func TestMapView_DragPansOppositeDirection(t *testing.T) {
	ctl := &fakeController{}
	mv := New(ctl)

	mv.dragBy(f32.Pt(10, -4))
	assert.Equal(t, []image.Point{{-10, 4}}, ctl.pans)

	// fractions accumulate until they make a whole pixel
	ctl.pans = nil
	mv.dragBy(f32.Pt(0.6, 0))
	mv.dragBy(f32.Pt(0.6, 0))
	assert.Equal(t, []image.Point{{-1, 0}}, ctl.pans)
}
