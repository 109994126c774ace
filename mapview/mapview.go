// Package mapview is a Gio widget showing the viewport of a map controller
// and turning pointer and key input into pan and zoom commands.
package mapview

import (
	"image"
	"math"
	"strconv"

	"gioui.org/f32"
	"gioui.org/io/event"
	"gioui.org/io/key"
	"gioui.org/io/pointer"
	"gioui.org/layout"
	"gioui.org/op/clip"
	"gioui.org/op/paint"

	"github.com/olablt/gio-pipmap/cache"
	"github.com/olablt/gio-pipmap/mapctl"
)

// KeyPanStep is how far one arrow key press pans, in surface pixels.
const KeyPanStep = 20

// Controller is the part of mapctl.Controller the widget drives.
type Controller interface {
	Frame() (*image.RGBA, uint64)
	Pan(dx, dy int)
	ZoomIn() bool
	ZoomOut() bool
}

var _ Controller = (*mapctl.Controller)(nil)

type MapView struct {
	Controller Controller

	dragging bool
	lastPos  f32.Point
	// sub-pixel drag left over from previous events
	carry f32.Point

	ops     cache.Cache
	lastGen uint64
}

func New(c Controller) *MapView {
	return &MapView{
		Controller: c,
		ops:        cache.New(cache.KindImageOp),
	}
}

func (mv *MapView) Layout(gtx layout.Context) layout.Dimensions {
	tag := mv
	mv.processPointer(gtx, tag)
	mv.processKeys(gtx)

	frame, gen := mv.Controller.Frame()
	size := frame.Bounds().Size()
	size.X = min(size.X, gtx.Constraints.Max.X)
	size.Y = min(size.Y, gtx.Constraints.Max.Y)

	// Confine drawing and input to the frame
	defer clip.Rect{Max: size}.Push(gtx.Ops).Pop()
	event.Op(gtx.Ops, tag)

	mv.imageOp(frame, gen).Add(gtx.Ops)
	paint.PaintOp{}.Add(gtx.Ops)

	return layout.Dimensions{Size: size}
}

// imageOp reuses the uploaded image while the frame generation is unchanged.
func (mv *MapView) imageOp(frame *image.RGBA, gen uint64) paint.ImageOp {
	key := strconv.FormatUint(gen, 10)
	if v, ok := mv.ops.Get(key); ok {
		return v.(paint.ImageOp)
	}
	if gen != mv.lastGen {
		mv.ops.Clear()
		mv.lastGen = gen
	}
	op := paint.NewImageOp(frame)
	mv.ops.Set(key, op)
	return op
}

func (mv *MapView) processPointer(gtx layout.Context, tag event.Tag) {
	for {
		ev, ok := gtx.Event(pointer.Filter{
			Target:  tag,
			Kinds:   pointer.Scroll | pointer.Drag | pointer.Press | pointer.Release | pointer.Cancel,
			ScrollY: pointer.ScrollRange{Min: -10, Max: 10},
		})
		if !ok {
			break
		}
		e, ok := ev.(pointer.Event)
		if !ok {
			continue
		}

		switch e.Kind {
		case pointer.Press:
			mv.dragging = true
			mv.lastPos = e.Position
			mv.carry = f32.Point{}
		case pointer.Drag:
			if !mv.dragging {
				continue
			}
			mv.dragBy(e.Position.Sub(mv.lastPos))
			mv.lastPos = e.Position
		case pointer.Release, pointer.Cancel:
			mv.dragging = false
		case pointer.Scroll:
			if e.Scroll.Y < 0 {
				mv.Controller.ZoomIn()
			} else if e.Scroll.Y > 0 {
				mv.Controller.ZoomOut()
			}
		}
	}
}

// dragBy pans opposite to the pointer so the map follows it.
func (mv *MapView) dragBy(delta f32.Point) {
	total := mv.carry.Sub(delta)
	dx := int(math.Trunc(float64(total.X)))
	dy := int(math.Trunc(float64(total.Y)))
	mv.carry = f32.Pt(total.X-float32(dx), total.Y-float32(dy))
	if dx != 0 || dy != 0 {
		mv.Controller.Pan(dx, dy)
	}
}

func (mv *MapView) processKeys(gtx layout.Context) {
	for {
		ev, ok := gtx.Event(
			key.Filter{Name: "+"},
			key.Filter{Name: "="},
			key.Filter{Name: "-"},
			key.Filter{Name: key.NameLeftArrow},
			key.Filter{Name: key.NameRightArrow},
			key.Filter{Name: key.NameUpArrow},
			key.Filter{Name: key.NameDownArrow},
		)
		if !ok {
			break
		}
		e, ok := ev.(key.Event)
		if !ok || e.State != key.Press {
			continue
		}

		switch e.Name {
		case "+", "=":
			mv.Controller.ZoomIn()
		case "-":
			mv.Controller.ZoomOut()
		case key.NameLeftArrow:
			mv.Controller.Pan(-KeyPanStep, 0)
		case key.NameRightArrow:
			mv.Controller.Pan(KeyPanStep, 0)
		case key.NameUpArrow:
			mv.Controller.Pan(0, -KeyPanStep)
		case key.NameDownArrow:
			mv.Controller.Pan(0, KeyPanStep)
		}
	}
}
