package mapctl

import (
	"image"

	"github.com/olablt/gio-pipmap/geo"
)

// Stage is the load session state.
type Stage int

const (
	Idle Stage = iota
	InitialLoad
	Expanding
	Complete
	CacheLoad
)

func (s Stage) String() string {
	switch s {
	case Idle:
		return "idle"
	case InitialLoad:
		return "initial_load"
	case Expanding:
		return "expanding"
	case Complete:
		return "complete"
	case CacheLoad:
		return "cache_load"
	default:
		return "unknown"
	}
}

// active reports whether a session owns the background slot.
func (s Stage) active() bool {
	return s != Idle && s != Complete
}

// State is a copy of the controller state at one instant.
type State struct {
	Stage Stage
	// Step is the expansion stage number while Stage is Expanding.
	Step          int
	Center        geo.LatLng
	TargetRadius  float64
	CurrentRadius float64
	DataReady     bool
	Viewport      image.Rectangle
	Zoom          float64
	// Err is the error that ended the last session, if any.
	Err error
}
