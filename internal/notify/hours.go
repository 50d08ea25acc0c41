package notify

import (
	"fmt"
	"time"
)

// Hours is the work-hours gate. Alerts are delivered only when the current
// wall-clock time (in Loc) falls inside the half-open window [Start, End).
//
// A window may span midnight: Start=22:00, End=06:00 covers late evening
// through early morning. Start == End denotes an empty window, which
// suppresses every alert; the config layer rejects it before it gets here.
type Hours struct {
	Enabled bool
	Start   int // minutes from midnight, inclusive
	End     int // minutes from midnight, exclusive
	Loc     *time.Location
}

// Contains reports whether t falls inside the window. Disabled means the
// gate is always open.
func (h Hours) Contains(t time.Time) bool {
	if !h.Enabled {
		return true
	}
	if h.Start == h.End {
		return false
	}
	loc := h.Loc
	if loc == nil {
		loc = time.Local
	}
	lt := t.In(loc)
	m := lt.Hour()*60 + lt.Minute()
	if h.Start < h.End {
		return m >= h.Start && m < h.End
	}
	// spans midnight
	return m >= h.Start || m < h.End
}

// String renders the window for status output ("09:00-18:00" or "off").
func (h Hours) String() string {
	if !h.Enabled {
		return "off"
	}
	return fmt.Sprintf("%02d:%02d-%02d:%02d", h.Start/60, h.Start%60, h.End/60, h.End%60)
}
