package tui

import (
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/cxd309/drive-engine/internal/vehicle"
)

// Controls turns key presses into input state. Terminals report presses but
// never releases, so a press holds its button for one hold window and
// keyboard auto-repeat keeps refreshing it.
type Controls struct {
	src   *vehicle.InputSource
	hold  time.Duration
	until map[vehicle.Direction]time.Time
	reset time.Time
	steer float64
}

// NewControls creates controls that publish into src.
func NewControls(src *vehicle.InputSource, hold time.Duration) *Controls {
	return &Controls{
		src:   src,
		hold:  hold,
		until: make(map[vehicle.Direction]time.Time, 4),
		steer: src.Snapshot().SteerRatio,
	}
}

var opposite = map[vehicle.Direction]vehicle.Direction{
	vehicle.DirForward: vehicle.DirReverse,
	vehicle.DirReverse: vehicle.DirForward,
	vehicle.DirLeft:    vehicle.DirRight,
	vehicle.DirRight:   vehicle.DirLeft,
}

func keyDirection(ev *tcell.EventKey) (vehicle.Direction, bool) {
	switch ev.Key() {
	case tcell.KeyUp:
		return vehicle.DirForward, true
	case tcell.KeyDown:
		return vehicle.DirReverse, true
	case tcell.KeyLeft:
		return vehicle.DirLeft, true
	case tcell.KeyRight:
		return vehicle.DirRight, true
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'w', 'W':
			return vehicle.DirForward, true
		case 's', 'S':
			return vehicle.DirReverse, true
		case 'a', 'A':
			return vehicle.DirLeft, true
		case 'd', 'D':
			return vehicle.DirRight, true
		}
	}
	return 0, false
}

// HandleKey applies one key press at time now. It reports whether the user
// asked to quit.
func (c *Controls) HandleKey(ev *tcell.EventKey, now time.Time) bool {
	if ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC {
		return true
	}
	if d, ok := keyDirection(ev); ok {
		c.until[d] = now.Add(c.hold)
		delete(c.until, opposite[d])
		c.Refresh(now)
		return false
	}
	if ev.Key() != tcell.KeyRune {
		return false
	}
	switch r := ev.Rune(); {
	case r == 'q':
		return true
	case r == '0':
		c.steer = 1
	case r >= '1' && r <= '9':
		c.steer = float64(r-'0') / 10
	case r == 'r' || r == 'R':
		c.reset = now.Add(c.hold)
	case r == ' ':
		c.until = make(map[vehicle.Direction]time.Time, 4)
	}
	c.Refresh(now)
	return false
}

// Refresh drops expired buttons and publishes the current state.
func (c *Controls) Refresh(now time.Time) {
	var dir vehicle.Direction
	for d, t := range c.until {
		if now.Before(t) {
			dir |= d
		} else {
			delete(c.until, d)
		}
	}
	c.src.Set(vehicle.InputState{
		Direction:      dir,
		SteerRatio:     c.steer,
		ResetRequested: now.Before(c.reset),
	})
}
