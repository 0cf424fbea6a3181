package vehicle

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/cxd309/drive-engine/internal/kinematics"
)

// Direction is the bitmask of pressed direction buttons.
type Direction uint8

const (
	DirLeft    Direction = 1 << 0
	DirForward Direction = 1 << 1
	DirRight   Direction = 1 << 2
	DirReverse Direction = 1 << 3
)

var directionNames = []struct {
	bit  Direction
	name string
}{
	{DirLeft, "left"},
	{DirForward, "forward"},
	{DirRight, "right"},
	{DirReverse, "reverse"},
}

// ParseDirection builds a bitmask from button names.
func ParseDirection(names []string) (Direction, error) {
	var d Direction
outer:
	for _, n := range names {
		for _, dn := range directionNames {
			if dn.name == n {
				d |= dn.bit
				continue outer
			}
		}
		return 0, fmt.Errorf("unknown button %q", n)
	}
	return d, nil
}

// Names lists the pressed buttons.
func (d Direction) Names() []string {
	names := []string{}
	for _, dn := range directionNames {
		if d.Has(dn.bit) {
			names = append(names, dn.name)
		}
	}
	return names
}

// MarshalJSON encodes the bitmask as a list of button names.
func (d Direction) MarshalJSON() ([]byte, error) { return json.Marshal(d.Names()) }

// UnmarshalJSON accepts either a list of button names or the raw bitmask.
func (d *Direction) UnmarshalJSON(data []byte) error {
	var raw uint8
	if err := json.Unmarshal(data, &raw); err == nil {
		if raw > uint8(DirLeft|DirForward|DirRight|DirReverse) {
			return fmt.Errorf("direction bitmask %d out of range", raw)
		}
		*d = Direction(raw)
		return nil
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("direction: %w", err)
	}
	parsed, err := ParseDirection(names)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Has reports whether every bit of d2 is set in d.
func (d Direction) Has(d2 Direction) bool { return d&d2 == d2 }

// Command decodes the longitudinal intent. Forward is tested before reverse.
func (d Direction) Command() kinematics.Command {
	switch {
	case d.Has(DirForward):
		return kinematics.CommandForward
	case d.Has(DirReverse):
		return kinematics.CommandReverse
	default:
		return kinematics.CommandCoast
	}
}

// Turn decodes the lateral intent. Left is tested before right.
func (d Direction) Turn() kinematics.Turn {
	switch {
	case d.Has(DirLeft):
		return kinematics.TurnLeft
	case d.Has(DirRight):
		return kinematics.TurnRight
	default:
		return kinematics.TurnNone
	}
}

// InputState is one consistent reading of the external controls.
type InputState struct {
	Direction      Direction `json:"direction"`
	SteerRatio     float64   `json:"steer_ratio"` // [0,1], clamped by the producer
	ResetRequested bool      `json:"reset,omitempty"`
}

// InputSource is the shared mailbox between UI goroutines that write controls
// and the tick loop that reads them. Snapshot returns all fields from the same
// write, so a tick never sees a direction from one event and a steer ratio
// from another.
type InputSource struct {
	mu    sync.RWMutex
	state InputState
}

// NewInputSource returns a source with no buttons pressed and full steer.
func NewInputSource() *InputSource {
	return &InputSource{state: InputState{SteerRatio: 1}}
}

// Set replaces the whole input state.
func (s *InputSource) Set(in InputState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = in
}

// SetDirection replaces the direction bitmask.
func (s *InputSource) SetDirection(d Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Direction = d
}

// SetSteerRatio replaces the steer ratio.
func (s *InputSource) SetSteerRatio(r float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SteerRatio = r
}

// SetResetRequested sets the reset level.
func (s *InputSource) SetResetRequested(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ResetRequested = v
}

// Snapshot returns the current input state.
func (s *InputSource) Snapshot() InputState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ResetLatch turns the reset level into a one-shot edge: Observe returns true
// only when the flag is set and differs from the previously observed value.
type ResetLatch struct {
	last bool
}

// Observe records flag and reports whether it is a new reset request.
func (l *ResetLatch) Observe(flag bool) bool {
	fire := flag && flag != l.last
	l.last = flag
	return fire
}
