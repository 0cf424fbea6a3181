// Package tui is a terminal front end for the driver: it maps key presses to
// vehicle input and draws a top-down view of the pose stream.
package tui

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/cxd309/drive-engine/internal/kinematics"
	"github.com/cxd309/drive-engine/internal/vehicle"
	"github.com/cxd309/drive-engine/internal/vmath"
)

// Config holds the terminal adapter settings.
type Config struct {
	CellsPerMetre float64       `mapstructure:"cellsPerMetre"`
	HoldWindow    time.Duration `mapstructure:"holdWindow"`
	TrailLength   int           `mapstructure:"trailLength"`
	FrameInterval time.Duration `mapstructure:"frameInterval"`
}

// DefaultConfig returns the settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		CellsPerMetre: 20,
		HoldWindow:    150 * time.Millisecond,
		TrailLength:   200,
		FrameInterval: 33 * time.Millisecond,
	}
}

const mapTop = 2 // rows above the map: HUD and help

var (
	styleHUD      = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleHelp     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleAnchor   = tcell.StyleDefault.Foreground(tcell.ColorDarkCyan)
	styleTrail    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleWaypoint = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	styleCar      = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
)

var headingGlyphs = []rune{'↑', '↗', '→', '↘', '↓', '↙', '←', '↖'}

// HeadingGlyph picks the arrow closest to a world yaw in degrees. Up on
// screen is world -Z.
func HeadingGlyph(yawDegrees float64) rune {
	h := kinematics.HeadingFromYaw(yawDegrees)
	sector := int(math.Round(math.Atan2(h.X, -h.Z) / (math.Pi / 4)))
	return headingGlyphs[((sector%8)+8)%8]
}

// Project maps a world point to a cell offset from centre. Terminal cells
// are about twice as tall as wide, so X is stretched.
func Project(p, centre vmath.Vec3, cellsPerMetre float64) (dx, dy int) {
	dx = int(math.Round((p.X - centre.X) * cellsPerMetre * 2))
	dy = int(math.Round((p.Z - centre.Z) * cellsPerMetre))
	return dx, dy
}

// View keeps the latest frame and a trail of world positions.
type View struct {
	cfg Config

	mu        sync.Mutex
	frame     vehicle.Frame
	have      bool
	trail     []vmath.Vec3
	waypoints []vmath.Vec3 // local frame
}

// NewView creates an empty view.
func NewView(cfg Config) *View {
	return &View{cfg: cfg}
}

// SetWaypoints sets course points to draw, in the vehicle's local frame.
func (v *View) SetWaypoints(local []vmath.Vec3) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.waypoints = append([]vmath.Vec3(nil), local...)
}

// Push records a frame.
func (v *View) Push(f vehicle.Frame) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.frame = f
	v.have = true
	v.trail = append(v.trail, f.Pose.WorldPosition())
	if n := len(v.trail) - v.cfg.TrailLength; n > 0 {
		v.trail = append(v.trail[:0], v.trail[n:]...)
	}
}

// Draw renders the current state onto s. The caller calls Show.
func (v *View) Draw(s tcell.Screen) {
	v.mu.Lock()
	defer v.mu.Unlock()

	s.Clear()
	w, h := s.Size()
	drawText(s, 0, 1, styleHelp, "arrows/WASD drive  1-9,0 steer  space release  r reset  q quit")
	if !v.have {
		drawText(s, 0, 0, styleHUD, "waiting for first tick")
		return
	}

	p := v.frame.Pose
	drawText(s, 0, 0, styleHUD, fmt.Sprintf(
		"t %6.2fs  v %+.3f  hdg %6.1f  lean %+5.1f  steer %+5.1f  %-18s",
		v.frame.Elapsed.Seconds(), p.Velocity, p.WorldHeadingDegrees, p.LeanDegrees, p.SteerDegrees, p.Regime,
	))

	centre := p.Anchor.Position
	cx, cy := w/2, mapTop+(h-mapTop)/2
	put := func(world vmath.Vec3, r rune, style tcell.Style) {
		dx, dy := Project(world, centre, v.cfg.CellsPerMetre)
		x, y := cx+dx, cy+dy
		if x < 0 || x >= w || y < mapTop || y >= h {
			return
		}
		s.SetContent(x, y, r, nil, style)
	}

	put(centre, '+', styleAnchor)
	for _, wp := range v.waypoints {
		put(vehicle.Pose{Position: wp, Anchor: p.Anchor}.WorldPosition(), 'o', styleWaypoint)
	}
	for _, t := range v.trail {
		put(t, '·', styleTrail)
	}
	put(p.WorldPosition(), HeadingGlyph(p.WorldHeadingDegrees), styleCar)
}

func drawText(s tcell.Screen, x, y int, style tcell.Style, text string) {
	w, _ := s.Size()
	for _, r := range text {
		if x >= w {
			return
		}
		s.SetContent(x, y, r, nil, style)
		x++
	}
}
