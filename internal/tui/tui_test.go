package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cxd309/drive-engine/internal/vehicle"
	"github.com/cxd309/drive-engine/internal/vmath"
)

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func runeKey(r rune) *tcell.EventKey { return tcell.NewEventKey(tcell.KeyRune, r, tcell.ModNone) }

func newScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	s := tcell.NewSimulationScreen("UTF-8")
	require.NoError(t, s.Init())
	s.SetSize(80, 24)
	t.Cleanup(s.Fini)
	return s
}

func rowText(s tcell.Screen, y int) string {
	w, _ := s.Size()
	var b strings.Builder
	for x := 0; x < w; x++ {
		r, _, _, _ := s.GetContent(x, y)
		b.WriteRune(r)
	}
	return b.String()
}

func TestControls_HoldAndExpire(t *testing.T) {
	src := vehicle.NewInputSource()
	c := NewControls(src, 100*time.Millisecond)

	assert.False(t, c.HandleKey(tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), t0))
	assert.False(t, c.HandleKey(runeKey('a'), t0))
	assert.Equal(t, vehicle.DirForward|vehicle.DirLeft, src.Snapshot().Direction)

	c.Refresh(t0.Add(50 * time.Millisecond))
	assert.Equal(t, vehicle.DirForward|vehicle.DirLeft, src.Snapshot().Direction)

	c.Refresh(t0.Add(100 * time.Millisecond))
	assert.Equal(t, vehicle.Direction(0), src.Snapshot().Direction)
}

func TestControls_OppositeCancels(t *testing.T) {
	src := vehicle.NewInputSource()
	c := NewControls(src, time.Second)

	c.HandleKey(runeKey('w'), t0)
	c.HandleKey(tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone), t0)
	assert.Equal(t, vehicle.DirReverse, src.Snapshot().Direction)

	c.HandleKey(tcell.NewEventKey(tcell.KeyRight, 0, tcell.ModNone), t0)
	c.HandleKey(runeKey('A'), t0)
	assert.Equal(t, vehicle.DirReverse|vehicle.DirLeft, src.Snapshot().Direction)

	c.HandleKey(runeKey(' '), t0)
	assert.Equal(t, vehicle.Direction(0), src.Snapshot().Direction)
}

func TestControls_SteerAndReset(t *testing.T) {
	src := vehicle.NewInputSource()
	c := NewControls(src, 100*time.Millisecond)

	c.HandleKey(runeKey('3'), t0)
	assert.InDelta(t, 0.3, src.Snapshot().SteerRatio, 1e-12)
	c.HandleKey(runeKey('0'), t0)
	assert.InDelta(t, 1.0, src.Snapshot().SteerRatio, 1e-12)

	c.HandleKey(runeKey('r'), t0)
	assert.True(t, src.Snapshot().ResetRequested)
	c.Refresh(t0.Add(time.Second))
	assert.False(t, src.Snapshot().ResetRequested)
	assert.InDelta(t, 1.0, src.Snapshot().SteerRatio, 1e-12)
}

func TestControls_Quit(t *testing.T) {
	c := NewControls(vehicle.NewInputSource(), time.Second)
	assert.True(t, c.HandleKey(runeKey('q'), t0))
	assert.True(t, c.HandleKey(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), t0))
	assert.True(t, c.HandleKey(tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl), t0))
	assert.False(t, c.HandleKey(tcell.NewEventKey(tcell.KeyTab, 0, tcell.ModNone), t0))
}

func TestHeadingGlyph(t *testing.T) {
	tests := []struct {
		yaw  float64
		want rune
	}{
		{0, '↑'},
		{-90, '→'},
		{90, '←'},
		{180, '↓'},
		{-180, '↓'},
		{-45, '↗'},
		{135, '↙'},
		{-20, '↑'},
		{-25, '↗'},
		{350, '↑'},
	}
	for _, tt := range tests {
		assert.Equal(t, string(tt.want), string(HeadingGlyph(tt.yaw)), "yaw %v", tt.yaw)
	}
}

func TestProject(t *testing.T) {
	centre := vmath.Vec3{X: 1, Z: 1}
	dx, dy := Project(vmath.Vec3{X: 1.5, Y: 9, Z: 0.5}, centre, 10)
	assert.Equal(t, 10, dx)
	assert.Equal(t, -5, dy)
}

func TestView_Draw(t *testing.T) {
	s := newScreen(t)
	cfg := DefaultConfig()
	v := NewView(cfg)

	v.Draw(s)
	assert.Contains(t, rowText(s, 0), "waiting for first tick")

	v.SetWaypoints([]vmath.Vec3{{Z: -0.5}})
	v.Push(vehicle.Frame{
		Tick:    30,
		Elapsed: 480 * time.Millisecond,
		Pose: vehicle.Pose{
			Position:            vmath.Vec3{X: 0.5},
			Velocity:            0.1,
			WorldHeadingDegrees: -90,
		},
	})
	v.Draw(s)
	s.Show()

	hud := rowText(s, 0)
	assert.Contains(t, hud, "t   0.48s")
	assert.Contains(t, hud, "v +0.100")
	assert.Contains(t, rowText(s, 1), "q quit")

	cx, cy := 40, mapTop+(24-mapTop)/2
	r, _, _, _ := s.GetContent(cx, cy)
	assert.Equal(t, "+", string(r))
	r, _, _, _ = s.GetContent(cx+20, cy)
	assert.Equal(t, "→", string(r))
	r, _, _, _ = s.GetContent(cx, cy-10)
	assert.Equal(t, "o", string(r))
}

func TestView_TrailBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrailLength = 3
	v := NewView(cfg)
	for i := 0; i < 10; i++ {
		v.Push(vehicle.Frame{Tick: uint64(i), Pose: vehicle.Pose{Position: vmath.Vec3{Z: -float64(i)}}})
	}
	require.Len(t, v.trail, 3)
	assert.InDelta(t, -7, v.trail[0].Z, 1e-12)
	assert.InDelta(t, -9, v.trail[2].Z, 1e-12)
}

func TestApp_QuitKey(t *testing.T) {
	s := newScreen(t)
	src := vehicle.NewInputSource()
	cfg := DefaultConfig()
	cfg.FrameInterval = 5 * time.Millisecond
	cfg.HoldWindow = time.Minute
	app := New(s, src, cfg, zerolog.Nop())

	require.NoError(t, app.Consume(context.Background(), vehicle.Frame{Tick: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.NoError(t, s.PostEvent(runeKey('w')))
	require.NoError(t, s.PostEvent(runeKey('q')))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("app did not quit")
	}
	assert.Equal(t, vehicle.DirForward, src.Snapshot().Direction)
}

func TestApp_ContextCancel(t *testing.T) {
	s := newScreen(t)
	app := New(s, vehicle.NewInputSource(), DefaultConfig(), zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}
