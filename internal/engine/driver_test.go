package engine

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/cxd309/drive-engine/internal/vehicle"
	"github.com/cxd309/drive-engine/internal/vmath"
)

// fakeScheduler is a Scheduler driven by the test.
type fakeScheduler struct {
	c       chan time.Time
	mu      sync.Mutex
	stopped bool
}

func newFakeScheduler() *fakeScheduler { return &fakeScheduler{c: make(chan time.Time)} }

func (s *fakeScheduler) C() <-chan time.Time { return s.c }

func (s *fakeScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
}

func (s *fakeScheduler) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// recordingSink keeps every frame it is given.
type recordingSink struct {
	mu     sync.Mutex
	frames []vehicle.Frame
	notify chan struct{}
}

func newRecordingSink() *recordingSink { return &recordingSink{notify: make(chan struct{}, 64)} }

func (r *recordingSink) Consume(_ context.Context, f vehicle.Frame) error {
	r.mu.Lock()
	r.frames = append(r.frames, f)
	r.mu.Unlock()
	r.notify <- struct{}{}
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

func newTestDriver(t *testing.T, opts ...Option) (*Driver, *vehicle.InputSource, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	cfg, err := vehicle.NewConfig(1, vehicle.DefaultTickInterval, vehicle.DefaultBase())
	require.NoError(t, err)
	src := vehicle.NewInputSource()
	d, err := NewDriver(vehicle.NewIntegrator(cfg), src, append([]Option{WithMeter(mp.Meter("test"))}, opts...)...)
	require.NoError(t, err)
	return d, src, reader
}

func collect(t *testing.T, r *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, r.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func counterValue(t *testing.T, data map[string]metricdata.Aggregation, name string) int64 {
	t.Helper()
	agg, ok := data[name]
	if !ok {
		return 0
	}
	sum, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok, "%s is %T", name, agg)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestDriver_StepProducesFrames(t *testing.T) {
	sink := newRecordingSink()
	d, src, reader := newTestDriver(t, WithSinks(sink))
	src.SetDirection(vehicle.DirForward)

	for i := 0; i < 3; i++ {
		_, err := d.Step(context.Background())
		require.NoError(t, err)
	}

	require.Equal(t, 3, sink.count())
	last := sink.frames[2]
	assert.Equal(t, uint64(3), last.Tick)
	assert.Equal(t, 3*vehicle.DefaultTickInterval, last.Elapsed)
	assert.InDelta(t, 3*0.08*0.016, last.Pose.Velocity, 1e-12)
	assert.Equal(t, last.Pose, d.Pose())

	data := collect(t, reader)
	assert.Equal(t, int64(3), counterValue(t, data, "drive.ticks"))
	hist, ok := data["drive.speed"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(3), hist.DataPoints[0].Count)
}

func TestDriver_SinkErrorsAreLoggedNotFatal(t *testing.T) {
	var buf bytes.Buffer
	failing := SinkFunc(func(context.Context, vehicle.Frame) error { return errors.New("disk full") })
	good := newRecordingSink()
	d, _, reader := newTestDriver(t, WithSinks(failing, good), WithLogger(zerolog.New(&buf)))

	_, err := d.Step(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, good.count(), "later sinks still run")
	assert.Contains(t, buf.String(), "pose sink failed")
	assert.Contains(t, buf.String(), "disk full")
	assert.Equal(t, int64(1), counterValue(t, collect(t, reader), "drive.sink.errors"))
}

func TestDriver_ResetEdgeReplacesVehicle(t *testing.T) {
	cam := StaticCamera{Position: vmath.V3(2, 1.5, 0), Forward: vmath.V3(0, 0, 1)}
	d, src, reader := newTestDriver(t, WithCamera(cam), WithPlacementDistance(0.5))
	ctx := context.Background()

	src.SetDirection(vehicle.DirForward)
	for i := 0; i < 10; i++ {
		_, err := d.Step(ctx)
		require.NoError(t, err)
	}
	require.Greater(t, d.Pose().Velocity, 0.0)

	src.SetResetRequested(true)
	f, err := d.Step(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.08*0.016, f.Pose.Velocity, 1e-12)
	assert.Equal(t, vmath.V3(2, 0, 0.5), f.Pose.Anchor.Position)

	// Holding the level does not reset again.
	f, err = d.Step(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 2*0.08*0.016, f.Pose.Velocity, 1e-12)
	assert.Equal(t, 1, d.Resets())
	assert.Equal(t, int64(1), counterValue(t, collect(t, reader), "drive.resets"))
}

type fixedPilot struct{ in vehicle.InputState }

func (p fixedPilot) Next(vehicle.Pose) vehicle.InputState { return p.in }

func TestDriver_PilotOverridesDirection(t *testing.T) {
	d, src, _ := newTestDriver(t, WithPilot(fixedPilot{vehicle.InputState{Direction: vehicle.DirReverse, SteerRatio: 0.5}}))
	src.Set(vehicle.InputState{Direction: vehicle.DirForward, SteerRatio: 1, ResetRequested: true})

	f, err := d.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, vehicle.DirReverse, f.Input.Direction)
	assert.Equal(t, 0.5, f.Input.SteerRatio)
	assert.True(t, f.Input.ResetRequested, "reset still comes from the input source")
	assert.Less(t, f.Pose.Velocity, 0.0)
}

type restartingPilot struct {
	fixedPilot
	restarts int
}

func (p *restartingPilot) Restart() { p.restarts++ }

func TestDriver_ResetRestartsPilot(t *testing.T) {
	pilot := &restartingPilot{fixedPilot: fixedPilot{vehicle.InputState{Direction: vehicle.DirForward, SteerRatio: 1}}}
	d, src, _ := newTestDriver(t, WithPilot(pilot))
	ctx := context.Background()

	_, err := d.Step(ctx)
	require.NoError(t, err)
	assert.Zero(t, pilot.restarts)

	src.SetResetRequested(true)
	_, err = d.Step(ctx)
	require.NoError(t, err)
	_, err = d.Step(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pilot.restarts)
}

func TestDriver_StepCancelled(t *testing.T) {
	d, _, _ := newTestDriver(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Step(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, d.Ticks())
}

func TestDriver_RunTicksOnSchedule(t *testing.T) {
	sink := newRecordingSink()
	d, _, _ := newTestDriver(t, WithSinks(sink))
	sched := newFakeScheduler()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx, sched) }()

	for i := 0; i < 3; i++ {
		sched.c <- time.Now()
		select {
		case <-sink.notify:
		case <-time.After(time.Second):
			t.Fatal("frame not delivered")
		}
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, 3, sink.count())
	assert.True(t, sched.isStopped())
}

func TestNewTickerScheduler(t *testing.T) {
	s := NewTickerScheduler(time.Millisecond)
	defer s.Stop()
	select {
	case <-s.C():
	case <-time.After(time.Second):
		t.Fatal("ticker never fired")
	}
}
