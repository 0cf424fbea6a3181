package engine

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"

	"github.com/cxd309/drive-engine/internal/vehicle"
)

// Scheduler delivers tick signals. The driver never owns a timer itself.
type Scheduler interface {
	C() <-chan time.Time
	Stop()
}

type tickerScheduler struct {
	t *time.Ticker
}

// NewTickerScheduler returns a Scheduler backed by a time.Ticker.
func NewTickerScheduler(d time.Duration) Scheduler {
	return tickerScheduler{t: time.NewTicker(d)}
}

func (s tickerScheduler) C() <-chan time.Time { return s.t.C }
func (s tickerScheduler) Stop() { s.t.Stop() }

// PoseSink receives every frame the driver produces.
type PoseSink interface {
	Consume(ctx context.Context, f vehicle.Frame) error
}

// SinkFunc adapts a function to PoseSink.
type SinkFunc func(ctx context.Context, f vehicle.Frame) error

func (fn SinkFunc) Consume(ctx context.Context, f vehicle.Frame) error { return fn(ctx, f) }

// CameraSource reports the viewer's current pose, if known.
type CameraSource interface {
	Camera() (vehicle.CameraOrientation, bool)
}

// StaticCamera is a CameraSource that never moves.
type StaticCamera vehicle.CameraOrientation

func (c StaticCamera) Camera() (vehicle.CameraOrientation, bool) {
	return vehicle.CameraOrientation(c), true
}

// Pilot overrides the direction and steer ratio of each tick's input.
type Pilot interface {
	Next(p vehicle.Pose) vehicle.InputState
}

// Restarter is implemented by pilots whose plan is laid out from the local
// origin. The driver restarts them whenever the vehicle is reset.
type Restarter interface {
	Restart()
}

// Option configures a Driver.
type Option func(*Driver)

func WithLogger(l zerolog.Logger) Option { return func(d *Driver) { d.log = l } }

func WithSinks(s ...PoseSink) Option { return func(d *Driver) { d.sinks = append(d.sinks, s...) } }

func WithCamera(c CameraSource) Option { return func(d *Driver) { d.camera = c } }

func WithPilot(p Pilot) Option { return func(d *Driver) { d.pilot = p } }

// WithPlacementDistance sets how far in front of the camera a reset lands.
func WithPlacementDistance(m float64) Option { return func(d *Driver) { d.distance = m } }

// WithMeter replaces the global meter, mostly for tests.
func WithMeter(m metric.Meter) Option { return func(d *Driver) { d.meter = m } }

// Driver runs the per-tick pipeline: read controls, latch reset, tick the
// integrator, fan the frame out. One Step runs at a time.
type Driver struct {
	it       *vehicle.Integrator
	input    *vehicle.InputSource
	pilot    Pilot
	camera   CameraSource
	sinks    []PoseSink
	log      zerolog.Logger
	meter    metric.Meter
	distance float64

	latch  vehicle.ResetLatch
	tick   uint64
	resets int
	pose   vehicle.Pose
	inst   instruments
}

// NewDriver wires an integrator to an input source.
// Uses the global OTel meter for metrics (no-op if not configured).
func NewDriver(it *vehicle.Integrator, input *vehicle.InputSource, opts ...Option) (*Driver, error) {
	d := &Driver{
		it:       it,
		input:    input,
		log:      zerolog.Nop(),
		meter:    meter(),
		distance: vehicle.DefaultPlacementDistance,
	}
	for _, opt := range opts {
		opt(d)
	}
	inst, err := newInstruments(d.meter)
	if err != nil {
		return nil, err
	}
	d.inst = inst
	d.pose = it.Pose()
	return d, nil
}

// Pose returns the most recent pose.
func (d *Driver) Pose() vehicle.Pose { return d.pose }

// Ticks returns how many ticks have run.
func (d *Driver) Ticks() uint64 { return d.tick }

// Resets returns how many reset edges have been handled.
func (d *Driver) Resets() int { return d.resets }

// Step runs exactly one tick and returns its frame. Sink failures are logged
// and counted but do not fail the step.
func (d *Driver) Step(ctx context.Context) (vehicle.Frame, error) {
	if err := ctx.Err(); err != nil {
		return vehicle.Frame{}, err
	}

	in := d.input.Snapshot()
	if d.pilot != nil {
		auto := d.pilot.Next(d.pose)
		in.Direction = auto.Direction
		in.SteerRatio = auto.SteerRatio
	}
	if d.latch.Observe(in.ResetRequested) {
		d.reset(ctx)
	}

	d.pose = d.it.Tick(in)
	d.tick++
	frame := vehicle.Frame{
		Tick:    d.tick,
		Elapsed: time.Duration(d.tick) * d.it.Config().TickInterval,
		Input:   in,
		Pose:    d.pose,
	}
	d.inst.ticks.Add(ctx, 1)
	d.inst.speed.Record(ctx, math.Abs(d.pose.Velocity))

	for _, s := range d.sinks {
		if err := s.Consume(ctx, frame); err != nil {
			d.inst.sinkErrors.Add(ctx, 1)
			d.log.Warn().Err(err).Uint64("tick", d.tick).Msg("pose sink failed")
		}
	}
	return frame, nil
}

func (d *Driver) reset(ctx context.Context) {
	anchor := d.it.Anchor()
	d.it.Reset(anchor.Position.Y)
	if d.camera != nil {
		if cam, ok := d.camera.Camera(); ok {
			d.it.Place(vehicle.InFrontOf(cam, anchor.Position.Y, d.distance))
		}
	}
	if r, ok := d.pilot.(Restarter); ok {
		r.Restart()
	}
	d.resets++
	d.inst.resets.Add(ctx, 1)
	d.log.Debug().Uint64("tick", d.tick).Interface("anchor", d.it.Anchor().Position).Msg("vehicle reset")
}

// Run ticks on every signal from s until ctx is done. It stops s on return.
func (d *Driver) Run(ctx context.Context, s Scheduler) error {
	defer s.Stop()
	d.log.Info().Dur("tick_interval", d.it.Config().TickInterval).Msg("driver started")
	for {
		select {
		case <-ctx.Done():
			d.log.Info().Uint64("ticks", d.tick).Int("resets", d.resets).Msg("driver stopped")
			return nil
		case <-s.C():
			if _, err := d.Step(ctx); err != nil {
				if ctx.Err() != nil {
					continue
				}
				return err
			}
		}
	}
}
