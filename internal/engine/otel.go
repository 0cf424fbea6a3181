package engine

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/cxd309/drive-engine/internal/engine"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

type instruments struct {
	ticks      metric.Int64Counter
	resets     metric.Int64Counter
	sinkErrors metric.Int64Counter
	speed      metric.Float64Histogram
}

func newInstruments(m metric.Meter) (instruments, error) {
	var (
		inst instruments
		err  error
	)

	inst.ticks, err = m.Int64Counter(
		"drive.ticks",
		metric.WithDescription("Total integrator ticks"),
	)
	if err != nil {
		return inst, fmt.Errorf("creating ticks counter: %w", err)
	}

	inst.resets, err = m.Int64Counter(
		"drive.resets",
		metric.WithDescription("Total vehicle resets"),
	)
	if err != nil {
		return inst, fmt.Errorf("creating resets counter: %w", err)
	}

	inst.sinkErrors, err = m.Int64Counter(
		"drive.sink.errors",
		metric.WithDescription("Total frames a pose sink failed to consume"),
	)
	if err != nil {
		return inst, fmt.Errorf("creating sink errors counter: %w", err)
	}

	inst.speed, err = m.Float64Histogram(
		"drive.speed",
		metric.WithDescription("Absolute vehicle velocity after each tick"),
		metric.WithUnit("m/s"),
	)
	if err != nil {
		return inst, fmt.Errorf("creating speed histogram: %w", err)
	}

	return inst, nil
}
