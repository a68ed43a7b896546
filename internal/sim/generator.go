package sim

import (
	"context"
	"fmt"

	"github.com/san-kum/dynid/internal/dynamo"
)

// SampleConfig controls the sampling of a continuous-time system.
type SampleConfig struct {
	Ts            float64
	Samples       int
	ValidateState bool
}

// Record is a uniformly sampled run of a physics system. Controls[i] is held
// constant over [Times[i], Times[i+1]).
type Record struct {
	Times    []float64
	States   []dynamo.State
	Controls []dynamo.Control
}

// Sample drives sys with ctrl under zero-order hold and records Samples
// points spaced Ts apart, the first being x0.
func Sample(ctx context.Context, sys dynamo.System, integ dynamo.Integrator, ctrl dynamo.Controller, x0 dynamo.State, cfg SampleConfig) (*Record, error) {
	if cfg.Ts <= 0 {
		return nil, fmt.Errorf("ts must be positive, got %f", cfg.Ts)
	}
	if cfg.Samples < 1 {
		return nil, fmt.Errorf("%w: samples must be positive, got %d", dynamo.ErrInsufficientData, cfg.Samples)
	}
	if len(x0) != sys.StateDim() {
		return nil, dynamo.Mismatch("x0 length", sys.StateDim(), len(x0))
	}

	rec := &Record{
		Times:    make([]float64, 0, cfg.Samples),
		States:   make([]dynamo.State, 0, cfg.Samples),
		Controls: make([]dynamo.Control, 0, cfg.Samples),
	}

	x := x0.Clone()
	t := 0.0
	for i := 0; i < cfg.Samples; i++ {
		select {
		case <-ctx.Done():
			return rec, ctx.Err()
		default:
		}

		u := ctrl.Compute(x, t)
		if len(u) != sys.ControlDim() {
			return nil, dynamo.Mismatch("control length", sys.ControlDim(), len(u))
		}

		rec.Times = append(rec.Times, t)
		rec.States = append(rec.States, x.Clone())
		rec.Controls = append(rec.Controls, append(dynamo.Control(nil), u...))

		x = integ.Step(sys, x, u, t, cfg.Ts)
		t = float64(i+1) * cfg.Ts

		if cfg.ValidateState && !x.IsValid() {
			return rec, &dynamo.StepError{Step: i, Time: t, Wrapped: dynamo.ErrInvalidState}
		}
	}
	return rec, nil
}
