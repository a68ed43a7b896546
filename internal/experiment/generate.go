package experiment

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/san-kum/dynid/internal/config"
	"github.com/san-kum/dynid/internal/control"
	"github.com/san-kum/dynid/internal/dataset"
	"github.com/san-kum/dynid/internal/dynamo"
	"github.com/san-kum/dynid/internal/physics"
	"github.com/san-kum/dynid/internal/sim"
)

// Generate simulates cfg.System under its configured excitation and returns
// the unscaled record. Outputs are the state columns named by
// cfg.Columns.Outputs, or C·x for the linear system.
func (r *Registry) Generate(ctx context.Context, cfg *config.Config) (*dataset.Series, error) {
	g := cfg.Generator
	if g.Samples < 2 {
		return nil, fmt.Errorf("%w: generator needs at least 2 samples, got %d", dynamo.ErrInsufficientData, g.Samples)
	}
	src := rand.NewPCG(uint64(cfg.Seed), 0xda7a)
	excite, err := r.GetExcitation(g, src)
	if err != nil {
		return nil, err
	}

	if cfg.System == "linear" {
		return generateLinear(cfg, excite)
	}

	sys, err := r.GetSystem(cfg.System)
	if err != nil {
		return nil, err
	}
	if len(g.Params) > 0 {
		c, ok := sys.(dynamo.Configurable)
		if !ok {
			return nil, fmt.Errorf("system %s has no tunable params", cfg.System)
		}
		for name, v := range g.Params {
			if err := c.SetParam(name, v); err != nil {
				return nil, fmt.Errorf("%s: %w", cfg.System, err)
			}
		}
	}
	integ, err := r.GetIntegrator(g.Integrator, g.Substeps)
	if err != nil {
		return nil, err
	}

	ctrl := excite
	if cp, ok := sys.(*physics.CartPole); ok {
		lqr, err := control.NewCartPoleLQR(cp, g.Ts)
		if err != nil {
			return nil, fmt.Errorf("cartpole stabilizer: %w", err)
		}
		ctrl = control.Sum(lqr, excite)
	}

	rec, err := sim.Sample(ctx, sys, integ, ctrl, dynamo.State(g.InitState), sim.SampleConfig{
		Ts:            g.Ts,
		Samples:       g.Samples,
		ValidateState: true,
	})
	if err != nil {
		return nil, err
	}

	names := cfg.Columns.States
	if len(names) == 0 {
		names = r.StateNames(cfg.System)
	}
	outIdx, err := outputStates(cfg.Columns.Outputs, names)
	if err != nil {
		return nil, err
	}

	s := &dataset.Series{Time: rec.Times}
	for k := range rec.Times {
		x := rec.States[k].Float32()
		y := make([]float32, len(outIdx))
		for c, i := range outIdx {
			y[c] = x[i]
		}
		s.U = append(s.U, dynamo.State(rec.Controls[k]).Float32())
		s.X = append(s.X, x)
		s.Y = append(s.Y, y)
	}
	return s, nil
}

func generateLinear(cfg *config.Config, excite dynamo.Controller) (*dataset.Series, error) {
	g := cfg.Generator
	a, err := config.Matrix(g.A)
	if err != nil {
		return nil, fmt.Errorf("generator.a: %w", err)
	}
	b, err := config.Matrix(g.B)
	if err != nil {
		return nil, fmt.Errorf("generator.b: %w", err)
	}
	c, err := config.Matrix(g.C)
	if err != nil {
		return nil, fmt.Errorf("generator.c: %w", err)
	}
	if a == nil || b == nil || c == nil {
		return nil, fmt.Errorf("linear system needs generator.a, generator.b and generator.c")
	}

	sys, err := physics.NewLinearSystem(a, b, c, nil, g.InitState)
	if err != nil {
		return nil, err
	}

	inputs := make([][]float64, g.Samples)
	for k := range inputs {
		inputs[k] = excite.Compute(nil, float64(k)*g.Ts)
	}
	xs, ys, err := sys.Simulate(inputs)
	if err != nil {
		return nil, err
	}

	s := &dataset.Series{}
	for k := range inputs {
		s.Time = append(s.Time, float64(k)*g.Ts)
		s.U = append(s.U, dynamo.State(inputs[k]).Float32())
		s.X = append(s.X, dynamo.State(xs[k]).Float32())
		s.Y = append(s.Y, dynamo.State(ys[k]).Float32())
	}
	return s, nil
}

// outputStates maps each output column onto the index of the state column
// with the same name.
func outputStates(outputs, states []string) ([]int, error) {
	stateIdx := make(map[string]int, len(states))
	for i, n := range states {
		stateIdx[n] = i
	}
	idx := make([]int, len(outputs))
	for c, n := range outputs {
		i, ok := stateIdx[n]
		if !ok {
			return nil, fmt.Errorf("output column %q is not a state column", n)
		}
		idx[c] = i
	}
	return idx, nil
}
