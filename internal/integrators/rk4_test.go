package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/dynid/internal/dynamo"
)

type harmonicOscillator struct{}

func (h *harmonicOscillator) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{x[1], -x[0]}
}

func (h *harmonicOscillator) StateDim() int   { return 2 }
func (h *harmonicOscillator) ControlDim() int { return 0 }

type forcedDecay struct{}

func (f *forcedDecay) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	return dynamo.State{-x[0] + u[0]}
}

func (f *forcedDecay) StateDim() int   { return 1 }
func (f *forcedDecay) ControlDim() int { return 1 }

func TestRK4Accuracy(t *testing.T) {
	dyn := &harmonicOscillator{}
	integ := NewRK4()

	x := dynamo.State{1.0, 0.0}
	dt := 0.01
	steps := 100

	for i := 0; i < steps; i++ {
		x = integ.Step(dyn, x, nil, float64(i)*dt, dt)
	}

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)

	if math.Abs(x[0]-expectedX) > 1e-4 {
		t.Errorf("position error too large: got %.6f, expected %.6f", x[0], expectedX)
	}
	if math.Abs(x[1]-expectedV) > 1e-4 {
		t.Errorf("velocity error too large: got %.6f, expected %.6f", x[1], expectedV)
	}
}

func TestRK4_SubstepsMatchFinerGrid(t *testing.T) {
	dyn := &harmonicOscillator{}
	coarse := NewRK4Substeps(10)
	fine := NewRK4()

	xc := dynamo.State{1.0, 0.0}
	xf := xc.Clone()

	xc = coarse.Step(dyn, xc, nil, 0, 0.1)
	for i := 0; i < 10; i++ {
		xf = fine.Step(dyn, xf, nil, float64(i)*0.01, 0.01)
	}

	for i := range xc {
		if math.Abs(xc[i]-xf[i]) > 1e-12 {
			t.Errorf("component %d: substep %.12f vs fine %.12f", i, xc[i], xf[i])
		}
	}
}

func TestStepDoesNotMutateInput(t *testing.T) {
	dyn := &forcedDecay{}
	x := dynamo.State{1.0}

	for _, integ := range []dynamo.Integrator{NewEuler(), NewRK4()} {
		_ = integ.Step(dyn, x, dynamo.Control{0.5}, 0, 0.1)
		if x[0] != 1.0 {
			t.Fatalf("%T mutated input state: %v", integ, x)
		}
	}
}

func TestEulerConvergesToForcedEquilibrium(t *testing.T) {
	dyn := &forcedDecay{}
	integ := NewEuler()
	integ.Substeps = 4

	x := dynamo.State{0}
	for i := 0; i < 2000; i++ {
		x = integ.Step(dyn, x, dynamo.Control{2}, float64(i)*0.01, 0.01)
	}

	if math.Abs(x[0]-2) > 1e-3 {
		t.Errorf("expected equilibrium 2, got %.6f", x[0])
	}
}
