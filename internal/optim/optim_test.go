package optim

import (
	"math"
	"testing"

	"github.com/san-kum/dynid/internal/dynamo"
)

// minimize runs steps of opt on f(p) = sum (p_i - target_i)^2.
func minimize(opt Optimizer, target []float32, steps int) *dynamo.Param {
	p := dynamo.NewParam("w", len(target))
	for s := 0; s < steps; s++ {
		p.ZeroGrad()
		for i := range p.Data {
			p.Grad[i] = 2 * float64(p.Data[i]-target[i])
		}
		opt.Step([]*dynamo.Param{p})
	}
	return p
}

func TestOptimizersConverge(t *testing.T) {
	target := []float32{1, -2, 0.5}
	tests := []struct {
		name  string
		opt   Optimizer
		steps int
	}{
		{"adam", NewAdam(0.05), 2000},
		{"sgd", NewSGD(0.1, 0), 200},
		{"momentum", NewSGD(0.05, 0.9), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := minimize(tt.opt, target, tt.steps)
			for i := range target {
				if math.Abs(float64(p.Data[i]-target[i])) > 1e-2 {
					t.Errorf("w[%d] = %v, want %v", i, p.Data[i], target[i])
				}
			}
		})
	}
}

func TestAdamFirstStepIsLearningRate(t *testing.T) {
	p := dynamo.NewParam("w", 2)
	p.Grad[0] = 3
	p.Grad[1] = -0.001
	NewAdam(0.01).Step([]*dynamo.Param{p})

	if math.Abs(float64(p.Data[0])+0.01) > 1e-6 {
		t.Errorf("w[0] = %v, want -0.01", p.Data[0])
	}
	if math.Abs(float64(p.Data[1])-0.01) > 1e-5 {
		t.Errorf("w[1] = %v, want 0.01", p.Data[1])
	}
}

func TestNew(t *testing.T) {
	for _, name := range Names() {
		opt, err := New(name, 1e-3)
		if err != nil {
			t.Fatalf("New(%s): %v", name, err)
		}
		if opt.Name() != name {
			t.Errorf("Name() = %s, want %s", opt.Name(), name)
		}
	}
	if _, err := New("lbfgs", 1e-3); err == nil {
		t.Error("expected error for unknown optimizer")
	}
	if _, err := New("adam", 0); err == nil {
		t.Error("expected error for zero learning rate")
	}
}
