package dynamo

import (
	"math"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (s State) Norm() float64 {
	sum := 0.0
	for _, v := range s {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Float32 rounds the state to single precision.
func (s State) Float32() []float32 {
	out := make([]float32, len(s))
	for i, v := range s {
		out[i] = float32(v)
	}
	return out
}

type Control []float64

type System interface {
	Derive(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn System, x State, u Control, t float64, dt float64) State
}

type Controller interface {
	Compute(x State, t float64) Control
}

// Param is a named trainable tensor. Data is float32 to match the scale of
// the measured records; gradients accumulate in float64.
type Param struct {
	Name  string
	Shape []int
	Data  []float32
	Grad  []float64
}

func NewParam(name string, shape ...int) *Param {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Param{
		Name:  name,
		Shape: append([]int(nil), shape...),
		Data:  make([]float32, n),
		Grad:  make([]float64, n),
	}
}

func (p *Param) Len() int { return len(p.Data) }

func (p *Param) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// Row returns the i-th row of a 2-D param as a slice aliasing Data.
func (p *Param) Row(i int) []float32 {
	cols := p.Shape[len(p.Shape)-1]
	return p.Data[i*cols : (i+1)*cols]
}

// GradRow returns the i-th row of the gradient, aliasing Grad.
func (p *Param) GradRow(i int) []float64 {
	cols := p.Shape[len(p.Shape)-1]
	return p.Grad[i*cols : (i+1)*cols]
}

func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Configurable systems expose named physical parameters for overrides.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}
