package models

import (
	"fmt"

	"github.com/san-kum/dynid/internal/dynamo"
)

type Variant string

const (
	FreeFormVariant       Variant = "free-form"
	ResidualLinearVariant Variant = "residual-plus-linear"
	LinearVariant         Variant = "pure-linear"
)

func ParseVariant(s string) (Variant, error) {
	switch v := Variant(s); v {
	case FreeFormVariant, ResidualLinearVariant, LinearVariant:
		return v, nil
	default:
		return "", fmt.Errorf("unknown model variant: %s", s)
	}
}

// Residual is a parametric state increment function.
//
// Eval and EvalBatch must not be called with vectors whose lengths differ
// from StateDim/InputDim; the simulator checks shapes before rolling out.
type Residual interface {
	Variant() Variant
	StateDim() int
	InputDim() int

	Eval(x, u []float32) []float32
	EvalBatch(xs, us [][]float32) [][]float32

	// Backward accumulates the parameter gradient of g·f(x, u) into the
	// Grad slices of Params and returns its gradient with respect to x.
	Backward(x, u []float32, g []float64) []float64

	Params() []*dynamo.Param
}

func evalRows(m Residual, xs, us [][]float32) [][]float32 {
	out := make([][]float32, len(xs))
	for i := range xs {
		var u []float32
		if i < len(us) {
			u = us[i]
		}
		out[i] = m.Eval(xs[i], u)
	}
	return out
}

// concat widens x and u into one float64 vector.
func concat(x, u []float32) []float64 {
	in := make([]float64, len(x)+len(u))
	for i, v := range x {
		in[i] = float64(v)
	}
	for i, v := range u {
		in[len(x)+i] = float64(v)
	}
	return in
}

func round32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

// ZeroGrad clears the gradients of every parameter of m.
func ZeroGrad(m Residual) {
	for _, p := range m.Params() {
		p.ZeroGrad()
	}
}

// NumParams counts the trainable scalars of m.
func NumParams(m Residual) int {
	n := 0
	for _, p := range m.Params() {
		n += p.Len()
	}
	return n
}
