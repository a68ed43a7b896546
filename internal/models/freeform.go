package models

import (
	"fmt"

	"github.com/san-kum/dynid/internal/dynamo"
)

// FreeForm is a two-layer network over the concatenated (x, u) vector.
type FreeForm struct {
	nx, nu int
	net    *mlp
}

func NewFreeForm(nx, nu, nFeat int, opts ...Option) (*FreeForm, error) {
	if err := checkDims(nx, nu, nFeat); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	return &FreeForm{
		nx:  nx,
		nu:  nu,
		net: newMLP(nx+nu, nFeat, nx, o.initStd, o.src),
	}, nil
}

func checkDims(nx, nu, nFeat int) error {
	if nx < 1 {
		return fmt.Errorf("%w: n_x must be positive, got %d", dynamo.ErrDimensionMismatch, nx)
	}
	if nu < 0 {
		return fmt.Errorf("%w: n_u must be non-negative, got %d", dynamo.ErrDimensionMismatch, nu)
	}
	if nFeat < 1 {
		return fmt.Errorf("%w: n_feat must be positive, got %d", dynamo.ErrDimensionMismatch, nFeat)
	}
	return nil
}

func (f *FreeForm) Variant() Variant { return FreeFormVariant }
func (f *FreeForm) StateDim() int    { return f.nx }
func (f *FreeForm) InputDim() int    { return f.nu }
func (f *FreeForm) Features() int    { return f.net.nFeat }

func (f *FreeForm) Eval(x, u []float32) []float32 {
	return round32(f.net.forward(concat(x, u)))
}

func (f *FreeForm) EvalBatch(xs, us [][]float32) [][]float32 {
	return evalRows(f, xs, us)
}

func (f *FreeForm) Backward(x, u []float32, g []float64) []float64 {
	gin := f.net.backward(concat(x, u), g)
	return gin[:f.nx]
}

func (f *FreeForm) Params() []*dynamo.Param {
	return f.net.params()
}
