package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/dynid/internal/dynamo"
)

// ResidualLinear adds fixed, non-trainable linear terms to a free-form
// network:
//
//	dx = W·net(x, u) + A_known·x + B_known·u
//
// W is the optional output map (identity when nil). B_known may be nil.
type ResidualLinear struct {
	nx, nu int
	net    *mlp

	aKnown    *mat.Dense
	bKnown    *mat.Dense
	outputMap *mat.Dense
}

func NewResidualLinear(nx, nu, nFeat int, aKnown, bKnown *mat.Dense, opts ...Option) (*ResidualLinear, error) {
	if err := checkDims(nx, nu, nFeat); err != nil {
		return nil, err
	}
	if aKnown == nil {
		return nil, fmt.Errorf("%w: A_known is required", dynamo.ErrDimensionMismatch)
	}
	if r, c := aKnown.Dims(); r != nx || c != nx {
		return nil, fmt.Errorf("%w: A_known is %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, r, c, nx, nx)
	}
	if bKnown != nil {
		if r, c := bKnown.Dims(); r != nx || c != nu {
			return nil, fmt.Errorf("%w: B_known is %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, r, c, nx, nu)
		}
	}

	o := buildOptions(opts)
	nOut := nx
	if o.outputMap != nil {
		r, c := o.outputMap.Dims()
		if r != nx {
			return nil, fmt.Errorf("%w: output map has %d rows, want %d", dynamo.ErrDimensionMismatch, r, nx)
		}
		nOut = c
	}

	return &ResidualLinear{
		nx:        nx,
		nu:        nu,
		net:       newMLP(nx+nu, nFeat, nOut, o.initStd, o.src),
		aKnown:    mat.DenseCopyOf(aKnown),
		bKnown:    denseCopy(bKnown),
		outputMap: denseCopy(o.outputMap),
	}, nil
}

func denseCopy(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	return mat.DenseCopyOf(m)
}

func (r *ResidualLinear) Variant() Variant { return ResidualLinearVariant }
func (r *ResidualLinear) StateDim() int    { return r.nx }
func (r *ResidualLinear) InputDim() int    { return r.nu }
func (r *ResidualLinear) Features() int    { return r.net.nFeat }

func (r *ResidualLinear) Known() (a, b, outputMap *mat.Dense) {
	return r.aKnown, r.bKnown, r.outputMap
}

func (r *ResidualLinear) Eval(x, u []float32) []float32 {
	in := concat(x, u)
	z := r.net.forward(in)

	dx := make([]float64, r.nx)
	for i := 0; i < r.nx; i++ {
		s := 0.0
		if r.outputMap == nil {
			s = z[i]
		} else {
			for k, zk := range z {
				s += r.outputMap.At(i, k) * zk
			}
		}
		for j := 0; j < r.nx; j++ {
			s += r.aKnown.At(i, j) * in[j]
		}
		if r.bKnown != nil {
			for j := 0; j < r.nu; j++ {
				s += r.bKnown.At(i, j) * in[r.nx+j]
			}
		}
		dx[i] = s
	}
	return round32(dx)
}

func (r *ResidualLinear) EvalBatch(xs, us [][]float32) [][]float32 {
	return evalRows(r, xs, us)
}

func (r *ResidualLinear) Backward(x, u []float32, g []float64) []float64 {
	gz := g
	if r.outputMap != nil {
		_, nOut := r.outputMap.Dims()
		gz = make([]float64, nOut)
		for i, gi := range g {
			for k := 0; k < nOut; k++ {
				gz[k] += r.outputMap.At(i, k) * gi
			}
		}
	}

	gin := r.net.backward(concat(x, u), gz)
	gx := gin[:r.nx]
	for i, gi := range g {
		for j := 0; j < r.nx; j++ {
			gx[j] += r.aKnown.At(i, j) * gi
		}
	}
	return gx
}

func (r *ResidualLinear) Params() []*dynamo.Param {
	return r.net.params()
}

// CartPoleStructure returns the fixed terms of the cart-pole residual for
// the state ordering [p, v, theta, omega]: positions integrate velocities
// through A_known and the two network outputs feed the velocity rows.
func CartPoleStructure(ts float64) (aKnown, outputMap *mat.Dense) {
	aKnown = mat.NewDense(4, 4, []float64{
		0, ts, 0, 0,
		0, 0, 0, 0,
		0, 0, 0, ts,
		0, 0, 0, 0,
	})
	outputMap = mat.NewDense(4, 2, []float64{
		0, 0,
		1, 0,
		0, 0,
		0, 1,
	})
	return aKnown, outputMap
}
