package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/dynid/internal/dynamo"
)

// Linear is the purely linear residual dx = A·x + B·u with trainable A, B.
type Linear struct {
	nx, nu int
	a, b   *dynamo.Param
}

func NewLinear(nx, nu int, opts ...Option) (*Linear, error) {
	if err := checkDims(nx, nu, 1); err != nil {
		return nil, err
	}
	o := buildOptions(opts)

	l := &Linear{
		nx: nx,
		nu: nu,
		a:  dynamo.NewParam("A", nx, nx),
		b:  dynamo.NewParam("B", nx, nu),
	}
	if err := fill(l.a, o.initA, nx, nx); err != nil {
		return nil, fmt.Errorf("initial A: %w", err)
	}
	if err := fill(l.b, o.initB, nx, nu); err != nil {
		return nil, fmt.Errorf("initial B: %w", err)
	}
	return l, nil
}

func fill(p *dynamo.Param, m *mat.Dense, rows, cols int) error {
	if m == nil {
		return nil
	}
	if r, c := m.Dims(); r != rows || c != cols {
		return fmt.Errorf("%w: got %dx%d, want %dx%d", dynamo.ErrDimensionMismatch, r, c, rows, cols)
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			p.Data[i*cols+j] = float32(m.At(i, j))
		}
	}
	return nil
}

func (l *Linear) Variant() Variant { return LinearVariant }
func (l *Linear) StateDim() int    { return l.nx }
func (l *Linear) InputDim() int    { return l.nu }

// Matrices returns copies of the current A and B.
func (l *Linear) Matrices() (a, b *mat.Dense) {
	a = mat.NewDense(l.nx, l.nx, nil)
	for i := 0; i < l.nx; i++ {
		for j := 0; j < l.nx; j++ {
			a.Set(i, j, float64(l.a.Data[i*l.nx+j]))
		}
	}
	if l.nu == 0 {
		return a, nil
	}
	b = mat.NewDense(l.nx, l.nu, nil)
	for i := 0; i < l.nx; i++ {
		for j := 0; j < l.nu; j++ {
			b.Set(i, j, float64(l.b.Data[i*l.nu+j]))
		}
	}
	return a, b
}

func (l *Linear) Eval(x, u []float32) []float32 {
	dx := make([]float64, l.nx)
	for i := 0; i < l.nx; i++ {
		s := 0.0
		arow := l.a.Data[i*l.nx : (i+1)*l.nx]
		for j, v := range x {
			s += float64(arow[j]) * float64(v)
		}
		brow := l.b.Data[i*l.nu : (i+1)*l.nu]
		for j, v := range u {
			s += float64(brow[j]) * float64(v)
		}
		dx[i] = s
	}
	return round32(dx)
}

func (l *Linear) EvalBatch(xs, us [][]float32) [][]float32 {
	return evalRows(l, xs, us)
}

func (l *Linear) Backward(x, u []float32, g []float64) []float64 {
	gx := make([]float64, l.nx)
	for i, gi := range g {
		if gi == 0 {
			continue
		}
		for j, v := range x {
			l.a.Grad[i*l.nx+j] += gi * float64(v)
			gx[j] += gi * float64(l.a.Data[i*l.nx+j])
		}
		for j, v := range u {
			l.b.Grad[i*l.nu+j] += gi * float64(v)
		}
	}
	return gx
}

func (l *Linear) Params() []*dynamo.Param {
	return []*dynamo.Param{l.a, l.b}
}
