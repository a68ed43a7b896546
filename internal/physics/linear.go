package physics

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/dynid/internal/dynamo"
)

// LinearSystem is a discrete-time linear state-space model
//
//	x[k+1] = A*x[k] + B*u[k]
//	y[k]   = C*x[k] + D*u[k]
//
// D may be nil. The state is mutated by Update.
type LinearSystem struct {
	A *mat.Dense
	B *mat.Dense
	C *mat.Dense
	D *mat.Dense

	x *mat.VecDense
}

// NewLinearSystem checks that A is nx×nx, B is nx×nu, C is ny×nx and, when
// given, D is ny×nu. A nil x0 starts from the origin.
func NewLinearSystem(A, B, C, D *mat.Dense, x0 []float64) (*LinearSystem, error) {
	if A == nil || B == nil || C == nil {
		return nil, fmt.Errorf("%w: A, B and C must be defined", dynamo.ErrDimensionMismatch)
	}

	nx, ac := A.Dims()
	if nx != ac {
		return nil, dynamo.Mismatch("A columns", nx, ac)
	}
	br, nu := B.Dims()
	if br != nx {
		return nil, dynamo.Mismatch("B rows", nx, br)
	}
	ny, cc := C.Dims()
	if cc != nx {
		return nil, dynamo.Mismatch("C columns", nx, cc)
	}
	if D != nil {
		dr, dc := D.Dims()
		if dr != ny {
			return nil, dynamo.Mismatch("D rows", ny, dr)
		}
		if dc != nu {
			return nil, dynamo.Mismatch("D columns", nu, dc)
		}
	}

	s := &LinearSystem{A: A, B: B, C: C, D: D}
	if err := s.Reset(x0); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LinearSystem) Dims() (nx, nu, ny int) {
	nx, _ = s.A.Dims()
	_, nu = s.B.Dims()
	ny, _ = s.C.Dims()
	return nx, nu, ny
}

// Reset sets the state to x0, or to zero when x0 is nil.
func (s *LinearSystem) Reset(x0 []float64) error {
	nx, _, _ := s.Dims()
	if x0 == nil {
		s.x = mat.NewVecDense(nx, nil)
		return nil
	}
	if len(x0) != nx {
		return dynamo.Mismatch("x0", nx, len(x0))
	}
	s.x = mat.NewVecDense(nx, append([]float64(nil), x0...))
	return nil
}

// Update advances the state one step: x := A*x + B*u.
func (s *LinearSystem) Update(u []float64) error {
	_, nu, _ := s.Dims()
	if len(u) != nu {
		return dynamo.Mismatch("input", nu, len(u))
	}

	next := mat.NewVecDense(s.x.Len(), nil)
	next.MulVec(s.A, s.x)
	if nu > 0 {
		bu := mat.NewVecDense(s.x.Len(), nil)
		bu.MulVec(s.B, mat.NewVecDense(nu, append([]float64(nil), u...)))
		next.AddVec(next, bu)
	}
	s.x = next
	return nil
}

// Output returns y = C*x, adding D*u when u is non-nil and D is defined.
func (s *LinearSystem) Output(u []float64) ([]float64, error) {
	_, nu, ny := s.Dims()

	y := mat.NewVecDense(ny, nil)
	y.MulVec(s.C, s.x)

	if u != nil && s.D != nil {
		if len(u) != nu {
			return nil, dynamo.Mismatch("input", nu, len(u))
		}
		du := mat.NewVecDense(ny, nil)
		du.MulVec(s.D, mat.NewVecDense(nu, append([]float64(nil), u...)))
		y.AddVec(y, du)
	}
	return mat.Col(nil, 0, y), nil
}

// State returns a copy of the current state.
func (s *LinearSystem) State() dynamo.State {
	return dynamo.State(mat.Col(nil, 0, s.x))
}

// Simulate records the state and output before each update, so xs[0] is the
// current state and len(xs) == len(inputs).
func (s *LinearSystem) Simulate(inputs [][]float64) (xs, ys [][]float64, err error) {
	xs = make([][]float64, 0, len(inputs))
	ys = make([][]float64, 0, len(inputs))
	for k, u := range inputs {
		y, err := s.Output(u)
		if err != nil {
			return nil, nil, fmt.Errorf("step %d: %w", k, err)
		}
		xs = append(xs, s.State())
		ys = append(ys, y)
		if err := s.Update(u); err != nil {
			return nil, nil, fmt.Errorf("step %d: %w", k, err)
		}
	}
	return xs, ys, nil
}
