package control

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/dynid/internal/dynamo"
	"github.com/san-kum/dynid/internal/physics"
)

var ErrNoConvergence = errors.New("control: riccati iteration did not converge")

type LQR struct {
	K      *mat.Dense
	Target dynamo.State
}

func NewLQR(k [][]float64, target dynamo.State) *LQR {
	rows, cols := len(k), len(k[0])
	K := mat.NewDense(rows, cols, nil)
	for i := range k {
		for j := range k[i] {
			K.Set(i, j, k[i][j])
		}
	}
	return &LQR{K: K, Target: target}
}

func (l *LQR) Compute(x dynamo.State, t float64) dynamo.Control {
	rows, cols := l.K.Dims()
	u := make(dynamo.Control, rows)
	for i := range u {
		for j := 0; j < cols && j < len(x); j++ {
			target := 0.0
			if j < len(l.Target) {
				target = l.Target[j]
			}
			u[i] -= l.K.At(i, j) * (x[j] - target)
		}
	}
	return u
}

// DesignLQR solves the discrete algebraic Riccati equation for (A, B, Q, R)
// by fixed-point iteration and returns the optimal gain
// K = (R + BᵀPB)⁻¹ BᵀPA.
func DesignLQR(a, b, q, r *mat.Dense) (*mat.Dense, error) {
	n, _ := a.Dims()
	_, m := b.Dims()

	p := mat.DenseCopyOf(q)
	k := mat.NewDense(m, n, nil)
	for iter := 0; iter < 100000; iter++ {
		var bp, s, pa mat.Dense
		bp.Mul(b.T(), p)
		s.Mul(&bp, b)
		s.Add(&s, r)
		pa.Mul(&bp, a)

		if err := k.Solve(&s, &pa); err != nil {
			return nil, fmt.Errorf("lqr gain: %w", err)
		}

		var ap, apa, correction, next mat.Dense
		ap.Mul(a.T(), p)
		apa.Mul(&ap, a)
		correction.Mul(pa.T(), k)
		next.Sub(&apa, &correction)
		next.Add(&next, q)

		var diff mat.Dense
		diff.Sub(&next, p)
		p = &next
		if mat.Norm(&diff, math.Inf(1)) < 1e-10*math.Max(1, mat.Norm(p, math.Inf(1))) {
			return k, nil
		}
	}
	return nil, ErrNoConvergence
}

// NewCartPoleLQR balances the pole upright, designed on the linearization of
// sys about the origin discretized with step ts.
func NewCartPoleLQR(sys *physics.CartPole, ts float64) (*LQR, error) {
	ac, bc := physics.Linearize(sys, dynamo.State{0, 0, 0, 0}, dynamo.Control{0})
	a, b := physics.Discretize(ac, bc, ts)

	q := mat.NewDiagDense(4, []float64{1, 1, 10, 1})
	r := mat.NewDense(1, 1, []float64{0.1})
	k, err := DesignLQR(a, b, mat.DenseCopyOf(q), r)
	if err != nil {
		return nil, err
	}
	return &LQR{K: k, Target: dynamo.State{0, 0, 0, 0}}, nil
}
