package physics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/dynid/internal/dynamo"
)

// Linearize returns the Jacobians of sys.Derive at (x0, u0) by central
// differences.
func Linearize(sys dynamo.System, x0 dynamo.State, u0 dynamo.Control) (a, b *mat.Dense) {
	n, m := sys.StateDim(), sys.ControlDim()
	a = mat.NewDense(n, n, nil)
	b = mat.NewDense(n, m, nil)

	for j := 0; j < n; j++ {
		h := 1e-6 * math.Max(1, math.Abs(x0[j]))
		xp, xm := x0.Clone(), x0.Clone()
		xp[j] += h
		xm[j] -= h
		fp, fm := sys.Derive(xp, u0, 0), sys.Derive(xm, u0, 0)
		for i := 0; i < n; i++ {
			a.Set(i, j, (fp[i]-fm[i])/(2*h))
		}
	}
	for j := 0; j < m; j++ {
		h := 1e-6 * math.Max(1, math.Abs(u0[j]))
		up := append(dynamo.Control(nil), u0...)
		um := append(dynamo.Control(nil), u0...)
		up[j] += h
		um[j] -= h
		fp, fm := sys.Derive(x0, up, 0), sys.Derive(x0, um, 0)
		for i := 0; i < n; i++ {
			b.Set(i, j, (fp[i]-fm[i])/(2*h))
		}
	}
	return a, b
}

// Discretize applies forward Euler: A_d = I + Ts·A, B_d = Ts·B.
func Discretize(a, b *mat.Dense, ts float64) (ad, bd *mat.Dense) {
	n, _ := a.Dims()
	ad = mat.NewDense(n, n, nil)
	ad.Scale(ts, a)
	for i := 0; i < n; i++ {
		ad.Set(i, i, ad.At(i, i)+1)
	}
	bd = mat.DenseCopyOf(b)
	bd.Scale(ts, bd)
	return ad, bd
}
