package models

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/dynid/internal/dynamo"
)

func TestZeroInitIsIdentityResidual(t *testing.T) {
	aKnown := mat.NewDense(2, 2, nil)
	ff, _ := NewFreeForm(2, 1, 8, WithInitStd(0))
	rl, _ := NewResidualLinear(2, 1, 8, aKnown, nil, WithInitStd(0))
	lin, _ := NewLinear(2, 1)

	for _, m := range []Residual{ff, rl, lin} {
		dx := m.Eval([]float32{1.5, -2}, []float32{3})
		for i, v := range dx {
			if v != 0 {
				t.Errorf("%s: dx[%d] = %v, want 0", m.Variant(), i, v)
			}
		}
	}
}

func TestEvalBatchMatchesEval(t *testing.T) {
	m, err := NewFreeForm(3, 2, 16, WithInitStd(0.3), WithSeed(7))
	if err != nil {
		t.Fatal(err)
	}
	xs := [][]float32{{0.1, 0.2, 0.3}, {-1, 0.5, 2}, {0, 0, 0}}
	us := [][]float32{{1, -1}, {0.3, 0.7}, {0, 0}}

	batch := m.EvalBatch(xs, us)
	for i := range xs {
		single := m.Eval(xs[i], us[i])
		for j := range single {
			if batch[i][j] != single[j] {
				t.Errorf("row %d col %d: batch %v, single %v", i, j, batch[i][j], single[j])
			}
		}
	}
}

func TestResidualLinearKnownTerms(t *testing.T) {
	a := mat.NewDense(2, 2, []float64{0, 0.1, -0.2, 0})
	b := mat.NewDense(2, 1, []float64{0, 0.5})
	m, err := NewResidualLinear(2, 1, 4, a, b, WithInitStd(0))
	if err != nil {
		t.Fatal(err)
	}
	dx := m.Eval([]float32{1, 2}, []float32{4})
	want := []float32{0.2, 1.8}
	for i := range want {
		if math.Abs(float64(dx[i]-want[i])) > 1e-6 {
			t.Errorf("dx[%d] = %v, want %v", i, dx[i], want[i])
		}
	}
}

func TestLinearInitial(t *testing.T) {
	a := mat.NewDense(1, 1, []float64{-0.5})
	b := mat.NewDense(1, 1, []float64{2})
	m, err := NewLinear(1, 1, WithInitial(a, b))
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Eval([]float32{2}, []float32{1}); got[0] != 1 {
		t.Errorf("Eval = %v, want 1", got[0])
	}
	ga, gb := m.Matrices()
	if ga.At(0, 0) != -0.5 || gb.At(0, 0) != 2 {
		t.Errorf("Matrices = %v, %v", ga, gb)
	}
}

func TestConstructionMismatch(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{"A_known shape", func() error {
			_, err := NewResidualLinear(2, 1, 4, mat.NewDense(3, 3, nil), nil)
			return err
		}},
		{"B_known shape", func() error {
			_, err := NewResidualLinear(2, 1, 4, mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil))
			return err
		}},
		{"output map rows", func() error {
			_, err := NewResidualLinear(2, 1, 4, mat.NewDense(2, 2, nil), nil, WithOutputMap(mat.NewDense(3, 1, nil)))
			return err
		}},
		{"initial A", func() error {
			_, err := NewLinear(2, 1, WithInitial(mat.NewDense(1, 2, nil), nil))
			return err
		}},
		{"zero state", func() error {
			_, err := NewFreeForm(0, 1, 4)
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, dynamo.ErrDimensionMismatch) {
				t.Errorf("got %v, want ErrDimensionMismatch", err)
			}
		})
	}
}

func TestCartPoleStructure(t *testing.T) {
	ts := 0.05
	a, w := CartPoleStructure(ts)
	m, err := NewResidualLinear(4, 1, 8, a, nil, WithOutputMap(w), WithInitStd(0))
	if err != nil {
		t.Fatal(err)
	}
	dx := m.Eval([]float32{0, 2, 0, -4}, []float32{1})
	want := []float64{0.1, 0, -0.2, 0}
	for i := range want {
		if math.Abs(float64(dx[i])-want[i]) > 1e-6 {
			t.Errorf("dx[%d] = %v, want %v", i, dx[i], want[i])
		}
	}
}

// gTf evaluates the scalar g·f(x, u).
func gTf(m Residual, x, u []float32, g []float64) float64 {
	s := 0.0
	for i, v := range m.Eval(x, u) {
		s += g[i] * float64(v)
	}
	return s
}

func checkGradients(t *testing.T, m Residual, x, u []float32, g []float64) {
	t.Helper()
	const eps = 1e-3
	const tol = 2e-2

	ZeroGrad(m)
	gx := m.Backward(x, u, g)

	for j := range x {
		xp := append([]float32(nil), x...)
		xm := append([]float32(nil), x...)
		xp[j] += eps
		xm[j] -= eps
		num := (gTf(m, xp, u, g) - gTf(m, xm, u, g)) / (float64(xp[j]) - float64(xm[j]))
		if math.Abs(num-gx[j]) > tol*math.Max(1, math.Abs(num)) {
			t.Errorf("%s: d/dx[%d] analytic %v, numeric %v", m.Variant(), j, gx[j], num)
		}
	}

	for _, p := range m.Params() {
		for k := range p.Data {
			orig := p.Data[k]
			p.Data[k] = orig + eps
			up := gTf(m, x, u, g)
			hi := p.Data[k]
			p.Data[k] = orig - eps
			down := gTf(m, x, u, g)
			lo := p.Data[k]
			p.Data[k] = orig
			num := (up - down) / float64(hi-lo)
			if math.Abs(num-p.Grad[k]) > tol*math.Max(1, math.Abs(num)) {
				t.Errorf("%s: d/d%s[%d] analytic %v, numeric %v", m.Variant(), p.Name, k, p.Grad[k], num)
			}
		}
	}
}

func TestBackwardMatchesFiniteDifferences(t *testing.T) {
	a := mat.NewDense(3, 3, []float64{0.1, 0, 0.2, 0, -0.3, 0, 0.05, 0.1, 0})
	w := mat.NewDense(3, 2, []float64{1, 0, 0, 1, 0.5, 0.5})

	ff, _ := NewFreeForm(3, 1, 6, WithInitStd(0.5), WithSeed(3))
	rl, _ := NewResidualLinear(3, 1, 6, a, nil, WithOutputMap(w), WithInitStd(0.5), WithSeed(4))
	lin, _ := NewLinear(3, 1, WithInitial(a, mat.NewDense(3, 1, []float64{1, -1, 0.5})))

	x := []float32{0.3, -0.7, 1.1}
	u := []float32{0.4}
	g := []float64{1, -0.5, 2}

	for _, m := range []Residual{ff, rl, lin} {
		checkGradients(t, m, x, u, g)
	}
}

func TestBackwardAccumulates(t *testing.T) {
	m, _ := NewLinear(1, 1)
	x, u := []float32{2}, []float32{3}
	m.Backward(x, u, []float64{1})
	m.Backward(x, u, []float64{1})
	if got := m.Params()[0].Grad[0]; got != 4 {
		t.Errorf("A grad = %v, want 4", got)
	}
	ZeroGrad(m)
	if got := m.Params()[1].Grad[0]; got != 0 {
		t.Errorf("B grad after ZeroGrad = %v", got)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	src, _ := NewFreeForm(2, 1, 5, WithInitStd(0.2), WithSeed(11))
	dst, _ := NewFreeForm(2, 1, 5, WithInitStd(0))

	if err := Restore(dst, Snapshot(src)); err != nil {
		t.Fatal(err)
	}
	x, u := []float32{0.5, -0.5}, []float32{1}
	a, b := src.Eval(x, u), dst.Eval(x, u)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("dx[%d]: %v != %v", i, a[i], b[i])
		}
	}

	other, _ := NewFreeForm(2, 1, 6)
	if err := Restore(other, Snapshot(src)); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("restore into wider model: %v", err)
	}
	lin, _ := NewLinear(2, 1)
	if err := Restore(lin, Snapshot(src)); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("restore into other variant: %v", err)
	}
}

func TestFactory(t *testing.T) {
	tests := []struct {
		spec    Spec
		wantErr bool
	}{
		{Spec{Variant: FreeFormVariant, StateDim: 2, InputDim: 1, Features: 4}, false},
		{Spec{Variant: ResidualLinearVariant, StateDim: 2, InputDim: 1, Features: 4, AKnown: mat.NewDense(2, 2, nil)}, false},
		{Spec{Variant: LinearVariant, StateDim: 2, InputDim: 0}, false},
		{Spec{Variant: "lstm", StateDim: 2}, true},
		{Spec{Variant: ResidualLinearVariant, StateDim: 2, InputDim: 1, Features: 4}, true},
	}
	for _, tt := range tests {
		m, err := New(tt.spec)
		if (err != nil) != tt.wantErr {
			t.Errorf("New(%s): err = %v, wantErr %v", tt.spec.Variant, err, tt.wantErr)
			continue
		}
		if err == nil && m.Variant() != tt.spec.Variant {
			t.Errorf("variant = %s, want %s", m.Variant(), tt.spec.Variant)
		}
	}
	if _, err := ParseVariant("pure-linear"); err != nil {
		t.Error(err)
	}
}
