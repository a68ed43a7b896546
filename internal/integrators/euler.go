package integrators

import "github.com/san-kum/dynid/internal/dynamo"

// Euler is the explicit forward-Euler step, optionally split into equal
// sub-steps across one sampling interval.
type Euler struct {
	Substeps int
}

func NewEuler() *Euler {
	return &Euler{Substeps: 1}
}

func (e *Euler) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t float64, dt float64) dynamo.State {
	n := substeps(e.Substeps)
	h := dt / float64(n)
	result := x.Clone()
	for s := 0; s < n; s++ {
		dx := dyn.Derive(result, u, t+float64(s)*h)
		for i := range result {
			result[i] += h * dx[i]
		}
	}
	return result
}

func substeps(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
