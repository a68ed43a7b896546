package control

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/san-kum/dynid/internal/dynamo"
)

type Constant struct {
	U dynamo.Control
}

func NewConstant(u ...float64) *Constant {
	return &Constant{U: u}
}

func (c *Constant) Compute(x dynamo.State, t float64) dynamo.Control {
	return append(dynamo.Control(nil), c.U...)
}

// Steps holds a level drawn uniformly from [Offset-Amplitude,
// Offset+Amplitude] for Hold seconds, then draws the next one.
type Steps struct {
	Offset    float64
	Amplitude float64
	Hold      float64

	dist   distuv.Uniform
	levels []float64
}

func NewSteps(offset, amplitude, hold float64, src rand.Source) *Steps {
	return &Steps{
		Offset:    offset,
		Amplitude: amplitude,
		Hold:      hold,
		dist:      distuv.Uniform{Min: -1, Max: 1, Src: src},
	}
}

// Level returns the level of the k-th hold interval.
func (s *Steps) Level(k int) float64 {
	for len(s.levels) <= k {
		s.levels = append(s.levels, s.Offset+s.Amplitude*s.dist.Rand())
	}
	return s.levels[k]
}

func (s *Steps) Compute(x dynamo.State, t float64) dynamo.Control {
	k := 0
	if s.Hold > 0 {
		k = int(math.Floor(t/s.Hold + 1e-9))
	}
	return dynamo.Control{s.Level(k)}
}

// Multisine is Offset + Amplitude·Σ sin(2πf·t + φ) / len(Freqs).
type Multisine struct {
	Offset    float64
	Amplitude float64
	Freqs     []float64
	Phases    []float64
}

func NewMultisine(offset, amplitude float64, freqs []float64, src rand.Source) *Multisine {
	dist := distuv.Uniform{Min: 0, Max: 2 * math.Pi, Src: src}
	phases := make([]float64, len(freqs))
	for i := range phases {
		phases[i] = dist.Rand()
	}
	return &Multisine{Offset: offset, Amplitude: amplitude, Freqs: freqs, Phases: phases}
}

func (m *Multisine) Compute(x dynamo.State, t float64) dynamo.Control {
	s := 0.0
	for i, f := range m.Freqs {
		s += math.Sin(2*math.Pi*f*t + m.Phases[i])
	}
	if len(m.Freqs) > 0 {
		s /= float64(len(m.Freqs))
	}
	return dynamo.Control{m.Offset + m.Amplitude*s}
}

type sum []dynamo.Controller

// Sum adds the outputs of several controllers of equal dimension.
func Sum(ctrls ...dynamo.Controller) dynamo.Controller {
	return sum(ctrls)
}

func (s sum) Compute(x dynamo.State, t float64) dynamo.Control {
	var u dynamo.Control
	for _, c := range s {
		v := c.Compute(x, t)
		if u == nil {
			u = make(dynamo.Control, len(v))
		}
		for i := range u {
			u[i] += v[i]
		}
	}
	return u
}
