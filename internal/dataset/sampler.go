package dataset

import (
	"fmt"
	"math/rand/v2"

	"github.com/san-kum/dynid/internal/dynamo"
)

// StateSource provides the state at each fit sample. It is read at every
// Sample call, so a source backed by a trainable latent sequence yields its
// current values.
type StateSource interface {
	Len() int
	Row(i int) []float32
}

// Rows adapts a fixed matrix to StateSource.
type Rows [][]float32

func (r Rows) Len() int             { return len(r) }
func (r Rows) Row(i int) []float32 { return r[i] }

// ParamSource exposes an N×n_x parameter as a StateSource.
type ParamSource struct {
	P *dynamo.Param
}

func (p ParamSource) Len() int             { return p.P.Shape[0] }
func (p ParamSource) Row(i int) []float32 { return p.P.Row(i) }

// Batch is a set of equal-length windows drawn from distinct start offsets.
type Batch struct {
	Starts []int
	X0     [][]float32
	U      [][][]float32
	Target [][][]float32
	States [][][]float32
}

func (b *Batch) Size() int { return len(b.Starts) }

type Sampler struct {
	n       int
	inputs  [][]float32
	targets [][]float32
	states  StateSource
	rng     *rand.Rand
}

type SamplerOption func(*Sampler)

// WithStateSource overrides the measured states used for x0 and the state
// windows.
func WithStateSource(src StateSource) SamplerOption {
	return func(s *Sampler) { s.states = src }
}

// WithTargets overrides the default target rows (the measured outputs).
func WithTargets(rows [][]float32) SamplerOption {
	return func(s *Sampler) { s.targets = rows }
}

func NewSampler(series *Series, rng *rand.Rand, opts ...SamplerOption) (*Sampler, error) {
	s := &Sampler{
		n:       series.Len(),
		inputs:  series.U,
		targets: series.Y,
		rng:     rng,
	}
	if series.HasStates() {
		s.states = Rows(series.X)
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.states == nil {
		return nil, fmt.Errorf("%w: sampler needs measured states or a state source", dynamo.ErrDimensionMismatch)
	}
	if len(s.inputs) != s.n {
		return nil, dynamo.Mismatch("sampler input rows", s.n, len(s.inputs))
	}
	if len(s.targets) != s.n {
		return nil, dynamo.Mismatch("sampler target rows", s.n, len(s.targets))
	}
	if s.states.Len() != s.n {
		return nil, dynamo.Mismatch("sampler state rows", s.n, s.states.Len())
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(0, 0))
	}
	return s, nil
}

func (s *Sampler) Len() int { return s.n }

// Sample draws B distinct start offsets uniformly from {0, ..., N-L-1} and
// returns the length-L windows at each of them.
func (s *Sampler) Sample(B, L int) (*Batch, error) {
	if B < 1 || L < 1 {
		return nil, fmt.Errorf("%w: batch size %d and sequence length %d must be positive", dynamo.ErrInsufficientData, B, L)
	}
	if s.n <= L {
		return nil, fmt.Errorf("%w: %d samples for sequence length %d", dynamo.ErrInsufficientData, s.n, L)
	}
	avail := s.n - L
	if B > avail {
		return nil, fmt.Errorf("%w: batch size %d exceeds %d distinct starts", dynamo.ErrInsufficientData, B, avail)
	}

	starts := s.draw(B, avail)
	b := &Batch{
		Starts: starts,
		X0:     make([][]float32, B),
		U:      make([][][]float32, B),
		Target: make([][][]float32, B),
		States: make([][][]float32, B),
	}
	for i, start := range starts {
		b.X0[i] = append([]float32(nil), s.states.Row(start)...)
		b.U[i] = s.inputs[start : start+L]
		b.Target[i] = s.targets[start : start+L]
		win := make([][]float32, L)
		for k := range win {
			win[k] = s.states.Row(start + k)
		}
		b.States[i] = win
	}
	return b, nil
}

// draw is a partial Fisher-Yates shuffle of [0, n).
func (s *Sampler) draw(k, n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + s.rng.IntN(n-i)
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm[:k]
}
