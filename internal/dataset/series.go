package dataset

import (
	"fmt"

	"github.com/san-kum/dynid/internal/dynamo"
)

// Series is a uniformly sampled input/output record. X is optional.
type Series struct {
	Time []float64
	U    [][]float32
	Y    [][]float32
	X    [][]float32
}

func (s *Series) Len() int { return len(s.Time) }

func (s *Series) HasStates() bool { return len(s.X) > 0 }

// Ts is the sampling interval t[1]-t[0], or zero for records shorter than two.
func (s *Series) Ts() float64 {
	if len(s.Time) < 2 {
		return 0
	}
	return s.Time[1] - s.Time[0]
}

func (s *Series) InputDim() int  { return width(s.U) }
func (s *Series) OutputDim() int { return width(s.Y) }
func (s *Series) StateDim() int  { return width(s.X) }

func width(rows [][]float32) int {
	if len(rows) == 0 {
		return 0
	}
	return len(rows[0])
}

// Validate checks that every present column has one row per time stamp and
// that rows within a column share a width.
func (s *Series) Validate() error {
	n := len(s.Time)
	if n == 0 {
		return fmt.Errorf("%w: empty series", dynamo.ErrInsufficientData)
	}
	cols := []struct {
		name     string
		rows     [][]float32
		optional bool
	}{
		{"u", s.U, false},
		{"y", s.Y, false},
		{"x", s.X, true},
	}
	for _, c := range cols {
		if c.optional && len(c.rows) == 0 {
			continue
		}
		if len(c.rows) != n {
			return dynamo.Mismatch(c.name+" rows", n, len(c.rows))
		}
		w := len(c.rows[0])
		for i, r := range c.rows {
			if len(r) != w {
				return dynamo.Mismatch(fmt.Sprintf("%s row %d width", c.name, i), w, len(r))
			}
		}
	}
	return nil
}

// Slice returns the samples [from, to) sharing storage with s.
func (s *Series) Slice(from, to int) *Series {
	out := &Series{
		Time: s.Time[from:to],
		U:    s.U[from:to],
		Y:    s.Y[from:to],
	}
	if s.HasStates() {
		out.X = s.X[from:to]
	}
	return out
}

// Split divides s into the first n samples and the rest.
func (s *Series) Split(n int) (fit, val *Series, err error) {
	if n < 1 || n > s.Len() {
		return nil, nil, fmt.Errorf("%w: cannot split %d samples at %d", dynamo.ErrInsufficientData, s.Len(), n)
	}
	return s.Slice(0, n), s.Slice(n, s.Len()), nil
}
