package models

import (
	"fmt"

	"github.com/san-kum/dynid/internal/dynamo"
)

type Tensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

// Checkpoint is the serializable parameter set of a residual model.
type Checkpoint struct {
	Variant  Variant  `json:"variant"`
	StateDim int      `json:"n_x"`
	InputDim int      `json:"n_u"`
	Features int      `json:"n_feat,omitempty"`
	Tensors  []Tensor `json:"tensors"`
}

type featured interface {
	Features() int
}

func Snapshot(m Residual) *Checkpoint {
	cp := &Checkpoint{
		Variant:  m.Variant(),
		StateDim: m.StateDim(),
		InputDim: m.InputDim(),
	}
	if f, ok := m.(featured); ok {
		cp.Features = f.Features()
	}
	for _, p := range m.Params() {
		cp.Tensors = append(cp.Tensors, Tensor{
			Name:  p.Name,
			Shape: append([]int(nil), p.Shape...),
			Data:  append([]float32(nil), p.Data...),
		})
	}
	return cp
}

// Restore copies the tensors of cp into m. Names, order and shapes must match.
func Restore(m Residual, cp *Checkpoint) error {
	if cp.Variant != m.Variant() {
		return fmt.Errorf("%w: checkpoint variant %s, model %s", dynamo.ErrDimensionMismatch, cp.Variant, m.Variant())
	}
	if cp.StateDim != m.StateDim() {
		return dynamo.Mismatch("checkpoint n_x", m.StateDim(), cp.StateDim)
	}
	if cp.InputDim != m.InputDim() {
		return dynamo.Mismatch("checkpoint n_u", m.InputDim(), cp.InputDim)
	}
	params := m.Params()
	if len(cp.Tensors) != len(params) {
		return dynamo.Mismatch("checkpoint tensor count", len(params), len(cp.Tensors))
	}
	for i, p := range params {
		t := cp.Tensors[i]
		if t.Name != p.Name {
			return fmt.Errorf("%w: tensor %d is %q, want %q", dynamo.ErrDimensionMismatch, i, t.Name, p.Name)
		}
		if !sameShape(t.Shape, p.Shape) || len(t.Data) != len(p.Data) {
			return fmt.Errorf("%w: tensor %q has shape %v, want %v", dynamo.ErrDimensionMismatch, t.Name, t.Shape, p.Shape)
		}
	}
	for i, p := range params {
		copy(p.Data, cp.Tensors[i].Data)
	}
	return nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
