package models

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Spec describes a residual model to construct.
type Spec struct {
	Variant  Variant
	StateDim int
	InputDim int
	Features int
	InitStd  float64
	Seed     int64

	AKnown    *mat.Dense
	BKnown    *mat.Dense
	OutputMap *mat.Dense
}

func New(s Spec) (Residual, error) {
	opts := []Option{WithInitStd(s.InitStd), WithSeed(s.Seed)}
	switch s.Variant {
	case FreeFormVariant:
		return NewFreeForm(s.StateDim, s.InputDim, s.Features, opts...)
	case ResidualLinearVariant:
		if s.OutputMap != nil {
			opts = append(opts, WithOutputMap(s.OutputMap))
		}
		return NewResidualLinear(s.StateDim, s.InputDim, s.Features, s.AKnown, s.BKnown, opts...)
	case LinearVariant:
		if s.AKnown != nil || s.BKnown != nil {
			opts = append(opts, WithInitial(s.AKnown, s.BKnown))
		}
		return NewLinear(s.StateDim, s.InputDim, opts...)
	default:
		return nil, fmt.Errorf("unknown model variant: %s", s.Variant)
	}
}
