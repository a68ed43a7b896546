// Package optim updates trainable parameters from their accumulated
// gradients.
package optim

import (
	"fmt"
	"math"

	"github.com/san-kum/dynid/internal/dynamo"
)

// Optimizer applies one update to params using their Grad slices. Moment
// state is keyed by parameter, so the same set must be passed on every call.
type Optimizer interface {
	Name() string
	Step(params []*dynamo.Param)
	LearningRate() float64
}

func New(name string, lr float64) (Optimizer, error) {
	if lr <= 0 || math.IsNaN(lr) {
		return nil, fmt.Errorf("learning rate must be positive, got %g", lr)
	}
	switch name {
	case "adam", "":
		return NewAdam(lr), nil
	case "sgd":
		return NewSGD(lr, 0), nil
	case "momentum":
		return NewSGD(lr, 0.9), nil
	default:
		return nil, fmt.Errorf("unknown optimizer: %s", name)
	}
}

func Names() []string { return []string{"adam", "sgd", "momentum"} }
