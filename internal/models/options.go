package models

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

const DefaultInitStd = 1e-4

type options struct {
	initStd   float64
	src       rand.Source
	outputMap *mat.Dense
	initA     *mat.Dense
	initB     *mat.Dense
}

type Option func(*options)

// WithInitStd sets the standard deviation of the Gaussian weight init.
// Zero gives an exactly-zero network.
func WithInitStd(std float64) Option {
	return func(o *options) { o.initStd = std }
}

// WithSeed seeds the weight initialization.
func WithSeed(seed int64) Option {
	return func(o *options) { o.src = rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15) }
}

// WithSource sets the random source used for weight initialization.
func WithSource(src rand.Source) Option {
	return func(o *options) { o.src = src }
}

// WithOutputMap routes the free-form term through a fixed n_x×n_out matrix.
func WithOutputMap(w *mat.Dense) Option {
	return func(o *options) { o.outputMap = w }
}

// WithInitial sets the starting A and B of a Linear model.
func WithInitial(a, b *mat.Dense) Option {
	return func(o *options) {
		o.initA = a
		o.initB = b
	}
}

func buildOptions(opts []Option) *options {
	o := &options{initStd: DefaultInitStd}
	for _, opt := range opts {
		opt(o)
	}
	if o.src == nil {
		o.src = rand.NewPCG(1, 2)
	}
	return o
}
