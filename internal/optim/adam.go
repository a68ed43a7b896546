package optim

import (
	"math"

	"github.com/san-kum/dynid/internal/dynamo"
)

type Adam struct {
	lr      float64
	beta1   float64
	beta2   float64
	epsilon float64

	t int
	m map[*dynamo.Param][]float64
	v map[*dynamo.Param][]float64
}

func NewAdam(lr float64) *Adam {
	return &Adam{
		lr:      lr,
		beta1:   0.9,
		beta2:   0.999,
		epsilon: 1e-8,
		m:       make(map[*dynamo.Param][]float64),
		v:       make(map[*dynamo.Param][]float64),
	}
}

func (a *Adam) Name() string          { return "adam" }
func (a *Adam) LearningRate() float64 { return a.lr }

func (a *Adam) Step(params []*dynamo.Param) {
	a.t++
	bias1 := 1 - math.Pow(a.beta1, float64(a.t))
	bias2 := 1 - math.Pow(a.beta2, float64(a.t))

	for _, p := range params {
		m, ok := a.m[p]
		if !ok {
			m = make([]float64, p.Len())
			a.m[p] = m
			a.v[p] = make([]float64, p.Len())
		}
		v := a.v[p]

		for i, g := range p.Grad {
			m[i] = a.beta1*m[i] + (1-a.beta1)*g
			v[i] = a.beta2*v[i] + (1-a.beta2)*g*g
			mHat := m[i] / bias1
			vHat := v[i] / bias2
			p.Data[i] = float32(float64(p.Data[i]) - a.lr*mHat/(math.Sqrt(vHat)+a.epsilon))
		}
	}
}
