package optim

import "github.com/san-kum/dynid/internal/dynamo"

// SGD is gradient descent with optional heavy-ball momentum.
type SGD struct {
	lr       float64
	momentum float64
	vel      map[*dynamo.Param][]float64
}

func NewSGD(lr, momentum float64) *SGD {
	return &SGD{lr: lr, momentum: momentum, vel: make(map[*dynamo.Param][]float64)}
}

func (s *SGD) Name() string {
	if s.momentum > 0 {
		return "momentum"
	}
	return "sgd"
}

func (s *SGD) LearningRate() float64 { return s.lr }

func (s *SGD) Step(params []*dynamo.Param) {
	for _, p := range params {
		if s.momentum == 0 {
			for i, g := range p.Grad {
				p.Data[i] = float32(float64(p.Data[i]) - s.lr*g)
			}
			continue
		}
		v, ok := s.vel[p]
		if !ok {
			v = make([]float64, p.Len())
			s.vel[p] = v
		}
		for i, g := range p.Grad {
			v[i] = s.momentum*v[i] + g
			p.Data[i] = float32(float64(p.Data[i]) - s.lr*v[i])
		}
	}
}
