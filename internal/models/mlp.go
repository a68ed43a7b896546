package models

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/san-kum/dynid/internal/dynamo"
)

// mlp is the two-layer feed-forward block Linear -> ReLU -> Linear.
type mlp struct {
	nIn, nFeat, nOut int

	w1, b1 *dynamo.Param
	w2, b2 *dynamo.Param
}

func newMLP(nIn, nFeat, nOut int, std float64, src rand.Source) *mlp {
	m := &mlp{
		nIn:   nIn,
		nFeat: nFeat,
		nOut:  nOut,
		w1:    dynamo.NewParam("net.0.weight", nFeat, nIn),
		b1:    dynamo.NewParam("net.0.bias", nFeat),
		w2:    dynamo.NewParam("net.2.weight", nOut, nFeat),
		b2:    dynamo.NewParam("net.2.bias", nOut),
	}

	if std > 0 {
		dist := distuv.Normal{Mu: 0, Sigma: std, Src: src}
		for _, p := range []*dynamo.Param{m.w1, m.w2} {
			for i := range p.Data {
				p.Data[i] = float32(dist.Rand())
			}
		}
	}
	return m
}

func (m *mlp) params() []*dynamo.Param {
	return []*dynamo.Param{m.w1, m.b1, m.w2, m.b2}
}

// hidden returns the pre-activations W1·in + b1.
func (m *mlp) hidden(in []float64) []float64 {
	h := make([]float64, m.nFeat)
	for j := 0; j < m.nFeat; j++ {
		s := float64(m.b1.Data[j])
		row := m.w1.Row(j)
		for k, v := range in {
			s += float64(row[k]) * v
		}
		h[j] = s
	}
	return h
}

func (m *mlp) forward(in []float64) []float64 {
	h := m.hidden(in)
	out := make([]float64, m.nOut)
	for i := 0; i < m.nOut; i++ {
		s := float64(m.b2.Data[i])
		row := m.w2.Row(i)
		for j, hj := range h {
			if hj > 0 {
				s += float64(row[j]) * hj
			}
		}
		out[i] = s
	}
	return out
}

// backward accumulates parameter gradients for upstream gradient g on the
// output and returns the gradient with respect to in.
func (m *mlp) backward(in []float64, g []float64) []float64 {
	h := m.hidden(in)

	gh := make([]float64, m.nFeat)
	for i := 0; i < m.nOut; i++ {
		gi := g[i]
		if gi == 0 {
			continue
		}
		m.b2.Grad[i] += gi
		row := m.w2.Row(i)
		grow := m.w2.GradRow(i)
		for j, hj := range h {
			if hj > 0 {
				grow[j] += gi * hj
				gh[j] += gi * float64(row[j])
			}
		}
	}

	gin := make([]float64, m.nIn)
	for j, ghj := range gh {
		if ghj == 0 {
			continue
		}
		m.b1.Grad[j] += ghj
		row := m.w1.Row(j)
		grow := m.w1.GradRow(j)
		for k, v := range in {
			grow[k] += ghj * v
			gin[k] += ghj * float64(row[k])
		}
	}
	return gin
}
