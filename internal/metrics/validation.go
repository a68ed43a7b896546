package metrics

import (
	"math"
)

// Metric accumulates per-channel statistics of a prediction against a target.
type Metric interface {
	Name() string
	Observe(pred, target []float32)
	Value() []float64
	Reset()
}

// sums is the shared accumulator behind every validation metric.
type sums struct {
	n     int
	sse   []float64
	sumY  []float64
	sumY2 []float64
}

func (s *sums) observe(pred, target []float32) {
	if s.sse == nil {
		s.sse = make([]float64, len(target))
		s.sumY = make([]float64, len(target))
		s.sumY2 = make([]float64, len(target))
	}
	for j, y := range target {
		d := float64(pred[j]) - float64(y)
		s.sse[j] += d * d
		s.sumY[j] += float64(y)
		s.sumY2[j] += float64(y) * float64(y)
	}
	s.n++
}

// sst is the total sum of squares of channel j about its mean.
func (s *sums) sst(j int) float64 {
	mean := s.sumY[j] / float64(s.n)
	return s.sumY2[j] - float64(s.n)*mean*mean
}

func (s *sums) reset() { *s = sums{} }

type MSE struct{ s sums }

func NewMSE() *MSE { return &MSE{} }

func (m *MSE) Name() string                   { return "mse" }
func (m *MSE) Observe(pred, target []float32) { m.s.observe(pred, target) }
func (m *MSE) Reset()                         { m.s.reset() }

func (m *MSE) Value() []float64 {
	out := make([]float64, len(m.s.sse))
	if m.s.n == 0 {
		return out
	}
	for j, e := range m.s.sse {
		out[j] = e / float64(m.s.n)
	}
	return out
}

type RMSE struct{ MSE }

func NewRMSE() *RMSE { return &RMSE{} }

func (m *RMSE) Name() string { return "rmse" }

func (m *RMSE) Value() []float64 {
	out := m.MSE.Value()
	for j := range out {
		out[j] = math.Sqrt(out[j])
	}
	return out
}

// R2 is the coefficient of determination 1 - SSE/SST. A constant target
// channel reports NaN.
type R2 struct{ s sums }

func NewR2() *R2 { return &R2{} }

func (m *R2) Name() string                   { return "r2" }
func (m *R2) Observe(pred, target []float32) { m.s.observe(pred, target) }
func (m *R2) Reset()                         { m.s.reset() }

func (m *R2) Value() []float64 {
	out := make([]float64, len(m.s.sse))
	for j := range out {
		sst := m.s.sst(j)
		if sst <= 0 {
			out[j] = math.NaN()
			continue
		}
		out[j] = 1 - m.s.sse[j]/sst
	}
	return out
}

// FitIndex is 100·(1 - ‖y-ŷ‖/‖y-ȳ‖), the percentage fit used by system
// identification toolboxes.
type FitIndex struct{ s sums }

func NewFitIndex() *FitIndex { return &FitIndex{} }

func (m *FitIndex) Name() string                   { return "fit" }
func (m *FitIndex) Observe(pred, target []float32) { m.s.observe(pred, target) }
func (m *FitIndex) Reset()                         { m.s.reset() }

func (m *FitIndex) Value() []float64 {
	out := make([]float64, len(m.s.sse))
	for j := range out {
		sst := m.s.sst(j)
		if sst <= 0 {
			out[j] = math.NaN()
			continue
		}
		out[j] = 100 * (1 - math.Sqrt(m.s.sse[j]/sst))
	}
	return out
}

// Default returns a fresh set of the validation metrics.
func Default() []Metric {
	return []Metric{NewMSE(), NewRMSE(), NewR2(), NewFitIndex()}
}

// Evaluate feeds every row pair to each metric and returns their values by name.
func Evaluate(pred, target [][]float32, ms ...Metric) map[string][]float64 {
	if len(ms) == 0 {
		ms = Default()
	}
	out := make(map[string][]float64, len(ms))
	for _, m := range ms {
		m.Reset()
		for i := range target {
			m.Observe(pred[i], target[i])
		}
		out[m.Name()] = m.Value()
	}
	return out
}
