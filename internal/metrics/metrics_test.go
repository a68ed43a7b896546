package metrics

import (
	"math"
	"testing"
)

func TestRunningAverage(t *testing.T) {
	tests := []struct {
		name     string
		momentum float64
		values   []float64
		want     float64
	}{
		{"single", 0.5, []float64{5}, 5},
		{"two values", 0.5, []float64{5, 10}, 7.5},
		{"high momentum", 0.99, []float64{1, 2}, 1.01},
		{"zero momentum tracks last", 0, []float64{3, 4, 9}, 9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRunningAverage(tt.momentum)
			for _, v := range tt.values {
				r.Update(v)
			}
			if math.Abs(r.Avg()-tt.want) > 1e-12 {
				t.Errorf("avg = %v, want %v", r.Avg(), tt.want)
			}
			if r.Val() != tt.values[len(tt.values)-1] {
				t.Errorf("val = %v", r.Val())
			}
		})
	}
}

func TestRunningAverageReset(t *testing.T) {
	r := NewRunningAverage(0.9)
	r.Update(100)
	r.Reset()
	r.Update(2)
	if r.Avg() != 2 || r.Count() != 1 {
		t.Errorf("after reset avg = %v count = %d", r.Avg(), r.Count())
	}
}

func TestEvaluate(t *testing.T) {
	target := [][]float32{{1, 5}, {2, 5}, {3, 5}}
	pred := [][]float32{{1, 5}, {2, 6}, {4, 5}}

	got := Evaluate(pred, target)

	if mse := got["mse"]; math.Abs(mse[0]-1.0/3) > 1e-9 || math.Abs(mse[1]-1.0/3) > 1e-9 {
		t.Errorf("mse = %v", mse)
	}
	if rmse := got["rmse"]; math.Abs(rmse[0]-math.Sqrt(1.0/3)) > 1e-9 {
		t.Errorf("rmse = %v", rmse)
	}
	if r2 := got["r2"]; math.Abs(r2[0]-0.5) > 1e-9 || !math.IsNaN(r2[1]) {
		t.Errorf("r2 = %v", r2)
	}
	if fit := got["fit"]; math.Abs(fit[0]-100*(1-math.Sqrt(0.5))) > 1e-9 {
		t.Errorf("fit = %v", fit)
	}
}

func TestPerfectPrediction(t *testing.T) {
	y := [][]float32{{0}, {1}, {4}, {9}}
	got := Evaluate(y, y, NewFitIndex(), NewR2())
	if got["fit"][0] != 100 || got["r2"][0] != 1 {
		t.Errorf("got %v", got)
	}
}
