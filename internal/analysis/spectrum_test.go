package analysis

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/dynid/internal/dynamo"
)

func TestPowerSpectrumPeak(t *testing.T) {
	const (
		n  = 256
		ts = 0.01
		f0 = 12.5
	)
	data := make([]float64, n)
	for i := range data {
		data[i] = 3 + math.Sin(2*math.Pi*f0*float64(i)*ts)
	}

	freqs, power := PowerSpectrum(data, ts)
	if len(freqs) != n/2+1 {
		t.Fatalf("got %d bins, want %d", len(freqs), n/2+1)
	}
	if power[0] > 1e-9 {
		t.Errorf("mean not removed: dc power %g", power[0])
	}
	freq, _ := Peak(freqs, power)
	if math.Abs(freq-f0) > 1e-9 {
		t.Errorf("peak at %g, want %g", freq, f0)
	}
}

func TestPowerSpectrumShort(t *testing.T) {
	if f, p := PowerSpectrum([]float64{1}, 0.1); f != nil || p != nil {
		t.Error("expected nil spectrum for a single sample")
	}
	if f, _ := PowerSpectrum([]float64{1, 2}, 0); f != nil {
		t.Error("expected nil spectrum for zero sample time")
	}
}

func TestResiduals(t *testing.T) {
	meas := [][]float32{{1, 2}, {3, 4}}
	sim := [][]float32{{0.5, 2}, {3, 5}}
	res, err := Residuals(meas, sim)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]float64{{0.5, 0}, {0, -1}}
	for j := range want {
		for i := range want[j] {
			if res[j][i] != want[j][i] {
				t.Errorf("res[%d][%d] = %g, want %g", j, i, res[j][i], want[j][i])
			}
		}
	}

	if _, err := Residuals(meas, sim[:1]); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
	if _, err := Residuals(meas, [][]float32{{1}, {2}}); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected dimension mismatch, got %v", err)
	}
}
