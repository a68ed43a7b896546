package analysis

import (
	"fmt"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/san-kum/dynid/internal/dynamo"
)

// Residuals returns measured minus simulated, one slice per channel.
func Residuals(measured, simulated [][]float32) ([][]float64, error) {
	if len(measured) != len(simulated) {
		return nil, dynamo.Mismatch("simulated rows", len(measured), len(simulated))
	}
	if len(measured) == 0 {
		return nil, nil
	}
	nch := len(measured[0])
	out := make([][]float64, nch)
	for j := range out {
		out[j] = make([]float64, len(measured))
	}
	for i := range measured {
		if len(measured[i]) != nch || len(simulated[i]) != nch {
			return nil, fmt.Errorf("%w: row %d", dynamo.ErrDimensionMismatch, i)
		}
		for j := 0; j < nch; j++ {
			out[j][i] = float64(measured[i][j]) - float64(simulated[i][j])
		}
	}
	return out, nil
}

// PowerSpectrum returns the one-sided power spectrum of data sampled every
// ts, after removing its mean. freqs are in cycles per unit of ts.
func PowerSpectrum(data []float64, ts float64) (freqs, power []float64) {
	n := len(data)
	if n < 2 || ts <= 0 {
		return nil, nil
	}

	mean := 0.0
	for _, v := range data {
		mean += v
	}
	mean /= float64(n)
	centered := make([]float64, n)
	for i, v := range data {
		centered[i] = v - mean
	}

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, centered)
	freqs = make([]float64, len(coeff))
	power = make([]float64, len(coeff))
	for i, c := range coeff {
		a := cmplx.Abs(c)
		freqs[i] = fft.Freq(i) / ts
		power[i] = a * a / float64(n)
	}
	return freqs, power
}

// Peak returns the frequency carrying the most power, skipping DC.
func Peak(freqs, power []float64) (freq, p float64) {
	for i := 1; i < len(power); i++ {
		if power[i] > p {
			freq, p = freqs[i], power[i]
		}
	}
	return freq, p
}
