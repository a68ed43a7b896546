// Package analysis provides frequency-domain checks of identified models.
//
// Simulation residuals are split per channel and transformed with gonum's
// real FFT:
//
//	res := analysis.Residuals(measured, simulated)
//	freqs, power := analysis.PowerSpectrum(res[0], ts)
//
// A model that captures the dynamics leaves a residual without dominant
// peaks; a peak near an excitation frequency points at unmodelled modes.
package analysis
