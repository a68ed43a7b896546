// Package viz renders fit progress and validation results.
//
// Terminal output uses asciigraph charts styled with lipgloss; [Monitor] is
// a Bubble Tea program that follows a running fit through a progress
// channel. Figures for reports are written as PNG with gonum/plot.
//
// # Key Bindings
//
//	Q, Ctrl+C - Stop following and interrupt the fit
package viz
