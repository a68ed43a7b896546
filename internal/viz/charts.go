package viz

import (
	"fmt"
	"math"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/dynid/internal/storage"
)

const (
	ChartWidth  = 80
	ChartHeight = 10
)

// LogLoss maps losses to log10, dropping non-positive and non-finite
// entries.
func LogLoss(losses []float64) []float64 {
	out := make([]float64, 0, len(losses))
	for _, l := range losses {
		if l > 0 && !math.IsInf(l, 0) && !math.IsNaN(l) {
			out = append(out, math.Log10(l))
		}
	}
	return out
}

// LossChart plots the loss history on a log scale. An empty history gives
// an empty string.
func LossChart(losses []float64, width, height int) string {
	data := LogLoss(losses)
	if len(data) == 0 {
		return ""
	}
	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(fmt.Sprintf("log10 loss (%d iterations)", len(losses))),
	)
}

// TrajectoryCharts draws one chart per channel with the measured signal in
// blue and the simulation in red. names labels the channels; missing names
// fall back to y0, y1, ...
func TrajectoryCharts(tr *storage.Trajectories, names []string, width, height int) []string {
	if len(tr.Measured) == 0 {
		return nil
	}
	nch := len(tr.Measured[0])
	charts := make([]string, 0, nch)
	for j := 0; j < nch; j++ {
		name := fmt.Sprintf("y%d", j)
		if j < len(names) {
			name = names[j]
		}
		charts = append(charts, asciigraph.PlotMany(
			[][]float64{column(tr.Measured, j), column(tr.Simulated, j)},
			asciigraph.Height(height),
			asciigraph.Width(width),
			asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red),
			asciigraph.Caption(name+": measured (blue) vs simulated (red)"),
		))
	}
	return charts
}

func column(rows [][]float32, j int) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		if j < len(r) {
			out[i] = float64(r[j])
		}
	}
	return out
}
