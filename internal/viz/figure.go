package viz

import (
	"bufio"
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/san-kum/dynid/internal/storage"
)

var (
	measuredColor  = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	simulatedColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
)

// SaveValidationFigure writes a PNG with one panel per channel comparing the
// measured and simulated trajectories.
func SaveValidationFigure(path string, tr *storage.Trajectories, names []string) error {
	if len(tr.Measured) == 0 || len(tr.Measured) != len(tr.Simulated) {
		return fmt.Errorf("viz: trajectories are empty or of unequal length")
	}
	nch := len(tr.Measured[0])

	rows := make([][]*plot.Plot, nch)
	for j := 0; j < nch; j++ {
		name := fmt.Sprintf("y%d", j)
		if j < len(names) {
			name = names[j]
		}
		p, err := channelPlot(tr, j, name)
		if err != nil {
			return err
		}
		if j == nch-1 {
			p.X.Label.Text = "time"
		}
		rows[j] = []*plot.Plot{p}
	}

	c := vgimg.NewWith(
		vgimg.UseWH(8*vg.Inch, vg.Length(2.5*float64(nch))*vg.Inch),
		vgimg.UseDPI(150),
	)
	dc := draw.New(c)
	tiles := draw.Tiles{Rows: nch, Cols: 1, PadX: vg.Millimeter, PadY: 2 * vg.Millimeter}
	canvases := plot.Align(rows, tiles, dc)
	for j := range rows {
		rows[j][0].Draw(canvases[j][0])
	}
	return writePNG(path, c)
}

func channelPlot(tr *storage.Trajectories, j int, name string) (*plot.Plot, error) {
	p := plot.New()
	p.Y.Label.Text = name
	p.Legend.Top = true

	meas, err := plotter.NewLine(xys(tr.Time, tr.Measured, j))
	if err != nil {
		return nil, err
	}
	meas.LineStyle.Color = measuredColor
	meas.LineStyle.Width = vg.Points(1.5)

	simu, err := plotter.NewLine(xys(tr.Time, tr.Simulated, j))
	if err != nil {
		return nil, err
	}
	simu.LineStyle.Color = simulatedColor
	simu.LineStyle.Width = vg.Points(1.5)
	simu.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}

	p.Add(plotter.NewGrid(), meas, simu)
	p.Legend.Add("measured", meas)
	p.Legend.Add("simulated", simu)
	return p, nil
}

// SaveLossFigure writes the loss history on a logarithmic axis.
func SaveLossFigure(path string, losses []float64) error {
	pts := make(plotter.XYs, 0, len(losses))
	for i, l := range losses {
		if l > 0 && !math.IsInf(l, 1) {
			pts = append(pts, plotter.XY{X: float64(i), Y: l})
		}
	}
	if len(pts) == 0 {
		return fmt.Errorf("viz: no positive losses to plot")
	}

	p := plot.New()
	p.Title.Text = "training loss"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = "loss"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.LineStyle.Color = measuredColor
	p.Add(plotter.NewGrid(), line)

	c := vgimg.NewWith(vgimg.UseWH(8*vg.Inch, 4*vg.Inch), vgimg.UseDPI(150))
	p.Draw(draw.New(c))
	return writePNG(path, c)
}

func xys(t []float64, rows [][]float32, j int) plotter.XYs {
	pts := make(plotter.XYs, len(rows))
	for i, r := range rows {
		pts[i].X = float64(i)
		if i < len(t) {
			pts[i].X = t[i]
		}
		pts[i].Y = float64(r[j])
	}
	return pts
}

func writePNG(path string, c *vgimg.Canvas) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		return fmt.Errorf("write png: %w", err)
	}
	return bw.Flush()
}
