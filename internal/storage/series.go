package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/san-kum/dynid/internal/config"
	"github.com/san-kum/dynid/internal/dataset"
)

// LoadSeries reads a headed CSV record, picking and scaling columns as cols
// describes. States are only loaded when cols lists them.
func LoadSeries(path string, cols config.Columns) (*dataset.Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := ReadSeries(f, cols)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

func ReadSeries(r io.Reader, cols config.Columns) (*dataset.Series, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}
	lookup := func(names []string) ([]int, error) {
		idx := make([]int, len(names))
		for i, n := range names {
			j, ok := index[n]
			if !ok {
				return nil, fmt.Errorf("column %q not found", n)
			}
			idx[i] = j
		}
		return idx, nil
	}

	timeIdx, err := lookup([]string{cols.Time})
	if err != nil {
		return nil, err
	}
	uIdx, err := lookup(cols.Inputs)
	if err != nil {
		return nil, err
	}
	yIdx, err := lookup(cols.Outputs)
	if err != nil {
		return nil, err
	}
	xIdx, err := lookup(cols.States)
	if err != nil {
		return nil, err
	}

	scale := make([]float64, len(header))
	for i, name := range header {
		scale[i] = 1
		if v, ok := cols.Scale[strings.TrimSpace(name)]; ok {
			scale[i] = v
		}
	}

	s := &dataset.Series{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		vals := make([]float64, len(rec))
		for i, field := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %q: %w", line, header[i], err)
			}
			vals[i] = v * scale[i]
		}

		s.Time = append(s.Time, vals[timeIdx[0]])
		s.U = append(s.U, pick(vals, uIdx))
		s.Y = append(s.Y, pick(vals, yIdx))
		if len(xIdx) > 0 {
			s.X = append(s.X, pick(vals, xIdx))
		}
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func pick(vals []float64, idx []int) []float32 {
	row := make([]float32, len(idx))
	for i, j := range idx {
		row[i] = float32(vals[j])
	}
	return row
}

// SaveSeries writes s under the column names of cols. A name listed in
// several roles is written once. Values are written unscaled.
func SaveSeries(path string, s *dataset.Series, cols config.Columns) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := WriteSeries(f, s, cols); err != nil {
		return err
	}
	return f.Close()
}

func WriteSeries(w io.Writer, s *dataset.Series, cols config.Columns) error {
	if len(cols.Inputs) != s.InputDim() || len(cols.Outputs) != s.OutputDim() {
		return fmt.Errorf("column names do not match series widths")
	}
	if s.HasStates() && len(cols.States) != s.StateDim() {
		return fmt.Errorf("state column names do not match series width")
	}

	type source struct {
		rows [][]float32
		col  int
	}
	header := []string{cols.Time}
	var sources []source
	seen := map[string]bool{cols.Time: true}
	add := func(names []string, rows [][]float32) {
		for j, n := range names {
			if seen[n] {
				continue
			}
			seen[n] = true
			header = append(header, n)
			sources = append(sources, source{rows, j})
		}
	}
	if s.HasStates() {
		add(cols.States, s.X)
	}
	add(cols.Inputs, s.U)
	add(cols.Outputs, s.Y)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for i := range s.Time {
		row[0] = strconv.FormatFloat(s.Time[i], 'g', -1, 64)
		for k, src := range sources {
			row[k+1] = strconv.FormatFloat(float64(src.rows[i][src.col]), 'g', -1, 32)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
