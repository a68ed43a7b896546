package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/dynid/internal/config"
	"github.com/san-kum/dynid/internal/dataset"
	"github.com/san-kum/dynid/internal/dynamo"
	"github.com/san-kum/dynid/internal/models"
)

var cstrColumns = config.Columns{
	Time:    "time",
	Inputs:  []string{"q"},
	Outputs: []string{"Ca"},
	States:  []string{"Ca", "T"},
	Scale:   map[string]float64{"q": 0.01, "Ca": 10, "T": 0.0025},
}

const cstrCSV = `time,q,Ca,T
0,100,0.5,350
0.1,110,0.52,352
0.2,90,0.55,348
`

func TestReadSeriesScalesAndMaps(t *testing.T) {
	s, err := ReadSeries(strings.NewReader(cstrCSV), cstrColumns)
	require.NoError(t, err)

	assert.Equal(t, 3, s.Len())
	assert.InDelta(t, 0.1, s.Ts(), 1e-12)
	assert.InDelta(t, 1.1, s.U[1][0], 1e-6)
	assert.InDelta(t, 5.2, s.Y[1][0], 1e-5)
	assert.InDelta(t, 5.2, s.X[1][0], 1e-5)
	assert.InDelta(t, 0.88, s.X[1][1], 1e-6)
}

func TestReadSeriesErrors(t *testing.T) {
	missing := cstrColumns
	missing.States = []string{"Ca", "Tj"}
	_, err := ReadSeries(strings.NewReader(cstrCSV), missing)
	assert.ErrorContains(t, err, `"Tj"`)

	_, err = ReadSeries(strings.NewReader("time,q,Ca,T\n0,abc,1,2\n"), cstrColumns)
	assert.ErrorContains(t, err, "line 2")

	_, err = ReadSeries(strings.NewReader("time,q,Ca,T\n"), cstrColumns)
	assert.ErrorIs(t, err, dynamo.ErrInsufficientData)
}

func TestSeriesRoundTrip(t *testing.T) {
	cols := cstrColumns
	cols.Scale = nil
	in := &dataset.Series{
		Time: []float64{0, 0.5, 1},
		U:    [][]float32{{1}, {2}, {3}},
		Y:    [][]float32{{0.25}, {0.5}, {0.75}},
		X:    [][]float32{{0.25, 300}, {0.5, 301}, {0.75, 302.5}},
	}

	path := filepath.Join(t.TempDir(), "cstr.csv")
	require.NoError(t, SaveSeries(path, in, cols))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "time,Ca,T,q\n"), "header: %q", raw)

	out, err := LoadSeries(path, cols)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	model, err := models.NewFreeForm(2, 1, 4, models.WithInitStd(0.1))
	require.NoError(t, err)

	meta := &RunMetadata{
		System:     "cstr",
		Variant:    string(model.Variant()),
		Seed:       42,
		Iterations: 3,
		LossScale:  0.5,
		Metrics:    map[string][]float64{"fit": {91.5, 88}},
		Config:     config.GetPreset("cstr", "default"),
	}
	id, err := st.Save(meta, []float64{1, 0.5, 0.25}, models.Snapshot(model))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "cstr_"))

	got, err := st.Load(id)
	require.NoError(t, err)
	assert.Equal(t, "cstr", got.System)
	assert.Equal(t, int64(42), got.Seed)
	assert.Equal(t, []float64{91.5, 88}, got.Metrics["fit"])
	assert.Equal(t, 64, got.Config.NFeat)

	losses, err := st.LoadLosses(id)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0.5, 0.25}, losses)

	cp, err := st.LoadCheckpoint(id)
	require.NoError(t, err)
	restored, _ := models.NewFreeForm(2, 1, 4, models.WithInitStd(0))
	require.NoError(t, models.Restore(restored, cp))
	x, u := []float32{0.3, 0.1}, []float32{1}
	assert.Equal(t, model.Eval(x, u), restored.Eval(x, u))

	_, err = st.Load("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestStoreListNewestFirst(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	old := &RunMetadata{System: "rlc", Timestamp: time.Now().Add(-time.Hour)}
	recent := &RunMetadata{System: "cstr", Timestamp: time.Now()}
	_, err := st.Save(old, nil, nil)
	require.NoError(t, err)
	_, err = st.Save(recent, nil, nil)
	require.NoError(t, err)

	runs, err := st.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "cstr", runs[0].System)

	empty, err := New(filepath.Join(t.TempDir(), "none")).List()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestValidationAndExport(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())
	id, err := st.Save(&RunMetadata{System: "linear"}, []float64{2, 1}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, st.Export(id, &buf))
	var data ExportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.Nil(t, data.Validation)

	tr := &Trajectories{
		Time:      []float64{0, 1},
		Measured:  [][]float32{{1, 2}, {3, 4}},
		Simulated: [][]float32{{1, 2}, {2.5, 4.5}},
	}
	require.NoError(t, st.SaveValidation(id, tr))
	got, err := st.LoadValidation(id)
	require.NoError(t, err)
	assert.Equal(t, tr, got)

	buf.Reset()
	require.NoError(t, st.Export(id, &buf))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.Equal(t, []float64{2, 1}, data.Losses)
	require.NotNil(t, data.Validation)
	assert.Equal(t, tr.Simulated, data.Validation.Simulated)
}
