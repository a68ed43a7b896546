package experiment

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/dynid/internal/config"
	"github.com/san-kum/dynid/internal/dynamo"
	"github.com/san-kum/dynid/internal/models"
)

func TestRegistryLists(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"cartpole", "cstr", "linear", "rlc"}, r.ListSystems())
	assert.Equal(t, []string{"euler", "rk4"}, r.ListIntegrators())
	assert.Equal(t, []string{"multisine", "none", "steps"}, r.ListExcitations())

	_, err := r.GetSystem("pendulum")
	assert.Error(t, err)
	_, err = r.GetIntegrator("rk45", 1)
	assert.Error(t, err)
}

func TestGenerateLinear(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Generator.Samples = 200

	s, err := NewRegistry().Generate(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, s.Validate())
	assert.Equal(t, 200, s.Len())
	assert.Equal(t, 2, s.StateDim())
	for k := range s.Y {
		assert.Equal(t, s.X[k][0], s.Y[k][0])
	}
	assert.InDelta(t, 0.01, s.Ts(), 1e-12)
}

func TestGenerateCSTRMapsOutputs(t *testing.T) {
	cfg := config.GetPreset("cstr", "default")
	cfg.Generator.Samples = 100

	s, err := NewRegistry().Generate(context.Background(), cfg)
	require.NoError(t, err)
	for k := range s.Y {
		require.Len(t, s.Y[k], 1)
		assert.Equal(t, s.X[k][0], s.Y[k][0])
		assert.True(t, dynamo.IsFinite(float64(s.X[k][1])))
	}
}

func TestGenerateUnknownOutput(t *testing.T) {
	cfg := config.GetPreset("cstr", "default")
	cfg.Generator.Samples = 10
	cfg.Columns.Outputs = []string{"flow"}

	_, err := NewRegistry().Generate(context.Background(), cfg)
	assert.ErrorContains(t, err, "flow")
}

func TestGenerateTooShort(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Generator.Samples = 1
	_, err := NewRegistry().Generate(context.Background(), cfg)
	assert.ErrorIs(t, err, dynamo.ErrInsufficientData)
}

func TestPrepareScalesAndSplits(t *testing.T) {
	cfg := config.GetPreset("rlc", "default")
	cfg.Generator.Samples = 300
	cfg.FitSamples = 200

	d, err := New(cfg, nil).Prepare(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, d.Fit.Len())
	assert.Equal(t, 100, d.Val.Len())
	assert.InDelta(t, 0.5, d.Fit.Ts(), 1e-6)
	assert.True(t, d.Fit.HasStates())
	assert.Nil(t, d.Proj)
}

func TestPrepareUnmeasured(t *testing.T) {
	cfg := config.GetPreset("rlc", "unmeasured")
	cfg.Generator.Samples = 300
	cfg.FitSamples = 200

	d, err := New(cfg, nil).Prepare(context.Background())
	require.NoError(t, err)
	assert.False(t, d.Fit.HasStates())
	assert.False(t, d.Val.HasStates())
	assert.Equal(t, []int{0}, d.Proj)
	assert.Equal(t, 1, d.Fit.OutputDim())
}

func TestPrepareNoiseFollowsStates(t *testing.T) {
	cfg := config.GetPreset("cstr", "noisy")
	cfg.Generator.Samples = 200
	cfg.FitSamples = 150

	clean := *cfg
	clean.NoiseStd = nil
	ref, err := New(&clean, nil).Prepare(context.Background())
	require.NoError(t, err)

	d, err := New(cfg, nil).Prepare(context.Background())
	require.NoError(t, err)

	changed := 0
	for k := range d.Fit.X {
		assert.Equal(t, d.Fit.X[k][0], d.Fit.Y[k][0])
		if d.Fit.X[k][1] != ref.Fit.X[k][1] {
			changed++
		}
	}
	assert.Greater(t, changed, 100)
	assert.Equal(t, ref.Val.X, d.Val.X)
}

func TestBuildModel(t *testing.T) {
	cfg := config.GetPreset("cartpole", "lqr")
	m, err := New(cfg, nil).BuildModel(0.01, 1)
	require.NoError(t, err)
	rl, ok := m.(*models.ResidualLinear)
	require.True(t, ok)
	a, _, om := rl.Known()
	assert.Equal(t, 0.01, a.At(0, 1))
	assert.NotNil(t, om)

	cfg.Structure = "quadrotor"
	_, err = New(cfg, nil).BuildModel(0.01, 1)
	assert.Error(t, err)

	cfg = config.DefaultConfig()
	cfg.ModelVariant = "deep"
	_, err = New(cfg, nil).BuildModel(0.01, 1)
	assert.Error(t, err)
}

func TestValidateExactModel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Generator.Samples = 300
	d, err := New(cfg, nil).Prepare(context.Background())
	require.NoError(t, err)

	aRes := mat.NewDense(2, 2, []float64{0, 0.01, -0.25, -0.03})
	b := mat.NewDense(2, 1, []float64{0, 0.25})
	m, err := models.NewLinear(2, 1, models.WithInitial(aRes, b))
	require.NoError(t, err)

	v, err := Validate(m, d.Val, nil)
	require.NoError(t, err)
	assert.Len(t, v.Simulated, d.Val.Len())
	for _, r2 := range v.Metrics["r2"] {
		assert.Greater(t, r2, 0.999)
	}
	assert.Less(t, v.Consistency, 1e-8)

	tr := v.Trajectories()
	assert.Equal(t, v.Time, tr.Time)
}

func TestValidateProjectedWithoutStates(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Generator.Samples = 100
	d, err := New(cfg, nil).Prepare(context.Background())
	require.NoError(t, err)

	m, err := models.NewLinear(2, 1)
	require.NoError(t, err)
	v, err := Validate(m, withoutStates(d.Val), []int{0})
	require.NoError(t, err)
	require.Len(t, v.Simulated[0], 1)
	assert.Equal(t, d.Val.Y[0][0], v.Simulated[0][0])
	assert.Zero(t, v.Consistency)

	_, err = Validate(m, withoutStates(d.Val), nil)
	assert.ErrorIs(t, err, dynamo.ErrInsufficientData)
}

func TestFitAndRunSeeds(t *testing.T) {
	cfg := config.GetPreset("linear", "pure-linear")
	cfg.NumIter = 30
	cfg.Seed = 7

	e := New(cfg, nil)
	d, err := e.Prepare(context.Background())
	require.NoError(t, err)

	out, err := e.Fit(context.Background(), d, cfg.Seed)
	require.NoError(t, err)
	assert.Equal(t, 30, out.Result.Iterations)
	assert.Len(t, out.Result.Losses, 30)
	require.NotNil(t, out.Validation)
	for _, name := range []string{"mse", "rmse", "r2", "fit"} {
		assert.Contains(t, out.Validation.Metrics, name)
	}

	outs, err := e.RunSeeds(context.Background(), d, 2)
	require.NoError(t, err)
	require.Len(t, outs, 2)
	assert.Equal(t, int64(7), outs[0].Seed)
	assert.Equal(t, int64(8), outs[1].Seed)
	for _, o := range outs {
		assert.False(t, math.IsNaN(o.Result.Average))
	}
}

func TestFitCancelled(t *testing.T) {
	cfg := config.GetPreset("linear", "pure-linear")
	e := New(cfg, nil)
	d, err := e.Prepare(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := e.Fit(ctx, d, 1)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, out)
	assert.Nil(t, out.Validation)
}

func TestGenerateSystemParams(t *testing.T) {
	cfg := config.GetPreset("cstr", "default")
	cfg.Generator.Samples = 50

	base, err := NewRegistry().Generate(context.Background(), cfg)
	require.NoError(t, err)

	cfg.Generator.Params = map[string]float64{"ua": 4e4}
	tuned, err := NewRegistry().Generate(context.Background(), cfg)
	require.NoError(t, err)
	assert.NotEqual(t, base.X[49], tuned.X[49])

	cfg.Generator.Params = map[string]float64{"bogus": 1}
	_, err = NewRegistry().Generate(context.Background(), cfg)
	assert.Error(t, err)
}
