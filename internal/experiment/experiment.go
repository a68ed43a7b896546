package experiment

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/san-kum/dynid/internal/config"
	"github.com/san-kum/dynid/internal/dataset"
	"github.com/san-kum/dynid/internal/dynamo"
	"github.com/san-kum/dynid/internal/fit"
	"github.com/san-kum/dynid/internal/metrics"
	"github.com/san-kum/dynid/internal/models"
	"github.com/san-kum/dynid/internal/optim"
	"github.com/san-kum/dynid/internal/sim"
	"github.com/san-kum/dynid/internal/storage"
)

type Experiment struct {
	cfg *config.Config
	reg *Registry
	log *zap.Logger
}

func New(cfg *config.Config, log *zap.Logger) *Experiment {
	if log == nil {
		log = zap.NewNop()
	}
	return &Experiment{cfg: cfg, reg: NewRegistry(), log: log}
}

func (e *Experiment) Config() *config.Config { return e.cfg }
func (e *Experiment) Registry() *Registry    { return e.reg }

// Data is a prepared record split into its fit and validation parts.
type Data struct {
	Fit *dataset.Series
	Val *dataset.Series

	// Proj lists the state components observed by the target columns; nil
	// means full states are compared.
	Proj []int
}

// Columns returns the configured columns. For generated data a missing
// state list is filled with the system's state names, or x1..xn.
func (e *Experiment) Columns() config.Columns {
	cols := e.cfg.Columns
	if len(cols.States) > 0 || e.cfg.Data != "" {
		return cols
	}
	cols.States = e.reg.StateNames(e.cfg.System)
	if len(cols.States) == 0 {
		for i := 1; i <= e.cfg.NX; i++ {
			cols.States = append(cols.States, fmt.Sprintf("x%d", i))
		}
	}
	return cols
}

// Series reads the configured CSV file, or simulates the configured system
// and scales the result the same way a file would be scaled.
func (e *Experiment) Series(ctx context.Context) (*dataset.Series, error) {
	if e.cfg.Data != "" {
		return storage.LoadSeries(e.cfg.Data, e.cfg.Columns)
	}
	raw, err := e.reg.Generate(ctx, e.cfg)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	cols := e.Columns()
	if err := storage.WriteSeries(&buf, raw, cols); err != nil {
		return nil, err
	}
	return storage.ReadSeries(&buf, cols)
}

// Prepare loads the record, splits it at cfg.FitSamples and adds the
// configured measurement noise to the fit part.
func (e *Experiment) Prepare(ctx context.Context) (*Data, error) {
	s, err := e.Series(ctx)
	if err != nil {
		return nil, err
	}

	fitPart, valPart := s, s
	if n := e.cfg.FitSamples; n > 0 {
		if fitPart, valPart, err = s.Split(n); err != nil {
			return nil, err
		}
	}

	if len(e.cfg.NoiseStd) > 0 {
		if fitPart, err = e.addNoise(fitPart); err != nil {
			return nil, err
		}
	}

	// States not listed in the configuration are never shown to the fit.
	if len(e.cfg.Columns.States) == 0 {
		fitPart = withoutStates(fitPart)
		valPart = withoutStates(valPart)
	}

	d := &Data{Fit: fitPart, Val: valPart, Proj: e.projection(s.OutputDim())}
	e.log.Info("data prepared",
		zap.String("system", e.cfg.System),
		zap.Int("fit_samples", d.Fit.Len()),
		zap.Int("val_samples", d.Val.Len()),
		zap.Float64("ts", d.Fit.Ts()),
	)
	return d, nil
}

func (e *Experiment) projection(ny int) []int {
	if len(e.cfg.OutputIndex) > 0 {
		return append([]int(nil), e.cfg.OutputIndex...)
	}
	if e.cfg.Unmeasured {
		proj := make([]int, ny)
		for i := range proj {
			proj[i] = i
		}
		return proj
	}
	return nil
}

// addNoise perturbs the states when one deviation per state is given,
// carrying the noise into outputs that name a state column. Otherwise the
// outputs are perturbed directly.
func (e *Experiment) addNoise(s *dataset.Series) (*dataset.Series, error) {
	src := rand.NewPCG(uint64(e.cfg.Seed), 0x5eed)
	out := *s
	if s.HasStates() && len(e.cfg.NoiseStd) == s.StateDim() {
		x, err := dataset.AddNoise(s.X, e.cfg.NoiseStd, src)
		if err != nil {
			return nil, err
		}
		out.X = x
		cols := e.Columns()
		if idx, err := outputStates(cols.Outputs, cols.States); err == nil {
			out.Y = make([][]float32, len(x))
			for i, row := range x {
				y := make([]float32, len(idx))
				for c, j := range idx {
					y[c] = row[j]
				}
				out.Y[i] = y
			}
		}
		return &out, nil
	}
	y, err := dataset.AddNoise(s.Y, e.cfg.NoiseStd, src)
	if err != nil {
		return nil, err
	}
	out.Y = y
	return &out, nil
}

func withoutStates(s *dataset.Series) *dataset.Series {
	out := *s
	out.X = nil
	return &out
}

// BuildModel constructs the configured model variant and, when a checkpoint
// is configured, warm starts it from there.
func (e *Experiment) BuildModel(ts float64, seed int64) (models.Residual, error) {
	variant, err := models.ParseVariant(e.cfg.ModelVariant)
	if err != nil {
		return nil, err
	}
	a, b, outputMap, err := e.cfg.Known()
	if err != nil {
		return nil, err
	}
	switch e.cfg.Structure {
	case "":
	case "cartpole":
		a, outputMap = models.CartPoleStructure(ts)
	default:
		return nil, fmt.Errorf("unknown structure: %s", e.cfg.Structure)
	}

	m, err := models.New(models.Spec{
		Variant:   variant,
		StateDim:  e.cfg.NX,
		InputDim:  e.cfg.NU,
		Features:  e.cfg.NFeat,
		InitStd:   e.cfg.InitStd,
		Seed:      seed,
		AKnown:    a,
		BKnown:    b,
		OutputMap: outputMap,
	})
	if err != nil {
		return nil, err
	}

	if e.cfg.Checkpoint != "" {
		cp, err := storage.LoadCheckpoint(e.cfg.Checkpoint)
		if err != nil {
			return nil, err
		}
		if err := models.Restore(m, cp); err != nil {
			return nil, fmt.Errorf("warm start from %s: %w", e.cfg.Checkpoint, err)
		}
		e.log.Info("warm start", zap.String("checkpoint", e.cfg.Checkpoint))
	}
	return m, nil
}

// Outcome is one fitted seed with its validation.
type Outcome struct {
	Seed       int64
	Model      models.Residual
	Result     *fit.Result
	Validation *Validation
}

// Fit trains one model on d.Fit and validates it on d.Val. On a failed or
// interrupted fit the partial outcome is returned next to the error.
func (e *Experiment) Fit(ctx context.Context, d *Data, seed int64, opts ...fit.Option) (*Outcome, error) {
	model, err := e.BuildModel(d.Fit.Ts(), seed)
	if err != nil {
		return nil, err
	}
	opt, err := optim.New(e.cfg.Optimizer, e.cfg.LearningRate)
	if err != nil {
		return nil, err
	}

	log := e.log.With(zap.Int64("seed", seed))
	opts = append([]fit.Option{fit.WithLogger(log)}, opts...)
	f, err := fit.New(model, d.Fit, opt, fit.Config{
		SeqLen:      e.cfg.SeqLen,
		BatchSize:   e.cfg.BatchSize,
		NumIter:     e.cfg.NumIter,
		TestFreq:    e.cfg.TestFreq,
		Momentum:    e.cfg.Momentum,
		Unmeasured:  e.cfg.Unmeasured,
		OutputIndex: e.cfg.OutputIndex,
		Seed:        seed,
	}, opts...)
	if err != nil {
		return nil, err
	}

	out := &Outcome{Seed: seed, Model: model}
	out.Result, err = f.Run(ctx)
	if err != nil {
		return out, err
	}

	out.Validation, err = Validate(model, d.Val, d.Proj)
	if err != nil {
		return out, err
	}
	log.Info("validated", zap.Any("metrics", out.Validation.Metrics))
	return out, nil
}

// RunSeeds fits n models with consecutive seeds starting at cfg.Seed.
func (e *Experiment) RunSeeds(ctx context.Context, d *Data, n int, opts ...fit.Option) ([]*Outcome, error) {
	ens := dynamo.NewEnsemble(n, e.cfg.Seed)
	return dynamo.RunEnsemble(ctx, ens, func(ctx context.Context, seed int64) (*Outcome, error) {
		return e.Fit(ctx, d, seed, opts...)
	})
}

// Validation compares an open-loop simulation with the measured record.
type Validation struct {
	Time      []float64
	Measured  [][]float32
	Simulated [][]float32
	Metrics   map[string][]float64

	// Consistency is the one-step residual over measured states; it is
	// only set when the record carries states.
	Consistency float64
}

// Validate simulates the model over the whole record from its first state
// and scores the observed components. Without measured states the
// observed components of x0 are taken from the first output row and the
// rest start at zero.
func Validate(model models.Residual, s *dataset.Series, proj []int) (*Validation, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	nx := model.StateDim()

	var x0 []float32
	switch {
	case s.HasStates():
		x0 = s.X[0]
	case len(proj) > 0:
		x0 = make([]float32, nx)
		for c, j := range proj {
			if j < 0 || j >= nx {
				return nil, fmt.Errorf("%w: output index %d outside state of size %d", dynamo.ErrDimensionMismatch, j, nx)
			}
			x0[j] = s.Y[0][c]
		}
	default:
		return nil, fmt.Errorf("%w: record has neither states nor an output projection", dynamo.ErrInsufficientData)
	}

	traj, err := sim.New(model).Simulate(x0, s.U)
	if err != nil {
		return nil, err
	}

	v := &Validation{Time: s.Time, Measured: s.X, Simulated: traj}
	if len(proj) > 0 {
		if len(proj) != s.OutputDim() {
			return nil, dynamo.Mismatch("output columns", len(proj), s.OutputDim())
		}
		v.Measured = s.Y
		v.Simulated = make([][]float32, len(traj))
		for i, x := range traj {
			y := make([]float32, len(proj))
			for c, j := range proj {
				y[c] = x[j]
			}
			v.Simulated[i] = y
		}
	}
	v.Metrics = metrics.Evaluate(v.Simulated, v.Measured)

	if s.HasStates() {
		if v.Consistency, err = fit.OneStepConsistency(model, s.X, s.U); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Trajectories converts a validation into its stored form.
func (v *Validation) Trajectories() *storage.Trajectories {
	return &storage.Trajectories{Time: v.Time, Measured: v.Measured, Simulated: v.Simulated}
}
