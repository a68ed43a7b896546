package fit

import (
	"context"
	"fmt"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/san-kum/dynid/internal/dataset"
	"github.com/san-kum/dynid/internal/dynamo"
	"github.com/san-kum/dynid/internal/metrics"
	"github.com/san-kum/dynid/internal/models"
	"github.com/san-kum/dynid/internal/optim"
	"github.com/san-kum/dynid/internal/sim"
)

type Fitter struct {
	model   models.Residual
	sim     *sim.Simulator
	sampler *dataset.Sampler
	opt     optim.Optimizer
	cfg     Config

	log       *zap.Logger
	reporters multiReporter
	rng       *rand.Rand

	proj   []int
	latent *dynamo.Param
	params []*dynamo.Param

	lossScale float64
	meter     *metrics.RunningAverage
	state     State
	iter      int
	losses    []float64
}

type Option func(*Fitter)

func WithLogger(log *zap.Logger) Option {
	return func(f *Fitter) { f.log = log }
}

func WithReporter(r Reporter) Option {
	return func(f *Fitter) { f.reporters = append(f.reporters, r) }
}

// WithRand overrides the batch sampling source derived from Config.Seed.
func WithRand(rng *rand.Rand) Option {
	return func(f *Fitter) { f.rng = rng }
}

// Result summarizes a finished or interrupted run.
type Result struct {
	Losses     []float64
	Average    float64
	LossScale  float64
	Iterations int
	Latent     *dynamo.Param
}

// New validates the record against the model, prepares the batch sampler
// and, for unmeasured fits, the latent state sequence, then computes the
// loss scale from one rollout of the initial model.
func New(model models.Residual, series *dataset.Series, opt optim.Optimizer, cfg Config, opts ...Option) (*Fitter, error) {
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}

	f := &Fitter{
		model: model,
		sim:   sim.New(model),
		opt:   opt,
		cfg:   cfg,
		log:   zap.NewNop(),
		meter: metrics.NewRunningAverage(cfg.Momentum),
		state: Initializing,
	}
	for _, o := range opts {
		o(f)
	}
	if f.rng == nil {
		f.rng = rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(cfg.Seed)>>1|1))
	}

	nx := model.StateDim()
	if series.InputDim() != model.InputDim() {
		return nil, dynamo.Mismatch("input columns", model.InputDim(), series.InputDim())
	}
	if series.HasStates() && series.StateDim() != nx {
		return nil, dynamo.Mismatch("state columns", nx, series.StateDim())
	}

	samplerOpts, err := f.layout(series)
	if err != nil {
		return nil, err
	}
	f.sampler, err = dataset.NewSampler(series, f.rng, samplerOpts...)
	if err != nil {
		return nil, err
	}

	f.params = model.Params()
	if f.latent != nil {
		f.params = append(f.params, f.latent)
	}

	if err := f.computeLossScale(); err != nil {
		return nil, err
	}
	f.state = Iterating
	if cfg.NumIter == 0 {
		f.state = Exhausted
	}
	return f, nil
}

// layout decides which state components are compared against which target
// columns, and where the initial states come from.
func (f *Fitter) layout(series *dataset.Series) ([]dataset.SamplerOption, error) {
	nx := f.model.StateDim()
	ny := series.OutputDim()
	var opts []dataset.SamplerOption

	switch {
	case f.cfg.OutputIndex != nil:
		f.proj = append([]int(nil), f.cfg.OutputIndex...)
	case f.cfg.Unmeasured:
		f.proj = identity(ny)
	default:
		if !series.HasStates() {
			return nil, fmt.Errorf("%w: measured-state fit needs state columns", dynamo.ErrDimensionMismatch)
		}
		f.proj = identity(nx)
		opts = append(opts, dataset.WithTargets(series.X))
	}

	for _, j := range f.proj {
		if j < 0 || j >= nx {
			return nil, fmt.Errorf("%w: output index %d outside state of size %d", dynamo.ErrDimensionMismatch, j, nx)
		}
	}
	if f.cfg.OutputIndex != nil || f.cfg.Unmeasured {
		if len(f.proj) != ny {
			return nil, dynamo.Mismatch("output columns", len(f.proj), ny)
		}
	}

	if f.cfg.Unmeasured {
		f.latent = initLatent(series, nx, f.proj)
		opts = append(opts, dataset.WithStateSource(dataset.ParamSource{P: f.latent}))
	}
	return opts, nil
}

func identity(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// initLatent seeds the latent sequence with the measured states when the
// record has them, otherwise with the outputs placed at their state indices.
func initLatent(series *dataset.Series, nx int, proj []int) *dynamo.Param {
	p := dynamo.NewParam("latent", series.Len(), nx)
	for i := 0; i < series.Len(); i++ {
		row := p.Row(i)
		if series.HasStates() {
			copy(row, series.X[i])
			continue
		}
		for c, j := range proj {
			row[j] = series.Y[i][c]
		}
	}
	return p
}

func (f *Fitter) computeLossScale() error {
	b, err := f.sampler.Sample(f.cfg.BatchSize, f.cfg.SeqLen)
	if err != nil {
		return err
	}
	preds, err := f.sim.SimulateBatch(b.X0, b.U)
	if err != nil {
		return err
	}

	sum := 0.0
	for i := range preds {
		for k := range preds[i] {
			for c, j := range f.proj {
				e := float64(preds[i][k][j]) - float64(b.Target[i][k][c])
				sum += e * e
			}
		}
	}
	scale := sum / float64(len(preds)*f.cfg.SeqLen*len(f.proj))
	if scale == 0 || !dynamo.IsFinite(scale) {
		return fmt.Errorf("%w: initial loss %g", dynamo.ErrDegenerateLossScale, scale)
	}

	f.lossScale = scale
	f.log.Info("loss scale computed", zap.Float64("scale", scale))
	return nil
}

func (f *Fitter) State() State           { return f.state }
func (f *Fitter) Iteration() int         { return f.iter }
func (f *Fitter) LossScale() float64     { return f.lossScale }
func (f *Fitter) Latent() *dynamo.Param  { return f.latent }
func (f *Fitter) Model() models.Residual { return f.model }

// Params returns every parameter updated by the optimizer.
func (f *Fitter) Params() []*dynamo.Param { return f.params }

// Step runs one training iteration. A non-finite loss fails the fitter
// before any parameter is modified.
func (f *Fitter) Step() (Progress, error) {
	switch f.state {
	case Exhausted:
		return Progress{}, ErrExhausted
	case Failed, Initializing:
		return Progress{}, fmt.Errorf("%w: fitter is %s", dynamo.ErrInvalidState, f.state)
	}

	b, err := f.sampler.Sample(f.cfg.BatchSize, f.cfg.SeqLen)
	if err != nil {
		return Progress{}, f.fail(err)
	}
	preds, err := f.sim.SimulateBatch(b.X0, b.U)
	if err != nil {
		return Progress{}, f.fail(err)
	}

	fitLoss, consLoss, gTraj := f.loss(b, preds)
	loss := fitLoss + consLoss
	if !dynamo.IsFinite(loss) {
		return Progress{}, f.fail(fmt.Errorf("%w: %g", dynamo.ErrNonFiniteLoss, loss))
	}

	for _, p := range f.params {
		p.ZeroGrad()
	}
	if f.latent != nil {
		f.latentConsistencyGrad(b, preds)
	}
	gx0, err := f.sim.BackwardBatch(b.U, preds, gTraj)
	if err != nil {
		return Progress{}, f.fail(err)
	}
	if f.latent != nil {
		for i, start := range b.Starts {
			grow := f.latent.GradRow(start)
			for j, g := range gx0[i] {
				grow[j] += g
			}
		}
	}

	f.opt.Step(f.params)
	f.meter.Update(loss)
	f.losses = append(f.losses, loss)

	p := Progress{
		Iter:        f.iter,
		Loss:        loss * f.lossScale,
		Scaled:      loss,
		Average:     f.meter.Avg(),
		Fit:         fitLoss,
		Consistency: consLoss,
	}
	if f.iter%f.cfg.TestFreq == 0 {
		f.log.Debug("iteration",
			zap.Int("iter", p.Iter),
			zap.Float64("fit", p.Fit),
			zap.Float64("consistency", p.Consistency),
		)
		f.reporters.Report(p)
	}

	f.iter++
	if f.iter >= f.cfg.NumIter {
		f.state = Exhausted
	}
	return p, nil
}

func (f *Fitter) fail(err error) error {
	f.state = Failed
	return &IterationError{Iter: f.iter, Wrapped: err}
}

// loss returns the scaled fit and consistency losses with the gradient of
// their sum with respect to every predicted state.
func (f *Fitter) loss(b *dataset.Batch, preds [][][]float32) (fitLoss, consLoss float64, gTraj [][][]float64) {
	nx := f.model.StateDim()
	B, L := len(preds), f.cfg.SeqLen
	fitNorm := float64(B*L*len(f.proj)) * f.lossScale
	consNorm := float64(B*L*nx) * f.lossScale

	gTraj = make([][][]float64, B)
	for i := range preds {
		gTraj[i] = make([][]float64, L)
		for k := 0; k < L; k++ {
			g := make([]float64, nx)
			pred := preds[i][k]
			for c, j := range f.proj {
				e := float64(pred[j]) - float64(b.Target[i][k][c])
				fitLoss += e * e
				g[j] += 2 * e / fitNorm
			}
			if f.latent != nil {
				h := b.States[i][k]
				for j := range pred {
					e := float64(pred[j]) - float64(h[j])
					consLoss += e * e
					g[j] += 2 * e / consNorm
				}
			}
			gTraj[i][k] = g
		}
	}
	fitLoss /= fitNorm
	if f.latent != nil {
		consLoss /= consNorm
	}
	return fitLoss, consLoss, gTraj
}

// latentConsistencyGrad adds the gradient of the consistency loss with
// respect to the latent rows it was compared against.
func (f *Fitter) latentConsistencyGrad(b *dataset.Batch, preds [][][]float32) {
	nx := f.model.StateDim()
	consNorm := float64(len(preds)*f.cfg.SeqLen*nx) * f.lossScale
	for i, start := range b.Starts {
		for k := range preds[i] {
			grow := f.latent.GradRow(start + k)
			h := b.States[i][k]
			for j, v := range preds[i][k] {
				grow[j] -= 2 * (float64(v) - float64(h[j])) / consNorm
			}
		}
	}
}

// Run iterates until the budget is spent, a step fails or ctx is done.
func (f *Fitter) Run(ctx context.Context) (*Result, error) {
	f.log.Info("fit started",
		zap.String("variant", string(f.model.Variant())),
		zap.Int("num_iter", f.cfg.NumIter),
		zap.Int("params", models.NumParams(f.model)),
		zap.Bool("unmeasured", f.latent != nil),
	)

	for f.state == Iterating {
		select {
		case <-ctx.Done():
			f.log.Warn("fit interrupted", zap.Int("iter", f.iter))
			return f.Result(), ctx.Err()
		default:
		}
		if _, err := f.Step(); err != nil {
			f.log.Error("fit failed", zap.Error(err))
			return f.Result(), err
		}
	}

	f.log.Info("fit finished",
		zap.Int("iterations", f.iter),
		zap.Float64("avg_loss", f.meter.Avg()),
	)
	return f.Result(), nil
}

func (f *Fitter) Result() *Result {
	return &Result{
		Losses:     append([]float64(nil), f.losses...),
		Average:    f.meter.Avg(),
		LossScale:  f.lossScale,
		Iterations: f.iter,
		Latent:     f.latent,
	}
}

// OneStepConsistency is the mean squared one-step residual
// x[i+1] - x[i] - f(x[i], u[i]) of a state sequence under the model.
func OneStepConsistency(model models.Residual, states, inputs [][]float32) (float64, error) {
	if len(states) != len(inputs) {
		return 0, dynamo.Mismatch("input rows", len(states), len(inputs))
	}
	if len(states) < 2 {
		return 0, fmt.Errorf("%w: need at least two states", dynamo.ErrInsufficientData)
	}
	nx := model.StateDim()
	for _, x := range states {
		if len(x) != nx {
			return 0, dynamo.Mismatch("state row width", nx, len(x))
		}
	}
	sum := 0.0
	for i := 0; i+1 < len(states); i++ {
		dx := model.Eval(states[i], inputs[i])
		for j := range dx {
			e := float64(states[i+1][j]) - float64(states[i][j]) - float64(dx[j])
			sum += e * e
		}
	}
	v := sum / float64((len(states)-1)*nx)
	if !dynamo.IsFinite(v) {
		return v, dynamo.ErrNonFiniteLoss
	}
	return v, nil
}
