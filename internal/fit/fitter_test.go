package fit_test

import (
	"context"
	"math"
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/dynid/internal/dataset"
	"github.com/san-kum/dynid/internal/dynamo"
	"github.com/san-kum/dynid/internal/fit"
	"github.com/san-kum/dynid/internal/models"
	"github.com/san-kum/dynid/internal/optim"
	"github.com/san-kum/dynid/internal/physics"
)

const ts = 0.01

// oscillator is a forward-Euler damped oscillator with a unit-gain input.
func oscillator() (a, b, c *mat.Dense) {
	a = mat.NewDense(2, 2, []float64{1, ts, -0.25, 0.97})
	b = mat.NewDense(2, 1, []float64{0, 0.25})
	c = mat.NewDense(1, 2, []float64{1, 0})
	return a, b, c
}

func linearRecord(n int, seed uint64) *dataset.Series {
	a, b, c := oscillator()
	sys, err := physics.NewLinearSystem(a, b, c, nil, []float64{0, 0})
	Expect(err).NotTo(HaveOccurred())

	rng := rand.New(rand.NewPCG(seed, seed+1))
	inputs := make([][]float64, n)
	level := 0.0
	for k := range inputs {
		if k%50 == 0 {
			level = 2*rng.Float64() - 1
		}
		inputs[k] = []float64{level}
	}
	xs, ys, err := sys.Simulate(inputs)
	Expect(err).NotTo(HaveOccurred())

	s := &dataset.Series{}
	for k := range inputs {
		s.Time = append(s.Time, float64(k)*ts)
		s.U = append(s.U, dynamo.State(inputs[k]).Float32())
		s.Y = append(s.Y, dynamo.State(ys[k]).Float32())
		s.X = append(s.X, dynamo.State(xs[k]).Float32())
	}
	return s
}

func mean(v []float64) float64 {
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

var _ = Describe("Fitter", func() {
	var (
		series *dataset.Series
		cfg    fit.Config
	)

	BeforeEach(func() {
		series = linearRecord(1000, 1)
		cfg = fit.Config{
			SeqLen:    50,
			BatchSize: 16,
			NumIter:   300,
			TestFreq:  10,
			Momentum:  0.97,
			Seed:      1,
		}
	})

	Context("when constructed", func() {
		It("computes the loss scale before any step", func() {
			model, _ := models.NewLinear(2, 1)
			f, err := fit.New(model, series, optim.NewAdam(1e-3), cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(f.State()).To(Equal(fit.Iterating))
			Expect(f.LossScale()).To(BeNumerically(">", 0))
			Expect(f.Iteration()).To(Equal(0))
		})

		It("fails fast on a degenerate loss scale", func() {
			zero := &dataset.Series{}
			for k := 0; k < 200; k++ {
				zero.Time = append(zero.Time, float64(k)*ts)
				zero.U = append(zero.U, []float32{0})
				zero.Y = append(zero.Y, []float32{0})
				zero.X = append(zero.X, []float32{0, 0})
			}
			model, _ := models.NewLinear(2, 1)
			_, err := fit.New(model, zero, optim.NewAdam(1e-3), cfg)
			Expect(err).To(MatchError(dynamo.ErrDegenerateLossScale))
		})

		It("rejects a window longer than the record", func() {
			cfg.SeqLen = 1000
			model, _ := models.NewLinear(2, 1)
			_, err := fit.New(model, series, optim.NewAdam(1e-3), cfg)
			Expect(err).To(MatchError(dynamo.ErrInsufficientData))
		})

		It("rejects a model whose input width differs from the record", func() {
			model, _ := models.NewLinear(2, 2)
			_, err := fit.New(model, series, optim.NewAdam(1e-3), cfg)
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
		})

		It("rejects output indices outside the state", func() {
			cfg.OutputIndex = []int{2}
			model, _ := models.NewLinear(2, 1)
			_, err := fit.New(model, series, optim.NewAdam(1e-3), cfg)
			Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
		})
	})

	Context("when a loss becomes non-finite", func() {
		It("aborts without touching the parameters", func() {
			model, _ := models.NewLinear(2, 1)
			f, err := fit.New(model, series, optim.NewAdam(1e-3), cfg)
			Expect(err).NotTo(HaveOccurred())

			params := model.Params()
			params[0].Data[0] = float32(math.NaN())
			before := append([]float32(nil), params[1].Data...)

			_, err = f.Step()
			Expect(err).To(MatchError(dynamo.ErrNonFiniteLoss))
			var iterErr *fit.IterationError
			Expect(err).To(BeAssignableToTypeOf(iterErr))
			Expect(params[1].Data).To(Equal(before))
			Expect(f.State()).To(Equal(fit.Failed))

			_, err = f.Step()
			Expect(err).To(MatchError(dynamo.ErrInvalidState))
		})
	})

	Context("with a pure-linear model on linear data", func() {
		It("reduces the scaled loss over repeated seeded runs", func() {
			var first, last []float64
			for seed := int64(1); seed <= 3; seed++ {
				cfg.Seed = seed
				model, err := models.NewLinear(2, 1)
				Expect(err).NotTo(HaveOccurred())
				f, err := fit.New(model, series, optim.NewAdam(1e-3), cfg)
				Expect(err).NotTo(HaveOccurred())

				res, err := f.Run(context.Background())
				Expect(err).NotTo(HaveOccurred())
				Expect(res.Losses).To(HaveLen(cfg.NumIter))
				Expect(res.Iterations).To(Equal(cfg.NumIter))
				Expect(f.State()).To(Equal(fit.Exhausted))

				first = append(first, mean(res.Losses[:10]))
				last = append(last, mean(res.Losses[len(res.Losses)-10:]))
			}
			Expect(mean(last)).To(BeNumerically("<", mean(first)))
		})

		It("reports progress every test_freq iterations", func() {
			cfg.NumIter = 35
			var iters []int
			var f *fit.Fitter
			model, _ := models.NewLinear(2, 1)
			f, err := fit.New(model, series, optim.NewAdam(1e-3), cfg,
				fit.WithReporter(fit.ReporterFunc(func(p fit.Progress) {
					iters = append(iters, p.Iter)
					Expect(p.Loss).To(BeNumerically("~", p.Scaled*f.LossScale(), 1e-9))
				})))
			Expect(err).NotTo(HaveOccurred())
			_, err = f.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(iters).To(Equal([]int{0, 10, 20, 30}))

			_, err = f.Step()
			Expect(err).To(MatchError(fit.ErrExhausted))
		})

		It("averages with the configured momentum, zero included", func() {
			cfg.NumIter = 3
			cfg.Momentum = 0
			model, _ := models.NewLinear(2, 1)
			f, err := fit.New(model, series, optim.NewAdam(1e-3), cfg)
			Expect(err).NotTo(HaveOccurred())
			res, err := f.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Losses).To(HaveLen(3))
			Expect(res.Average).To(Equal(res.Losses[2]))
		})

		It("stops when the context is cancelled", func() {
			model, _ := models.NewLinear(2, 1)
			f, err := fit.New(model, series, optim.NewAdam(1e-3), cfg)
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			res, err := f.Run(ctx)
			Expect(err).To(MatchError(context.Canceled))
			Expect(res.Iterations).To(Equal(0))
		})
	})

	Context("with an unmeasured state", func() {
		BeforeEach(func() {
			series.X = nil
			cfg.Unmeasured = true
			cfg.OutputIndex = []int{0}
			cfg.NumIter = 50
		})

		It("optimizes the latent sequence jointly with the model", func() {
			model, _ := models.NewFreeForm(2, 1, 16, models.WithSeed(3))
			f, err := fit.New(model, series, optim.NewAdam(1e-3), cfg)
			Expect(err).NotTo(HaveOccurred())

			latent := f.Latent()
			Expect(latent).NotTo(BeNil())
			Expect(latent.Shape).To(Equal([]int{1000, 2}))
			Expect(latent.Row(123)[0]).To(Equal(series.Y[123][0]))
			Expect(latent.Row(123)[1]).To(BeZero())
			Expect(f.Params()).To(ContainElement(latent))

			initial := append([]float32(nil), latent.Data...)
			res, err := f.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Latent).To(BeIdenticalTo(latent))
			Expect(latent.Data).NotTo(Equal(initial))
			for _, l := range res.Losses {
				Expect(math.IsInf(l, 0) || math.IsNaN(l)).To(BeFalse())
			}
		})

		It("sends progress through a channel reporter", func() {
			ch := make(chan fit.Progress, 16)
			model, _ := models.NewFreeForm(2, 1, 16)
			f, err := fit.New(model, series, optim.NewAdam(1e-3), cfg, fit.WithReporter(fit.ChannelReporter(ch)))
			Expect(err).NotTo(HaveOccurred())
			_, err = f.Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			Expect(ch).To(Receive(HaveField("Iter", 0)))
			var p fit.Progress
			Expect(ch).To(Receive(&p))
			Expect(p.Iter).To(Equal(10))
			Expect(p.Consistency).To(BeNumerically(">=", 0))
		})
	})
})

var _ = Describe("OneStepConsistency", func() {
	It("is zero for the states of the identified system", func() {
		series := linearRecord(200, 2)
		a, b, _ := oscillator()
		var residualA mat.Dense
		residualA.Sub(a, mat.NewDiagDense(2, []float64{1, 1}))
		model, err := models.NewLinear(2, 1, models.WithInitial(&residualA, b))
		Expect(err).NotTo(HaveOccurred())

		v, err := fit.OneStepConsistency(model, series.X, series.U)
		Expect(err).NotTo(HaveOccurred())
		Expect(v).To(BeNumerically("<", 1e-10))

		zero, _ := models.NewLinear(2, 1)
		v0, err := fit.OneStepConsistency(zero, series.X, series.U)
		Expect(err).NotTo(HaveOccurred())
		Expect(v0).To(BeNumerically(">", v))
	})

	It("checks its arguments", func() {
		model, _ := models.NewLinear(2, 1)
		_, err := fit.OneStepConsistency(model, [][]float32{{0, 0}}, [][]float32{{0}})
		Expect(err).To(MatchError(dynamo.ErrInsufficientData))
		_, err = fit.OneStepConsistency(model, [][]float32{{0, 0}, {0}}, [][]float32{{0}, {0}})
		Expect(err).To(MatchError(dynamo.ErrDimensionMismatch))
	})

	It("rejects an infinite residual", func() {
		model, _ := models.NewLinear(2, 1)
		inf := float32(math.Inf(1))
		_, err := fit.OneStepConsistency(model, [][]float32{{0, 0}, {inf, 0}}, [][]float32{{0}, {0}})
		Expect(err).To(MatchError(dynamo.ErrNonFiniteLoss))
	})
})
