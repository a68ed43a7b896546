package config

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

const (
	DefaultNFeat        = 64
	DefaultSeqLen       = 64
	DefaultBatchSize    = 32
	DefaultNumIter      = 5000
	DefaultTestFreq     = 100
	DefaultLearningRate = 1e-4
	DefaultMomentum     = 0.97
	DefaultInitStd      = 1e-4
)

type Config struct {
	System       string      `yaml:"system"`
	Data         string      `yaml:"data,omitempty"`
	Columns      Columns     `yaml:"columns"`
	NX           int         `yaml:"n_x"`
	NU           int         `yaml:"n_u"`
	NFeat        int         `yaml:"n_feat"`
	ModelVariant string      `yaml:"model_variant"`
	Structure    string      `yaml:"structure,omitempty"`
	InitStd      float64     `yaml:"init_std"`
	AKnown       [][]float64 `yaml:"a_known,omitempty"`
	BKnown       [][]float64 `yaml:"b_known,omitempty"`
	OutputMap    [][]float64 `yaml:"output_map,omitempty"`
	Checkpoint   string      `yaml:"checkpoint,omitempty"`
	SeqLen       int         `yaml:"seq_len"`
	BatchSize    int         `yaml:"batch_size"`
	NumIter      int         `yaml:"num_iter"`
	TestFreq     int         `yaml:"test_freq"`
	LearningRate float64     `yaml:"learning_rate"`
	Optimizer    string      `yaml:"optimizer"`
	Momentum     float64     `yaml:"momentum"`
	NoiseStd     []float64   `yaml:"noise_std,omitempty"`
	Unmeasured   bool        `yaml:"unmeasured"`
	OutputIndex  []int       `yaml:"output_index,omitempty"`
	FitSamples   int         `yaml:"fit_samples,omitempty"`
	Seed         int64       `yaml:"seed"`
	Generator    Generator   `yaml:"generator"`
}

// Columns maps record columns to the time, input, output and state roles.
// Scale multiplies a column by a constant as it is loaded.
type Columns struct {
	Time    string             `yaml:"time"`
	Inputs  []string           `yaml:"inputs"`
	Outputs []string           `yaml:"outputs"`
	States  []string           `yaml:"states,omitempty"`
	Scale   map[string]float64 `yaml:"scale,omitempty"`
}

// Generator describes how synthetic data for System is produced.
type Generator struct {
	Samples    int                `yaml:"samples"`
	Ts         float64            `yaml:"ts"`
	Integrator string             `yaml:"integrator"`
	Substeps   int                `yaml:"substeps"`
	Excitation string             `yaml:"excitation"`
	Offset     float64            `yaml:"offset"`
	Amplitude  float64            `yaml:"amplitude"`
	Hold       float64            `yaml:"hold,omitempty"`
	Freqs      []float64          `yaml:"freqs,omitempty"`
	InitState  []float64          `yaml:"init_state"`
	Params     map[string]float64 `yaml:"params,omitempty"`
	A          [][]float64        `yaml:"a,omitempty"`
	B          [][]float64        `yaml:"b,omitempty"`
	C          [][]float64        `yaml:"c,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		System:       "linear",
		NX:           2,
		NU:           1,
		NFeat:        DefaultNFeat,
		ModelVariant: "free-form",
		InitStd:      DefaultInitStd,
		SeqLen:       DefaultSeqLen,
		BatchSize:    DefaultBatchSize,
		NumIter:      DefaultNumIter,
		TestFreq:     DefaultTestFreq,
		LearningRate: DefaultLearningRate,
		Optimizer:    "adam",
		Momentum:     DefaultMomentum,
		Columns: Columns{
			Time:    "time",
			Inputs:  []string{"u"},
			Outputs: []string{"y"},
			States:  []string{"x1", "x2"},
		},
		Generator: Generator{
			Samples:    1000,
			Ts:         0.01,
			Integrator: "rk4",
			Substeps:   1,
			Excitation: "steps",
			Amplitude:  1,
			Hold:       0.5,
			InitState:  []float64{0, 0},
			A:          [][]float64{{1, 0.01}, {-0.25, 0.97}},
			B:          [][]float64{{0}, {0.25}},
			C:          [][]float64{{1, 0}},
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

var variants = map[string]bool{"free-form": true, "residual-plus-linear": true, "pure-linear": true}

func (c *Config) Validate() error {
	switch {
	case c.NX < 1:
		return fmt.Errorf("n_x must be positive, got %d", c.NX)
	case c.NU < 0:
		return fmt.Errorf("n_u must be non-negative, got %d", c.NU)
	case c.NFeat < 1 && c.ModelVariant != "pure-linear":
		return fmt.Errorf("n_feat must be positive, got %d", c.NFeat)
	case !variants[c.ModelVariant]:
		return fmt.Errorf("unknown model_variant %q", c.ModelVariant)
	case c.SeqLen < 1:
		return fmt.Errorf("seq_len must be positive, got %d", c.SeqLen)
	case c.BatchSize < 1:
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	case c.NumIter < 0:
		return fmt.Errorf("num_iter must be non-negative, got %d", c.NumIter)
	case c.LearningRate <= 0:
		return fmt.Errorf("learning_rate must be positive, got %g", c.LearningRate)
	case c.Momentum < 0 || c.Momentum >= 1:
		return fmt.Errorf("momentum must be in [0, 1), got %g", c.Momentum)
	case c.FitSamples < 0:
		return fmt.Errorf("fit_samples must be non-negative, got %d", c.FitSamples)
	}
	for _, s := range c.NoiseStd {
		if s < 0 {
			return fmt.Errorf("noise_std entries must be non-negative, got %g", s)
		}
	}
	if len(c.Columns.Inputs) != c.NU {
		return fmt.Errorf("columns.inputs lists %d columns, n_u is %d", len(c.Columns.Inputs), c.NU)
	}
	if len(c.Columns.States) > 0 && len(c.Columns.States) != c.NX {
		return fmt.Errorf("columns.states lists %d columns, n_x is %d", len(c.Columns.States), c.NX)
	}
	return nil
}

// Matrix converts a row-major nested slice to a dense matrix. A nil slice
// gives a nil matrix.
func Matrix(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	cols := len(rows[0])
	if cols == 0 {
		return nil, fmt.Errorf("matrix has empty rows")
	}
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("matrix row %d has %d columns, want %d", i, len(r), cols)
		}
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), cols, data), nil
}

// Known returns the fixed matrices of the residual-plus-linear variant, or
// the initial A and B of the pure-linear one.
func (c *Config) Known() (a, b, outputMap *mat.Dense, err error) {
	if a, err = Matrix(c.AKnown); err != nil {
		return nil, nil, nil, fmt.Errorf("a_known: %w", err)
	}
	if b, err = Matrix(c.BKnown); err != nil {
		return nil, nil, nil, fmt.Errorf("b_known: %w", err)
	}
	if outputMap, err = Matrix(c.OutputMap); err != nil {
		return nil, nil, nil, fmt.Errorf("output_map: %w", err)
	}
	return a, b, outputMap, nil
}
