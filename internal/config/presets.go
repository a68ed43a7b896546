package config

import "sort"

// Presets holds ready-made identification setups, keyed by system and then
// by preset name.
var Presets = map[string]map[string]*Config{
	"cstr": {
		"default": {
			System: "cstr", NX: 2, NU: 1, NFeat: 64, ModelVariant: "free-form", InitStd: 1e-4,
			SeqLen: 16, BatchSize: 64, NumIter: 20000, TestFreq: 100, LearningRate: 1e-4,
			Optimizer: "adam", Momentum: 0.97,
			Columns: Columns{
				Time: "time", Inputs: []string{"q"}, Outputs: []string{"Ca"}, States: []string{"Ca", "T"},
				Scale: map[string]float64{"q": 0.01, "Ca": 10, "T": 1.0 / 400},
			},
			Generator: Generator{
				Samples: 2000, Ts: 0.1, Integrator: "rk4", Substeps: 10, Excitation: "steps",
				Offset: 100, Amplitude: 10, Hold: 5, InitState: []float64{0.5, 350},
			},
		},
		"noisy": {
			System: "cstr", NX: 2, NU: 1, NFeat: 64, ModelVariant: "free-form", InitStd: 1e-4,
			SeqLen: 32, BatchSize: 32, NumIter: 20000, TestFreq: 100, LearningRate: 1e-4,
			Optimizer: "adam", Momentum: 0.97, NoiseStd: []float64{0.02, 0.002}, FitSamples: 1500,
			Columns: Columns{
				Time: "time", Inputs: []string{"q"}, Outputs: []string{"Ca"}, States: []string{"Ca", "T"},
				Scale: map[string]float64{"q": 0.01, "Ca": 10, "T": 1.0 / 400},
			},
			Generator: Generator{
				Samples: 2000, Ts: 0.1, Integrator: "rk4", Substeps: 10, Excitation: "steps",
				Offset: 100, Amplitude: 10, Hold: 5, InitState: []float64{0.5, 350},
			},
		},
	},
	"rlc": {
		"default": {
			System: "rlc", NX: 2, NU: 1, NFeat: 64, ModelVariant: "free-form", InitStd: 1e-4,
			SeqLen: 64, BatchSize: 32, NumIter: 10000, TestFreq: 100, LearningRate: 1e-4,
			Optimizer: "adam", Momentum: 0.97, FitSamples: 4000,
			Columns: Columns{
				Time: "time", Inputs: []string{"V_IN"}, Outputs: []string{"V_C"}, States: []string{"V_C", "I_L"},
				Scale: map[string]float64{"time": 1e6},
			},
			Generator: Generator{
				Samples: 6000, Ts: 0.5e-6, Integrator: "rk4", Substeps: 10, Excitation: "steps",
				Amplitude: 80, Hold: 20e-6, InitState: []float64{0, 0},
			},
		},
		"unmeasured": {
			System: "rlc", NX: 2, NU: 1, NFeat: 64, ModelVariant: "free-form", InitStd: 1e-4,
			SeqLen: 100, BatchSize: 32, NumIter: 10000, TestFreq: 100, LearningRate: 1e-4,
			Optimizer: "adam", Momentum: 0.97, FitSamples: 4000,
			Unmeasured: true, OutputIndex: []int{0}, NoiseStd: []float64{5, 0.5},
			Columns: Columns{
				Time: "time", Inputs: []string{"V_IN"}, Outputs: []string{"V_C"},
				Scale: map[string]float64{"time": 1e6},
			},
			Generator: Generator{
				Samples: 6000, Ts: 0.5e-6, Integrator: "rk4", Substeps: 10, Excitation: "steps",
				Amplitude: 80, Hold: 20e-6, InitState: []float64{0, 0},
			},
		},
	},
	"cartpole": {
		"lqr": {
			System: "cartpole", NX: 4, NU: 1, NFeat: 64, ModelVariant: "residual-plus-linear",
			Structure: "cartpole", InitStd: 1e-4,
			SeqLen: 32, BatchSize: 32, NumIter: 10000, TestFreq: 100, LearningRate: 1e-4,
			Optimizer: "adam", Momentum: 0.97, FitSamples: 1500,
			Columns: Columns{
				Time: "time", Inputs: []string{"u"}, Outputs: []string{"p", "theta"},
				States: []string{"p", "v", "theta", "omega"},
			},
			Generator: Generator{
				Samples: 2000, Ts: 0.01, Integrator: "rk4", Substeps: 4, Excitation: "multisine",
				Amplitude: 2, Freqs: []float64{0.1, 0.3, 0.7, 1.3, 2.9}, InitState: []float64{0, 0, 0.05, 0},
			},
		},
	},
	"linear": {
		"oscillator": DefaultConfig(),
		"pure-linear": {
			System: "linear", NX: 2, NU: 1, NFeat: 1, ModelVariant: "pure-linear",
			SeqLen: 50, BatchSize: 16, NumIter: 2000, TestFreq: 100, LearningRate: 1e-3,
			Optimizer: "adam", Momentum: 0.97, FitSamples: 800,
			Columns: DefaultConfig().Columns,
			Generator: DefaultConfig().Generator,
		},
	},
}

// GetPreset returns a copy of the named preset, or nil.
func GetPreset(system, preset string) *Config {
	if systemPresets, ok := Presets[system]; ok {
		if cfg, ok := systemPresets[preset]; ok {
			c := *cfg
			return &c
		}
	}
	return nil
}

func ListPresets(system string) []string {
	if systemPresets, ok := Presets[system]; ok {
		names := make([]string, 0, len(systemPresets))
		for name := range systemPresets {
			names = append(names, name)
		}
		sort.Strings(names)
		return names
	}
	return nil
}

func ListSystems() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
