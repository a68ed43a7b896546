package experiment

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/san-kum/dynid/internal/config"
	"github.com/san-kum/dynid/internal/control"
	"github.com/san-kum/dynid/internal/dynamo"
	"github.com/san-kum/dynid/internal/integrators"
	"github.com/san-kum/dynid/internal/physics"
)

type Registry struct {
	systems     map[string]func() dynamo.System
	integrators map[string]func(substeps int) dynamo.Integrator
	excitations map[string]func(g config.Generator, src rand.Source) dynamo.Controller
	stateNames  map[string][]string
}

func NewRegistry() *Registry {
	r := &Registry{
		systems:     make(map[string]func() dynamo.System),
		integrators: make(map[string]func(int) dynamo.Integrator),
		excitations: make(map[string]func(config.Generator, rand.Source) dynamo.Controller),
		stateNames: map[string][]string{
			"cstr":     {"Ca", "T"},
			"rlc":      {"V_C", "I_L"},
			"cartpole": {"p", "v", "theta", "omega"},
		},
	}

	r.systems["cstr"] = func() dynamo.System { return physics.NewCSTR() }
	r.systems["rlc"] = func() dynamo.System { return physics.NewRLC() }
	r.systems["cartpole"] = func() dynamo.System { return physics.NewCartPole() }

	r.integrators["euler"] = func(n int) dynamo.Integrator { return &integrators.Euler{Substeps: n} }
	r.integrators["rk4"] = func(n int) dynamo.Integrator { return integrators.NewRK4Substeps(n) }

	r.excitations["none"] = func(g config.Generator, _ rand.Source) dynamo.Controller {
		return control.NewConstant(g.Offset)
	}
	r.excitations["steps"] = func(g config.Generator, src rand.Source) dynamo.Controller {
		return control.NewSteps(g.Offset, g.Amplitude, g.Hold, src)
	}
	r.excitations["multisine"] = func(g config.Generator, src rand.Source) dynamo.Controller {
		return control.NewMultisine(g.Offset, g.Amplitude, g.Freqs, src)
	}

	return r
}

func (r *Registry) GetSystem(name string) (dynamo.System, error) {
	fn, ok := r.systems[name]
	if !ok {
		return nil, fmt.Errorf("unknown system: %s", name)
	}
	return fn(), nil
}

// StateNames returns the column names of a simulated system's state vector.
func (r *Registry) StateNames(system string) []string {
	return r.stateNames[system]
}

func (r *Registry) GetIntegrator(name string, substeps int) (dynamo.Integrator, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, fmt.Errorf("unknown integrator: %s", name)
	}
	return fn(substeps), nil
}

func (r *Registry) GetExcitation(g config.Generator, src rand.Source) (dynamo.Controller, error) {
	name := g.Excitation
	if name == "" {
		name = "none"
	}
	fn, ok := r.excitations[name]
	if !ok {
		return nil, fmt.Errorf("unknown excitation: %s", name)
	}
	return fn(g, src), nil
}

// ListSystems includes the discrete linear system, which is generated
// without an integrator.
func (r *Registry) ListSystems() []string {
	names := []string{"linear"}
	for name := range r.systems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListIntegrators() []string {
	names := make([]string, 0, len(r.integrators))
	for name := range r.integrators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) ListExcitations() []string {
	names := make([]string, 0, len(r.excitations))
	for name := range r.excitations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
