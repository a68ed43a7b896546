package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/dynid/internal/dynamo"
)

// RLC is a series RLC circuit driven by V_IN. When Saturating is set the
// inductance drops as the current approaches the core saturation level.
type RLC struct {
	Resistance  float64
	Inductance  float64
	Capacitance float64
	Saturating  bool
}

func NewRLC() *RLC {
	return &RLC{
		Resistance:  3,
		Inductance:  50e-6,
		Capacitance: 270e-9,
		Saturating:  true,
	}
}

func (r *RLC) StateDim() int   { return 2 }
func (r *RLC) ControlDim() int { return 1 }

// InductanceAt returns L(i_L).
func (r *RLC) InductanceAt(current float64) float64 {
	if !r.Saturating {
		return r.Inductance
	}
	return r.Inductance * ((0.9/math.Pi)*math.Atan(-5*(math.Abs(current)-5)) + 0.6)
}

// Derive uses the state ordering [V_C, I_L].
func (r *RLC) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	vc, il := x[0], x[1]
	vin := 0.0
	if len(u) > 0 {
		vin = u[0]
	}

	dvc := il / r.Capacitance
	dil := (-vc - r.Resistance*il + vin) / r.InductanceAt(il)
	return dynamo.State{dvc, dil}
}

func (r *RLC) GetParams() map[string]float64 {
	sat := 0.0
	if r.Saturating {
		sat = 1
	}
	return map[string]float64{
		"r":          r.Resistance,
		"l":          r.Inductance,
		"c":          r.Capacitance,
		"saturating": sat,
	}
}

func (r *RLC) SetParam(name string, value float64) error {
	switch name {
	case "r":
		r.Resistance = value
	case "l":
		r.Inductance = value
	case "c":
		r.Capacitance = value
	case "saturating":
		r.Saturating = value != 0
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
