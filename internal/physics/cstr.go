package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/dynid/internal/dynamo"
)

// CSTR is a first-order exothermic reaction A -> B in a cooled stirred tank.
// Time is in minutes, the input is the feed flow rate q (L/min).
type CSTR struct {
	Volume    float64 // V, L
	FeedConc  float64 // Caf, mol/L
	FeedTemp  float64 // Tf, K
	RateConst float64 // k0, 1/min
	Activ     float64 // E/R, K
	Enthalpy  float64 // -dH, J/mol
	Density   float64 // rho, g/L
	HeatCap   float64 // Cp, J/(g K)
	UA        float64 // J/(min K)
	Coolant   float64 // Tc, K
}

func NewCSTR() *CSTR {
	return &CSTR{
		Volume:    100,
		FeedConc:  1,
		FeedTemp:  350,
		RateConst: 7.2e10,
		Activ:     8750,
		Enthalpy:  5e4,
		Density:   1000,
		HeatCap:   0.239,
		UA:        5e4,
		Coolant:   300,
	}
}

func (c *CSTR) StateDim() int   { return 2 }
func (c *CSTR) ControlDim() int { return 1 }

// Derive uses the state ordering [Ca, T].
func (c *CSTR) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	ca, temp := x[0], x[1]
	q := 100.0
	if len(u) > 0 {
		q = u[0]
	}

	rate := c.RateConst * math.Exp(-c.Activ/temp) * ca
	rc := c.Density * c.HeatCap

	dca := q/c.Volume*(c.FeedConc-ca) - rate
	dtemp := q/c.Volume*(c.FeedTemp-temp) + c.Enthalpy/rc*rate + c.UA/(c.Volume*rc)*(c.Coolant-temp)

	return dynamo.State{dca, dtemp}
}

func (c *CSTR) GetParams() map[string]float64 {
	return map[string]float64{
		"volume":    c.Volume,
		"feed_conc": c.FeedConc,
		"feed_temp": c.FeedTemp,
		"k0":        c.RateConst,
		"e_over_r":  c.Activ,
		"enthalpy":  c.Enthalpy,
		"density":   c.Density,
		"heat_cap":  c.HeatCap,
		"ua":        c.UA,
		"coolant":   c.Coolant,
	}
}

func (c *CSTR) SetParam(name string, value float64) error {
	switch name {
	case "volume":
		c.Volume = value
	case "feed_conc":
		c.FeedConc = value
	case "feed_temp":
		c.FeedTemp = value
	case "k0":
		c.RateConst = value
	case "e_over_r":
		c.Activ = value
	case "enthalpy":
		c.Enthalpy = value
	case "density":
		c.Density = value
	case "heat_cap":
		c.HeatCap = value
	case "ua":
		c.UA = value
	case "coolant":
		c.Coolant = value
	default:
		return fmt.Errorf("unknown param: %s", name)
	}
	return nil
}
