package physics

import (
	"fmt"
	"math"

	"github.com/san-kum/dynid/internal/dynamo"
)

// CartPole is a cart carrying a uniform pole of half-length PoleLength,
// pushed by a horizontal force. The state is [p, v, theta, omega] with
// theta = 0 upright.
type CartPole struct {
	CartMass   float64 // kg
	PoleMass   float64 // kg
	PoleLength float64 // m, pivot to center of mass
	Gravity    float64 // m/s^2
	Friction   float64 // N s/m on the cart
}

func NewCartPole() *CartPole {
	return &CartPole{
		CartMass:   1.0,
		PoleMass:   0.1,
		PoleLength: 1.0,
		Gravity:    9.81,
		Friction:   0.1,
	}
}

func (c *CartPole) StateDim() int   { return 4 }
func (c *CartPole) ControlDim() int { return 1 }

// Derive solves the 2x2 mass matrix
//
//	[ mc+mp        mp l cos θ ] [ a ] = [ F - b v + mp l ω² sin θ ]
//	[ mp l cos θ   4/3 mp l²  ] [ α ]   [ mp g l sin θ            ]
//
// for the cart acceleration a and the pole angular acceleration α.
func (c *CartPole) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	v, theta, omega := x[1], x[2], x[3]
	force := 0.0
	if len(u) > 0 {
		force = u[0]
	}

	mp, l := c.PoleMass, c.PoleLength
	sin, cos := math.Sincos(theta)

	m11 := c.CartMass + mp
	m12 := mp * l * cos
	m22 := 4.0 / 3.0 * mp * l * l
	r1 := force - c.Friction*v + mp*l*omega*omega*sin
	r2 := mp * c.Gravity * l * sin

	det := m11*m22 - m12*m12
	acc := (m22*r1 - m12*r2) / det
	alpha := (m11*r2 - m12*r1) / det

	return dynamo.State{v, acc, omega, alpha}
}

func (c *CartPole) GetParams() map[string]float64 {
	return map[string]float64{
		"cart_mass":   c.CartMass,
		"pole_mass":   c.PoleMass,
		"pole_length": c.PoleLength,
		"gravity":     c.Gravity,
		"friction":    c.Friction,
	}
}

func (c *CartPole) SetParam(name string, value float64) error {
	p, ok := map[string]*float64{
		"cart_mass":   &c.CartMass,
		"pole_mass":   &c.PoleMass,
		"pole_length": &c.PoleLength,
		"gravity":     &c.Gravity,
		"friction":    &c.Friction,
	}[name]
	if !ok {
		return fmt.Errorf("unknown param: %s", name)
	}
	*p = value
	return nil
}
