// Package dynamo provides the core primitives shared by identification and
// data generation.
//
// The package defines:
//
//   - [State] and [Control]: float64 vectors used by continuous-time models
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: fixed-step numerical integrator interface
//   - [Param]: a named, trainable float32 tensor with a float64 gradient
//   - the error taxonomy shared by every identification stage
//
// # Example
//
//	sys := physics.NewCSTR()
//	integ := integrators.NewRK4()
//	next := integ.Step(sys, x, u, t, dt)
//
// # Thread Safety
//
// Params are mutated by exactly one optimizer step per iteration and are
// NOT safe for concurrent use. Independent seeded runs go through [RunEnsemble].
package dynamo
