// Package physics provides the reference systems used to generate and
// validate identification records.
//
// Continuous-time models implement [dynamo.System] and are sampled with a
// fixed-step integrator:
//
//   - [CSTR]: exothermic continuous stirred-tank reactor (Ca, T; input q)
//   - [RLC]: series RLC circuit with a saturating inductor (V_C, I_L; input V_IN)
//   - [CartPole]: cart with an inverted pendulum (p, v, theta, omega; input F)
//
// [LinearSystem] is the discrete-time reference x[k+1] = A x[k] + B u[k],
// y[k] = C x[k] + D u[k], built on gonum matrices. It is used for synthetic
// records and as a known-answer check; it never learns.
//
// All continuous models implement [dynamo.Configurable] so that a config
// file can override their physical constants:
//
//	sys := physics.NewCSTR()
//	_ = sys.SetParam("ua", 4.5e4)
package physics
