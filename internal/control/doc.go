// Package control provides the input signals used to excite systems while
// recording identification data.
//
// Every signal implements [dynamo.Controller]:
//
//   - [LQR]: state feedback u = -K(x - target), with gains from [DesignLQR]
//   - [Steps]: random piecewise-constant levels
//   - [Multisine]: sum of sinusoids with random phases
//   - [Constant]: a fixed input
//
// [Sum] adds signals together, e.g. a stabilizing LQR and an excitation.
package control
