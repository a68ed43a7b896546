// Package models implements the residual dynamics functions f(x, u) -> dx
// driven by the trajectory simulator.
//
// Three variants are available, selected at construction:
//
//   - [FreeForm]: W2·relu(W1·[x;u] + b1) + b2, initialized near zero so the
//     untrained model behaves as a pure integrator
//   - [ResidualLinear]: a free-form term (optionally mapped through a fixed
//     output matrix) plus fixed A_known·x + B_known·u
//   - [Linear]: trainable A·x + B·u
//
// Every variant computes gradients in closed form through [Residual.Backward],
// so no autodiff machinery is needed. EvalBatch is row-wise Eval; batching
// never changes numerics.
package models
