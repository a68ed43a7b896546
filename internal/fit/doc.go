// Package fit trains residual models on minibatches of simulated windows.
//
// A Fitter samples B windows of length L from the fit record, rolls the
// model out from each window's initial state and descends the mean squared
// error between the predicted and measured trajectories, normalized by the
// loss of the initial model. When the state is not measured, a latent state
// sequence is optimized jointly with the model and a consistency term ties
// the rollout to it.
package fit
