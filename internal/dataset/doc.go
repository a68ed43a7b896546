// Package dataset holds sampled input/output records and draws minibatches
// of fixed-length windows from them.
package dataset
