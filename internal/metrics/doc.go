// Package metrics provides the training loss meter and per-channel
// validation metrics.
package metrics
