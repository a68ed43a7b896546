// Package sim rolls residual models forward over input sequences and
// propagates trajectory gradients back through the rollout. It also samples
// continuous-time physics systems into uniformly spaced records.
package sim
