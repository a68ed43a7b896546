package fit

import (
	"fmt"
)

const (
	DefaultTestFreq = 100
)

type Config struct {
	SeqLen    int
	BatchSize int
	NumIter   int
	TestFreq  int

	// Momentum of the running loss average; zero tracks the latest loss.
	Momentum float64

	// Unmeasured enables the latent state sequence.
	Unmeasured bool

	// OutputIndex lists the state components observed by the output
	// columns. When nil, a measured-state fit compares full states and an
	// unmeasured fit observes the first n_y components.
	OutputIndex []int

	Seed int64
}

func (c *Config) setDefaults() {
	if c.TestFreq <= 0 {
		c.TestFreq = DefaultTestFreq
	}
}

func (c Config) Validate() error {
	if c.SeqLen < 1 {
		return fmt.Errorf("seq_len must be positive, got %d", c.SeqLen)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.NumIter < 0 {
		return fmt.Errorf("num_iter must be non-negative, got %d", c.NumIter)
	}
	if c.Momentum < 0 || c.Momentum >= 1 {
		return fmt.Errorf("momentum must be in [0, 1), got %f", c.Momentum)
	}
	return nil
}
