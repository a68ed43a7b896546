package dynamo

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Ensemble runs independent seeded jobs. Each job owns its own model,
// sampler and optimizer; nothing is shared between runs.
type Ensemble struct {
	numRuns   int
	seedStart int64
	limit     int
}

func NewEnsemble(numRuns int, seedStart int64) *Ensemble {
	return &Ensemble{numRuns: numRuns, seedStart: seedStart, limit: 4}
}

// WithLimit caps the number of concurrently running jobs.
func (e *Ensemble) WithLimit(n int) *Ensemble {
	if n > 0 {
		e.limit = n
	}
	return e
}

func (e *Ensemble) NumRuns() int { return e.numRuns }

// RunEnsemble executes fn once per seed and returns results in seed order.
// The first error cancels the remaining runs.
func RunEnsemble[T any](ctx context.Context, e *Ensemble, fn func(ctx context.Context, seed int64) (T, error)) ([]T, error) {
	results := make([]T, e.numRuns)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	for i := 0; i < e.numRuns; i++ {
		idx := i
		g.Go(func() error {
			res, err := fn(ctx, e.seedStart+int64(idx))
			if err != nil {
				return err
			}
			results[idx] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
