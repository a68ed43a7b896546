package dynamo

import (
	"context"
	"errors"
	"testing"
)

func TestRunEnsemble_SeedOrder(t *testing.T) {
	e := NewEnsemble(5, 100).WithLimit(2)

	seeds, err := RunEnsemble(context.Background(), e, func(ctx context.Context, seed int64) (int64, error) {
		return seed, nil
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	for i, s := range seeds {
		if s != 100+int64(i) {
			t.Errorf("result %d: expected seed %d, got %d", i, 100+i, s)
		}
	}
}

func TestRunEnsemble_Error(t *testing.T) {
	e := NewEnsemble(3, 0)
	boom := errors.New("boom")

	_, err := RunEnsemble(context.Background(), e, func(ctx context.Context, seed int64) (int, error) {
		if seed == 1 {
			return 0, boom
		}
		return 1, nil
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}
