package fit

import (
	"errors"
	"fmt"
)

type State int

const (
	Initializing State = iota
	Iterating
	Exhausted
	Failed
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Iterating:
		return "iterating"
	case Exhausted:
		return "exhausted"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var ErrExhausted = errors.New("fit: iteration budget exhausted")

// IterationError reports the iteration at which training stopped.
type IterationError struct {
	Iter    int
	Wrapped error
}

func (e *IterationError) Error() string {
	return fmt.Sprintf("iteration %d: %v", e.Iter, e.Wrapped)
}

func (e *IterationError) Unwrap() error {
	return e.Wrapped
}
