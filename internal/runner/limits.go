package runner

import (
	"errors"
	"fmt"
	"time"
)

// Limits bound a run. A zero field disables that limit.
type Limits struct {
	Iterations int
	Nodes      int
	Time       time.Duration
}

// Check validates the run's progress against the limits.
//
// iterations is the number of completed iterations, nodes the current graph
// size and elapsed the time since the run started. It returns a
// LimitExceededError naming the first limit hit, checked in that order.
func (l Limits) Check(iterations, nodes int, elapsed time.Duration) error {
	if l.Iterations > 0 && iterations >= l.Iterations {
		return &LimitExceededError{
			Reason: StopIterationLimit,
			Value:  int64(iterations),
			Limit:  int64(l.Iterations),
		}
	}
	if l.Nodes > 0 && nodes > l.Nodes {
		return &LimitExceededError{
			Reason: StopNodeLimit,
			Value:  int64(nodes),
			Limit:  int64(l.Nodes),
		}
	}
	if l.Time > 0 && elapsed > l.Time {
		return &LimitExceededError{
			Reason: StopTimeLimit,
			Value:  int64(elapsed),
			Limit:  int64(l.Time),
		}
	}
	return nil
}

// LimitExceededError is returned by Limits.Check when a run must stop.
//
// It is not a failure: the runner turns it into the report's stop reason.
type LimitExceededError struct {
	Reason StopReason
	Value  int64
	Limit  int64
}

// Error implements the error interface.
func (e *LimitExceededError) Error() string {
	if e.Reason == StopTimeLimit {
		return fmt.Sprintf("%s: %s elapsed > %s limit",
			e.Reason, time.Duration(e.Value), time.Duration(e.Limit))
	}
	return fmt.Sprintf("%s: %d reached limit %d", e.Reason, e.Value, e.Limit)
}

// IsLimitExceededError returns true if err is a LimitExceededError.
// Uses errors.As to handle wrapped errors.
func IsLimitExceededError(err error) bool {
	var le *LimitExceededError
	return errors.As(err, &le)
}
