package schedule

import "github.com/roach88/eqsched/internal/ir"

// DFSBackoffScheduler decorates a BackoffScheduler. Every call forwards to
// the wrapped scheduler, so it behaves exactly like backoff.
type DFSBackoffScheduler[G any] struct {
	*BackoffScheduler[G]
}

// NewDFSBackoff creates a DFSBackoffScheduler around a new BackoffScheduler.
func NewDFSBackoff[G any](opts ...BackoffOption) *DFSBackoffScheduler[G] {
	return &DFSBackoffScheduler[G]{BackoffScheduler: NewBackoff[G](opts...)}
}

// CanStop forwards to the wrapped backoff scheduler.
func (s *DFSBackoffScheduler[G]) CanStop(iteration int) bool {
	return s.BackoffScheduler.CanStop(iteration)
}

// SearchRewrite forwards to the wrapped backoff scheduler.
func (s *DFSBackoffScheduler[G]) SearchRewrite(iteration int, g G, rule Rule[G]) []ir.SearchMatches {
	return s.BackoffScheduler.SearchRewrite(iteration, g, rule)
}

// Strategy returns the registered strategy name.
func (*DFSBackoffScheduler[G]) Strategy() string {
	return ir.StrategyDFSBackoff
}
