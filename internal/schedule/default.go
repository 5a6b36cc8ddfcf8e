package schedule

import (
	"github.com/roach88/eqsched/internal/ir"
)

// DefaultScheduler admits every match the rule finds. It is the
// breadth-first baseline the other strategies are measured against.
type DefaultScheduler[G any] struct{}

// NewDefault creates a DefaultScheduler.
func NewDefault[G any]() *DefaultScheduler[G] {
	return &DefaultScheduler[G]{}
}

// CanStop always returns true; the driver's own limits decide termination.
func (*DefaultScheduler[G]) CanStop(int) bool {
	return true
}

// SearchRewrite returns the raw search result.
func (*DefaultScheduler[G]) SearchRewrite(_ int, g G, rule Rule[G]) []ir.SearchMatches {
	return rule.Search(g)
}

// Strategy returns the registered strategy name.
func (*DefaultScheduler[G]) Strategy() string {
	return ir.StrategyDefault
}
