package schedule

import (
	"fmt"
	"slices"

	"github.com/roach88/eqsched/internal/ir"
)

// FromSpec builds the scheduler described by spec. An empty strategy selects
// the default scheduler. Zero-valued limits select each strategy's defaults.
func FromSpec[G any](spec ir.SchedulerSpec) (Scheduler[G], error) {
	switch spec.Strategy {
	case "", ir.StrategyDefault, ir.StrategyBFS:
		return NewDefault[G](), nil

	case ir.StrategyBackoff:
		return NewBackoff[G](backoffOptions(spec)...), nil

	case ir.StrategyDFSBackoff:
		return NewDFSBackoff[G](backoffOptions(spec)...), nil

	case ir.StrategyBeam:
		width := spec.BeamWidth
		if width == 0 {
			width = DefaultBeamWidth
		}
		b, err := NewBeam[G](width)
		if err != nil {
			return nil, fmt.Errorf("beam width %d: %w", spec.BeamWidth, err)
		}
		return b, nil

	case ir.StrategyDFS:
		depth := spec.MaxDepth
		if depth == 0 {
			depth = DefaultMaxDepth
		}
		if depth < 0 {
			depth = 0
		}
		return NewDFS[G](depth), nil

	default:
		return nil, fmt.Errorf("%w: %q (valid: %v)", ErrUnknownStrategy, spec.Strategy, Strategies())
	}
}

// Strategies returns the accepted strategy names, sorted.
func Strategies() []string {
	names := make([]string, 0, len(ir.ValidStrategies))
	for name := range ir.ValidStrategies {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func backoffOptions(spec ir.SchedulerSpec) []BackoffOption {
	opts := []BackoffOption{
		WithMatchLimit(spec.MatchLimit),
		WithBanLength(spec.BanLength),
		WithDoNotBan(spec.DoNotBan...),
	}
	for rule, limits := range spec.Rules {
		opts = append(opts, WithRuleLimits(rule, limits))
	}
	return opts
}
