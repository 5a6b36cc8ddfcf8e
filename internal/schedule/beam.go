package schedule

import (
	"cmp"
	"log/slog"
	"slices"

	"github.com/roach88/eqsched/internal/ir"
)

// Beam widths. WideBeamWidth is the profile used for exploratory runs.
const (
	DefaultBeamWidth = 100
	WideBeamWidth    = 200
)

// BeamScheduler admits at most Width match records per rule per iteration,
// preferring records with fewer substitutions.
type BeamScheduler[G any] struct {
	width int
}

// NewBeam creates a BeamScheduler. It returns ErrInvalidBeamWidth if width
// is not positive.
func NewBeam[G any](width int) (*BeamScheduler[G], error) {
	if width <= 0 {
		return nil, ErrInvalidBeamWidth
	}
	return &BeamScheduler[G]{width: width}, nil
}

// Width returns the beam width.
func (b *BeamScheduler[G]) Width() int {
	return b.width
}

// SetWidth changes the beam width for subsequent searches.
func (b *BeamScheduler[G]) SetWidth(width int) error {
	if width <= 0 {
		return ErrInvalidBeamWidth
	}
	b.width = width
	return nil
}

// CanStop always returns true.
func (*BeamScheduler[G]) CanStop(int) bool {
	return true
}

// SearchRewrite returns the Width records with the fewest substitutions.
// Ties keep their search order. Discarded records are released.
func (b *BeamScheduler[G]) SearchRewrite(iteration int, g G, rule Rule[G]) []ir.SearchMatches {
	ms := rule.Search(g)
	if len(ms) == 0 {
		return ms
	}

	slices.SortStableFunc(ms, func(x, y ir.SearchMatches) int {
		return cmp.Compare(len(x.Substs), len(y.Substs))
	})

	if len(ms) > b.width {
		slog.Debug("beam truncating matches",
			"rule", rule.Name(),
			"iteration", iteration,
			"found", len(ms),
			"width", b.width,
		)
	}
	return truncate(ms, b.width)
}

// Strategy returns the registered strategy name.
func (*BeamScheduler[G]) Strategy() string {
	return ir.StrategyBeam
}

// truncate keeps the first n records of ms. Every dropped record has its
// derivation released and its slot cleared so the backing array holds no
// stale references.
func truncate(ms []ir.SearchMatches, n int) []ir.SearchMatches {
	if len(ms) <= n {
		return ms
	}
	tail := ms[n:]
	ir.ReleaseAll(tail)
	clear(tail)
	return ms[:n:n]
}
