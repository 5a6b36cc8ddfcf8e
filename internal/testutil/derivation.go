package testutil

import (
	"sync"

	"github.com/roach88/eqsched/internal/ir"
)

// DerivationTracker hands out derivations and counts how many are live.
// A test that drops records without releasing them sees Live() > 0; a test
// that releases twice sees DoubleReleases() > 0.
type DerivationTracker struct {
	mu             sync.Mutex
	live           int
	created        int
	doubleReleases int
}

// NewDerivationTracker creates an empty tracker.
func NewDerivationTracker() *DerivationTracker {
	return &DerivationTracker{}
}

// New returns a fresh live derivation.
func (t *DerivationTracker) New() ir.Derivation {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.live++
	t.created++
	return &trackedDerivation{tracker: t}
}

// Live returns the number of derivations not yet released.
func (t *DerivationTracker) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// Created returns the number of derivations ever handed out, clones included.
func (t *DerivationTracker) Created() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.created
}

// DoubleReleases returns how many Release calls hit an already released
// derivation.
func (t *DerivationTracker) DoubleReleases() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doubleReleases
}

type trackedDerivation struct {
	tracker  *DerivationTracker
	released bool
}

func (d *trackedDerivation) Clone() ir.Derivation {
	return d.tracker.New()
}

func (d *trackedDerivation) Release() {
	d.tracker.mu.Lock()
	defer d.tracker.mu.Unlock()
	if d.released {
		d.tracker.doubleReleases++
		return
	}
	d.released = true
	d.tracker.live--
}
