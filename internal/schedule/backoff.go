package schedule

import (
	"cmp"
	"log/slog"
	"math"
	"slices"

	"github.com/roach88/eqsched/internal/ir"
)

// Backoff defaults, matching the classic equality-saturation runner.
const (
	DefaultMatchLimit = 1000
	DefaultBanLength  = 5
)

// RuleStats is the backoff bookkeeping for one rule.
//
// While iteration < BannedUntil the rule is not searched at all. The
// threshold for the next search is MatchLimit << TimesBanned, so every ban
// doubles both the tolerated match volume and the next ban length.
type RuleStats struct {
	TimesApplied int  `json:"times_applied"`
	TimesBanned  int  `json:"times_banned"`
	MatchLimit   int  `json:"match_limit"`
	BanLength    int  `json:"ban_length"`
	BannedUntil  int  `json:"banned_until"`
	Unbannable   bool `json:"unbannable,omitempty"`
}

// Threshold returns the current match threshold.
func (s RuleStats) Threshold() int {
	return shlSat(s.MatchLimit, s.TimesBanned)
}

// Banned reports whether the rule is banned at iteration.
func (s RuleStats) Banned(iteration int) bool {
	return iteration < s.BannedUntil
}

type backoffConfig struct {
	matchLimit int
	banLength  int
	doNotBan   []string
	perRule    map[string]ir.RuleLimits
}

// BackoffOption configures a BackoffScheduler.
type BackoffOption func(*backoffConfig)

// WithMatchLimit sets the initial match limit for rules without an override.
func WithMatchLimit(n int) BackoffOption {
	return func(c *backoffConfig) {
		if n > 0 {
			c.matchLimit = n
		}
	}
}

// WithBanLength sets the initial ban length for rules without an override.
func WithBanLength(n int) BackoffOption {
	return func(c *backoffConfig) {
		if n > 0 {
			c.banLength = n
		}
	}
}

// WithDoNotBan marks rules that must never be banned.
func WithDoNotBan(rules ...string) BackoffOption {
	return func(c *backoffConfig) {
		c.doNotBan = append(c.doNotBan, rules...)
	}
}

// WithRuleLimits overrides the limits of a single rule. Zero fields keep
// the scheduler-wide value.
func WithRuleLimits(rule string, limits ir.RuleLimits) BackoffOption {
	return func(c *backoffConfig) {
		if c.perRule == nil {
			c.perRule = make(map[string]ir.RuleLimits)
		}
		c.perRule[rule] = limits
	}
}

// BackoffScheduler bans rules that produce too many matches.
//
// When a rule's search yields more substitutions than its threshold, the
// whole batch is discarded and the rule is banned for
// BanLength << TimesBanned iterations. Bans are never permanent: CanStop
// fast-forwards all bans so saturation is only declared once every rule has
// had a chance to run unbanned.
type BackoffScheduler[G any] struct {
	matchLimit int
	banLength  int
	stats      map[string]*RuleStats
}

// NewBackoff creates a BackoffScheduler with the given options.
func NewBackoff[G any](opts ...BackoffOption) *BackoffScheduler[G] {
	cfg := backoffConfig{
		matchLimit: DefaultMatchLimit,
		banLength:  DefaultBanLength,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	s := &BackoffScheduler[G]{
		matchLimit: cfg.matchLimit,
		banLength:  cfg.banLength,
		stats:      make(map[string]*RuleStats),
	}
	for rule, limits := range cfg.perRule {
		if limits.MatchLimit > 0 {
			s.ruleStats(rule).MatchLimit = limits.MatchLimit
		}
		if limits.BanLength > 0 {
			s.ruleStats(rule).BanLength = limits.BanLength
		}
	}
	for _, rule := range cfg.doNotBan {
		s.DoNotBan(rule)
	}
	return s
}

// SetMatchLimit changes the initial match limit for rules not seen yet.
func (s *BackoffScheduler[G]) SetMatchLimit(n int) error {
	if n <= 0 {
		return ErrInvalidLimit
	}
	s.matchLimit = n
	return nil
}

// SetBanLength changes the initial ban length for rules not seen yet.
func (s *BackoffScheduler[G]) SetBanLength(n int) error {
	if n <= 0 {
		return ErrInvalidLimit
	}
	s.banLength = n
	return nil
}

// DoNotBan exempts rule from banning. Its matches are always admitted.
func (s *BackoffScheduler[G]) DoNotBan(rule string) *BackoffScheduler[G] {
	s.ruleStats(rule).Unbannable = true
	return s
}

// RuleMatchLimit overrides the initial match limit of rule. It returns
// ErrInvalidLimit if n is not positive.
func (s *BackoffScheduler[G]) RuleMatchLimit(rule string, n int) error {
	if n <= 0 {
		return ErrInvalidLimit
	}
	s.ruleStats(rule).MatchLimit = n
	return nil
}

// RuleBanLength overrides the initial ban length of rule. It returns
// ErrInvalidLimit if n is not positive.
func (s *BackoffScheduler[G]) RuleBanLength(rule string, n int) error {
	if n <= 0 {
		return ErrInvalidLimit
	}
	s.ruleStats(rule).BanLength = n
	return nil
}

func (s *BackoffScheduler[G]) ruleStats(rule string) *RuleStats {
	st, ok := s.stats[rule]
	if !ok {
		st = &RuleStats{
			MatchLimit: s.matchLimit,
			BanLength:  s.banLength,
		}
		s.stats[rule] = st
	}
	return st
}

// CanStop returns true only when no rule is banned at iteration.
//
// Otherwise it shifts every active ban earlier by the distance to the
// nearest expiry, so at least one rule becomes eligible again at this same
// iteration, and returns false.
func (s *BackoffScheduler[G]) CanStop(iteration int) bool {
	banned := make([]string, 0)
	nearest := math.MaxInt
	for name, st := range s.stats {
		if st.Banned(iteration) {
			banned = append(banned, name)
			nearest = min(nearest, st.BannedUntil)
		}
	}
	if len(banned) == 0 {
		return true
	}
	slices.Sort(banned)

	delta := nearest - iteration
	unbanned := make([]string, 0, 1)
	for _, name := range banned {
		st := s.stats[name]
		st.BannedUntil -= delta
		if st.BannedUntil <= iteration {
			unbanned = append(unbanned, name)
		}
	}

	slog.Info("fast-forwarding rule bans",
		"iteration", iteration,
		"delta", delta,
		"banned", len(banned),
		"unbanned", unbanned,
	)
	return false
}

// SearchRewrite searches rule unless it is banned, and bans it instead of
// admitting its matches when they exceed the rule's threshold.
func (s *BackoffScheduler[G]) SearchRewrite(iteration int, g G, rule Rule[G]) []ir.SearchMatches {
	name := rule.Name()
	st := s.ruleStats(name)

	if st.Banned(iteration) {
		slog.Debug("skipping banned rule",
			"rule", name,
			"iteration", iteration,
			"banned_until", st.BannedUntil,
		)
		return nil
	}

	threshold := st.Threshold()

	var matches []ir.SearchMatches
	if lr, ok := rule.(LimitedRule[G]); ok && !st.Unbannable {
		matches = lr.SearchWithLimit(g, addSat(threshold, 1))
	} else {
		matches = rule.Search(g)
	}

	total := ir.TotalSubsts(matches)
	if total > threshold && !st.Unbannable {
		length := shlSat(st.BanLength, st.TimesBanned)
		st.TimesBanned++
		st.BannedUntil = addSat(iteration, length)
		ir.ReleaseAll(matches)

		slog.Info("banning rule",
			"rule", name,
			"iteration", iteration,
			"matches", total,
			"threshold", threshold,
			"times_banned", st.TimesBanned,
			"banned_until", st.BannedUntil,
		)
		return nil
	}

	st.TimesApplied++
	return matches
}

// Stats returns a copy of rule's statistics.
func (s *BackoffScheduler[G]) Stats(rule string) (RuleStats, bool) {
	st, ok := s.stats[rule]
	if !ok {
		return RuleStats{}, false
	}
	return *st, true
}

// Snapshot returns every rule's statistics, sorted by rule name.
func (s *BackoffScheduler[G]) Snapshot() []NamedStats {
	out := make([]NamedStats, 0, len(s.stats))
	for name, st := range s.stats {
		out = append(out, NamedStats{Rule: name, Stats: *st})
	}
	slices.SortFunc(out, func(a, b NamedStats) int {
		return cmp.Compare(a.Rule, b.Rule)
	})
	return out
}

// Strategy returns the registered strategy name.
func (*BackoffScheduler[G]) Strategy() string {
	return ir.StrategyBackoff
}

// shlSat returns v << k, saturating at math.MaxInt.
func shlSat(v, k int) int {
	if v <= 0 || k <= 0 {
		return v
	}
	if k >= 62 || v > math.MaxInt>>k {
		return math.MaxInt
	}
	return v << k
}

// addSat returns a + b for non-negative operands, saturating at math.MaxInt.
func addSat(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}
