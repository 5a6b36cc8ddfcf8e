package store

import (
	"errors"
	"time"
)

// ErrRunNotFound is returned when a run id is not in the store.
var ErrRunNotFound = errors.New("store: run not found")

// RunRecord is one stored run.
type RunRecord struct {
	ID            string        `json:"id"`
	Strategy      string        `json:"strategy"`
	StopReason    string        `json:"stop_reason"`
	StopMessage   string        `json:"stop_message,omitempty"`
	Iterations    int           `json:"iterations"`
	Nodes         int           `json:"nodes"`
	Classes       int           `json:"classes"`
	TotalTime     time.Duration `json:"total_time"`
	RuleSetHash   string        `json:"ruleset_hash,omitempty"`
	EngineVersion string        `json:"engine_version"`
	IRVersion     string        `json:"ir_version"`
}

// IterationRecord is one stored iteration.
type IterationRecord struct {
	RunID       string        `json:"run_id"`
	Index       int           `json:"index"`
	Nodes       int           `json:"nodes"`
	Classes     int           `json:"classes"`
	Merges      int           `json:"merges"`
	SearchTime  time.Duration `json:"search_time"`
	ApplyTime   time.Duration `json:"apply_time"`
	RebuildTime time.Duration `json:"rebuild_time"`
}

// RuleApplication records what one rule did in one iteration.
type RuleApplication struct {
	RunID     string `json:"run_id"`
	Iteration int    `json:"iteration"`
	Rule      string `json:"rule"`
	Admitted  int    `json:"admitted"`
	Applied   int    `json:"applied"`
}

// RuleStatsRecord is a rule's final scheduler statistics for a run.
type RuleStatsRecord struct {
	RunID        string `json:"run_id"`
	Rule         string `json:"rule"`
	TimesApplied int    `json:"times_applied"`
	TimesBanned  int    `json:"times_banned"`
	MatchLimit   int    `json:"match_limit"`
	BanLength    int    `json:"ban_length"`
	BannedUntil  int    `json:"banned_until"`
	Unbannable   bool   `json:"unbannable,omitempty"`
}
