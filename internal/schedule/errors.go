package schedule

import "errors"

// Sentinel errors for the schedule package.
// Use errors.Is to check: errors.Is(err, schedule.ErrEmptyFrontier)
var (
	ErrEmptyFrontier    = errors.New("schedule: frontier is empty")
	ErrInvalidBeamWidth = errors.New("schedule: beam width must be positive")
	ErrInvalidLimit     = errors.New("schedule: limit must be positive")
	ErrUnknownStrategy  = errors.New("schedule: unknown strategy")
)
