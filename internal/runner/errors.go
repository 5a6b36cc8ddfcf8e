package runner

import (
	"errors"
	"fmt"
)

// RunError represents an error detected while configuring or driving a run.
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// Message is a human-readable description.
	Message string

	// Rule names the rule involved, if any.
	Rule string

	// Iteration is the iteration the error occurred in, or -1.
	Iteration int

	// Err is the underlying cause, if any.
	Err error
}

// RunErrorCode categorizes run errors.
type RunErrorCode string

const (
	// ErrCodeDuplicateRule indicates two rules share a name.
	ErrCodeDuplicateRule RunErrorCode = "DUPLICATE_RULE"

	// ErrCodeNoScheduler indicates the runner was built without a scheduler.
	ErrCodeNoScheduler RunErrorCode = "NO_SCHEDULER"

	// ErrCodeApplyFailed indicates a rule failed to apply its matches.
	ErrCodeApplyFailed RunErrorCode = "APPLY_FAILED"

	// ErrCodeHookFailed indicates an iteration hook returned an error.
	ErrCodeHookFailed RunErrorCode = "HOOK_FAILED"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Rule != "" {
		msg += fmt.Sprintf(" (rule=%s)", e.Rule)
	}
	if e.Iteration >= 0 {
		msg += fmt.Sprintf(" (iteration=%d)", e.Iteration)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RunError) Unwrap() error {
	return e.Err
}

// IsDuplicateRuleError returns true if err is a duplicate rule error.
// Uses errors.As to handle wrapped errors.
func IsDuplicateRuleError(err error) bool {
	return hasCode(err, ErrCodeDuplicateRule)
}

// IsApplyError returns true if err is an apply failure.
func IsApplyError(err error) bool {
	return hasCode(err, ErrCodeApplyFailed)
}

// IsHookError returns true if err is a hook failure.
func IsHookError(err error) bool {
	return hasCode(err, ErrCodeHookFailed)
}

func hasCode(err error, code RunErrorCode) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewDuplicateRuleError creates a RunError for a repeated rule name.
func NewDuplicateRuleError(rule string) *RunError {
	return &RunError{
		Code:      ErrCodeDuplicateRule,
		Message:   "rule names must be unique",
		Rule:      rule,
		Iteration: -1,
	}
}

// NewApplyError creates a RunError for a failed apply.
func NewApplyError(rule string, iteration int, err error) *RunError {
	return &RunError{
		Code:      ErrCodeApplyFailed,
		Message:   "applying matches failed",
		Rule:      rule,
		Iteration: iteration,
		Err:       err,
	}
}

// NewHookError creates a RunError for a failed hook.
func NewHookError(iteration int, err error) *RunError {
	return &RunError{
		Code:      ErrCodeHookFailed,
		Message:   "iteration hook stopped the run",
		Iteration: iteration,
		Err:       err,
	}
}
