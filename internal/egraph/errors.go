package egraph

import "errors"

// Sentinel errors for the egraph package.
// Use errors.Is to check: errors.Is(err, egraph.ErrParse)
var (
	ErrParse       = errors.New("egraph: parse error")
	ErrUnboundVar  = errors.New("egraph: rhs variable not bound by lhs")
	ErrPatternRoot = errors.New("egraph: pattern has no operator")
)
