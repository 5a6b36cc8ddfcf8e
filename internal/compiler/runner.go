package compiler

import (
	"fmt"
	"time"

	"cuelang.org/go/cue"

	"github.com/roach88/eqsched/internal/ir"
)

// CompileRunner parses a runner block into a RunnerSpec. time_limit is a
// Go duration string such as "5s" or "250ms".
func CompileRunner(v cue.Value) (*ir.RunnerSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.RunnerSpec{}

	var err error
	spec.IterLimit, err = lookupInt(v, "runner", "iter_limit")
	if err != nil {
		return nil, err
	}
	spec.NodeLimit, err = lookupInt(v, "runner", "node_limit")
	if err != nil {
		return nil, err
	}

	s, ok, err := lookupString(v, "time_limit")
	if err != nil {
		return nil, err
	}
	if ok {
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, &CompileError{
				Field:   "runner.time_limit",
				Message: fmt.Sprintf("invalid duration %q", s),
				Pos:     v.LookupPath(cue.ParsePath("time_limit")).Pos(),
			}
		}
		spec.TimeLimit = d
	}

	return spec, nil
}
