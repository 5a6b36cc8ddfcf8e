package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/eqsched/internal/ir"
)

// CompileScheduler parses a scheduler block into a SchedulerSpec.
//
//	scheduler: {
//		strategy:    "backoff"
//		match_limit: 1000
//		ban_length:  5
//		do_not_ban: ["comm-add"]
//		rules: "assoc-add": { match_limit: 50 }
//	}
//
// A missing strategy compiles to "default".
func CompileScheduler(v cue.Value) (*ir.SchedulerSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.SchedulerSpec{Strategy: ir.StrategyDefault}

	strategy, ok, err := lookupString(v, "strategy")
	if err != nil {
		return nil, err
	}
	if ok {
		spec.Strategy = strategy
	}

	ints := []struct {
		field string
		dst   *int
	}{
		{"match_limit", &spec.MatchLimit},
		{"ban_length", &spec.BanLength},
		{"beam_width", &spec.BeamWidth},
		{"max_depth", &spec.MaxDepth},
	}
	for _, f := range ints {
		n, err := lookupInt(v, "scheduler", f.field)
		if err != nil {
			return nil, err
		}
		*f.dst = n
	}

	spec.DoNotBan, err = parseDoNotBan(v)
	if err != nil {
		return nil, err
	}

	spec.Rules, err = parseRuleLimits(v)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

func parseDoNotBan(v cue.Value) ([]string, error) {
	lv := v.LookupPath(cue.ParsePath("do_not_ban"))
	if !lv.Exists() {
		return nil, nil
	}

	iter, err := lv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var names []string
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		names = append(names, name)
	}
	return names, nil
}

func parseRuleLimits(v cue.Value) (map[string]ir.RuleLimits, error) {
	rv := v.LookupPath(cue.ParsePath("rules"))
	if !rv.Exists() {
		return nil, nil
	}

	iter, err := rv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	limits := make(map[string]ir.RuleLimits)
	for iter.Next() {
		name := iter.Selector().Unquoted()
		path := fmt.Sprintf("scheduler.rules.%s", name)

		matchLimit, err := lookupInt(iter.Value(), path, "match_limit")
		if err != nil {
			return nil, err
		}
		banLength, err := lookupInt(iter.Value(), path, "ban_length")
		if err != nil {
			return nil, err
		}
		limits[name] = ir.RuleLimits{MatchLimit: matchLimit, BanLength: banLength}
	}
	return limits, nil
}
