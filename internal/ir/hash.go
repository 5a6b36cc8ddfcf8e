package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainMatch   = "eqsched/match/v1"
	DomainRuleSet = "eqsched/ruleset/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MatchKey computes the identity of a match record from its class and
// substitutions. Derivations are not part of the identity: two records that
// bind the same variables to the same classes in the same class are equal.
func MatchKey(class ClassID, substs []Subst) string {
	list := make([]any, len(substs))
	for i, s := range substs {
		obj := make(map[string]any, len(s))
		for _, b := range s {
			obj[string(b.Var)] = b.Class
		}
		list[i] = obj
	}
	canonical, err := MarshalCanonical(map[string]any{
		"class":  class,
		"substs": list,
	})
	if err != nil {
		// Only ints and strings go in; failure means a programming error.
		panic(fmt.Sprintf("MatchKey: %v", err))
	}
	return hashWithDomain(DomainMatch, canonical)
}

// RuleSetHash computes a stable hash of a rule set in declaration order.
// Stored with persisted reports so runs over different rule sets are never
// compared by accident.
func RuleSetHash(rules []RuleSpec) (string, error) {
	list := make([]any, len(rules))
	for i, r := range rules {
		list[i] = map[string]any{
			"name": r.Name,
			"lhs":  r.LHS,
			"rhs":  r.RHS,
		}
	}
	canonical, err := MarshalCanonical(map[string]any{"rules": list})
	if err != nil {
		return "", fmt.Errorf("RuleSetHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainRuleSet, canonical), nil
}
