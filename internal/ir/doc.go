// Package ir provides the shared record types for eqsched.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps the match records and
// the compiled configuration specs at the bottom of the dependency graph.
//
// Key design constraints:
//   - ClassID is opaque: ir never interprets it beyond equality and ordering
//   - SearchMatches is a borrowed view, Match is owned; convert explicitly
//   - Substitutions are kept sorted by variable name for deterministic hashing
//   - All JSON tags use snake_case
package ir
