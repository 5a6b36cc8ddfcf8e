// Package schedule implements rule-admission strategies for equality
// saturation.
//
// Once per iteration the saturation driver asks every rule, in registration
// order, for its matches through Scheduler.SearchRewrite. It applies whatever
// comes back, and consults Scheduler.CanStop before declaring saturation. A
// strategy decides which of a rule's matches are admitted:
//
//   - DefaultScheduler admits everything (breadth-first baseline)
//   - BackoffScheduler bans rules whose match volume exceeds an
//     exponentially growing threshold
//   - BeamScheduler keeps the W matches with the fewest substitutions
//   - DFSScheduler admits one match per call from an explicit frontier stack
//   - DFSBackoffScheduler forwards to a BackoffScheduler
//
// A rule that may not fire is signalled by an empty result, never by an
// error.
//
// Strategies are generic over the graph type G and never mutate the graph.
// All strategy state (statistics, frontiers, visited sets) belongs to one
// instance and is mutated without locking. An instance must be driven from a
// single goroutine by a single saturation run.
package schedule
