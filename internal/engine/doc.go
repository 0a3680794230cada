// Package engine implements the quire compiler: the scheduler that turns a
// frozen site and a rule table into compiled representations.
//
// ARCHITECTURE:
//
// Single-Goroutine Scheduling Loop:
// A run compiles one representation at a time on the caller's goroutine.
// Pending representations live in a dependency graph; the loop always
// picks the earliest-inserted root. This ensures:
// - Attempts never interleave, so lifecycle events nest cleanly
// - Reproducible compilation order for a given site
// - Simple reasoning about which output a pipeline can see
//
// Attempt Flow:
// 1. The rule's pipeline is recorded into a plan; its write targets become
// the representation's paths
// 2. If the representation is not forced-outdated, not outdated and has
// cached content, the cache is restored and the attempt ends
// 3. Otherwise the pipeline runs for real
// 4. Reading an uncompiled representation D drops the attempt and adds
// the edge D → current; the current representation is retried once D is
// done
// 5. Any other failure aborts the run
//
// Checksums, plans, the content cache and the dependency graph are
// committed once, after every representation compiled. A failed run
// commits nothing.
//
// TERMINATION:
//
// A graph with vertices but no roots means every pending representation
// waits on another: the run fails with RECURSIVE_COMPILATION and the cycles
// found by Tarjan's algorithm. A representation waiting on itself fails
// with SELF_DEPENDENCY. The deferral guard and the attempt quota catch
// schedulers that would otherwise spin.
package engine
