// Package harness runs site compilation scenarios end to end.
//
// A scenario describes a site (configuration, rules and source files), a
// sequence of compilation runs with edits between them, and what each run
// must produce. Every scenario runs on an in-memory filesystem and a fresh
// temporary database, so runs see each other's cache but nothing else.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	config: |
//	  site:
//	    title: Notes
//	rules: |
//	  compile: [{pattern: "/*.md", steps: [{filter: "template"}, {write: {ext: "html"}}]}]
//	files:
//	  content/a.md: "hello"
//	runs:
//	  - expect:
//	      compiled: [rep:/a.md:default]
//	      outputs:
//	        a.html: "hello"
//	  - write:
//	      content/a.md: "changed"
//	    expect:
//	      compiled: [rep:/a.md:default]
//	assertions:
//	  - type: trace_order
//	    events:
//	      - compilation_ended rep:/b.md:default
//	      - compilation_ended rep:/a.md:default
//	  - type: final_output
//	    path: a.html
//	    content: "changed"
//
// # Assertion Types
//
//   - trace_contains: an event of the given kind (and rep, when set) occurred
//   - trace_order: events occurred in the listed order, not necessarily adjacent
//   - trace_count: an event of the given kind (and rep) occurred exactly count times
//   - final_output: after the last run, path holds content, or is absent
//
// # Traces
//
// The trace records compilation_started, compilation_ended,
// compilation_failed and cached_content_used events of every run. Sequence
// numbers are logical and continue across runs, so a scenario produces the
// same trace every time and the trace can be compared to a golden file.
package harness
