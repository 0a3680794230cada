package harness

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	repA = "rep:/a.md:default"
	repB = "rep:/b.md:default"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Run: 1, Seq: 1, Kind: EventCompilationStarted, Rep: repA},
		{Run: 1, Seq: 2, Kind: EventCompilationFailed, Rep: repA, Dependency: repB},
		{Run: 1, Seq: 3, Kind: EventCompilationStarted, Rep: repB},
		{Run: 1, Seq: 4, Kind: EventCompilationEnded, Rep: repB},
		{Run: 1, Seq: 5, Kind: EventCompilationStarted, Rep: repA},
		{Run: 1, Seq: 6, Kind: EventCompilationEnded, Rep: repA},
		{Run: 2, Seq: 7, Kind: EventCompilationStarted, Rep: repA},
		{Run: 2, Seq: 8, Kind: EventCachedContentUsed, Rep: repA},
		{Run: 2, Seq: 9, Kind: EventCompilationEnded, Rep: repA},
	}
}

func TestAssertTraceContains_Found(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{
		Type: AssertTraceContains,
		Kind: EventCachedContentUsed,
		Rep:  repA,
	})
	assert.NoError(t, err)
}

func TestAssertTraceContains_AnyRep(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{
		Type: AssertTraceContains,
		Kind: EventCompilationFailed,
	})
	assert.NoError(t, err)
}

func TestAssertTraceContains_NotFound(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{
		Type: AssertTraceContains,
		Kind: EventCachedContentUsed,
		Rep:  repB,
	})
	require.Error(t, err)

	assertErr, ok := err.(*AssertionError)
	require.True(t, ok)
	assert.Equal(t, "trace_contains", assertErr.Type)
	assert.Equal(t, "cached_content_used "+repB, assertErr.Expected)
	assert.Equal(t, "not found in trace", assertErr.Actual)
}

// TestAssertTraceOrder tests in-order matching of non-consecutive events.
func TestAssertTraceOrder(t *testing.T) {
	tests := []struct {
		name    string
		events  []string
		wantErr string
	}{
		{
			name:   "consecutive",
			events: []string{"compilation_started " + repB, "compilation_ended " + repB},
		},
		{
			name:   "with gaps",
			events: []string{"compilation_failed " + repA, "compilation_ended " + repB, "cached_content_used " + repA},
		},
		{
			name:    "reversed",
			events:  []string{"compilation_ended " + repB, "compilation_failed " + repA},
			wantErr: `"compilation_failed rep:/a.md:default" not found after "compilation_ended rep:/b.md:default"`,
		},
		{
			name:    "missing first",
			events:  []string{"cached_content_used " + repB},
			wantErr: "not found after \"start of trace\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceOrder(sampleTrace(), Assertion{Type: AssertTraceOrder, Events: tt.events})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssertTraceCount(t *testing.T) {
	tests := []struct {
		name  string
		kind  string
		rep   string
		count int
		ok    bool
	}{
		{"started any rep", EventCompilationStarted, "", 4, true},
		{"started for a", EventCompilationStarted, repA, 3, true},
		{"wrong count", EventCompilationEnded, repB, 2, false},
		{"zero", EventCachedContentUsed, repB, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceCount(sampleTrace(), Assertion{
				Type:  AssertTraceCount,
				Kind:  tt.kind,
				Rep:   tt.rep,
				Count: tt.count,
			})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "1 time(s)")
			}
		})
	}
}

func TestAssertFinalOutput(t *testing.T) {
	out := memfs.New()
	require.NoError(t, util.WriteFile(out, "a.html", []byte("A"), 0o644))

	assert.NoError(t, assertFinalOutput(out, Assertion{Path: "a.html", Content: "A"}))
	assert.NoError(t, assertFinalOutput(out, Assertion{Path: "gone.html", Absent: true}))

	err := assertFinalOutput(out, Assertion{Path: "a.html", Content: "B"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `expected "B", got "A"`)

	err = assertFinalOutput(out, Assertion{Path: "a.html", Absent: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a.html absent")

	err = assertFinalOutput(out, Assertion{Path: "missing.html", Content: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output missing.html: missing")
}

// TestEvaluateAssertions tests that failures are reported by index.
func TestEvaluateAssertions(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Kind: EventCompilationEnded, Rep: repA},
		{Type: AssertTraceCount, Kind: EventCompilationFailed, Count: 2},
		{Type: AssertFinalOutput, Path: "a.html", Content: "A"},
	}, nil)

	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertions[1]: ")
	assert.Contains(t, errs[1], "assertions[2]: ")
	assert.Contains(t, errs[1], "no output directory")
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "x",
		Actual:   "y",
		Trace:    sampleTrace()[:1],
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "[1] run 1: compilation_started rep:/a.md:default")
}
