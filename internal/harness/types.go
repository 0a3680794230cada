package harness

// Trace event kinds recorded by the harness.
const (
	EventCompilationStarted = "compilation_started"
	EventCompilationEnded   = "compilation_ended"
	EventCompilationFailed  = "compilation_failed"
	EventCachedContentUsed  = "cached_content_used"
)

// TraceEvent is one recorded compilation event.
type TraceEvent struct {
	Run  int    `json:"run"`  // 1-based run index
	Seq  int64  `json:"seq"`  // logical sequence across the scenario
	Kind string `json:"kind"` // one of the Event* constants
	Rep  string `json:"rep"`
	// Dependency names the representation a failed attempt waited on.
	Dependency string `json:"dependency,omitempty"`
}

// String renders the event as "kind rep", the form trace_order uses.
func (e TraceEvent) String() string {
	return e.Kind + " " + e.Rep
}

// RunResult is what one run of a scenario produced.
type RunResult struct {
	RunID    string   `json:"run_id"`
	Compiled []string `json:"compiled"`
	Cached   []string `json:"cached"`
	Written  []string `json:"written"`
	Error    string   `json:"error,omitempty"`
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every run met its expectations and every assertion
	// held.
	Pass bool `json:"pass"`

	// Trace holds the events of all runs in posting order.
	Trace []TraceEvent `json:"trace"`

	Runs []RunResult `json:"runs"`

	// Errors describes each failed expectation. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Runs:   []RunResult{},
		Errors: []string{},
	}
}

// AddError records a failed expectation and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
