package harness

import (
	"errors"
	"fmt"
	"os"
	"strings"

	billy "github.com/go-git/go-billy/v5"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] run %d: %s\n", event.Seq, event.Run, event)
		}
	}

	return buf.String()
}

// matches reports whether event is of kind and, when rep is set, about rep.
func matches(event TraceEvent, kind, rep string) bool {
	return event.Kind == kind && (rep == "" || event.Rep == rep)
}

func describe(kind, rep string) string {
	if rep == "" {
		return kind
	}
	return kind + " " + rep
}

// assertTraceContains checks that at least one event matches.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matches(event, assertion.Kind, assertion.Rep) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describe(assertion.Kind, assertion.Rep),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the listed events occur in order.
// Events don't need to be consecutive; each is matched after the previous
// match.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for i, want := range assertion.Events {
		found := false
		for pos < len(trace) {
			event := trace[pos]
			pos++
			if event.String() == want {
				found = true
				break
			}
		}
		if !found {
			actual := fmt.Sprintf("%q not found after %q", want, "start of trace")
			if i > 0 {
				actual = fmt.Sprintf("%q not found after %q", want, assertion.Events[i-1])
			}
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("events in order: %v", assertion.Events),
				Actual:   actual,
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks the number of matching events.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matches(event, assertion.Kind, assertion.Rep) {
			count++
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%s %d time(s)", describe(assertion.Kind, assertion.Rep), assertion.Count),
			Actual:   fmt.Sprintf("%d time(s)", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalOutput checks an output file after the last run.
func assertFinalOutput(out billy.Filesystem, assertion Assertion) error {
	if assertion.Absent {
		if out == nil {
			return nil
		}
		_, err := out.Stat(assertion.Path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &AssertionError{
			Type:     AssertFinalOutput,
			Expected: fmt.Sprintf("%s absent", assertion.Path),
			Actual:   "present",
		}
	}
	if err := checkOutput(out, assertion.Path, assertion.Content); err != nil {
		return &AssertionError{
			Type:     AssertFinalOutput,
			Expected: fmt.Sprintf("%s = %q", assertion.Path, assertion.Content),
			Actual:   err.Error(),
		}
	}
	return nil
}

// EvaluateAssertions runs all assertions against a result.
// Returns error messages for failed assertions (empty if all pass).
func EvaluateAssertions(result *Result, assertions []Assertion, out billy.Filesystem) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalOutput:
			err = assertFinalOutput(out, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}
