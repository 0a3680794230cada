package pipeline

import (
	"errors"
	"fmt"
)

// UnmetDependencyError is raised when pipeline code reads the compiled
// output of a representation that has not been compiled yet. The scheduler
// absorbs it: the current attempt is dropped and retried after Rep.
type UnmetDependencyError struct {
	Rep *ItemRep
}

func (e *UnmetDependencyError) Error() string {
	return fmt.Sprintf("representation %s is not compiled yet", e.Rep.Reference())
}

// AsUnmetDependency extracts an UnmetDependencyError from err.
func AsUnmetDependency(err error) (*UnmetDependencyError, bool) {
	var unmet *UnmetDependencyError
	if errors.As(err, &unmet) {
		return unmet, true
	}
	return nil, false
}

// NoMatchingLayoutError means a layout reference matched no layout.
type NoMatchingLayoutError struct {
	Pattern string
}

func (e *NoMatchingLayoutError) Error() string {
	return fmt.Sprintf("no layout matches %s", e.Pattern)
}

// MultipleMatchingLayoutsError means a layout reference was ambiguous.
type MultipleMatchingLayoutsError struct {
	Pattern string
	Matches []string
}

func (e *MultipleMatchingLayoutsError) Error() string {
	return fmt.Sprintf("layout reference %s matches %d layouts: %v", e.Pattern, len(e.Matches), e.Matches)
}

// NoLayoutRuleError means a layout was found but no layout rule says how to
// process it.
type NoLayoutRuleError struct {
	Layout string
}

func (e *NoLayoutRuleError) Error() string {
	return fmt.Sprintf("no layout rule matches layout %s", e.Layout)
}

// UnknownFilterError names a filter that is not registered.
type UnknownFilterError struct {
	Name string
}

func (e *UnknownFilterError) Error() string {
	return fmt.Sprintf("unknown filter %q", e.Name)
}

// NoSuchSnapshotError names a snapshot a representation never took.
type NoSuchSnapshotError struct {
	Rep      string
	Snapshot string
}

func (e *NoSuchSnapshotError) Error() string {
	return fmt.Sprintf("representation %s has no snapshot %q", e.Rep, e.Snapshot)
}

// NoSuchRepError names a representation that does not exist.
type NoSuchRepError struct {
	Item string
	Name string
}

func (e *NoSuchRepError) Error() string {
	return fmt.Sprintf("item %s has no representation %q", e.Item, e.Name)
}
