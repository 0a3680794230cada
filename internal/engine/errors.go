package engine

import (
	"errors"
	"fmt"
	"strings"
)

// RuntimeError represents an error detected by the scheduler itself, as
// opposed to a failure inside a representation's pipeline.
//
// Runtime errors include:
//   - Recursive compilation: pending representations all wait on each other
//   - Self dependency: a representation waits on its own output
//   - Repeated deferral: a representation is deferred twice on the same dependency
//   - Quota exceeded: a run exceeds its attempt budget
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Rep identifies the affected representation, when there is one.
	Rep string

	// Remaining lists every representation left uncompiled
	// (recursive compilation only).
	Remaining []string

	// Cycles lists the dependency cycles among Remaining.
	Cycles [][]string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeRecursiveCompilation indicates no pending representation can
	// make progress.
	ErrCodeRecursiveCompilation RuntimeErrorCode = "RECURSIVE_COMPILATION"

	// ErrCodeSelfDependency indicates a representation needs itself.
	ErrCodeSelfDependency RuntimeErrorCode = "SELF_DEPENDENCY"

	// ErrCodeRepeatedDeferral indicates a representation was deferred on a
	// dependency that was already satisfied once.
	ErrCodeRepeatedDeferral RuntimeErrorCode = "REPEATED_DEFERRAL"

	// ErrCodeQuotaExceeded indicates the run exceeded max attempts.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.Rep != "" {
		fmt.Fprintf(&b, " (rep=%s)", e.Rep)
	}
	if len(e.Remaining) > 0 {
		fmt.Fprintf(&b, "; remaining: %s", strings.Join(e.Remaining, ", "))
	}
	for _, c := range e.Cycles {
		fmt.Fprintf(&b, "; cycle: %s -> %s", strings.Join(c, " -> "), c[0])
	}
	return b.String()
}

func isCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsRecursiveCompilation returns true if err is a recursive compilation
// error. Uses errors.As to handle wrapped errors.
func IsRecursiveCompilation(err error) bool {
	return isCode(err, ErrCodeRecursiveCompilation)
}

// IsSelfDependency returns true if err is a self dependency error.
func IsSelfDependency(err error) bool {
	return isCode(err, ErrCodeSelfDependency)
}

// IsRepeatedDeferral returns true if err is a repeated deferral error.
func IsRepeatedDeferral(err error) bool {
	return isCode(err, ErrCodeRepeatedDeferral)
}

// IsQuotaError returns true if err is a quota error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and
// AttemptsExceededError.
func IsQuotaError(err error) bool {
	if isCode(err, ErrCodeQuotaExceeded) {
		return true
	}
	var ae *AttemptsExceededError
	return errors.As(err, &ae)
}

// NewRecursiveCompilationError creates a RuntimeError listing the stuck
// representations and the cycles among them.
func NewRecursiveCompilationError(remaining []string, cycles [][]string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeRecursiveCompilation,
		Message:   "representations depend on each other",
		Remaining: remaining,
		Cycles:    cycles,
	}
}

// NewSelfDependencyError creates a RuntimeError for a representation that
// reads its own compiled content.
func NewSelfDependencyError(rep string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeSelfDependency,
		Message: "representation depends on its own compiled content",
		Rep:     rep,
	}
}

// NewRepeatedDeferralError creates a RuntimeError for a deferral that
// would loop.
func NewRepeatedDeferralError(rep, dependency string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeRepeatedDeferral,
		Message: "representation deferred twice on the same dependency",
		Rep:     rep,
		Details: map[string]string{"dependency": dependency},
	}
}

// CompilationError reports a representation whose pipeline failed. The run
// is aborted; representations compiled before it stay compiled.
type CompilationError struct {
	Rep string
	Err error
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("compile %s: %v", e.Rep, e.Err)
}

func (e *CompilationError) Unwrap() error {
	return e.Err
}

// AsCompilationError extracts a CompilationError from err.
func AsCompilationError(err error) (*CompilationError, bool) {
	var ce *CompilationError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
