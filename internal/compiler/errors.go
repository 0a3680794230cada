package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

// ValidationErrors is returned by Load when a rules file is well-formed
// CUE but describes invalid rules.
type ValidationErrors struct {
	Filename string
	Errors   []ValidationError
}

func (e *ValidationErrors) Error() string {
	lines := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		lines[i] = ve.Error()
	}
	return fmt.Sprintf("%s: %d invalid rule(s):\n  %s", e.Filename, len(e.Errors), strings.Join(lines, "\n  "))
}
