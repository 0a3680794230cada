package compiler

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/quire/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// Compilation rule errors (E101-E109)
	ErrMissingPattern    = "E101" // pattern is required
	ErrInvalidPattern    = "E102" // pattern contains braces
	ErrInvalidRepName    = "E103" // rep name contains ':' or is blank
	ErrDuplicateSnapName = "E104" // snapshot name declared twice in one rule

	// Step errors (E110-E119)
	ErrEmptyStep        = "E110" // step declares no kind
	ErrAmbiguousStep    = "E111" // step declares several kinds
	ErrUnknownFilter    = "E112" // filter not registered
	ErrInvalidWrite     = "E113" // write target malformed
	ErrMisplacedOption  = "E114" // option not valid for the step kind
	ErrReservedSnapshot = "E115" // snapshot name reserved

	// Layout rule errors (E120-E129)
	ErrLayoutNoFilter = "E120" // layout rule without filter
)

// reserved snapshot names are managed by the compiler.
var reservedSnapshots = []string{"raw", "last"}

// ValidationError represents a rules validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a parsed file against the known filter names.
// Returns all errors found (does not fail-fast).
func Validate(f *File, filters []string) []ValidationError {
	var errs []ValidationError
	for i, d := range f.Compile {
		errs = append(errs, validateCompile(d, fmt.Sprintf("compile[%d]", i), filters)...)
	}
	for i, d := range f.Layout {
		field := fmt.Sprintf("layout[%d]", i)
		line := d.Pos.Line()
		errs = append(errs, validatePattern(d.Pattern, field, line)...)
		if d.Filter == "" {
			errs = append(errs, ValidationError{Field: field + ".filter", Message: "filter is required", Code: ErrLayoutNoFilter, Line: line})
		} else if !slices.Contains(filters, d.Filter) {
			errs = append(errs, unknownFilter(field+".filter", d.Filter, line))
		}
	}
	for i, d := range f.Preprocess {
		errs = append(errs, validatePattern(d.Pattern, fmt.Sprintf("preprocess[%d]", i), d.Pos.Line())...)
	}
	return errs
}

func validatePattern(pattern, field string, line int) []ValidationError {
	if pattern == "" {
		return []ValidationError{{Field: field + ".pattern", Message: "pattern is required", Code: ErrMissingPattern, Line: line}}
	}
	if strings.ContainsAny(pattern, "{}") {
		return []ValidationError{{Field: field + ".pattern", Message: fmt.Sprintf("pattern %q: braces are not supported", pattern), Code: ErrInvalidPattern, Line: line}}
	}
	return nil
}

func unknownFilter(field, name string, line int) ValidationError {
	return ValidationError{
		Field:   field,
		Message: fmt.Sprintf("unknown filter %q", name),
		Code:    ErrUnknownFilter,
		Line:    line,
	}
}

func validateCompile(d CompileDecl, field string, filters []string) []ValidationError {
	line := d.Pos.Line()
	errs := validatePattern(d.Pattern, field, line)
	if d.Rep != "" && (strings.TrimSpace(d.Rep) == "" || strings.Contains(d.Rep, ":")) {
		errs = append(errs, ValidationError{Field: field + ".rep", Message: fmt.Sprintf("invalid rep name %q", d.Rep), Code: ErrInvalidRepName, Line: line})
	}

	snapshots := make(map[string]bool)
	declare := func(name, stepField string, stepLine int) {
		switch {
		case slices.Contains(reservedSnapshots, name):
			errs = append(errs, ValidationError{Field: stepField, Message: fmt.Sprintf("snapshot name %q is reserved", name), Code: ErrReservedSnapshot, Line: stepLine})
		case snapshots[name]:
			errs = append(errs, ValidationError{Field: stepField, Message: fmt.Sprintf("snapshot %q declared more than once", name), Code: ErrDuplicateSnapName, Line: stepLine})
		}
		snapshots[name] = true
	}

	for i, s := range d.Steps {
		sf := fmt.Sprintf("%s.steps[%d]", field, i)
		sl := s.Pos.Line()
		switch len(s.Kinds) {
		case 0:
			errs = append(errs, ValidationError{Field: sf, Message: "step declares none of filter, layout, snapshot, write", Code: ErrEmptyStep, Line: sl})
			continue
		case 1:
		default:
			errs = append(errs, ValidationError{Field: sf, Message: fmt.Sprintf("step declares several kinds: %s", strings.Join(s.Kinds, ", ")), Code: ErrAmbiguousStep, Line: sl})
			continue
		}

		kind := s.Kind()
		if (s.Path != "" || s.Final) && kind != KindSnapshot {
			errs = append(errs, ValidationError{Field: sf, Message: fmt.Sprintf("path and final only apply to snapshot steps, not %s", kind), Code: ErrMisplacedOption, Line: sl})
		}
		if len(s.Params) > 0 && kind != KindFilter && kind != KindLayout {
			errs = append(errs, ValidationError{Field: sf + ".params", Message: fmt.Sprintf("params only apply to filter and layout steps, not %s", kind), Code: ErrMisplacedOption, Line: sl})
		}

		switch kind {
		case KindFilter:
			if !slices.Contains(filters, s.Filter) {
				errs = append(errs, unknownFilter(sf+".filter", s.Filter, sl))
			}
		case KindLayout:
			if s.Layout == "" {
				errs = append(errs, ValidationError{Field: sf + ".layout", Message: "layout reference is empty", Code: ErrMissingPattern, Line: sl})
			}
		case KindSnapshot:
			declare(s.Snapshot, sf+".snapshot", sl)
		case KindWrite:
			errs = append(errs, validateWrite(s.Write, sf+".write", sl)...)
			if s.Write.Snapshot != "" {
				declare(s.Write.Snapshot, sf+".write.snapshot", sl)
			}
		}
	}
	return errs
}

func validateWrite(w *WriteTarget, field string, line int) []ValidationError {
	var errs []ValidationError
	if w.Path != "" {
		if !strings.HasPrefix(w.Path, "/") || strings.HasSuffix(w.Path, "/") {
			errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf("path %q must start and not end with /", w.Path), Code: ErrInvalidWrite, Line: line})
		}
		if w.Ext != "" || w.Index {
			errs = append(errs, ValidationError{Field: field, Message: "path cannot be combined with ext or index", Code: ErrInvalidWrite, Line: line})
		}
	}
	if strings.ContainsAny(w.Ext, "./") {
		errs = append(errs, ValidationError{Field: field + ".ext", Message: fmt.Sprintf("ext %q must not contain '.' or '/'", w.Ext), Code: ErrInvalidWrite, Line: line})
	}
	return errs
}

// target resolves the output path for an item.
func (w *WriteTarget) target(id ir.Identifier) string {
	if w.Path != "" {
		return w.Path
	}
	out := id
	if w.Ext != "" {
		out = out.WithExt(w.Ext)
	}
	if w.Index {
		comps := out.WithoutExt().Components()
		if len(comps) == 0 || comps[len(comps)-1] != "index" {
			out = out.InDir()
		}
	}
	return out.String()
}
