package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/roach88/quire/internal/compiler"
	"github.com/roach88/quire/internal/engine"
	"github.com/roach88/quire/internal/ir"
	"github.com/roach88/quire/internal/project"
	"github.com/roach88/quire/internal/store"
	"github.com/roach88/quire/internal/writer"
)

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric      = "E001" // Generic/unknown error
	ErrCodeConfig       = "E002" // quire.yaml or .env invalid
	ErrCodeNoRules      = "E003" // rules file missing
	ErrCodeInvalidRules = "E004" // rules file does not parse or validate
	ErrCodeNotFound     = "E005" // site directory not found
	ErrCodeSiteLoad     = "E006" // content, layouts or snippets unreadable
	ErrCodeDatabase     = "E007" // cache database error
	ErrCodeCompile      = "E008" // a representation failed to compile
	ErrCodeRuntime      = "E009" // scheduler error (recursion, quota, ...)
	ErrCodePrune        = "E010" // pruning failed
)

// LoadError represents an error that occurred while opening a site.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // rules file position if available
	Details any
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Site is an opened site directory with its cache database.
type Site struct {
	Dir     string
	Project *project.Project
	Store   *store.Store
}

// OpenSite opens the site rooted at dir. Every error is a *LoadError.
func OpenSite(dir string) (*Site, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("site directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing site directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	p, err := project.Open(osfs.New(dir), nil)
	if err != nil {
		return nil, convertProjectError(err)
	}
	st, err := p.OpenStore(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeDatabase, Message: fmt.Sprintf("opening cache database: %v", err)}
	}
	return &Site{Dir: dir, Project: p, Store: st}, nil
}

// Close closes the cache database.
func (s *Site) Close() error {
	return s.Store.Close()
}

// Compiler loads the site's content and the stored session and returns a
// compiler writing to the output directory.
func (s *Site) Compiler(ctx context.Context, opts ...engine.Option) (*engine.Compiler, *store.Session, error) {
	site, err := s.Project.Site()
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeSiteLoad, Message: err.Error()}
	}
	out, err := s.Project.Output()
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeSiteLoad, Message: err.Error()}
	}
	sess, err := s.Store.Load(ctx)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeDatabase, Message: fmt.Sprintf("loading cache: %v", err)}
	}
	return s.Project.Compiler(site, sess, writer.New(out), opts...), sess, nil
}

// convertProjectError maps errors from opening a project to a LoadError
// with position info.
func convertProjectError(err error) *LoadError {
	var missing *project.MissingRulesError
	if errors.As(err, &missing) {
		return &LoadError{Code: ErrCodeNoRules, Message: missing.Error()}
	}
	var rulesErr *project.RulesError
	if !errors.As(err, &rulesErr) {
		return &LoadError{Code: ErrCodeConfig, Message: err.Error()}
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{Code: ErrCodeInvalidRules, Message: compileErr.Message, Pos: compileErr.Pos}
	}
	var validation *compiler.ValidationErrors
	if errors.As(err, &validation) {
		return &LoadError{
			Code:    ErrCodeInvalidRules,
			Message: fmt.Sprintf("%s: %d invalid rule(s)", validation.Filename, len(validation.Errors)),
			Details: validation.Errors,
		}
	}
	return &LoadError{Code: ErrCodeInvalidRules, Message: fmt.Sprintf("%s: %v", rulesErr.Filename, rulesErr.Err)}
}

// convertRunError maps a failed compilation to an error code and details.
func convertRunError(err error) (string, any) {
	var rt *engine.RuntimeError
	if errors.As(err, &rt) {
		details := map[string]any{"code": string(rt.Code)}
		if rt.Rep != "" {
			details["rep"] = rt.Rep
		}
		if len(rt.Remaining) > 0 {
			details["remaining"] = rt.Remaining
		}
		if len(rt.Cycles) > 0 {
			details["cycles"] = rt.Cycles
		}
		return ErrCodeRuntime, details
	}
	if ce, ok := engine.AsCompilationError(err); ok {
		return ErrCodeCompile, map[string]any{"rep": ce.Rep}
	}
	if errors.Is(err, context.Canceled) {
		return ErrCodeGeneric, nil
	}
	return ErrCodeCompile, nil
}

// failLoad reports a LoadError. Load errors are command-level errors
// (exit code 2).
func failLoad(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	if !formatter.JSON() && loadErr.Pos.IsValid() {
		fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
	}
	if !formatter.JSON() {
		if ves, ok := loadErr.Details.([]compiler.ValidationError); ok {
			_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
			for _, ve := range ves {
				fmt.Fprintf(formatter.Writer, "  %s\n", ve.Error())
			}
			return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
		}
	}
	return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Message, loadErr.Details)
}

// siteDir returns the site directory argument, defaulting to the working
// directory.
func siteDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

// canonicalPlan renders a plan as canonical JSON.
func canonicalPlan(p *ir.Plan) string {
	return string(ir.MustMarshalCanonical(p.Serialize()))
}
