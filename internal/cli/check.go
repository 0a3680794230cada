package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/quire/internal/compiler"
	"github.com/roach88/quire/internal/engine"
	"github.com/roach88/quire/internal/outdated"
)

// CheckOptions holds flags for the check command.
type CheckOptions struct {
	*RootOptions
	Strict bool // shadowed rules fail the check
}

// RepStatus is the outdatedness of one representation.
type RepStatus struct {
	Rep      string `json:"rep"`
	Outdated bool   `json:"outdated"`
	Reason   string `json:"reason,omitempty"`
}

// CheckResult holds check results.
type CheckResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.ShadowWarning   `json:"warnings,omitempty"`
	Reps     []RepStatus                `json:"reps,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CheckOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "check [site-dir]",
		Short: "Validate rules and report what the next compile would do",
		Long: `Validate the rules file, report shadowed rules, and list for every
representation whether the next compile would recompile it and why.
Nothing is compiled or written.

Exit codes:
  0 - Rules valid
  1 - Rules invalid (or shadowed, with --strict)
  2 - Command error`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd.Context(), opts, siteDir(args), cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat shadowed rules as errors")

	return cmd
}

func runCheck(ctx context.Context, opts *CheckOptions, dir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	site, err := OpenSite(dir)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			if ves, ok := loadErr.Details.([]compiler.ValidationError); ok {
				return outputValidationErrors(formatter, ves)
			}
		}
		return failLoad(formatter, err)
	}
	defer site.Close()

	c, _, err := site.Compiler(ctx)
	if err != nil {
		return failLoad(formatter, err)
	}
	verdicts, err := c.Check()
	if err != nil {
		code, details := convertRunError(err)
		return formatter.Fail(ExitFailure, code, err.Error(), details)
	}

	result := CheckResult{Valid: true, Warnings: site.Project.Rules.Warnings}
	for _, v := range verdicts {
		status := repStatus(v)
		formatter.VerboseLog("checked %s: outdated=%t", status.Rep, status.Outdated)
		result.Reps = append(result.Reps, status)
	}
	if opts.Strict && len(result.Warnings) > 0 {
		result.Valid = false
	}
	return outputCheckResult(formatter, result)
}

func repStatus(v engine.Verdict) RepStatus {
	s := RepStatus{Rep: v.Rep, Outdated: !v.Reusable()}
	switch {
	case v.Reason != outdated.UpToDate:
		s.Reason = string(v.Reason)
	case !v.Cached:
		s.Reason = "no cached content"
	}
	return s
}

// outputCheckResult outputs the check report. Failing only with --strict
// and shadowed rules.
func outputCheckResult(formatter *OutputFormatter, result CheckResult) error {
	if formatter.JSON() {
		if result.Valid {
			return formatter.Success(result)
		}
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    ErrCodeInvalidRules,
				Message: fmt.Sprintf("%d shadowed rule(s)", len(result.Warnings)),
			},
		}); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d shadowed rule(s)", len(result.Warnings)))
	}

	w := formatter.Writer
	for _, warn := range result.Warnings {
		if warn.Line > 0 {
			fmt.Fprintf(w, "line %d\n", warn.Line)
		}
		fmt.Fprintf(w, "  warning: %s: %s\n", warn.Rule, warn.Message)
	}
	if !result.Valid {
		fmt.Fprintln(w, "✗ Shadowed rules")
		return NewExitError(ExitFailure, fmt.Sprintf("%d shadowed rule(s)", len(result.Warnings)))
	}
	fmt.Fprintln(w, "✓ Rules valid")

	outdatedCount := 0
	for _, r := range result.Reps {
		if r.Outdated {
			outdatedCount++
			fmt.Fprintf(w, "  outdated   %s (%s)\n", r.Rep, r.Reason)
		} else if formatter.Verbose {
			fmt.Fprintf(w, "  up to date %s\n", r.Rep)
		}
	}
	fmt.Fprintf(w, "%d of %d representation(s) outdated\n", outdatedCount, len(result.Reps))
	return nil
}

// outputValidationErrors outputs rules validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.JSON() {
		result := CheckResult{
			Valid:  false,
			Errors: errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
