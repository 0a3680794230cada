package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/quire/internal/engine"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Force bool // recompile everything

	// RunIDs overrides the run identifier generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// CompileSummary is the result of a successful compile.
type CompileSummary struct {
	RunID    string   `json:"run_id"`
	Compiled []string `json:"compiled"`
	Cached   []string `json:"cached"`
	Deferred int      `json:"deferred"`
	Written  []string `json:"written"`
	Pruned   []string `json:"pruned,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile [site-dir]",
		Short: "Compile the site",
		Long: `Compile every representation of the site into the output directory.

Representations whose content, attributes, rules and dependencies are
unchanged since the last successful run are restored from the cache.
The cache is only updated when the whole run succeeds.

Exit codes:
  0 - Compilation succeeded
  1 - A representation failed or the run could not be scheduled
  2 - Command error (missing site, invalid rules, database error)

Examples:
  quire compile
  quire compile ./site --force
  quire compile ./site --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, siteDir(args), cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "recompile every representation, ignoring the cache")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, dir string, cmd *cobra.Command) error {
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
		return failLoad(formatter, err)
	}
	defer site.Close()

	for _, w := range site.Project.Rules.Warnings {
		formatter.VerboseLog("warning: %s: %s", w.Rule, w.Message)
	}

	var engineOpts []engine.Option
	if opts.Force {
		engineOpts = append(engineOpts, engine.WithForceAll())
	}
	if opts.RunIDs != nil {
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}
	c, _, err := site.Compiler(ctx, engineOpts...)
	if err != nil {
		return failLoad(formatter, err)
	}

	res, err := c.Run(ctx)
	if err != nil {
		code, details := convertRunError(err)
		// Compilation failures = exit code 1
		return formatter.Fail(ExitFailure, code, err.Error(), details)
	}

	summary := CompileSummary{
		RunID:    res.RunID,
		Compiled: nonNil(res.Compiled),
		Cached:   nonNil(res.Cached),
		Deferred: res.Deferred,
		Written:  nonNil(res.Written),
	}
	if res.Pruned != nil {
		summary.Pruned = append(summary.Pruned, res.Pruned.Files...)
	}
	return outputCompileSuccess(formatter, summary)
}

// outputCompileSuccess outputs a successful compilation.
func outputCompileSuccess(formatter *OutputFormatter, s CompileSummary) error {
	if formatter.JSON() {
		return formatter.SuccessRun(s.RunID, s)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d representation(s), %d from cache\n", len(s.Compiled), len(s.Cached))
	if formatter.Verbose {
		for _, ref := range s.Compiled {
			fmt.Fprintf(w, "  compiled %s\n", ref)
		}
		for _, ref := range s.Cached {
			fmt.Fprintf(w, "  cached   %s\n", ref)
		}
	}
	fmt.Fprintf(w, "  wrote %d file(s)", len(s.Written))
	if s.Deferred > 0 {
		fmt.Fprintf(w, ", %d deferral(s)", s.Deferred)
	}
	fmt.Fprintln(w)
	for _, p := range s.Pruned {
		fmt.Fprintf(w, "  pruned %s\n", p)
	}
	fmt.Fprintf(w, "Run %s\n", s.RunID)
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
