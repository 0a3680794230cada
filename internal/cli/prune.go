package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// PruneOptions holds flags for the prune command.
type PruneOptions struct {
	*RootOptions
	DryRun bool
}

// PruneSummary lists what pruning removed, or would remove.
type PruneSummary struct {
	DryRun bool     `json:"dry_run"`
	Files  []string `json:"files"`
	Dirs   []string `json:"dirs"`
}

// NewPruneCommand creates the prune command.
func NewPruneCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PruneOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "prune [site-dir]",
		Short: "Remove output files no representation writes",
		Long: `Remove files and empty directories from the output directory that no
representation's plan writes. Paths with a component listed in
prune.exclude are kept.

Examples:
  quire prune --dry-run
  quire prune ./site`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(cmd.Context(), opts, siteDir(args), cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "list what would be removed without removing it")

	return cmd
}

func runPrune(ctx context.Context, opts *PruneOptions, dir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	site, err := OpenSite(dir)
	if err != nil {
		return failLoad(formatter, err)
	}
	defer site.Close()

	c, _, err := site.Compiler(ctx)
	if err != nil {
		return failLoad(formatter, err)
	}
	res, err := c.Prune(site.Project.Config.Prune.Exclude, opts.DryRun)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodePrune, err.Error(), nil)
	}

	summary := PruneSummary{DryRun: opts.DryRun, Files: nonNil(res.Files), Dirs: nonNil(res.Dirs)}
	if formatter.JSON() {
		return formatter.Success(summary)
	}

	w := formatter.Writer
	verb := "Removed"
	if opts.DryRun {
		verb = "Would remove"
	}
	if len(summary.Files) == 0 && len(summary.Dirs) == 0 {
		fmt.Fprintln(w, "✓ Nothing to prune")
		return nil
	}
	fmt.Fprintf(w, "%s %d file(s), %d dir(s)\n", verb, len(summary.Files), len(summary.Dirs))
	for _, f := range summary.Files {
		fmt.Fprintf(w, "  %s\n", f)
	}
	for _, d := range summary.Dirs {
		fmt.Fprintf(w, "  %s/\n", d)
	}
	return nil
}
