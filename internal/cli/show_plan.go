package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// PlanEntry is one representation's recorded plan.
type PlanEntry struct {
	Rep  string          `json:"rep"`
	Plan json.RawMessage `json:"plan"` // canonical serialized plan
}

// NewShowPlanCommand creates the show-plan command.
func NewShowPlanCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show-plan [site-dir]",
		Short: "Print the plan of every representation",
		Long: `Record and print the plan of every representation without compiling.

A plan is the sequence of filter, layout, snapshot and write actions a
compilation rule performs. Plans are compared between runs to detect rule
changes.

Examples:
  quire show-plan
  quire show-plan ./site --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShowPlan(cmd.Context(), rootOpts, siteDir(args), cmd)
		},
	}

	return cmd
}

func runShowPlan(ctx context.Context, opts *RootOptions, dir string, cmd *cobra.Command) error {
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
	plans, err := c.Plans()
	if err != nil {
		code, details := convertRunError(err)
		return formatter.Fail(ExitFailure, code, err.Error(), details)
	}

	entries := make([]PlanEntry, len(plans))
	for i, p := range plans {
		entries[i] = PlanEntry{Rep: p.Rep(), Plan: json.RawMessage(canonicalPlan(p))}
	}
	if formatter.JSON() {
		return formatter.Success(entries)
	}

	w := formatter.Writer
	for _, p := range plans {
		fmt.Fprintln(w, p.Rep())
		for _, a := range p.Actions() {
			fmt.Fprintf(w, "  %s\n", a)
		}
		if formatter.Verbose {
			fmt.Fprintf(w, "  %s\n", canonicalPlan(p))
		}
	}
	return nil
}
