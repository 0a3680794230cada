package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/roach88/quire/internal/config"
	"github.com/roach88/quire/internal/engine"
	"github.com/roach88/quire/internal/notify"
	"github.com/roach88/quire/internal/pipeline"
	"github.com/roach88/quire/internal/project"
	"github.com/roach88/quire/internal/store"
	"github.com/roach88/quire/internal/writer"
)

// Harness runs one scenario. It owns the in-memory site, the database and
// the trace clock.
type Harness struct {
	fs     billy.Filesystem
	store  *store.Store
	clock  *notify.Clock
	result *Result
	run    int
	output billy.Filesystem
}

// noEnv keeps the process environment out of scenarios.
func noEnv(string) string { return "" }

// Run executes a scenario and returns the result.
//
// Execution flow:
// 1. Create an in-memory site and a temporary database
// 2. For each run: apply edits, compile, check expectations
// 3. Evaluate assertions against the trace and the final output
//
// An error is returned only when the harness itself fails; unmet
// expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "quire-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create database dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		fs:     memfs.New(),
		store:  st,
		clock:  notify.NewClock(),
		result: NewResult(),
	}

	files := map[string]string{"rules.cue": scenario.Rules}
	if scenario.Config != "" {
		files[config.Filename] = scenario.Config
	}
	for name, body := range scenario.Files {
		files[name] = body
	}
	if err := h.writeFiles(files); err != nil {
		return nil, err
	}

	ctx := context.Background()
	for i, step := range scenario.Runs {
		if err := h.writeFiles(step.Write); err != nil {
			return nil, fmt.Errorf("run %d: %w", i+1, err)
		}
		for _, name := range step.Remove {
			if err := h.fs.Remove(name); err != nil {
				return nil, fmt.Errorf("run %d: remove %s: %w", i+1, name, err)
			}
		}

		rr, runErr := h.compile(ctx, step.Force)
		h.result.Runs = append(h.result.Runs, rr)
		for _, msg := range h.checkRun(step.Expect, rr, runErr) {
			h.result.AddError(fmt.Sprintf("run %d: %s", h.run, msg))
		}
	}

	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, h.output) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// writeFiles writes files in sorted order.
func (h *Harness) writeFiles(files map[string]string) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := util.WriteFile(h.fs, name, []byte(files[name]), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// compile performs one run. The project is reopened every time so edits to
// the configuration and rules take effect.
func (h *Harness) compile(ctx context.Context, force bool) (RunResult, error) {
	h.run++
	rr := RunResult{
		RunID:    fmt.Sprintf("run-%d", h.run),
		Compiled: []string{},
		Cached:   []string{},
		Written:  []string{},
	}

	p, err := project.Open(h.fs, noEnv)
	if err != nil {
		return rr, err
	}
	site, err := p.Site()
	if err != nil {
		return rr, err
	}
	out, err := p.Output()
	if err != nil {
		return rr, err
	}
	h.output = out
	sess, err := h.store.Load(ctx)
	if err != nil {
		return rr, err
	}

	center := notify.NewCenter()
	unsubscribe := center.Subscribe(h.record)
	defer unsubscribe()

	opts := []engine.Option{
		engine.WithNotificationCenter(center),
		engine.WithRunIDGenerator(engine.NewFixedGenerator(rr.RunID)),
	}
	if force {
		opts = append(opts, engine.WithForceAll())
	}
	res, err := p.Compiler(site, sess, writer.New(out), opts...).Run(ctx)
	if err != nil {
		return rr, err
	}
	rr.Compiled = append(rr.Compiled, res.Compiled...)
	rr.Cached = append(rr.Cached, res.Cached...)
	rr.Written = append(rr.Written, res.Written...)
	return rr, nil
}

// record appends compilation-level events to the trace.
func (h *Harness) record(ev notify.Event) {
	switch ev.Kind {
	case notify.CompilationStarted, notify.CompilationEnded, notify.CompilationFailed, notify.CachedContentUsed:
	default:
		return
	}
	te := TraceEvent{
		Run:  h.run,
		Seq:  h.clock.Next(),
		Kind: ev.Kind.String(),
		Rep:  ev.Reference(),
	}
	if unmet, ok := pipeline.AsUnmetDependency(ev.Err); ok {
		te.Dependency = unmet.Rep.Reference()
	}
	h.result.Trace = append(h.result.Trace, te)
}

// checkRun compares one run against its expectations.
func (h *Harness) checkRun(expect *RunExpect, rr RunResult, runErr error) []string {
	if runErr != nil {
		h.result.Runs[len(h.result.Runs)-1].Error = runErr.Error()
	}
	if expect == nil {
		if runErr != nil {
			return []string{fmt.Sprintf("unexpected error: %v", runErr)}
		}
		return nil
	}

	var errs []string
	switch {
	case expect.Error != "" && runErr == nil:
		errs = append(errs, fmt.Sprintf("expected error containing %q, run succeeded", expect.Error))
	case expect.Error != "" && !strings.Contains(runErr.Error(), expect.Error):
		errs = append(errs, fmt.Sprintf("expected error containing %q, got: %v", expect.Error, runErr))
	case expect.Error == "" && runErr != nil:
		errs = append(errs, fmt.Sprintf("unexpected error: %v", runErr))
	}

	if expect.Compiled != nil && !slices.Equal(expect.Compiled, rr.Compiled) {
		errs = append(errs, fmt.Sprintf("compiled: expected %v, got %v", expect.Compiled, rr.Compiled))
	}
	if expect.Cached != nil && !slices.Equal(expect.Cached, rr.Cached) {
		errs = append(errs, fmt.Sprintf("cached: expected %v, got %v", expect.Cached, rr.Cached))
	}

	names := make([]string, 0, len(expect.Outputs))
	for name := range expect.Outputs {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := checkOutput(h.output, name, expect.Outputs[name]); err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

// checkOutput compares an output file with its expected content.
func checkOutput(out billy.Filesystem, name, want string) error {
	if out == nil {
		return fmt.Errorf("output %s: no output directory", name)
	}
	data, err := util.ReadFile(out, name)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("output %s: missing", name)
	}
	if err != nil {
		return fmt.Errorf("output %s: %w", name, err)
	}
	if string(data) != want {
		return fmt.Errorf("output %s: expected %q, got %q", name, want, string(data))
	}
	return nil
}
