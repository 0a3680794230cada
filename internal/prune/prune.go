// Package prune removes output files that no representation wrote.
package prune

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"

	billy "github.com/go-git/go-billy/v5"
)

// Pruner removes stray output.
type Pruner interface {
	// Run removes files not in written, which holds paths relative to the
	// output root. With dryRun set nothing is removed. Returns what was
	// (or would be) removed.
	Run(written []string, dryRun bool) (Result, error)
}

// Result lists removed paths, relative to the output root and sorted.
type Result struct {
	Files []string
	Dirs  []string
}

// Factory builds a pruner for an output filesystem and exclude list.
type Factory func(fs billy.Filesystem, exclude []string) Pruner

// Registry maps writer identifiers to pruner factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry with the filesystem pruner registered
// under "filesystem".
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register("filesystem", func(fs billy.Filesystem, exclude []string) Pruner {
		return NewFilesystem(fs, exclude)
	})
	return r
}

// Register adds or replaces a factory.
func (r *Registry) Register(writer string, f Factory) {
	r.factories[writer] = f
}

// For returns a pruner for the named writer.
func (r *Registry) For(writer string, fs billy.Filesystem, exclude []string) (Pruner, error) {
	f, ok := r.factories[writer]
	if !ok {
		return nil, fmt.Errorf("no pruner for writer %q", writer)
	}
	return f(fs, exclude), nil
}

// Filesystem prunes a billy filesystem.
type Filesystem struct {
	fs      billy.Filesystem
	exclude []string
}

// NewFilesystem creates a pruner. A path is excluded when any of its
// components is in exclude.
func NewFilesystem(fs billy.Filesystem, exclude []string) *Filesystem {
	return &Filesystem{fs: fs, exclude: slices.Clone(exclude)}
}

func (p *Filesystem) excluded(rel string) bool {
	for _, c := range strings.Split(rel, "/") {
		if slices.Contains(p.exclude, c) {
			return true
		}
	}
	return false
}

// Run implements Pruner. Empty directories are removed deepest first.
func (p *Filesystem) Run(written []string, dryRun bool) (Result, error) {
	keep := make(map[string]bool, len(written))
	for _, w := range written {
		keep[strings.TrimPrefix(w, "/")] = true
	}

	var files, dirs []string
	if err := p.scan("", keep, &files, &dirs); err != nil {
		return Result{}, fmt.Errorf("scan output: %w", err)
	}
	slices.Sort(files)

	var res Result
	for _, f := range files {
		res.Files = append(res.Files, f)
		if dryRun {
			slog.Info("would remove stray file", "path", f)
			continue
		}
		if err := p.fs.Remove(f); err != nil {
			return res, fmt.Errorf("remove %s: %w", f, err)
		}
		slog.Info("removed stray file", "path", f)
	}

	// Deepest first: longer paths have more components.
	slices.SortFunc(dirs, func(a, b string) int {
		if d := strings.Count(b, "/") - strings.Count(a, "/"); d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})
	removed := make(map[string]bool, len(files))
	for _, f := range files {
		removed[f] = true
	}
	for _, d := range dirs {
		empty, err := p.emptyAfter(d, removed)
		if err != nil {
			return res, err
		}
		if !empty {
			continue
		}
		removed[d] = true
		res.Dirs = append(res.Dirs, d)
		if dryRun {
			slog.Info("would remove empty directory", "path", d)
			continue
		}
		if err := p.fs.Remove(d); err != nil {
			return res, fmt.Errorf("remove %s: %w", d, err)
		}
		slog.Info("removed empty directory", "path", d)
	}
	return res, nil
}

func (p *Filesystem) scan(dir string, keep map[string]bool, files, dirs *[]string) error {
	entries, err := p.fs.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		rel := path.Join(dir, e.Name())
		if p.excluded(rel) {
			continue
		}
		if e.IsDir() {
			*dirs = append(*dirs, rel)
			if err := p.scan(rel, keep, files, dirs); err != nil {
				return err
			}
			continue
		}
		if !keep[rel] {
			*files = append(*files, rel)
		}
	}
	return nil
}

// emptyAfter reports whether dir has no entries left once removed paths
// are gone.
func (p *Filesystem) emptyAfter(dir string, removed map[string]bool) (bool, error) {
	entries, err := p.fs.ReadDir(dir)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", dir, err)
	}
	for _, e := range entries {
		if !removed[path.Join(dir, e.Name())] {
			return false, nil
		}
	}
	return true, nil
}
