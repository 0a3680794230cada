// Package project assembles a site directory into the pieces a compilation
// needs: configuration, compiled rules, the loaded site and the output
// filesystem.
package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/roach88/quire/internal/compiler"
	"github.com/roach88/quire/internal/config"
	"github.com/roach88/quire/internal/datasource"
	"github.com/roach88/quire/internal/engine"
	"github.com/roach88/quire/internal/filters"
	"github.com/roach88/quire/internal/ir"
	"github.com/roach88/quire/internal/store"
)

// MissingRulesError means the rules file named by the configuration does
// not exist.
type MissingRulesError struct {
	Filename string
}

func (e *MissingRulesError) Error() string {
	return fmt.Sprintf("rules file %s not found", e.Filename)
}

// RulesError means the rules file did not parse or validate. Err is a
// *compiler.CompileError, a *compiler.ValidationErrors or a CUE error.
type RulesError struct {
	Filename string
	Err      error
}

func (e *RulesError) Error() string {
	return e.Err.Error()
}

func (e *RulesError) Unwrap() error {
	return e.Err
}

// Project is an opened site directory.
type Project struct {
	FS      billy.Filesystem
	Config  *config.Config
	Rules   *compiler.RuleSet
	Filters *filters.Registry
}

// Open reads the configuration and compiles the rules file of the site
// rooted at fs. A nil getenv means os.Getenv.
func Open(fs billy.Filesystem, getenv func(string) string) (*Project, error) {
	cfg, err := config.Load(fs, getenv)
	if err != nil {
		return nil, err
	}

	src, err := util.ReadFile(fs, cfg.RulesFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &MissingRulesError{Filename: cfg.RulesFile}
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", cfg.RulesFile, err)
	}

	reg := filters.Default()
	rs, err := compiler.Load(cfg.RulesFile, src, reg.Names())
	if err != nil {
		return nil, &RulesError{Filename: cfg.RulesFile, Err: err}
	}
	return &Project{FS: fs, Config: cfg, Rules: rs, Filters: reg}, nil
}

// Site loads items, layouts and code snippets into a new, unfrozen site.
// Each call reads the filesystem again.
func (p *Project) Site() (*ir.Site, error) {
	attrs, err := p.Config.SiteAttributes()
	if err != nil {
		return nil, err
	}
	src, err := datasource.New(p.FS, datasource.Config{
		ContentDir:     p.Config.ContentDir,
		LayoutsDir:     p.Config.LayoutsDir,
		LibDir:         p.Config.LibDir,
		TextExtensions: p.Config.TextExtensions,
		Encoding:       p.Config.Encoding,
	})
	if err != nil {
		return nil, err
	}
	site := ir.NewSite(attrs)
	if err := src.Load(site); err != nil {
		return nil, err
	}
	return site, nil
}

// Output returns the output directory, creating it if needed. A relative
// output_dir is resolved inside the project filesystem.
func (p *Project) Output() (billy.Filesystem, error) {
	dir := p.Config.OutputDir
	if filepath.IsAbs(dir) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
		return osfs.New(dir), nil
	}
	if err := p.FS.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return p.FS.Chroot(dir)
}

// OpenStore opens the site's database. root is the site directory on disk;
// a relative database path is resolved against it.
func (p *Project) OpenStore(root string) (*store.Store, error) {
	path := p.Config.Database
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	return store.Open(path)
}

// Compiler creates a compiler wired with the project's preprocessor, filters
// and pruning settings. opts are applied last.
func (p *Project) Compiler(site *ir.Site, sess *store.Session, out engine.Output, opts ...engine.Option) *engine.Compiler {
	base := []engine.Option{
		engine.WithPreprocessor(p.Rules.Preprocessor),
		engine.WithFilters(p.Filters),
	}
	if p.Config.Prune.AutoPrune {
		base = append(base, engine.WithAutoPrune(p.Config.Prune.Exclude))
	}
	return engine.New(site, p.Rules.Table, sess, out, append(base, opts...)...)
}
