// Package config loads a site's quire.yaml and .env overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/quire/internal/ir"
)

// File names looked up in the site root.
const (
	Filename    = "quire.yaml"
	EnvFilename = ".env"
)

// Environment variables that override file values.
const (
	EnvOutputDir = "QUIRE_OUTPUT_DIR"
	EnvDatabase  = "QUIRE_DATABASE"
)

// Config is a site's configuration.
type Config struct {
	OutputDir      string         `yaml:"output_dir"`
	ContentDir     string         `yaml:"content_dir"`
	LayoutsDir     string         `yaml:"layouts_dir"`
	LibDir         string         `yaml:"lib_dir"`
	RulesFile      string         `yaml:"rules_file"`
	Database       string         `yaml:"database"`
	Encoding       string         `yaml:"encoding"`
	TextExtensions []string       `yaml:"text_extensions"`
	Prune          Prune          `yaml:"prune"`
	Site           map[string]any `yaml:"site"`
}

// Prune configures output pruning after compilation.
type Prune struct {
	AutoPrune bool     `yaml:"auto_prune"`
	Exclude   []string `yaml:"exclude"`
}

// Default returns the configuration used when quire.yaml is absent or
// leaves fields empty.
func Default() Config {
	return Config{
		OutputDir:  "output",
		ContentDir: "content",
		LayoutsDir: "layouts",
		LibDir:     "lib",
		RulesFile:  "rules.cue",
		Database:   ".quire/cache.db",
		Prune:      Prune{Exclude: []string{".git", ".hg", ".svn", "CVS"}},
	}
}

// Load reads configuration from the root of fs. Values come from, in
// increasing precedence: defaults, quire.yaml, .env, then getenv. A nil
// getenv means os.Getenv.
func Load(fs billy.Filesystem, getenv func(string) string) (*Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()

	data, err := util.ReadFile(fs, Filename)
	switch {
	case err == nil:
		var file Config
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse %s: %w", Filename, err)
		}
		cfg.merge(file)
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", Filename, err)
	}

	env := map[string]string{}
	envData, err := util.ReadFile(fs, EnvFilename)
	switch {
	case err == nil:
		env, err = godotenv.Parse(bytes.NewReader(envData))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", EnvFilename, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", EnvFilename, err)
	}

	override := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
			return
		}
		if v := env[key]; v != "" {
			*dst = v
		}
	}
	override(EnvOutputDir, &cfg.OutputDir)
	override(EnvDatabase, &cfg.Database)

	return &cfg, nil
}

func (c *Config) merge(file Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.OutputDir, file.OutputDir)
	set(&c.ContentDir, file.ContentDir)
	set(&c.LayoutsDir, file.LayoutsDir)
	set(&c.LibDir, file.LibDir)
	set(&c.RulesFile, file.RulesFile)
	set(&c.Database, file.Database)
	set(&c.Encoding, file.Encoding)
	if file.TextExtensions != nil {
		c.TextExtensions = file.TextExtensions
	}
	c.Prune.AutoPrune = file.Prune.AutoPrune
	if file.Prune.Exclude != nil {
		c.Prune.Exclude = file.Prune.Exclude
	}
	c.Site = file.Site
}

// SiteAttributes converts the free-form site section into the site
// configuration object templates see.
func (c *Config) SiteAttributes() (ir.IRObject, error) {
	if c.Site == nil {
		return ir.IRObject{}, nil
	}
	obj, err := ir.ObjectFromAny(c.Site)
	if err != nil {
		return nil, fmt.Errorf("site config: %w", err)
	}
	return obj, nil
}
