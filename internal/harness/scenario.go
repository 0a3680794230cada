package harness

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a site and the compilation runs to perform on it.
type Scenario struct {
	// Name uniquely identifies this scenario; it names the golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Config is the quire.yaml text. Empty means defaults.
	Config string `yaml:"config,omitempty"`

	// Rules is the rules.cue text.
	Rules string `yaml:"rules"`

	// Files maps site-relative paths to their content.
	Files map[string]string `yaml:"files,omitempty"`

	// Runs are performed in order against the same site and database.
	Runs []RunStep `yaml:"runs"`

	// Assertions are evaluated after the last run.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// RunStep is one compilation run, preceded by edits to the site.
type RunStep struct {
	// Write creates or replaces files before the run.
	Write map[string]string `yaml:"write,omitempty"`

	// Remove deletes files before the run.
	Remove []string `yaml:"remove,omitempty"`

	// Force recompiles every representation.
	Force bool `yaml:"force,omitempty"`

	Expect *RunExpect `yaml:"expect,omitempty"`
}

// RunExpect describes what a run must produce. Unset fields are not
// checked.
type RunExpect struct {
	// Error is a substring the run's error must contain. When set the run
	// must fail.
	Error string `yaml:"error,omitempty"`

	// Compiled lists the representations whose pipeline ran, in order.
	Compiled []string `yaml:"compiled,omitempty"`

	// Cached lists the representations restored from cache, in order.
	Cached []string `yaml:"cached,omitempty"`

	// Outputs maps output paths to their exact content after the run.
	Outputs map[string]string `yaml:"outputs,omitempty"`
}

// Assertion validates the trace or the final output.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, final_output.
	Type string `yaml:"type"`

	// Kind is the event kind (trace_contains, trace_count).
	Kind string `yaml:"kind,omitempty"`

	// Rep restricts matching to one representation (trace_contains,
	// trace_count).
	Rep string `yaml:"rep,omitempty"`

	// Count is the expected number of matching events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Events are "kind rep" strings in expected order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Path is an output path (final_output).
	Path string `yaml:"path,omitempty"`

	// Content is the expected content of Path (final_output).
	Content string `yaml:"content,omitempty"`

	// Absent requires Path not to exist (final_output).
	Absent bool `yaml:"absent,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalOutput   = "final_output"
)

var eventKinds = []string{
	EventCompilationStarted,
	EventCompilationEnded,
	EventCompilationFailed,
	EventCachedContentUsed,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(file string) (*Scenario, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and well-formed.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(s.Rules) == "" {
		return fmt.Errorf("rules are required")
	}
	if len(s.Runs) == 0 {
		return fmt.Errorf("at least one run is required")
	}
	for name := range s.Files {
		if err := validateSitePath(name); err != nil {
			return fmt.Errorf("files: %w", err)
		}
	}
	for i, r := range s.Runs {
		for name := range r.Write {
			if err := validateSitePath(name); err != nil {
				return fmt.Errorf("runs[%d].write: %w", i, err)
			}
		}
		for _, name := range r.Remove {
			if err := validateSitePath(name); err != nil {
				return fmt.Errorf("runs[%d].remove: %w", i, err)
			}
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, i); err != nil {
			return err
		}
	}
	return nil
}

func validateSitePath(name string) error {
	if name == "" || path.IsAbs(name) || strings.HasPrefix(path.Clean(name), "..") {
		return fmt.Errorf("path %q must be relative to the site root", name)
	}
	return nil
}

// validateAssertion checks assertion-specific required fields.
func validateAssertion(a Assertion, index int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if !validKind(a.Kind) {
			return fmt.Errorf("assertions[%d]: unknown event kind %q for trace_contains", index, a.Kind)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if !validKind(a.Kind) {
			return fmt.Errorf("assertions[%d]: unknown event kind %q for trace_count", index, a.Kind)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalOutput:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for final_output", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func validKind(kind string) bool {
	for _, k := range eventKinds {
		if k == kind {
			return true
		}
	}
	return false
}
