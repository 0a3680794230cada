package compiler

import (
	"fmt"

	"github.com/roach88/quire/internal/rules"
)

// ShadowWarning reports a rule that can never be selected.
//
// Shadowing is a warning, not an error: the file still compiles, and the
// shadowed rule is simply dead. Rules are selected in declaration order,
// so a later rule with the same pattern (and, for compilation rules, the
// same representation) never wins.
type ShadowWarning struct {
	Rule       string `json:"rule"`        // e.g. "compile[2]"
	ShadowedBy string `json:"shadowed_by"` // e.g. "compile[0]"
	Message    string `json:"message"`
	Line       int    `json:"line,omitempty"`
	Level      string `json:"level"` // "warning"
}

// AnalyzeShadowing finds compilation and layout rules that an earlier rule
// always takes precedence over.
//
// The algorithm:
//  1. Normalize every pattern the way the rule table does
//  2. Key compilation rules by (pattern, rep) and layout rules by pattern
//  3. Report each rule whose key was already taken
//
// A file without duplicates returns an empty warning list.
func AnalyzeShadowing(f *File) []ShadowWarning {
	warnings := []ShadowWarning{}

	seen := make(map[[2]string]int)
	for i, d := range f.Compile {
		rep := d.Rep
		if rep == "" {
			rep = rules.DefaultRep
		}
		key := [2]string{rules.NormalizePattern(d.Pattern), rep}
		if first, ok := seen[key]; ok {
			warnings = append(warnings, ShadowWarning{
				Rule:       fmt.Sprintf("compile[%d]", i),
				ShadowedBy: fmt.Sprintf("compile[%d]", first),
				Message:    fmt.Sprintf("rule for %s (rep %s) is shadowed by an earlier identical rule", key[0], rep),
				Line:       d.Pos.Line(),
				Level:      "warning",
			})
			continue
		}
		seen[key] = i
	}

	seenLayouts := make(map[string]int)
	for i, d := range f.Layout {
		pattern := rules.NormalizePattern(d.Pattern)
		if first, ok := seenLayouts[pattern]; ok {
			warnings = append(warnings, ShadowWarning{
				Rule:       fmt.Sprintf("layout[%d]", i),
				ShadowedBy: fmt.Sprintf("layout[%d]", first),
				Message:    fmt.Sprintf("layout rule for %s is shadowed by an earlier identical rule", pattern),
				Line:       d.Pos.Line(),
				Level:      "warning",
			})
			continue
		}
		seenLayouts[pattern] = i
	}

	return warnings
}
