package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAnalyzeShadowing tests detection of rules an earlier rule always wins
// over.
func TestAnalyzeShadowing(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want [][2]string // rule, shadowed by
	}{
		{
			name: "no duplicates",
			src:  sampleRules,
			want: nil,
		},
		{
			name: "same pattern and rep",
			src: `compile: [
				{pattern: "/a.md", steps: []},
				{pattern: "/b.md", steps: []},
				{pattern: "/a.md", steps: [{filter: "trim"}]},
			]`,
			want: [][2]string{{"compile[2]", "compile[0]"}},
		},
		{
			name: "relative pattern normalizes",
			src: `compile: [
				{pattern: "*.md", steps: []},
				{pattern: "/*.md", rep: "default", steps: []},
			]`,
			want: [][2]string{{"compile[1]", "compile[0]"}},
		},
		{
			name: "different rep is not shadowed",
			src: `compile: [
				{pattern: "/a.md", steps: []},
				{pattern: "/a.md", rep: "feed", steps: []},
			]`,
			want: nil,
		},
		{
			name: "layout rules",
			src: `layout: [
				{pattern: "/x.*", filter: "template"},
				{pattern: "x.*", filter: "identity"},
				{pattern: "/x.*", filter: "trim"},
			]`,
			want: [][2]string{{"layout[1]", "layout[0]"}, {"layout[2]", "layout[0]"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Parse("rules.cue", []byte(tt.src))
			require.NoError(t, err)

			warnings := AnalyzeShadowing(f)
			require.NotNil(t, warnings)

			var got [][2]string
			for _, w := range warnings {
				assert.Equal(t, "warning", w.Level)
				assert.Greater(t, w.Line, 0)
				got = append(got, [2]string{w.Rule, w.ShadowedBy})
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestLoadReportsShadowing tests that Load keeps shadowed rules and reports
// them as warnings.
func TestLoadReportsShadowing(t *testing.T) {
	src := `compile: [{pattern: "/a.md", steps: []}, {pattern: "/a.md", steps: []}]`
	rs, err := Load("rules.cue", []byte(src), knownFilters)
	require.NoError(t, err)
	assert.Len(t, rs.Table.Rules(), 2)
	require.Len(t, rs.Warnings, 1)
	assert.Contains(t, rs.Warnings[0].Message, "/a.md")
}
