package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCheck_Outdatedness tests that check reports what the next compile
// would do without compiling.
func TestCheck_Outdatedness(t *testing.T) {
	dir := writeSite(t, map[string]string{
		"rules.cue":    simpleRules,
		"content/a.md": "A",
		"content/b.md": "B",
	})

	out, err := execute(t, "check", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Rules valid")
	assert.Contains(t, out, "  outdated   rep:/a.md:default (not compiled before)")
	assert.Contains(t, out, "2 of 2 representation(s) outdated")

	_, err = execute(t, "compile", dir)
	require.NoError(t, err)

	out, err = execute(t, "check", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "0 of 2 representation(s) outdated")

	writeFiles(t, dir, map[string]string{"content/b.md": "B2"})
	out, err = execute(t, "check", dir, "--verbose")
	require.NoError(t, err)
	assert.Contains(t, out, "  up to date rep:/a.md:default")
	assert.Contains(t, out, "  outdated   rep:/b.md:default (content or attributes changed)")
	assert.Contains(t, out, "1 of 2 representation(s) outdated")
}

func TestCheck_JSON(t *testing.T) {
	dir := writeSite(t, map[string]string{
		"rules.cue":    simpleRules,
		"content/a.md": "A",
	})

	out, err := execute(t, "check", dir, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, []RepStatus{{Rep: "rep:/a.md:default", Outdated: true, Reason: "not compiled before"}}, resp.Data.Reps)
}

const shadowedRules = `compile: [
	{pattern: "/*.md", steps: [{write: {ext: "html"}}]},
	{pattern: "/*.md", steps: [{write: {ext: "txt"}}]},
]
`

func TestCheck_Shadowed(t *testing.T) {
	dir := writeSite(t, map[string]string{"rules.cue": shadowedRules})

	out, err := execute(t, "check", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "warning: compile[1]:")
	assert.Contains(t, out, "✓ Rules valid")

	out, err = execute(t, "check", dir, "--strict")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Shadowed rules")
}

// TestCheck_ValidationErrors tests that every invalid rule is listed and
// fails with exit code 1.
func TestCheck_ValidationErrors(t *testing.T) {
	dir := writeSite(t, map[string]string{
		"rules.cue": `compile: [
	{pattern: "/*.md", steps: [{filter: "sass"}]},
	{pattern: "/{a,b}", steps: [{snapshot: "raw"}]},
]
`,
	})

	out, err := execute(t, "check", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, `E112: compile[0].steps[0].filter: unknown filter "sass"`)
	assert.Contains(t, out, "E102: compile[1].pattern:")
	assert.Contains(t, out, "E115: compile[1].steps[0].snapshot:")

	out, err = execute(t, "check", dir, "--format", "json")
	require.Error(t, err)
	var resp struct {
		Status string      `json:"status"`
		Data   CheckResult `json:"data"`
		Error  *CLIError   `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	assert.Len(t, resp.Data.Errors, 3)
	assert.Equal(t, "E112", resp.Error.Code)
}

func TestCheck_MissingRules(t *testing.T) {
	out, err := execute(t, "check", writeSite(t, map[string]string{"content/a.md": "A"}))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
}
