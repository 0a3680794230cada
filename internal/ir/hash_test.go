package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksumDeterminism(t *testing.T) {
	v := IRObject{"title": IRString("Hello"), "n": IRInt(2)}

	a, err := Checksum(DomainConfig, v)
	require.NoError(t, err)
	b, err := Checksum(DomainConfig, v)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64, "SHA-256 hex is 64 characters")
}

func TestChecksumDomainSeparation(t *testing.T) {
	v := IRObject{"a": IRInt(1)}

	cfg, err := Checksum(DomainConfig, v)
	require.NoError(t, err)
	plan, err := Checksum(DomainPlan, v)
	require.NoError(t, err)

	assert.NotEqual(t, cfg, plan)
}

func TestItemChecksumChangesWithContentAndAttributes(t *testing.T) {
	id := MustParseIdentifier("/a.md")
	base := NewItem(id, TextContent("hello", ""), IRObject{"title": IRString("A")})
	otherContent := NewItem(id, TextContent("hello!", ""), IRObject{"title": IRString("A")})
	otherAttrs := NewItem(id, TextContent("hello", ""), IRObject{"title": IRString("B")})

	sum := func(i *Item) string {
		s, err := ItemChecksum(i)
		require.NoError(t, err)
		return s
	}

	assert.NotEqual(t, sum(base), sum(otherContent))
	assert.NotEqual(t, sum(base), sum(otherAttrs))
	assert.Equal(t, sum(base), sum(NewItem(id, TextContent("hello", "elsewhere.md"), IRObject{"title": IRString("A")})),
		"the source filename does not affect the checksum")
}

func TestBinaryAndTextContentDiffer(t *testing.T) {
	id := MustParseIdentifier("/a.bin")
	text := NewItem(id, TextContent("abc", ""), nil)
	bin := NewItem(id, BinaryContent([]byte("abc"), ""), nil)

	a, err := ItemChecksum(text)
	require.NoError(t, err)
	b, err := ItemChecksum(bin)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestPlanDigestFollowsActions(t *testing.T) {
	p1 := NewPlan("rep:/a.md:default")
	p1.AddFilter("identity", IRObject{})
	p2 := NewPlan("rep:/a.md:default")
	p2.AddFilter("identity", IRObject{})
	p3 := NewPlan("rep:/a.md:default")
	p3.AddFilter("template", IRObject{})

	d1, err := PlanDigest(p1)
	require.NoError(t, err)
	d2, err := PlanDigest(p2)
	require.NoError(t, err)
	d3, err := PlanDigest(p3)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.NotEqual(t, d1, d3)
}

func TestRulesAndCodeChecksums(t *testing.T) {
	assert.Equal(t, RulesChecksum([]byte("compile: []")), RulesChecksum([]byte("compile: []")))
	assert.NotEqual(t, RulesChecksum([]byte("a")), RulesChecksum([]byte("b")))

	cs := &CodeSnippet{Name: "helpers.tmpl", Data: "{{define \"x\"}}{{end}}"}
	assert.Len(t, CodeSnippetChecksum(cs), 64)
}
