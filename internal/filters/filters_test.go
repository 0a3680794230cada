package filters

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/quire/internal/ir"
	"github.com/roach88/quire/internal/rules"
)

type stubView struct {
	id      string
	attrs   ir.IRObject
	content string
	path    string
	err     error
}

func (v stubView) Identifier() ir.Identifier { return ir.MustParseIdentifier(v.id) }

func (v stubView) Attr(key string) (ir.IRValue, bool) {
	val, ok := v.attrs[key]
	return val, ok
}

func (v stubView) CompiledContent(string, string) (string, error) { return v.content, v.err }

func (v stubView) Path(string) (string, error) { return v.path, v.err }

type stubItems map[string]stubView

func (s stubItems) Find(id string) (rules.ItemView, bool) {
	v, ok := s[id]
	return v, ok
}

func (s stubItems) Matching(pattern string) []rules.ItemView {
	var out []rules.ItemView
	for _, id := range []string{"/a.md", "/b.md"} {
		if v, ok := s[id]; ok && v.Identifier().Match(pattern) {
			out = append(out, v)
		}
	}
	return out
}

func assignsFor(items stubItems) Assigns {
	self := items["/a.md"]
	return Assigns{
		Item:       self,
		Attributes: self.attrs,
		RepName:    "default",
		Items:      items,
		Config:     ir.IRObject{"base": ir.IRString("https://example.org")},
	}
}

func run(t *testing.T, name, input string, params ir.IRObject, assigns Assigns) (string, error) {
	t.Helper()
	f, ok := Default().Lookup(name)
	require.True(t, ok, "filter %s not registered", name)
	out, err := f.Run(ir.TextContent(input, "in.txt"), params, assigns)
	if err != nil {
		return "", err
	}
	assert.Equal(t, "in.txt", out.Filename)
	return out.Text, nil
}

// TestDefaultRegistry tests the built-in filter names.
func TestDefaultRegistry(t *testing.T) {
	assert.Equal(t, []string{"identity", "nfc", "template", "trim"}, Default().Names())

	r := NewRegistry()
	_, ok := r.Lookup("identity")
	assert.False(t, ok)
	r.Register("identity", Func(identity))
	_, ok = r.Lookup("identity")
	assert.True(t, ok)
}

// TestTextFilters tests the string-only filters.
func TestTextFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		input  string
		params ir.IRObject
		want   string
	}{
		{name: "identity", filter: "identity", input: " x ", want: " x "},
		{name: "trim whitespace", filter: "trim", input: "\n  x \t", want: "x"},
		{name: "trim cutset", filter: "trim", input: "--x--", params: ir.IRObject{"cutset": ir.IRString("-")}, want: "x"},
		{name: "nfc composes", filter: "nfc", input: "e\u0301", want: "\u00e9"},
		{name: "nfc keeps composed", filter: "nfc", input: "\u00e9", want: "\u00e9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := run(t, tt.filter, tt.input, tt.params, Assigns{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestTextFilterRejectsBinary tests that text filters refuse binary input.
func TestTextFilterRejectsBinary(t *testing.T) {
	f, _ := Default().Lookup("trim")
	_, err := f.Run(ir.BinaryContent([]byte{0xff}, "x.png"), nil, Assigns{})
	assert.ErrorContains(t, err, "binary")
}

// TestTemplate tests template data and functions.
func TestTemplate(t *testing.T) {
	items := stubItems{
		"/a.md": {id: "/a.md", attrs: ir.IRObject{"title": ir.IRString("Hello")}},
		"/b.md": {id: "/b.md", attrs: ir.IRObject{"n": ir.IRInt(3)}, content: "B!", path: "/b/index.html"},
	}

	tests := []struct {
		name   string
		input  string
		params ir.IRObject
		want   string
	}{
		{name: "item attribute", input: "{{.item.title}} {{.item.identifier}}", want: "Hello /a.md"},
		{name: "rep and config", input: "{{.rep}}@{{.config.base}}", want: "default@https://example.org"},
		{name: "params", input: "{{.params.x}}", params: ir.IRObject{"x": ir.IRInt(7)}, want: "7"},
		{name: "content", input: `{{content "/b.md"}}`, want: "B!"},
		{name: "snapshot", input: `{{snapshot "/b.md" "default" "pre"}}`, want: "B!"},
		{name: "path", input: `{{path "/b.md"}}`, want: "/b/index.html"},
		{name: "attr", input: `{{attr "/b.md" "n"}}`, want: "3"},
		{name: "attr missing", input: `[{{attr "/b.md" "zz"}}]`, want: "[]"},
		{name: "matching", input: `{{range matching "*.md"}}{{.}};{{end}}`, want: "/a.md;/b.md;"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := run(t, "template", tt.input, tt.params, assignsFor(items))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestTemplateLayout tests that a layout sees the representation content.
func TestTemplateLayout(t *testing.T) {
	items := stubItems{"/a.md": {id: "/a.md", attrs: ir.IRObject{}}}
	assigns := assignsFor(items)
	assigns.Layout = ir.NewLayout(ir.MustParseIdentifier("/page.html"), ir.TextContent("", ""), nil)
	assigns.Content = ir.TextContent("body", "")

	got, err := run(t, "template", "<main>{{.content}}</main>", nil, assigns)
	require.NoError(t, err)
	assert.Equal(t, "<main>body</main>", got)
}

// TestTemplateErrors tests template failure modes.
func TestTemplateErrors(t *testing.T) {
	sentinel := errors.New("not yet")
	items := stubItems{
		"/a.md": {id: "/a.md", attrs: ir.IRObject{}},
		"/b.md": {id: "/b.md", err: sentinel},
	}

	_, err := run(t, "template", "{{", nil, assignsFor(items))
	assert.ErrorContains(t, err, "parse template")

	_, err = run(t, "template", `{{content "/nope"}}`, nil, assignsFor(items))
	assert.ErrorContains(t, err, "no item with identifier /nope")

	_, err = run(t, "template", `{{content "/b.md"}}`, nil, assignsFor(items))
	assert.ErrorIs(t, err, sentinel)

	_, err = run(t, "template", "{{.item.missing}}", ir.IRObject{"missing": ir.IRString("error")}, assignsFor(items))
	assert.ErrorContains(t, err, "render template")
}

// TestTemplateSnippets tests that code snippets are callable as named
// templates.
func TestTemplateSnippets(t *testing.T) {
	items := stubItems{"/a.md": {id: "/a.md", attrs: ir.IRObject{"title": ir.IRString("T")}}}
	assigns := assignsFor(items)
	assigns.Snippets = []*ir.CodeSnippet{{Name: "lib/title.tmpl", Data: "<h1>{{.item.title}}</h1>"}}

	got, err := run(t, "template", `{{template "lib/title.tmpl" .}}body`, nil, assigns)
	require.NoError(t, err)
	assert.Equal(t, "<h1>T</h1>body", got)

	assigns.Snippets = []*ir.CodeSnippet{{Name: "lib/bad.tmpl", Data: "{{"}}
	_, err = run(t, "template", "x", nil, assigns)
	assert.ErrorContains(t, err, "parse snippet lib/bad.tmpl")
}
