package ir

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar"
)

// ErrIdentifierEndsWithSlash is returned for identifiers such as "/" or "/foo/".
var ErrIdentifierEndsWithSlash = errors.New("identifier cannot end with a slash")

// Identifier names an item or layout, e.g. "/blog/post.md". The leading slash
// is optional on input and always present on output.
type Identifier struct {
	components []string
}

// ParseIdentifier builds an identifier from a string.
func ParseIdentifier(s string) (Identifier, error) {
	if s == "" {
		return Identifier{}, nil
	}
	if strings.HasSuffix(s, "/") {
		return Identifier{}, fmt.Errorf("%q: %w", s, ErrIdentifierEndsWithSlash)
	}
	trimmed := strings.TrimPrefix(s, "/")
	return Identifier{components: strings.Split(trimmed, "/")}, nil
}

// MustParseIdentifier is like ParseIdentifier but panics on error.
// Use only in tests or on literals.
func MustParseIdentifier(s string) Identifier {
	id, err := ParseIdentifier(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Components returns the slash-separated parts without the leading slash.
func (id Identifier) Components() []string {
	return append([]string(nil), id.components...)
}

// String returns the identifier with a leading slash.
func (id Identifier) String() string {
	return "/" + strings.Join(id.components, "/")
}

// IsZero reports whether the identifier has no components.
func (id Identifier) IsZero() bool {
	return len(id.components) == 0
}

// Equal compares identifiers by value.
func (id Identifier) Equal(other Identifier) bool {
	return id.String() == other.String()
}

// Match reports whether the identifier matches a glob pattern.
// `*` and `?` never cross a slash, `**` does, and `[...]` classes are
// supported. Braces are taken literally. The pattern must be absolute.
func (id Identifier) Match(pattern string) bool {
	ok, err := doublestar.Match(escapeBraces(pattern), id.String())
	return err == nil && ok
}

func escapeBraces(pattern string) string {
	r := strings.NewReplacer("{", `\{`, "}", `\}`)
	return r.Replace(pattern)
}

// Parent returns the identifier without its last component, or false at the
// top level.
func (id Identifier) Parent() (Identifier, bool) {
	if len(id.components) <= 1 {
		return Identifier{}, false
	}
	return Identifier{components: append([]string(nil), id.components[:len(id.components)-1]...)}, true
}

func (id Identifier) last() string {
	if len(id.components) == 0 {
		return ""
	}
	return id.components[len(id.components)-1]
}

func (id Identifier) withLast(s string) Identifier {
	out := id.Components()
	if len(out) == 0 {
		return Identifier{components: []string{s}}
	}
	out[len(out)-1] = s
	return Identifier{components: out}
}

// Extension returns the extension of the last component without the dot,
// or "" when there is none.
func (id Identifier) Extension() string {
	ext := path.Ext(id.last())
	return strings.TrimPrefix(ext, ".")
}

// WithoutExt removes the extension of the last component.
func (id Identifier) WithoutExt() Identifier {
	last := id.last()
	return id.withLast(strings.TrimSuffix(last, path.Ext(last)))
}

// WithExt replaces (or adds) the extension of the last component.
func (id Identifier) WithExt(ext string) Identifier {
	base := id.WithoutExt()
	return base.withLast(base.last() + "." + ext)
}

// InDir turns "/foo.md" into "/foo/index.md".
func (id Identifier) InDir() Identifier {
	ext := id.Extension()
	dir := id.WithoutExt()
	index := "index"
	if ext != "" {
		index += "." + ext
	}
	return dir.AppendComponent(index)
}

// AppendComponent adds a path component.
func (id Identifier) AppendComponent(c string) Identifier {
	return Identifier{components: append(id.Components(), c)}
}

// Plus appends a raw string to the identifier's string form.
func (id Identifier) Plus(s string) string {
	return id.String() + s
}

// MarshalText implements encoding.TextMarshaler.
func (id Identifier) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *Identifier) UnmarshalText(data []byte) error {
	parsed, err := ParseIdentifier(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
