// Package datasource loads items, layouts and code snippets from a
// filesystem into a site.
//
// Layout on disk:
//
//	content/about.md         item /about.md
//	content/about.md.yaml    attributes of /about.md (sidecar)
//	content/meta.yaml        item /meta with empty content
//	layouts/default.html     layout /default.html
//	lib/nav.tmpl             code snippet lib/nav.tmpl
//
// Text files may instead start with a YAML front matter block delimited by
// "---" lines. Editor leftovers (~, .orig, .rej, .bak) are ignored.
package datasource

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"
	"unicode/utf8"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"gopkg.in/yaml.v3"

	"github.com/roach88/quire/internal/ir"
)

// DefaultTextExtensions are the extensions loaded as text.
var DefaultTextExtensions = []string{
	"coffee", "css", "erb", "haml", "handlebars", "hb", "htm", "html", "js",
	"less", "markdown", "md", "ms", "mustache", "php", "rb", "rdoc", "sass",
	"scss", "slim", "tex", "tmpl", "txt", "xhtml", "xml",
}

var strayExtensions = []string{"~", ".orig", ".rej", ".bak"}

const metaExtension = ".yaml"

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Config locates site sources on the filesystem.
type Config struct {
	ContentDir     string
	LayoutsDir     string
	LibDir         string
	TextExtensions []string
	// Encoding names the source encoding (WHATWG label). Empty means UTF-8.
	Encoding string
}

// EmbeddedMetadataParseError means a front matter block was opened but
// never closed.
type EmbeddedMetadataParseError struct {
	Filename string
}

func (e *EmbeddedMetadataParseError) Error() string {
	return fmt.Sprintf("%s: front matter is not closed by a --- line", e.Filename)
}

// CannotParseYAMLError means metadata was not valid YAML.
type CannotParseYAMLError struct {
	Filename string
	Err      error
}

func (e *CannotParseYAMLError) Error() string {
	return fmt.Sprintf("%s: cannot parse YAML metadata: %v", e.Filename, e.Err)
}

func (e *CannotParseYAMLError) Unwrap() error { return e.Err }

// InvalidEncodingError means a text file did not decode.
type InvalidEncodingError struct {
	Filename string
	Encoding string
}

func (e *InvalidEncodingError) Error() string {
	return fmt.Sprintf("%s: invalid byte sequence in %s", e.Filename, e.Encoding)
}

// Source reads a site from a filesystem.
type Source struct {
	fs      billy.Filesystem
	cfg     Config
	decoder *encoding.Decoder
}

// New creates a source. An unknown encoding name is an error.
func New(fs billy.Filesystem, cfg Config) (*Source, error) {
	if cfg.TextExtensions == nil {
		cfg.TextExtensions = DefaultTextExtensions
	}
	s := &Source{fs: fs, cfg: cfg}
	if name := strings.ToLower(cfg.Encoding); name != "" && name != "utf-8" && name != "utf8" {
		enc, err := htmlindex.Get(cfg.Encoding)
		if err != nil {
			return nil, fmt.Errorf("unknown encoding %q: %w", cfg.Encoding, err)
		}
		s.decoder = enc.NewDecoder()
	}
	return s, nil
}

// Load adds every item, layout and code snippet to site.
func (s *Source) Load(site *ir.Site) error {
	items, err := s.entities(s.cfg.ContentDir)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	for _, e := range items {
		if err := site.AddItem(ir.NewItem(e.id, e.content, e.attrs)); err != nil {
			return fmt.Errorf("load items: %w", err)
		}
	}

	layouts, err := s.entities(s.cfg.LayoutsDir)
	if err != nil {
		return fmt.Errorf("load layouts: %w", err)
	}
	for _, e := range layouts {
		if err := site.AddLayout(ir.NewLayout(e.id, e.content, e.attrs)); err != nil {
			return fmt.Errorf("load layouts: %w", err)
		}
	}

	if s.cfg.LibDir != "" {
		files, err := s.files(s.cfg.LibDir)
		if err != nil {
			return fmt.Errorf("load code snippets: %w", err)
		}
		for _, rel := range files {
			name := path.Join(s.cfg.LibDir, rel)
			data, err := s.read(name)
			if err != nil {
				return fmt.Errorf("load code snippets: %w", err)
			}
			if err := site.AddCodeSnippet(&ir.CodeSnippet{Name: name, Data: data}); err != nil {
				return fmt.Errorf("load code snippets: %w", err)
			}
		}
	}
	return nil
}

type entity struct {
	id      ir.Identifier
	content ir.Content
	attrs   ir.IRObject
}

// entities groups the files under dir into content files and their
// sidecar metadata.
func (s *Source) entities(dir string) ([]entity, error) {
	if dir == "" {
		return nil, nil
	}
	files, err := s.files(dir)
	if err != nil {
		return nil, err
	}

	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f] = true
	}

	var out []entity
	for _, rel := range baseFilenames(files) {
		full := path.Join(dir, rel)
		content := ir.TextContent("", "")
		attrs := ir.IRObject{}

		if present[rel] {
			if s.isBinary(rel) {
				data, err := util.ReadFile(s.fs, full)
				if err != nil {
					return nil, err
				}
				content = ir.BinaryContent(data, full)
			} else {
				text, err := s.read(full)
				if err != nil {
					return nil, err
				}
				body, embedded, err := parseFrontMatter(full, text)
				if err != nil {
					return nil, err
				}
				content = ir.TextContent(body, full)
				attrs = embedded
			}
		}

		if present[rel+metaExtension] {
			text, err := s.read(full + metaExtension)
			if err != nil {
				return nil, err
			}
			sidecar, err := parseYAML(full+metaExtension, text)
			if err != nil {
				return nil, err
			}
			attrs = attrs.Merge(sidecar)
		}

		id, err := ir.ParseIdentifier("/" + rel)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", full, err)
		}
		out = append(out, entity{id: id, content: content, attrs: attrs})
	}
	return out, nil
}

// files lists regular files under dir relative to it, sorted. A missing
// directory has no files.
func (s *Source) files(dir string) ([]string, error) {
	if _, err := s.fs.Stat(dir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	err := util.Walk(s.fs, dir, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, dir), "/")
		if isStray(rel) {
			return nil
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(out)
	return out, nil
}

// baseFilenames returns one name per entity: content files as is, and
// metadata files without a content sibling minus their .yaml extension.
func baseFilenames(files []string) []string {
	present := make(map[string]bool, len(files))
	for _, f := range files {
		present[f] = true
	}
	var out []string
	for _, f := range files {
		if base, ok := strings.CutSuffix(f, metaExtension); ok {
			if !present[base] {
				out = append(out, base)
			}
			continue
		}
		out = append(out, f)
	}
	slices.Sort(out)
	return out
}

func isStray(name string) bool {
	for _, ext := range strayExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func (s *Source) isBinary(name string) bool {
	ext := strings.TrimPrefix(path.Ext(name), ".")
	return !slices.Contains(s.cfg.TextExtensions, ext)
}

// read loads a text file, strips a UTF-8 BOM and decodes the configured
// encoding.
func (s *Source) read(name string) (string, error) {
	data, err := util.ReadFile(s.fs, name)
	if err != nil {
		return "", err
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if s.decoder != nil {
		decoded, err := s.decoder.Bytes(data)
		if err != nil {
			return "", &InvalidEncodingError{Filename: name, Encoding: s.cfg.Encoding}
		}
		return string(decoded), nil
	}
	if !utf8.Valid(data) {
		return "", &InvalidEncodingError{Filename: name, Encoding: "UTF-8"}
	}
	return string(data), nil
}

// parseFrontMatter splits an embedded metadata block from text. Only a
// first line that is exactly "---" opens a block, so diffs and horizontal
// rules pass through untouched.
func parseFrontMatter(filename, text string) (string, ir.IRObject, error) {
	lines := strings.SplitAfter(text, "\n")
	if len(lines) == 0 || strings.TrimRight(lines[0], " \t\r\n") != "---" {
		return text, ir.IRObject{}, nil
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \t\r\n") != "---" {
			continue
		}
		meta := strings.Join(lines[1:i], "")
		attrs, err := parseYAML(filename, meta)
		if err != nil {
			return "", nil, err
		}
		body := strings.TrimSpace(strings.Join(lines[i+1:], ""))
		return body, attrs, nil
	}
	return "", nil, &EmbeddedMetadataParseError{Filename: filename}
}

func parseYAML(filename, text string) (ir.IRObject, error) {
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(text), &raw); err != nil {
		return nil, &CannotParseYAMLError{Filename: filename, Err: err}
	}
	attrs, err := ir.ObjectFromAny(dropNulls(raw))
	if err != nil {
		return nil, &CannotParseYAMLError{Filename: filename, Err: err}
	}
	return attrs, nil
}

// dropNulls removes keys whose value is null, at any depth. Attributes
// have no null.
func dropNulls(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case nil:
			continue
		case map[string]any:
			out[k] = dropNulls(val)
		default:
			out[k] = v
		}
	}
	return out
}
