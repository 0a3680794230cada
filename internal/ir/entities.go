package ir

import "fmt"

// Content is the payload of an item, layout or snapshot. Text content keeps
// its string; binary content keeps raw bytes. Filename is the source path
// when known and is informational only.
type Content struct {
	Text     string
	Data     []byte
	Binary   bool
	Filename string
}

// TextContent builds text content.
func TextContent(s, filename string) Content {
	return Content{Text: s, Filename: filename}
}

// BinaryContent builds binary content.
func BinaryContent(data []byte, filename string) Content {
	return Content{Data: append([]byte(nil), data...), Binary: true, Filename: filename}
}

// Bytes returns the content as bytes regardless of kind.
func (c Content) Bytes() []byte {
	if c.Binary {
		return c.Data
	}
	return []byte(c.Text)
}

// String returns text content, or a short description for binary content.
func (c Content) String() string {
	if c.Binary {
		return fmt.Sprintf("<binary %d bytes>", len(c.Data))
	}
	return c.Text
}

func (c Content) clone() Content {
	if c.Binary {
		c.Data = append([]byte(nil), c.Data...)
	}
	return c
}

// Item is a unit of source content.
type Item struct {
	Identifier Identifier
	Content    Content
	Attributes IRObject
}

// NewItem builds an item. A nil attribute map becomes empty.
func NewItem(id Identifier, content Content, attrs IRObject) *Item {
	if attrs == nil {
		attrs = IRObject{}
	}
	return &Item{Identifier: id, Content: content, Attributes: attrs}
}

// Reference uniquely identifies the item among all site entities.
func (i *Item) Reference() string {
	return "item:" + i.Identifier.String()
}

// Attr returns an attribute value.
func (i *Item) Attr(key string) (IRValue, bool) {
	v, ok := i.Attributes[key]
	return v, ok
}

// Layout is a template that representations can be laid out with.
type Layout struct {
	Identifier Identifier
	Content    Content
	Attributes IRObject
}

// NewLayout builds a layout. A nil attribute map becomes empty.
func NewLayout(id Identifier, content Content, attrs IRObject) *Layout {
	if attrs == nil {
		attrs = IRObject{}
	}
	return &Layout{Identifier: id, Content: content, Attributes: attrs}
}

// Reference uniquely identifies the layout among all site entities.
func (l *Layout) Reference() string {
	return "layout:" + l.Identifier.String()
}

// CodeSnippet is site-level code or helper data. Any change to a snippet
// makes every representation outdated.
type CodeSnippet struct {
	Name string
	Data string
}

// Reference uniquely identifies the snippet.
func (cs *CodeSnippet) Reference() string {
	return "code:" + cs.Name
}

// ConfigReference is the reference of the site configuration.
const ConfigReference = "config"

// RulesReference is the reference of the rule table.
const RulesReference = "rules"
