package ir

import (
	"errors"
	"fmt"
)

// ErrFrozen is returned by every Site mutator once the site is frozen.
var ErrFrozen = errors.New("site is frozen")

// Site is the snapshot of everything a compilation run reads: items,
// layouts, code snippets and configuration.
//
// A site is mutable while data sources load it and the preprocessor runs.
// Freeze makes it deep-immutable for the rest of the run.
type Site struct {
	config   IRObject
	items    []*Item
	layouts  []*Layout
	snippets []*CodeSnippet
	frozen   bool
}

// NewSite builds an unfrozen site.
func NewSite(config IRObject) *Site {
	if config == nil {
		config = IRObject{}
	}
	return &Site{config: config}
}

// Config returns the site configuration.
func (s *Site) Config() IRObject { return s.config }

// Items returns the items in load order.
func (s *Site) Items() []*Item { return s.items }

// Layouts returns the layouts in load order.
func (s *Site) Layouts() []*Layout { return s.layouts }

// CodeSnippets returns the code snippets in load order.
func (s *Site) CodeSnippets() []*CodeSnippet { return s.snippets }

// Frozen reports whether Freeze was called.
func (s *Site) Frozen() bool { return s.frozen }

// AddItem appends an item. Identifiers must be unique.
func (s *Site) AddItem(item *Item) error {
	if s.frozen {
		return ErrFrozen
	}
	if s.Item(item.Identifier) != nil {
		return fmt.Errorf("duplicate item %s", item.Identifier)
	}
	s.items = append(s.items, item)
	return nil
}

// AddLayout appends a layout. Identifiers must be unique.
func (s *Site) AddLayout(layout *Layout) error {
	if s.frozen {
		return ErrFrozen
	}
	if s.Layout(layout.Identifier) != nil {
		return fmt.Errorf("duplicate layout %s", layout.Identifier)
	}
	s.layouts = append(s.layouts, layout)
	return nil
}

// AddCodeSnippet appends a code snippet.
func (s *Site) AddCodeSnippet(cs *CodeSnippet) error {
	if s.frozen {
		return ErrFrozen
	}
	s.snippets = append(s.snippets, cs)
	return nil
}

// SetAttribute sets an item attribute. Used by preprocessors.
func (s *Site) SetAttribute(item *Item, key string, value IRValue) error {
	if s.frozen {
		return ErrFrozen
	}
	item.Attributes[key] = value
	return nil
}

// SetConfig sets a top-level configuration key.
func (s *Site) SetConfig(key string, value IRValue) error {
	if s.frozen {
		return ErrFrozen
	}
	s.config[key] = value
	return nil
}

// Item finds an item by identifier.
func (s *Site) Item(id Identifier) *Item {
	for _, item := range s.items {
		if item.Identifier.Equal(id) {
			return item
		}
	}
	return nil
}

// Layout finds a layout by identifier.
func (s *Site) Layout(id Identifier) *Layout {
	for _, layout := range s.layouts {
		if layout.Identifier.Equal(id) {
			return layout
		}
	}
	return nil
}

// ItemsMatching returns items whose identifier matches pattern.
func (s *Site) ItemsMatching(pattern string) []*Item {
	var out []*Item
	for _, item := range s.items {
		if item.Identifier.Match(pattern) {
			out = append(out, item)
		}
	}
	return out
}

// LayoutsMatching returns layouts whose identifier matches pattern.
func (s *Site) LayoutsMatching(pattern string) []*Layout {
	var out []*Layout
	for _, layout := range s.layouts {
		if layout.Identifier.Match(pattern) {
			out = append(out, layout)
		}
	}
	return out
}

// Freeze detaches every attribute tree, content buffer and the config from
// references held outside the site, then rejects further mutation.
// Freezing twice is a no-op.
func (s *Site) Freeze() {
	if s.frozen {
		return
	}
	s.config = s.config.Clone()
	for i, item := range s.items {
		s.items[i] = &Item{
			Identifier: item.Identifier,
			Content:    item.Content.clone(),
			Attributes: item.Attributes.Clone(),
		}
	}
	for i, layout := range s.layouts {
		s.layouts[i] = &Layout{
			Identifier: layout.Identifier,
			Content:    layout.Content.clone(),
			Attributes: layout.Attributes.Clone(),
		}
	}
	for i, cs := range s.snippets {
		cp := *cs
		s.snippets[i] = &cp
	}
	s.frozen = true
}
