package pipeline

import (
	"github.com/roach88/quire/internal/ir"
	"github.com/roach88/quire/internal/notify"
	"github.com/roach88/quire/internal/rules"
)

// ItemView gives pipeline and filter code access to one item. Every read
// is bracketed by visit events so the dependency tracker can see it, and
// reading output of an uncompiled representation fails with
// UnmetDependencyError.
type ItemView struct {
	item   *ir.Item
	reps   *RepStore
	poster notify.Poster
}

var _ rules.ItemView = (*ItemView)(nil)

// NewItemView creates a view.
func NewItemView(item *ir.Item, reps *RepStore, poster notify.Poster) *ItemView {
	return &ItemView{item: item, reps: reps, poster: poster}
}

func (v *ItemView) visit() func() {
	v.poster.Post(notify.VisitStarted, v.item, nil)
	return func() { v.poster.Post(notify.VisitEnded, v.item, nil) }
}

// Identifier returns the item's identifier. Not tracked.
func (v *ItemView) Identifier() ir.Identifier {
	return v.item.Identifier
}

// Attr returns a copy of an attribute.
func (v *ItemView) Attr(key string) (ir.IRValue, bool) {
	defer v.visit()()
	val, ok := v.item.Attributes[key]
	if !ok {
		return nil, false
	}
	return ir.Clone(val), true
}

func (v *ItemView) compiledRep(name string) (*ItemRep, error) {
	rep, err := v.reps.Named(v.item, name)
	if err != nil {
		return nil, err
	}
	if !rep.Compiled {
		return nil, &UnmetDependencyError{Rep: rep}
	}
	return rep, nil
}

// CompiledContent returns a representation's text at a snapshot.
func (v *ItemView) CompiledContent(rep, snapshot string) (string, error) {
	defer v.visit()()
	r, err := v.compiledRep(rep)
	if err != nil {
		return "", err
	}
	c, err := r.CompiledContent(snapshot)
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

// Path returns the first write target of a representation, or "" when it
// writes nothing.
func (v *ItemView) Path(rep string) (string, error) {
	defer v.visit()()
	r, err := v.compiledRep(rep)
	if err != nil {
		return "", err
	}
	if paths := r.Paths(); len(paths) > 0 {
		return paths[0], nil
	}
	return "", nil
}

// ItemCollection is the dependency-signaling ItemSource of a run.
type ItemCollection struct {
	site   *ir.Site
	reps   *RepStore
	poster notify.Poster
}

var _ rules.ItemSource = (*ItemCollection)(nil)

// NewItemCollection creates an item source over a site.
func NewItemCollection(site *ir.Site, reps *RepStore, poster notify.Poster) *ItemCollection {
	return &ItemCollection{site: site, reps: reps, poster: poster}
}

// Find looks an item up by identifier.
func (c *ItemCollection) Find(identifier string) (rules.ItemView, bool) {
	id, err := ir.ParseIdentifier(identifier)
	if err != nil {
		return nil, false
	}
	item := c.site.Item(id)
	if item == nil {
		return nil, false
	}
	return NewItemView(item, c.reps, c.poster), true
}

// Matching returns views of all items matching pattern.
func (c *ItemCollection) Matching(pattern string) []rules.ItemView {
	var out []rules.ItemView
	for _, item := range c.site.ItemsMatching(pattern) {
		out = append(out, NewItemView(item, c.reps, c.poster))
	}
	return out
}

// inertItems is the ItemSource handed to pipelines while recording: lookups
// work, reads return empty values and never signal dependencies.
type inertItems struct {
	site *ir.Site
}

func (c inertItems) Find(identifier string) (rules.ItemView, bool) {
	id, err := ir.ParseIdentifier(identifier)
	if err != nil {
		return nil, false
	}
	item := c.site.Item(id)
	if item == nil {
		return nil, false
	}
	return inertView{item: item}, true
}

func (c inertItems) Matching(pattern string) []rules.ItemView {
	var out []rules.ItemView
	for _, item := range c.site.ItemsMatching(pattern) {
		out = append(out, inertView{item: item})
	}
	return out
}

type inertView struct {
	item *ir.Item
}

func (v inertView) Identifier() ir.Identifier { return v.item.Identifier }

func (v inertView) Attr(key string) (ir.IRValue, bool) {
	val, ok := v.item.Attributes[key]
	if !ok {
		return nil, false
	}
	return ir.Clone(val), true
}

func (v inertView) CompiledContent(string, string) (string, error) { return "", nil }

func (v inertView) Path(string) (string, error) { return "", nil }
