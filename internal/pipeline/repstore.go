package pipeline

import (
	"github.com/roach88/quire/internal/ir"
	"github.com/roach88/quire/internal/rules"
)

// RepStore holds every representation of a run.
type RepStore struct {
	reps   []*ItemRep
	byItem map[string][]*ItemRep
}

// NewRepStore creates a store from existing representations.
func NewRepStore(reps ...*ItemRep) *RepStore {
	s := &RepStore{byItem: make(map[string][]*ItemRep)}
	for _, r := range reps {
		s.add(r)
	}
	return s
}

// BuildRepStore creates one representation per (item, rep name with an
// applicable rule), in item order then rule order.
func BuildRepStore(site *ir.Site, table *rules.Table) *RepStore {
	s := NewRepStore()
	for _, item := range site.Items() {
		for _, name := range table.RepNamesFor(item) {
			rep := NewItemRep(item, name)
			if rule, ok := table.CompilationRuleFor(item, name); ok {
				rep.DefaultSnapshot = rule.SnapshotName
			}
			s.add(rep)
		}
	}
	return s
}

func (s *RepStore) add(r *ItemRep) {
	s.reps = append(s.reps, r)
	ref := r.Item.Reference()
	s.byItem[ref] = append(s.byItem[ref], r)
}

// Reps returns all representations in creation order.
func (s *RepStore) Reps() []*ItemRep {
	return append([]*ItemRep(nil), s.reps...)
}

// ForItem returns the representations of an item.
func (s *RepStore) ForItem(item *ir.Item) []*ItemRep {
	return append([]*ItemRep(nil), s.byItem[item.Reference()]...)
}

// Named returns an item's representation by name. An empty name means
// rules.DefaultRep.
func (s *RepStore) Named(item *ir.Item, name string) (*ItemRep, error) {
	if name == "" {
		name = rules.DefaultRep
	}
	for _, r := range s.byItem[item.Reference()] {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, &NoSuchRepError{Item: item.Identifier.String(), Name: name}
}
