package completion

import (
	"github.com/bullno1/buxn-ls/internal/analysis"
	"github.com/bullno1/buxn-ls/internal/graph"
	"github.com/bullno1/buxn-ls/internal/position"
)

// Candidate is one definition that survived match-type filtering, tagged
// with whether it lives in a different source than the active one.
type Candidate struct {
	Symbol *graph.Symbol
	Remote bool
}

// Group collects candidates sharing a grouping key: scope for non-local
// matches, full name for local ones. Root is the candidate whose name
// equals Key, if one was found (spec.md §4.5: "Grouping").
type Group struct {
	Key     string
	Root    *Candidate
	Members []*Candidate
}

// GroupCandidates buckets candidates by scope (when group is true) or
// leaves every candidate in its own singleton group (when group is false).
// Order follows first-seen key, so result order mirrors the forward-visit
// traversal.
func GroupCandidates(candidates []Candidate, group bool) []Group {
	if !group {
		groups := make([]Group, 0, len(candidates))
		for i := range candidates {
			groups = append(groups, Group{Key: candidates[i].Symbol.Name, Members: []*Candidate{&candidates[i]}})
		}
		return groups
	}

	order := make([]string, 0)
	byKey := make(map[string]*Group)

	for i := range candidates {
		c := &candidates[i]
		key := analysis.ScopeOf(c.Symbol.Name)

		g, ok := byKey[key]
		if !ok {
			g = &Group{Key: key}
			byKey[key] = g
			order = append(order, key)
		}
		if c.Symbol.Name == key {
			g.Root = c
		}
		g.Members = append(g.Members, c)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		groups = append(groups, *byKey[key])
	}
	return groups
}

// Emit turns groups into the final item list, following spec.md §4.5's
// emission rules: singletons emit one symbol item; groups with a root
// label emit the root plus (when warranted) a companion module item;
// rootless groups emit only the module item.
func Emit(groups []Group, scope string, editRange position.Range) []Item {
	var items []Item

	for _, g := range groups {
		if len(g.Members) == 1 {
			items = append(items, symbolItem(g.Members[0], scope, editRange))
			continue
		}

		if g.Root != nil {
			items = append(items, symbolItem(g.Root, scope, editRange))
			if g.Root.Symbol.Semantics != graph.SemanticsEnum && g.Root.Symbol.Semantics != graph.SemanticsDevicePort {
				items = append(items, moduleItem(g, scope, editRange))
			}
			continue
		}

		items = append(items, moduleItem(g, scope, editRange))
	}

	return items
}

func symbolItem(c *Candidate, scope string, editRange position.Range) Item {
	return Item{
		Symbol:    c.Symbol,
		Remote:    c.Remote,
		Scope:     scope,
		EditRange: editRange,
	}
}

func moduleItem(g Group, scope string, editRange position.Range) Item {
	remote := false
	if g.Root != nil {
		remote = g.Root.Remote
	} else if len(g.Members) > 0 {
		remote = g.Members[0].Remote
	}
	return Item{
		Module:      true,
		ModuleKey:   g.Key,
		ModuleCount: len(g.Members),
		Remote:      remote,
		Scope:       scope,
		EditRange:   editRange,
	}
}
