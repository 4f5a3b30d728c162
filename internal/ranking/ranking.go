// Package ranking builds the ranked module dependency view behind `deps`.
package ranking

import (
	"sort"

	"github.com/phobologic/surc/internal/graph"
	"github.com/phobologic/surc/internal/model"
	"github.com/phobologic/surc/internal/project"
)

// Module is one declared module with its PageRank score.
type Module struct {
	ID      string  `json:"id"`
	Package string  `json:"package,omitempty"` // "" when the owning unit has no package
	Rank    float64 `json:"rank"`
}

// Edge is a normalized require from one module to another.
type Edge struct {
	From        string `json:"from"`
	FromPackage string `json:"from_package,omitempty"`
	To          string `json:"to"`
	ToPackage   string `json:"to_package,omitempty"`
}

// CrossPackage reports whether both ends are in known, different packages.
func (e Edge) CrossPackage() bool {
	return e.FromPackage != "" && e.ToPackage != "" && e.FromPackage != e.ToPackage
}

// ModuleMap is the module dependency view of a project.
type ModuleMap struct {
	Modules []Module // rank descending, ties by id
	Edges   []Edge   // by (From, To)
}

// Build ranks every module declared by units. packages maps module ids to
// their owning package. Depended-upon modules rank higher.
func Build(units []*model.Unit, packages map[string]string) *ModuleMap {
	g := project.Graph(units)
	ranks := graph.Rank(g)

	mm := &ModuleMap{}
	for id := range project.Modules(units) {
		mm.Modules = append(mm.Modules, Module{ID: id, Package: packages[id], Rank: ranks[id]})
	}
	sort.Slice(mm.Modules, func(i, j int) bool {
		a, b := mm.Modules[i], mm.Modules[j]
		if a.Rank != b.Rank {
			return a.Rank > b.Rank
		}
		return a.ID < b.ID
	})

	for _, r := range project.Requires(units) {
		mm.Edges = append(mm.Edges, Edge{
			From:        r.From,
			FromPackage: packages[r.From],
			To:          r.To,
			ToPackage:   packages[r.To],
		})
	}
	sortEdges(mm.Edges)
	return mm
}

// SelectModules returns a new ModuleMap with only the top-ranked modules and
// the edges between them. If maxModules is <= 0 or >= len(modules), mm is
// returned as is.
func SelectModules(mm *ModuleMap, maxModules int) *ModuleMap {
	if maxModules <= 0 || maxModules >= len(mm.Modules) {
		return mm
	}
	selected := mm.Modules[:maxModules]
	keep := make(map[string]struct{}, maxModules)
	for _, m := range selected {
		keep[m.ID] = struct{}{}
	}

	var edges []Edge
	for _, e := range mm.Edges {
		_, fromOK := keep[e.From]
		_, toOK := keep[e.To]
		if fromOK && toOK {
			edges = append(edges, e)
		}
	}
	return &ModuleMap{Modules: selected, Edges: edges}
}

// FilterByPackage returns the modules owned by pkg and the edges leaving
// them, including edges into other packages.
func FilterByPackage(mm *ModuleMap, pkg string) *ModuleMap {
	out := &ModuleMap{}
	for _, m := range mm.Modules {
		if m.Package == pkg {
			out.Modules = append(out.Modules, m)
		}
	}
	for _, e := range mm.Edges {
		if e.FromPackage == pkg {
			out.Edges = append(out.Edges, e)
		}
	}
	return out
}

// Module returns the module with the given id.
func (mm *ModuleMap) Module(id string) (Module, bool) {
	for _, m := range mm.Modules {
		if m.ID == id {
			return m, true
		}
	}
	return Module{}, false
}

// Dependencies returns the edges leaving id.
func (mm *ModuleMap) Dependencies(id string) []Edge {
	var out []Edge
	for _, e := range mm.Edges {
		if e.From == id {
			out = append(out, e)
		}
	}
	return out
}

// Dependents returns the edges entering id.
func (mm *ModuleMap) Dependents(id string) []Edge {
	var out []Edge
	for _, e := range mm.Edges {
		if e.To == id {
			out = append(out, e)
		}
	}
	return out
}

// CrossPackage returns the edges whose ends lie in different known
// packages, sorted by (FromPackage, From, ToPackage, To).
func (mm *ModuleMap) CrossPackage() []Edge {
	var out []Edge
	for _, e := range mm.Edges {
		if e.CrossPackage() {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FromPackage != b.FromPackage {
			return a.FromPackage < b.FromPackage
		}
		if a.From != b.From {
			return a.From < b.From
		}
		if a.ToPackage != b.ToPackage {
			return a.ToPackage < b.ToPackage
		}
		return a.To < b.To
	})
	return out
}

func sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
}
