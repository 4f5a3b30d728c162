// Package project checks the module dependency graph across all units.
package project

import (
	"github.com/phobologic/surc/internal/diag"
	"github.com/phobologic/surc/internal/graph"
	"github.com/phobologic/surc/internal/model"
)

// Require is one module -> module dependency edge.
type Require struct {
	From string // "mod.<name>"
	To   string // as written in the unit
	Unit string
}

// Requires attributes every file-level require of a unit to every module the
// unit declares, so N modules and M requires yield N*M edges. Duplicate
// (From, To) pairs are kept once, first occurrence wins.
func Requires(units []*model.Unit) []Require {
	var out []Require
	seen := make(map[[2]string]bool)
	for _, u := range units {
		mods := u.Mods()
		if len(mods) == 0 {
			continue
		}
		for _, to := range u.Requires {
			for _, m := range mods {
				key := [2]string{m.ID(), to}
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, Require{From: m.ID(), To: to, Unit: u.Path})
			}
		}
	}
	return out
}

// Modules returns the ids of every module declared by units.
func Modules(units []*model.Unit) map[string]bool {
	mods := make(map[string]bool)
	for _, u := range units {
		for _, m := range u.Mods() {
			mods[m.ID()] = true
		}
	}
	return mods
}

// Graph builds the require graph. Every declared module is a node, even one
// with no edges.
func Graph(units []*model.Unit) *graph.Graph[string] {
	g := graph.New[string]()
	for id := range Modules(units) {
		g.AddNode(id)
	}
	for _, r := range Requires(units) {
		g.AddEdge(r.From, r.To)
	}
	return g
}

// Check reports requires naming no module and every require cycle.
func Check(units []*model.Unit) []diag.Diagnostic {
	requires := Requires(units)
	mods := Modules(units)

	var diags []diag.Diagnostic
	for _, r := range requires {
		if !mods[r.To] {
			diags = append(diags, diag.Errorf(diag.UnresolvedRequire, r.Unit,
				"Module '%s' (required from '%s') does not exist", r.To, r.From))
		}
	}

	g := graph.New[string]()
	edgeUnit := make(map[[2]string]string, len(requires))
	for _, r := range requires {
		g.AddEdge(r.From, r.To)
		edgeUnit[[2]string{r.From, r.To}] = r.Unit
	}

	for _, cycle := range g.Cycles(graph.AllBackEdges) {
		if len(cycle) < 2 {
			continue
		}
		location := "require graph"
		if unit, ok := edgeUnit[[2]string{cycle[0], cycle[1]}]; ok {
			location = unit
		}
		diags = append(diags, diag.Errorf(diag.RequireCycle, location,
			"Require cycle detected: %s", graph.Render(cycle)))
	}
	return diags
}
