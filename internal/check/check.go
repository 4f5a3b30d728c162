// Package check validates the internal consistency of a single Spec IR unit.
package check

import (
	"fmt"
	"sort"

	"github.com/phobologic/surc/internal/diag"
	"github.com/phobologic/surc/internal/model"
)

// Scope is what a unit can see beyond its own declarations.
type Scope interface {
	// Defines reports whether ref names a declaration of kind ("schema" or
	// "func") visible to the unit.
	Defines(kind, ref string) bool
	// Uses reports whether another unit refers to the unit's declaration id.
	Uses(id string) bool
}

// Unit runs every unit-level pass and returns their diagnostics in pass order.
// Within a pass declarations are visited in sorted id order. Only the unit's
// own declarations are visible.
func Unit(u *model.Unit) []diag.Diagnostic {
	return runPasses(newIndex(u, nil))
}

// InScope is Unit for a unit that belongs to a project: references scope
// resolves are defined, and declarations other units use are not unused.
func InScope(u *model.Unit, scope Scope) []diag.Diagnostic {
	return runPasses(newIndex(u, scope))
}

func runPasses(idx *index) []diag.Diagnostic {
	var diags []diag.Diagnostic
	for _, pass := range []func(*index) []diag.Diagnostic{
		funcSchemas,
		modReferences,
		schemaLinks,
		pipelines,
		unused,
	} {
		diags = append(diags, pass(idx)...)
	}
	return diags
}

// index holds a unit's declarations by id. A later declaration with the same
// id replaces an earlier one.
type index struct {
	schemas map[string]*model.Schema
	funcs   map[string]*model.Func
	mods    map[string]*model.Mod
	scope   Scope
}

func newIndex(u *model.Unit, scope Scope) *index {
	idx := &index{
		schemas: make(map[string]*model.Schema),
		funcs:   make(map[string]*model.Func),
		mods:    make(map[string]*model.Mod),
		scope:   scope,
	}
	u.Walk(idx)
	return idx
}

func (x *index) VisitMeta(*model.Meta)       {}
func (x *index) VisitStatus(*model.Status)   {}
func (x *index) VisitSchema(s *model.Schema) { x.schemas[s.ID()] = s }
func (x *index) VisitFunc(f *model.Func)     { x.funcs[f.ID()] = f }
func (x *index) VisitMod(m *model.Mod)       { x.mods[m.ID()] = m }

func (x *index) hasSchema(ref string) bool {
	if _, ok := x.schemas[ref]; ok {
		return true
	}
	return x.scope != nil && x.scope.Defines("schema", ref)
}

func (x *index) hasFunc(ref string) bool {
	if _, ok := x.funcs[ref]; ok {
		return true
	}
	return x.scope != nil && x.scope.Defines("func", ref)
}

func (x *index) usedElsewhere(id string) bool {
	return x.scope != nil && x.scope.Uses(id)
}

func sorted[V any](m map[string]V) []V {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]V, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

func funcSchemas(x *index) []diag.Diagnostic {
	var diags []diag.Diagnostic
	for _, f := range sorted(x.funcs) {
		for _, s := range f.Input {
			if !x.hasSchema(s) {
				diags = append(diags, diag.Errorf(diag.UndefinedSchemaRef, fmt.Sprintf("%s.input(%s)", f.ID(), s),
					"func %s: input schema %s is not defined", f.ID(), s))
			}
		}
		for _, s := range f.Output {
			if !x.hasSchema(s) {
				diags = append(diags, diag.Errorf(diag.UndefinedSchemaRef, fmt.Sprintf("%s.output(%s)", f.ID(), s),
					"func %s: output schema %s is not defined", f.ID(), s))
			}
		}
	}
	return diags
}

func modReferences(x *index) []diag.Diagnostic {
	var diags []diag.Diagnostic
	for _, m := range sorted(x.mods) {
		for _, s := range m.Schemas {
			if !x.hasSchema(s) {
				diags = append(diags, diag.Errorf(diag.UndefinedSchemaInMod, fmt.Sprintf("%s.schemas(%s)", m.ID(), s),
					"mod %s: schema %s is not defined", m.ID(), s))
			}
		}
		for _, f := range m.Funcs {
			if !x.hasFunc(f) {
				diags = append(diags, diag.Errorf(diag.UndefinedFuncInMod, fmt.Sprintf("%s.funcs(%s)", m.ID(), f),
					"mod %s: func %s is not defined", m.ID(), f))
			}
		}
		for _, step := range m.Pipeline {
			if !x.hasFunc(step) {
				diags = append(diags, diag.Errorf(diag.UndefinedFuncInPipeline, fmt.Sprintf("%s.pipeline(%s)", m.ID(), step),
					"mod %s: pipeline step %s is not defined", m.ID(), step))
			}
		}
	}
	return diags
}

func schemaLinks(x *index) []diag.Diagnostic {
	var diags []diag.Diagnostic
	for _, s := range sorted(x.schemas) {
		switch s.Kind {
		case model.Edge:
			if s.From != "" && !x.hasSchema(s.From) {
				diags = append(diags, diag.Errorf(diag.UndefinedSchemaInEdgeFrom, fmt.Sprintf("%s.from(%s)", s.ID(), s.From),
					"schema %s: edge.from %s is not defined", s.ID(), s.From))
			}
			if s.To != "" && !x.hasSchema(s.To) {
				diags = append(diags, diag.Errorf(diag.UndefinedSchemaInEdgeTo, fmt.Sprintf("%s.to(%s)", s.ID(), s.To),
					"schema %s: edge.to %s is not defined", s.ID(), s.To))
			}
		case model.Boundary:
			for _, over := range s.Over {
				if !x.hasSchema(over) {
					diags = append(diags, diag.Errorf(diag.UndefinedSchemaInBoundary, fmt.Sprintf("%s.over(%s)", s.ID(), over),
						"schema %s: boundary.over %s is not defined", s.ID(), over))
				}
			}
		case model.Node, model.Space:
		}
	}
	return diags
}

// pipelines treats a pipeline as a linear chain: a repeated step is a cycle,
// and adjacent known funcs must share a schema between output and input.
func pipelines(x *index) []diag.Diagnostic {
	var diags []diag.Diagnostic
	for _, m := range sorted(x.mods) {
		if len(m.Pipeline) == 0 {
			continue
		}

		seen := make(map[string]bool, len(m.Pipeline))
		for _, step := range m.Pipeline {
			if seen[step] {
				diags = append(diags, diag.Errorf(diag.PipelineCycle, m.ID()+".pipeline",
					"mod %s: pipeline has a cycle involving %s (appears multiple times)", m.ID(), step))
			}
			seen[step] = true
		}

		for i := 0; i+1 < len(m.Pipeline); i++ {
			a, b := m.Pipeline[i], m.Pipeline[i+1]
			f1, ok1 := x.funcs[a]
			f2, ok2 := x.funcs[b]
			if !ok1 || !ok2 {
				continue
			}
			if !shareSchema(f1.Output, f2.Input) {
				diags = append(diags, diag.Warnf(diag.PipelineTypeMismatch, fmt.Sprintf("%s.pipeline(%s->%s)", m.ID(), a, b),
					"mod %s: pipeline step %s -> %s has no shared schema between output and input", m.ID(), a, b))
			}
		}
	}
	return diags
}

func shareSchema(out, in []string) bool {
	set := make(map[string]struct{}, len(out))
	for _, s := range out {
		set[s] = struct{}{}
	}
	for _, s := range in {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}

// unused reports schemas no func, mod or other schema refers to, and funcs no
// mod lists.
func unused(x *index) []diag.Diagnostic {
	usedSchemas := make(map[string]bool)
	for _, f := range x.funcs {
		for _, s := range f.Input {
			usedSchemas[s] = true
		}
		for _, s := range f.Output {
			usedSchemas[s] = true
		}
	}
	for _, m := range x.mods {
		for _, s := range m.Schemas {
			usedSchemas[s] = true
		}
	}
	for _, s := range x.schemas {
		if s.From != "" {
			usedSchemas[s.From] = true
		}
		if s.To != "" {
			usedSchemas[s.To] = true
		}
		for _, over := range s.Over {
			usedSchemas[over] = true
		}
	}

	usedFuncs := make(map[string]bool)
	for _, m := range x.mods {
		for _, f := range m.Funcs {
			usedFuncs[f] = true
		}
		for _, step := range m.Pipeline {
			usedFuncs[step] = true
		}
	}

	var diags []diag.Diagnostic
	for _, s := range sorted(x.schemas) {
		if !usedSchemas[s.ID()] && !x.usedElsewhere(s.ID()) {
			diags = append(diags, diag.Warnf(diag.UnusedSchema, s.ID(),
				"schema %s is defined but never referenced", s.ID()))
		}
	}
	for _, f := range sorted(x.funcs) {
		if !usedFuncs[f.ID()] && !x.usedElsewhere(f.ID()) {
			diags = append(diags, diag.Warnf(diag.UnusedFunc, f.ID(),
				"func %s is defined but never referenced in any mod", f.ID()))
		}
	}
	return diags
}
