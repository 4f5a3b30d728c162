package symbol

import (
	"fmt"
	"strings"

	"github.com/phobologic/surc/internal/diag"
	"github.com/phobologic/surc/internal/imports"
	"github.com/phobologic/surc/internal/model"
)

// Outcome classifies a resolution.
type Outcome int

const (
	// Undefined means no rule produced a candidate.
	Undefined Outcome = iota
	// Resolved means exactly one candidate.
	Resolved
	// Ambiguous means several candidates. The reference still counts as
	// resolved so downstream checks do not cascade.
	Ambiguous
	// UnknownPrefix means an explicit prefix named no visible package.
	UnknownPrefix
)

func (o Outcome) String() string {
	switch o {
	case Resolved:
		return "resolved"
	case Ambiguous:
		return "ambiguous"
	case UnknownPrefix:
		return "unknown-prefix"
	default:
		return "undefined"
	}
}

// Rule names the resolution step that produced the candidates.
type Rule string

const (
	RulePrefix Rule = "prefix"
	RuleSelf   Rule = "self"
	RuleImport Rule = "import"
	RuleGlobal Rule = "global"
)

// Result is the outcome of resolving one reference.
type Result struct {
	Outcome    Outcome
	Rule       Rule
	Prefix     string
	Candidates []Entry
}

// OK reports whether the reference counts as resolved.
func (r Result) OK() bool {
	return r.Outcome == Resolved || r.Outcome == Ambiguous
}

func result(rule Rule, candidates []Entry) Result {
	switch len(candidates) {
	case 0:
		return Result{Outcome: Undefined, Rule: rule}
	case 1:
		return Result{Outcome: Resolved, Rule: rule, Candidates: candidates}
	default:
		return Result{Outcome: Ambiguous, Rule: rule, Candidates: candidates}
	}
}

// Resolve finds the entries ref names from the unit described by ctx,
// applying explicit prefix, self package, imports and global lookup in that
// order and stopping at the first rule with a candidate.
func (t *Table) Resolve(kind Kind, ref string, ctx *imports.Context) Result {
	ref = strings.TrimSpace(ref)
	head, rest, dotted := strings.Cut(ref, ".")

	if dotted && !isKindTag(head) {
		pkg, ok := ctx.Resolve(head)
		if !ok {
			return Result{Outcome: UnknownPrefix, Rule: RulePrefix, Prefix: head}
		}
		local := localName(rest)
		candidates := t.InPackage(kind, pkg, local)
		if ctx.Namespace != "" {
			if exact := t.Lookup(kind, pkg, ctx.Namespace, local); len(exact) > 0 {
				candidates = exact
			}
		}
		return result(RulePrefix, candidates)
	}

	local := ref
	if dotted {
		local = localName(rest)
	}

	if r := result(RuleSelf, t.Lookup(kind, ctx.SelfPackage, ctx.Namespace, local)); r.Outcome != Undefined {
		return r
	}

	var found []Entry
	for _, imp := range ctx.Imports {
		matches := t.InPackage(kind, imp.Package, local)
		if len(matches) > 1 {
			return result(RuleImport, matches)
		}
		found = append(found, matches...)
	}
	if r := result(RuleImport, found); r.Outcome != Undefined {
		return r
	}

	return result(RuleGlobal, t.Named(kind, local))
}

// Check resolves ref and reports any diagnostic it warrants at location.
func (t *Table) Check(kind Kind, ref string, ctx *imports.Context, location string) (Result, []diag.Diagnostic) {
	r := t.Resolve(kind, ref, ctx)
	ref = strings.TrimSpace(ref)
	switch r.Outcome {
	case UnknownPrefix:
		return r, []diag.Diagnostic{diag.Errorf(diag.UndefinedPrefix, location, "Unknown reference prefix '%s'", r.Prefix)}
	case Undefined:
		return r, []diag.Diagnostic{diag.Errorf(UndefinedCode(kind), location, "Reference '%s' is undefined", ref)}
	case Ambiguous:
		fqns := make([]string, len(r.Candidates))
		for i, c := range r.Candidates {
			fqns[i] = c.FQN
		}
		return r, []diag.Diagnostic{diag.Warnf(diag.AmbiguousName, location,
			"Ambiguous %s reference '%s'; candidates: %s", kind, ref, strings.Join(fqns, ", "))}
	}
	return r, nil
}

// UndefinedCode returns the E_UNDEFINED_* code for kind.
func UndefinedCode(kind Kind) string {
	switch kind {
	case Func:
		return diag.UndefinedFunc
	case Mod:
		return diag.UndefinedMod
	default:
		return diag.UndefinedSchema
	}
}

func isKindTag(s string) bool {
	switch Kind(s) {
	case Schema, Func, Mod:
		return true
	}
	return false
}

// localName drops a leading kind tag: "schema.user" and "user" both give "user".
func localName(s string) string {
	if _, rest, ok := strings.Cut(s, "."); ok {
		return rest
	}
	return s
}

// ResolveUnits checks every schema and func reference of every unit that has
// an import context. Units without one (failed assignment) are skipped.
func ResolveUnits(units []*model.Unit, t *Table, contexts []*imports.Context) []diag.Diagnostic {
	diags, _ := walkUnits(units, t, contexts)
	return diags
}

func walkUnits(units []*model.Unit, t *Table, contexts []*imports.Context) ([]diag.Diagnostic, map[string]bool) {
	byPath := imports.ByPath(contexts)
	var diags []diag.Diagnostic
	uses := make(map[string]bool)
	for _, u := range units {
		ctx, ok := byPath[u.Path]
		if !ok {
			continue
		}
		r := &unitResolver{table: t, unit: u, ctx: ctx, uses: uses}
		u.Walk(r)
		diags = append(diags, r.diags...)
	}
	return diags, uses
}

type unitResolver struct {
	table *Table
	unit  *model.Unit
	ctx   *imports.Context
	diags []diag.Diagnostic
	uses  map[string]bool // FQNs referenced from a unit other than their own
}

func (r *unitResolver) VisitMeta(*model.Meta)     {}
func (r *unitResolver) VisitStatus(*model.Status) {}

func (r *unitResolver) VisitSchema(s *model.Schema) {
	switch s.Kind {
	case model.Edge:
		r.ref(Schema, s.From, s.ID(), "from")
		r.ref(Schema, s.To, s.ID(), "to")
	case model.Boundary:
		for _, over := range s.Over {
			r.ref(Schema, over, s.ID(), "over")
		}
	case model.Node, model.Space:
	}
}

func (r *unitResolver) VisitFunc(f *model.Func) {
	for _, in := range f.Input {
		r.ref(Schema, in, f.ID(), "input")
	}
	for _, out := range f.Output {
		r.ref(Schema, out, f.ID(), "output")
	}
}

func (r *unitResolver) VisitMod(m *model.Mod) {
	for _, s := range m.Schemas {
		r.ref(Schema, s, m.ID(), "schemas")
	}
	for _, f := range m.Funcs {
		r.ref(Func, f, m.ID(), "funcs")
	}
	for _, step := range m.Pipeline {
		r.ref(Func, step, m.ID(), "pipeline")
	}
}

func (r *unitResolver) ref(kind Kind, ref, owner, field string) {
	if ref == "" {
		return
	}
	location := fmt.Sprintf("%s: %s.%s(%s)", r.unit.Path, owner, field, ref)
	res, diags := r.table.Check(kind, ref, r.ctx, location)
	r.diags = append(r.diags, diags...)
	for _, c := range res.Candidates {
		if c.Unit != r.unit.Path {
			r.uses[c.FQN] = true
		}
	}
}
