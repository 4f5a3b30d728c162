// Package model defines the declaration trees analyzed by surc.
package model

import (
	"sort"
	"strings"
)

// SchemaKind is the shape of a schema declaration.
type SchemaKind string

const (
	Node     SchemaKind = "node"
	Edge     SchemaKind = "edge"
	Boundary SchemaKind = "boundary"
	Space    SchemaKind = "space"
)

// Import is one raw import directive of a unit, e.g. "users as u".
// Alias is set only when the reader received it separately from Target.
type Import struct {
	Target string `json:"target"`
	Alias  string `json:"alias,omitempty"`
}

// Unit is one parsed Spec IR document.
type Unit struct {
	Path      string
	Package   string // declared package, "" if absent
	Namespace string // "" if absent
	Imports   []Import
	Requires  []string
	Decls     []Decl
}

// Impl binds a declaration to its implementation in source code.
type Impl struct {
	Bind string `json:"bind,omitempty"`
	Lang string `json:"lang,omitempty"`
	Path string `json:"path,omitempty"`
}

// Decl is the closed set of Spec IR declarations: *Meta, *Schema, *Func,
// *Mod and *Status. Code that needs to handle every kind should implement
// Visitor, so a new declaration kind breaks compilation until each pass
// handles it.
type Decl interface {
	Accept(v Visitor)
	isDecl()
}

// Visitor dispatches over every declaration kind.
type Visitor interface {
	VisitMeta(m *Meta)
	VisitSchema(s *Schema)
	VisitFunc(f *Func)
	VisitMod(m *Mod)
	VisitStatus(s *Status)
}

// Meta carries descriptive unit metadata.
type Meta struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
}

// Schema declares a data shape or a relation between shapes.
type Schema struct {
	Name   string            `json:"name"`
	Kind   SchemaKind        `json:"kind"`
	Role   string            `json:"role,omitempty"`
	Type   string            `json:"type,omitempty"`
	From   string            `json:"from,omitempty"`
	To     string            `json:"to,omitempty"`
	Base   string            `json:"base,omitempty"`
	Label  string            `json:"label,omitempty"`
	Over   []string          `json:"over,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
	Impl   Impl              `json:"impl"`
}

// Func declares a transformation from input schemas to output schemas.
type Func struct {
	Name        string   `json:"name"`
	Intent      string   `json:"intent,omitempty"`
	Input       []string `json:"input"`
	Output      []string `json:"output"`
	DesignNotes string   `json:"design_notes,omitempty"`
	Impl        Impl     `json:"impl"`
}

// Mod groups schemas and funcs and an ordered pipeline of funcs.
type Mod struct {
	Name     string   `json:"name"`
	Purpose  string   `json:"purpose,omitempty"`
	Schemas  []string `json:"schemas"`
	Funcs    []string `json:"funcs"`
	Pipeline []string `json:"pipeline"`
}

// Implementation states a module status may carry.
const (
	StateTodo     = "todo"
	StateSkeleton = "skeleton"
	StatePartial  = "partial"
	StateDone     = "done"
	StateBlocked  = "blocked"
)

// States lists the implementation states in progress order.
var States = []string{StateTodo, StateSkeleton, StatePartial, StateDone, StateBlocked}

// Status tracks implementation progress per module. Modules is keyed by the
// module's local name, without the "mod." prefix.
type Status struct {
	UpdatedAt string                   `json:"updated_at,omitempty"`
	Modules   map[string]*ModuleStatus `json:"modules"`
}

// ModuleStatus is the progress of one module.
type ModuleStatus struct {
	State    string  `json:"state"`
	Coverage float64 `json:"coverage"`        // 0.0 to 1.0
	Notes    string  `json:"notes,omitempty"`
}

// Module returns the status entry for a module name or "mod.<name>" ref.
func (s *Status) Module(ref string) (*ModuleStatus, bool) {
	if s == nil {
		return nil, false
	}
	ms, ok := s.Modules[strings.TrimPrefix(ref, "mod.")]
	return ms, ok
}

// ModuleNames returns the names that have a status entry, sorted.
func (s *Status) ModuleNames() []string {
	if s == nil {
		return nil
	}
	return sortedKeys(s.Modules)
}

func (m *Meta) Accept(v Visitor)   { v.VisitMeta(m) }
func (s *Schema) Accept(v Visitor) { v.VisitSchema(s) }
func (f *Func) Accept(v Visitor)   { v.VisitFunc(f) }
func (m *Mod) Accept(v Visitor)    { v.VisitMod(m) }
func (s *Status) Accept(v Visitor) { v.VisitStatus(s) }

func (*Meta) isDecl()   {}
func (*Schema) isDecl() {}
func (*Func) isDecl()   {}
func (*Mod) isDecl()    {}
func (*Status) isDecl() {}

// ID returns the in-unit reference form "schema.<name>".
func (s *Schema) ID() string { return "schema." + s.Name }

// ID returns the in-unit reference form "func.<name>".
func (f *Func) ID() string { return "func." + f.Name }

// ID returns the in-unit reference form "mod.<name>".
func (m *Mod) ID() string { return "mod." + m.Name }

// Walk calls d.Accept(v) for every declaration of u in order.
func (u *Unit) Walk(v Visitor) {
	for _, d := range u.Decls {
		d.Accept(v)
	}
}

type collector struct {
	meta    *Meta
	status  *Status
	schemas []*Schema
	funcs   []*Func
	mods    []*Mod
}

func (c *collector) VisitMeta(m *Meta) {
	if c.meta == nil {
		c.meta = m
	}
}
func (c *collector) VisitSchema(s *Schema) { c.schemas = append(c.schemas, s) }
func (c *collector) VisitFunc(f *Func)     { c.funcs = append(c.funcs, f) }
func (c *collector) VisitMod(m *Mod)       { c.mods = append(c.mods, m) }
func (c *collector) VisitStatus(s *Status) {
	if c.status == nil {
		c.status = s
	}
}

func (u *Unit) collect() *collector {
	c := &collector{}
	u.Walk(c)
	return c
}

// Meta returns the first meta section, or nil.
func (u *Unit) Meta() *Meta { return u.collect().meta }

// Schemas returns the schema declarations in document order.
func (u *Unit) Schemas() []*Schema { return u.collect().schemas }

// Funcs returns the func declarations in document order.
func (u *Unit) Funcs() []*Func { return u.collect().funcs }

// Mods returns the mod declarations in document order.
func (u *Unit) Mods() []*Mod { return u.collect().mods }

// Mod returns the module named by a name or "mod.<name>" ref, or nil.
func (u *Unit) Mod(ref string) *Mod {
	name := strings.TrimPrefix(ref, "mod.")
	for _, m := range u.Mods() {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// Status returns the status section, or nil.
func (u *Unit) Status() *Status { return u.collect().status }

// DeployUnit is one parsed Deploy IR document. Map keys are local names
// (without the "job."/"target."/... prefix).
type DeployUnit struct {
	Path      string
	Pipeline  *Pipeline
	Targets   map[string]*Target
	Jobs      map[string]*Job
	Artifacts map[string]*Artifact
	Secrets   map[string]*Secret
	Perms     map[string]*Permission
	Release   *Release
	Gate      *Gate
	Rollback  *Rollback
}

// Pipeline names the deploy pipeline.
type Pipeline struct {
	Name        string
	Description string
}

// Target is a deployment environment.
type Target struct {
	Name   string
	Kind   string
	Domain string
}

// IsProduction reports whether the target kind is production.
func (t *Target) IsProduction() bool {
	return t.Kind == "production" || t.Kind == "prod"
}

// Job is one node of the deploy DAG.
type Job struct {
	Name         string
	Requires     []string
	Runs         []string
	UsesTarget   string
	NeedsSecrets []string
	UsesPerm     string
	Produces     []string
	SideEffects  []string
}

// HasSideEffect reports whether the job is tagged with effect.
func (j *Job) HasSideEffect(effect string) bool {
	for _, e := range j.SideEffects {
		if e == effect {
			return true
		}
	}
	return false
}

// Artifact is a build output.
type Artifact struct {
	Name string
	Type string
	Repo string
	Tag  string
}

// Secret is a credential, optionally restricted to targets.
type Secret struct {
	Name  string
	Scope []string // target refs; empty means every target
}

// Permission is a named deploy role.
type Permission struct {
	Name   string
	Role   string
	Allows []string
}

// Release describes the rollout strategy.
type Release struct {
	Strategy    string
	HealthCheck string
}

// Gate lists targets that require manual approval.
type Gate struct {
	RequireManualApprovalFor []string
}

// Requires reports whether target ref is in the approval list. Both sides
// are compared in "target.<name>" form.
func (g *Gate) Requires(ref string) bool {
	want := TargetRef(ref)
	for _, r := range g.RequireManualApprovalFor {
		if TargetRef(r) == want {
			return true
		}
	}
	return false
}

// Rollback describes how a failed deploy is reverted.
type Rollback struct {
	On       []string
	Strategy string
}

// JobNames returns the job names sorted.
func (d *DeployUnit) JobNames() []string {
	return sortedKeys(d.Jobs)
}

// TargetFor returns the declared target a job uses, or nil.
func (d *DeployUnit) TargetFor(j *Job) *Target {
	if j.UsesTarget == "" {
		return nil
	}
	return d.Targets[LocalRef(j.UsesTarget, "target")]
}

// LocalRef strips the "<kind>." prefix from a deploy reference.
func LocalRef(ref, kind string) string {
	return strings.TrimPrefix(ref, kind+".")
}

// TargetRef normalizes a target reference to "target.<name>".
func TargetRef(ref string) string {
	return "target." + LocalRef(ref, "target")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CodeKind is the syntactic kind of a definition found in source code.
type CodeKind string

const (
	Class    CodeKind = "class"
	Function CodeKind = "function"
	Method   CodeKind = "method"
)

// CodeSymbol is a definition extracted from a source file.
type CodeSymbol struct {
	Name      string
	Kind      CodeKind
	Container string // receiver type or enclosing class, "" at top level
	Language  string
	File      string
	Line      int
}
