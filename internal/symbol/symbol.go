// Package symbol builds the project-wide symbol table and resolves references
// against it.
package symbol

import (
	"fmt"

	"github.com/phobologic/surc/internal/assign"
	"github.com/phobologic/surc/internal/diag"
	"github.com/phobologic/surc/internal/model"
)

// Kind is the declaration kind of a symbol.
type Kind string

const (
	Schema Kind = "schema"
	Func   Kind = "func"
	Mod    Kind = "mod"
)

// Entry is one declared schema, func or mod.
type Entry struct {
	Kind      Kind   `json:"kind"`
	Package   string `json:"package"`
	Namespace string `json:"namespace,omitempty"` // "" means global
	Local     string `json:"local"`
	FQN       string `json:"fqn"`
	Unit      string `json:"unit"`
}

// Key identifies the scope an entry's local name should be unique in.
type Key struct {
	Kind      Kind
	Package   string
	Namespace string
	Local     string
}

// Key returns the entry's uniqueness key.
func (e Entry) Key() Key {
	return Key{Kind: e.Kind, Package: e.Package, Namespace: e.Namespace, Local: e.Local}
}

// FQN renders pkg.<package>.<kind>.<namespace|global>.<local>.
func FQN(kind Kind, pkg, namespace, local string) string {
	if namespace == "" {
		namespace = "global"
	}
	return fmt.Sprintf("pkg.%s.%s.%s.%s", pkg, kind, namespace, local)
}

type pkgKey struct {
	kind  Kind
	pkg   string
	local string
}

type nameKey struct {
	kind  Kind
	local string
}

// Table is an immutable index of entries. Colliding entries are all kept, in
// the order they were declared.
type Table struct {
	entries []Entry
	byKey   map[Key][]int
	byPkg   map[pkgKey][]int
	byName  map[nameKey][]int
}

// NewTable indexes entries.
func NewTable(entries []Entry) *Table {
	t := &Table{
		entries: entries,
		byKey:   make(map[Key][]int),
		byPkg:   make(map[pkgKey][]int),
		byName:  make(map[nameKey][]int),
	}
	for i, e := range entries {
		t.byKey[e.Key()] = append(t.byKey[e.Key()], i)
		pk := pkgKey{kind: e.Kind, pkg: e.Package, local: e.Local}
		t.byPkg[pk] = append(t.byPkg[pk], i)
		nk := nameKey{kind: e.Kind, local: e.Local}
		t.byName[nk] = append(t.byName[nk], i)
	}
	return t
}

// Build folds every declaration of units into a table. packages maps unit
// path to its owning package; unmapped units use their declared package or the
// default package. A key declared twice yields W_AMBIGUOUS_NAME and both
// entries are kept.
func Build(units []*model.Unit, packages map[string]string) (*Table, []diag.Diagnostic) {
	b := &builder{defined: make(map[Key]string)}
	for _, u := range units {
		pkg, ok := packages[u.Path]
		if !ok {
			pkg = u.Package
		}
		if pkg == "" {
			pkg = assign.DefaultPackage
		}
		b.unit, b.pkg, b.namespace = u, pkg, u.Namespace
		u.Walk(b)
	}
	return NewTable(b.entries), b.diags
}

type builder struct {
	unit      *model.Unit
	pkg       string
	namespace string

	entries []Entry
	defined map[Key]string
	diags   []diag.Diagnostic
}

func (b *builder) VisitMeta(*model.Meta)       {}
func (b *builder) VisitStatus(*model.Status)   {}
func (b *builder) VisitSchema(s *model.Schema) { b.add(Schema, s.Name) }
func (b *builder) VisitFunc(f *model.Func)     { b.add(Func, f.Name) }
func (b *builder) VisitMod(m *model.Mod)       { b.add(Mod, m.Name) }

func (b *builder) add(kind Kind, local string) {
	e := Entry{
		Kind:      kind,
		Package:   b.pkg,
		Namespace: b.namespace,
		Local:     local,
		FQN:       FQN(kind, b.pkg, b.namespace, local),
		Unit:      b.unit.Path,
	}
	if first, ok := b.defined[e.Key()]; ok {
		b.diags = append(b.diags, diag.Warnf(diag.AmbiguousName, e.Unit,
			"Symbol '%s' is defined in both %s and %s", e.FQN, first, e.Unit))
	} else {
		b.defined[e.Key()] = e.Unit
	}
	b.entries = append(b.entries, e)
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// Entries returns a copy of all entries in declaration order.
func (t *Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Lookup returns entries with exactly this kind, package, namespace and name.
func (t *Table) Lookup(kind Kind, pkg, namespace, local string) []Entry {
	return t.pick(t.byKey[Key{Kind: kind, Package: pkg, Namespace: namespace, Local: local}])
}

// InPackage returns entries of kind named local in pkg, any namespace.
func (t *Table) InPackage(kind Kind, pkg, local string) []Entry {
	return t.pick(t.byPkg[pkgKey{kind: kind, pkg: pkg, local: local}])
}

// Named returns entries of kind named local anywhere.
func (t *Table) Named(kind Kind, local string) []Entry {
	return t.pick(t.byName[nameKey{kind: kind, local: local}])
}

func (t *Table) pick(idx []int) []Entry {
	if len(idx) == 0 {
		return nil
	}
	out := make([]Entry, len(idx))
	for i, n := range idx {
		out[i] = t.entries[n]
	}
	return out
}
