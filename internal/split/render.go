package split

import "github.com/phobologic/surc/internal/model"

// document is the TOML layout of one split unit.
type document struct {
	Package   string                 `toml:"package"`
	Namespace string                 `toml:"namespace"`
	Import    []string               `toml:"import,omitempty"`
	Require   []string               `toml:"require,omitempty"`
	Schema    map[string]schemaTable `toml:"schema,omitempty"`
	Func      map[string]funcTable   `toml:"func,omitempty"`
	Mod       map[string]modTable    `toml:"mod"`
	Status    *statusTable           `toml:"status,omitempty"`
}

type implTable struct {
	Bind string `toml:"bind,omitempty"`
	Lang string `toml:"lang,omitempty"`
	Path string `toml:"path,omitempty"`
}

type schemaTable struct {
	Kind   model.SchemaKind  `toml:"kind,omitempty"`
	Role   string            `toml:"role,omitempty"`
	Type   string            `toml:"type,omitempty"`
	From   string            `toml:"from,omitempty"`
	To     string            `toml:"to,omitempty"`
	Base   string            `toml:"base,omitempty"`
	Label  string            `toml:"label,omitempty"`
	Over   []string          `toml:"over,omitempty"`
	Fields map[string]string `toml:"fields,omitempty"`
	Impl   implTable         `toml:"impl,omitempty"`
}

type funcTable struct {
	Intent      string    `toml:"intent,omitempty"`
	Input       []string  `toml:"input"`
	Output      []string  `toml:"output"`
	DesignNotes string    `toml:"design_notes,omitempty"`
	Impl        implTable `toml:"impl,omitempty"`
}

type modTable struct {
	Purpose  string   `toml:"purpose,omitempty"`
	Schemas  []string `toml:"schemas"`
	Funcs    []string `toml:"funcs"`
	Pipeline []string `toml:"pipeline,omitempty"`
}

type statusTable struct {
	UpdatedAt string                       `toml:"updated_at,omitempty"`
	Mod       map[string]moduleStatusTable `toml:"mod"`
}

type moduleStatusTable struct {
	State    string  `toml:"state"`
	Coverage float64 `toml:"coverage"`
	Notes    string  `toml:"notes"`
}

// document renders m with the given schemas and funcs. The unit's imports
// and requires are carried over, as is m's status entry.
func (x *index) document(pkg, namespace string, m *model.Mod, schemas, funcs []string) document {
	doc := document{
		Package:   pkg,
		Namespace: namespace,
		Require:   x.unit.Requires,
		Mod: map[string]modTable{m.Name: {
			Purpose:  m.Purpose,
			Schemas:  list(m.Schemas),
			Funcs:    list(m.Funcs),
			Pipeline: m.Pipeline,
		}},
	}
	for _, imp := range x.unit.Imports {
		target := imp.Target
		if imp.Alias != "" {
			target += " as " + imp.Alias
		}
		doc.Import = append(doc.Import, target)
	}

	if len(schemas) > 0 {
		doc.Schema = make(map[string]schemaTable, len(schemas))
	}
	for _, name := range schemas {
		s := x.schemas[name]
		doc.Schema[name] = schemaTable{
			Kind:   s.Kind,
			Role:   s.Role,
			Type:   s.Type,
			From:   s.From,
			To:     s.To,
			Base:   s.Base,
			Label:  s.Label,
			Over:   s.Over,
			Fields: s.Fields,
			Impl:   implTable(s.Impl),
		}
	}

	if len(funcs) > 0 {
		doc.Func = make(map[string]funcTable, len(funcs))
	}
	for _, name := range funcs {
		f := x.funcs[name]
		doc.Func[name] = funcTable{
			Intent:      f.Intent,
			Input:       list(f.Input),
			Output:      list(f.Output),
			DesignNotes: f.DesignNotes,
			Impl:        implTable(f.Impl),
		}
	}

	st := x.unit.Status()
	if ms, ok := st.Module(m.Name); ok {
		doc.Status = &statusTable{
			UpdatedAt: st.UpdatedAt,
			Mod:       map[string]moduleStatusTable{m.Name: {State: ms.State, Coverage: ms.Coverage, Notes: ms.Notes}},
		}
	}
	return doc
}

// list keeps empty lists in the output as [].
func list(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
