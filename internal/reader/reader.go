// Package reader decodes Spec IR and Deploy IR documents written in TOML.
package reader

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/phobologic/surc/internal/model"
)

type table = map[string]any

// Error reports a document that decodes as TOML but does not have the
// expected shape.
type Error struct {
	Path   string
	Reason string
}

func (e *Error) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Reason)
}

// ReadUnitFile reads the Spec IR unit at path.
func ReadUnitFile(path string) (*model.Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening unit: %w", err)
	}
	defer f.Close()
	return ReadUnit(f, path)
}

// ReadUnit decodes a Spec IR unit. path is recorded on the unit and used in
// error messages only.
func ReadUnit(r io.Reader, path string) (*model.Unit, error) {
	raw, md, err := decode(r, path)
	if err != nil {
		return nil, err
	}

	u := &model.Unit{Path: path}
	if u.Package, err = header(raw, "package"); err != nil {
		return nil, &Error{Path: path, Reason: err.Error()}
	}
	if u.Namespace, err = header(raw, "namespace"); err != nil {
		return nil, &Error{Path: path, Reason: err.Error()}
	}

	if v, ok := raw["import"]; ok {
		targets, err := stringArray("import", v)
		if err != nil {
			return nil, &Error{Path: path, Reason: err.Error()}
		}
		for _, t := range targets {
			u.Imports = append(u.Imports, model.Import{Target: t})
		}
	}

	for _, key := range []string{"require", "requires"} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		reqs, err := stringArray(key, v)
		if err != nil {
			return nil, &Error{Path: path, Reason: err.Error()}
		}
		for _, req := range reqs {
			if !strings.HasPrefix(req, "mod.") {
				return nil, &Error{Path: path, Reason: fmt.Sprintf("require entry %q must start with 'mod.'", req)}
			}
		}
		u.Requires = append(u.Requires, reqs...)
	}

	u.Decls = decls(raw, md)
	return u, nil
}

func decode(r io.Reader, path string) (table, toml.MetaData, error) {
	raw := table{}
	md, err := toml.NewDecoder(r).Decode(&raw)
	if err != nil {
		return nil, md, &Error{Path: path, Reason: err.Error()}
	}
	return raw, md, nil
}

// decls builds declarations in document order.
func decls(raw table, md toml.MetaData) []model.Decl {
	var out []model.Decl
	seen := make(map[string]bool)

	emit := func(section, name string) {
		id := section + "." + name
		if seen[id] {
			return
		}
		sec, ok := raw[section].(table)
		if !ok {
			return
		}
		body, ok := sec[name].(table)
		if !ok {
			return
		}
		seen[id] = true
		switch section {
		case "schema":
			out = append(out, schema(name, body))
		case "func":
			out = append(out, function(name, body))
		case "mod":
			out = append(out, module(name, body))
		}
	}

	meta := func() {
		body, ok := raw["meta"].(table)
		if !ok || seen["meta"] {
			return
		}
		seen["meta"] = true
		out = append(out, &model.Meta{
			Name:        str(body, "name"),
			Version:     str(body, "version"),
			Description: str(body, "description"),
		})
	}

	status := func() {
		body, ok := raw["status"].(table)
		if !ok || seen["status"] {
			return
		}
		seen["status"] = true
		out = append(out, statusSection(body))
	}

	for _, key := range md.Keys() {
		switch {
		case key[0] == "meta":
			meta()
		case key[0] == "status":
			status()
		case len(key) >= 2:
			emit(key[0], key[1])
		}
	}

	// Tables the metadata did not surface, in name order.
	meta()
	status()
	for _, section := range []string{"schema", "func", "mod"} {
		sec, ok := raw[section].(table)
		if !ok {
			continue
		}
		for _, name := range sortedKeys(sec) {
			emit(section, name)
		}
	}
	return out
}

func schema(name string, t table) *model.Schema {
	s := &model.Schema{
		Name:  name,
		Kind:  model.SchemaKind(str(t, "kind")),
		Role:  str(t, "role"),
		Type:  str(t, "type"),
		From:  str(t, "from"),
		To:    str(t, "to"),
		Base:  str(t, "base"),
		Label: str(t, "label"),
		Over:  stringSet(t, "over"),
		Impl:  impl(t),
	}
	if fields, ok := t["fields"].(table); ok {
		s.Fields = make(map[string]string, len(fields))
		for k, v := range fields {
			if sv, ok := v.(string); ok {
				s.Fields[k] = sv
			}
		}
	}
	return s
}

func function(name string, t table) *model.Func {
	return &model.Func{
		Name:        name,
		Intent:      str(t, "intent"),
		Input:       stringSet(t, "input"),
		Output:      stringSet(t, "output"),
		DesignNotes: str(t, "design_notes"),
		Impl:        impl(t),
	}
}

func module(name string, t table) *model.Mod {
	return &model.Mod{
		Name:     name,
		Purpose:  str(t, "purpose"),
		Schemas:  stringSet(t, "schemas"),
		Funcs:    stringSet(t, "funcs"),
		Pipeline: pipeline(t["pipeline"]),
	}
}

// statusSection reads [status] and its [status.mod.<name>] tables. Entries
// that are not tables are skipped.
func statusSection(t table) *model.Status {
	st := &model.Status{
		UpdatedAt: str(t, "updated_at"),
		Modules:   make(map[string]*model.ModuleStatus),
	}
	mods, _ := t["mod"].(table)
	for name, v := range mods {
		body, ok := v.(table)
		if !ok {
			continue
		}
		st.Modules[name] = &model.ModuleStatus{
			State:    str(body, "state"),
			Coverage: number(body, "coverage"),
			Notes:    str(body, "notes"),
		}
	}
	return st
}

// number accepts a TOML float, an integer, or a numeric string. Anything
// else reads as 0.
func number(t table, key string) float64 {
	switch v := t[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err == nil {
			return f
		}
	}
	return 0
}

// impl reads `impl.bind = "..."` style keys, which TOML nests under "impl".
func impl(t table) model.Impl {
	it, ok := t["impl"].(table)
	if !ok {
		return model.Impl{}
	}
	return model.Impl{
		Bind: str(it, "bind"),
		Lang: str(it, "lang"),
		Path: str(it, "path"),
	}
}

func header(raw table, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return strings.TrimSpace(s), nil
}

func stringArray(label string, v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an array", label)
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("%s entries must be strings", label)
		}
		out = append(out, strings.TrimSpace(s))
	}
	return out, nil
}

func str(t table, key string) string {
	s, _ := t[key].(string)
	return s
}

// stringSet accepts an array of strings or an inline brace set "{ a, b }".
func stringSet(t table, key string) []string {
	switch v := t[key].(type) {
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		return braceSet(v)
	}
	return nil
}

func braceSet(input string) []string {
	s := strings.TrimSpace(input)
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		item := strings.Trim(strings.TrimSpace(part), `"`)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// pipeline accepts an array of chains, a single chain, or a table whose keys
// are chains. A chain is "func.a -> func.b".
func pipeline(v any) []string {
	var out []string
	switch p := v.(type) {
	case []any:
		for _, item := range p {
			if s, ok := item.(string); ok {
				out = append(out, chain(s)...)
			}
		}
	case string:
		out = chain(p)
	case table:
		for _, k := range sortedKeys(p) {
			out = append(out, chain(k)...)
		}
	}
	return out
}

func chain(input string) []string {
	s := strings.TrimSpace(input)
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	var out []string
	for _, step := range strings.Split(s, "->") {
		if step = strings.TrimSpace(step); step != "" {
			out = append(out, step)
		}
	}
	return out
}

func sortedKeys(t table) []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
