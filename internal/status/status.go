// Package status edits the [status] section of a Spec IR unit. Edits work on
// the document text so comments and layout outside the touched keys survive.
package status

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/phobologic/surc/internal/model"
	"github.com/phobologic/surc/internal/reader"
)

var (
	// ErrExists is returned by Init when the unit already has a status section.
	ErrExists = errors.New("status section already exists")
	// ErrNoStatus is returned when an edit needs a status section the unit
	// does not have.
	ErrNoStatus = errors.New("no [status] section")
	// ErrNoModules is returned by Init for a unit that declares no modules.
	ErrNoModules = errors.New("no modules declared")
)

// UnknownModuleError reports a module without a status entry.
type UnknownModuleError struct {
	Module string
}

func (e *UnknownModuleError) Error() string {
	return fmt.Sprintf("module 'mod.%s' has no status entry", e.Module)
}

const banner = `
# ============================================================================
# IMPLEMENTATION STATUS
# ============================================================================

`

// Edit is the rewritten document and the modules given a new entry.
type Edit struct {
	Content []byte
	Added   []string
}

// Change selects the fields Set rewrites. Nil fields are left alone.
type Change struct {
	State    *string
	Coverage *float64
	Notes    *string
}

func (c Change) empty() bool {
	return c.State == nil && c.Coverage == nil && c.Notes == nil
}

func (c Change) validate() error {
	if c.empty() {
		return errors.New("at least one of state, coverage or notes is required")
	}
	if c.State != nil && !slices.Contains(model.States, *c.State) {
		return fmt.Errorf("unknown state %q (supported: %s)", *c.State, strings.Join(model.States, ", "))
	}
	if c.Coverage != nil && (*c.Coverage < 0 || *c.Coverage > 1) {
		return fmt.Errorf("coverage %v out of range 0.0 to 1.0", *c.Coverage)
	}
	return nil
}

// Init appends a status section with a todo entry for every module.
func Init(src []byte, path, today string) (*Edit, error) {
	u, err := reader.ReadUnit(bytes.NewReader(src), path)
	if err != nil {
		return nil, err
	}
	if u.Status() != nil {
		return nil, ErrExists
	}
	names := moduleNames(u)
	if len(names) == 0 {
		return nil, ErrNoModules
	}

	var b strings.Builder
	b.Write(terminated(src))
	b.WriteString(banner)
	b.WriteString("[status]\n")
	if err := writeKey(&b, "updated_at", today); err != nil {
		return nil, err
	}
	for _, name := range names {
		if err := writeEntry(&b, name); err != nil {
			return nil, err
		}
	}
	return finish(b.String(), path, names)
}

// Sync appends todo entries for modules the status section does not list
// yet and refreshes updated_at. With nothing missing the document is
// returned unchanged.
func Sync(src []byte, path, today string) (*Edit, error) {
	u, err := reader.ReadUnit(bytes.NewReader(src), path)
	if err != nil {
		return nil, err
	}
	st := u.Status()
	if st == nil {
		return nil, ErrNoStatus
	}

	var missing []string
	for _, name := range moduleNames(u) {
		if _, ok := st.Modules[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return &Edit{Content: src}, nil
	}

	var b strings.Builder
	b.Write(terminated(src))
	for _, name := range missing {
		if err := writeEntry(&b, name); err != nil {
			return nil, err
		}
	}
	lines := strings.Split(b.String(), "\n")
	lines, err = touch(lines, today)
	if err != nil {
		return nil, err
	}
	return finish(strings.Join(lines, "\n"), path, missing)
}

// Set rewrites the selected fields of one module's entry and refreshes
// updated_at. module may carry the "mod." prefix.
func Set(src []byte, path, module string, ch Change, today string) (*Edit, error) {
	if err := ch.validate(); err != nil {
		return nil, err
	}
	u, err := reader.ReadUnit(bytes.NewReader(src), path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimPrefix(module, "mod.")
	if u.Status() == nil {
		return nil, ErrNoStatus
	}
	if _, ok := u.Status().Module(name); !ok {
		return nil, &UnknownModuleError{Module: name}
	}

	lines := strings.Split(string(src), "\n")
	start, end, ok := findTable(lines, "status.mod."+name)
	if !ok {
		// The entry exists but not as its own table, e.g. an inline table.
		return nil, fmt.Errorf("module 'mod.%s' status is not a [status.mod.%s] table", name, name)
	}
	var updates []field
	if ch.State != nil {
		updates = append(updates, field{"state", *ch.State})
	}
	if ch.Coverage != nil {
		updates = append(updates, field{"coverage", *ch.Coverage})
	}
	if ch.Notes != nil {
		updates = append(updates, field{"notes", *ch.Notes})
	}
	for _, up := range updates {
		lines, end, err = setKey(lines, start, end, up.key, up.val)
		if err != nil {
			return nil, err
		}
	}
	lines, err = touch(lines, today)
	if err != nil {
		return nil, err
	}
	return finish(strings.Join(lines, "\n"), path, nil)
}

// Entry pairs a declared module with its status, if tracked.
type Entry struct {
	Module   string  `json:"module"`
	Tracked  bool    `json:"tracked"`
	State    string  `json:"state,omitempty"`
	Coverage float64 `json:"coverage"`
	Notes    string  `json:"notes,omitempty"`
}

// Entries lists every module of u in document order with its status.
func Entries(u *model.Unit) []Entry {
	st := u.Status()
	var out []Entry
	for _, name := range moduleNames(u) {
		e := Entry{Module: "mod." + name}
		if ms, ok := st.Module(name); ok {
			e.Tracked = true
			e.State = ms.State
			e.Coverage = ms.Coverage
			e.Notes = ms.Notes
		}
		out = append(out, e)
	}
	return out
}

func moduleNames(u *model.Unit) []string {
	var names []string
	for _, m := range u.Mods() {
		if !slices.Contains(names, m.Name) {
			names = append(names, m.Name)
		}
	}
	return names
}

func terminated(src []byte) []byte {
	if len(src) > 0 && !bytes.HasSuffix(src, []byte("\n")) {
		return append(slices.Clip(src), '\n')
	}
	return src
}

type field struct {
	key string
	val any
}

func writeEntry(b *strings.Builder, name string) error {
	fmt.Fprintf(b, "\n[status.mod.%s]\n", name)
	for _, kv := range []field{{"state", model.StateTodo}, {"coverage", 0.0}, {"notes", ""}} {
		if err := writeKey(b, kv.key, kv.val); err != nil {
			return err
		}
	}
	return nil
}

func writeKey(b *strings.Builder, key string, val any) error {
	line, err := render(key, val)
	if err != nil {
		return err
	}
	b.WriteString(line)
	b.WriteByte('\n')
	return nil
}

// render encodes one "key = value" line with TOML quoting rules.
func render(key string, val any) (string, error) {
	out, err := toml.Marshal(map[string]any{key: val})
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", key, err)
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// touch sets updated_at in the [status] table when that table has a header.
func touch(lines []string, today string) ([]string, error) {
	start, end, ok := findTable(lines, "status")
	if !ok {
		return lines, nil
	}
	lines, _, err := setKey(lines, start, end, "updated_at", today)
	return lines, err
}

// findTable returns the header line of [name] and the index of the next
// table header (or len(lines)).
func findTable(lines []string, name string) (start, end int, ok bool) {
	start = -1
	for i, line := range lines {
		header, isHeader := tableHeader(line)
		if !isHeader {
			continue
		}
		if start >= 0 {
			return start, i, true
		}
		if header == name {
			start = i
		}
	}
	if start < 0 {
		return 0, 0, false
	}
	return start, len(lines), true
}

func tableHeader(line string) (string, bool) {
	s := strings.TrimSpace(line)
	if !strings.HasPrefix(s, "[") || strings.HasPrefix(s, "[[") {
		return "", false
	}
	s, _, _ = strings.Cut(s, "#")
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "]") {
		return "", false
	}
	return strings.ReplaceAll(s[1:len(s)-1], " ", ""), true
}

// setKey replaces key's line inside the table spanning lines[start:end], or
// inserts it after the table's last non-blank line. It returns the new end.
func setKey(lines []string, start, end int, key string, val any) ([]string, int, error) {
	line, err := render(key, val)
	if err != nil {
		return nil, 0, err
	}
	for i := start + 1; i < end; i++ {
		if keyOf(lines[i]) == key {
			indent := lines[i][:len(lines[i])-len(strings.TrimLeft(lines[i], " \t"))]
			lines[i] = indent + line
			return lines, end, nil
		}
	}
	at := end
	for at > start+1 && strings.TrimSpace(lines[at-1]) == "" {
		at--
	}
	lines = slices.Insert(lines, at, line)
	return lines, end + 1, nil
}

func keyOf(line string) string {
	k, _, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return ""
	}
	return strings.TrimSpace(k)
}

// finish checks the rewritten document still reads as a unit.
func finish(content, path string, added []string) (*Edit, error) {
	if _, err := reader.ReadUnit(strings.NewReader(content), path); err != nil {
		return nil, fmt.Errorf("status edit produced an unreadable document: %w", err)
	}
	return &Edit{Content: []byte(content), Added: added}, nil
}
