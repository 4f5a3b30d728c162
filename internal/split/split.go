// Package split carves one Spec IR unit into per-module units grouped into
// packages, and writes the manifest that ties them together.
package split

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/phobologic/surc/internal/diag"
	"github.com/phobologic/surc/internal/manifest"
	"github.com/phobologic/surc/internal/model"
	"github.com/phobologic/surc/internal/reader"
)

// File is one document of a plan. Path is relative to the plan directory.
type File struct {
	Path    string   `json:"path"`
	Package string   `json:"package,omitempty"`
	Module  string   `json:"module,omitempty"`
	Decls   []string `json:"decls,omitempty"`
	Content []byte   `json:"-"`
}

// Plan is every file a split writes.
type Plan struct {
	Dir         string
	Manifest    File
	Units       []File
	ProjectName string
	Warnings    []diag.Diagnostic
}

// Files returns the units followed by the manifest.
func (p *Plan) Files() []File {
	return append(append([]File(nil), p.Units...), p.Manifest)
}

// ManifestPath is where the manifest is written.
func (p *Plan) ManifestPath() string {
	return filepath.Join(p.Dir, p.Manifest.Path)
}

// Build plans the split of u. Configuration problems that only show against
// the unit, such as unknown modules or two modules sharing an output file,
// are returned as error diagnostics and no plan is built.
func Build(u *model.Unit, cfg *Config) (*Plan, []diag.Diagnostic, error) {
	x := newIndex(u)

	type target struct {
		pkg  string
		mod  *model.Mod
		path string
	}
	var (
		diags   []diag.Diagnostic
		targets []target
	)
	owners := map[string]string{filepath.Clean(cfg.Manifest): "the manifest"}
	for _, name := range cfg.PackageNames() {
		pkg := cfg.Packages[name]
		for _, a := range pkg.Modules {
			loc := fmt.Sprintf("split.packages.%s(%s)", name, a.Mod)
			owner := fmt.Sprintf("%s in package %s", a.Mod, name)

			m, err := x.mod(a.Mod)
			if err != nil {
				diags = append(diags, diag.Errorf(diag.ModNotFound, loc, "%s: %v", u.Path, err))
			}
			path := filepath.Join(pkg.Root, a.File)
			if prev, dup := owners[path]; dup {
				diags = append(diags, diag.Errorf(diag.DuplicateOutput, loc,
					"%s is the output of both %s and %s", filepath.ToSlash(path), prev, owner))
				continue
			}
			owners[path] = owner
			if m != nil {
				targets = append(targets, target{pkg: name, mod: m, path: path})
			}
		}
	}
	if diag.HasErrors(diags) {
		return nil, diags, nil
	}

	p := &Plan{Dir: cfg.OutputDir, ProjectName: cfg.ProjectName}
	copies := make(map[string][]string)
	for _, t := range targets {
		schemas, funcs := x.closure(t.mod)
		doc := x.document(t.pkg, cfg.Packages[t.pkg].Namespace, t.mod, schemas, funcs)
		content, err := encode(fmt.Sprintf("# mod.%s, split from %s by surc.\n\n", t.mod.Name, filepath.Base(u.Path)), doc)
		if err != nil {
			return nil, nil, fmt.Errorf("rendering %s: %w", t.path, err)
		}
		if _, err := reader.ReadUnit(bytes.NewReader(content), t.path); err != nil {
			return nil, nil, fmt.Errorf("rendering %s: %w", t.path, err)
		}

		f := File{Path: t.path, Package: t.pkg, Module: t.mod.ID(), Content: content}
		for _, s := range schemas {
			f.Decls = append(f.Decls, "schema."+s)
		}
		for _, fn := range funcs {
			f.Decls = append(f.Decls, "func."+fn)
		}
		for _, id := range f.Decls {
			copies[id] = append(copies[id], filepath.ToSlash(t.path))
		}
		f.Decls = append(f.Decls, t.mod.ID())
		p.Units = append(p.Units, f)
	}

	for _, id := range sortedKeys(copies) {
		if files := copies[id]; len(files) > 1 {
			p.Warnings = append(p.Warnings, diag.Warnf(diag.SharedSymbolCopied, id,
				"%s is copied into %d files: %s", id, len(files), strings.Join(files, ", ")))
		}
	}

	content, err := renderManifest(cfg)
	if err != nil {
		return nil, nil, err
	}
	p.Manifest = File{Path: filepath.Clean(cfg.Manifest), Content: content}
	return p, nil, nil
}

// Write creates every file of the plan. Existing files are never
// overwritten: if any target exists nothing is written and each conflict is
// returned as an error diagnostic.
func (p *Plan) Write() ([]diag.Diagnostic, error) {
	files := p.Files()
	var conflicts []diag.Diagnostic
	for _, f := range files {
		path := filepath.Join(p.Dir, f.Path)
		_, err := os.Lstat(path)
		if err == nil {
			conflicts = append(conflicts, diag.Errorf(diag.WriteConflict, path, "%s already exists", path))
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if len(conflicts) > 0 {
		return conflicts, nil
	}

	for _, f := range files {
		path := filepath.Join(p.Dir, f.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
		}
		if err := writeNew(path, f.Content); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func writeNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

type index struct {
	unit    *model.Unit
	schemas map[string]*model.Schema
	funcs   map[string]*model.Func
	mods    map[string]*model.Mod
}

func newIndex(u *model.Unit) *index {
	x := &index{
		unit:    u,
		schemas: make(map[string]*model.Schema),
		funcs:   make(map[string]*model.Func),
		mods:    make(map[string]*model.Mod),
	}
	for _, s := range u.Schemas() {
		x.schemas[s.Name] = s
	}
	for _, f := range u.Funcs() {
		x.funcs[f.Name] = f
	}
	for _, m := range u.Mods() {
		x.mods[m.Name] = m
	}
	return x
}

func (x *index) mod(ref string) (*model.Mod, error) {
	name, ok := strings.CutPrefix(ref, "mod.")
	if !ok {
		return nil, fmt.Errorf("module %q must be written as mod.<name>", ref)
	}
	m, ok := x.mods[name]
	if !ok {
		return nil, fmt.Errorf("module %s is not declared", ref)
	}
	return m, nil
}

// closure returns the local schemas and funcs m needs, sorted: the ones it
// lists, the schemas its funcs read and write, and every schema reachable
// from those through edge, boundary and space links. References to other
// units are left alone.
func (x *index) closure(m *model.Mod) (schemas, funcs []string) {
	ss := make(map[string]bool)
	ff := make(map[string]bool)
	var queue []string
	addSchema := func(ref string) {
		name, ok := strings.CutPrefix(ref, "schema.")
		if !ok || x.schemas[name] == nil || ss[name] {
			return
		}
		ss[name] = true
		queue = append(queue, name)
	}
	addFunc := func(ref string) {
		name, ok := strings.CutPrefix(ref, "func.")
		if !ok || x.funcs[name] == nil || ff[name] {
			return
		}
		ff[name] = true
		f := x.funcs[name]
		for _, s := range f.Input {
			addSchema(s)
		}
		for _, s := range f.Output {
			addSchema(s)
		}
	}

	for _, s := range m.Schemas {
		addSchema(s)
	}
	for _, f := range m.Funcs {
		addFunc(f)
	}
	for _, f := range m.Pipeline {
		addFunc(f)
	}
	for len(queue) > 0 {
		s := x.schemas[queue[0]]
		queue = queue[1:]
		addSchema(s.From)
		addSchema(s.To)
		addSchema(s.Base)
		for _, over := range s.Over {
			addSchema(over)
		}
	}
	return sortedKeys(ss), sortedKeys(ff)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func renderManifest(cfg *Config) ([]byte, error) {
	dir := filepath.Dir(filepath.Clean(cfg.Manifest))
	m := manifest.Manifest{
		Project:  manifest.Project{Name: cfg.ProjectName},
		Paths:    manifest.Paths{IRRoot: cfg.IRRoot},
		Packages: make(map[string]manifest.Package, len(cfg.Packages)),
	}
	for name, pkg := range cfg.Packages {
		root, err := filepath.Rel(dir, filepath.Clean(pkg.Root))
		if err != nil {
			return nil, fmt.Errorf("package %q: %w", name, err)
		}
		m.Packages[name] = manifest.Package{
			Root:      filepath.ToSlash(root),
			Namespace: pkg.Namespace,
			Depends:   pkg.Depends,
		}
	}

	content, err := encode(fmt.Sprintf("# Project manifest for %s, generated by surc split.\n\n", cfg.ProjectName), m)
	if err != nil {
		return nil, fmt.Errorf("rendering manifest: %w", err)
	}
	if _, err := manifest.Decode(bytes.NewReader(content)); err != nil {
		return nil, err
	}
	return content, nil
}

func encode(header string, v any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(header)
	enc := toml.NewEncoder(&buf)
	enc.Indent = ""
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
