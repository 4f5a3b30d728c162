package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/surc/internal/model"
	"github.com/phobologic/surc/internal/reader"
	"github.com/phobologic/surc/internal/toon"
)

func (c *cli) parseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <unit.toml>",
		Short: "Print the declaration tree of a Spec IR unit as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := reader.ReadUnitFile(args[0])
			if err != nil {
				return err
			}
			return writeJSON(c.stdout, newTree(u))
		},
	}
}

// tree is the JSON form of a unit. Sections keep document order.
type tree struct {
	Path      string         `json:"path"`
	Package   string         `json:"package,omitempty"`
	Namespace string         `json:"namespace,omitempty"`
	Imports   []model.Import `json:"imports"`
	Requires  []string       `json:"requires"`
	Sections  []section      `json:"sections"`
}

type section struct {
	Kind string     `json:"kind"`
	Decl model.Decl `json:"decl"`
}

// sectionKind names the declaration it visits.
type sectionKind string

func (k *sectionKind) VisitMeta(*model.Meta)     { *k = "meta" }
func (k *sectionKind) VisitSchema(*model.Schema) { *k = "schema" }
func (k *sectionKind) VisitFunc(*model.Func)     { *k = "func" }
func (k *sectionKind) VisitMod(*model.Mod)       { *k = "mod" }
func (k *sectionKind) VisitStatus(*model.Status) { *k = "status" }

func newTree(u *model.Unit) tree {
	t := tree{
		Path:      u.Path,
		Package:   u.Package,
		Namespace: u.Namespace,
		Imports:   u.Imports,
		Requires:  u.Requires,
		Sections:  make([]section, 0, len(u.Decls)),
	}
	if t.Imports == nil {
		t.Imports = []model.Import{}
	}
	if t.Requires == nil {
		t.Requires = []string{}
	}
	for _, d := range u.Decls {
		var kind sectionKind
		d.Accept(&kind)
		t.Sections = append(t.Sections, section{Kind: string(kind), Decl: d})
	}
	return t
}

func (c *cli) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "inspect <module> <unit.toml>",
		Short:   "Show a module's schemas, funcs, pipeline and status",
		Example: "  surc inspect mod.todo_api ir/todo_api.toml",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := reader.ReadUnitFile(args[1])
			if err != nil {
				return err
			}
			m, err := findMod(u, args[0])
			if err != nil {
				return err
			}
			ms, _ := u.Status().Module(m.Name)
			return c.inspect(m, ms, u.Status())
		},
	}
}

// findMod looks up a module by name or ref, listing the available modules
// when it is missing.
func findMod(u *model.Unit, ref string) (*model.Mod, error) {
	if m := u.Mod(ref); m != nil {
		return m, nil
	}
	available := make([]string, 0, len(u.Mods()))
	for _, m := range u.Mods() {
		available = append(available, m.ID())
	}
	name := strings.TrimPrefix(ref, "mod.")
	if len(available) == 0 {
		return nil, fmt.Errorf("module 'mod.%s' not found in %s (no modules declared)", name, u.Path)
	}
	return nil, fmt.Errorf("module 'mod.%s' not found in %s (available: %s)", name, u.Path, strings.Join(available, ", "))
}

func (c *cli) inspect(m *model.Mod, ms *model.ModuleStatus, st *model.Status) error {
	switch c.format {
	case formatJSON:
		var updated string
		if ms != nil {
			updated = st.UpdatedAt
		}
		return writeJSON(c.stdout, struct {
			Module    string              `json:"module"`
			Purpose   string              `json:"purpose"`
			Schemas   []string            `json:"schemas"`
			Funcs     []string            `json:"funcs"`
			Pipeline  []string            `json:"pipeline"`
			Status    *model.ModuleStatus `json:"status,omitempty"`
			UpdatedAt string              `json:"updated_at,omitempty"`
		}{m.ID(), m.Purpose, nonNilStrings(m.Schemas), nonNilStrings(m.Funcs), nonNilStrings(m.Pipeline), ms, updated})
	case formatTOON:
		fmt.Fprintln(c.stdout, toon.EncodeModule(m, ms))
		return nil
	}
	writeInspect(c.stdout, m, ms, st)
	return nil
}

func writeInspect(w io.Writer, m *model.Mod, ms *model.ModuleStatus, st *model.Status) {
	fmt.Fprintf(w, "Module: %s\n\n", m.ID())
	if m.Purpose != "" {
		fmt.Fprintf(w, "Purpose: %s\n\n", m.Purpose)
	}
	writeList(w, fmt.Sprintf("Schemas (%d):", len(m.Schemas)), m.Schemas)
	writeList(w, fmt.Sprintf("Functions (%d):", len(m.Funcs)), m.Funcs)
	if len(m.Pipeline) > 0 {
		fmt.Fprintf(w, "Pipeline (%d steps):\n", len(m.Pipeline))
		for i, step := range m.Pipeline {
			if i > 0 {
				fmt.Fprintln(w, "    ↓")
			}
			fmt.Fprintf(w, "  %s\n", step)
		}
		fmt.Fprintln(w)
	}
	if ms != nil {
		fmt.Fprintln(w, "Status:")
		writeModuleStatus(w, ms, st.UpdatedAt)
		fmt.Fprintln(w)
	}
}

func writeList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(w, title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
	fmt.Fprintln(w)
}

func writeModuleStatus(w io.Writer, ms *model.ModuleStatus, updatedAt string) {
	if ms.State != "" {
		fmt.Fprintf(w, "  State: %s\n", ms.State)
	}
	if ms.Coverage > 0 {
		fmt.Fprintf(w, "  Coverage: %.0f%%\n", ms.Coverage*100)
	}
	if ms.Notes != "" {
		fmt.Fprintf(w, "  Notes: %s\n", ms.Notes)
	}
	if updatedAt != "" {
		fmt.Fprintf(w, "  Updated: %s\n", updatedAt)
	}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
