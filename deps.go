package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/surc/internal/analyze"
	"github.com/phobologic/surc/internal/manifest"
	"github.com/phobologic/surc/internal/ranking"
	"github.com/phobologic/surc/internal/toon"
)

type depsOptions struct {
	pkg          string
	module       string
	crossPackage bool
	top          int
}

func (c *cli) depsCmd() *cobra.Command {
	var opts depsOptions
	cmd := &cobra.Command{
		Use:   "deps [manifest]",
		Short: "Show package and module dependencies",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := analyze.Project(cmd.Context(), manifestArg(args), analyze.Options{Logger: c.logger()})
			if err != nil {
				return err
			}
			return c.deps(r, opts)
		},
	}
	cmd.Flags().StringVar(&opts.pkg, "package", "", "show the modules of one package")
	cmd.Flags().StringVar(&opts.module, "module", "", "show dependencies and dependents of one module")
	cmd.Flags().StringVar(&opts.module, "mod", "", "alias for --module")
	cmd.Flags().BoolVar(&opts.crossPackage, "cross-package", false, "list only requires that cross package boundaries")
	cmd.Flags().IntVar(&opts.top, "top", 0, "limit to the N highest ranked modules (0 = all)")
	return cmd
}

func (c *cli) deps(r *analyze.Report, opts depsOptions) error {
	mm := ranking.Build(r.Assigned(), r.ModulePackages())
	if opts.top > 0 {
		mm = ranking.SelectModules(mm, opts.top)
	}

	switch {
	case opts.module != "":
		id := opts.module
		if !strings.HasPrefix(id, "mod.") {
			id = "mod." + id
		}
		m, ok := mm.Module(id)
		if !ok {
			return fmt.Errorf("module '%s' not found", id)
		}
		if c.format != formatText {
			sub := &ranking.ModuleMap{Modules: []ranking.Module{m}}
			sub.Edges = append(mm.Dependencies(id), mm.Dependents(id)...)
			return c.moduleMap(sub)
		}
		writeModule(c.stdout, mm, m)
	case opts.crossPackage:
		edges := mm.CrossPackage()
		if c.format != formatText {
			return c.moduleMap(&ranking.ModuleMap{Edges: edges})
		}
		fmt.Fprintln(c.stdout, "Cross-package dependencies:")
		if len(edges) == 0 {
			fmt.Fprintln(c.stdout, "  No cross-package dependencies found")
		}
		for _, e := range edges {
			fmt.Fprintf(c.stdout, "  %s.%s → %s.%s\n", e.FromPackage, e.From, e.ToPackage, e.To)
		}
	case opts.pkg != "":
		if !r.Manifest.HasPackage(opts.pkg) {
			return fmt.Errorf("package '%s' not found", opts.pkg)
		}
		sub := ranking.FilterByPackage(mm, opts.pkg)
		if c.format != formatText {
			return c.moduleMap(sub)
		}
		writePackage(c.stdout, r.Manifest, opts.pkg, sub)
	default:
		if c.format != formatText {
			return c.moduleMap(mm)
		}
		writePackages(c.stdout, r.Manifest)
	}
	return nil
}

func (c *cli) moduleMap(mm *ranking.ModuleMap) error {
	if c.format == formatTOON {
		fmt.Fprintln(c.stdout, toon.EncodeModules(mm))
		return nil
	}
	if mm.Modules == nil {
		mm.Modules = []ranking.Module{}
	}
	if mm.Edges == nil {
		mm.Edges = []ranking.Edge{}
	}
	return writeJSON(c.stdout, struct {
		Modules  []ranking.Module `json:"modules"`
		Requires []ranking.Edge   `json:"requires"`
	}{mm.Modules, mm.Edges})
}

func namespaceLabel(ns string) string {
	if ns == "" {
		return "<none>"
	}
	return ns
}

func writePackages(w io.Writer, m *manifest.Manifest) {
	fmt.Fprintln(w, "Packages:")
	fmt.Fprintln(w)
	names := m.PackageNames()
	if len(names) == 0 {
		fmt.Fprintln(w, "  No packages defined in manifest")
		return
	}
	for _, name := range names {
		p := m.Packages[name]
		fmt.Fprintf(w, "  %s (namespace: %s)\n", name, namespaceLabel(p.Namespace))
		fmt.Fprintf(w, "    root: %s\n", p.Root)
		if len(p.Depends) > 0 {
			fmt.Fprintln(w, "    depends:")
			for _, d := range p.Depends {
				fmt.Fprintf(w, "      └─> %s\n", d)
			}
		}
		fmt.Fprintln(w)
	}
}

func writePackage(w io.Writer, m *manifest.Manifest, name string, mm *ranking.ModuleMap) {
	fmt.Fprintf(w, "Package: %s (namespace: %s)\n\n", name, namespaceLabel(m.Packages[name].Namespace))
	fmt.Fprintf(w, "Modules (%d):\n", len(mm.Modules))
	if len(mm.Modules) == 0 {
		fmt.Fprintln(w, "  No modules found in this package")
		return
	}
	for _, mod := range mm.Modules {
		fmt.Fprintf(w, "  %s\n", mod.ID)
		for _, e := range mm.Dependencies(mod.ID) {
			switch {
			case e.ToPackage == "":
				fmt.Fprintf(w, "    └─> %s (package unknown)\n", e.To)
			case e.ToPackage != name:
				fmt.Fprintf(w, "    └─> %s (from %s package)\n", e.To, e.ToPackage)
			default:
				fmt.Fprintf(w, "    └─> %s\n", e.To)
			}
		}
	}
}

func writeModule(w io.Writer, mm *ranking.ModuleMap, m ranking.Module) {
	fmt.Fprintf(w, "%s%s\n\n", m.ID, inPackage(m.Package))
	deps := mm.Dependencies(m.ID)
	dependents := mm.Dependents(m.ID)
	if len(deps) == 0 && len(dependents) == 0 {
		fmt.Fprintln(w, "No dependencies or dependents found")
		return
	}
	if len(deps) > 0 {
		fmt.Fprintln(w, "Dependencies:")
		for _, e := range deps {
			fmt.Fprintf(w, "  └─> %s%s\n", e.To, inPackage(e.ToPackage))
		}
	}
	if len(dependents) > 0 {
		if len(deps) > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, "Dependents:")
		for _, e := range dependents {
			fmt.Fprintf(w, "  └─> %s%s\n", e.From, inPackage(e.FromPackage))
		}
	}
}

func inPackage(pkg string) string {
	if pkg == "" {
		return ""
	}
	return " (in " + pkg + " package)"
}
