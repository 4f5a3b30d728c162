package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/phobologic/surc/internal/analyze"
	"github.com/phobologic/surc/internal/diag"
	"github.com/phobologic/surc/internal/reader"
	"github.com/phobologic/surc/internal/split"
	"github.com/phobologic/surc/internal/toon"
)

func (c *cli) splitCmd() *cobra.Command {
	var configPath string
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "split <unit.toml>",
		Short: "Split one unit into per-module units and a project manifest",
		Long: `Carve each module of a unit into its own file, grouped into the packages
the config's [split] section declares. Every file gets the schemas and funcs
its module needs; symbols several modules need are copied into each. A
manifest for the new project is written alongside, and the project is
checked afterwards unless split.behavior.run_project_check is false.

Existing files are never overwritten.`,
		Example: "  surc split api.toml --config split.toml",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := reader.ReadUnitFile(args[0])
			if err != nil {
				return err
			}
			cfg, err := split.LoadConfig(configPath)
			if err != nil {
				return err
			}
			p, diags, err := split.Build(u, cfg)
			if err != nil {
				return err
			}
			if diag.HasErrors(diags) {
				return c.diagnostics(diags)
			}
			if dryRun {
				for _, f := range p.Files() {
					fmt.Fprintf(c.stdout, "==> %s <==\n%s\n", f.Path, f.Content)
				}
				return nil
			}

			conflicts, err := p.Write()
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return c.diagnostics(conflicts)
			}
			c.logger().Debug("Split unit", slog.String("unit", u.Path), slog.Int("files", len(p.Units)))

			var r *analyze.Report
			if cfg.Behavior.ProjectCheck() {
				r, err = analyze.Project(cmd.Context(), p.ManifestPath(), analyze.Options{Logger: c.logger()})
				if err != nil {
					return err
				}
			}
			return c.splitResult(u.Path, p, r)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "split config holding a [split] section")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the files without writing anything")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

// splitResult reports the written files, the copy warnings and, when r is
// set, the project check of the new layout.
func (c *cli) splitResult(input string, p *split.Plan, r *analyze.Report) error {
	diags := append([]diag.Diagnostic(nil), p.Warnings...)
	if r != nil {
		diags = append(diags, r.Diagnostics()...)
	}

	switch c.format {
	case formatJSON:
		if err := writeJSON(c.stdout, struct {
			Manifest    string            `json:"manifest"`
			Units       []split.File      `json:"units"`
			Checked     bool              `json:"checked"`
			Diagnostics []diag.Diagnostic `json:"diagnostics"`
		}{p.ManifestPath(), p.Units, r != nil, nonNil(diags)}); err != nil {
			return err
		}
	case formatTOON:
		fmt.Fprintln(c.stdout, toon.EncodeDiagnostics(diags))
	default:
		fmt.Fprintf(c.stdout, "✓ Split %s into %d units\n", input, len(p.Units))
		for _, f := range p.Units {
			fmt.Fprintf(c.stdout, "  %s (%s, %s)\n", f.Path, f.Package, f.Module)
		}
		fmt.Fprintf(c.stdout, "  Manifest: %s\n\n", p.ManifestPath())
		if len(p.Warnings) > 0 {
			writeDiagnosticsText(c.stdout, p.Warnings)
			fmt.Fprintln(c.stdout)
		}
		if r != nil {
			fmt.Fprintf(c.stdout, "Project: %s (%d units)\n\n", r.Manifest.Project.Name, len(r.Units))
			writeDiagnosticsText(c.stdout, r.Diagnostics())
		}
	}
	if diag.HasErrors(diags) {
		return errFindings
	}
	return nil
}
