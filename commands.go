package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/phobologic/surc/internal/analyze"
	"github.com/phobologic/surc/internal/codegen"
	"github.com/phobologic/surc/internal/diag"
	"github.com/phobologic/surc/internal/drift"
	"github.com/phobologic/surc/internal/reader"
	"github.com/phobologic/surc/internal/toon"
	"github.com/phobologic/surc/internal/watch"
)

func (c *cli) codegenCmd() *cobra.Command {
	var platform, output string
	cmd := &cobra.Command{
		Use:   "codegen <deploy.toml>",
		Short: "Generate CI configuration from a Deploy IR unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := reader.ReadDeployFile(args[0])
			if err != nil {
				return err
			}
			out, err := codegen.Generate(d, platform)
			var invalid *codegen.InvalidError
			if errors.As(err, &invalid) {
				writeDiagnosticsText(c.stderr, invalid.Diagnostics)
				return err
			}
			if err != nil {
				return err
			}
			if output == "" {
				_, err = c.stdout.Write(out)
				return err
			}
			if err := os.WriteFile(output, out, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			fmt.Fprintf(c.stdout, "Wrote %s configuration to %s\n", platform, output)
			return nil
		},
	}
	cmd.Flags().StringVar(&platform, "platform", codegen.GitHub, "CI platform (github, gitlab)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func (c *cli) driftCmd() *cobra.Command {
	var opts drift.Options
	var workspace string
	cmd := &cobra.Command{
		Use:   "drift <unit.toml>",
		Short: "Compare a unit's declarations against source code",
		Long: `Compare the schemas and funcs a unit declares against the classes,
functions and methods defined in a source tree. impl.bind, impl.lang and
impl.path narrow the search for each declaration.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := reader.ReadUnitFile(args[0])
			if err != nil {
				return err
			}
			opts.Logger = c.logger()
			res, err := drift.Check(cmd.Context(), u, workspace, opts)
			if err != nil {
				return err
			}
			return c.drift(res)
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", ".", "source tree to scan")
	cmd.Flags().StringVar(&opts.Module, "module", "", "only check the declarations reachable from one mod")
	cmd.Flags().StringVar(&opts.Language, "lang", "", "only scan one language (go, python, ruby)")
	return cmd
}

func (c *cli) drift(res *drift.Result) error {
	switch c.format {
	case formatTOON:
		fmt.Fprintln(c.stdout, toon.EncodeDrift(res))
	case formatJSON:
		type finding struct {
			ID        string   `json:"id"`
			Name      string   `json:"name"`
			Status    string   `json:"status"`
			Locations []string `json:"locations"`
		}
		findings := make([]finding, 0, len(res.Findings))
		for _, f := range res.Findings {
			locs := make([]string, 0, len(f.Candidates))
			for _, s := range f.Candidates {
				locs = append(locs, drift.Location(s))
			}
			findings = append(findings, finding{f.Expected.ID, f.Expected.SearchName(), string(f.Status), locs})
		}
		if err := writeJSON(c.stdout, struct {
			Matched     int               `json:"matched"`
			Missing     int               `json:"missing"`
			Ambiguous   int               `json:"ambiguous"`
			Findings    []finding         `json:"findings"`
			Diagnostics []diag.Diagnostic `json:"diagnostics"`
		}{res.Matched, res.Count(drift.Missing), res.Count(drift.Ambiguous), findings, nonNil(res.Diagnostics)}); err != nil {
			return err
		}
	default:
		for _, f := range res.Findings {
			if f.Status == drift.Matched {
				fmt.Fprintf(c.stdout, "✓ %s → %s\n", f.Expected.ID, drift.Location(f.Candidates[0]))
			}
		}
		if res.HasIssues() {
			writeDiagnosticsText(c.stdout, res.Diagnostics)
		}
		fmt.Fprintf(c.stdout, "\nSummary: %d matched, %d missing, %d ambiguous\n",
			res.Matched, res.Count(drift.Missing), res.Count(drift.Ambiguous))
		if res.HasIssues() {
			fmt.Fprintln(c.stdout, "⚠ Drift detected: IR and implementation are out of sync.")
		} else {
			fmt.Fprintln(c.stdout, "✅ No drift detected! IR and implementation are in sync.")
		}
	}
	if diag.HasErrors(res.Diagnostics) {
		return errFindings
	}
	return nil
}

func (c *cli) watchCmd() *cobra.Command {
	var debounce = watch.DefaultDebounce
	cmd := &cobra.Command{
		Use:   "watch [manifest]",
		Short: "Re-run project analysis whenever a unit changes",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w, err := watch.New(watch.Config{
				ManifestPath: manifestArg(args),
				Debounce:     debounce,
				Logger:       c.logger(),
			})
			if err != nil {
				return err
			}
			return w.Run(ctx, func(r *analyze.Report, err error) {
				if err != nil {
					fmt.Fprintf(c.stderr, "Error: %v\n", err)
					return
				}
				if err := c.report(r); err != nil && !errors.Is(err, errFindings) {
					fmt.Fprintf(c.stderr, "Error: %v\n", err)
				}
				fmt.Fprintln(c.stdout)
			})
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before re-running")
	return cmd
}
