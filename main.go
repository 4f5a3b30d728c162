// surc checks Spec IR and Deploy IR projects: package assignment, import and
// reference resolution, per-unit and cross-unit checks, plus CI generation and
// implementation drift.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/surc/internal/analyze"
	"github.com/phobologic/surc/internal/diag"
	"github.com/phobologic/surc/internal/manifest"
	"github.com/phobologic/surc/internal/toon"
)

var version = "dev"

// Output formats.
const (
	formatText = "text"
	formatJSON = "json"
	formatTOON = "toon"
)

// errFindings is returned when a command ran to completion but reported
// error diagnostics. The diagnostics have already been written.
var errFindings = errors.New("analysis reported errors")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errFindings) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// cli carries the persistent flags and output streams shared by every
// subcommand.
type cli struct {
	stdout   io.Writer
	stderr   io.Writer
	logLevel string
	format   string
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)
	return root.Execute()
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	cmd := &cobra.Command{
		Use:   "surc",
		Short: "Check Spec IR and Deploy IR projects",
		Long: `surc validates intermediate-representation units describing schemas,
functions, modules and deployment pipelines. It resolves packages, imports and
references across a project and reports every problem it finds in one run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch c.format {
			case formatText, formatJSON, formatTOON:
			default:
				return fmt.Errorf("unknown format %q (supported: %s, %s, %s)", c.format, formatText, formatJSON, formatTOON)
			}
			_, err := c.level()
			return err
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&c.format, "format", formatText, "output format (text, json, toon)")

	cmd.AddCommand(
		c.checkCmd(),
		c.projectCheckCmd(),
		c.deployCheckCmd(),
		c.parseCmd(),
		c.inspectCmd(),
		c.statusCmd(),
		c.splitCmd(),
		c.depsCmd(),
		c.codegenCmd(),
		c.driftCmd(),
		c.watchCmd(),
		c.initCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(c.stdout, "surc %s\n", version)
			},
		},
	)
	return cmd
}

func (c *cli) level() (slog.Level, error) {
	switch strings.ToLower(c.logLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", c.logLevel)
}

func (c *cli) logger() *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: level}))
}

func (c *cli) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <unit.toml>",
		Short: "Check a single Spec IR unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, diags, err := analyze.File(args[0])
			if err != nil {
				return err
			}
			return c.diagnostics(diags)
		},
	}
}

func (c *cli) deployCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy-check <deploy.toml>",
		Short: "Check a single Deploy IR unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, diags, err := analyze.Deploy(args[0])
			if err != nil {
				return err
			}
			return c.diagnostics(diags)
		},
	}
}

func (c *cli) projectCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "project-check [manifest]",
		Short: "Analyze every unit of a project",
		Long:  "Analyze the project described by a manifest (default " + manifest.FileName + ").",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := analyze.Project(cmd.Context(), manifestArg(args), analyze.Options{Logger: c.logger()})
			if err != nil {
				return err
			}
			return c.report(r)
		},
	}
}

func manifestArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return manifest.FileName
}

// diagnostics writes diags in the selected format and returns errFindings if
// any of them is an error.
func (c *cli) diagnostics(diags []diag.Diagnostic) error {
	switch c.format {
	case formatJSON:
		errs, warns := diag.Count(diags)
		if err := writeJSON(c.stdout, struct {
			Errors      int               `json:"errors"`
			Warnings    int               `json:"warnings"`
			Diagnostics []diag.Diagnostic `json:"diagnostics"`
		}{errs, warns, nonNil(diags)}); err != nil {
			return err
		}
	case formatTOON:
		fmt.Fprintln(c.stdout, toon.EncodeDiagnostics(diags))
	default:
		writeDiagnosticsText(c.stdout, diags)
	}
	if diag.HasErrors(diags) {
		return errFindings
	}
	return nil
}

func (c *cli) report(r *analyze.Report) error {
	switch c.format {
	case formatJSON:
		errs, warns := diag.Count(r.Diagnostics())
		units := make([]string, 0, len(r.Units))
		for _, u := range r.Units {
			units = append(units, u.Path)
		}
		if err := writeJSON(c.stdout, struct {
			Project  string                `json:"project"`
			Units    []string              `json:"units"`
			Errors   int                   `json:"errors"`
			Warnings int                   `json:"warnings"`
			Stages   []analyze.StageResult `json:"stages"`
		}{r.Manifest.Project.Name, units, errs, warns, r.Stages}); err != nil {
			return err
		}
	case formatTOON:
		fmt.Fprintln(c.stdout, toon.EncodeReport(r))
	default:
		fmt.Fprintf(c.stdout, "Project: %s (%d units)\n\n", r.Manifest.Project.Name, len(r.Units))
		writeDiagnosticsText(c.stdout, r.Diagnostics())
	}
	if r.HasErrors() {
		return errFindings
	}
	return nil
}

func writeDiagnosticsText(w io.Writer, diags []diag.Diagnostic) {
	if len(diags) == 0 {
		fmt.Fprintln(w, "✓ No issues found")
		return
	}
	for _, d := range diags {
		mark := "⚠"
		if d.Severity == diag.Error {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s [%s] %s\n", mark, d.Kind, d.Message)
		if d.Location != "" {
			fmt.Fprintf(w, "  at %s\n", d.Location)
		}
	}
	errs, warns := diag.Count(diags)
	fmt.Fprintf(w, "---\n%d error(s), %d warning(s)\n", errs, warns)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func nonNil(diags []diag.Diagnostic) []diag.Diagnostic {
	if diags == nil {
		return []diag.Diagnostic{}
	}
	return diags
}
