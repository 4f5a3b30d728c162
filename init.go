package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/surc/internal/manifest"
)

const starterUnitName = "example.toml"

func (c *cli) initCmd() *cobra.Command {
	var dryRun bool
	var name string
	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a starter " + manifest.FileName + " and IR directory",
		Long: `Write a starter project manifest and an ir/ directory holding one example
unit. An existing manifest is never overwritten.

dir defaults to the current directory.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return c.initProject(dir, name, dryRun)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the manifest without writing anything")
	cmd.Flags().StringVar(&name, "name", "", "project name (default: directory name)")
	return cmd
}

func (c *cli) initProject(dir, name string, dryRun bool) error {
	if name == "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return err
		}
		name = filepath.Base(abs)
	}
	text := starterManifest(name)

	if dryRun {
		fmt.Fprint(c.stdout, text)
		return nil
	}

	path := filepath.Join(dir, manifest.FileName)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	irDir := filepath.Join(dir, "ir")
	_, statErr := os.Stat(irDir)
	if err := os.MkdirAll(irDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", irDir, err)
	}
	if errors.Is(statErr, fs.ErrNotExist) {
		unit := filepath.Join(irDir, starterUnitName)
		if err := os.WriteFile(unit, []byte(starterUnit(name)), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", unit, err)
		}
	}

	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(c.stderr, "wrote %s\n", path)
	return nil
}

// starterManifest returns the manifest written by init. The packages table
// is left commented out, so every unit falls into the default package.
func starterManifest(name string) string {
	return `# surc project manifest
[project]
name = ` + quoteTOML(name) + `

[paths]
ir_root = "ir"
exclude = ["**/drafts/**"]
# deploy = ["ir/deploy.toml"]

# Each package owns the units under its root. Units may also name their
# package explicitly with a top-level package = "..." entry.
#
# [packages.core]
# root = "ir/core"
# namespace = "core"
# depends = []
`
}

func starterUnit(name string) string {
	ns := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '_'
	}, name)
	return `namespace = ` + quoteTOML(ns) + `

[schema.item]
kind = "node"
type = "Item"

[func.create_item]
intent = "Create an item"
input  = []
output = ["schema.item"]

[mod.items]
purpose  = "Item management"
schemas  = ["schema.item"]
funcs    = ["func.create_item"]
pipeline = ["func.create_item"]
`
}

func quoteTOML(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(s) + `"`
}
