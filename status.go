package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/phobologic/surc/internal/model"
	"github.com/phobologic/surc/internal/reader"
	"github.com/phobologic/surc/internal/status"
	"github.com/phobologic/surc/internal/toon"
)

func (c *cli) statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Track implementation status of a unit's modules",
		Long: `Manage the [status] section of a Spec IR unit. Each module gets a
[status.mod.<name>] table with a state (todo, skeleton, partial, done,
blocked), a coverage between 0.0 and 1.0 and free-form notes.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "init <unit.toml>",
			Short: "Add a status section listing every module as todo",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.statusInit(args[0])
			},
		},
		&cobra.Command{
			Use:   "sync <unit.toml>",
			Short: "Add todo entries for modules the status section is missing",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.statusSync(args[0])
			},
		},
		c.statusSetCmd(),
		&cobra.Command{
			Use:   "list <unit.toml>",
			Short: "List every module with its status",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				u, err := reader.ReadUnitFile(args[0])
				if err != nil {
					return err
				}
				return c.statusList(u)
			},
		},
		&cobra.Command{
			Use:   "show <module> <unit.toml>",
			Short: "Show the status of one module",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				u, err := reader.ReadUnitFile(args[1])
				if err != nil {
					return err
				}
				m, err := findMod(u, args[0])
				if err != nil {
					return err
				}
				return c.statusShow(u, m)
			},
		},
	)
	return cmd
}

func (c *cli) statusSetCmd() *cobra.Command {
	var (
		state, notes string
		coverage     float64
	)
	cmd := &cobra.Command{
		Use:     "set <module> <unit.toml>",
		Short:   "Update the status of one module",
		Example: "  surc status set mod.book_api api.toml --coverage 0.6 --notes \"create/get done\"",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ch status.Change
			if cmd.Flags().Changed("state") {
				ch.State = &state
			}
			if cmd.Flags().Changed("coverage") {
				ch.Coverage = &coverage
			}
			if cmd.Flags().Changed("notes") {
				ch.Notes = &notes
			}
			path := args[1]
			_, err := editFile(path, func(src []byte) (*status.Edit, error) {
				return status.Set(src, path, args[0], ch, today())
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "✓ Updated status for mod.%s\n", strings.TrimPrefix(args[0], "mod."))
			return nil
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "state (todo, skeleton, partial, done, blocked)")
	cmd.Flags().Float64Var(&coverage, "coverage", 0, "coverage from 0.0 to 1.0")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	return cmd
}

func (c *cli) statusInit(path string) error {
	edit, err := editFile(path, func(src []byte) (*status.Edit, error) {
		return status.Init(src, path, today())
	})
	if errors.Is(err, status.ErrExists) {
		fmt.Fprintf(c.stdout, "Status section already exists in %s\n", path)
		return nil
	}
	if errors.Is(err, status.ErrNoModules) {
		return fmt.Errorf("%w in %s", err, path)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "✓ Initialized status section in %s\n", path)
	writeAdded(c.stdout, "Modules added", edit.Added)
	return nil
}

func (c *cli) statusSync(path string) error {
	edit, err := editFile(path, func(src []byte) (*status.Edit, error) {
		return status.Sync(src, path, today())
	})
	if err != nil {
		return err
	}
	if len(edit.Added) == 0 {
		fmt.Fprintln(c.stdout, "✓ All modules already have status entries")
		return nil
	}
	fmt.Fprintf(c.stdout, "✓ Synced status section in %s\n", path)
	writeAdded(c.stdout, "Added modules", edit.Added)
	return nil
}

// editFile applies fn to the file at path and writes the result back when
// the content changed.
func editFile(path string, fn func(src []byte) (*status.Edit, error)) (*status.Edit, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading unit: %w", err)
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading unit: %w", err)
	}
	edit, err := fn(src)
	if errors.Is(err, status.ErrNoStatus) {
		return nil, fmt.Errorf("%w in %s (run 'surc status init %s' first)", err, path, path)
	}
	if err != nil {
		return nil, err
	}
	if string(edit.Content) == string(src) {
		return edit, nil
	}
	if err := os.WriteFile(path, edit.Content, info.Mode().Perm()); err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}
	return edit, nil
}

func (c *cli) statusList(u *model.Unit) error {
	entries := status.Entries(u)
	var updated string
	if st := u.Status(); st != nil {
		updated = st.UpdatedAt
	}
	switch c.format {
	case formatJSON:
		if entries == nil {
			entries = []status.Entry{}
		}
		return writeJSON(c.stdout, struct {
			Unit      string         `json:"unit"`
			UpdatedAt string         `json:"updated_at,omitempty"`
			Modules   []status.Entry `json:"modules"`
		}{u.Path, updated, entries})
	case formatTOON:
		fmt.Fprintln(c.stdout, toon.EncodeStatus(updated, entries))
		return nil
	}

	if len(entries) == 0 {
		fmt.Fprintf(c.stdout, "No modules found in %s\n", u.Path)
		return nil
	}
	fmt.Fprintf(c.stdout, "Modules in %s:\n\n", u.Path)
	for _, e := range entries {
		fmt.Fprintf(c.stdout, "  %-24s", e.Module)
		if !e.Tracked {
			fmt.Fprintln(c.stdout, " (no status)")
			continue
		}
		fmt.Fprintf(c.stdout, " %-12s", stateLabel(e.State))
		if e.Coverage > 0 {
			fmt.Fprintf(c.stdout, " %3.0f%%", e.Coverage*100)
		} else {
			fmt.Fprint(c.stdout, "     ")
		}
		if e.Notes != "" {
			fmt.Fprintf(c.stdout, "  %s", e.Notes)
		}
		fmt.Fprintln(c.stdout)
	}
	if updated != "" {
		fmt.Fprintf(c.stdout, "\nLast updated: %s\n", updated)
	}
	return nil
}

func (c *cli) statusShow(u *model.Unit, m *model.Mod) error {
	st := u.Status()
	ms, tracked := st.Module(m.Name)
	if c.format != formatText {
		return c.inspect(m, ms, st)
	}
	fmt.Fprintf(c.stdout, "Module: %s\n", m.ID())
	fmt.Fprintf(c.stdout, "Purpose: %s\n\n", m.Purpose)
	switch {
	case st == nil:
		fmt.Fprintln(c.stdout, "Status: (no status section)")
	case !tracked:
		fmt.Fprintln(c.stdout, "Status: (not set)")
	default:
		fmt.Fprintln(c.stdout, "Status:")
		writeModuleStatus(c.stdout, ms, st.UpdatedAt)
	}
	return nil
}

func stateLabel(state string) string {
	switch state {
	case model.StateDone:
		return "✓ done"
	case model.StatePartial:
		return "◐ partial"
	case model.StateSkeleton:
		return "◯ skeleton"
	case model.StateBlocked:
		return "✗ blocked"
	case model.StateTodo:
		return "☐ todo"
	}
	return state
}

func writeAdded(w io.Writer, label string, names []string) {
	fmt.Fprintf(w, "  %s: %d\n", label, len(names))
	for _, name := range names {
		fmt.Fprintf(w, "    - mod.%s (todo)\n", name)
	}
}

func today() string {
	return time.Now().Format(time.DateOnly)
}
