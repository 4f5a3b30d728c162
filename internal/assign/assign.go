// Package assign maps each Spec IR unit to the one package that owns it.
package assign

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phobologic/surc/internal/diag"
	"github.com/phobologic/surc/internal/manifest"
	"github.com/phobologic/surc/internal/model"
)

// DefaultPackage owns every unit of a manifest that declares no packages.
const DefaultPackage = "default"

// Assignment records the package owning a unit.
type Assignment struct {
	Path    string
	Package string
}

// Packages assigns each unit to a package. A unit either receives exactly one
// Assignment or at least one error diagnostic, never both.
func Packages(m *manifest.Manifest, units []*model.Unit) ([]Assignment, []diag.Diagnostic) {
	var (
		assignments []Assignment
		diags       []diag.Diagnostic
	)

	if len(m.Packages) == 0 {
		for _, u := range units {
			assignments = append(assignments, Assignment{Path: u.Path, Package: DefaultPackage})
		}
		return assignments, diags
	}

	names := m.PackageNames()
	roots := make(map[string]string, len(names))
	for _, name := range names {
		roots[name] = m.PackageRoot(name)
	}

	for _, u := range units {
		if u.Package != "" {
			root, ok := roots[u.Package]
			switch {
			case !ok:
				diags = append(diags, diag.Errorf(diag.PackageUnknown, u.Path,
					"file %s declares unknown package '%s'", u.Path, u.Package))
			case !within(u.Path, root):
				diags = append(diags, diag.Errorf(diag.PackageRootMismatch, u.Path,
					"file %s is not inside the root of package '%s'", u.Path, u.Package))
			default:
				assignments = append(assignments, Assignment{Path: u.Path, Package: u.Package})
			}
			continue
		}

		var matching []string
		for _, name := range names {
			if within(u.Path, roots[name]) {
				matching = append(matching, name)
			}
		}
		sort.Strings(matching)

		switch len(matching) {
		case 0:
			diags = append(diags, diag.Errorf(diag.PackageUnassigned, u.Path,
				"file %s does not fall under any package root and has no package header", u.Path))
		case 1:
			assignments = append(assignments, Assignment{Path: u.Path, Package: matching[0]})
		default:
			diags = append(diags, diag.Errorf(diag.PackageAmbiguous, u.Path,
				"file %s matches multiple package roots: %s", u.Path, strings.Join(matching, ", ")))
		}
	}

	return assignments, diags
}

// ByPath indexes assignments by unit path.
func ByPath(assignments []Assignment) map[string]string {
	out := make(map[string]string, len(assignments))
	for _, a := range assignments {
		out[a.Path] = a.Package
	}
	return out
}

// within reports whether path lies under root, comparing whole path
// components so "ir/user" does not contain "ir/users/a.toml".
// Both sides are made absolute first so an absolute ir_root still matches
// relative package roots.
func within(path, root string) bool {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return false
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absRoot, absPath)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// String renders the assignment for debug logs.
func (a Assignment) String() string {
	return fmt.Sprintf("%s => %s", a.Path, a.Package)
}
