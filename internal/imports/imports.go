// Package imports parses unit import directives into resolution contexts.
package imports

import (
	"strings"

	"github.com/phobologic/surc/internal/assign"
	"github.com/phobologic/surc/internal/diag"
	"github.com/phobologic/surc/internal/manifest"
	"github.com/phobologic/surc/internal/model"
)

// Import is one package made visible to a unit, optionally under an alias.
type Import struct {
	Package string
	Alias   string
}

// Context is everything reference resolution needs to know about a unit
// beyond the symbol table.
type Context struct {
	Path        string
	SelfPackage string
	Namespace   string
	Imports     []Import
}

// Contexts builds an import context for every unit. packages maps unit path to
// the assigned package; a unit missing from it falls back to its declared
// package, then to the default package.
func Contexts(m *manifest.Manifest, packages map[string]string, units []*model.Unit) ([]*Context, []diag.Diagnostic) {
	var (
		contexts []*Context
		diags    []diag.Diagnostic
	)

	for _, u := range units {
		self, ok := packages[u.Path]
		if !ok {
			self = u.Package
		}
		if self == "" {
			self = assign.DefaultPackage
		}

		ctx := &Context{Path: u.Path, SelfPackage: self, Namespace: u.Namespace}
		for _, raw := range u.Imports {
			pkg, alias, ok := Parse(raw.Target)
			if !ok {
				diags = append(diags, diag.Errorf(diag.ImportSyntax, u.Path,
					"Invalid import syntax '%s'", raw.Target))
				continue
			}
			if m != nil && len(m.Packages) > 0 && !m.HasPackage(pkg) {
				diags = append(diags, diag.Errorf(diag.ImportUnknownPackage, u.Path,
					"Unknown import package '%s'", pkg))
				continue
			}
			if alias == "" {
				alias = raw.Alias
			}
			ctx.Imports = append(ctx.Imports, Import{Package: pkg, Alias: alias})
		}
		contexts = append(contexts, ctx)
	}

	return contexts, diags
}

// Parse splits "<package>" or "<package> as <alias>". The keyword is
// case-insensitive.
func Parse(raw string) (pkg, alias string, ok bool) {
	parts := strings.Fields(raw)
	switch {
	case len(parts) == 1:
		return parts[0], "", true
	case len(parts) == 3 && strings.EqualFold(parts[1], "as"):
		return parts[0], parts[2], true
	}
	return "", "", false
}

// ByPath indexes contexts by unit path.
func ByPath(contexts []*Context) map[string]*Context {
	out := make(map[string]*Context, len(contexts))
	for _, c := range contexts {
		out[c.Path] = c
	}
	return out
}

// Resolve maps a reference prefix to a concrete package: the unit's own
// package, its namespace, or an import's alias or package name.
func (c *Context) Resolve(prefix string) (string, bool) {
	if prefix == c.SelfPackage {
		return prefix, true
	}
	if c.Namespace != "" && prefix == c.Namespace {
		return c.SelfPackage, true
	}
	for _, imp := range c.Imports {
		if (imp.Alias != "" && imp.Alias == prefix) || imp.Package == prefix {
			return imp.Package, true
		}
	}
	return "", false
}
