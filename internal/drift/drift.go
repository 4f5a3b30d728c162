// Package drift compares the schemas and funcs declared in a Spec IR unit
// against the definitions that actually exist in a source tree.
package drift

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/phobologic/surc/internal/diag"
	"github.com/phobologic/surc/internal/discover"
	"github.com/phobologic/surc/internal/lang"
	"github.com/phobologic/surc/internal/model"
	"github.com/phobologic/surc/internal/parse"
)

// AnyLanguage is the impl.lang value that accepts every language.
const AnyLanguage = "either"

// Status is the outcome of matching one expected symbol.
type Status string

const (
	Missing   Status = "missing"
	Matched   Status = "matched"
	Ambiguous Status = "ambiguous"
)

// Expected is a declaration that should exist in code.
type Expected struct {
	ID   string // "schema.user" or "func.create_user"
	Name string // declared name
	Impl model.Impl
}

// IsFunc reports whether the expected symbol is a func declaration.
func (e Expected) IsFunc() bool {
	return strings.HasPrefix(e.ID, "func.")
}

// SearchName is the name looked up in code: impl.bind, else the declared name.
func (e Expected) SearchName() string {
	if e.Impl.Bind != "" {
		return e.Impl.Bind
	}
	return e.Name
}

// AcceptsLanguage reports whether the symbol may be implemented in language.
func (e Expected) AcceptsLanguage(language string) bool {
	return e.Impl.Lang == "" || e.Impl.Lang == AnyLanguage || e.Impl.Lang == language
}

// Finding pairs an expected symbol with its candidates in code.
type Finding struct {
	Expected   Expected
	Status     Status
	Candidates []model.CodeSymbol
}

// Result is the outcome of a drift check.
type Result struct {
	Findings    []Finding
	Matched     int
	Diagnostics []diag.Diagnostic
}

// HasIssues reports whether any symbol is missing or ambiguous.
func (r *Result) HasIssues() bool {
	return len(r.Diagnostics) > 0
}

// Count returns the number of findings with status s.
func (r *Result) Count(s Status) int {
	n := 0
	for _, f := range r.Findings {
		if f.Status == s {
			n++
		}
	}
	return n
}

// Options configures a drift check.
type Options struct {
	// Module restricts the check to the reference closure of one mod.
	Module string
	// Language restricts both the source files scanned and the expected
	// symbols checked. Empty means every registered language.
	Language string
	Logger   *slog.Logger
}

// Check extracts expected symbols from u, scans the source tree under
// workspace and matches the two.
func Check(ctx context.Context, u *model.Unit, workspace string, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.Language != "" {
		if _, ok := lang.Languages[opts.Language]; !ok {
			return nil, fmt.Errorf("unsupported language %q (supported: %s)", opts.Language, strings.Join(lang.Names(), ", "))
		}
	}

	expected, err := ExpectedSymbols(u, opts.Module)
	if err != nil {
		return nil, err
	}

	var languages []string
	if opts.Language != "" {
		languages = []string{opts.Language}
	}
	files, err := discover.Sources(workspace, languages)
	if err != nil {
		return nil, fmt.Errorf("discovering sources: %w", err)
	}
	log.Debug("Scanning workspace", slog.String("root", workspace), slog.Int("files", len(files)))

	syms := parse.Files(ctx, workspace, files, log)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log.Debug("Extracted definitions", slog.Int("symbols", len(syms)))

	return Match(expected, syms, opts.Language), nil
}

// ExpectedSymbols lists the schemas then funcs declared in u. When module is
// non-empty only the mod's closure is returned: its schemas, its funcs and
// the input and output schemas of those funcs.
func ExpectedSymbols(u *model.Unit, module string) ([]Expected, error) {
	var include map[string]bool
	if module != "" {
		var err error
		if include, err = closure(u, strings.TrimPrefix(module, "mod.")); err != nil {
			return nil, err
		}
	}

	var out []Expected
	for _, s := range u.Schemas() {
		if include == nil || include[s.ID()] {
			out = append(out, Expected{ID: s.ID(), Name: s.Name, Impl: s.Impl})
		}
	}
	for _, f := range u.Funcs() {
		if include == nil || include[f.ID()] {
			out = append(out, Expected{ID: f.ID(), Name: f.Name, Impl: f.Impl})
		}
	}
	return out, nil
}

func closure(u *model.Unit, name string) (map[string]bool, error) {
	var mod *model.Mod
	for _, m := range u.Mods() {
		if m.Name == name {
			mod = m
			break
		}
	}
	if mod == nil {
		return nil, fmt.Errorf("module 'mod.%s' not found", name)
	}

	funcs := make(map[string]*model.Func)
	for _, f := range u.Funcs() {
		funcs[f.ID()] = f
	}

	include := make(map[string]bool)
	for _, ref := range mod.Schemas {
		include[ref] = true
	}
	for _, ref := range mod.Funcs {
		include[ref] = true
		if f, ok := funcs[ref]; ok {
			for _, s := range f.Input {
				include[s] = true
			}
			for _, s := range f.Output {
				include[s] = true
			}
		}
	}
	return include, nil
}

// Match pairs each expected symbol with the definitions that could implement
// it. Symbols whose impl.lang excludes language are skipped; an empty
// language checks everything.
func Match(expected []Expected, syms []model.CodeSymbol, language string) *Result {
	byName := make(map[string][]model.CodeSymbol)
	for _, s := range syms {
		byName[s.Name] = append(byName[s.Name], s)
	}

	res := &Result{}
	for _, exp := range expected {
		if language != "" && !exp.AcceptsLanguage(language) {
			continue
		}

		var candidates []model.CodeSymbol
		for _, s := range byName[exp.SearchName()] {
			if kindMatches(exp, s) && exp.AcceptsLanguage(s.Language) && pathMatches(exp.Impl.Path, s) {
				candidates = append(candidates, s)
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].File != candidates[j].File {
				return candidates[i].File < candidates[j].File
			}
			return candidates[i].Line < candidates[j].Line
		})

		f := Finding{Expected: exp, Candidates: candidates}
		switch len(candidates) {
		case 0:
			f.Status = Missing
			res.Diagnostics = append(res.Diagnostics, diag.Errorf(diag.DriftMissing, exp.ID,
				"%s '%s' has no implementation%s", kindLabel(exp), exp.SearchName(), constraints(exp.Impl)))
		case 1:
			f.Status = Matched
			res.Matched++
		default:
			f.Status = Ambiguous
			locs := make([]string, len(candidates))
			for i, c := range candidates {
				locs[i] = Location(c)
			}
			res.Diagnostics = append(res.Diagnostics, diag.Warnf(diag.DriftAmbiguous, exp.ID,
				"%s '%s' matches %d definitions: %s", kindLabel(exp), exp.SearchName(), len(candidates), strings.Join(locs, ", ")))
		}
		res.Findings = append(res.Findings, f)
	}
	return res
}

// Location renders a definition as "file:line", with its container if any.
func Location(s model.CodeSymbol) string {
	loc := fmt.Sprintf("%s:%d", s.File, s.Line)
	if s.Container != "" {
		loc += " in " + s.Container
	}
	return loc
}

func kindMatches(exp Expected, s model.CodeSymbol) bool {
	if exp.IsFunc() {
		return s.Kind == model.Function || s.Kind == model.Method
	}
	return s.Kind == model.Class
}

// pathMatches applies impl.path against the definition's container or file.
func pathMatches(path string, s model.CodeSymbol) bool {
	if path == "" {
		return true
	}
	if s.Container != "" && (strings.Contains(s.Container, path) || strings.Contains(path, s.Container)) {
		return true
	}
	return strings.Contains(s.File, path)
}

func kindLabel(exp Expected) string {
	if exp.IsFunc() {
		return "Func"
	}
	return "Schema"
}

func constraints(impl model.Impl) string {
	var parts []string
	if impl.Lang != "" {
		parts = append(parts, "lang: "+impl.Lang)
	}
	if impl.Path != "" {
		parts = append(parts, "path: "+impl.Path)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
