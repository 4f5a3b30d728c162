// Package analyze runs the full analysis pipeline over a project.
package analyze

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/phobologic/surc/internal/assign"
	"github.com/phobologic/surc/internal/check"
	"github.com/phobologic/surc/internal/deploy"
	"github.com/phobologic/surc/internal/diag"
	"github.com/phobologic/surc/internal/discover"
	"github.com/phobologic/surc/internal/imports"
	"github.com/phobologic/surc/internal/manifest"
	"github.com/phobologic/surc/internal/model"
	"github.com/phobologic/surc/internal/project"
	"github.com/phobologic/surc/internal/reader"
	"github.com/phobologic/surc/internal/symbol"
)

// Stage names, in the order Project runs them.
const (
	StageRead    = "read"
	StageAssign  = "assign"
	StageImports = "imports"
	StageSymbols = "symbols"
	StageResolve = "resolve"
	StageUnits   = "units"
	StageProject = "project"
	StageDeploy  = "deploy"
)

// Options configures an analysis run.
type Options struct {
	// Logger receives stage progress. Nil means slog.Default().
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// StageResult holds the diagnostics one stage produced.
type StageResult struct {
	Stage       string            `json:"stage"`
	Diagnostics []diag.Diagnostic `json:"diagnostics"`
}

// Report is the outcome of one analysis run.
type Report struct {
	Manifest    *manifest.Manifest  `json:"-"`
	Units       []*model.Unit       `json:"-"`
	Assignments []assign.Assignment `json:"-"`
	Contexts    []*imports.Context  `json:"-"`
	Table       *symbol.Table       `json:"-"`
	Deploys     []*model.DeployUnit `json:"-"`
	Stages      []StageResult       `json:"stages"`
}

func (r *Report) add(stage string, diags []diag.Diagnostic) {
	r.Stages = append(r.Stages, StageResult{Stage: stage, Diagnostics: diags})
}

// Diagnostics returns every diagnostic in stage order.
func (r *Report) Diagnostics() []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, s := range r.Stages {
		out = append(out, s.Diagnostics...)
	}
	return out
}

// HasErrors reports whether any stage produced an error diagnostic.
func (r *Report) HasErrors() bool {
	for _, s := range r.Stages {
		if diag.HasErrors(s.Diagnostics) {
			return true
		}
	}
	return false
}

// Assigned returns the units that received a package, in read order.
func (r *Report) Assigned() []*model.Unit {
	owned := assign.ByPath(r.Assignments)
	var out []*model.Unit
	for _, u := range r.Units {
		if _, ok := owned[u.Path]; ok {
			out = append(out, u)
		}
	}
	return out
}

// ModulePackages maps "mod.<name>" to the package of the unit declaring it.
func (r *Report) ModulePackages() map[string]string {
	owned := assign.ByPath(r.Assignments)
	out := make(map[string]string)
	for _, u := range r.Units {
		pkg, ok := owned[u.Path]
		if !ok {
			continue
		}
		for _, m := range u.Mods() {
			if _, dup := out[m.ID()]; !dup {
				out[m.ID()] = pkg
			}
		}
	}
	return out
}

// Project loads the manifest at manifestPath and analyzes every unit under its
// IR root plus the deploy units it lists. A manifest that fails to load aborts
// the run; every other problem is reported as a diagnostic.
func Project(ctx context.Context, manifestPath string, opts Options) (*Report, error) {
	log := opts.logger()

	m, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, err
	}
	log.Debug("Loaded manifest", slog.String("path", manifestPath), slog.Int("packages", len(m.Packages)))

	entries, err := discover.Units(m.IRRoot(), m.Paths.Exclude)
	if err != nil {
		return nil, fmt.Errorf("discovering units: %w", err)
	}

	self, _ := filepath.Abs(manifestPath)
	var paths []string
	for _, e := range entries {
		p := filepath.Join(m.IRRoot(), e.Path)
		if abs, _ := filepath.Abs(p); abs == self {
			continue
		}
		if isDeployFile(m, p) {
			continue
		}
		paths = append(paths, p)
	}
	log.Debug("Discovered units", slog.String("ir_root", m.IRRoot()), slog.Int("count", len(paths)))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Manifest: m}
	units, readDiags := readUnits(ctx, paths, log)
	report.Units = units
	report.add(StageRead, readDiags)

	assignments, assignDiags := assign.Packages(m, units)
	report.Assignments = assignments
	report.add(StageAssign, assignDiags)

	owned := assign.ByPath(assignments)
	assigned := report.Assigned()

	contexts, importDiags := imports.Contexts(m, owned, assigned)
	report.Contexts = contexts
	report.add(StageImports, importDiags)

	table, symbolDiags := symbol.Build(assigned, owned)
	report.Table = table
	report.add(StageSymbols, symbolDiags)
	log.Debug("Built symbol table", slog.Int("entries", table.Len()))

	report.add(StageResolve, symbol.ResolveUnits(assigned, table, contexts))

	scopes := symbol.Scopes(assigned, table, contexts)
	var unitDiags []diag.Diagnostic
	for _, u := range assigned {
		var diags []diag.Diagnostic
		if scope, ok := scopes[u.Path]; ok {
			diags = check.InScope(u, scope)
		} else {
			diags = check.Unit(u)
		}
		unitDiags = append(unitDiags, located(u.Path, diags)...)
	}
	report.add(StageUnits, unitDiags)

	report.add(StageProject, project.Check(assigned))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var deployDiags []diag.Diagnostic
	for _, path := range m.DeployFiles() {
		d, err := reader.ReadDeployFile(path)
		if err != nil {
			log.Warn("Skipping unreadable deploy unit", slog.String("path", path), slog.Any("error", err))
			deployDiags = append(deployDiags, diag.Errorf(diag.Parse, path, "%v", err))
			continue
		}
		report.Deploys = append(report.Deploys, d)
		deployDiags = append(deployDiags, located(path, deploy.Check(d))...)
	}
	report.add(StageDeploy, deployDiags)

	errs, warns := diag.Count(report.Diagnostics())
	log.Debug("Analysis finished", slog.Int("errors", errs), slog.Int("warnings", warns))
	return report, nil
}

// File reads one Spec IR unit and runs the unit checker on it.
func File(path string) (*model.Unit, []diag.Diagnostic, error) {
	u, err := reader.ReadUnitFile(path)
	if err != nil {
		return nil, nil, err
	}
	return u, check.Unit(u), nil
}

// Deploy reads one Deploy IR unit and runs the deploy checker on it.
func Deploy(path string) (*model.DeployUnit, []diag.Diagnostic, error) {
	d, err := reader.ReadDeployFile(path)
	if err != nil {
		return nil, nil, err
	}
	return d, deploy.Check(d), nil
}

// located prefixes unit-relative locations with the unit path so diagnostics
// from different units stay distinguishable in a project report.
func located(path string, diags []diag.Diagnostic) []diag.Diagnostic {
	for i := range diags {
		diags[i].Location = path + ": " + diags[i].Location
	}
	return diags
}

func isDeployFile(m *manifest.Manifest, path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, d := range m.DeployFiles() {
		if da, err := filepath.Abs(d); err == nil && da == abs {
			return true
		}
	}
	return false
}

// readUnits decodes units concurrently and returns them in input order.
// Unreadable units become E_PARSE diagnostics.
func readUnits(ctx context.Context, paths []string, log *slog.Logger) ([]*model.Unit, []diag.Diagnostic) {
	if len(paths) == 0 {
		return nil, nil
	}

	type result struct {
		index int
		unit  *model.Unit
		err   error
	}

	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > len(paths) {
		numWorkers = len(paths)
	}

	work := make(chan int, len(paths))
	results := make(chan result, len(paths))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range work {
				if ctx.Err() != nil {
					results <- result{index: idx, err: ctx.Err()}
					continue
				}
				u, err := reader.ReadUnitFile(paths[idx])
				results <- result{index: idx, unit: u, err: err}
			}
		}()
	}

	for i := range paths {
		work <- i
	}
	close(work)

	go func() {
		wg.Wait()
		close(results)
	}()

	// Collect results in original order
	indexed := make([]result, len(paths))
	for r := range results {
		indexed[r.index] = r
	}

	var (
		units []*model.Unit
		diags []diag.Diagnostic
	)
	for i, r := range indexed {
		if r.err != nil {
			log.Warn("Skipping unreadable unit", slog.String("path", paths[i]), slog.Any("error", r.err))
			diags = append(diags, diag.Errorf(diag.Parse, paths[i], "%v", r.err))
			continue
		}
		units = append(units, r.unit)
	}
	return units, diags
}
