// Package deploy checks the job graph and release policy of a Deploy IR unit.
package deploy

import (
	"github.com/phobologic/surc/internal/diag"
	"github.com/phobologic/surc/internal/graph"
	"github.com/phobologic/surc/internal/model"
)

// Side effect tags with policy attached.
const (
	EffectDBMigration = "db_migration"
	EffectRelease     = "release"
)

// Release strategies that must declare a health check.
var healthChecked = map[string]bool{
	"canary":     true,
	"blue_green": true,
}

// Check runs the structural passes (references, cycles, reachability) and then
// the security passes (secret scope, production safety, side effects). Jobs
// are visited in name order.
func Check(d *model.DeployUnit) []diag.Diagnostic {
	var diags []diag.Diagnostic
	for _, pass := range []func(*model.DeployUnit) []diag.Diagnostic{
		references,
		cycles,
		reachability,
		secretScope,
		prodSafety,
		sideEffects,
	} {
		diags = append(diags, pass(d)...)
	}
	return diags
}

// JobGraph returns the requires graph: an edge from each job to every job it
// requires. Undeclared requirements appear as nodes.
func JobGraph(d *model.DeployUnit) *graph.Graph[string] {
	g := graph.New[string]()
	for _, name := range d.JobNames() {
		g.AddNode(name)
		for _, req := range d.Jobs[name].Requires {
			g.AddEdge(name, model.LocalRef(req, "job"))
		}
	}
	return g
}

func references(d *model.DeployUnit) []diag.Diagnostic {
	var diags []diag.Diagnostic
	for _, name := range d.JobNames() {
		job := d.Jobs[name]
		loc := "deploy.job." + name

		for _, req := range job.Requires {
			if req == "" {
				continue
			}
			if _, ok := d.Jobs[model.LocalRef(req, "job")]; !ok {
				diags = append(diags, diag.Errorf(diag.UndefinedJobReference, loc+".requires",
					"Job '%s' requires undefined job '%s'", name, req))
			}
		}
		if job.UsesTarget != "" {
			if _, ok := d.Targets[model.LocalRef(job.UsesTarget, "target")]; !ok {
				diags = append(diags, diag.Errorf(diag.UndefinedTargetReference, loc+".uses_target",
					"Job '%s' references undefined target '%s'", name, job.UsesTarget))
			}
		}
		for _, secret := range job.NeedsSecrets {
			if _, ok := d.Secrets[model.LocalRef(secret, "secret")]; !ok {
				diags = append(diags, diag.Errorf(diag.UndefinedSecretReference, loc+".needs_secrets",
					"Job '%s' references undefined secret '%s'", name, secret))
			}
		}
		if job.UsesPerm != "" {
			if _, ok := d.Perms[model.LocalRef(job.UsesPerm, "perm")]; !ok {
				diags = append(diags, diag.Errorf(diag.UndefinedPermReference, loc+".uses_perm",
					"Job '%s' references undefined permission '%s'", name, job.UsesPerm))
			}
		}
		for _, artifact := range job.Produces {
			if _, ok := d.Artifacts[model.LocalRef(artifact, "artifact")]; !ok {
				diags = append(diags, diag.Warnf(diag.UndefinedArtifactReference, loc+".produces",
					"Job '%s' produces undefined artifact '%s'", name, artifact))
			}
		}
	}
	return diags
}

func cycles(d *model.DeployUnit) []diag.Diagnostic {
	var diags []diag.Diagnostic
	for _, cycle := range JobGraph(d).Cycles(graph.FirstPerRoot) {
		diags = append(diags, diag.Errorf(diag.DeployCycle, "deploy.job",
			"Deploy DAG contains a cycle: %s", graph.Render(cycle)))
	}
	return diags
}

// EntryPoints returns the jobs with no requirements, sorted.
func EntryPoints(d *model.DeployUnit) []string {
	var entries []string
	for _, name := range d.JobNames() {
		if len(d.Jobs[name].Requires) == 0 {
			entries = append(entries, name)
		}
	}
	return entries
}

func reachability(d *model.DeployUnit) []diag.Diagnostic {
	if len(d.Jobs) == 0 {
		return nil
	}
	entries := EntryPoints(d)
	if len(entries) == 0 {
		return []diag.Diagnostic{diag.Errorf(diag.NoEntryPoint, "deploy.job",
			"No entry point jobs found (all jobs have dependencies)")}
	}

	reached := JobGraph(d).Reverse().Reachable(entries)
	var diags []diag.Diagnostic
	for _, name := range d.JobNames() {
		if !reached[name] {
			diags = append(diags, diag.Warnf(diag.UnreachableJob, "deploy.job."+name,
				"Job '%s' is unreachable (no path from any entry point)", name))
		}
	}
	return diags
}

func secretScope(d *model.DeployUnit) []diag.Diagnostic {
	var diags []diag.Diagnostic
	for _, name := range d.JobNames() {
		job := d.Jobs[name]
		if job.UsesTarget == "" {
			continue
		}
		target := model.TargetRef(job.UsesTarget)
		for _, ref := range job.NeedsSecrets {
			secret, ok := d.Secrets[model.LocalRef(ref, "secret")]
			if !ok || len(secret.Scope) == 0 {
				continue
			}
			if !contains(secret.Scope, target) {
				diags = append(diags, diag.Errorf(diag.SecretScopeViolation, "deploy.job."+name+".needs_secrets",
					"Job '%s' uses secret '%s' which is not scoped for target '%s'", name, ref, job.UsesTarget))
			}
		}
	}
	return diags
}

// prodJobs returns the jobs whose target is a production target, sorted.
func prodJobs(d *model.DeployUnit) []string {
	var names []string
	for _, name := range d.JobNames() {
		if t := d.TargetFor(d.Jobs[name]); t != nil && t.IsProduction() {
			names = append(names, name)
		}
	}
	return names
}

func prodSafety(d *model.DeployUnit) []diag.Diagnostic {
	var diags []diag.Diagnostic
	prod := prodJobs(d)

	if len(prod) > 0 {
		if d.Gate == nil {
			diags = append(diags, diag.Errorf(diag.MissingProdGate, "deploy",
				"Production jobs require [deploy.gate] section"))
		}
		if d.Rollback == nil {
			diags = append(diags, diag.Errorf(diag.MissingProdRollback, "deploy",
				"Production jobs require [deploy.rollback] section"))
		}
		if d.Release != nil && healthChecked[d.Release.Strategy] && d.Release.HealthCheck == "" {
			diags = append(diags, diag.Errorf(diag.MissingHealthCheck, "deploy.release",
				"Release strategy '%s' requires health_check", d.Release.Strategy))
		}
	}

	if d.Gate == nil {
		return diags
	}
	for _, name := range prod {
		target := model.TargetRef(d.Jobs[name].UsesTarget)
		if !d.Gate.Requires(target) {
			diags = append(diags, diag.Errorf(diag.ProdJobWithoutApproval, "deploy.gate.require_manual_approval_for",
				"Production job '%s' target '%s' not in gate approval list", name, target))
		}
	}
	return diags
}

func sideEffects(d *model.DeployUnit) []diag.Diagnostic {
	if d.Gate == nil {
		return nil
	}
	var diags []diag.Diagnostic
	for _, name := range d.JobNames() {
		job := d.Jobs[name]
		if job.HasSideEffect(EffectDBMigration) {
			if job.UsesTarget == "" {
				diags = append(diags, diag.Errorf(diag.DbMigrationWithoutTarget, "deploy.job."+name,
					"Job '%s' with db_migration side effect must specify uses_target", name))
				continue
			}
			target := model.TargetRef(job.UsesTarget)
			if !d.Gate.Requires(target) {
				diags = append(diags, diag.Errorf(diag.DbMigrationWithoutApproval, "deploy.job."+name+".side_effects",
					"Job '%s' has db_migration side effect but target '%s' not in approval list", name, target))
			}
		}
		if job.HasSideEffect(EffectRelease) && d.Release == nil {
			diags = append(diags, diag.Warnf(diag.ReleaseWithoutStrategy, "deploy.job."+name+".side_effects",
				"Job '%s' has release side effect but no [deploy.release] defined", name))
		}
	}
	return diags
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
