package reader

import (
	"fmt"
	"io"
	"os"

	"github.com/phobologic/surc/internal/model"
)

// ReadDeployFile reads the Deploy IR unit at path.
func ReadDeployFile(path string) (*model.DeployUnit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening deploy unit: %w", err)
	}
	defer f.Close()
	return ReadDeploy(f, path)
}

// ReadDeploy decodes a Deploy IR unit. Everything lives under [deploy.*].
func ReadDeploy(r io.Reader, path string) (*model.DeployUnit, error) {
	raw, _, err := decode(r, path)
	if err != nil {
		return nil, err
	}

	d := &model.DeployUnit{
		Path:      path,
		Targets:   make(map[string]*model.Target),
		Jobs:      make(map[string]*model.Job),
		Artifacts: make(map[string]*model.Artifact),
		Secrets:   make(map[string]*model.Secret),
		Perms:     make(map[string]*model.Permission),
	}

	root, ok := raw["deploy"].(table)
	if !ok {
		return d, nil
	}

	if t, ok := root["pipeline"].(table); ok {
		d.Pipeline = &model.Pipeline{Name: str(t, "name"), Description: str(t, "description")}
	}
	for name, t := range subtables(root, "target") {
		d.Targets[name] = &model.Target{Name: name, Kind: str(t, "kind"), Domain: str(t, "domain")}
	}
	for name, t := range subtables(root, "job") {
		d.Jobs[name] = &model.Job{
			Name:         name,
			Requires:     stringSet(t, "requires"),
			Runs:         stringSet(t, "runs"),
			UsesTarget:   str(t, "uses_target"),
			NeedsSecrets: stringSet(t, "needs_secrets"),
			UsesPerm:     str(t, "uses_perm"),
			Produces:     stringSet(t, "produces"),
			SideEffects:  stringSet(t, "side_effects"),
		}
	}
	for name, t := range subtables(root, "artifact") {
		d.Artifacts[name] = &model.Artifact{Name: name, Type: str(t, "type"), Repo: str(t, "repo"), Tag: str(t, "tag")}
	}
	for name, t := range subtables(root, "secret") {
		d.Secrets[name] = &model.Secret{Name: name, Scope: stringSet(t, "scope")}
	}
	for name, t := range subtables(root, "perm") {
		d.Perms[name] = &model.Permission{Name: name, Role: str(t, "role"), Allows: stringSet(t, "allows")}
	}
	if t, ok := root["release"].(table); ok {
		d.Release = &model.Release{Strategy: str(t, "strategy"), HealthCheck: str(t, "health_check")}
	}
	if t, ok := root["gate"].(table); ok {
		d.Gate = &model.Gate{RequireManualApprovalFor: stringSet(t, "require_manual_approval_for")}
	}
	if t, ok := root["rollback"].(table); ok {
		d.Rollback = &model.Rollback{On: stringSet(t, "on"), Strategy: str(t, "strategy")}
	}
	return d, nil
}

func subtables(root table, key string) map[string]table {
	sec, ok := root[key].(table)
	if !ok {
		return nil
	}
	out := make(map[string]table, len(sec))
	for name, v := range sec {
		if t, ok := v.(table); ok {
			out[name] = t
		}
	}
	return out
}
