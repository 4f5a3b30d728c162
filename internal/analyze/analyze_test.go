package analyze

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/surc/internal/diag"
	"github.com/phobologic/surc/internal/manifest"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const shopManifest = `
[project]
name = "shop"

[paths]
ir_root = "ir"
deploy = ["ir/deploy.toml"]

[packages.users]
root = "ir/users"
namespace = "users"

[packages.orders]
root = "ir/orders"
depends = ["users"]
`

const usersUnit = `
namespace = "users"

[schema.user]
kind = "node"
type = "User"

[func.create_user]
input  = []
output = ["schema.user"]

[mod.user_api]
purpose = "users"
schemas = ["schema.user"]
funcs   = ["func.create_user"]
`

const ordersUnit = `
import = ["users as u"]
require = ["mod.user_api"]

[schema.order]
kind = "node"

[schema.placed_by]
kind = "edge"
from = "schema.order"
to   = "u.schema.user"

[func.place]
input  = ["schema.order"]
output = ["schema.order"]

[mod.order_api]
purpose = "orders"
schemas = ["schema.order", "schema.placed_by"]
funcs   = ["func.place"]
`

const cleanDeploy = `
[deploy.job.build]
requires = []
`

func shop(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, dir, "ir/users/users.toml", usersUnit)
	writeFile(t, dir, "ir/orders/orders.toml", ordersUnit)
	writeFile(t, dir, "ir/deploy.toml", cleanDeploy)
	return writeFile(t, dir, manifest.FileName, shopManifest)
}

func stage(t *testing.T, r *Report, name string) []diag.Diagnostic {
	t.Helper()
	for _, s := range r.Stages {
		if s.Stage == name {
			return s.Diagnostics
		}
	}
	require.FailNowf(t, "missing stage", "stage %s not in report", name)
	return nil
}

func TestProjectStagesInOrder(t *testing.T) {
	t.Parallel()

	r, err := Project(context.Background(), shop(t), Options{})
	require.NoError(t, err)

	var names []string
	for _, s := range r.Stages {
		names = append(names, s.Stage)
	}
	assert.Equal(t, []string{StageRead, StageAssign, StageImports, StageSymbols, StageResolve, StageUnits, StageProject, StageDeploy}, names)
	assert.Len(t, r.Units, 2)
	assert.Len(t, r.Deploys, 1)
	assert.Equal(t, 7, r.Table.Len())
}

func TestProjectCrossPackage(t *testing.T) {
	t.Parallel()

	r, err := Project(context.Background(), shop(t), Options{})
	require.NoError(t, err)

	assert.Empty(t, stage(t, r, StageAssign))
	assert.Empty(t, stage(t, r, StageImports))
	assert.Empty(t, stage(t, r, StageResolve), "u.schema.user resolves through the alias")
	assert.Empty(t, stage(t, r, StageProject))
	assert.Empty(t, stage(t, r, StageDeploy))

	assert.Empty(t, stage(t, r, StageUnits), "the edge target is visible through the import")
	assert.False(t, r.HasErrors())

	assert.Equal(t, map[string]string{"mod.user_api": "users", "mod.order_api": "orders"}, r.ModulePackages())
}

func TestProjectUnitScopedFailures(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "ir/users/users.toml", usersUnit)
	writeFile(t, dir, "ir/users/broken.toml", "[schema\n")
	writeFile(t, dir, "ir/stray/stray.toml", "[schema.s]\nkind = \"node\"\n")
	writeFile(t, dir, "ir/users/wrong.toml", "package = \"billing\"\n")
	path := writeFile(t, dir, manifest.FileName, "[project]\nname = \"p\"\n[paths]\nir_root = \"ir\"\n[packages.users]\nroot = \"ir/users\"\n")

	r, err := Project(context.Background(), path, Options{})
	require.NoError(t, err)

	read := stage(t, r, StageRead)
	require.Len(t, read, 1)
	assert.Equal(t, diag.Parse, read[0].Kind)

	var kinds []string
	for _, d := range stage(t, r, StageAssign) {
		kinds = append(kinds, d.Kind)
	}
	assert.ElementsMatch(t, []string{diag.PackageUnassigned, diag.PackageUnknown}, kinds)

	require.Len(t, r.Assigned(), 1)
	assert.Empty(t, stage(t, r, StageUnits))
	assert.Len(t, r.Contexts, 1)
}

func TestProjectExcludeAndGitignore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "ir/users/users.toml", usersUnit)
	writeFile(t, dir, "ir/users/drafts/wip.toml", "[schema\n")
	writeFile(t, dir, "ir/.gitignore", "generated/\n")
	writeFile(t, dir, "ir/generated/gen.toml", "[schema\n")
	path := writeFile(t, dir, manifest.FileName, `
[project]
name = "p"
[paths]
ir_root = "ir"
exclude = ["**/drafts/**"]
`)

	r, err := Project(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Empty(t, stage(t, r, StageRead))
	require.Len(t, r.Units, 1)
	assert.False(t, r.HasErrors())
}

func TestProjectInvalidManifest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, manifest.FileName, "[paths]\nir_root = \"ir\"\n")
	_, err := Project(context.Background(), path, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, manifest.ErrInvalid))
}

func TestProjectCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Project(ctx, shop(t), Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileCleanScenario(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "api.toml", `
[schema.user]
kind = "node"

[func.create_user]
input = []
output = ["schema.user"]

[mod.api]
schemas = ["schema.user"]
funcs = ["func.create_user"]
pipeline = []
`)
	u, diags, err := File(path)
	require.NoError(t, err)
	assert.Len(t, u.Decls, 3)
	assert.Empty(t, diags)
}

func TestDeployScenario(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "deploy.toml", `
[deploy.target.prod]
kind = "production"

[deploy.job.build]
requires = []

[deploy.job.deploy]
requires = ["job.build"]
uses_target = "target.prod"
side_effects = ["db_migration"]
`)
	_, diags, err := Deploy(path)
	require.NoError(t, err)
	require.Len(t, diags, 2)
	assert.Equal(t, diag.MissingProdGate, diags[0].Kind)
	assert.Equal(t, diag.MissingProdRollback, diags[1].Kind)
}

func TestProjectUnitsSeeOtherPackages(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "ir/users/users.toml", `
namespace = "users"

[schema.user]
kind = "node"

[schema.audit]
kind = "node"

[func.create_user]
input  = []
output = ["schema.user"]

[mod.user_api]
schemas = ["schema.user"]
funcs   = ["func.create_user"]
`)
	writeFile(t, dir, "ir/orders/orders.toml", `
import = ["users"]

[schema.order]
kind = "node"

[func.place]
input  = ["schema.user", "schema.audit"]
output = ["schema.order"]

[func.bill]
input  = ["schema.order"]
output = ["schema.order"]

[mod.order_api]
funcs    = ["func.place", "func.create_user"]
pipeline = ["func.create_user", "func.place"]
`)
	path := writeFile(t, dir, manifest.FileName, `
[project]
name = "shop"
[paths]
ir_root = "ir"
[packages.users]
root = "ir/users"
namespace = "users"
[packages.orders]
root = "ir/orders"
depends = ["users"]
`)

	r, err := Project(context.Background(), path, Options{})
	require.NoError(t, err)
	assert.Empty(t, stage(t, r, StageResolve))

	// schema.audit is only used from orders; func.bill is unused everywhere.
	units := stage(t, r, StageUnits)
	require.Len(t, units, 1)
	assert.Equal(t, diag.UnusedFunc, units[0].Kind)
	assert.Contains(t, units[0].Location, "orders.toml: func.bill")
	assert.False(t, r.HasErrors())
}

func TestProjectSkipsUnassignedUnits(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "ir/users/users.toml", usersUnit)
	writeFile(t, dir, "ir/stray/stray.toml", `
require = ["mod.ghost"]

[mod.stray]
purpose = "stray"
`)
	path := writeFile(t, dir, manifest.FileName, "[project]\nname = \"p\"\n[paths]\nir_root = \"ir\"\n[packages.users]\nroot = \"ir/users\"\n")

	r, err := Project(context.Background(), path, Options{})
	require.NoError(t, err)

	unassigned := stage(t, r, StageAssign)
	require.Len(t, unassigned, 1)
	assert.Equal(t, diag.PackageUnassigned, unassigned[0].Kind)
	assert.Empty(t, stage(t, r, StageUnits))
	assert.Empty(t, stage(t, r, StageProject), "the stray unit's require is never checked")
}
