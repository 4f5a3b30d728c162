package reader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/surc/internal/model"
)

const sampleUnit = `
namespace = "example.user"
import = ["std.schema"]
require = ["mod.shared"]

[meta]
name        = "user_crud_example"
version     = "0.1.0"

[schema.user]
kind   = "node"
role   = "data"
type   = "User"
fields = { user_id = "string", name = "string" }
impl.bind = "UserRecord"
impl.lang = "go"

[schema.users_snapshot]
kind  = "boundary"
role  = "context"
over  = ["schema.user"]

[func.create_user]
intent = "build a user"
input  = ["schema.create_user_req"]
output = ["schema.user"]

[mod.user_http_api]
purpose  = "HTTP CRUD"
schemas  = ["schema.user", "schema.users_snapshot"]
funcs    = "{ func.create_user }"
pipeline = ["func.create_user -> func.save_user", "func.notify"]
`

func TestReadUnit(t *testing.T) {
	t.Parallel()

	u, err := ReadUnit(strings.NewReader(sampleUnit), "a.toml")
	require.NoError(t, err)

	assert.Equal(t, "a.toml", u.Path)
	assert.Equal(t, "", u.Package)
	assert.Equal(t, "example.user", u.Namespace)
	assert.Equal(t, []model.Import{{Target: "std.schema"}}, u.Imports)
	assert.Equal(t, []string{"mod.shared"}, u.Requires)
	require.Len(t, u.Decls, 5)

	meta := u.Meta()
	require.NotNil(t, meta)
	assert.Equal(t, "0.1.0", meta.Version)

	schemas := u.Schemas()
	require.Len(t, schemas, 2)
	assert.Equal(t, "user", schemas[0].Name)
	assert.Equal(t, model.Node, schemas[0].Kind)
	assert.Equal(t, "string", schemas[0].Fields["user_id"])
	assert.Equal(t, model.Impl{Bind: "UserRecord", Lang: "go"}, schemas[0].Impl)
	assert.Equal(t, model.Boundary, schemas[1].Kind)
	assert.Equal(t, []string{"schema.user"}, schemas[1].Over)

	mods := u.Mods()
	require.Len(t, mods, 1)
	assert.Equal(t, []string{"func.create_user"}, mods[0].Funcs)
	assert.Equal(t, []string{"func.create_user", "func.save_user", "func.notify"}, mods[0].Pipeline)
}

func TestReadUnitDocumentOrder(t *testing.T) {
	t.Parallel()

	u, err := ReadUnit(strings.NewReader(`
[mod.z]
purpose = "x"
[schema.b]
kind = "node"
[schema.a]
kind = "node"
`), "o.toml")
	require.NoError(t, err)
	require.Len(t, u.Decls, 3)
	assert.IsType(t, &model.Mod{}, u.Decls[0])
	assert.Equal(t, "b", u.Decls[1].(*model.Schema).Name)
	assert.Equal(t, "a", u.Decls[2].(*model.Schema).Name)
}

func TestReadUnitRequiresBothKeys(t *testing.T) {
	t.Parallel()

	u, err := ReadUnit(strings.NewReader("require = [\"mod.a\"]\nrequires = [\"mod.b\"]\n"), "r.toml")
	require.NoError(t, err)
	assert.Equal(t, []string{"mod.a", "mod.b"}, u.Requires)
}

func TestReadUnitErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"package not string", "package = 3\n", "package must be a string"},
		{"import not array", "import = \"users\"\n", "import must be an array"},
		{"require prefix", "require = [\"shared\"]\n", "must start with 'mod.'"},
		{"require entries", "require = [1]\n", "entries must be strings"},
		{"bad toml", "[schema\n", "p.toml"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadUnit(strings.NewReader(tt.input), "p.toml")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBraceSetAndChain(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"a", "b", "c"}, braceSet(`{ "a", "b", "c" }`))
	assert.Nil(t, braceSet("{ }"))
	assert.Equal(t, []string{"func.a", "func.b"}, chain("{ func.a -> func.b }"))
	assert.Nil(t, chain(""))
}

const sampleDeploy = `
[deploy.pipeline]
name = "webapp"

[deploy.target.prod]
kind = "production"
domain = "example.com"

[deploy.job.build]
requires = []
runs = ["npm ci", "npm run build"]
produces = ["artifact.image"]

[deploy.job.deploy]
requires = ["job.build"]
runs = ["kubectl apply"]
uses_target = "target.prod"
needs_secrets = ["secret.DB_URL"]
side_effects = ["release"]

[deploy.artifact.image]
type = "docker"
tag = "git_sha"

[deploy.secret.DB_URL]
scope = ["target.prod"]

[deploy.perm.deployer]
role = "deploy"
allows = ["kubectl"]

[deploy.release]
strategy = "canary"
health_check = "https://example.com/health"

[deploy.gate]
require_manual_approval_for = ["target.prod"]

[deploy.rollback]
on = ["health_fail"]
strategy = "revert_traffic"
`

func TestReadDeploy(t *testing.T) {
	t.Parallel()

	d, err := ReadDeploy(strings.NewReader(sampleDeploy), "deploy.toml")
	require.NoError(t, err)

	require.NotNil(t, d.Pipeline)
	assert.Equal(t, "webapp", d.Pipeline.Name)
	assert.Equal(t, []string{"build", "deploy"}, d.JobNames())
	assert.Equal(t, []string{"job.build"}, d.Jobs["deploy"].Requires)
	assert.Equal(t, "target.prod", d.Jobs["deploy"].UsesTarget)
	assert.True(t, d.Jobs["deploy"].HasSideEffect("release"))
	assert.True(t, d.Targets["prod"].IsProduction())
	assert.Equal(t, "docker", d.Artifacts["image"].Type)
	assert.Equal(t, []string{"target.prod"}, d.Secrets["DB_URL"].Scope)
	assert.Equal(t, "deploy", d.Perms["deployer"].Role)
	require.NotNil(t, d.Release)
	assert.Equal(t, "canary", d.Release.Strategy)
	require.NotNil(t, d.Gate)
	assert.True(t, d.Gate.Requires("target.prod"))
	require.NotNil(t, d.Rollback)
	assert.Equal(t, "revert_traffic", d.Rollback.Strategy)
}

func TestReadDeployEmpty(t *testing.T) {
	t.Parallel()

	d, err := ReadDeploy(strings.NewReader(""), "empty.toml")
	require.NoError(t, err)
	assert.Empty(t, d.Jobs)
	assert.Nil(t, d.Gate)
	assert.Nil(t, d.Rollback)
}

func TestReadUnitStatus(t *testing.T) {
	t.Parallel()

	src := `
[mod.api]
purpose = "HTTP"

[mod.worker]
purpose = "jobs"

[status]
updated_at = "2026-10-01"

[status.mod.api]
state    = "partial"
coverage = 0.6
notes    = "create/get done"

[status.mod.worker]
state    = "todo"
coverage = 1
`
	u, err := ReadUnit(strings.NewReader(src), "a.toml")
	require.NoError(t, err)
	require.Len(t, u.Decls, 3, "status is one declaration")

	st := u.Status()
	require.NotNil(t, st)
	assert.Equal(t, "2026-10-01", st.UpdatedAt)
	assert.Equal(t, []string{"api", "worker"}, st.ModuleNames())

	api, ok := st.Module("mod.api")
	require.True(t, ok)
	assert.Equal(t, &model.ModuleStatus{State: "partial", Coverage: 0.6, Notes: "create/get done"}, api)

	worker, ok := st.Module("worker")
	require.True(t, ok)
	assert.InDelta(t, 1.0, worker.Coverage, 1e-9, "integer coverage reads as a float")

	_, ok = st.Module("mod.ghost")
	assert.False(t, ok)
}

func TestReadUnitWithoutStatus(t *testing.T) {
	t.Parallel()

	u, err := ReadUnit(strings.NewReader(sampleUnit), "a.toml")
	require.NoError(t, err)
	assert.Nil(t, u.Status())

	_, ok := u.Status().Module("mod.user_http_api")
	assert.False(t, ok, "nil status has no entries")
}
