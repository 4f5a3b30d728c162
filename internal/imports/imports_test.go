package imports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/surc/internal/diag"
	"github.com/phobologic/surc/internal/manifest"
	"github.com/phobologic/surc/internal/model"
)

func withPackages(names ...string) *manifest.Manifest {
	m := &manifest.Manifest{Packages: make(map[string]manifest.Package)}
	for _, n := range names {
		m.Packages[n] = manifest.Package{Root: n}
	}
	return m
}

func importing(targets ...string) *model.Unit {
	u := &model.Unit{Path: "a.toml", Namespace: "core"}
	for _, t := range targets {
		u.Imports = append(u.Imports, model.Import{Target: t})
	}
	return u
}

func TestContextsSimpleAndAlias(t *testing.T) {
	t.Parallel()

	m := withPackages("auth", "users")
	ctxs, diags := Contexts(m, map[string]string{"a.toml": "users"}, []*model.Unit{importing("auth", "users AS u")})
	assert.Empty(t, diags)
	require.Len(t, ctxs, 1)
	assert.Equal(t, "users", ctxs[0].SelfPackage)
	assert.Equal(t, "core", ctxs[0].Namespace)
	assert.Equal(t, []Import{{Package: "auth"}, {Package: "users", Alias: "u"}}, ctxs[0].Imports)
}

func TestContextsUnknownPackageDropped(t *testing.T) {
	t.Parallel()

	m := withPackages("users")
	ctxs, diags := Contexts(m, map[string]string{"a.toml": "users"}, []*model.Unit{importing("auth", "users")})
	require.Len(t, diags, 1)
	assert.Equal(t, diag.ImportUnknownPackage, diags[0].Kind)
	assert.Equal(t, "a.toml", diags[0].Location)
	assert.Equal(t, []Import{{Package: "users"}}, ctxs[0].Imports)
}

func TestContextsNoKnownPackages(t *testing.T) {
	t.Parallel()

	ctxs, diags := Contexts(withPackages(), nil, []*model.Unit{importing("anything")})
	assert.Empty(t, diags)
	assert.Equal(t, "default", ctxs[0].SelfPackage)
	assert.Equal(t, []Import{{Package: "anything"}}, ctxs[0].Imports)
}

func TestContextsSyntaxErrors(t *testing.T) {
	t.Parallel()

	ctxs, diags := Contexts(nil, nil, []*model.Unit{importing("a b", "a as", "a like b", "")})
	require.Len(t, diags, 4)
	for _, d := range diags {
		assert.Equal(t, diag.ImportSyntax, d.Kind)
	}
	assert.Empty(t, ctxs[0].Imports)
}

func TestContextsAliasFallback(t *testing.T) {
	t.Parallel()

	u := &model.Unit{Path: "a.toml", Package: "core", Imports: []model.Import{{Target: "users", Alias: "u"}}}
	ctxs, _ := Contexts(nil, nil, []*model.Unit{u})
	assert.Equal(t, "core", ctxs[0].SelfPackage)
	assert.Equal(t, []Import{{Package: "users", Alias: "u"}}, ctxs[0].Imports)
}

func TestContextResolve(t *testing.T) {
	t.Parallel()

	c := &Context{SelfPackage: "orders", Namespace: "shop", Imports: []Import{{Package: "users", Alias: "u"}, {Package: "auth"}}}
	tests := []struct {
		prefix string
		want   string
		ok     bool
	}{
		{"orders", "orders", true},
		{"shop", "orders", true},
		{"u", "users", true},
		{"users", "users", true},
		{"auth", "auth", true},
		{"billing", "", false},
	}
	for _, tt := range tests {
		got, ok := c.Resolve(tt.prefix)
		assert.Equal(t, tt.ok, ok, tt.prefix)
		assert.Equal(t, tt.want, got, tt.prefix)
	}
}
