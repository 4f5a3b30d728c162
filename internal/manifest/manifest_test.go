package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
[project]
name = "shop"

[paths]
ir_root = "ir"
exclude = ["**/drafts/**"]
deploy = ["deploy.toml"]

[packages.users]
root = "ir/users"
namespace = "users"

[packages.orders]
root = "ir/orders"
depends = ["users"]
`

func TestDecode(t *testing.T) {
	t.Parallel()

	m, err := Decode(strings.NewReader(sampleManifest))
	require.NoError(t, err)

	assert.Equal(t, "shop", m.Project.Name)
	assert.Equal(t, "ir", m.Paths.IRRoot)
	assert.Equal(t, []string{"**/drafts/**"}, m.Paths.Exclude)
	assert.Equal(t, []string{"orders", "users"}, m.PackageNames())
	assert.Equal(t, "users", m.Packages["users"].Namespace)
	assert.Equal(t, []string{"users"}, m.Packages["orders"].Depends)
	assert.True(t, m.HasPackage("orders"))
	assert.False(t, m.HasPackage("billing"))
}

func TestDecodeNoPackages(t *testing.T) {
	t.Parallel()

	m, err := Decode(strings.NewReader("[project]\nname = \"p\"\n[paths]\nir_root = \"ir\"\n"))
	require.NoError(t, err)
	assert.Empty(t, m.PackageNames())
}

func TestDecodeInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		reason string
	}{
		{"missing name", "[paths]\nir_root = \"ir\"\n", "project.name"},
		{"missing ir_root", "[project]\nname = \"p\"\n", "paths.ir_root"},
		{"missing root", "[project]\nname = \"p\"\n[paths]\nir_root = \"ir\"\n[packages.a]\nnamespace = \"x\"\n", "root is required"},
		{"bad depends", "[project]\nname = \"p\"\n[paths]\nir_root = \"ir\"\n[packages.a]\nroot = \"a\"\ndepends = [\"zz\"]\n", "undeclared package"},
		{"syntax", "[project\nname = 1", ""},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), "error %v should wrap ErrInvalid", err)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestLoadResolvesPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o644))

	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, dir, m.Dir)
	assert.Equal(t, filepath.Join(dir, "ir"), m.IRRoot())
	assert.Equal(t, filepath.Join(dir, "ir", "users"), m.PackageRoot("users"))
	assert.Equal(t, []string{filepath.Join(dir, "deploy.toml")}, m.DeployFiles())
}

func TestLoadErrorCarriesPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("[paths]\nir_root = \"ir\"\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	var merr *Error
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, path, merr.Path)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalid))
}
