package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/surc/internal/manifest"
)

func TestStarterManifestLoads(t *testing.T) {
	t.Parallel()

	m, err := manifest.Decode(strings.NewReader(starterManifest(`my "shop"`)))
	require.NoError(t, err)
	assert.Equal(t, `my "shop"`, m.Project.Name)
	assert.Equal(t, "ir", m.Paths.IRRoot)
	assert.Empty(t, m.Packages)
}

func TestInitCreatesProject(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var stdout, stderr strings.Builder
	require.NoError(t, run([]string{"init", "--name", "shop", dir}, &stdout, &stderr), "stderr: %s", stderr.String())

	data, err := os.ReadFile(filepath.Join(dir, manifest.FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `name = "shop"`)
	assert.FileExists(t, filepath.Join(dir, "ir", starterUnitName))
	assert.Contains(t, stderr.String(), "wrote", "confirmation on stderr")
}

func TestInitProjectChecksClean(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	runOK(t, "init", dir)
	out := runOK(t, "project-check", filepath.Join(dir, manifest.FileName))
	assert.Contains(t, out, "(1 units)")
	assert.Contains(t, out, "✓ No issues found")
}

func TestInitDryRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	out := runOK(t, "init", "--dry-run", "--name", "shop", dir)
	assert.Equal(t, starterManifest("shop"), out, "dry run prints the manifest")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "dry run wrote files")
}

func TestInitNeverOverwrites(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeTestFile(t, dir, manifest.FileName, "# mine\n")

	_, _, err := runErr(t, "init", dir)
	assert.ErrorContains(t, err, "already exists")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "# mine\n", string(data))
	assert.NoDirExists(t, filepath.Join(dir, "ir"))
}

func TestInitKeepsExistingIRDir(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	writeTestFile(t, dir, "ir/users.toml", "namespace = \"users\"\n")

	runOK(t, "init", dir)
	assert.NoFileExists(t, filepath.Join(dir, "ir", starterUnitName), "starter unit is not added to an existing ir/")
}

func TestStarterUnitNamespace(t *testing.T) {
	t.Parallel()

	got := starterUnit("My-Shop 2")
	assert.True(t, strings.HasPrefix(got, `namespace = "my_shop_2"`), "unexpected namespace line:\n%s", got)
}
