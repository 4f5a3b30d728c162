package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/surc/internal/diag"
)

const monolith = `namespace = "shop"

[schema.user]
kind = "node"

[schema.order]
kind = "node"

[func.create_user]
input  = []
output = ["schema.user"]

[func.place_order]
input  = ["schema.user"]
output = ["schema.order"]

[mod.user_api]
schemas = ["schema.user"]
funcs   = ["func.create_user"]

[mod.order_api]
schemas = ["schema.order"]
funcs   = ["func.place_order"]
`

const monolithSplit = `[split]
output_dir = "out"
manifest = "surv.toml"
project_name = "shop"

[split.packages.users]
root = "ir/users"
namespace = "users"
modules = [{ mod = "mod.user_api", file = "users.toml" }]

[split.packages.orders]
root = "ir/orders"
namespace = "orders"
depends = ["users"]
modules = [{ mod = "mod.order_api", file = "orders.toml" }]
`

func TestRunSplit(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	unit := writeTestFile(t, dir, "shop.toml", monolith)
	cfg := writeTestFile(t, dir, "split.toml", monolithSplit)

	out := runOK(t, "split", "--config", cfg, unit)
	for _, want := range []string{
		"✓ Split " + unit + " into 2 units",
		"  " + filepath.Join("ir", "users", "users.toml") + " (users, mod.user_api)",
		"  Manifest: " + filepath.Join(dir, "out", "surv.toml"),
		"⚠ [" + diag.SharedSymbolCopied + "] schema.user is copied into 2 files",
		"Project: shop (2 units)",
	} {
		assert.Contains(t, out, want)
	}

	data, err := os.ReadFile(filepath.Join(dir, "out", "ir", "orders", "orders.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `package = "orders"`)
	assert.Contains(t, string(data), "[func.place_order]")
	assert.NotContains(t, string(data), "[func.create_user]")

	assert.Contains(t, runOK(t, "project-check", filepath.Join(dir, "out", "surv.toml")), "Project: shop (2 units)")
}

func TestRunSplitDryRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	unit := writeTestFile(t, dir, "shop.toml", monolith)
	cfg := writeTestFile(t, dir, "split.toml", monolithSplit)

	out := runOK(t, "split", "--dry-run", "--config", cfg, unit)
	assert.Contains(t, out, "==> surv.toml <==")
	assert.Contains(t, out, `name = "shop"`)
	assert.NoDirExists(t, filepath.Join(dir, "out"))
}

func TestRunSplitSkipsProjectCheck(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	unit := writeTestFile(t, dir, "shop.toml", monolith)
	cfg := writeTestFile(t, dir, "split.toml", monolithSplit+"\n[split.behavior]\nrun_project_check = false\n")

	out := runOK(t, "split", "--config", cfg, unit)
	assert.NotContains(t, out, "Project:")
}

func TestRunSplitConflict(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	unit := writeTestFile(t, dir, "shop.toml", monolith)
	cfg := writeTestFile(t, dir, "split.toml", monolithSplit)
	writeTestFile(t, dir, "out/surv.toml", "# mine\n")

	out, _, err := runErr(t, "split", "--config", cfg, unit)
	require.ErrorIs(t, err, errFindings)
	assert.Contains(t, out, "✗ ["+diag.WriteConflict+"]")
	assert.NoDirExists(t, filepath.Join(dir, "out", "ir"))
}

func TestRunSplitUnknownModule(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	unit := writeTestFile(t, dir, "shop.toml", monolith)
	cfg := writeTestFile(t, dir, "split.toml", strings.Replace(monolithSplit, "mod.order_api", "mod.billing", 1))

	out, _, err := runErr(t, "split", "--config", cfg, unit)
	require.ErrorIs(t, err, errFindings)
	assert.Contains(t, out, diag.ModNotFound)
	assert.NoDirExists(t, filepath.Join(dir, "out"))
}

func TestRunSplitRequiresConfig(t *testing.T) {
	t.Parallel()

	unit := writeTestFile(t, t.TempDir(), "shop.toml", monolith)
	_, _, err := runErr(t, "split", unit)
	assert.ErrorContains(t, err, "config")
}

func TestRunSplitJSON(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	unit := writeTestFile(t, dir, "shop.toml", monolith)
	cfg := writeTestFile(t, dir, "split.toml", monolithSplit)

	out := runOK(t, "--format", "json", "split", "--config", cfg, unit)
	var got struct {
		Manifest string `json:"manifest"`
		Units    []struct {
			Path   string   `json:"path"`
			Module string   `json:"module"`
			Decls  []string `json:"decls"`
		} `json:"units"`
		Checked     bool              `json:"checked"`
		Diagnostics []diag.Diagnostic `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got), out)
	assert.Equal(t, filepath.Join(dir, "out", "surv.toml"), got.Manifest)
	require.Len(t, got.Units, 2)
	assert.Equal(t, "mod.order_api", got.Units[0].Module)
	assert.Equal(t, []string{"schema.order", "schema.user", "func.place_order", "mod.order_api"}, got.Units[0].Decls)
	assert.True(t, got.Checked)
	assert.NotEmpty(t, diag.OfKind(got.Diagnostics, diag.SharedSymbolCopied))
}
