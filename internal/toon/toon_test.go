package toon

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phobologic/surc/internal/analyze"
	"github.com/phobologic/surc/internal/assign"
	"github.com/phobologic/surc/internal/diag"
	"github.com/phobologic/surc/internal/drift"
	"github.com/phobologic/surc/internal/manifest"
	"github.com/phobologic/surc/internal/model"
	"github.com/phobologic/surc/internal/ranking"
	"github.com/phobologic/surc/internal/status"
)

func TestEncodeValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", `""`},
		{"simple", "hello", "hello"},
		{"leading space", " hello", `" hello"`},
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"True keyword", "True", `"True"`},
		{"null keyword", "null", `"null"`},
		{"integer", "42", "42"},
		{"negative integer", "-1", "-1"},
		{"float", "0.2500", "0.2500"},
		{"comma", "a,b", `"a,b"`},
		{"colon", "users.toml: func.x", `"users.toml: func.x"`},
		{"quote", `Ambiguous 'x'`, `Ambiguous 'x'`},
		{"double quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
		{"dash prefix", "-foo", `"-foo"`},
		{"arrow", "a -> b -> a", "a -> b -> a"},
		{"dotted id", "schema.user", "schema.user"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, encodeValue(tt.in))
		})
	}
}

func TestEncodeReport(t *testing.T) {
	t.Parallel()

	r := &analyze.Report{
		Manifest:    &manifest.Manifest{Project: manifest.Project{Name: "shop"}},
		Units:       []*model.Unit{{Path: "users.toml", Namespace: "users"}},
		Assignments: []assign.Assignment{{Path: "users.toml", Package: "users"}},
		Stages: []analyze.StageResult{
			{Stage: analyze.StageRead},
			{Stage: analyze.StageUnits, Diagnostics: []diag.Diagnostic{
				diag.Warnf(diag.UnusedSchema, "users.toml: schema.x", "Schema 'schema.x' is never used"),
			}},
		},
	}

	want := []string{
		"project: shop",
		"units[1]{path,package,namespace}:",
		"  users.toml,users,users",
		"stages[2]{stage,errors,warnings}:",
		"  read,0,0",
		"  units,0,1",
		"diagnostics[1]{stage,severity,kind,message,location}:",
		`  units,warning,UnusedSchema,Schema 'schema.x' is never used,"users.toml: schema.x"`,
	}
	assert.Equal(t, want, strings.Split(EncodeReport(r), "\n"))
}

func TestEncodeDiagnosticsEmpty(t *testing.T) {
	t.Parallel()

	got := EncodeDiagnostics(nil)
	assert.Contains(t, got, "errors: 0")
	assert.Contains(t, got, "diagnostics[0]{severity,kind,message,location}:")
}

func TestEncodeModules(t *testing.T) {
	t.Parallel()

	mm := &ranking.ModuleMap{
		Modules: []ranking.Module{{ID: "mod.core", Package: "core", Rank: 0.75}, {ID: "mod.app", Rank: 0.25}},
		Edges:   []ranking.Edge{{From: "mod.app", To: "mod.core", ToPackage: "core"}},
	}
	lines := strings.Split(EncodeModules(mm), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "modules[2]{id,package,rank}:", lines[0])
	assert.Equal(t, "  mod.core,core,0.7500", lines[1])
	assert.Equal(t, `  mod.app,"",0.2500`, lines[2])
	assert.Equal(t, `  mod.app,"",mod.core,core`, lines[4])
}

func TestEncodeDrift(t *testing.T) {
	t.Parallel()

	res := &drift.Result{
		Matched: 1,
		Findings: []drift.Finding{
			{Expected: drift.Expected{ID: "schema.user", Name: "user"}, Status: drift.Missing},
			{
				Expected:   drift.Expected{ID: "func.save", Name: "save"},
				Status:     drift.Matched,
				Candidates: []model.CodeSymbol{{Name: "save", File: "db.go", Line: 4, Container: "Store"}},
			},
		},
	}
	got := EncodeDrift(res)
	for _, want := range []string{
		"matched: 1",
		"missing: 1",
		"findings[2]{id,name,status,file,line,container}:",
		`  schema.user,user,missing,"","",""`,
		"  func.save,save,matched,db.go,4,Store",
	} {
		assert.Contains(t, got, want)
	}
}

func TestEncodeModule(t *testing.T) {
	t.Parallel()

	m := &model.Mod{Name: "api", Purpose: "HTTP, JSON", Funcs: []string{"func.a", "func.b"}, Pipeline: []string{"func.a", "func.b"}}
	assert.Equal(t, strings.Join([]string{
		"module: mod.api",
		`purpose: "HTTP, JSON"`,
		"schemas[0]:",
		"funcs[2]: func.a,func.b",
		"pipeline[2]: func.a,func.b",
	}, "\n"), EncodeModule(m, nil))

	got := EncodeModule(m, &model.ModuleStatus{State: model.StatePartial, Coverage: 0.6})
	assert.Contains(t, got, "state: partial")
	assert.Contains(t, got, "coverage: 0.6")
	assert.Contains(t, got, `notes: ""`)
}

func TestEncodeStatus(t *testing.T) {
	t.Parallel()

	got := EncodeStatus("2026-10-14", []status.Entry{
		{Module: "mod.api", Tracked: true, State: model.StateDone, Coverage: 1, Notes: "shipped"},
		{Module: "mod.worker"},
	})
	assert.Equal(t, strings.Join([]string{
		"updated_at: 2026-10-14",
		"modules[2]{module,state,coverage,notes}:",
		"  mod.api,done,1,shipped",
		`  mod.worker,"",0,""`,
	}, "\n"), got)
}
