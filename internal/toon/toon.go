// Package toon implements TOON (Token-Oriented Object Notation) encoding of
// analysis results.
package toon

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/phobologic/surc/internal/analyze"
	"github.com/phobologic/surc/internal/assign"
	"github.com/phobologic/surc/internal/diag"
	"github.com/phobologic/surc/internal/drift"
	"github.com/phobologic/surc/internal/model"
	"github.com/phobologic/surc/internal/ranking"
	"github.com/phobologic/surc/internal/status"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// EncodeReport converts a project analysis report into TOON format.
func EncodeReport(r *analyze.Report) string {
	var parts []string

	if r.Manifest != nil {
		parts = append(parts, field("project", r.Manifest.Project.Name))
	}

	owned := assign.ByPath(r.Assignments)
	var unitRows [][]string
	for _, u := range r.Units {
		unitRows = append(unitRows, []string{u.Path, owned[u.Path], u.Namespace})
	}
	parts = append(parts, formatTabular("units", []string{"path", "package", "namespace"}, unitRows))

	if r.Table != nil {
		parts = append(parts, field("symbols", fmt.Sprintf("%d", r.Table.Len())))
	}

	var stageRows [][]string
	var diagRows [][]string
	for _, s := range r.Stages {
		errs, warns := diag.Count(s.Diagnostics)
		stageRows = append(stageRows, []string{s.Stage, fmt.Sprintf("%d", errs), fmt.Sprintf("%d", warns)})
		for _, d := range s.Diagnostics {
			diagRows = append(diagRows, []string{s.Stage, string(d.Severity), d.Kind, d.Message, d.Location})
		}
	}
	parts = append(parts, formatTabular("stages", []string{"stage", "errors", "warnings"}, stageRows))
	parts = append(parts, formatTabular("diagnostics", []string{"stage", "severity", "kind", "message", "location"}, diagRows))

	return strings.Join(parts, "\n")
}

// EncodeDiagnostics encodes a flat diagnostic list with a summary line.
func EncodeDiagnostics(diags []diag.Diagnostic) string {
	errs, warns := diag.Count(diags)
	rows := make([][]string, 0, len(diags))
	for _, d := range diags {
		rows = append(rows, []string{string(d.Severity), d.Kind, d.Message, d.Location})
	}
	return strings.Join([]string{
		field("errors", fmt.Sprintf("%d", errs)),
		field("warnings", fmt.Sprintf("%d", warns)),
		formatTabular("diagnostics", []string{"severity", "kind", "message", "location"}, rows),
	}, "\n")
}

// EncodeModules encodes a ranked module dependency view.
func EncodeModules(mm *ranking.ModuleMap) string {
	var modRows [][]string
	for _, m := range mm.Modules {
		modRows = append(modRows, []string{m.ID, m.Package, fmt.Sprintf("%.4f", m.Rank)})
	}

	var edgeRows [][]string
	for _, e := range mm.Edges {
		edgeRows = append(edgeRows, []string{e.From, e.FromPackage, e.To, e.ToPackage})
	}

	return strings.Join([]string{
		formatTabular("modules", []string{"id", "package", "rank"}, modRows),
		formatTabular("requires", []string{"from", "from_package", "to", "to_package"}, edgeRows),
	}, "\n")
}

// EncodeDrift encodes a drift result, one row per candidate. Missing symbols
// get a single row with empty location columns.
func EncodeDrift(res *drift.Result) string {
	var rows [][]string
	for _, f := range res.Findings {
		if len(f.Candidates) == 0 {
			rows = append(rows, []string{f.Expected.ID, f.Expected.SearchName(), string(f.Status), "", "", ""})
			continue
		}
		for _, c := range f.Candidates {
			rows = append(rows, []string{
				f.Expected.ID,
				f.Expected.SearchName(),
				string(f.Status),
				c.File,
				fmt.Sprintf("%d", c.Line),
				c.Container,
			})
		}
	}

	return strings.Join([]string{
		field("matched", fmt.Sprintf("%d", res.Matched)),
		field("missing", fmt.Sprintf("%d", res.Count(drift.Missing))),
		field("ambiguous", fmt.Sprintf("%d", res.Count(drift.Ambiguous))),
		formatTabular("findings", []string{"id", "name", "status", "file", "line", "container"}, rows),
	}, "\n")
}

// EncodeModule encodes one module and its status entry, if any.
func EncodeModule(m *model.Mod, ms *model.ModuleStatus) string {
	parts := []string{
		field("module", m.ID()),
		field("purpose", m.Purpose),
		list("schemas", m.Schemas),
		list("funcs", m.Funcs),
		list("pipeline", m.Pipeline),
	}
	if ms != nil {
		parts = append(parts,
			field("state", ms.State),
			field("coverage", strconv.FormatFloat(ms.Coverage, 'f', -1, 64)),
			field("notes", ms.Notes),
		)
	}
	return strings.Join(parts, "\n")
}

// EncodeStatus encodes a unit's module status table.
func EncodeStatus(updatedAt string, entries []status.Entry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Module,
			e.State,
			strconv.FormatFloat(e.Coverage, 'f', -1, 64),
			e.Notes,
		})
	}
	return strings.Join([]string{
		field("updated_at", updatedAt),
		formatTabular("modules", []string{"module", "state", "coverage", "notes"}, rows),
	}, "\n")
}

func field(name, value string) string {
	return fmt.Sprintf("%s: %s", name, encodeValue(value))
}

// list encodes a primitive array inline, e.g. "funcs[2]: func.a,func.b".
func list(name string, values []string) string {
	encoded := make([]string, len(values))
	for i, v := range values {
		encoded[i] = encodeValue(v)
	}
	if len(values) == 0 {
		return fmt.Sprintf("%s[0]:", name)
	}
	return fmt.Sprintf("%s[%d]: %s", name, len(values), strings.Join(encoded, ","))
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	switch {
	case value == "":
		return `""`
	case value != strings.TrimSpace(value), strings.ContainsAny(value, "\n\r\t"):
		return quote(value)
	}
	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}
	switch {
	case looksNumeric.MatchString(value):
		return value
	case needsQuoting.MatchString(value), strings.HasPrefix(value, "-"):
		return quote(value)
	}
	return value
}

func quote(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return `"` + r.Replace(value) + `"`
}
