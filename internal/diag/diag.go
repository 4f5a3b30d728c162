// Package diag defines the diagnostics emitted by every analysis pass.
package diag

import "fmt"

// Severity is advisory metadata attached to a diagnostic.
type Severity string

const (
	Error   Severity = "error"
	Warning Severity = "warning"
)

// Stable diagnostic codes. External tooling matches on these strings.
const (
	// Package assignment and import resolution.
	PackageUnknown       = "E_PACKAGE_UNKNOWN"
	PackageRootMismatch  = "E_PACKAGE_ROOT_MISMATCH"
	PackageUnassigned    = "E_PACKAGE_UNASSIGNED"
	PackageAmbiguous     = "E_PACKAGE_AMBIGUOUS"
	ImportSyntax         = "E_IMPORT_SYNTAX"
	ImportUnknownPackage = "E_IMPORT_UNKNOWN_PACKAGE"
	Parse                = "E_PARSE"

	// Symbol table and reference resolution.
	AmbiguousName   = "W_AMBIGUOUS_NAME"
	UndefinedPrefix = "E_UNDEFINED_PREFIX"
	UndefinedSchema = "E_UNDEFINED_SCHEMA"
	UndefinedFunc   = "E_UNDEFINED_FUNC"
	UndefinedMod    = "E_UNDEFINED_MOD"

	// Unit checker.
	UndefinedSchemaRef        = "UndefinedSchema"
	UndefinedSchemaInMod      = "UndefinedSchemaInMod"
	UndefinedFuncInMod        = "UndefinedFuncInMod"
	UndefinedFuncInPipeline   = "UndefinedFuncInPipeline"
	UndefinedSchemaInEdgeFrom = "UndefinedSchemaInEdgeFrom"
	UndefinedSchemaInEdgeTo   = "UndefinedSchemaInEdgeTo"
	UndefinedSchemaInBoundary = "UndefinedSchemaInBoundary"
	PipelineCycle             = "PipelineCycle"
	PipelineTypeMismatch      = "PipelineTypeMismatch"
	UnusedSchema              = "UnusedSchema"
	UnusedFunc                = "UnusedFunc"

	// Project checker.
	UnresolvedRequire = "UnresolvedRequire"
	RequireCycle      = "RequireCycle"

	// Deploy checker.
	UndefinedJobReference      = "UndefinedJobReference"
	UndefinedTargetReference   = "UndefinedTargetReference"
	UndefinedSecretReference   = "UndefinedSecretReference"
	UndefinedPermReference     = "UndefinedPermReference"
	UndefinedArtifactReference = "UndefinedArtifactReference"
	DeployCycle                = "DeployCycle"
	NoEntryPoint               = "NoEntryPoint"
	UnreachableJob             = "UnreachableJob"
	SecretScopeViolation       = "SecretScopeViolation"
	MissingProdGate            = "MissingProdGate"
	MissingProdRollback        = "MissingProdRollback"
	MissingHealthCheck         = "MissingHealthCheck"
	ProdJobWithoutApproval     = "ProdJobWithoutApproval"
	DbMigrationWithoutTarget   = "DbMigrationWithoutTarget"
	DbMigrationWithoutApproval = "DbMigrationWithoutApproval"
	ReleaseWithoutStrategy     = "ReleaseWithoutStrategy"

	// Implementation drift.
	DriftMissing   = "DriftMissing"
	DriftAmbiguous = "DriftAmbiguous"

	// Unit splitting.
	ModNotFound        = "E_MOD_NOT_FOUND"
	DuplicateOutput    = "E_DUP_OUTPUT"
	WriteConflict      = "E_WRITE_CONFLICT"
	SharedSymbolCopied = "W_SHARED_SYMBOL_COPIED"
)

// Diagnostic is a single finding. Diagnostics are values and are never
// mutated after an analysis pass returns them.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Kind     string   `json:"kind"`
	Message  string   `json:"message"`
	Location string   `json:"location"`
}

// String renders the diagnostic on one line.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s[%s] %s (%s)", d.Severity, d.Kind, d.Message, d.Location)
}

// Errorf builds an error-severity diagnostic.
func Errorf(kind, location, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: Error, Kind: kind, Message: fmt.Sprintf(format, args...), Location: location}
}

// Warnf builds a warning-severity diagnostic.
func Warnf(kind, location, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: Warning, Kind: kind, Message: fmt.Sprintf(format, args...), Location: location}
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(diags []Diagnostic) bool {
	for i := range diags {
		if diags[i].Severity == Error {
			return true
		}
	}
	return false
}

// Count returns the number of errors and warnings in diags.
func Count(diags []Diagnostic) (errors, warnings int) {
	for i := range diags {
		switch diags[i].Severity {
		case Error:
			errors++
		case Warning:
			warnings++
		}
	}
	return errors, warnings
}

// OfKind returns the diagnostics whose Kind equals kind, in order.
func OfKind(diags []Diagnostic, kind string) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}
