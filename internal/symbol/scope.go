package symbol

import (
	"strings"

	"github.com/phobologic/surc/internal/imports"
	"github.com/phobologic/surc/internal/model"
)

// Scope is the project as one unit sees it: the table through the unit's
// import context, plus which of its declarations other units refer to.
type Scope struct {
	table *Table
	ctx   *imports.Context
	uses  map[string]bool
}

// Defines reports whether ref resolves, possibly ambiguously, to a
// declaration of kind.
func (s *Scope) Defines(kind, ref string) bool {
	return s.table.Resolve(Kind(kind), ref, s.ctx).OK()
}

// Uses reports whether a unit other than the declaring one references id,
// a local id such as "schema.user".
func (s *Scope) Uses(id string) bool {
	kind, local, ok := strings.Cut(id, ".")
	if !ok {
		return false
	}
	return s.uses[FQN(Kind(kind), s.ctx.SelfPackage, s.ctx.Namespace, local)]
}

// Scopes builds a Scope for every unit with an import context, keyed by
// unit path.
func Scopes(units []*model.Unit, t *Table, contexts []*imports.Context) map[string]*Scope {
	_, uses := walkUnits(units, t, contexts)
	out := make(map[string]*Scope, len(contexts))
	for _, ctx := range contexts {
		out[ctx.Path] = &Scope{table: t, ctx: ctx, uses: uses}
	}
	return out
}
