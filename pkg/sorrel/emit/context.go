package emit

import (
	"github.com/sambeau/sorrel/pkg/sorrel/semantics"
)

// Settings are the emission toggles the receiving engine cares about. They
// are uniform for a whole compilation: the engine never varies reference
// style per node.
type Settings struct {
	// SymbolicReferences selects name-based references resolved by the
	// target engine's own dependency graph. When false, references are
	// lowered to computed resource-id expressions.
	SymbolicReferences bool
}

// Context carries everything one emission run reads: the semantic model, the
// set of variables an earlier optimization pass decided to inline, and the
// emission settings. The engine never writes to it, so one Context may be
// shared across independent emission runs.
type Context struct {
	Model    *semantics.Model
	Inline   map[*semantics.VariableSymbol]bool
	Settings Settings
}

// NewContext creates a Context with no inlined variables.
func NewContext(model *semantics.Model, settings Settings) *Context {
	return &Context{
		Model:    model,
		Inline:   make(map[*semantics.VariableSymbol]bool),
		Settings: settings,
	}
}

// ShouldInline reports whether a variable's uses are replaced by its
// defining expression.
func (c *Context) ShouldInline(sym *semantics.VariableSymbol) bool {
	return c.Inline[sym]
}
