// Package emit lowers a resolved Sorrel syntax tree into the deployment
// template document: native JSON values where the target engine accepts
// them, bracketed expression strings everywhere else, and "copy" objects
// for source-level loops.
package emit

import (
	"github.com/sambeau/sorrel/pkg/sorrel/expression"
	"github.com/sambeau/sorrel/pkg/sorrel/syntax"
)

// Operation is the engine's intermediate representation of a value to be
// written into the template. It is a closed union: booleans, integers and
// null become native values, objects and arrays recurse, for-expressions
// await copy desugaring, and everything else rides along as an
// already-converted target expression.
//
// Operations are immutable once built.
type Operation interface {
	operationNode()
}

// BooleanOperation is a native boolean value.
type BooleanOperation struct {
	Value bool
}

func (*BooleanOperation) operationNode() {}

// IntegerOperation is a native integer value. It is always written as a
// number, never a string, so the engine cannot mistake it for an expression.
type IntegerOperation struct {
	Value int64
}

func (*IntegerOperation) operationNode() {}

// NullOperation is a native null.
type NullOperation struct{}

func (*NullOperation) operationNode() {}

// PropertyOperation is one property of an ObjectOperation. Name is the plain
// key; for computed keys Name is empty and KeyExpr carries the converted key
// expression.
type PropertyOperation struct {
	Name    string
	KeyExpr expression.Expr
	Value   Operation
}

// ObjectOperation is an object in source property order.
type ObjectOperation struct {
	Properties []PropertyOperation
}

func (*ObjectOperation) operationNode() {}

// ArrayOperation is an array in source item order.
type ArrayOperation struct {
	Items []Operation
}

func (*ArrayOperation) operationNode() {}

// ForLoopOperation is one unexpanded loop iteration. It may only appear as
// the value of an object property, or as the outermost operation handed to
// copy desugaring; the builder never nests it inside arrays or other loop
// bodies.
type ForLoopOperation struct {
	Syntax *syntax.ForExpression
	Source Operation
	Body   Operation
}

func (*ForLoopOperation) operationNode() {}

// ExpressionOperation carries a converted target expression for every syntax
// kind the Operation union does not model directly (operators, interpolation,
// references, calls). Literal-token expressions are still written as native
// values; anything else is serialized to its bracketed string form.
type ExpressionOperation struct {
	Expr expression.Expr
}

func (*ExpressionOperation) operationNode() {}
