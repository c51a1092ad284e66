// Package expression models the deployment engine's embedded expression
// grammar: the bracketed function-call strings ("[fn(arg, ...)]") the engine
// evaluates at deployment time inside an otherwise literal JSON document.
//
// The serialized form is compatibility-critical. Strings inside an expression
// are single-quoted with '' escaping; a plain (non-expression) string value
// whose text begins with '[' must have that bracket doubled so the engine
// does not mistake it for an expression. Both rules live here and nowhere
// else.
package expression

import (
	"strconv"
	"strings"
)

// Well-known deployment-engine function names used by the backend.
const (
	FnParameters   = "parameters"
	FnVariables    = "variables"
	FnCopyIndex    = "copyIndex"
	FnLength       = "length"
	FnFormat       = "format"
	FnConcat       = "concat"
	FnResourceID   = "resourceId"
	FnReference    = "reference"
	FnAsExpression = "asExpression"
)

// Expr is a node of the engine's expression grammar.
type Expr interface {
	exprNode()
	// String returns the unbracketed textual form of the node.
	String() string
}

// FunctionCall represents fn(args).
type FunctionCall struct {
	Name string
	Args []Expr
}

func (fc *FunctionCall) exprNode() {}
func (fc *FunctionCall) String() string {
	args := make([]string, len(fc.Args))
	for i, arg := range fc.Args {
		args[i] = arg.String()
	}
	return fc.Name + "(" + strings.Join(args, ", ") + ")"
}

// StringLiteral is a single-quoted string token.
type StringLiteral struct {
	Value string
}

func (sl *StringLiteral) exprNode() {}
func (sl *StringLiteral) String() string {
	return "'" + strings.ReplaceAll(sl.Value, "'", "''") + "'"
}

// IntegerLiteral is a numeric token.
type IntegerLiteral struct {
	Value int64
}

func (il *IntegerLiteral) exprNode()      {}
func (il *IntegerLiteral) String() string { return strconv.FormatInt(il.Value, 10) }

// BooleanLiteral serializes as the engine's true()/false() intrinsics, which
// are valid in any expression position (bare true/false tokens are not).
type BooleanLiteral struct {
	Value bool
}

func (bl *BooleanLiteral) exprNode() {}
func (bl *BooleanLiteral) String() string {
	if bl.Value {
		return "true()"
	}
	return "false()"
}

// NullLiteral serializes as the engine's null() intrinsic.
type NullLiteral struct{}

func (nl *NullLiteral) exprNode()      {}
func (nl *NullLiteral) String() string { return "null()" }

// PropertyAccess represents base.name.
type PropertyAccess struct {
	Base Expr
	Name string
}

func (pa *PropertyAccess) exprNode()      {}
func (pa *PropertyAccess) String() string { return pa.Base.String() + "." + pa.Name }

// IndexAccess represents base[index].
type IndexAccess struct {
	Base  Expr
	Index Expr
}

func (ia *IndexAccess) exprNode() {}
func (ia *IndexAccess) String() string {
	return ia.Base.String() + "[" + ia.Index.String() + "]"
}

// Call builds a function call node.
func Call(name string, args ...Expr) *FunctionCall {
	return &FunctionCall{Name: name, Args: args}
}

// Str builds a string literal node.
func Str(value string) *StringLiteral { return &StringLiteral{Value: value} }

// Int builds an integer literal node.
func Int(value int64) *IntegerLiteral { return &IntegerLiteral{Value: value} }

// Bool builds a boolean node.
func Bool(value bool) *BooleanLiteral { return &BooleanLiteral{Value: value} }

// Null builds a null node.
func Null() *NullLiteral { return &NullLiteral{} }

// Serialize renders an expression to its bracketed document form.
func Serialize(e Expr) string {
	return "[" + e.String() + "]"
}

// EscapeString prepares a plain string for use as a document value. A leading
// '[' is doubled so the engine reads the value as a literal rather than an
// expression marker.
func EscapeString(s string) string {
	if strings.HasPrefix(s, "[") {
		return "[" + s
	}
	return s
}

// UnescapeString reverses EscapeString for values known to be literals.
func UnescapeString(s string) string {
	if strings.HasPrefix(s, "[[") {
		return s[1:]
	}
	return s
}

// RewriteCopyIndexName returns a copy of expr in which every copyIndex()
// call that does not already name a loop carries loopName as its explicit
// first argument. A zero-argument call becomes copyIndex(loopName); a call
// whose single argument is a numeric offset becomes copyIndex(loopName,
// offset). Calls that already carry a string loop name are left alone. The
// input tree is not modified.
func RewriteCopyIndexName(expr Expr, loopName string) Expr {
	switch e := expr.(type) {
	case *FunctionCall:
		args := make([]Expr, len(e.Args))
		for i, arg := range e.Args {
			args[i] = RewriteCopyIndexName(arg, loopName)
		}
		if e.Name == FnCopyIndex {
			switch {
			case len(args) == 0:
				args = []Expr{Str(loopName)}
			case len(args) == 1:
				if _, named := args[0].(*StringLiteral); !named {
					args = []Expr{Str(loopName), args[0]}
				}
			}
		}
		return &FunctionCall{Name: e.Name, Args: args}
	case *PropertyAccess:
		return &PropertyAccess{Base: RewriteCopyIndexName(e.Base, loopName), Name: e.Name}
	case *IndexAccess:
		return &IndexAccess{
			Base:  RewriteCopyIndexName(e.Base, loopName),
			Index: RewriteCopyIndexName(e.Index, loopName),
		}
	default:
		// Literal tokens carry no children.
		return expr
	}
}
