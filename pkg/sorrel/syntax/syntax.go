// Package syntax defines the resolved syntax tree handed to the emission
// backend by the Sorrel front end.
//
// The front end (lexer, parser, type checker) lives upstream; by the time a
// tree reaches this repo it is semantically valid and every identifier is
// bindable through the semantic model. Nodes carry the source position the
// front end recorded so diagnostics can point back at the original file.
package syntax

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// ErasureFunction is the single-argument pass-through the source language
// uses to defeat the type checker for advanced expressions. It has no
// representation in the emitted template.
const ErasureFunction = "any"

// SecretFunction is the method that fetches a secret from a key vault
// resource. Its calls never evaluate at deployment time as expressions; they
// lower to secure reference objects instead.
const SecretFunction = "getSecret"

// Position is a 1-based source location. The zero value means unknown.
type Position struct {
	Line   int
	Column int
}

// Node represents any node in the syntax tree.
type Node interface {
	Position() Position
	String() string
}

// Expression represents expression nodes.
type Expression interface {
	Node
	expressionNode()
}

// Declaration represents top-level declaration nodes.
type Declaration interface {
	Node
	declarationNode()
}

// Program is the root of a compilation unit.
type Program struct {
	Declarations []Declaration
}

func (p *Program) String() string {
	var out bytes.Buffer
	for _, d := range p.Declarations {
		out.WriteString(d.String())
		out.WriteString("\n")
	}
	return out.String()
}

// Identifier represents a reference to a declared symbol or loop variable.
type Identifier struct {
	Pos  Position
	Name string
}

func (i *Identifier) expressionNode()    {}
func (i *Identifier) Position() Position { return i.Pos }
func (i *Identifier) String() string     { return i.Name }

// BooleanLiteral represents 'true' or 'false'.
type BooleanLiteral struct {
	Pos   Position
	Value bool
}

func (bl *BooleanLiteral) expressionNode()    {}
func (bl *BooleanLiteral) Position() Position { return bl.Pos }
func (bl *BooleanLiteral) String() string     { return strconv.FormatBool(bl.Value) }

// IntegerLiteral represents integer literals like 42.
type IntegerLiteral struct {
	Pos   Position
	Value int64
}

func (il *IntegerLiteral) expressionNode()    {}
func (il *IntegerLiteral) Position() Position { return il.Pos }
func (il *IntegerLiteral) String() string     { return strconv.FormatInt(il.Value, 10) }

// StringLiteral represents a plain, non-interpolated string.
type StringLiteral struct {
	Pos   Position
	Value string
}

func (sl *StringLiteral) expressionNode()    {}
func (sl *StringLiteral) Position() Position { return sl.Pos }
func (sl *StringLiteral) String() string     { return strconv.Quote(sl.Value) }

// NullLiteral represents 'null'.
type NullLiteral struct {
	Pos Position
}

func (nl *NullLiteral) expressionNode()    {}
func (nl *NullLiteral) Position() Position { return nl.Pos }
func (nl *NullLiteral) String() string     { return "null" }

// InterpolatedString represents a string with embedded expressions, e.g.
// 'name-${env}-${i}'. Parts alternate between *StringLiteral segments and
// arbitrary expressions; the parser guarantees at least one non-literal part
// (a string with none is a plain StringLiteral).
type InterpolatedString struct {
	Pos   Position
	Parts []Expression
}

func (is *InterpolatedString) expressionNode()    {}
func (is *InterpolatedString) Position() Position { return is.Pos }
func (is *InterpolatedString) String() string {
	var out bytes.Buffer
	out.WriteString("'")
	for _, part := range is.Parts {
		if lit, ok := part.(*StringLiteral); ok {
			out.WriteString(lit.Value)
		} else {
			out.WriteString("${")
			out.WriteString(part.String())
			out.WriteString("}")
		}
	}
	out.WriteString("'")
	return out.String()
}

// ObjectProperty is one key/value pair of an object literal. Key is an
// *Identifier or *StringLiteral for plain keys, or any expression for
// computed keys.
type ObjectProperty struct {
	Key   Expression
	Value Expression
}

// KeyName returns the property name for plain (non-computed) keys.
func (op *ObjectProperty) KeyName() (string, bool) {
	switch key := op.Key.(type) {
	case *Identifier:
		return key.Name, true
	case *StringLiteral:
		return key.Value, true
	}
	return "", false
}

// ObjectLiteral represents an object in source property order.
type ObjectLiteral struct {
	Pos        Position
	Properties []*ObjectProperty
}

func (ol *ObjectLiteral) expressionNode()    {}
func (ol *ObjectLiteral) Position() Position { return ol.Pos }
func (ol *ObjectLiteral) String() string {
	pairs := []string{}
	for _, prop := range ol.Properties {
		pairs = append(pairs, prop.Key.String()+": "+prop.Value.String())
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}

// ArrayLiteral represents an array in source item order.
type ArrayLiteral struct {
	Pos   Position
	Items []Expression
}

func (al *ArrayLiteral) expressionNode()    {}
func (al *ArrayLiteral) Position() Position { return al.Pos }
func (al *ArrayLiteral) String() string {
	items := []string{}
	for _, item := range al.Items {
		items = append(items, item.String())
	}
	return "[" + strings.Join(items, ", ") + "]"
}

// ForExpression represents 'for item in source: body' or
// 'for (item, i) in source: body'. Index is nil when no index variable was
// declared.
type ForExpression struct {
	Pos    Position
	Item   *Identifier
	Index  *Identifier
	Source Expression
	Body   Expression
}

func (fe *ForExpression) expressionNode()    {}
func (fe *ForExpression) Position() Position { return fe.Pos }
func (fe *ForExpression) String() string {
	var out bytes.Buffer
	out.WriteString("for ")
	if fe.Index != nil {
		out.WriteString("(" + fe.Item.String() + ", " + fe.Index.String() + ")")
	} else {
		out.WriteString(fe.Item.String())
	}
	out.WriteString(" in ")
	out.WriteString(fe.Source.String())
	out.WriteString(": ")
	out.WriteString(fe.Body.String())
	return out.String()
}

// PropertyAccess represents base.name.
type PropertyAccess struct {
	Pos  Position
	Base Expression
	Name string
}

func (pa *PropertyAccess) expressionNode()    {}
func (pa *PropertyAccess) Position() Position { return pa.Pos }
func (pa *PropertyAccess) String() string     { return pa.Base.String() + "." + pa.Name }

// IndexAccess represents base[index].
type IndexAccess struct {
	Pos   Position
	Base  Expression
	Index Expression
}

func (ia *IndexAccess) expressionNode()    {}
func (ia *IndexAccess) Position() Position { return ia.Pos }
func (ia *IndexAccess) String() string     { return ia.Base.String() + "[" + ia.Index.String() + "]" }

// CallExpression represents fn(args) or base.method(args). Base is nil for
// free functions.
type CallExpression struct {
	Pos  Position
	Base Expression
	Name string
	Args []Expression
}

func (ce *CallExpression) expressionNode()    {}
func (ce *CallExpression) Position() Position { return ce.Pos }
func (ce *CallExpression) String() string {
	args := []string{}
	for _, arg := range ce.Args {
		args = append(args, arg.String())
	}
	call := ce.Name + "(" + strings.Join(args, ", ") + ")"
	if ce.Base != nil {
		return ce.Base.String() + "." + call
	}
	return call
}

// PrefixExpression represents unary operators like !x and -x.
type PrefixExpression struct {
	Pos      Position
	Operator string
	Right    Expression
}

func (pe *PrefixExpression) expressionNode()    {}
func (pe *PrefixExpression) Position() Position { return pe.Pos }
func (pe *PrefixExpression) String() string {
	return "(" + pe.Operator + pe.Right.String() + ")"
}

// InfixExpression represents binary operators like a + b and a == b.
type InfixExpression struct {
	Pos      Position
	Left     Expression
	Operator string
	Right    Expression
}

func (ie *InfixExpression) expressionNode()    {}
func (ie *InfixExpression) Position() Position { return ie.Pos }
func (ie *InfixExpression) String() string {
	return "(" + ie.Left.String() + " " + ie.Operator + " " + ie.Right.String() + ")"
}

// TernaryExpression represents condition ? then : else.
type TernaryExpression struct {
	Pos       Position
	Condition Expression
	Then      Expression
	Else      Expression
}

func (te *TernaryExpression) expressionNode()    {}
func (te *TernaryExpression) Position() Position { return te.Pos }
func (te *TernaryExpression) String() string {
	return "(" + te.Condition.String() + " ? " + te.Then.String() + " : " + te.Else.String() + ")"
}

// ParameterDecl declares a deployment parameter.
type ParameterDecl struct {
	Pos     Position
	Name    *Identifier
	Type    string     // parameter type name, e.g. "string", "int", "object"
	Default Expression // nil when no default was given
	Secure  bool
}

func (pd *ParameterDecl) declarationNode()   {}
func (pd *ParameterDecl) Position() Position { return pd.Pos }
func (pd *ParameterDecl) String() string {
	var out bytes.Buffer
	out.WriteString("param ")
	out.WriteString(pd.Name.String())
	out.WriteString(" ")
	out.WriteString(pd.Type)
	if pd.Default != nil {
		out.WriteString(" = ")
		out.WriteString(pd.Default.String())
	}
	return out.String()
}

// VariableDecl declares a named value.
type VariableDecl struct {
	Pos   Position
	Name  *Identifier
	Value Expression
}

func (vd *VariableDecl) declarationNode()   {}
func (vd *VariableDecl) Position() Position { return vd.Pos }
func (vd *VariableDecl) String() string {
	return "var " + vd.Name.String() + " = " + vd.Value.String()
}

// ResourceDecl declares a deployable resource. Body is an *ObjectLiteral, or
// a *ForExpression over object bodies for looped declarations.
type ResourceDecl struct {
	Pos       Position
	Name      *Identifier
	Type      string // fully qualified, e.g. "storage/accounts@2024-01-01"
	Body      Expression
	BatchSize *int // serial decorator; nil means parallel
}

func (rd *ResourceDecl) declarationNode()   {}
func (rd *ResourceDecl) Position() Position { return rd.Pos }
func (rd *ResourceDecl) String() string {
	return "resource " + rd.Name.String() + " '" + rd.Type + "' = " + rd.Body.String()
}

// ModuleDecl declares a nested deployment sourced from another compilation
// unit. Body is an *ObjectLiteral (or a *ForExpression over them) whose
// 'params' property carries the module's inputs.
type ModuleDecl struct {
	Pos       Position
	Name      *Identifier
	Path      string
	Body      Expression
	BatchSize *int
}

func (md *ModuleDecl) declarationNode()   {}
func (md *ModuleDecl) Position() Position { return md.Pos }
func (md *ModuleDecl) String() string {
	return "module " + md.Name.String() + " '" + md.Path + "' = " + md.Body.String()
}

// OutputDecl declares a deployment output.
type OutputDecl struct {
	Pos   Position
	Name  *Identifier
	Type  string
	Value Expression
}

func (od *OutputDecl) declarationNode()   {}
func (od *OutputDecl) Position() Position { return od.Pos }
func (od *OutputDecl) String() string {
	return "output " + od.Name.String() + " " + od.Type + " = " + od.Value.String()
}

// KindName returns a stable human-readable name for a node's kind, used by
// internal-consistency diagnostics.
func KindName(node Node) string {
	switch node.(type) {
	case *Identifier:
		return "Identifier"
	case *BooleanLiteral:
		return "BooleanLiteral"
	case *IntegerLiteral:
		return "IntegerLiteral"
	case *StringLiteral:
		return "StringLiteral"
	case *NullLiteral:
		return "NullLiteral"
	case *InterpolatedString:
		return "InterpolatedString"
	case *ObjectLiteral:
		return "ObjectLiteral"
	case *ArrayLiteral:
		return "ArrayLiteral"
	case *ForExpression:
		return "ForExpression"
	case *PropertyAccess:
		return "PropertyAccess"
	case *IndexAccess:
		return "IndexAccess"
	case *CallExpression:
		return "CallExpression"
	case *PrefixExpression:
		return "PrefixExpression"
	case *InfixExpression:
		return "InfixExpression"
	case *TernaryExpression:
		return "TernaryExpression"
	case *ParameterDecl:
		return "ParameterDecl"
	case *VariableDecl:
		return "VariableDecl"
	case *ResourceDecl:
		return "ResourceDecl"
	case *ModuleDecl:
		return "ModuleDecl"
	case *OutputDecl:
		return "OutputDecl"
	}
	return fmt.Sprintf("%T", node)
}
