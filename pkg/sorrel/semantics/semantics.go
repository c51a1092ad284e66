// Package semantics exposes the symbol-resolved view of a Sorrel program.
//
// The model is built by the upstream type checker and is read-only from the
// backend's point of view: the emission engine looks up symbols and
// resource/module metadata but never adds or changes bindings. One model
// serves one compilation and may be shared, read-only, across independent
// emission runs.
package semantics

import (
	"strings"

	"github.com/sambeau/sorrel/pkg/sorrel/syntax"
)

// keyVaultType is the fully qualified resource type whose declarations may
// be used as the base of a getSecret() access.
const keyVaultType = "keyvault/vaults"

// TypeReference identifies a resource type and API version, parsed from the
// source form "namespace/kind@version".
type TypeReference struct {
	Namespace string
	Kind      string
	Version   string
}

// ParseTypeReference splits "namespace/kind@version" into its parts. Kind may
// itself contain slashes for child resource types. A missing version leaves
// Version empty (the checker rejects that before emission, but the parser
// here stays permissive).
func ParseTypeReference(s string) TypeReference {
	ref := TypeReference{}
	if at := strings.LastIndex(s, "@"); at >= 0 {
		ref.Version = s[at+1:]
		s = s[:at]
	}
	if slash := strings.Index(s, "/"); slash >= 0 {
		ref.Namespace = s[:slash]
		ref.Kind = s[slash+1:]
	} else {
		ref.Kind = s
	}
	return ref
}

// FullyQualified returns "namespace/kind" without the version.
func (t TypeReference) FullyQualified() string {
	if t.Namespace == "" {
		return t.Kind
	}
	return t.Namespace + "/" + t.Kind
}

func (t TypeReference) String() string {
	if t.Version == "" {
		return t.FullyQualified()
	}
	return t.FullyQualified() + "@" + t.Version
}

// IsKeyVault reports whether declarations of this type can back a secure
// secret reference.
func (t TypeReference) IsKeyVault() bool {
	return t.FullyQualified() == keyVaultType
}

// Symbol is anything an identifier can resolve to.
type Symbol interface {
	SymbolName() string
	symbolNode()
}

// ParameterSymbol is a declared deployment parameter.
type ParameterSymbol struct {
	Name string
	Decl *syntax.ParameterDecl
}

func (s *ParameterSymbol) SymbolName() string { return s.Name }
func (s *ParameterSymbol) symbolNode()        {}

// VariableSymbol is a declared variable. Value is the bound expression; the
// inline-substitution decision lives with the caller (an earlier optimization
// pass), not here.
type VariableSymbol struct {
	Name string
	Decl *syntax.VariableDecl
}

func (s *VariableSymbol) SymbolName() string       { return s.Name }
func (s *VariableSymbol) symbolNode()              {}
func (s *VariableSymbol) Value() syntax.Expression { return s.Decl.Value }

// ResourceSymbol is a declared resource.
type ResourceSymbol struct {
	Name string
	Type TypeReference
	Decl *syntax.ResourceDecl
}

func (s *ResourceSymbol) SymbolName() string { return s.Name }
func (s *ResourceSymbol) symbolNode()        {}

// EnclosingLoop returns the for-expression the resource is declared inside,
// or nil for a top-level (single) declaration.
func (s *ResourceSymbol) EnclosingLoop() *syntax.ForExpression {
	if loop, ok := s.Decl.Body.(*syntax.ForExpression); ok {
		return loop
	}
	return nil
}

// BodyObject returns the resource's object body, reaching through a declaring
// loop if there is one.
func (s *ResourceSymbol) BodyObject() *syntax.ObjectLiteral {
	return bodyObject(s.Decl.Body)
}

// DeclaredNameSyntax returns the expression bound to the resource's "name"
// property, or nil if the body has none.
func (s *ResourceSymbol) DeclaredNameSyntax() syntax.Expression {
	return declaredName(s.Decl.Body)
}

// ModuleSymbol is a declared module (nested deployment).
type ModuleSymbol struct {
	Name string
	Decl *syntax.ModuleDecl
}

func (s *ModuleSymbol) SymbolName() string { return s.Name }
func (s *ModuleSymbol) symbolNode()        {}

// EnclosingLoop returns the for-expression the module is declared inside, or
// nil for a single declaration.
func (s *ModuleSymbol) EnclosingLoop() *syntax.ForExpression {
	if loop, ok := s.Decl.Body.(*syntax.ForExpression); ok {
		return loop
	}
	return nil
}

// BodyObject returns the module's object body, reaching through a declaring
// loop if there is one.
func (s *ModuleSymbol) BodyObject() *syntax.ObjectLiteral {
	return bodyObject(s.Decl.Body)
}

// DeclaredNameSyntax returns the expression bound to the module's "name"
// property, or nil if the body has none.
func (s *ModuleSymbol) DeclaredNameSyntax() syntax.Expression {
	return declaredName(s.Decl.Body)
}

// LocalKind distinguishes the two variables a for-expression introduces.
type LocalKind int

const (
	LocalItem LocalKind = iota
	LocalIndex
)

// LocalSymbol is a loop item or index variable, scoped to its for-expression.
type LocalSymbol struct {
	Name string
	Kind LocalKind
	Loop *syntax.ForExpression
}

func (s *LocalSymbol) SymbolName() string { return s.Name }
func (s *LocalSymbol) symbolNode()        {}

// Model is the symbol-resolved view of one compilation unit.
type Model struct {
	bindings map[*syntax.Identifier]Symbol
}

// NewModel creates an empty model. The checker (or the interchange loader)
// populates it with Bind before emission starts.
func NewModel() *Model {
	return &Model{bindings: make(map[*syntax.Identifier]Symbol)}
}

// Bind records that an identifier node resolves to a symbol.
func (m *Model) Bind(id *syntax.Identifier, sym Symbol) {
	m.bindings[id] = sym
}

// SymbolFor returns the symbol an identifier resolves to, or nil for
// unbound nodes.
func (m *Model) SymbolFor(id *syntax.Identifier) Symbol {
	return m.bindings[id]
}

// ResourceFor resolves an expression to the resource it refers to, reaching
// through index accesses (frontends[i] resolves to the frontends resource).
// Returns nil when the expression does not name a resource.
func (m *Model) ResourceFor(expr syntax.Expression) *ResourceSymbol {
	for {
		if access, ok := expr.(*syntax.IndexAccess); ok {
			expr = access.Base
			continue
		}
		break
	}
	id, ok := expr.(*syntax.Identifier)
	if !ok {
		return nil
	}
	res, _ := m.bindings[id].(*ResourceSymbol)
	return res
}

func bodyObject(body syntax.Expression) *syntax.ObjectLiteral {
	if loop, ok := body.(*syntax.ForExpression); ok {
		body = loop.Body
	}
	obj, _ := body.(*syntax.ObjectLiteral)
	return obj
}

func declaredName(body syntax.Expression) syntax.Expression {
	obj := bodyObject(body)
	if obj == nil {
		return nil
	}
	for _, prop := range obj.Properties {
		if name, ok := prop.KeyName(); ok && name == "name" {
			return prop.Value
		}
	}
	return nil
}
