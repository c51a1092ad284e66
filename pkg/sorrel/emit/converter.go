package emit

import (
	"github.com/sambeau/sorrel/pkg/sorrel/errors"
	"github.com/sambeau/sorrel/pkg/sorrel/expression"
	"github.com/sambeau/sorrel/pkg/sorrel/semantics"
	"github.com/sambeau/sorrel/pkg/sorrel/syntax"
)

// Modules lower to nested deployment resources of this type.
const (
	ModuleDeploymentType       = "core/deployments"
	ModuleDeploymentAPIVersion = "2024-01-01"
)

// engine function names for the source language's operators.
var infixFunctions = map[string]string{
	"+":  "add",
	"-":  "sub",
	"*":  "mul",
	"/":  "div",
	"%":  "mod",
	"==": "equals",
	"<":  "less",
	"<=": "lessOrEquals",
	">":  "greater",
	">=": "greaterOrEquals",
	"&&": "and",
	"||": "or",
	"??": "coalesce",
}

// Converter lowers source expressions into the target expression grammar.
//
// A Converter is an immutable conversion context: it captures the chain of
// for-expressions enclosing the emission site plus any local-variable
// replacements installed for cross-scope index rewriting. Derived views are
// new values; nothing is mutated after construction, so converters may be
// shared freely within a run.
type Converter struct {
	ctx       *Context
	enclosing []*syntax.ForExpression
	locals    map[*semantics.LocalSymbol]expression.Expr
}

// NewConverter creates a top-level converter for one emission run.
func NewConverter(ctx *Context) *Converter {
	return &Converter{ctx: ctx}
}

// InLoop returns a view for converting expressions that sit inside the body
// of the given for-expression. Loop locals of any enclosing loop resolve to
// copy-index accessors.
func (c *Converter) InLoop(loop *syntax.ForExpression) *Converter {
	enclosing := make([]*syntax.ForExpression, 0, len(c.enclosing)+1)
	enclosing = append(enclosing, c.enclosing...)
	enclosing = append(enclosing, loop)
	return &Converter{ctx: c.ctx, enclosing: enclosing, locals: c.locals}
}

// ForIndexReplacement returns a view for converting syntax that belongs to a
// declaration inside loop, evaluated from a context where index is the valid
// index expression for that loop. The loop's item variable resolves to the
// indexed loop source and its index variable to index itself. A nil loop
// returns the receiver unchanged; a nil index is an ambiguous-index error
// attributed to pos.
func (c *Converter) ForIndexReplacement(loop *syntax.ForExpression, index expression.Expr, name string, pos syntax.Position) (*Converter, error) {
	if loop == nil {
		return c, nil
	}
	if index == nil {
		return nil, errors.NewWithPosition("CONVERT-0001", pos.Line, pos.Column, map[string]any{"Name": name})
	}

	source, err := c.ConvertExpression(loop.Source)
	if err != nil {
		return nil, err
	}

	locals := make(map[*semantics.LocalSymbol]expression.Expr, len(c.locals)+2)
	for sym, repl := range c.locals {
		locals[sym] = repl
	}
	// The front end binds each loop variable to one LocalSymbol; walk the
	// loop's identifiers through the model to find them.
	if item := c.localSymbol(loop.Item); item != nil {
		locals[item] = &expression.IndexAccess{Base: source, Index: index}
	}
	if loop.Index != nil {
		if idx := c.localSymbol(loop.Index); idx != nil {
			locals[idx] = index
		}
	}
	return &Converter{ctx: c.ctx, enclosing: c.enclosing, locals: locals}, nil
}

func (c *Converter) localSymbol(id *syntax.Identifier) *semantics.LocalSymbol {
	sym, _ := c.ctx.Model.SymbolFor(id).(*semantics.LocalSymbol)
	return sym
}

func (c *Converter) inScope(loop *syntax.ForExpression) bool {
	for _, enclosing := range c.enclosing {
		if enclosing == loop {
			return true
		}
	}
	return false
}

// ConvertExpression lowers any source expression into the target grammar.
func (c *Converter) ConvertExpression(node syntax.Expression) (expression.Expr, error) {
	switch n := node.(type) {
	case *syntax.BooleanLiteral:
		return expression.Bool(n.Value), nil

	case *syntax.IntegerLiteral:
		return expression.Int(n.Value), nil

	case *syntax.StringLiteral:
		return expression.Str(n.Value), nil

	case *syntax.NullLiteral:
		return expression.Null(), nil

	case *syntax.InterpolatedString:
		return c.convertInterpolation(n)

	case *syntax.ArrayLiteral:
		args := make([]expression.Expr, len(n.Items))
		for i, item := range n.Items {
			converted, err := c.ConvertExpression(item)
			if err != nil {
				return nil, err
			}
			args[i] = converted
		}
		return expression.Call("createArray", args...), nil

	case *syntax.ObjectLiteral:
		args := make([]expression.Expr, 0, len(n.Properties)*2)
		for _, prop := range n.Properties {
			key, err := c.convertPropertyKey(prop)
			if err != nil {
				return nil, err
			}
			value, err := c.ConvertExpression(prop.Value)
			if err != nil {
				return nil, err
			}
			args = append(args, key, value)
		}
		return expression.Call("createObject", args...), nil

	case *syntax.Identifier:
		return c.convertIdentifier(n)

	case *syntax.PropertyAccess:
		return c.convertPropertyAccess(n)

	case *syntax.IndexAccess:
		return c.convertIndexAccess(n)

	case *syntax.CallExpression:
		return c.convertCall(n)

	case *syntax.PrefixExpression:
		return c.convertPrefix(n)

	case *syntax.InfixExpression:
		return c.convertInfix(n)

	case *syntax.TernaryExpression:
		return c.convertTernary(n)
	}

	pos := node.Position()
	return nil, errors.NewWithPosition("CONVERT-0002", pos.Line, pos.Column,
		map[string]any{"Kind": syntax.KindName(node)})
}

// ConvertOperation lowers a fully built Operation into the target grammar,
// for when an operation must be embedded inside a larger expression (a
// loop's count or input) rather than written as a native value.
func (c *Converter) ConvertOperation(op Operation) (expression.Expr, error) {
	switch o := op.(type) {
	case *BooleanOperation:
		return expression.Bool(o.Value), nil

	case *IntegerOperation:
		return expression.Int(o.Value), nil

	case *NullOperation:
		return expression.Null(), nil

	case *ExpressionOperation:
		return o.Expr, nil

	case *ArrayOperation:
		args := make([]expression.Expr, len(o.Items))
		for i, item := range o.Items {
			converted, err := c.ConvertOperation(item)
			if err != nil {
				return nil, err
			}
			args[i] = converted
		}
		return expression.Call("createArray", args...), nil

	case *ObjectOperation:
		args := make([]expression.Expr, 0, len(o.Properties)*2)
		for _, prop := range o.Properties {
			key := prop.KeyExpr
			if key == nil {
				key = expression.Str(prop.Name)
			}
			value, err := c.ConvertOperation(prop.Value)
			if err != nil {
				return nil, err
			}
			args = append(args, key, value)
		}
		return expression.Call("createObject", args...), nil
	}

	// A for-loop operation has no expression form; it must have been
	// desugared to a copy object before reaching here.
	return nil, errors.New("EMIT-0004", nil)
}

func (c *Converter) convertPropertyKey(prop *syntax.ObjectProperty) (expression.Expr, error) {
	if name, ok := prop.KeyName(); ok {
		return expression.Str(name), nil
	}
	return c.ConvertExpression(prop.Key)
}

func (c *Converter) convertInterpolation(n *syntax.InterpolatedString) (expression.Expr, error) {
	args := make([]expression.Expr, 0, len(n.Parts))
	for _, part := range n.Parts {
		if lit, ok := part.(*syntax.StringLiteral); ok {
			if lit.Value == "" {
				continue
			}
			args = append(args, expression.Str(lit.Value))
			continue
		}
		converted, err := c.ConvertExpression(part)
		if err != nil {
			return nil, err
		}
		args = append(args, converted)
	}
	if len(args) == 1 {
		if lit, ok := args[0].(*expression.StringLiteral); ok {
			return lit, nil
		}
	}
	return expression.Call(expression.FnConcat, args...), nil
}

func (c *Converter) convertIdentifier(n *syntax.Identifier) (expression.Expr, error) {
	switch sym := c.ctx.Model.SymbolFor(n).(type) {
	case *semantics.ParameterSymbol:
		return expression.Call(expression.FnParameters, expression.Str(sym.Name)), nil

	case *semantics.VariableSymbol:
		if c.ctx.ShouldInline(sym) {
			return c.ConvertExpression(sym.Value())
		}
		return expression.Call(expression.FnVariables, expression.Str(sym.Name)), nil

	case *semantics.LocalSymbol:
		return c.convertLocal(sym, n.Pos)

	case *semantics.ResourceSymbol:
		return c.resourceReference(sym, nil, n.Pos)

	case *semantics.ModuleSymbol:
		return c.moduleReference(sym, nil, n.Pos)
	}

	pos := n.Pos
	return nil, errors.NewWithPosition("EMIT-0005", pos.Line, pos.Column,
		map[string]any{"Name": n.Name})
}

func (c *Converter) convertLocal(sym *semantics.LocalSymbol, pos syntax.Position) (expression.Expr, error) {
	if repl, ok := c.locals[sym]; ok {
		return repl, nil
	}
	if !c.inScope(sym.Loop) {
		return nil, errors.NewWithPosition("CONVERT-0001", pos.Line, pos.Column,
			map[string]any{"Name": sym.Name})
	}
	// Natural context: the reference sits inside the loop's own copy input,
	// where a bare copy-index accessor is valid. The emitter's override
	// rewrite names it later when the copy object requires that.
	index := expression.Call(expression.FnCopyIndex)
	if sym.Kind == semantics.LocalIndex {
		return index, nil
	}
	source, err := c.ConvertExpression(sym.Loop.Source)
	if err != nil {
		return nil, err
	}
	return &expression.IndexAccess{Base: source, Index: index}, nil
}

func (c *Converter) convertPropertyAccess(n *syntax.PropertyAccess) (expression.Expr, error) {
	// References to resources and modules get special lowering; plain data
	// access composes a property accessor.
	index, sym := c.splitReference(n.Base)
	switch target := sym.(type) {
	case *semantics.ResourceSymbol:
		return c.resourceProperty(target, index, n)
	case *semantics.ModuleSymbol:
		return c.moduleProperty(target, index, n)
	}

	converted, err := c.ConvertExpression(n.Base)
	if err != nil {
		return nil, err
	}
	return &expression.PropertyAccess{Base: converted, Name: n.Name}, nil
}

// splitReference unwraps an optional index access around a resource or
// module identifier: frontends[i] yields the identifier's symbol plus the
// explicit index expression.
func (c *Converter) splitReference(node syntax.Expression) (syntax.Expression, semantics.Symbol) {
	var index syntax.Expression
	if access, ok := node.(*syntax.IndexAccess); ok {
		if id, ok := access.Base.(*syntax.Identifier); ok {
			switch c.ctx.Model.SymbolFor(id).(type) {
			case *semantics.ResourceSymbol, *semantics.ModuleSymbol:
				node = id
				index = access.Index
			}
		}
	}
	if id, ok := node.(*syntax.Identifier); ok {
		return index, c.ctx.Model.SymbolFor(id)
	}
	return index, nil
}

// declarationIndex decides the index expression for a reference to a looped
// declaration: an explicit source index wins; a reference from inside the
// declaring loop uses the bare copy-index accessor; anything else has no
// valid index and stays nil for the caller to reject.
func (c *Converter) declarationIndex(loop *syntax.ForExpression, explicit syntax.Expression) (expression.Expr, error) {
	if explicit != nil {
		return c.ConvertExpression(explicit)
	}
	if loop != nil && c.inScope(loop) {
		return expression.Call(expression.FnCopyIndex), nil
	}
	return nil, nil
}

func (c *Converter) resourceProperty(res *semantics.ResourceSymbol, explicit syntax.Expression, n *syntax.PropertyAccess) (expression.Expr, error) {
	index, err := c.declarationIndex(res.EnclosingLoop(), explicit)
	if err != nil {
		return nil, err
	}
	switch n.Name {
	case "id":
		if c.ctx.Settings.SymbolicReferences {
			ref, err := c.resourceReference(res, explicit, n.Pos)
			if err != nil {
				return nil, err
			}
			return &expression.PropertyAccess{Base: ref, Name: "id"}, nil
		}
		return c.FullyQualifiedResourceID(res, index, n.Pos)
	case "name":
		view, err := c.ForIndexReplacement(res.EnclosingLoop(), index, res.Name, n.Pos)
		if err != nil {
			return nil, err
		}
		return view.ConvertExpression(res.DeclaredNameSyntax())
	case "type":
		return expression.Str(res.Type.FullyQualified()), nil
	case "apiVersion":
		return expression.Str(res.Type.Version), nil
	}

	ref, err := c.resourceReference(res, explicit, n.Pos)
	if err != nil {
		return nil, err
	}
	return &expression.PropertyAccess{Base: ref, Name: n.Name}, nil
}

func (c *Converter) moduleProperty(mod *semantics.ModuleSymbol, explicit syntax.Expression, n *syntax.PropertyAccess) (expression.Expr, error) {
	if n.Name == "name" {
		index, err := c.declarationIndex(mod.EnclosingLoop(), explicit)
		if err != nil {
			return nil, err
		}
		view, err := c.ForIndexReplacement(mod.EnclosingLoop(), index, mod.Name, n.Pos)
		if err != nil {
			return nil, err
		}
		return view.ConvertExpression(mod.DeclaredNameSyntax())
	}

	ref, err := c.moduleReference(mod, explicit, n.Pos)
	if err != nil {
		return nil, err
	}
	return &expression.PropertyAccess{Base: ref, Name: n.Name}, nil
}

// resourceReference produces the expression whose evaluation yields the
// resource's runtime object, honoring the compilation-wide reference style.
func (c *Converter) resourceReference(res *semantics.ResourceSymbol, explicit syntax.Expression, pos syntax.Position) (expression.Expr, error) {
	index, err := c.declarationIndex(res.EnclosingLoop(), explicit)
	if err != nil {
		return nil, err
	}
	if res.EnclosingLoop() != nil && index == nil {
		return nil, errors.NewWithPosition("CONVERT-0001", pos.Line, pos.Column,
			map[string]any{"Name": res.Name})
	}
	if c.ctx.Settings.SymbolicReferences {
		return c.SymbolicReference(res.Name, index), nil
	}
	id, err := c.FullyQualifiedResourceID(res, index, pos)
	if err != nil {
		return nil, err
	}
	return expression.Call(expression.FnReference, id), nil
}

func (c *Converter) moduleReference(mod *semantics.ModuleSymbol, explicit syntax.Expression, pos syntax.Position) (expression.Expr, error) {
	index, err := c.declarationIndex(mod.EnclosingLoop(), explicit)
	if err != nil {
		return nil, err
	}
	if mod.EnclosingLoop() != nil && index == nil {
		return nil, errors.NewWithPosition("CONVERT-0001", pos.Line, pos.Column,
			map[string]any{"Name": mod.Name})
	}
	if c.ctx.Settings.SymbolicReferences {
		return c.SymbolicReference(mod.Name, index), nil
	}
	id, err := c.FullyQualifiedModuleID(mod, index, pos)
	if err != nil {
		return nil, err
	}
	return expression.Call(expression.FnReference, id), nil
}

// FullyQualifiedResourceID produces the resource-id-construction expression
// for a resource, usable when symbolic references are unavailable or
// disabled. index supplies the enclosing-loop index context; it may be nil
// for top-level declarations only.
func (c *Converter) FullyQualifiedResourceID(res *semantics.ResourceSymbol, index expression.Expr, pos syntax.Position) (expression.Expr, error) {
	view, err := c.ForIndexReplacement(res.EnclosingLoop(), index, res.Name, pos)
	if err != nil {
		return nil, err
	}
	name, err := view.ConvertExpression(res.DeclaredNameSyntax())
	if err != nil {
		return nil, err
	}
	return expression.Call(expression.FnResourceID,
		expression.Str(res.Type.FullyQualified()), name), nil
}

// FullyQualifiedModuleID produces the id of the nested deployment a module
// lowers to.
func (c *Converter) FullyQualifiedModuleID(mod *semantics.ModuleSymbol, index expression.Expr, pos syntax.Position) (expression.Expr, error) {
	view, err := c.ForIndexReplacement(mod.EnclosingLoop(), index, mod.Name, pos)
	if err != nil {
		return nil, err
	}
	name, err := view.ConvertExpression(mod.DeclaredNameSyntax())
	if err != nil {
		return nil, err
	}
	return expression.Call(expression.FnResourceID,
		expression.Str(ModuleDeploymentType), name), nil
}

// SymbolicReference produces a direct name-based reference, with the index
// folded into the name for looped declarations.
func (c *Converter) SymbolicReference(name string, index expression.Expr) expression.Expr {
	if index == nil {
		return expression.Call(expression.FnReference, expression.Str(name))
	}
	return expression.Call(expression.FnReference,
		expression.Call(expression.FnFormat, expression.Str(name+"[{0}]"), index))
}

func (c *Converter) convertCall(n *syntax.CallExpression) (expression.Expr, error) {
	if n.Base != nil {
		// getSecret() is handled by secure-reference redaction before
		// conversion; any other method call reaching the converter slipped
		// past the checker.
		pos := n.Pos
		return nil, errors.NewWithPosition("EMIT-0001", pos.Line, pos.Column,
			map[string]any{"Kind": "MethodCall:" + n.Name})
	}
	if n.Name == syntax.ErasureFunction && len(n.Args) == 1 {
		return c.ConvertExpression(n.Args[0])
	}

	args := make([]expression.Expr, len(n.Args))
	for i, arg := range n.Args {
		converted, err := c.ConvertExpression(arg)
		if err != nil {
			return nil, err
		}
		args[i] = converted
	}
	// Source standard-library function names match the engine's; the
	// checker has already rejected anything the engine cannot evaluate.
	return expression.Call(n.Name, args...), nil
}

func (c *Converter) convertPrefix(n *syntax.PrefixExpression) (expression.Expr, error) {
	switch n.Operator {
	case "!":
		right, err := c.ConvertExpression(n.Right)
		if err != nil {
			return nil, err
		}
		return expression.Call("not", right), nil
	case "-":
		if lit, ok := n.Right.(*syntax.IntegerLiteral); ok {
			return expression.Int(-lit.Value), nil
		}
		right, err := c.ConvertExpression(n.Right)
		if err != nil {
			return nil, err
		}
		return expression.Call("sub", expression.Int(0), right), nil
	}
	pos := n.Pos
	return nil, errors.NewWithPosition("CONVERT-0003", pos.Line, pos.Column,
		map[string]any{"Operator": n.Operator})
}

func (c *Converter) convertInfix(n *syntax.InfixExpression) (expression.Expr, error) {
	left, err := c.ConvertExpression(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.ConvertExpression(n.Right)
	if err != nil {
		return nil, err
	}
	if n.Operator == "!=" {
		return expression.Call("not", expression.Call("equals", left, right)), nil
	}
	fn, ok := infixFunctions[n.Operator]
	if !ok {
		pos := n.Pos
		return nil, errors.NewWithPosition("CONVERT-0003", pos.Line, pos.Column,
			map[string]any{"Operator": n.Operator})
	}
	return expression.Call(fn, left, right), nil
}

func (c *Converter) convertTernary(n *syntax.TernaryExpression) (expression.Expr, error) {
	cond, err := c.ConvertExpression(n.Condition)
	if err != nil {
		return nil, err
	}
	then, err := c.ConvertExpression(n.Then)
	if err != nil {
		return nil, err
	}
	otherwise, err := c.ConvertExpression(n.Else)
	if err != nil {
		return nil, err
	}
	return expression.Call("if", cond, then, otherwise), nil
}

func (c *Converter) convertIndexAccess(n *syntax.IndexAccess) (expression.Expr, error) {
	// An index access over a looped declaration is a reference, not data
	// indexing: frontends[i].id is handled by the property-access path, and
	// a bare frontends[i] evaluates to the indexed resource object.
	if explicit, sym := c.splitReference(n); sym != nil {
		switch target := sym.(type) {
		case *semantics.ResourceSymbol:
			return c.resourceReference(target, explicit, n.Pos)
		case *semantics.ModuleSymbol:
			return c.moduleReference(target, explicit, n.Pos)
		}
	}

	base, err := c.ConvertExpression(n.Base)
	if err != nil {
		return nil, err
	}
	index, err := c.ConvertExpression(n.Index)
	if err != nil {
		return nil, err
	}
	return &expression.IndexAccess{Base: base, Index: index}, nil
}
