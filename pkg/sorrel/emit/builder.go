package emit

import (
	"github.com/sambeau/sorrel/pkg/sorrel/errors"
	"github.com/sambeau/sorrel/pkg/sorrel/semantics"
	"github.com/sambeau/sorrel/pkg/sorrel/syntax"
)

// Builder walks validated syntax and produces the Operation tree the
// emitter consumes. Source-level sugar is normalized on the way: inlined
// variables are replaced by their (recursively built) defining expressions,
// and the type-erasure wrapper disappears entirely.
type Builder struct {
	conv *Converter
}

// NewBuilder creates a builder for one emission run.
func NewBuilder(ctx *Context) *Builder {
	return &Builder{conv: NewConverter(ctx)}
}

// newBuilderWith wraps an existing converter view, preserving its loop scope.
func newBuilderWith(conv *Converter) *Builder {
	return &Builder{conv: conv}
}

// Converter exposes the builder's conversion view, scoped the same way the
// builder is.
func (b *Builder) Converter() *Converter {
	return b.conv
}

// Build produces the Operation for a syntax node.
func (b *Builder) Build(node syntax.Expression) (Operation, error) {
	switch n := node.(type) {
	case *syntax.BooleanLiteral:
		return &BooleanOperation{Value: n.Value}, nil

	case *syntax.IntegerLiteral:
		return &IntegerOperation{Value: n.Value}, nil

	case *syntax.NullLiteral:
		return &NullOperation{}, nil

	case *syntax.ObjectLiteral:
		return b.buildObject(n)

	case *syntax.ArrayLiteral:
		items := make([]Operation, len(n.Items))
		for i, item := range n.Items {
			op, err := b.Build(item)
			if err != nil {
				return nil, err
			}
			if _, ok := op.(*ForLoopOperation); ok {
				// Loops only desugar as object property values.
				pos := item.Position()
				return nil, errors.NewWithPosition("EMIT-0004", pos.Line, pos.Column, nil)
			}
			items[i] = op
		}
		return &ArrayOperation{Items: items}, nil

	case *syntax.ForExpression:
		return b.BuildLoop(n)

	case *syntax.Identifier:
		// Inline-eligible variables are resolved transitively: the chain
		// bottoms out because the checker forbids cyclic variables.
		if sym, ok := b.conv.ctx.Model.SymbolFor(n).(*semantics.VariableSymbol); ok {
			if b.conv.ctx.ShouldInline(sym) {
				return b.Build(sym.Value())
			}
		}

	case *syntax.CallExpression:
		// The type-erasure wrapper is a source-level annotation only.
		if n.Base == nil && n.Name == syntax.ErasureFunction && len(n.Args) == 1 {
			return b.Build(n.Args[0])
		}

	case *syntax.StringLiteral, *syntax.InterpolatedString, *syntax.PropertyAccess,
		*syntax.IndexAccess, *syntax.PrefixExpression, *syntax.InfixExpression,
		*syntax.TernaryExpression:
		// Converted below.

	default:
		pos := node.Position()
		return nil, errors.NewWithPosition("EMIT-0001", pos.Line, pos.Column,
			map[string]any{"Kind": syntax.KindName(node)})
	}

	expr, err := b.conv.ConvertExpression(node)
	if err != nil {
		return nil, err
	}
	return &ExpressionOperation{Expr: expr}, nil
}

// BuildLoop builds a for-expression, bringing its loop variables into scope
// for the body.
func (b *Builder) BuildLoop(loop *syntax.ForExpression) (*ForLoopOperation, error) {
	source, err := b.Build(loop.Source)
	if err != nil {
		return nil, err
	}
	body, err := newBuilderWith(b.conv.InLoop(loop)).Build(loop.Body)
	if err != nil {
		return nil, err
	}
	if _, ok := body.(*ForLoopOperation); ok {
		// Single-level desugaring only: a loop directly inside another
		// loop's body has no copy representation.
		pos := loop.Body.Position()
		return nil, errors.NewWithPosition("EMIT-0004", pos.Line, pos.Column, nil)
	}
	return &ForLoopOperation{Syntax: loop, Source: source, Body: body}, nil
}

func (b *Builder) buildObject(n *syntax.ObjectLiteral) (*ObjectOperation, error) {
	props := make([]PropertyOperation, 0, len(n.Properties))
	for _, prop := range n.Properties {
		value, err := b.Build(prop.Value)
		if err != nil {
			return nil, err
		}

		if name, ok := prop.KeyName(); ok {
			props = append(props, PropertyOperation{Name: name, Value: value})
			continue
		}

		key, err := b.conv.ConvertExpression(prop.Key)
		if err != nil {
			return nil, err
		}
		if _, ok := value.(*ForLoopOperation); ok {
			// A copy object needs a constant name; computed keys cannot
			// carry loops.
			pos := prop.Key.Position()
			return nil, errors.NewWithPosition("EMIT-0004", pos.Line, pos.Column, nil)
		}
		props = append(props, PropertyOperation{KeyExpr: key, Value: value})
	}
	return &ObjectOperation{Properties: props}, nil
}
