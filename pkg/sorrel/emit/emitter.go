package emit

import (
	"github.com/sambeau/sorrel/pkg/sorrel/errors"
	"github.com/sambeau/sorrel/pkg/sorrel/expression"
	"github.com/sambeau/sorrel/pkg/sorrel/syntax"
)

// Emitter walks Operation trees (or raw syntax) and drives a structured
// document writer. Emission is a single synchronous pass; any failure aborts
// the whole document, since a partially written template is meaningless.
type Emitter struct {
	ctx     *Context
	builder *Builder
}

// NewEmitter creates an emitter for one compilation.
func NewEmitter(ctx *Context) *Emitter {
	return &Emitter{ctx: ctx, builder: NewBuilder(ctx)}
}

// InLoop returns an emitter whose conversions happen inside the body of the
// given for-expression, used when emitting looped declarations.
func (e *Emitter) InLoop(loop *syntax.ForExpression) *Emitter {
	return &Emitter{ctx: e.ctx, builder: newBuilderWith(e.builder.Converter().InLoop(loop))}
}

// Builder exposes the emitter's operation builder, scoped the same way.
func (e *Emitter) Builder() *Builder {
	return e.builder
}

// EmitExpression builds and emits a syntax node in one step.
func (e *Emitter) EmitExpression(w Writer, node syntax.Expression) error {
	op, err := e.builder.Build(node)
	if err != nil {
		return err
	}
	return e.EmitOperation(w, op)
}

// EmitOperation writes an operation as a document value.
func (e *Emitter) EmitOperation(w Writer, op Operation) error {
	return e.emitOperation(w, op, "")
}

// emitOperation carries the copy-index override name for everything written
// inside a named property loop's input.
func (e *Emitter) emitOperation(w Writer, op Operation, override string) error {
	switch o := op.(type) {
	case *BooleanOperation:
		w.Bool(o.Value)
	case *IntegerOperation:
		w.Int(o.Value)
	case *NullOperation:
		w.Null()
	case *ObjectOperation:
		w.BeginObject()
		if err := e.emitObjectProperties(w, o, nil, override); err != nil {
			return err
		}
		w.EndObject()
	case *ArrayOperation:
		w.BeginArray()
		for _, item := range o.Items {
			if err := e.emitOperation(w, item, override); err != nil {
				return err
			}
		}
		w.EndArray()
	case *ExpressionOperation:
		e.emitExpressionValue(w, o.Expr, override)
	case *ForLoopOperation:
		// Loops are desugared where their object property is emitted; one
		// reaching this path escaped the builder's position checks.
		pos := o.Syntax.Pos
		return errors.NewWithPosition("EMIT-0004", pos.Line, pos.Column, nil)
	default:
		return errors.New("EMIT-0001", map[string]any{"Kind": "unknown operation"})
	}
	return nil
}

// emitExpressionValue writes a converted expression: literal tokens become
// native values (integers must never surface as strings, or the engine would
// try to evaluate them), everything else is serialized to its bracketed
// string form. The override rewrite runs here, on a freshly converted tree
// owned by this call, so nothing retained elsewhere is touched.
func (e *Emitter) emitExpressionValue(w Writer, expr expression.Expr, override string) {
	if override != "" {
		expr = expression.RewriteCopyIndexName(expr, override)
	}
	switch t := expr.(type) {
	case *expression.StringLiteral:
		w.String(expression.EscapeString(t.Value))
	case *expression.IntegerLiteral:
		w.Int(t.Value)
	case *expression.BooleanLiteral:
		w.Bool(t.Value)
	case *expression.NullLiteral:
		w.Null()
	default:
		w.String(expression.Serialize(expr))
	}
}

// EmitObjectProperties writes an object's properties (not its braces).
// Loop-valued properties are grouped, in their relative source order, into a
// single leading "copy" array; the remaining properties follow in source
// order, minus any name in omit. Callers that substitute processed
// properties (a module's name, a resource's type) use omit to suppress the
// originals.
func (e *Emitter) EmitObjectProperties(w Writer, obj *ObjectOperation, omit []string) error {
	return e.emitObjectProperties(w, obj, omit, "")
}

func (e *Emitter) emitObjectProperties(w Writer, obj *ObjectOperation, omit []string, override string) error {
	omitted := make(map[string]bool, len(omit))
	for _, name := range omit {
		omitted[name] = true
	}

	var loops, plain []PropertyOperation
	for _, prop := range obj.Properties {
		if _, ok := prop.Value.(*ForLoopOperation); ok {
			loops = append(loops, prop)
		} else {
			plain = append(plain, prop)
		}
	}

	if len(loops) > 0 {
		w.Name("copy")
		w.BeginArray()
		for _, prop := range loops {
			loop := prop.Value.(*ForLoopOperation)
			// Property loops always name their copy-index accessors: the
			// engine scopes a bare copyIndex() to the nearest declaration
			// loop, not the property loop.
			if err := e.EmitCopyObject(w, prop.Name, loop, nil, prop.Name); err != nil {
				return err
			}
		}
		w.EndArray()
	}

	for _, prop := range plain {
		if prop.KeyExpr == nil {
			if omitted[prop.Name] {
				continue
			}
			w.Name(prop.Name)
		} else {
			w.Name(expression.Serialize(prop.KeyExpr))
		}
		if err := e.emitOperation(w, prop.Value, override); err != nil {
			return err
		}
	}
	return nil
}

// EmitCopyObject desugars one loop into the engine's copy shape:
// name, count, optional serial mode, and the per-iteration input.
//
// copyIndexName, when non-empty, renames every unnamed copy-index accessor
// in the input. The rewrite is a single-level pass: a property loop nested
// inside this input gets its own name and the outer name does not propagate
// into it, so property loops two or more levels deep keep the engine's
// nearest-loop binding. That boundary is deliberate; deepening it would
// change the meaning of existing templates.
func (e *Emitter) EmitCopyObject(w Writer, name string, loop *ForLoopOperation, batchSize *int, copyIndexName string) error {
	w.BeginObject()
	defer w.EndObject()

	if name != "" {
		w.Name("name")
		w.String(name)
	}

	// count is always length(source), even when the source's length is
	// statically known: the engine re-evaluates it at deployment time.
	source, err := e.builder.Converter().ConvertOperation(loop.Source)
	if err != nil {
		return err
	}
	w.Name("count")
	w.String(expression.Serialize(expression.Call(expression.FnLength, source)))

	if batchSize != nil {
		w.Name("mode")
		w.String("serial")
		w.Name("batchSize")
		w.Int(int64(*batchSize))
	}

	return e.emitCopyInput(w, loop, copyIndexName)
}

// EmitDeclarationCopy writes the copy object attached to a looped resource
// or module declaration: same shape as a property copy but without an input,
// since the declaration's own body is the per-iteration value. source is the
// built operation for the loop's source expression.
func (e *Emitter) EmitDeclarationCopy(w Writer, name string, source Operation, batchSize *int) error {
	w.Name("copy")
	w.BeginObject()
	defer w.EndObject()

	w.Name("name")
	w.String(name)

	sourceExpr, err := e.builder.Converter().ConvertOperation(source)
	if err != nil {
		return err
	}
	w.Name("count")
	w.String(expression.Serialize(expression.Call(expression.FnLength, sourceExpr)))

	if batchSize != nil {
		w.Name("mode")
		w.String("serial")
		w.Name("batchSize")
		w.Int(int64(*batchSize))
	}
	return nil
}

func (e *Emitter) emitCopyInput(w Writer, loop *ForLoopOperation, copyIndexName string) error {
	switch body := loop.Body.(type) {
	case *ObjectOperation:
		// Objects are directly representable in the input position.
		w.Name("input")
		w.BeginObject()
		if err := e.emitObjectProperties(w, body, nil, copyIndexName); err != nil {
			return err
		}
		w.EndObject()
		return nil

	case *ExpressionOperation:
		if lit, ok := body.Expr.(*expression.StringLiteral); ok {
			// A plain source string needs no wrapping either.
			w.Name("input")
			w.String(expression.EscapeString(lit.Value))
			return nil
		}
	}

	// Everything else is coerced: the engine evaluates the wrapped
	// expression and substitutes it as the whole input value.
	converted, err := e.builder.Converter().ConvertOperation(loop.Body)
	if err != nil {
		return err
	}
	w.Name("input")
	e.emitExpressionValue(w, expression.Call(expression.FnAsExpression, converted), copyIndexName)
	return nil
}
