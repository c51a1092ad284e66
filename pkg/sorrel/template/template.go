// Package template assembles the complete deployment-template document for a
// compiled Sorrel program: parameters, variables, resources (modules lower
// to nested deployments), and outputs, with every value written through the
// emission engine.
package template

import (
	"github.com/sambeau/sorrel/pkg/sorrel/emit"
	"github.com/sambeau/sorrel/pkg/sorrel/errors"
	"github.com/sambeau/sorrel/pkg/sorrel/semantics"
	"github.com/sambeau/sorrel/pkg/sorrel/syntax"
)

const contentVersion = "1.0.0.0"

// Writer produces one template document per program. It holds only
// read-only state and may be reused across programs compiled with the same
// context.
type Writer struct {
	ctx     *emit.Context
	emitter *emit.Emitter
}

// NewWriter creates a template writer for one compilation context.
func NewWriter(ctx *emit.Context) *Writer {
	return &Writer{ctx: ctx, emitter: emit.NewEmitter(ctx)}
}

// Write emits the whole template for prog into w.
func (tw *Writer) Write(w emit.Writer, prog *syntax.Program) error {
	w.BeginObject()

	w.Name("contentVersion")
	w.String(contentVersion)

	if err := tw.writeParameters(w, prog); err != nil {
		return err
	}
	if err := tw.writeVariables(w, prog); err != nil {
		return err
	}
	if err := tw.writeResources(w, prog); err != nil {
		return err
	}
	if err := tw.writeOutputs(w, prog); err != nil {
		return err
	}

	w.EndObject()
	return nil
}

func (tw *Writer) writeParameters(w emit.Writer, prog *syntax.Program) error {
	var params []*syntax.ParameterDecl
	for _, decl := range prog.Declarations {
		if pd, ok := decl.(*syntax.ParameterDecl); ok {
			params = append(params, pd)
		}
	}
	if len(params) == 0 {
		return nil
	}

	w.Name("parameters")
	w.BeginObject()
	for _, pd := range params {
		w.Name(pd.Name.Name)
		w.BeginObject()
		w.Name("type")
		w.String(parameterType(pd))
		if pd.Default != nil {
			w.Name("defaultValue")
			if err := tw.emitter.EmitExpression(w, pd.Default); err != nil {
				return err
			}
		}
		w.EndObject()
	}
	w.EndObject()
	return nil
}

// parameterType maps the declared type to the engine's, folding the secure
// marker into the type name the way the engine expects.
func parameterType(pd *syntax.ParameterDecl) string {
	if pd.Secure {
		switch pd.Type {
		case "string":
			return "secureString"
		case "object":
			return "secureObject"
		}
	}
	return pd.Type
}

func (tw *Writer) writeVariables(w emit.Writer, prog *syntax.Program) error {
	var vars []*syntax.VariableDecl
	for _, decl := range prog.Declarations {
		vd, ok := decl.(*syntax.VariableDecl)
		if !ok {
			continue
		}
		// Inlined variables have no template representation: every use was
		// replaced by the defining expression.
		if sym, ok := tw.ctx.Model.SymbolFor(vd.Name).(*semantics.VariableSymbol); ok {
			if tw.ctx.ShouldInline(sym) {
				continue
			}
		}
		vars = append(vars, vd)
	}
	if len(vars) == 0 {
		return nil
	}

	w.Name("variables")
	w.BeginObject()
	for _, vd := range vars {
		w.Name(vd.Name.Name)
		if err := tw.emitter.EmitExpression(w, vd.Value); err != nil {
			return err
		}
	}
	w.EndObject()
	return nil
}

func (tw *Writer) writeResources(w emit.Writer, prog *syntax.Program) error {
	found := false
	for _, decl := range prog.Declarations {
		switch decl.(type) {
		case *syntax.ResourceDecl, *syntax.ModuleDecl:
			found = true
		}
	}
	if !found {
		return nil
	}

	w.Name("resources")
	w.BeginArray()
	for _, decl := range prog.Declarations {
		switch d := decl.(type) {
		case *syntax.ResourceDecl:
			if err := tw.writeResource(w, d); err != nil {
				return err
			}
		case *syntax.ModuleDecl:
			if err := tw.writeModule(w, d); err != nil {
				return err
			}
		}
	}
	w.EndArray()
	return nil
}

func (tw *Writer) writeResource(w emit.Writer, rd *syntax.ResourceDecl) error {
	typeRef := semantics.ParseTypeReference(rd.Type)

	w.BeginObject()

	op, err := tw.emitter.Builder().Build(rd.Body)
	if err != nil {
		return err
	}

	body, ok := op.(*emit.ObjectOperation)
	if loop, isLoop := op.(*emit.ForLoopOperation); isLoop {
		if err := tw.emitter.EmitDeclarationCopy(w, rd.Name.Name, loop.Source, rd.BatchSize); err != nil {
			return err
		}
		body, ok = loop.Body.(*emit.ObjectOperation)
		// The declaration copy already wrote the resource's "copy" key. A
		// loop-valued property at the body's top level would write a second
		// one, so it has to be rejected here.
		if ok {
			for _, bp := range body.Properties {
				if _, isPropLoop := bp.Value.(*emit.ForLoopOperation); isPropLoop {
					pos := rd.Body.Position()
					return errors.NewWithPosition("EMIT-0006", pos.Line, pos.Column,
						map[string]any{"Property": bp.Name})
				}
			}
		}
	}
	if !ok {
		pos := rd.Body.Position()
		return errors.NewWithPosition("EMIT-0001", pos.Line, pos.Column,
			map[string]any{"Kind": syntax.KindName(rd.Body)})
	}

	w.Name("type")
	w.String(typeRef.FullyQualified())
	w.Name("apiVersion")
	w.String(typeRef.Version)

	if err := tw.emitter.EmitObjectProperties(w, body, nil); err != nil {
		return err
	}

	w.EndObject()
	return nil
}

func (tw *Writer) writeModule(w emit.Writer, md *syntax.ModuleDecl) error {
	w.BeginObject()

	emitter := tw.emitter
	if loop, ok := md.Body.(*syntax.ForExpression); ok {
		source, err := emitter.Builder().Build(loop.Source)
		if err != nil {
			return err
		}
		if err := emitter.EmitDeclarationCopy(w, md.Name.Name, source, md.BatchSize); err != nil {
			return err
		}
		emitter = emitter.InLoop(loop)
	}

	body := moduleBody(md)
	if body == nil {
		pos := md.Body.Position()
		return errors.NewWithPosition("EMIT-0001", pos.Line, pos.Column,
			map[string]any{"Kind": syntax.KindName(md.Body)})
	}

	w.Name("type")
	w.String(emit.ModuleDeploymentType)
	w.Name("apiVersion")
	w.String(emit.ModuleDeploymentAPIVersion)

	name := declaredProperty(body, "name")
	if name != nil {
		w.Name("name")
		if err := emitter.EmitExpression(w, name); err != nil {
			return err
		}
	}

	w.Name("properties")
	w.BeginObject()
	w.Name("mode")
	w.String("incremental")
	w.Name("templateLink")
	w.BeginObject()
	w.Name("relativePath")
	w.String(md.Path)
	w.EndObject()

	if params, ok := declaredProperty(body, "params").(*syntax.ObjectLiteral); ok {
		if err := tw.writeModuleParameters(w, emitter, params); err != nil {
			return err
		}
	}

	w.EndObject()
	w.EndObject()
	return nil
}

func (tw *Writer) writeModuleParameters(w emit.Writer, emitter *emit.Emitter, params *syntax.ObjectLiteral) error {
	if len(params.Properties) == 0 {
		return nil
	}
	w.Name("parameters")
	w.BeginObject()
	for _, prop := range params.Properties {
		name, ok := prop.KeyName()
		if !ok {
			pos := prop.Key.Position()
			return errors.NewWithPosition("EMIT-0001", pos.Line, pos.Column,
				map[string]any{"Kind": "computed module parameter name"})
		}
		w.Name(name)
		w.BeginObject()

		if loop, ok := prop.Value.(*syntax.ForExpression); ok {
			// A looped parameter value becomes a property copy on the
			// parameter object. Its one property is always called "value",
			// and the input sits a level deeper than the engine's bare
			// copy-index binding expects, so the accessors are renamed.
			loopOp, err := emitter.Builder().BuildLoop(loop)
			if err != nil {
				return err
			}
			w.Name("copy")
			w.BeginArray()
			if err := emitter.EmitCopyObject(w, "value", loopOp, nil, "value"); err != nil {
				return err
			}
			w.EndArray()
		} else if err := emitter.EmitModuleParameter(w, prop.Value); err != nil {
			return err
		}

		w.EndObject()
	}
	w.EndObject()
	return nil
}

func (tw *Writer) writeOutputs(w emit.Writer, prog *syntax.Program) error {
	var outputs []*syntax.OutputDecl
	for _, decl := range prog.Declarations {
		if od, ok := decl.(*syntax.OutputDecl); ok {
			outputs = append(outputs, od)
		}
	}
	if len(outputs) == 0 {
		return nil
	}

	w.Name("outputs")
	w.BeginObject()
	for _, od := range outputs {
		w.Name(od.Name.Name)
		w.BeginObject()
		w.Name("type")
		w.String(od.Type)
		w.Name("value")
		if err := tw.emitter.EmitExpression(w, od.Value); err != nil {
			return err
		}
		w.EndObject()
	}
	w.EndObject()
	return nil
}

func moduleBody(md *syntax.ModuleDecl) *syntax.ObjectLiteral {
	body := md.Body
	if loop, ok := body.(*syntax.ForExpression); ok {
		body = loop.Body
	}
	obj, _ := body.(*syntax.ObjectLiteral)
	return obj
}

func declaredProperty(obj *syntax.ObjectLiteral, name string) syntax.Expression {
	for _, prop := range obj.Properties {
		if key, ok := prop.KeyName(); ok && key == name {
			return prop.Value
		}
	}
	return nil
}
