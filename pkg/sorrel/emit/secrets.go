package emit

import (
	"fmt"

	"github.com/sambeau/sorrel/pkg/sorrel/errors"
	"github.com/sambeau/sorrel/pkg/sorrel/syntax"
)

// IsSecretAccess reports whether value is a getSecret() call, the only
// module-parameter shape that must not be emitted as a plain value.
func IsSecretAccess(value syntax.Expression) bool {
	call, ok := value.(*syntax.CallExpression)
	return ok && call.Base != nil && call.Name == syntax.SecretFunction
}

// EmitModuleParameter writes the inside of a module parameter object:
// either a plain "value" property, or — for getSecret() accesses on a key
// vault resource — a "reference" object that never exposes the secret in
// the template. The caller owns the surrounding braces.
func (e *Emitter) EmitModuleParameter(w Writer, value syntax.Expression) error {
	if IsSecretAccess(value) {
		return e.emitSecretReference(w, value.(*syntax.CallExpression))
	}
	w.Name("value")
	return e.EmitExpression(w, value)
}

// emitSecretReference lowers base.getSecret(name[, version]). Anything but
// a key vault base or the documented call shape is fatal: degrading to a
// plain value would either leak the secret or mis-resolve it.
func (e *Emitter) emitSecretReference(w Writer, call *syntax.CallExpression) error {
	pos := call.Pos

	if len(call.Args) < 1 || len(call.Args) > 2 {
		return errors.NewWithPosition("EMIT-0003", pos.Line, pos.Column,
			map[string]any{"Got": fmt.Sprintf("%d arguments", len(call.Args))})
	}

	conv := e.builder.Converter()
	res := e.ctx.Model.ResourceFor(call.Base)
	if res == nil {
		return errors.NewWithPosition("EMIT-0002", pos.Line, pos.Column,
			map[string]any{"Type": syntax.KindName(call.Base)})
	}
	if !res.Type.IsKeyVault() {
		return errors.NewWithPosition("EMIT-0002", pos.Line, pos.Column,
			map[string]any{"Type": res.Type.FullyQualified()})
	}

	// The vault id always takes the fully-qualified path, whatever the
	// compilation's reference style: the engine resolves key vault
	// references by id, not symbolically.
	explicit, _ := conv.splitReference(call.Base)
	index, err := conv.declarationIndex(res.EnclosingLoop(), explicit)
	if err != nil {
		return err
	}
	if res.EnclosingLoop() != nil && index == nil {
		return errors.NewWithPosition("CONVERT-0001", pos.Line, pos.Column,
			map[string]any{"Name": res.Name})
	}
	id, err := conv.FullyQualifiedResourceID(res, index, pos)
	if err != nil {
		return err
	}

	w.Name("reference")
	w.BeginObject()
	w.Name("keyVault")
	w.BeginObject()
	w.Name("id")
	e.emitExpressionValue(w, id, "")
	w.EndObject()

	w.Name("secretName")
	if err := e.EmitExpression(w, call.Args[0]); err != nil {
		return err
	}
	if len(call.Args) == 2 {
		w.Name("secretVersion")
		if err := e.EmitExpression(w, call.Args[1]); err != nil {
			return err
		}
	}
	w.EndObject()
	return nil
}
