package emit

import (
	"testing"

	"github.com/sambeau/sorrel/pkg/sorrel/errors"
	"github.com/sambeau/sorrel/pkg/sorrel/syntax"
)

func getSecret(base syntax.Expression, args ...syntax.Expression) *syntax.CallExpression {
	return &syntax.CallExpression{Base: base, Name: syntax.SecretFunction, Args: args}
}

func TestSecret_ReferenceShape(t *testing.T) {
	f := newFixture(Settings{})
	vault := f.addResource("kv", "keyvault/vaults@2024-01-01",
		object(objProp("name", str("prod-vault"))))

	got := emitString(t, f, func(e *Emitter, w Writer) error {
		w.BeginObject()
		if err := e.EmitModuleParameter(w, getSecret(f.ref(vault), str("dbPassword"))); err != nil {
			return err
		}
		w.EndObject()
		return nil
	})
	want := `{"reference":{` +
		`"keyVault":{"id":"[resourceId('keyvault/vaults', 'prod-vault')]"},` +
		`"secretName":"dbPassword"}}`
	if got != want {
		t.Errorf("emitted:\n %s\nwant:\n %s", got, want)
	}
}

func TestSecret_Version(t *testing.T) {
	f := newFixture(Settings{})
	vault := f.addResource("kv", "keyvault/vaults@2024-01-01",
		object(objProp("name", str("prod-vault"))))

	got := emitString(t, f, func(e *Emitter, w Writer) error {
		w.BeginObject()
		err := e.EmitModuleParameter(w, getSecret(f.ref(vault), str("dbPassword"), str("v7")))
		if err != nil {
			return err
		}
		w.EndObject()
		return nil
	})
	want := `{"reference":{` +
		`"keyVault":{"id":"[resourceId('keyvault/vaults', 'prod-vault')]"},` +
		`"secretName":"dbPassword","secretVersion":"v7"}}`
	if got != want {
		t.Errorf("emitted:\n %s\nwant:\n %s", got, want)
	}
}

func TestSecret_IDStaysFullyQualifiedInSymbolicStyle(t *testing.T) {
	// Key vault references resolve by id; the symbolic reference style must
	// not leak into the keyVault object.
	f := newFixture(Settings{SymbolicReferences: true})
	vault := f.addResource("kv", "keyvault/vaults@2024-01-01",
		object(objProp("name", str("prod-vault"))))

	got := emitString(t, f, func(e *Emitter, w Writer) error {
		w.BeginObject()
		if err := e.EmitModuleParameter(w, getSecret(f.ref(vault), str("s"))); err != nil {
			return err
		}
		w.EndObject()
		return nil
	})
	want := `{"reference":{` +
		`"keyVault":{"id":"[resourceId('keyvault/vaults', 'prod-vault')]"},` +
		`"secretName":"s"}}`
	if got != want {
		t.Errorf("emitted:\n %s\nwant:\n %s", got, want)
	}
}

func TestSecret_LoopedVaultWithExplicitIndex(t *testing.T) {
	f := newFixture(Settings{})
	names := f.addParam("names", "array")
	fe := f.loop("n", "", f.ref(names))
	fe.Body = object(objProp("name", f.itemRef(fe)))
	vault := f.addResource("vaults", "keyvault/vaults@2024-01-01", fe)

	got := emitString(t, f, func(e *Emitter, w Writer) error {
		w.BeginObject()
		indexed := &syntax.IndexAccess{Base: f.ref(vault), Index: integer(1)}
		if err := e.EmitModuleParameter(w, getSecret(indexed, str("s"))); err != nil {
			return err
		}
		w.EndObject()
		return nil
	})
	wantID := `"id":"[resourceId('keyvault/vaults', parameters('names')[1])]"`
	if got != `{"reference":{"keyVault":{`+wantID+`},"secretName":"s"}}` {
		t.Errorf("emitted: %s", got)
	}
}

func TestSecret_NonVaultBaseIsFatal(t *testing.T) {
	f := newFixture(Settings{})
	store := f.addResource("store", "storage/accounts@2024-01-01",
		object(objProp("name", str("mystore"))))

	err := emitErr(t, f, func(e *Emitter, w Writer) error {
		w.BeginObject()
		return e.EmitModuleParameter(w, getSecret(f.ref(store), str("s")))
	})
	if serr := err.(*errors.SorrelError); serr.Code != "EMIT-0002" {
		t.Errorf("Code = %q, want EMIT-0002", serr.Code)
	}
}

func TestSecret_NonResourceBaseIsFatal(t *testing.T) {
	f := newFixture(Settings{})
	p := f.addParam("vaultRef", "object")

	err := emitErr(t, f, func(e *Emitter, w Writer) error {
		w.BeginObject()
		return e.EmitModuleParameter(w, getSecret(f.ref(p), str("s")))
	})
	if serr := err.(*errors.SorrelError); serr.Code != "EMIT-0002" {
		t.Errorf("Code = %q, want EMIT-0002", serr.Code)
	}
}

func TestSecret_ArgumentShapeIsFatal(t *testing.T) {
	f := newFixture(Settings{})
	vault := f.addResource("kv", "keyvault/vaults@2024-01-01",
		object(objProp("name", str("prod-vault"))))

	for _, args := range [][]syntax.Expression{
		nil,
		{str("a"), str("b"), str("c")},
	} {
		err := emitErr(t, f, func(e *Emitter, w Writer) error {
			w.BeginObject()
			return e.EmitModuleParameter(w, getSecret(f.ref(vault), args...))
		})
		if serr := err.(*errors.SorrelError); serr.Code != "EMIT-0003" {
			t.Errorf("Code = %q, want EMIT-0003", serr.Code)
		}
	}
}

func TestSecret_PlainParameterEmitsValue(t *testing.T) {
	f := newFixture(Settings{})
	env := f.addParam("env", "string")

	got := emitString(t, f, func(e *Emitter, w Writer) error {
		w.BeginObject()
		if err := e.EmitModuleParameter(w, f.ref(env)); err != nil {
			return err
		}
		w.EndObject()
		return nil
	})
	if got != `{"value":"[parameters('env')]"}` {
		t.Errorf("emitted %s", got)
	}
}
