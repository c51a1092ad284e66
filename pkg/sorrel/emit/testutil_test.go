package emit

import (
	"bytes"
	"testing"

	"github.com/sambeau/sorrel/pkg/sorrel/semantics"
	"github.com/sambeau/sorrel/pkg/sorrel/syntax"
)

// fixture assembles the semantic model a test scenario needs, binding each
// reference node it hands out.
type fixture struct {
	model *semantics.Model
	ctx   *Context
}

func newFixture(settings Settings) *fixture {
	model := semantics.NewModel()
	return &fixture{model: model, ctx: NewContext(model, settings)}
}

func (f *fixture) addParam(name, typeName string) *semantics.ParameterSymbol {
	decl := &syntax.ParameterDecl{Name: &syntax.Identifier{Name: name}, Type: typeName}
	sym := &semantics.ParameterSymbol{Name: name, Decl: decl}
	f.model.Bind(decl.Name, sym)
	return sym
}

func (f *fixture) addVariable(name string, value syntax.Expression, inline bool) *semantics.VariableSymbol {
	decl := &syntax.VariableDecl{Name: &syntax.Identifier{Name: name}, Value: value}
	sym := &semantics.VariableSymbol{Name: name, Decl: decl}
	f.model.Bind(decl.Name, sym)
	if inline {
		f.ctx.Inline[sym] = true
	}
	return sym
}

func (f *fixture) addResource(name, typeName string, body syntax.Expression) *semantics.ResourceSymbol {
	decl := &syntax.ResourceDecl{
		Name: &syntax.Identifier{Name: name},
		Type: typeName,
		Body: body,
	}
	sym := &semantics.ResourceSymbol{
		Name: name,
		Type: semantics.ParseTypeReference(typeName),
		Decl: decl,
	}
	f.model.Bind(decl.Name, sym)
	return sym
}

// ref creates a fresh, bound reference to a symbol, the way the front end
// binds each use site separately.
func (f *fixture) ref(sym semantics.Symbol) *syntax.Identifier {
	id := &syntax.Identifier{Name: sym.SymbolName()}
	f.model.Bind(id, sym)
	return id
}

// loop creates a for-expression and binds its item (and optional index)
// variables. The caller fills in Body, using itemRef/indexRef for
// references inside it.
func (f *fixture) loop(itemName, indexName string, source syntax.Expression) *syntax.ForExpression {
	fe := &syntax.ForExpression{
		Item:   &syntax.Identifier{Name: itemName},
		Source: source,
	}
	f.model.Bind(fe.Item, &semantics.LocalSymbol{Name: itemName, Kind: semantics.LocalItem, Loop: fe})
	if indexName != "" {
		fe.Index = &syntax.Identifier{Name: indexName}
		f.model.Bind(fe.Index, &semantics.LocalSymbol{Name: indexName, Kind: semantics.LocalIndex, Loop: fe})
	}
	return fe
}

func (f *fixture) itemRef(fe *syntax.ForExpression) *syntax.Identifier {
	id := &syntax.Identifier{Name: fe.Item.Name}
	f.model.Bind(id, f.model.SymbolFor(fe.Item))
	return id
}

func (f *fixture) indexRef(fe *syntax.ForExpression) *syntax.Identifier {
	id := &syntax.Identifier{Name: fe.Index.Name}
	f.model.Bind(id, f.model.SymbolFor(fe.Index))
	return id
}

func str(v string) *syntax.StringLiteral     { return &syntax.StringLiteral{Value: v} }
func integer(v int64) *syntax.IntegerLiteral { return &syntax.IntegerLiteral{Value: v} }
func boolean(v bool) *syntax.BooleanLiteral  { return &syntax.BooleanLiteral{Value: v} }

func object(props ...*syntax.ObjectProperty) *syntax.ObjectLiteral {
	return &syntax.ObjectLiteral{Properties: props}
}

func objProp(key string, value syntax.Expression) *syntax.ObjectProperty {
	return &syntax.ObjectProperty{Key: &syntax.Identifier{Name: key}, Value: value}
}

func array(items ...syntax.Expression) *syntax.ArrayLiteral {
	return &syntax.ArrayLiteral{Items: items}
}

// emitString runs an emission against a compact JSON writer and returns the
// produced document text.
func emitString(t *testing.T, f *fixture, fn func(e *Emitter, w Writer) error) string {
	t.Helper()
	var buf bytes.Buffer
	w := NewJSONWriter(&buf, "")
	e := NewEmitter(f.ctx)
	if err := fn(e, w); err != nil {
		t.Fatalf("emission failed: %v", err)
	}
	if err := w.Err(); err != nil {
		t.Fatalf("writer error: %v", err)
	}
	return buf.String()
}

// emitErr runs an emission expected to fail and returns the error.
func emitErr(t *testing.T, f *fixture, fn func(e *Emitter, w Writer) error) error {
	t.Helper()
	var buf bytes.Buffer
	w := NewJSONWriter(&buf, "")
	e := NewEmitter(f.ctx)
	err := fn(e, w)
	if err == nil {
		t.Fatalf("expected an error, emitted %q", buf.String())
	}
	return err
}
