// Package astfile decodes the front end's JSON syntax interchange into bound
// syntax trees. The front end (parser and checker) runs as a separate tool;
// its output carries kind-tagged expression nodes per declaration plus the
// inline-variable list, and this loader rebuilds the syntax.Program and the
// semantics.Model the emission engine works from.
package astfile

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sambeau/sorrel/pkg/sorrel/errors"
	"github.com/sambeau/sorrel/pkg/sorrel/semantics"
	"github.com/sambeau/sorrel/pkg/sorrel/syntax"
)

// Unit is one decoded compilation unit, ready for emission.
type Unit struct {
	Program *syntax.Program
	Model   *semantics.Model

	// Inline flags the variables whose uses the front end decided to
	// substitute; keyed the way emit.Context expects.
	Inline map[*semantics.VariableSymbol]bool
}

// Load reads and decodes an interchange file.
func Load(path string) (*Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.New("AST-0002", map[string]any{"Reason": err.Error()})
	}
	defer f.Close()

	unit, err := Decode(f)
	if err != nil {
		if serr, ok := err.(*errors.SorrelError); ok {
			return nil, serr.WithFile(path)
		}
		return nil, err
	}
	return unit, nil
}

// Decode decodes an interchange document from r.
func Decode(r io.Reader) (*Unit, error) {
	var doc fileDoc
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.New("AST-0002", map[string]any{"Reason": err.Error()})
	}

	ld := &loader{
		model:   semantics.NewModel(),
		globals: make(map[string]semantics.Symbol),
		outputs: make(map[string]bool),
	}
	return ld.load(&doc)
}

// fileDoc is the top-level interchange shape.
type fileDoc struct {
	Declarations []rawDecl `json:"declarations"`
	Inline       []string  `json:"inline"`
}

// rawDecl carries one declaration of any kind; unused fields stay zero.
type rawDecl struct {
	Decl      string   `json:"decl"`
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	Path      string   `json:"path"`
	Secure    bool     `json:"secure"`
	BatchSize *int     `json:"batchSize"`
	Default   *rawNode `json:"default"`
	Value     *rawNode `json:"value"`
	Body      *rawNode `json:"body"`
}

// rawNode is the kind-tagged expression encoding. Value's concrete type
// depends on Kind, so it stays raw until the kind dispatch.
type rawNode struct {
	Kind string `json:"kind"`
	Line int    `json:"line"`
	Col  int    `json:"col"`

	Value json.RawMessage `json:"value"`
	Name  string          `json:"name"`
	Op    string          `json:"op"`

	Parts      []*rawNode `json:"parts"`
	Items      []*rawNode `json:"items"`
	Properties []*rawProp `json:"properties"`
	Args       []*rawNode `json:"args"`

	Base  *rawNode `json:"base"`
	Index *rawNode `json:"index"`
	Left  *rawNode `json:"left"`
	Right *rawNode `json:"right"`
	Cond  *rawNode `json:"cond"`
	Then  *rawNode `json:"then"`
	Else  *rawNode `json:"else"`

	// for-expression fields: item/indexName are the declared variable
	// names, source/body the iterated expression and per-item value.
	Item      string   `json:"item"`
	IndexName string   `json:"indexName"`
	Source    *rawNode `json:"source"`
	Body      *rawNode `json:"body"`
}

// rawProp is one object property: a plain name, or a computed key node.
type rawProp struct {
	Name  string   `json:"name"`
	Key   *rawNode `json:"key"`
	Value *rawNode `json:"value"`
}

// scope is one lexical frame of loop locals, innermost last.
type scope map[string]*semantics.LocalSymbol

type loader struct {
	model   *semantics.Model
	globals map[string]semantics.Symbol
	outputs map[string]bool
	scopes  []scope
}

func (ld *loader) load(doc *fileDoc) (*Unit, error) {
	prog := &syntax.Program{}

	// Declarations may reference each other in any order, so symbols are
	// registered before any body is decoded.
	for i := range doc.Declarations {
		decl, err := ld.registerDecl(&doc.Declarations[i])
		if err != nil {
			return nil, err
		}
		prog.Declarations = append(prog.Declarations, decl)
	}

	for i := range doc.Declarations {
		if err := ld.fillDecl(&doc.Declarations[i], prog.Declarations[i]); err != nil {
			return nil, err
		}
	}

	inline := make(map[*semantics.VariableSymbol]bool)
	for _, name := range doc.Inline {
		sym, ok := ld.globals[name].(*semantics.VariableSymbol)
		if !ok {
			return nil, errors.New("AST-0004",
				map[string]any{"Name": "inline", "Ref": name})
		}
		inline[sym] = true
	}

	return &Unit{Program: prog, Model: ld.model, Inline: inline}, nil
}

// registerDecl creates the declaration node and its symbol without decoding
// any expression, so later bodies can reference it.
func (ld *loader) registerDecl(raw *rawDecl) (syntax.Declaration, error) {
	if raw.Name == "" {
		return nil, errors.New("AST-0002", map[string]any{"Reason": "declaration without a name"})
	}
	if _, exists := ld.globals[raw.Name]; exists || ld.outputs[raw.Name] {
		return nil, errors.New("AST-0002",
			map[string]any{"Reason": fmt.Sprintf("duplicate declaration %q", raw.Name)})
	}

	id := &syntax.Identifier{Name: raw.Name}

	switch raw.Decl {
	case "parameter":
		decl := &syntax.ParameterDecl{Name: id, Type: raw.Type, Secure: raw.Secure}
		sym := &semantics.ParameterSymbol{Name: raw.Name, Decl: decl}
		ld.bindGlobal(id, sym)
		return decl, nil

	case "variable":
		decl := &syntax.VariableDecl{Name: id}
		sym := &semantics.VariableSymbol{Name: raw.Name, Decl: decl}
		ld.bindGlobal(id, sym)
		return decl, nil

	case "resource":
		decl := &syntax.ResourceDecl{Name: id, Type: raw.Type, BatchSize: raw.BatchSize}
		sym := &semantics.ResourceSymbol{
			Name: raw.Name,
			Type: semantics.ParseTypeReference(raw.Type),
			Decl: decl,
		}
		ld.bindGlobal(id, sym)
		return decl, nil

	case "module":
		decl := &syntax.ModuleDecl{Name: id, Path: raw.Path, BatchSize: raw.BatchSize}
		sym := &semantics.ModuleSymbol{Name: raw.Name, Decl: decl}
		ld.bindGlobal(id, sym)
		return decl, nil

	case "output":
		// Outputs declare nothing referenceable, but their names still share
		// the declaration namespace so duplicates are caught.
		ld.outputs[raw.Name] = true
		return &syntax.OutputDecl{Name: id, Type: raw.Type}, nil
	}

	return nil, errors.New("AST-0003", map[string]any{"Kind": raw.Decl})
}

func (ld *loader) bindGlobal(id *syntax.Identifier, sym semantics.Symbol) {
	ld.model.Bind(id, sym)
	ld.globals[id.Name] = sym
}

func (ld *loader) fillDecl(raw *rawDecl, decl syntax.Declaration) error {
	switch d := decl.(type) {
	case *syntax.ParameterDecl:
		if raw.Default == nil {
			return nil
		}
		def, err := ld.node(raw.Default)
		if err != nil {
			return err
		}
		d.Default = def

	case *syntax.VariableDecl:
		value, err := ld.requireNode(raw.Value, "variable "+raw.Name)
		if err != nil {
			return err
		}
		d.Value = value

	case *syntax.ResourceDecl:
		body, err := ld.requireNode(raw.Body, "resource "+raw.Name)
		if err != nil {
			return err
		}
		d.Body = body

	case *syntax.ModuleDecl:
		body, err := ld.requireNode(raw.Body, "module "+raw.Name)
		if err != nil {
			return err
		}
		d.Body = body

	case *syntax.OutputDecl:
		value, err := ld.requireNode(raw.Value, "output "+raw.Name)
		if err != nil {
			return err
		}
		d.Value = value
	}
	return nil
}

func (ld *loader) requireNode(raw *rawNode, where string) (syntax.Expression, error) {
	if raw == nil {
		return nil, errors.New("AST-0002",
			map[string]any{"Reason": where + " has no value"})
	}
	return ld.node(raw)
}

func (ld *loader) node(raw *rawNode) (syntax.Expression, error) {
	if raw == nil {
		return nil, errors.New("AST-0002", map[string]any{"Reason": "missing child node"})
	}
	pos := syntax.Position{Line: raw.Line, Column: raw.Col}

	switch raw.Kind {
	case "string":
		var v string
		if err := json.Unmarshal(raw.Value, &v); err != nil {
			return nil, ld.malformed(raw, err)
		}
		return &syntax.StringLiteral{Pos: pos, Value: v}, nil

	case "int":
		var v int64
		if err := json.Unmarshal(raw.Value, &v); err != nil {
			return nil, ld.malformed(raw, err)
		}
		return &syntax.IntegerLiteral{Pos: pos, Value: v}, nil

	case "bool":
		var v bool
		if err := json.Unmarshal(raw.Value, &v); err != nil {
			return nil, ld.malformed(raw, err)
		}
		return &syntax.BooleanLiteral{Pos: pos, Value: v}, nil

	case "null":
		return &syntax.NullLiteral{Pos: pos}, nil

	case "interp":
		parts := make([]syntax.Expression, len(raw.Parts))
		for i, part := range raw.Parts {
			node, err := ld.node(part)
			if err != nil {
				return nil, err
			}
			parts[i] = node
		}
		return &syntax.InterpolatedString{Pos: pos, Parts: parts}, nil

	case "array":
		items := make([]syntax.Expression, len(raw.Items))
		for i, item := range raw.Items {
			node, err := ld.node(item)
			if err != nil {
				return nil, err
			}
			items[i] = node
		}
		return &syntax.ArrayLiteral{Pos: pos, Items: items}, nil

	case "object":
		props := make([]*syntax.ObjectProperty, len(raw.Properties))
		for i, p := range raw.Properties {
			prop, err := ld.property(p)
			if err != nil {
				return nil, err
			}
			props[i] = prop
		}
		return &syntax.ObjectLiteral{Pos: pos, Properties: props}, nil

	case "ident":
		return ld.identifier(raw, pos)

	case "property":
		base, err := ld.node(raw.Base)
		if err != nil {
			return nil, err
		}
		return &syntax.PropertyAccess{Pos: pos, Base: base, Name: raw.Name}, nil

	case "index":
		base, err := ld.node(raw.Base)
		if err != nil {
			return nil, err
		}
		index, err := ld.node(raw.Index)
		if err != nil {
			return nil, err
		}
		return &syntax.IndexAccess{Pos: pos, Base: base, Index: index}, nil

	case "call":
		var base syntax.Expression
		if raw.Base != nil {
			node, err := ld.node(raw.Base)
			if err != nil {
				return nil, err
			}
			base = node
		}
		args := make([]syntax.Expression, len(raw.Args))
		for i, arg := range raw.Args {
			node, err := ld.node(arg)
			if err != nil {
				return nil, err
			}
			args[i] = node
		}
		return &syntax.CallExpression{Pos: pos, Base: base, Name: raw.Name, Args: args}, nil

	case "prefix":
		right, err := ld.node(raw.Right)
		if err != nil {
			return nil, err
		}
		return &syntax.PrefixExpression{Pos: pos, Operator: raw.Op, Right: right}, nil

	case "infix":
		left, err := ld.node(raw.Left)
		if err != nil {
			return nil, err
		}
		right, err := ld.node(raw.Right)
		if err != nil {
			return nil, err
		}
		return &syntax.InfixExpression{Pos: pos, Operator: raw.Op, Left: left, Right: right}, nil

	case "ternary":
		cond, err := ld.node(raw.Cond)
		if err != nil {
			return nil, err
		}
		then, err := ld.node(raw.Then)
		if err != nil {
			return nil, err
		}
		otherwise, err := ld.node(raw.Else)
		if err != nil {
			return nil, err
		}
		return &syntax.TernaryExpression{Pos: pos, Condition: cond, Then: then, Else: otherwise}, nil

	case "for":
		return ld.forExpression(raw, pos)
	}

	return nil, errors.NewWithPosition("AST-0001", raw.Line, raw.Col,
		map[string]any{"Kind": raw.Kind})
}

func (ld *loader) property(raw *rawProp) (*syntax.ObjectProperty, error) {
	value, err := ld.node(raw.Value)
	if err != nil {
		return nil, err
	}
	if raw.Name != "" {
		return &syntax.ObjectProperty{
			Key:   &syntax.Identifier{Name: raw.Name},
			Value: value,
		}, nil
	}
	if raw.Key == nil {
		return nil, errors.New("AST-0002",
			map[string]any{"Reason": "object property without name or key"})
	}
	key, err := ld.node(raw.Key)
	if err != nil {
		return nil, err
	}
	return &syntax.ObjectProperty{Key: key, Value: value}, nil
}

// identifier resolves a name lexically: the innermost loop local wins, then
// the program's declarations.
func (ld *loader) identifier(raw *rawNode, pos syntax.Position) (syntax.Expression, error) {
	id := &syntax.Identifier{Pos: pos, Name: raw.Name}

	for i := len(ld.scopes) - 1; i >= 0; i-- {
		if sym, ok := ld.scopes[i][raw.Name]; ok {
			ld.model.Bind(id, sym)
			return id, nil
		}
	}
	if sym, ok := ld.globals[raw.Name]; ok {
		ld.model.Bind(id, sym)
		return id, nil
	}

	return nil, errors.NewWithPosition("AST-0004", raw.Line, raw.Col,
		map[string]any{"Name": "expression", "Ref": raw.Name})
}

func (ld *loader) forExpression(raw *rawNode, pos syntax.Position) (syntax.Expression, error) {
	if raw.Item == "" {
		return nil, errors.NewWithPosition("AST-0002", raw.Line, raw.Col,
			map[string]any{"Reason": "for-expression without an item variable"})
	}

	// The source is evaluated outside the loop's own scope.
	source, err := ld.requireNode(raw.Source, "for-expression source")
	if err != nil {
		return nil, err
	}

	fe := &syntax.ForExpression{Pos: pos, Source: source}
	frame := scope{}

	fe.Item = &syntax.Identifier{Name: raw.Item}
	item := &semantics.LocalSymbol{Name: raw.Item, Kind: semantics.LocalItem, Loop: fe}
	ld.model.Bind(fe.Item, item)
	frame[raw.Item] = item

	if raw.IndexName != "" {
		fe.Index = &syntax.Identifier{Name: raw.IndexName}
		index := &semantics.LocalSymbol{Name: raw.IndexName, Kind: semantics.LocalIndex, Loop: fe}
		ld.model.Bind(fe.Index, index)
		frame[raw.IndexName] = index
	}

	ld.scopes = append(ld.scopes, frame)
	body, err := ld.requireNode(raw.Body, "for-expression body")
	ld.scopes = ld.scopes[:len(ld.scopes)-1]
	if err != nil {
		return nil, err
	}
	fe.Body = body
	return fe, nil
}

func (ld *loader) malformed(raw *rawNode, err error) error {
	return errors.NewWithPosition("AST-0002", raw.Line, raw.Col,
		map[string]any{"Reason": fmt.Sprintf("%s node: %v", raw.Kind, err)})
}
