package syntax

import "testing"

func TestString(t *testing.T) {
	loop := &ForExpression{
		Item:   &Identifier{Name: "zone"},
		Index:  &Identifier{Name: "i"},
		Source: &Identifier{Name: "zones"},
		Body: &ObjectLiteral{Properties: []*ObjectProperty{
			{Key: &Identifier{Name: "name"}, Value: &InterpolatedString{Parts: []Expression{
				&StringLiteral{Value: "zone-"},
				&Identifier{Name: "i"},
			}}},
		}},
	}

	tests := []struct {
		name     string
		node     Node
		expected string
	}{
		{"integer", &IntegerLiteral{Value: 42}, "42"},
		{"boolean", &BooleanLiteral{Value: true}, "true"},
		{"null", &NullLiteral{}, "null"},
		{"string", &StringLiteral{Value: "hi"}, `"hi"`},
		{
			"interpolated string",
			&InterpolatedString{Parts: []Expression{
				&StringLiteral{Value: "app-"},
				&Identifier{Name: "env"},
			}},
			"'app-${env}'",
		},
		{
			"object",
			&ObjectLiteral{Properties: []*ObjectProperty{
				{Key: &Identifier{Name: "a"}, Value: &IntegerLiteral{Value: 1}},
				{Key: &StringLiteral{Value: "b"}, Value: &BooleanLiteral{Value: false}},
			}},
			`{a: 1, "b": false}`,
		},
		{
			"array",
			&ArrayLiteral{Items: []Expression{&IntegerLiteral{Value: 1}, &IntegerLiteral{Value: 2}}},
			"[1, 2]",
		},
		{
			"for with index",
			loop,
			"for (zone, i) in zones: {name: 'zone-${i}'}",
		},
		{
			"ternary",
			&TernaryExpression{
				Condition: &Identifier{Name: "isProd"},
				Then:      &StringLiteral{Value: "big"},
				Else:      &StringLiteral{Value: "small"},
			},
			`(isProd ? "big" : "small")`,
		},
		{
			"method call",
			&CallExpression{
				Base: &Identifier{Name: "vault"},
				Name: SecretFunction,
				Args: []Expression{&StringLiteral{Value: "dbPassword"}},
			},
			`vault.getSecret("dbPassword")`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.node.String(); got != tt.expected {
				t.Errorf("String() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestObjectProperty_KeyName(t *testing.T) {
	plain := &ObjectProperty{Key: &Identifier{Name: "size"}}
	if name, ok := plain.KeyName(); !ok || name != "size" {
		t.Errorf("KeyName() = %q, %v", name, ok)
	}

	quoted := &ObjectProperty{Key: &StringLiteral{Value: "content-type"}}
	if name, ok := quoted.KeyName(); !ok || name != "content-type" {
		t.Errorf("KeyName() = %q, %v", name, ok)
	}

	computed := &ObjectProperty{Key: &CallExpression{Name: "toLower", Args: []Expression{&Identifier{Name: "k"}}}}
	if _, ok := computed.KeyName(); ok {
		t.Error("computed keys must not report a plain name")
	}
}

func TestKindName(t *testing.T) {
	if got := KindName(&TernaryExpression{}); got != "TernaryExpression" {
		t.Errorf("KindName() = %q", got)
	}
	if got := KindName(&ResourceDecl{}); got != "ResourceDecl" {
		t.Errorf("KindName() = %q", got)
	}
}
