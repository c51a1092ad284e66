package expression

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestSerialize(t *testing.T) {
	tests := []struct {
		name     string
		expr     Expr
		expected string
	}{
		{
			name:     "parameter accessor",
			expr:     Call(FnParameters, Str("env")),
			expected: "[parameters('env')]",
		},
		{
			name:     "nested calls",
			expr:     Call(FnLength, Call(FnVariables, Str("items"))),
			expected: "[length(variables('items'))]",
		},
		{
			name:     "string with embedded quote",
			expr:     Call(FnConcat, Str("it's"), Str("here")),
			expected: "[concat('it''s', 'here')]",
		},
		{
			name:     "integer argument",
			expr:     Call(FnCopyIndex, Str("disks"), Int(1)),
			expected: "[copyIndex('disks', 1)]",
		},
		{
			name:     "boolean and null intrinsics",
			expr:     Call("if", Bool(true), Null(), Bool(false)),
			expected: "[if(true(), null(), false())]",
		},
		{
			name:     "property access chain",
			expr:     &PropertyAccess{Base: &PropertyAccess{Base: Call(FnReference, Str("store")), Name: "outputs"}, Name: "endpoint"},
			expected: "[reference('store').outputs.endpoint]",
		},
		{
			name:     "index access",
			expr:     &IndexAccess{Base: Call(FnParameters, Str("zones")), Index: Call(FnCopyIndex)},
			expected: "[parameters('zones')[copyIndex()]]",
		},
		{
			name:     "zero argument call",
			expr:     Call(FnCopyIndex),
			expected: "[copyIndex()]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Serialize(tt.expr); got != tt.expected {
				t.Errorf("Serialize() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestEscapeString(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"plain", "plain"},
		{"", ""},
		{"[looks like an expression]", "[[looks like an expression]"},
		{"[", "[["},
		{"a[b", "a[b"},
		{"[[already doubled", "[[[already doubled"},
	}

	for _, tt := range tests {
		if got := EscapeString(tt.in); got != tt.expected {
			t.Errorf("EscapeString(%q) = %q, want %q", tt.in, got, tt.expected)
		}
	}
}

func TestEscapeRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("unescape inverts escape for any string", prop.ForAll(
		func(s string) bool {
			return UnescapeString(EscapeString(s)) == s
		},
		gen.AnyString(),
	))

	properties.Property("escaped strings never start with a lone bracket", prop.ForAll(
		func(s string) bool {
			escaped := EscapeString(s)
			if len(escaped) == 0 || escaped[0] != '[' {
				return true
			}
			return len(escaped) > 1 && escaped[1] == '['
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestRewriteCopyIndexName(t *testing.T) {
	t.Run("zero-argument call gains the loop name", func(t *testing.T) {
		expr := Call(FnConcat, Str("vm-"), Call(FnCopyIndex))
		got := RewriteCopyIndexName(expr, "machines")
		if s := Serialize(got); s != "[concat('vm-', copyIndex('machines'))]" {
			t.Errorf("Serialize() = %q", s)
		}
	})

	t.Run("offset argument is preserved after the name", func(t *testing.T) {
		expr := Call(FnCopyIndex, Int(1))
		got := RewriteCopyIndexName(expr, "machines")
		if s := Serialize(got); s != "[copyIndex('machines', 1)]" {
			t.Errorf("Serialize() = %q", s)
		}
	})

	t.Run("already named calls are untouched", func(t *testing.T) {
		expr := Call(FnCopyIndex, Str("disks"))
		got := RewriteCopyIndexName(expr, "machines")
		if s := Serialize(got); s != "[copyIndex('disks')]" {
			t.Errorf("Serialize() = %q", s)
		}
	})

	t.Run("rewrites inside index and property accesses", func(t *testing.T) {
		expr := &PropertyAccess{
			Base: &IndexAccess{
				Base:  Call(FnParameters, Str("apps")),
				Index: Call(FnCopyIndex),
			},
			Name: "name",
		}
		got := RewriteCopyIndexName(expr, "sites")
		if s := Serialize(got); s != "[parameters('apps')[copyIndex('sites')].name]" {
			t.Errorf("Serialize() = %q", s)
		}
	})

	t.Run("input tree is not mutated", func(t *testing.T) {
		expr := Call(FnConcat, Call(FnCopyIndex))
		RewriteCopyIndexName(expr, "machines")
		if s := Serialize(expr); s != "[concat(copyIndex())]" {
			t.Errorf("original changed to %q", s)
		}
	})
}
