package emit

import (
	"bytes"
	"testing"
)

func TestJSONWriter_Compact(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONWriter(&buf, "")

	w.BeginObject()
	w.Name("a")
	w.Int(1)
	w.Name("b")
	w.BeginArray()
	w.String("x")
	w.Bool(true)
	w.Null()
	w.EndArray()
	w.Name("c")
	w.BeginObject()
	w.EndObject()
	w.EndObject()

	if err := w.Err(); err != nil {
		t.Fatal(err)
	}
	want := `{"a":1,"b":["x",true,null],"c":{}}`
	if got := buf.String(); got != want {
		t.Errorf("wrote %s, want %s", got, want)
	}
}

func TestJSONWriter_Indented(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONWriter(&buf, "  ")

	w.BeginObject()
	w.Name("a")
	w.Int(1)
	w.Name("b")
	w.BeginArray()
	w.String("x")
	w.EndArray()
	w.EndObject()

	if err := w.Err(); err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"a\": 1,\n  \"b\": [\n    \"x\"\n  ]\n}"
	if got := buf.String(); got != want {
		t.Errorf("wrote:\n%s\nwant:\n%s", got, want)
	}
}

func TestJSONWriter_StringEscaping(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONWriter(&buf, "")
	w.String("a\"b\\c\n")
	if got := buf.String(); got != `"a\"b\\c\n"` {
		t.Errorf("wrote %s", got)
	}
}

type failingSink struct {
	limit int
}

func (s *failingSink) Write(p []byte) (int, error) {
	if s.limit <= 0 {
		return 0, bytes.ErrTooLarge
	}
	s.limit--
	return len(p), nil
}

func TestJSONWriter_StickyError(t *testing.T) {
	w := NewJSONWriter(&failingSink{limit: 2}, "")

	w.BeginObject()
	w.Name("a")
	w.Int(1)
	w.Name("b")
	w.Int(2)
	w.EndObject()

	if w.Err() == nil {
		t.Fatal("expected the sink error to surface")
	}
	first := w.Err()
	w.Int(3)
	if w.Err() != first {
		t.Error("later writes must not replace the first error")
	}
}
