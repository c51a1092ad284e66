package emit

import (
	"encoding/json"
	"io"
	"strconv"
)

// Writer is the structured document sink the emitter drives. The caller owns
// the underlying stream and its lifecycle; the emitter only walks it.
type Writer interface {
	BeginObject()
	EndObject()
	BeginArray()
	EndArray()
	Name(name string)
	String(value string)
	Int(value int64)
	Bool(value bool)
	Null()
}

// JSONWriter streams a JSON document to an io.Writer, preserving the exact
// order values are written in. Write errors are sticky and surfaced from
// Err() so call sites stay uncluttered; emission output after the first
// error is undefined but safe.
type JSONWriter struct {
	out    io.Writer
	indent string
	err    error

	depth   int
	first   []bool // per-depth: no value written yet at this level
	pending bool   // a property name awaits its value
}

// NewJSONWriter creates a writer. An empty indent produces compact output.
func NewJSONWriter(out io.Writer, indent string) *JSONWriter {
	return &JSONWriter{out: out, indent: indent, first: []bool{true}}
}

// Err returns the first underlying write error, if any.
func (w *JSONWriter) Err() error {
	return w.err
}

func (w *JSONWriter) write(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.out, s)
}

func (w *JSONWriter) newline() {
	if w.indent == "" {
		return
	}
	w.write("\n")
	for i := 0; i < w.depth; i++ {
		w.write(w.indent)
	}
}

// beforeValue handles commas and layout in front of the next value or name.
func (w *JSONWriter) beforeValue() {
	if w.pending {
		w.pending = false
		return
	}
	if w.depth == 0 {
		return
	}
	if !w.first[w.depth] {
		w.write(",")
	}
	w.first[w.depth] = false
	w.newline()
}

func (w *JSONWriter) open(bracket string) {
	w.beforeValue()
	w.write(bracket)
	w.depth++
	if w.depth >= len(w.first) {
		w.first = append(w.first, true)
	} else {
		w.first[w.depth] = true
	}
}

func (w *JSONWriter) close(bracket string) {
	empty := w.first[w.depth]
	w.depth--
	if !empty {
		w.newline()
	}
	w.write(bracket)
}

// BeginObject starts an object value.
func (w *JSONWriter) BeginObject() { w.open("{") }

// EndObject closes the current object.
func (w *JSONWriter) EndObject() { w.close("}") }

// BeginArray starts an array value.
func (w *JSONWriter) BeginArray() { w.open("[") }

// EndArray closes the current array.
func (w *JSONWriter) EndArray() { w.close("]") }

// Name writes a property name; the next write supplies its value.
func (w *JSONWriter) Name(name string) {
	w.beforeValue()
	w.write(quote(name))
	if w.indent == "" {
		w.write(":")
	} else {
		w.write(": ")
	}
	w.pending = true
}

// String writes a string value.
func (w *JSONWriter) String(value string) {
	w.beforeValue()
	w.write(quote(value))
}

// Int writes an integer value.
func (w *JSONWriter) Int(value int64) {
	w.beforeValue()
	w.write(strconv.FormatInt(value, 10))
}

// Bool writes a boolean value.
func (w *JSONWriter) Bool(value bool) {
	w.beforeValue()
	w.write(strconv.FormatBool(value))
}

// Null writes a null value.
func (w *JSONWriter) Null() {
	w.beforeValue()
	w.write("null")
}

// quote renders a JSON string token. encoding/json does the escaping so the
// output matches what every other tool in the pipeline produces.
func quote(s string) string {
	data, err := json.Marshal(s)
	if err != nil {
		// Marshalling a string cannot fail on valid UTF-8; invalid bytes
		// are replaced by the encoder, so this stays unreachable.
		return `""`
	}
	return string(data)
}
