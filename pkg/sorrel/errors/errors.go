// Package errors provides structured error types for the Sorrel compiler backend.
//
// This package defines SorrelError, a unified error type for everything the
// emission pipeline can raise, with rich metadata for display and programmatic
// handling. Emission failures are always fatal: a failed compilation produces
// no template output.
package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

// ErrorClass categorizes errors for filtering and templating.
type ErrorClass string

const (
	ClassInternal  ErrorClass = "internal"  // Internal-consistency failures (compiler defects)
	ClassConvert   ErrorClass = "convert"   // Expression conversion failures
	ClassEmit      ErrorClass = "emit"      // Document emission failures
	ClassInterop   ErrorClass = "interop"   // Syntax-interchange decoding
	ClassConfig    ErrorClass = "config"    // Configuration loading
	ClassIO        ErrorClass = "io"        // File operations
)

// SorrelError represents any error from the emission pipeline.
type SorrelError struct {
	Class   ErrorClass     `json:"class"`           // Error category
	Code    string         `json:"code"`            // Error code (e.g., "EMIT-0001")
	Message string         `json:"message"`         // Human-readable message
	Hints   []string       `json:"hints,omitempty"` // Suggestions for fixing
	Line    int            `json:"line"`            // 1-based line (0 if unknown)
	Column  int            `json:"column"`          // 1-based column (0 if unknown)
	File    string         `json:"file,omitempty"`  // File path (if known)
	Data    map[string]any `json:"data,omitempty"`  // Template variables
}

// Error implements the error interface.
func (e *SorrelError) Error() string {
	return e.String()
}

// String returns a formatted string representation of the error.
func (e *SorrelError) String() string {
	var sb strings.Builder

	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf("line %d, column %d: ", e.Line, e.Column))
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// PrettyString returns a multi-line formatted string for display.
func (e *SorrelError) PrettyString() string {
	var sb strings.Builder

	switch e.Class {
	case ClassInternal:
		sb.WriteString("Internal compiler error")
	case ClassConfig, ClassIO:
		sb.WriteString("Build error")
	default:
		sb.WriteString("Compilation error")
	}

	if e.File != "" {
		sb.WriteString(":\n  in: ")
		sb.WriteString(e.File)
		if e.Line > 0 {
			sb.WriteString(fmt.Sprintf("\n  at: line %d, column %d", e.Line, e.Column))
		}
		sb.WriteString("\n  ")
	} else if e.Line > 0 {
		sb.WriteString(fmt.Sprintf(": line %d, column %d\n  ", e.Line, e.Column))
	} else {
		sb.WriteString(":\n  ")
	}

	sb.WriteString(e.Message)

	for i, hint := range e.Hints {
		sb.WriteString("\n  ")
		if i == 0 {
			sb.WriteString("Use: ")
		} else {
			sb.WriteString(" or: ")
		}
		sb.WriteString(hint)
	}

	return sb.String()
}

// ToJSON returns the error as JSON bytes.
func (e *SorrelError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WithFile returns a copy of the error with the file path set.
func (e *SorrelError) WithFile(file string) *SorrelError {
	copy := *e
	copy.File = file
	return &copy
}

// WithPosition returns a copy of the error with line and column set.
func (e *SorrelError) WithPosition(line, column int) *SorrelError {
	copy := *e
	copy.Line = line
	copy.Column = column
	return &copy
}

// IsInternal returns true if this error indicates a compiler defect rather
// than a problem with the user's source.
func (e *SorrelError) IsInternal() bool {
	return e.Class == ClassInternal
}

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass // Error category
	Template string     // Message template with {{.placeholders}}
	Hints    []string   // Hint templates (may use {{.placeholders}})
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	// ========================================
	// Emission errors (EMIT-0xxx)
	// ========================================
	"EMIT-0001": {
		Class:    ClassInternal,
		Template: "unsupported construct reached the emitter: {{.Kind}}",
	},
	"EMIT-0002": {
		Class:    ClassEmit,
		Template: "cannot emit a secret reference: getSecret() requires a key vault resource, got {{.Type}}",
		Hints:    []string{"pass a reference to a resource of type keyvault/vaults"},
	},
	"EMIT-0003": {
		Class:    ClassEmit,
		Template: "cannot emit a secret reference: expected getSecret(name) or getSecret(name, version), got {{.Got}}",
	},
	"EMIT-0004": {
		Class:    ClassInternal,
		Template: "a for-expression may only appear as an object property value here",
	},
	"EMIT-0005": {
		Class:    ClassInternal,
		Template: "unbound identifier reached the emitter: {{.Name}}",
	},
	"EMIT-0006": {
		Class:    ClassEmit,
		Template: "property '{{.Property}}' cannot be a loop at the top level of a looped declaration body",
		Hints:    []string{"move the loop-valued property into a nested object"},
	},

	// ========================================
	// Conversion errors (CONVERT-0xxx)
	// ========================================
	"CONVERT-0001": {
		Class:    ClassConvert,
		Template: "cannot determine the loop index for a reference to '{{.Name}}' from this scope",
		Hints:    []string{"index the looped declaration explicitly, e.g. {{.Name}}[i]"},
	},
	"CONVERT-0002": {
		Class:    ClassInternal,
		Template: "no conversion for syntax kind {{.Kind}}",
	},
	"CONVERT-0003": {
		Class:    ClassConvert,
		Template: "operator '{{.Operator}}' has no deployment-engine equivalent",
	},

	// ========================================
	// Interchange errors (AST-0xxx)
	// ========================================
	"AST-0001": {
		Class:    ClassInterop,
		Template: "unknown syntax kind '{{.Kind}}' in interchange file",
	},
	"AST-0002": {
		Class:    ClassInterop,
		Template: "malformed node: {{.Reason}}",
	},
	"AST-0003": {
		Class:    ClassInterop,
		Template: "unknown symbol kind '{{.Kind}}'",
	},
	"AST-0004": {
		Class:    ClassInterop,
		Template: "declaration '{{.Name}}' references undefined symbol '{{.Ref}}'",
	},

	// ========================================
	// Configuration errors (CONFIG-0xxx)
	// ========================================
	"CONFIG-0001": {
		Class:    ClassConfig,
		Template: "failed to read config: {{.Reason}}",
	},
	"CONFIG-0002": {
		Class:    ClassConfig,
		Template: "failed to parse config: {{.Reason}}",
	},
}

// renderTemplate renders a message template with the given data.
// On template errors the raw template is returned, so a bad catalog
// entry degrades to an ugly message rather than a panic.
func renderTemplate(tmpl string, data map[string]any) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}

	t, err := template.New("msg").Parse(tmpl)
	if err != nil {
		return tmpl
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return tmpl
	}

	return buf.String()
}

// New creates a SorrelError from a catalog code and template data.
func New(code string, data map[string]any) *SorrelError {
	def, ok := ErrorCatalog[code]
	if !ok {
		// Unknown code - create a generic error
		msg := code
		if data != nil {
			if m, ok := data["message"].(string); ok {
				msg = m
			}
		}
		return &SorrelError{
			Class:   ClassInternal,
			Code:    code,
			Message: msg,
			Data:    data,
		}
	}

	msg := renderTemplate(def.Template, data)

	var hints []string
	for _, hintTmpl := range def.Hints {
		rendered := renderTemplate(hintTmpl, data)
		if rendered != "" {
			hints = append(hints, rendered)
		}
	}

	return &SorrelError{
		Class:   def.Class,
		Code:    code,
		Message: msg,
		Hints:   hints,
		Data:    data,
	}
}

// NewWithPosition creates a SorrelError with position information.
func NewWithPosition(code string, line, column int, data map[string]any) *SorrelError {
	err := New(code, data)
	err.Line = line
	err.Column = column
	return err
}

// NewSimple creates a SorrelError with just a class and message.
func NewSimple(class ErrorClass, message string) *SorrelError {
	return &SorrelError{
		Class:   class,
		Message: message,
	}
}
