package port

import (
	"fmt"
	"strings"
)

// ScriptResult is the outcome of one ExecuteScript call.
type ScriptResult struct {
	// Value is the exported result (nil for undefined/null).
	Value any
	// JSON is the JSON encoding of Value, empty when it has none.
	JSON string
	// Err is set when the script failed; usually a *ScriptError.
	Err error
}

// OK reports whether the script completed without error.
func (r ScriptResult) OK() bool {
	return r.Err == nil
}

// ScriptError describes a failure reported by the browser engine while
// evaluating a script (exception, syntax error, timeout).
type ScriptError struct {
	Message string
	Line    int
	Column  int
	Cause   error
}

func (e *ScriptError) Error() string {
	var b strings.Builder
	b.WriteString("script execution failed: ")
	b.WriteString(e.Message)
	if e.Line > 0 {
		fmt.Fprintf(&b, " (line %d, column %d)", e.Line, e.Column)
	}
	return b.String()
}

func (e *ScriptError) Unwrap() error {
	return e.Cause
}
