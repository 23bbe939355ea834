package errors

import (
	stdErrors "errors"
	"fmt"
)

// Trace is the log-friendly view of an error chain.
type Trace struct {
	Message string
	Code    Code
	Status  int
	// Causes lists each wrapped layer below the top, innermost last.
	Causes []string
}

// TraceOf flattens err for structured logging. Untyped errors keep a zero
// Code and Status.
func TraceOf(err error) Trace {
	if err == nil {
		return Trace{}
	}
	t := Trace{Message: err.Error()}
	if typed := As(err); typed != nil {
		t.Code = typed.Code()
		t.Status = typed.HTTPStatus()
	}
	for e := stdErrors.Unwrap(err); e != nil; e = stdErrors.Unwrap(e) {
		if typed, ok := e.(*Error); ok {
			t.Causes = append(t.Causes, fmt.Sprintf("%s: %s", typed.code, typed.message))
			continue
		}
		t.Causes = append(t.Causes, fmt.Sprintf("%T: %v", e, e))
	}
	return t
}
