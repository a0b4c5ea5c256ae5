package pipeline

import "fmt"

// ErrorKind classifies fatal pipeline errors.
type ErrorKind string

const (
	KindSchema        ErrorKind = "schema"         // an input table lacks a required field
	KindMalformedCode ErrorKind = "malformed_code" // a department code is not textual
	KindInvalidCount  ErrorKind = "invalid_count"  // a vote count is not a non-negative integer
	KindIO            ErrorKind = "io"             // an input could not be opened or decoded
)

// Error is a fatal pipeline error. It aborts the run; no partial results are
// produced. Rows dropped by joins are not errors and never surface here.
type Error struct {
	Kind    ErrorKind
	Stage   string
	Message string
	Cause   error
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrSchema        = &Error{Kind: KindSchema}
	ErrMalformedCode = &Error{Kind: KindMalformedCode}
	ErrInvalidCount  = &Error{Kind: KindInvalidCount}
	ErrIO            = &Error{Kind: KindIO}
)

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Message != "" {
		msg = e.Message
	}
	if e.Stage != "" {
		msg = e.Stage + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind ErrorKind, stage string, cause error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}
