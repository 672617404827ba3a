package domain

import "fmt"

// ErrorKind classifies failures surfaced by the engine
type ErrorKind string

const (
	KindInvalidInput      ErrorKind = "invalid_input"      // unsupported or malformed URL, empty query
	KindProvider          ErrorKind = "provider"           // search/resolve/download failed inside the engine
	KindSelectionMismatch ErrorKind = "selection_mismatch" // chosen option no longer matches the descriptor
	KindIO                ErrorKind = "io"                 // thumbnail fetch or filesystem failure
)

// Sentinels for errors.Is matching by kind
var (
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrProvider          = &Error{Kind: KindProvider}
	ErrSelectionMismatch = &Error{Kind: KindSelectionMismatch}
	ErrIO                = &Error{Kind: KindIO}
)

// Error is a classified, human-readable failure.
// Error() returns Message verbatim so engine text reaches the user untouched.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewError creates a classified error with a formatted message
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies err, keeping its text as the message
func WrapError(kind ErrorKind, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: err.Error(), Err: err}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == ""
}
