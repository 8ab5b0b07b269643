// Package errs defines the coded errors surfaced by the conversation engine.
package errs

import (
	"errors"
	"fmt"
)

// Error is a coded error. Two Errors match under errors.Is when their codes
// are equal, so callers can test against the package sentinels.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Cause   error          `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithCause adds an underlying cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithDetails merges details into the error.
func (e *Error) WithDetails(details map[string]any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// New creates an error with the given code.
func New(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error codes.
const (
	CodeInvalidMessage     = "INVALID_MESSAGE"
	CodeThreadMismatch     = "THREAD_MISMATCH"
	CodeMissingResourceID  = "MISSING_RESOURCE_ID"
	CodePersistenceFailure = "PERSISTENCE_FAILURE"
	CodeModelCallFailure   = "MODEL_CALL_FAILURE"
	CodeCallbackFailure    = "CALLBACK_FAILURE"
)

// Sentinels for errors.Is. Never mutate these; use the constructors below.
var (
	ErrInvalidMessage     = &Error{Code: CodeInvalidMessage, Message: "invalid message"}
	ErrThreadMismatch     = &Error{Code: CodeThreadMismatch, Message: "thread mismatch"}
	ErrMissingResourceID  = &Error{Code: CodeMissingResourceID, Message: "missing resource id"}
	ErrPersistenceFailure = &Error{Code: CodePersistenceFailure, Message: "persistence failure"}
	ErrModelCallFailure   = &Error{Code: CodeModelCallFailure, Message: "model call failure"}
	ErrCallbackFailure    = &Error{Code: CodeCallbackFailure, Message: "callback failure"}
)

// InvalidMessage reports malformed timeline input.
func InvalidMessage(format string, args ...any) *Error {
	return New(CodeInvalidMessage, format, args...)
}

// ThreadMismatch reports a message whose declared identity conflicts with the
// bound identity of a timeline.
func ThreadMismatch(field, bound, got string) *Error {
	return New(CodeThreadMismatch, "message %s %q does not match bound %s %q", field, got, field, bound).
		WithDetails(map[string]any{"field": field, "bound": bound, "got": got})
}

// MissingResourceID reports a thread id supplied without a resource id.
func MissingResourceID(threadID string) *Error {
	return New(CodeMissingResourceID, "thread %q requires a resource id when memory is configured", threadID).
		WithDetails(map[string]any{"thread_id": threadID})
}

// PersistenceFailure wraps a failed durable write.
func PersistenceFailure(threadID string, cause error) *Error {
	return New(CodePersistenceFailure, "saving messages for thread %q", threadID).
		WithDetails(map[string]any{"thread_id": threadID}).
		WithCause(cause)
}

// ModelCallFailure wraps a failed language-model invocation.
func ModelCallFailure(model, runID, threadID string, cause error) *Error {
	return New(CodeModelCallFailure, "model %q failed (run %s)", model, runID).
		WithDetails(map[string]any{"model": model, "run_id": runID, "thread_id": threadID}).
		WithCause(cause)
}

// CallbackFailure wraps an error returned by a caller-supplied callback.
func CallbackFailure(callback, runID string, cause error) *Error {
	return New(CodeCallbackFailure, "%s callback failed (run %s)", callback, runID).
		WithDetails(map[string]any{"callback": callback, "run_id": runID}).
		WithCause(cause)
}
