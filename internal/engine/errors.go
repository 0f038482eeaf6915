package engine

import (
	"errors"
	"fmt"
)

// Code categorizes engine errors and render diagnostics.
type Code string

const (
	// CodeMalformedPatch indicates a stream fragment that does not decode
	// or does not address a writable location.
	CodeMalformedPatch Code = "MALFORMED_PATCH"

	// CodeDanglingReference indicates a root or child key with no element.
	// Expected while building; an error once settled.
	CodeDanglingReference Code = "DANGLING_REFERENCE"

	// CodeUnknownComponent indicates an element type with no renderer.
	CodeUnknownComponent Code = "UNKNOWN_COMPONENT"

	// CodeSchemaValidation indicates props or params rejected by the catalog.
	CodeSchemaValidation Code = "SCHEMA_VALIDATION"

	// CodeUnregisteredAction indicates an action with no host handler.
	CodeUnregisteredAction Code = "UNREGISTERED_ACTION"

	// CodeComparisonMismatch indicates an ordered visibility comparison
	// between non-numeric operands.
	CodeComparisonMismatch Code = "COMPARISON_MISMATCH"

	// CodeLimitExceeded indicates a stream exceeded its element or patch cap.
	CodeLimitExceeded Code = "LIMIT_EXCEEDED"

	// CodeCycleDetected indicates an element reachable from itself.
	CodeCycleDetected Code = "CYCLE_DETECTED"

	// CodeConfirmationPending indicates a dispatch refused because another
	// confirmation is pending.
	CodeConfirmationPending Code = "CONFIRMATION_PENDING"

	// CodeStreamAborted indicates a write to a stream that is no longer
	// accepting patches.
	CodeStreamAborted Code = "STREAM_ABORTED"

	// CodeTransport indicates the patch source failed.
	CodeTransport Code = "TRANSPORT"

	// CodeInvalidVisibility indicates a visibility condition that does not
	// parse. The element is hidden.
	CodeInvalidVisibility Code = "INVALID_VISIBILITY"
)

// Error is the single error type of the engine. Every failure that is local
// to one element, one patch or one action carries the location it concerns
// so that hosts can report it without parsing messages.
type Error struct {
	// Code identifies the error category.
	Code Code

	// Message is a human-readable description.
	Message string

	// Key identifies the affected element, if any.
	Key string

	// Path is the patch path or data path involved, if any.
	Path string

	// Action is the action name, if any.
	Action string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.Key != "":
		msg += fmt.Sprintf(" (element=%s)", e.Key)
	case e.Action != "":
		msg += fmt.Sprintf(" (action=%s)", e.Action)
	case e.Path != "":
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether err is, or wraps, an *Error with the given code.
func IsCode(err error, code Code) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// NewMalformedError creates an Error for an unusable stream fragment.
func NewMalformedError(path, message string, cause error) *Error {
	return &Error{Code: CodeMalformedPatch, Message: message, Path: path, Err: cause}
}

// NewDanglingError creates an Error for a key that names no element.
// from is the element whose children reference it, or "" for the root.
func NewDanglingError(key, from string) *Error {
	e := &Error{Code: CodeDanglingReference, Key: key}
	if from == "" {
		e.Message = fmt.Sprintf("root %q is not an element", key)
	} else {
		e.Message = fmt.Sprintf("child %q of %q is not an element", key, from)
		e.Details = map[string]string{"parent": from}
	}
	return e
}

// NewUnknownComponentError creates an Error for an element type that has no
// renderer.
func NewUnknownComponentError(key, typ string) *Error {
	return &Error{
		Code:    CodeUnknownComponent,
		Message: fmt.Sprintf("no renderer for type %q", typ),
		Key:     key,
		Details: map[string]string{"type": typ},
	}
}

// NewLimitError creates an Error for an exceeded stream cap.
func NewLimitError(limit string, count, max int) *Error {
	return &Error{
		Code:    CodeLimitExceeded,
		Message: fmt.Sprintf("%s limit exceeded (%d > %d)", limit, count, max),
		Details: map[string]string{
			"limit": limit,
			"count": fmt.Sprintf("%d", count),
			"max":   fmt.Sprintf("%d", max),
		},
	}
}

// NewCycleError creates an Error for an element that is its own ancestor.
func NewCycleError(key string, path []string) *Error {
	return &Error{
		Code:    CodeCycleDetected,
		Message: fmt.Sprintf("element %q is its own ancestor", key),
		Key:     key,
		Details: map[string]string{"path": fmt.Sprintf("%v", path)},
	}
}

// NewUnregisteredActionError creates an Error for an action with no handler.
func NewUnregisteredActionError(name string) *Error {
	return &Error{
		Code:    CodeUnregisteredAction,
		Message: "no handler registered",
		Action:  name,
	}
}

// NewTransportError creates an Error for a failed patch source.
func NewTransportError(cause error) *Error {
	return &Error{Code: CodeTransport, Message: "stream source failed", Err: cause}
}
