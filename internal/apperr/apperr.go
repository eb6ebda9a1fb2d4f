// Package apperr defines the error kinds shared across the orchestration
// substrate (spec §7). Components return errors wrapping one of these
// kinds; the router boundary translates a kind into an HTTP status and
// never leaks internal-kind detail to clients.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a classification of failure, not a concrete error type.
type Kind string

const (
	NotFound        Kind = "not-found"
	InvalidArgument Kind = "invalid-argument"
	InvalidPath     Kind = "invalid-path"
	PermissionDenied Kind = "permission-denied"
	Conflict        Kind = "conflict"
	PayloadTooLarge Kind = "payload-too-large"
	Unavailable     Kind = "unavailable"
	Timeout         Kind = "timeout"
	Internal        Kind = "internal"
)

// Error pairs a Kind with a message and optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err, defaulting to Internal when err
// does not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err's kind equals k.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}
