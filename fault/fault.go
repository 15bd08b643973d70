// Package fault defines the closed set of error kinds produced by filesaga.
//
// Every component translates backend failures into a *Error before returning,
// so a caller can enumerate failure modes with KindOf or Is instead of
// inspecting transport errors.
package fault

import (
	"errors"
	"fmt"
)

// Kind classifies an Error.
type Kind uint8

const (
	// KindUnknown is reported by KindOf for errors that are not *Error.
	KindUnknown Kind = iota
	// KindArgument marks malformed input, e.g. an invalid path.
	KindArgument
	// KindNotFound marks a missing record.
	KindNotFound
	// KindForbidden marks cross-user access.
	KindForbidden
	// KindConflict marks a file that already fully exists.
	KindConflict
	// KindEntryAlreadyExists is the permission store's signal that the
	// conditional create lost. It never leaves the service boundary.
	KindEntryAlreadyExists
	// KindDB marks a directory store fault or a corrupted record.
	KindDB
	// KindServer marks any other backend fault.
	KindServer
)

// String returns the label used as message prefix.
func (k Kind) String() string {
	switch k {
	case KindArgument:
		return "Argument error"
	case KindNotFound:
		return "Not found"
	case KindForbidden:
		return "Forbidden"
	case KindConflict:
		return "Conflict"
	case KindEntryAlreadyExists:
		return "Entry already exists"
	case KindDB, KindServer:
		// DB faults are indistinguishable from other server faults to callers.
		return "Server error"
	default:
		return "Unknown error"
	}
}

// Error is a tagged error with an optional wrapped cause.
//
// The cause is kept for server-side logging through errors.Unwrap; Error()
// only renders the kind label and message.
type Error struct {
	Kind Kind
	Msg  string
	// Transient reports that retrying the whole operation later is likely to succeed.
	Transient bool
	cause     error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.cause }

// Cause returns the wrapped error, if any.
func (e *Error) Cause() error { return e.cause }

// New creates an Error of the given kind.
func New(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, cause: cause}
}

// Argument creates a KindArgument error.
func Argument(msg string) *Error { return New(KindArgument, msg, nil) }

// NotFound creates a KindNotFound error.
func NotFound(msg string) *Error { return New(KindNotFound, msg, nil) }

// Forbidden creates a KindForbidden error.
func Forbidden(msg string) *Error { return New(KindForbidden, msg, nil) }

// Conflict creates a KindConflict error.
func Conflict(msg string) *Error { return New(KindConflict, msg, nil) }

// EntryAlreadyExists creates a KindEntryAlreadyExists error.
func EntryAlreadyExists(msg string) *Error { return New(KindEntryAlreadyExists, msg, nil) }

// DB creates a KindDB error wrapping cause.
func DB(msg string, cause error) *Error { return New(KindDB, msg, cause) }

// Server creates a KindServer error wrapping cause.
func Server(msg string, cause error) *Error { return New(KindServer, msg, cause) }

// TransientServer creates a KindServer error flagged as transient.
func TransientServer(msg string, cause error) *Error {
	e := New(KindServer, msg, cause)
	e.Transient = true
	return e
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsTransient reports whether err is a transient *Error.
func IsTransient(err error) bool {
	var fe *Error
	return errors.As(err, &fe) && fe.Transient
}
