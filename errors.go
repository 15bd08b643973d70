package filesaga

import (
	"errors"

	"github.com/hupe1980/filesaga/fault"
)

var (
	// ErrClosed is the cause of errors returned after Close.
	ErrClosed = errors.New("service closed")

	// ErrMissingStore is returned by New when a store is nil.
	ErrMissingStore = errors.New("object store and permission store are required")
)

const (
	msgConflict      = "file already exists"
	msgRetryLater    = "file may still be in the process of being deleted, wait a few seconds and retry the request"
	msgCreateFailed  = "failed to create file"
	msgInternal      = "internal server error"
	msgShuttingDown  = "service is shutting down"
	msgForbiddenPath = "trying to manipulate data of another user"
)

// translateError maps an error onto the kinds a caller can act on.
//
// Argument, NotFound, Forbidden, Conflict and Server errors pass through.
// DB errors become Server errors with the same message. Everything else,
// including a stray EntryAlreadyExists signal, becomes a generic Server
// error so no internal detail leaks.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var fe *fault.Error
	if !errors.As(err, &fe) {
		return fault.Server(msgInternal, err)
	}

	switch fe.Kind {
	case fault.KindArgument, fault.KindNotFound, fault.KindForbidden, fault.KindConflict, fault.KindServer:
		return fe
	case fault.KindDB:
		if fe.Transient {
			return fault.TransientServer(fe.Msg, fe)
		}
		return fault.Server(fe.Msg, fe)
	default:
		return fault.Server(msgInternal, fe)
	}
}
