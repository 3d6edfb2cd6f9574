package sip

import (
	"log/slog"

	"github.com/rromrrom/oss-core/internal/errorutil"
)

// Common errors.
const (
	ErrInvalidArgument        = errorutil.ErrInvalidArgument
	ErrActionNotAllowed Error = "action not allowed"
)

// Transaction errors.
const (
	ErrTransactionNotFound      Error = "transaction not found"
	ErrTransactionTimedOut      Error = "transaction timed out"
	ErrTransactionManagerClosed Error = "transaction manager closed"
)

// Transport errors.
const (
	// ErrTransportClosed is returned when attempting to use a closed transport.
	ErrTransportClosed Error = "transport closed"
	// ErrNoTarget is returned when no target for the message is resolved.
	ErrNoTarget Error = "no target resolved"
	// ErrUnhandledMessage is returned when the message wasn't handled by any receiver or sender.
	ErrUnhandledMessage Error = "unhandled message"
	ErrNoTransport      Error = "no transport resolved"

	errNoConn Error = "no connection found"
)

// Message errors.
const (
	ErrInvalidMessage    Error = "invalid message"
	ErrEntityTooLarge    Error = "entity too large"
	ErrMessageTooLarge   Error = "message too large"
	ErrMethodNotAllowed  Error = "request method not allowed"
	ErrMessageNotMatched Error = "message not matched"

	errMissHdrs Error = "missing mandatory headers"
)

// Error represents a SIP error.
// See [errorutil.Error].
type Error = errorutil.Error

// NewInvalidArgumentError creates a new error with [ErrInvalidArgument] or
// wraps provided error with [ErrInvalidArgument].
func NewInvalidArgumentError(args ...any) error {
	return errorutil.NewInvalidArgumentError(args...) //errtrace:skip
}

// NewInvalidMessageError creates a new error with [ErrInvalidMessage] or
// wraps provided error with [ErrInvalidMessage].
func NewInvalidMessageError(args ...any) error {
	return errorutil.NewWrapperError(ErrInvalidMessage, args...) //errtrace:skip
}

// rejectRequestError carries the response status and log level an inbound
// request should be rejected with, alongside the underlying cause.
type rejectRequestError struct {
	err error
	sts ResponseStatus
	lvl slog.Level
}

// NewRejectRequestError wraps err with the response status and log level
// that should be used to reject the inbound request that produced it.
func NewRejectRequestError(err error, sts ResponseStatus, lvl slog.Level) error {
	return &rejectRequestError{err: err, sts: sts, lvl: lvl}
}

func (e *rejectRequestError) Error() string {
	if e == nil || e.err == nil {
		return "reject request"
	}
	return e.err.Error()
}

func (e *rejectRequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Status returns the response status the request should be rejected with.
func (e *rejectRequestError) Status() ResponseStatus {
	if e == nil {
		return 0
	}
	return e.sts
}

// Level returns the log level the rejection should be logged at.
func (e *rejectRequestError) Level() slog.Level {
	if e == nil {
		return slog.LevelError
	}
	return e.lvl
}

// rejectResponseError carries the log level an inbound response should be
// discarded with, alongside the underlying cause. Unlike an inbound request,
// a malformed or unmatched response cannot be rejected with a status of its
// own: it is simply dropped.
type rejectResponseError struct {
	err error
	lvl slog.Level
}

// NewRejectResponseError wraps err with the log level that should be used
// when discarding the inbound response that produced it.
func NewRejectResponseError(err error, lvl slog.Level) error {
	return &rejectResponseError{err: err, lvl: lvl}
}

func (e *rejectResponseError) Error() string {
	if e == nil || e.err == nil {
		return "reject response"
	}
	return e.err.Error()
}

func (e *rejectResponseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

// Level returns the log level the rejection should be logged at.
func (e *rejectResponseError) Level() slog.Level {
	if e == nil {
		return slog.LevelError
	}
	return e.lvl
}
