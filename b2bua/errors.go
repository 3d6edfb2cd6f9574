package b2bua

import "github.com/rromrrom/oss-core/internal/errorutil"

// Error is the sentinel error type used across the package.
// See [errorutil.Error].
type Error = errorutil.Error

// Sentinel errors.
const (
	// ErrNoRoute is returned when no handler, domain router, or external
	// dispatch claimed a request and no route could be resolved for it.
	ErrNoRoute Error = "b2bua: no route"
	// ErrHandlerExists is returned by RegisterHandler when a handler is
	// already registered for the message type.
	ErrHandlerExists Error = "b2bua: handler already registered"
	// ErrManagerClosed is returned once the manager has been closed.
	ErrManagerClosed Error = "b2bua: manager closed"
	// ErrNotPaired is returned when a client transaction response arrives
	// with no matching pairing (e.g. after the manager has been closed).
	ErrNotPaired Error = "b2bua: no pairing for client transaction"
	// ErrRegistrationFailed is returned by the registration agent when the
	// registrar rejects a REGISTER with a final non-2xx response.
	ErrRegistrationFailed Error = "b2bua: registration failed"
)

func newWrapperErr(sentinel error, args ...any) error {
	return errorutil.NewWrapperError(sentinel, args...) //errtrace:skip
}
