package core

import (
	"github.com/rromrrom/oss-core/sip"
)

// Stack lifecycle errors.
const (
	// ErrAlreadyRunning is returned by [Stack.Run] when the stack is already running.
	ErrAlreadyRunning sip.Error = "stack already running"
	// ErrNotRunning is returned by [Stack.Stop] when the stack isn't running.
	ErrNotRunning sip.Error = "stack not running"
	// ErrNoTLSContext is returned by [Stack.TransportInit]/[Stack.TransportInitRange]
	// when a TLS or WSS listener is configured but [Stack.InitializeTLSContext] was never called.
	ErrNoTLSContext sip.Error = "tls context not initialized"
)
