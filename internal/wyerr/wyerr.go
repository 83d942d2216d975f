// Package wyerr defines the error kinds shared across the gateway and the
// world so that callers can dispatch on failure mode with errors.Is instead
// of parsing message text.
package wyerr

import "errors"

// Sentinel kinds, wrapped with context via fmt.Errorf("...: %w", Kind).
var (
	// Io marks a transport failure. Fatal to the connection, not to the session.
	Io = errors.New("io error")

	// Protocol marks a framing or negotiation violation. The connection is
	// closed; the process keeps running.
	Protocol = errors.New("protocol error")

	// ConnectionClosed marks peer-initiated termination. Logged at info, not
	// treated as a failure.
	ConnectionClosed = errors.New("connection closed")

	// Timeout marks idle or heartbeat expiry.
	Timeout = errors.New("timeout")

	// Unauthenticated marks an RPC call arriving before gateway auth succeeded.
	Unauthenticated = errors.New("unauthenticated")

	// NotFound marks a missing session, entity, or property.
	NotFound = errors.New("not found")

	// InvalidState marks an illegal state transition or operation for the
	// current state.
	InvalidState = errors.New("invalid state")

	// Full marks a mailbox at capacity. Callers may retry after backoff but
	// must not block.
	Full = errors.New("mailbox full")

	// Expired marks a reconnection token past its expiry.
	Expired = errors.New("expired")

	// Config marks a startup-only, fatal misconfiguration.
	Config = errors.New("config error")
)
