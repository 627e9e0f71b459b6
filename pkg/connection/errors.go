package connection

import "errors"

// Sentinel errors. Each maps onto one of the abstract error kinds a
// gateway connection can surface; callers distinguish them with
// errors.Is, never by inspecting error strings.
var (
	// ErrConnectTimeout means the stream did not open: the dial failed
	// or did not complete before the configured connect deadline. A
	// failed or timed-out login round-trip is ErrAuthFailed instead.
	ErrConnectTimeout = errors.New("connection: connect timeout")

	// ErrAuthFailed means the server rejected POST_LOGIN, or the login
	// round-trip itself timed out.
	ErrAuthFailed = errors.New("connection: authentication failed")

	// ErrNotAuthenticated means a sensor/reading command was attempted
	// outside the AUTHENTICATED state.
	ErrNotAuthenticated = errors.New("connection: not authenticated")

	// ErrCommandTimeout means no RTN_* arrived within commandTimeoutMs.
	ErrCommandTimeout = errors.New("connection: command timeout")

	// ErrReadingTimeout means no correlated NOT_DYN_* notification
	// arrived within readingTimeoutMs.
	ErrReadingTimeout = errors.New("connection: reading timeout")

	// ErrInvalidFrame means a frame failed both strict and tolerant
	// decoding.
	ErrInvalidFrame = errors.New("connection: invalid frame")

	// ErrUnknownResponse means an RTN_* arrived with no matching
	// pending command.
	ErrUnknownResponse = errors.New("connection: unknown response")

	// ErrStreamError wraps a transport-level read/write failure.
	ErrStreamError = errors.New("connection: stream error")

	// ErrCancelled means the pending command's Connection was closed
	// before the command resolved.
	ErrCancelled = errors.New("connection: cancelled")

	// ErrMaxReconnectAttemptsExceeded means the reconnection scheduler
	// exhausted maxReconnectAttempts; the Connection is now FAILED
	// until an explicit connect().
	ErrMaxReconnectAttemptsExceeded = errors.New("connection: max reconnect attempts exceeded")

	// ErrClosed means an operation was attempted on a Connection that
	// has already been torn down.
	ErrClosed = errors.New("connection: closed")
)
