package connection

// State is one node of the per-gateway connection state machine.
type State uint8

const (
	// StateDisconnected is the initial state and the state after a
	// clean close() or a clean remote close (codes 1000, 1001).
	StateDisconnected State = iota

	// StateConnecting means the stream is being opened.
	StateConnecting

	// StateConnected means the stream is open but POST_LOGIN has not
	// yet been sent.
	StateConnected

	// StateAuthenticating means POST_LOGIN was sent and RTN_LOGIN is
	// outstanding.
	StateAuthenticating

	// StateAuthenticated means RTN_LOGIN{Success:true} was received.
	// Only in this state may sensor/reading commands be issued.
	StateAuthenticated

	// StateReconnecting means the stream closed uncleanly and a
	// backoff-scheduled connect() attempt is pending.
	StateReconnecting

	// StateFailed is terminal until an explicit caller-initiated
	// connect(): either the connect/auth handshake failed, or
	// maxReconnectAttempts was exhausted.
	StateFailed
)

// String returns the canonical state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// sendCapable reports whether frames may be written to the wire directly
// in this state. Every other state enqueues instead.
func (s State) sendCapable() bool {
	return s == StateConnected || s == StateAuthenticated
}
