// Package log defines the protocol event logging capability used across
// pkg/connection and pkg/manager. A Logger receives Event values
// describing frames, state transitions, and errors; it does not dictate
// how they are stored. NoopLogger is the default when nil is given.
package log
