// Package transport owns the full-duplex message stream a Connection
// speaks over: dialing ws://, wss:// endpoints, reading and writing
// whole JSON text messages, and classifying close codes so the
// connection state machine can distinguish a clean shutdown (1000,
// 1001) from one that should arm the reconnection policy.
package transport
