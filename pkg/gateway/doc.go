// Package gateway is the façade application code talks to. Client wraps
// a manager.Manager and scopes every operation and subscription to a
// single gateway-id, so callers never see the Manager's registry or a
// raw connection.Connection. The scoped subscribe/unsubscribe cleanup
// follows a Client.On(event) func() pattern: each call returns its own
// teardown closure.
package gateway
