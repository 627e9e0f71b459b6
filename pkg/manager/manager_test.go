package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensormesh/gateway-go/pkg/config"
	"github.com/sensormesh/gateway-go/pkg/connection"
)

func testOptions() config.Options {
	opts := config.Default()
	opts.StateDebounce = 50 * time.Millisecond
	return opts
}

func TestConnectToGatewayRejectsDuplicateID(t *testing.T) {
	m := New(testOptions(), nil)
	t.Cleanup(func() { _ = m.DisconnectAll() })

	_ = m.ConnectToGateway(context.Background(), "gw-1", "ws://127.0.0.1:0", "u", "p")
	err := m.ConnectToGateway(context.Background(), "gw-1", "ws://127.0.0.1:0", "u", "p")
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestUnknownGatewayOperationsReturnErrUnknownGateway(t *testing.T) {
	m := New(testOptions(), nil)
	_, err := m.Connection("absent")
	assert.ErrorIs(t, err, ErrUnknownGateway)

	_, ok := m.GetGatewayState("absent")
	assert.False(t, ok)
}

func TestDisconnectFromGatewayIsIdempotent(t *testing.T) {
	m := New(testOptions(), nil)
	_ = m.ConnectToGateway(context.Background(), "gw-1", "ws://127.0.0.1:0", "u", "p")

	require.NoError(t, m.DisconnectFromGateway("gw-1"))
	require.NoError(t, m.DisconnectFromGateway("gw-1")) // already gone, no-op

	_, ok := m.GetGatewayState("gw-1")
	assert.False(t, ok)
}

// TestDebouncedConnectedPublishesOnceAfterFlapping exercises the
// CONNECTED debounce: two raw CONNECTED transitions in quick succession
// collapse into a single externally visible CONNECTED once the debounce
// window elapses undisturbed.
func TestDebouncedConnectedPublishesOnceAfterFlapping(t *testing.T) {
	m := New(testOptions(), nil)
	entry := &gatewayEntry{conn: nil}

	var received []connection.Event
	var mu sync.Mutex
	m.bus.Subscribe(func(e any) {
		mu.Lock()
		received = append(received, e.(connection.Event))
		mu.Unlock()
	})

	m.mu.Lock()
	m.entries["gw-1"] = entry
	m.gatewayState["gw-1"] = connection.StateDisconnected
	m.mu.Unlock()

	m.handleConnectionEvent("gw-1", entry, connection.Event{Kind: connection.EventConnected, State: connection.StateConnected})
	time.Sleep(10 * time.Millisecond)
	m.handleConnectionEvent("gw-1", entry, connection.Event{Kind: connection.EventConnected, State: connection.StateConnected})

	mu.Lock()
	n := len(received)
	mu.Unlock()
	assert.Zero(t, n, "debounced CONNECTED must not publish before the window elapses")

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 5*time.Millisecond)

	state, ok := m.GetGatewayState("gw-1")
	require.True(t, ok)
	assert.Equal(t, connection.StateConnected, state)
}

// TestAuthenticatedCancelsPendingDebounceAndPublishesImmediately covers
// the rule that transitions into AUTHENTICATED are never debounced and
// supersede a pending CONNECTED publication.
func TestAuthenticatedCancelsPendingDebounceAndPublishesImmediately(t *testing.T) {
	m := New(testOptions(), nil)
	entry := &gatewayEntry{conn: nil}

	var received []connection.Event
	var mu sync.Mutex
	m.bus.Subscribe(func(e any) {
		mu.Lock()
		received = append(received, e.(connection.Event))
		mu.Unlock()
	})

	m.mu.Lock()
	m.entries["gw-1"] = entry
	m.gatewayState["gw-1"] = connection.StateDisconnected
	m.mu.Unlock()

	m.handleConnectionEvent("gw-1", entry, connection.Event{Kind: connection.EventConnected, State: connection.StateConnected})
	m.handleConnectionEvent("gw-1", entry, connection.Event{Kind: connection.EventAuthenticated, State: connection.StateAuthenticated})

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.Equal(t, connection.StateAuthenticated, received[0].State)

	state, ok := m.GetGatewayState("gw-1")
	require.True(t, ok)
	assert.Equal(t, connection.StateAuthenticated, state)
}

func TestSensorConnectivityIndexAggregatesAcrossGateways(t *testing.T) {
	m := New(testOptions(), nil)
	entry := &gatewayEntry{conn: nil}
	m.mu.Lock()
	m.entries["gw-1"] = entry
	m.mu.Unlock()

	m.handleConnectionEvent("gw-1", entry, connection.Event{Kind: connection.EventSensorConnected, Serial: 42})
	assert.True(t, m.IsSensorConnected(42))

	m.handleConnectionEvent("gw-1", entry, connection.Event{Kind: connection.EventSensorDisconnected, Serial: 42})
	assert.False(t, m.IsSensorConnected(42))

	// The same index answers for a sensor reported by a second gateway.
	entry2 := &gatewayEntry{conn: nil}
	m.mu.Lock()
	m.entries["gw-2"] = entry2
	m.mu.Unlock()

	m.handleConnectionEvent("gw-2", entry2, connection.Event{Kind: connection.EventSensorConnected, Serial: 42})
	assert.True(t, m.IsSensorConnected(42))
}
