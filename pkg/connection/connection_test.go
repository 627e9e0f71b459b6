package connection

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensormesh/gateway-go/pkg/config"
	"github.com/sensormesh/gateway-go/pkg/wire"
)

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

func testOptions() config.Options {
	opts := config.Default()
	opts.ConnectTimeout = time.Second
	opts.CommandTimeout = 500 * time.Millisecond
	opts.ReadingTimeout = 500 * time.Millisecond
	opts.PingInterval = time.Hour // don't let pings interfere with assertions
	opts.PingInactivityThreshold = time.Hour
	opts.MaxReconnectAttempts = 3
	opts.InitialReconnectDelay = 20 * time.Millisecond
	opts.MaxReconnectDelay = 200 * time.Millisecond
	return opts
}

func newTestConnection(t *testing.T, fg *fakeGateway) *Connection {
	t.Helper()
	conn := New("gw-1", fg.url(), Credentials{Username: "ana", Password: "secret"}, testOptions(), nil)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func connectAndLogin(t *testing.T, conn *Connection, fg *fakeGateway) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- conn.Connect(context.Background()) }()

	fg.waitForClient(t)
	require.Equal(t, wire.TypePostLogin, (<-fg.Received).Type)
	fg.send(t, wire.Envelope{Type: wire.TypeRtnLogin, Target: "UI", Data: mustJSON(t, wire.LoginResult{Success: true})})

	return errCh
}

func TestHappyPathLoginReachesAuthenticatedAndSubscribes(t *testing.T) {
	fg := newFakeGateway(t)
	conn := newTestConnection(t, fg)

	var states []State
	conn.Subscribe(func(e Event) {
		if e.Kind == EventConnected || e.Kind == EventAuthenticated || e.Kind == EventDisconnected {
			states = append(states, e.State)
		}
	})

	errCh := connectAndLogin(t, conn, fg)
	require.NoError(t, <-errCh)

	assert.Equal(t, StateAuthenticated, conn.State())
	assert.Equal(t, []State{StateConnected, StateAuthenticated}, states)

	subEnv := <-fg.Received
	assert.Equal(t, wire.TypePostSubChanges, subEnv.Type)
}

func TestConnectIsIdempotentWhenAlreadyAuthenticated(t *testing.T) {
	fg := newFakeGateway(t)
	conn := newTestConnection(t, fg)
	require.NoError(t, <-connectAndLogin(t, conn, fg))

	require.NoError(t, conn.Connect(context.Background()))
	assert.Equal(t, StateAuthenticated, conn.State())
}

func TestLoginFailureTransitionsToFailed(t *testing.T) {
	fg := newFakeGateway(t)
	conn := newTestConnection(t, fg)

	errCh := make(chan error, 1)
	go func() { errCh <- conn.Connect(context.Background()) }()
	fg.waitForClient(t)
	<-fg.Received
	fg.send(t, wire.Envelope{Type: wire.TypeRtnLogin, Target: "UI", Data: mustJSON(t, wire.LoginResult{Success: false, Reason: "bad credentials"})})

	err := <-errCh
	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.Equal(t, StateFailed, conn.State())
}

func TestTakeBatteryReadingResolvesFromNotificationAndPopulatesCache(t *testing.T) {
	fg := newFakeGateway(t)
	conn := newTestConnection(t, fg)
	require.NoError(t, <-connectAndLogin(t, conn, fg))
	<-fg.Received // POST_SUB_CHANGES

	resultCh := make(chan wire.BatteryReadingWire, 1)
	errCh := make(chan error, 1)
	go func() {
		r, err := conn.TakeBatteryReading(context.Background(), 1234)
		resultCh <- r
		errCh <- err
	}()

	take := <-fg.Received
	require.Equal(t, wire.TypeTakeDynBatt, take.Type)
	fg.send(t, wire.Envelope{Type: wire.TypeRtnTakeDynBatt, Target: "UI"})
	fg.send(t, wire.Envelope{
		Type: wire.TypeNotDynBatt, Target: "UI",
		Data: mustJSON(t, wire.BatteryReadingWire{ID: 7, Serial: 1234, Percent: 87}),
	})

	require.NoError(t, <-errCh)
	reading := <-resultCh
	assert.Equal(t, int64(7), reading.ID)
	assert.Equal(t, 87.0, reading.Percent)

	cached := conn.Cache().Battery.ForSerial(1234)
	require.Len(t, cached, 1)
	assert.Equal(t, int64(7), cached[0].ID)
}

func TestTakeTemperatureReadingTimesOutWithoutNotification(t *testing.T) {
	fg := newFakeGateway(t)
	conn := newTestConnection(t, fg)
	require.NoError(t, <-connectAndLogin(t, conn, fg))
	<-fg.Received // POST_SUB_CHANGES

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.TakeTemperatureReading(context.Background(), 9999)
		errCh <- err
	}()
	<-fg.Received // TAKE_DYN_TEMP, ignored — server never answers either way

	err := <-errCh
	assert.ErrorIs(t, err, ErrReadingTimeout)
	assert.Equal(t, StateAuthenticated, conn.State())
}

func TestSensorCommandsFailFastWhileConnectedButNotYetAuthenticated(t *testing.T) {
	fg := newFakeGateway(t)
	conn := newTestConnection(t, fg)

	go func() { _ = conn.Connect(context.Background()) }()
	fg.waitForClient(t)
	require.Equal(t, wire.TypePostLogin, (<-fg.Received).Type)

	// login() has set StateAuthenticating and is blocked waiting for
	// RTN_LOGIN; a sensor command issued now must fail fast rather than
	// queue, since the stream is open and a definitive answer is close.
	require.Eventually(t, func() bool { return conn.State() == StateAuthenticating }, time.Second, 5*time.Millisecond)

	_, err := conn.TakeBatteryReading(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = conn.GetConnectedSensors(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

// TestSensorCommandsQueueAndResolveAfterReconnectFromDisconnected is
// scenario S5: a command issued while DISCONNECTED must not fail fast —
// it queues, arms a reconnect attempt, and resolves once that reconnect
// reaches AUTHENTICATED and the queue drains.
func TestSensorCommandsQueueAndResolveAfterReconnectFromDisconnected(t *testing.T) {
	fg := newFakeGateway(t)
	opts := testOptions()
	opts.CommandTimeout = 3 * time.Second
	conn := New("gw-1", fg.url(), Credentials{Username: "ana", Password: "secret"}, opts, nil)
	t.Cleanup(func() { _ = conn.Close() })

	require.Equal(t, StateDisconnected, conn.State())

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.GetConnectedSensors(context.Background())
		errCh <- err
	}()

	// The queued command must itself trigger the reconnect attempt.
	fg.waitForClient(t)
	require.Equal(t, wire.TypePostLogin, (<-fg.Received).Type)
	fg.send(t, wire.Envelope{Type: wire.TypeRtnLogin, Target: "UI", Data: mustJSON(t, wire.LoginResult{Success: true})})

	require.Equal(t, wire.TypePostSubChanges, (<-fg.Received).Type)

	// Queue drain is paced on its own timer; the queued GET_DYN_CONNECTED
	// only reaches the wire after authentication settles.
	var queued wire.Envelope
	select {
	case queued = <-fg.Received:
	case <-time.After(3 * time.Second):
		t.Fatal("queued command was never drained onto the wire")
	}
	require.Equal(t, wire.TypeGetDynConnected, queued.Type)

	fg.send(t, wire.Envelope{
		Type: wire.TypeRtnDynConnected, Target: "UI",
		Data: mustJSON(t, wire.ConnectedSensorsResult{Dynamizers: []wire.SensorInventoryEntryWire{
			{DynSerial: 42, PartNumber: "PN-1", Connected: true},
		}}),
	})

	require.NoError(t, <-errCh)
	assert.Equal(t, StateAuthenticated, conn.State())
}

func TestUncleanCloseArmsReconnectAndCleanCloseDoesNot(t *testing.T) {
	fg := newFakeGateway(t)
	conn := newTestConnection(t, fg)
	require.NoError(t, <-connectAndLogin(t, conn, fg))
	<-fg.Received // POST_SUB_CHANGES

	fg.closeWithCode(1006)

	require.Eventually(t, func() bool {
		s := conn.State()
		return s == StateReconnecting || s == StateConnecting || s == StateFailed
	}, time.Second, 5*time.Millisecond)

	// A clean close (1000) lands in DISCONNECTED and arms no reconnect.
	cleanFG := newFakeGateway(t)
	cleanConn := newTestConnection(t, cleanFG)
	require.NoError(t, <-connectAndLogin(t, cleanConn, cleanFG))
	<-cleanFG.Received // POST_SUB_CHANGES

	cleanFG.closeWithCode(1000)

	require.Eventually(t, func() bool { return cleanConn.State() == StateDisconnected }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return cleanConn.State() != StateDisconnected }, 100*time.Millisecond, 5*time.Millisecond)
}

func TestCloseIsIdempotentAndCancelsPendingCommands(t *testing.T) {
	fg := newFakeGateway(t)
	conn := newTestConnection(t, fg)
	require.NoError(t, <-connectAndLogin(t, conn, fg))
	<-fg.Received // POST_SUB_CHANGES

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.TakeBatteryReading(context.Background(), 1)
		errCh <- err
	}()
	<-fg.Received // TAKE_DYN_BATT

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close()) // idempotent

	assert.ErrorIs(t, <-errCh, ErrCancelled)
	assert.Equal(t, StateDisconnected, conn.State())
}
