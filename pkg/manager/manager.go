package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sensormesh/gateway-go/pkg/config"
	"github.com/sensormesh/gateway-go/pkg/connection"
	"github.com/sensormesh/gateway-go/pkg/events"
	"github.com/sensormesh/gateway-go/pkg/log"
	"github.com/sensormesh/gateway-go/pkg/wire"
)

// ErrUnknownGateway is returned by any operation addressing a
// gateway-id the Manager has no Connection for.
var ErrUnknownGateway = errors.New("manager: unknown gateway")

// ErrAlreadyRegistered is returned by ConnectToGateway when id is
// already registered; callers wanting to reconnect must
// DisconnectFromGateway first.
var ErrAlreadyRegistered = errors.New("manager: gateway already registered")

type gatewayEntry struct {
	conn     *connection.Connection
	unsub    func()
	debounce *time.Timer
}

// Manager is the process-wide registry mapping gateway-id to
// Connection. It owns debounced externally visible state transitions
// and a cross-gateway sensor-connectivity index, and aggregates every
// per-Connection event onto its own bus with GatewayID attached.
// Construct one with New at process start and call DisconnectAll at exit;
// all mutation happens from the single task servicing Connection
// events.
type Manager struct {
	cfg    config.Options
	logger log.Logger

	mu              sync.Mutex
	entries         map[string]*gatewayEntry
	gatewayState    map[string]connection.State
	sensorConnected map[wire.Serial]bool

	bus events.Bus
}

// New constructs a Manager. cfg is applied to every Connection it
// creates.
func New(cfg config.Options, logger log.Logger) *Manager {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Manager{
		cfg:             cfg,
		logger:          logger,
		entries:         make(map[string]*gatewayEntry),
		gatewayState:    make(map[string]connection.State),
		sensorConnected: make(map[wire.Serial]bool),
	}
}

// Subscribe registers fn for every aggregated event this Manager
// re-emits. The returned func releases the subscription.
func (m *Manager) Subscribe(fn func(connection.Event)) func() {
	return m.bus.Subscribe(func(e events.Event) { fn(e.(connection.Event)) })
}

// ConnectToGateway registers a new Connection for id and opens it.
// Registering an id that is already present returns ErrAlreadyRegistered
// without touching the existing Connection.
func (m *Manager) ConnectToGateway(ctx context.Context, id, url, username, password string) error {
	m.mu.Lock()
	if _, exists := m.entries[id]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, id)
	}
	m.mu.Unlock()

	conn := connection.New(id, url, connection.Credentials{Username: username, Password: password}, m.cfg, m.logger)
	entry := &gatewayEntry{conn: conn}
	entry.unsub = conn.Subscribe(func(e connection.Event) { m.handleConnectionEvent(id, entry, e) })

	m.mu.Lock()
	m.entries[id] = entry
	m.gatewayState[id] = connection.StateDisconnected
	m.mu.Unlock()

	return conn.Connect(ctx)
}

// DisconnectFromGateway tears down and deregisters id's Connection.
// Safe to call on an id that is not registered.
func (m *Manager) DisconnectFromGateway(id string) error {
	m.mu.Lock()
	entry, ok := m.entries[id]
	delete(m.entries, id)
	delete(m.gatewayState, id)
	m.mu.Unlock()

	if !ok {
		return nil
	}
	if entry.debounce != nil {
		entry.debounce.Stop()
	}
	entry.unsub()
	return entry.conn.Close()
}

// DisconnectAll tears down every registered Connection, returning the
// combined error of any that failed to close cleanly.
func (m *Manager) DisconnectAll() error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := m.DisconnectFromGateway(id); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// GetGatewayState returns the last externally visible (debounced)
// state for id, and whether id is registered.
func (m *Manager) GetGatewayState(id string) (connection.State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.gatewayState[id]
	return s, ok
}

// IsSensorConnected reports whether the most recent sensor_connected or
// sensor_disconnected event for serial, from whichever gateway sent it,
// said connected. The index is keyed by serial alone: a disconnect
// reported by one gateway clears the flag even if another gateway
// reported the same sensor connected earlier.
func (m *Manager) IsSensorConnected(serial wire.Serial) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sensorConnected[serial]
}

// Connection returns the Connection registered for id, for callers
// that need direct access (reading operations, cache reads).
func (m *Manager) Connection(id string) (*connection.Connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGateway, id)
	}
	return entry.conn, nil
}

// handleConnectionEvent is the single task that mutates Manager state
// and re-emits every Connection event with GatewayID attached. Only
// CONNECTED/AUTHENTICATED/DISCONNECTED events reach gatewayState;
// everything else passes straight through.
func (m *Manager) handleConnectionEvent(id string, entry *gatewayEntry, e connection.Event) {
	e.GatewayID = id

	switch {
	case e.Kind == connection.EventSensorConnected || e.Kind == connection.EventSensorDisconnected:
		m.mu.Lock()
		m.sensorConnected[e.Serial] = e.Kind == connection.EventSensorConnected
		m.mu.Unlock()
		m.bus.Emit(e)

	case e.Kind == connection.EventConnected && e.State == connection.StateConnected:
		m.debouncePublish(id, entry, e)

	case e.Kind == connection.EventAuthenticated || e.Kind == connection.EventDisconnected:
		m.cancelDebounce(entry)
		m.publishState(id, e)

	default:
		m.bus.Emit(e)
	}
}

// debouncePublish defers a raw CONNECTED transition by stateDebounceMs;
// a later CONNECTED event during the window replaces the pending one
// (only the final state is published), and AUTHENTICATED/DISCONNECTED
// cancel it outright via cancelDebounce before this timer fires.
func (m *Manager) debouncePublish(id string, entry *gatewayEntry, e connection.Event) {
	m.mu.Lock()
	if entry.debounce != nil {
		entry.debounce.Stop()
	}
	entry.debounce = time.AfterFunc(m.cfg.StateDebounce, func() {
		m.publishState(id, e)
	})
	m.mu.Unlock()
}

func (m *Manager) cancelDebounce(entry *gatewayEntry) {
	m.mu.Lock()
	if entry.debounce != nil {
		entry.debounce.Stop()
		entry.debounce = nil
	}
	m.mu.Unlock()
}

func (m *Manager) publishState(id string, e connection.Event) {
	m.mu.Lock()
	if _, ok := m.entries[id]; !ok {
		m.mu.Unlock()
		return
	}
	m.gatewayState[id] = e.State
	m.mu.Unlock()
	m.bus.Emit(e)
}
