package gateway

import (
	"context"

	"github.com/sensormesh/gateway-go/pkg/cache"
	"github.com/sensormesh/gateway-go/pkg/connection"
	"github.com/sensormesh/gateway-go/pkg/manager"
	"github.com/sensormesh/gateway-go/pkg/wire"
)

// Client is the per-gateway façade application code holds: it scopes
// every command and subscription to one gateway-id against a shared
// Manager, so the application never sees the Manager's registry or a
// raw connection.Connection.
type Client struct {
	id string
	m  *manager.Manager
}

// NewClient returns a Client scoped to id against m. It does not
// connect; call Connect to register and open the underlying
// Connection.
func NewClient(id string, m *manager.Manager) *Client {
	return &Client{id: id, m: m}
}

// GatewayID returns the gateway-id this Client is scoped to.
func (c *Client) GatewayID() string { return c.id }

// Connect registers and opens the Connection for this gateway-id.
func (c *Client) Connect(ctx context.Context, url, username, password string) error {
	return c.m.ConnectToGateway(ctx, c.id, url, username, password)
}

// Disconnect tears down and deregisters this gateway's Connection.
func (c *Client) Disconnect() error {
	return c.m.DisconnectFromGateway(c.id)
}

// State returns the last externally visible (debounced) state, and
// whether this gateway-id is currently registered.
func (c *Client) State() (connection.State, bool) {
	return c.m.GetGatewayState(c.id)
}

// IsAuthenticated reports whether this gateway's Connection is
// currently authenticated.
func (c *Client) IsAuthenticated() bool {
	s, ok := c.State()
	return ok && s == connection.StateAuthenticated
}

// IsConnected reports whether this gateway's Connection currently has
// an open stream.
func (c *Client) IsConnected() bool {
	s, ok := c.State()
	return ok && (s == connection.StateConnected || s == connection.StateAuthenticated)
}

// Cache returns this gateway's sensor inventory and reading caches.
func (c *Client) Cache() (*cache.Store, error) {
	return c.m.Cache(c.id)
}

// Subscribe registers fn for every event this gateway's Connection
// emits, scoped so fn never observes another gateway's events. The
// returned func releases the subscription; callers should invoke it on
// scope teardown.
func (c *Client) Subscribe(fn func(connection.Event)) func() {
	return c.m.Subscribe(func(e connection.Event) {
		if e.GatewayID == c.id {
			fn(e)
		}
	})
}

// TakeBatteryReading requests a battery reading for serial and waits
// for its completing notification.
func (c *Client) TakeBatteryReading(ctx context.Context, serial wire.Serial) (wire.BatteryReadingWire, error) {
	return c.m.TakeBatteryReading(ctx, c.id, serial)
}

// TakeTemperatureReading requests a temperature reading for serial and
// waits for its completing notification.
func (c *Client) TakeTemperatureReading(ctx context.Context, serial wire.Serial) (wire.TemperatureReadingWire, error) {
	return c.m.TakeTemperatureReading(ctx, c.id, serial)
}

// TakeVibrationReading requests a vibration reading for serial and
// waits for its completing notification.
func (c *Client) TakeVibrationReading(ctx context.Context, serial wire.Serial) (wire.VibrationReadingWire, error) {
	return c.m.TakeVibrationReading(ctx, c.id, serial)
}

// FetchConnectedSensors fetches and caches the current sensor
// inventory.
func (c *Client) FetchConnectedSensors(ctx context.Context) ([]cache.SensorEntry, error) {
	return c.m.FetchConnectedSensors(ctx, c.id)
}

// FetchBatteryReadings fetches up to count historical battery readings
// for serial.
func (c *Client) FetchBatteryReadings(ctx context.Context, serial wire.Serial, count int) ([]wire.BatteryReadingWire, error) {
	return c.m.FetchBatteryReadings(ctx, c.id, serial, count)
}

// FetchTemperatureReadings fetches up to count historical temperature
// readings for serial.
func (c *Client) FetchTemperatureReadings(ctx context.Context, serial wire.Serial, count int) ([]wire.TemperatureReadingWire, error) {
	return c.m.FetchTemperatureReadings(ctx, c.id, serial, count)
}

// FetchVibrationReadings fetches up to count historical vibration
// readings for serial.
func (c *Client) FetchVibrationReadings(ctx context.Context, serial wire.Serial, count int) ([]wire.VibrationReadingWire, error) {
	return c.m.FetchVibrationReadings(ctx, c.id, serial, count)
}
