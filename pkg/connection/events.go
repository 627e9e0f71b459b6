package connection

import (
	"time"

	"github.com/sensormesh/gateway-go/pkg/cache"
	"github.com/sensormesh/gateway-go/pkg/wire"
)

// EventKind names one of the consumer-facing events a Connection emits.
// The Manager re-emits every one of these with GatewayID populated.
type EventKind string

const (
	EventOpen               EventKind = "open"
	EventClose               EventKind = "close"
	EventError               EventKind = "error"
	EventMessage             EventKind = "message"
	EventConnected           EventKind = "connected"
	EventDisconnected        EventKind = "disconnected"
	EventAuthenticated       EventKind = "authenticated"
	EventSensorConnected     EventKind = "sensor_connected"
	EventSensorDisconnected  EventKind = "sensor_disconnected"
	EventReadingStarted      EventKind = "reading_started"
	EventReadingCompleted    EventKind = "reading_completed"
	EventTemperatureReading  EventKind = "temperature_reading"
	EventBatteryReading      EventKind = "battery_reading"
)

// Event is the payload type carried on a Connection's events.Bus (and,
// re-emitted with GatewayID set, the Manager's). Only the fields
// relevant to Kind are populated.
type Event struct {
	Kind      EventKind
	Timestamp time.Time

	// GatewayID is set by the Connection from its own gateway-id; the
	// Manager sets it again to the registry id when re-emitting.
	GatewayID    string
	ConnectionID string

	State      State // state-driven EventConnected, EventDisconnected, EventAuthenticated; unset on the NOT_AP_CONN EventConnected
	Serial     wire.Serial // sensor connect/disconnect and every reading event
	Vibration  *cache.VibrationReading
	Temperature *cache.TemperatureReading
	Battery    *cache.BatteryReading
	Frame      *wire.Envelope // EventMessage
	Err        error          // EventError
}
