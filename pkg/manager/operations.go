package manager

import (
	"context"

	"github.com/sensormesh/gateway-go/pkg/cache"
	"github.com/sensormesh/gateway-go/pkg/wire"
)

// TakeBatteryReading routes to id's Connection.
func (m *Manager) TakeBatteryReading(ctx context.Context, id string, serial wire.Serial) (wire.BatteryReadingWire, error) {
	conn, err := m.Connection(id)
	if err != nil {
		return wire.BatteryReadingWire{}, err
	}
	return conn.TakeBatteryReading(ctx, serial)
}

// TakeTemperatureReading routes to id's Connection.
func (m *Manager) TakeTemperatureReading(ctx context.Context, id string, serial wire.Serial) (wire.TemperatureReadingWire, error) {
	conn, err := m.Connection(id)
	if err != nil {
		return wire.TemperatureReadingWire{}, err
	}
	return conn.TakeTemperatureReading(ctx, serial)
}

// TakeVibrationReading routes to id's Connection.
func (m *Manager) TakeVibrationReading(ctx context.Context, id string, serial wire.Serial) (wire.VibrationReadingWire, error) {
	conn, err := m.Connection(id)
	if err != nil {
		return wire.VibrationReadingWire{}, err
	}
	return conn.TakeVibrationReading(ctx, serial)
}

// FetchConnectedSensors routes to id's Connection.
func (m *Manager) FetchConnectedSensors(ctx context.Context, id string) ([]cache.SensorEntry, error) {
	conn, err := m.Connection(id)
	if err != nil {
		return nil, err
	}
	return conn.GetConnectedSensors(ctx)
}

// FetchBatteryReadings routes to id's Connection.
func (m *Manager) FetchBatteryReadings(ctx context.Context, id string, serial wire.Serial, count int) ([]wire.BatteryReadingWire, error) {
	conn, err := m.Connection(id)
	if err != nil {
		return nil, err
	}
	return conn.GetBatteryReadings(ctx, serial, count)
}

// FetchTemperatureReadings routes to id's Connection.
func (m *Manager) FetchTemperatureReadings(ctx context.Context, id string, serial wire.Serial, count int) ([]wire.TemperatureReadingWire, error) {
	conn, err := m.Connection(id)
	if err != nil {
		return nil, err
	}
	return conn.GetTemperatureReadings(ctx, serial, count)
}

// FetchVibrationReadings routes to id's Connection.
func (m *Manager) FetchVibrationReadings(ctx context.Context, id string, serial wire.Serial, count int) ([]wire.VibrationReadingWire, error) {
	conn, err := m.Connection(id)
	if err != nil {
		return nil, err
	}
	return conn.GetVibrationReadings(ctx, serial, count)
}

// Cache returns id's reading/inventory caches.
func (m *Manager) Cache(id string) (*cache.Store, error) {
	conn, err := m.Connection(id)
	if err != nil {
		return nil, err
	}
	return conn.Cache(), nil
}
