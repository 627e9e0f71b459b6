package cache

import (
	"sync"
	"time"

	"github.com/sensormesh/gateway-go/pkg/wire"
)

// SensorEntry is one row of the connected-sensor inventory.
type SensorEntry struct {
	Serial     wire.Serial
	PartNumber string
	Connected  bool
	LastSeenAt time.Time
}

// Inventory is the connected-sensor inventory: a set keyed by serial,
// populated from GET_DYN_CONNECTED responses and kept current by
// NOT_DYN_CONN notifications.
type Inventory struct {
	mu      sync.RWMutex
	entries map[wire.Serial]SensorEntry
}

// NewInventory returns an empty inventory.
func NewInventory() *Inventory {
	return &Inventory{entries: make(map[wire.Serial]SensorEntry)}
}

// ReplaceAll overwrites the entire inventory, as happens when a fresh
// RTN_DYN_CONNECTED arrives.
func (inv *Inventory) ReplaceAll(entries []SensorEntry, observedAt time.Time) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	inv.entries = make(map[wire.Serial]SensorEntry, len(entries))
	for _, e := range entries {
		if e.LastSeenAt.IsZero() {
			e.LastSeenAt = observedAt
		}
		inv.entries[e.Serial] = e
	}
}

// ApplyConnectionChange updates (creating if absent) the connected flag
// and LastSeenAt for serial, as driven by a NOT_DYN_CONN notification.
func (inv *Inventory) ApplyConnectionChange(serial wire.Serial, connected bool, observedAt time.Time) SensorEntry {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	entry := inv.entries[serial]
	entry.Serial = serial
	entry.Connected = connected
	entry.LastSeenAt = observedAt
	inv.entries[serial] = entry
	return entry
}

// Get returns the entry for serial, if known.
func (inv *Inventory) Get(serial wire.Serial) (SensorEntry, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	e, ok := inv.entries[serial]
	return e, ok
}

// IsConnected reports whether serial is currently known and connected.
func (inv *Inventory) IsConnected(serial wire.Serial) bool {
	e, ok := inv.Get(serial)
	return ok && e.Connected
}

// Snapshot returns every entry, in no particular order; callers that
// need a stable order should sort the result themselves.
func (inv *Inventory) Snapshot() []SensorEntry {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	out := make([]SensorEntry, 0, len(inv.entries))
	for _, e := range inv.entries {
		out = append(out, e)
	}
	return out
}
