package cache

import (
	"sort"
	"sync"

	"github.com/sensormesh/gateway-go/pkg/wire"
)

// Identified is satisfied by the three reading shapes this cache stores.
type Identified interface {
	ReadingID() int64
	ReadingSerial() wire.Serial
}

// ReadingCache is a bounded-capacity store for one reading kind
// (vibration, temperature, or battery) across every sensor on a
// gateway. On overflow the entry with the lowest id is evicted — ids
// are monotonically assigned by the gateway, so the lowest id is always
// the oldest reading. Writes come from the inbound-frame path and from
// the Connection's history fetches (which run on the caller's
// goroutine); the mutex serializes those writers and lets observers
// read a consistent snapshot concurrently.
type ReadingCache[T Identified] struct {
	mu       sync.RWMutex
	capacity int
	byID     map[int64]T
}

// NewReadingCache returns an empty cache bounded to capacity entries.
func NewReadingCache[T Identified](capacity int) *ReadingCache[T] {
	return &ReadingCache[T]{
		capacity: capacity,
		byID:     make(map[int64]T, capacity),
	}
}

// Put stores reading, evicting the lowest-id entry if doing so would
// exceed capacity. A reading with an id already present overwrites in
// place without counting against capacity (the server explicitly
// renumbering is accepted as source of truth, per the data model's
// invariant on non-decreasing ids).
func (c *ReadingCache[T]) Put(reading T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := reading.ReadingID()
	if _, exists := c.byID[id]; !exists && len(c.byID) >= c.capacity {
		c.evictLowest()
	}
	c.byID[id] = reading
}

// evictLowest removes the entry with the smallest id. Caller must hold
// c.mu.
func (c *ReadingCache[T]) evictLowest() {
	if len(c.byID) == 0 {
		return
	}
	var lowest int64
	first := true
	for id := range c.byID {
		if first || id < lowest {
			lowest = id
			first = false
		}
	}
	delete(c.byID, lowest)
}

// ForSerial returns every cached reading for serial, ordered by id
// descending (most recent first).
func (c *ReadingCache[T]) ForSerial(serial wire.Serial) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]T, 0)
	for _, r := range c.byID {
		if r.ReadingSerial() == serial {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReadingID() > out[j].ReadingID() })
	return out
}

// Len reports the current entry count, mainly for tests asserting the
// capacity bound holds.
func (c *ReadingCache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}

// Has reports whether id is present, mainly for tests.
func (c *ReadingCache[T]) Has(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.byID[id]
	return ok
}

// VibrationReading, TemperatureReading and BatteryReading wrap the wire
// payload shapes with the Identified methods ReadingCache needs. The
// wrapper exists only because methods can't be added to a type from
// another package — field access still goes straight through to the
// embedded wire struct.
type VibrationReading struct{ wire.VibrationReadingWire }

func (r VibrationReading) ReadingID() int64           { return r.ID }
func (r VibrationReading) ReadingSerial() wire.Serial { return r.Serial }

type TemperatureReading struct{ wire.TemperatureReadingWire }

func (r TemperatureReading) ReadingID() int64           { return r.ID }
func (r TemperatureReading) ReadingSerial() wire.Serial { return r.Serial }

type BatteryReading struct{ wire.BatteryReadingWire }

func (r BatteryReading) ReadingID() int64           { return r.ID }
func (r BatteryReading) ReadingSerial() wire.Serial { return r.Serial }
