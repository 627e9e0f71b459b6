package cache

// Store bundles one gateway's full observable cache set: the sensor
// inventory plus the three per-kind reading ring buffers.
type Store struct {
	Inventory    *Inventory
	Vibration    *ReadingCache[VibrationReading]
	Temperature  *ReadingCache[TemperatureReading]
	Battery      *ReadingCache[BatteryReading]
}

// NewStore returns a Store whose reading caches are each bounded to
// perKindCapacity entries.
func NewStore(perKindCapacity int) *Store {
	return &Store{
		Inventory:   NewInventory(),
		Vibration:   NewReadingCache[VibrationReading](perKindCapacity),
		Temperature: NewReadingCache[TemperatureReading](perKindCapacity),
		Battery:     NewReadingCache[BatteryReading](perKindCapacity),
	}
}
