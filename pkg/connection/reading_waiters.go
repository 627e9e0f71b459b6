package connection

import (
	"sync"
	"time"

	"github.com/sensormesh/gateway-go/pkg/cache"
	"github.com/sensormesh/gateway-go/pkg/wire"
)

// ReadingKind identifies one of the three reading kinds a sensor
// produces.
type ReadingKind uint8

const (
	KindVibration ReadingKind = iota
	KindTemperature
	KindBattery
)

func (k ReadingKind) String() string {
	switch k {
	case KindVibration:
		return "vibration"
	case KindTemperature:
		return "temperature"
	case KindBattery:
		return "battery"
	default:
		return "unknown"
	}
}

// readingOutcome is what a readingWaiter settles to.
type readingOutcome struct {
	vibration   *cache.VibrationReading
	temperature *cache.TemperatureReading
	battery     *cache.BatteryReading
	err         error
}

// readingWaiter is the one-shot listener takeReading registers for the
// NOT_DYN_* notification that completes it; its own 30s deadline is
// independent of the TAKE_DYN_* command's own (shorter) RTN_* timeout,
// per the design decision that a late RTN_* never cancels a reading
// already accepted by the gateway.
type readingWaiter struct {
	kind   ReadingKind
	serial wire.Serial

	ch    chan readingOutcome
	once  sync.Once
	timer *time.Timer
}

func (w *readingWaiter) settle(outcome readingOutcome) {
	w.once.Do(func() {
		if w.timer != nil {
			w.timer.Stop()
		}
		w.ch <- outcome
	})
}

func (w *readingWaiter) wait() readingOutcome {
	return <-w.ch
}

type readingKey struct {
	kind   ReadingKind
	serial wire.Serial
}

// readingWaiters indexes outstanding readingWaiters by (kind, serial),
// FIFO per key — the same correlation shape as correlator, applied to
// notifications instead of direct responses.
type readingWaiters struct {
	mu    sync.Mutex
	byKey map[readingKey][]*readingWaiter
}

func newReadingWaiters() *readingWaiters {
	return &readingWaiters{byKey: make(map[readingKey][]*readingWaiter)}
}

func (w *readingWaiters) register(kind ReadingKind, serial wire.Serial, timeout time.Duration) *readingWaiter {
	rw := &readingWaiter{kind: kind, serial: serial, ch: make(chan readingOutcome, 1)}
	key := readingKey{kind, serial}

	w.mu.Lock()
	w.byKey[key] = append(w.byKey[key], rw)
	w.mu.Unlock()

	rw.timer = time.AfterFunc(timeout, func() {
		w.remove(key, rw)
		rw.settle(readingOutcome{err: ErrReadingTimeout})
	})
	return rw
}

func (w *readingWaiters) resolve(kind ReadingKind, serial wire.Serial, outcome readingOutcome) bool {
	key := readingKey{kind, serial}

	w.mu.Lock()
	queue := w.byKey[key]
	if len(queue) == 0 {
		w.mu.Unlock()
		return false
	}
	rw := queue[0]
	w.byKey[key] = queue[1:]
	w.mu.Unlock()

	rw.settle(outcome)
	return true
}

func (w *readingWaiters) remove(key readingKey, target *readingWaiter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	queue := w.byKey[key]
	for i, rw := range queue {
		if rw == target {
			w.byKey[key] = append(queue[:i:i], queue[i+1:]...)
			return
		}
	}
}

func (w *readingWaiters) cancelAll(err error) {
	w.mu.Lock()
	all := w.byKey
	w.byKey = make(map[readingKey][]*readingWaiter)
	w.mu.Unlock()

	for _, queue := range all {
		for _, rw := range queue {
			rw.settle(readingOutcome{err: err})
		}
	}
}
