package connection

import (
	"context"
	"fmt"
	"time"

	"github.com/sensormesh/gateway-go/pkg/cache"
	"github.com/sensormesh/gateway-go/pkg/log"
	"github.com/sensormesh/gateway-go/pkg/transport"
	"github.com/sensormesh/gateway-go/pkg/wire"
)

// setState transitions to next, logging and — for the externally
// interesting transitions — emitting a consumer-facing Event. Same-state
// "transitions" are no-ops.
func (c *Connection) setState(next State) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	c.mu.Unlock()

	if prev == next {
		return
	}

	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		GatewayID:    c.gatewayID,
		ConnectionID: c.id,
		Layer:        log.LayerConnection,
		Category:     log.CategoryState,
		StateChange:  &log.StateChangeEvent{OldState: prev.String(), NewState: next.String()},
	})

	if kind := eventKindForState(next); kind != "" {
		c.bus.Emit(Event{Kind: kind, Timestamp: time.Now(), GatewayID: c.gatewayID, ConnectionID: c.id, State: next})
	}
}

func eventKindForState(s State) EventKind {
	switch s {
	case StateConnected:
		return EventConnected
	case StateAuthenticated:
		return EventAuthenticated
	case StateDisconnected:
		return EventDisconnected
	default:
		return ""
	}
}

func (c *Connection) emitError(err error) {
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		GatewayID:    c.gatewayID,
		ConnectionID: c.id,
		Layer:        log.LayerConnection,
		Category:     log.CategoryError,
		Error:        &log.ErrorEvent{Message: err.Error()},
	})
	c.bus.Emit(Event{Kind: EventError, Timestamp: time.Now(), GatewayID: c.gatewayID, ConnectionID: c.id, Err: err})
}

// writeFrame encodes and sends env, logging the outbound frame.
func (c *Connection) writeFrame(env wire.Envelope) error {
	data, err := wire.Encode(env)
	if err != nil {
		return err
	}
	if err := c.writeFrameRaw(data); err != nil {
		return err
	}
	c.logger.Log(log.Event{
		Timestamp:    time.Now(),
		GatewayID:    c.gatewayID,
		ConnectionID: c.id,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		Direction:    log.DirectionOut,
		Frame:        &log.FrameEvent{Type: env.Type, Size: len(data)},
	})
	return nil
}

// writeFrameRaw sends pre-encoded bytes, for the outbound queue (which
// stores already-encoded frames so a requeue costs no re-marshaling).
func (c *Connection) writeFrameRaw(data []byte) error {
	c.mu.Lock()
	stream := c.stream
	c.mu.Unlock()
	if stream == nil {
		return ErrStreamError
	}
	if err := stream.WriteMessage(data); err != nil {
		return fmt.Errorf("%w: %v", ErrStreamError, err)
	}
	c.mu.Lock()
	c.lastActivity = time.Now()
	c.mu.Unlock()
	return nil
}

// drainQueue flushes the outbound queue with inter-frame pacing, as
// long as the stream stays send-capable. If a write fails mid-drain the
// frame is pushed back onto the queue's head and draining stops; the
// next successful (re)connect resumes it.
func (c *Connection) drainQueue() {
	for {
		if !c.State().sendCapable() {
			return
		}
		frame, ok := c.queue.pop()
		if !ok {
			return
		}
		if err := c.writeFrameRaw(frame); err != nil {
			c.queue.requeue(frame)
			return
		}
		time.Sleep(c.cfg.QueueDrainPacing)
	}
}

func (c *Connection) startPingTimer() {
	stop := make(chan struct{})
	c.mu.Lock()
	c.pingStop = stop
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.mu.Lock()
				idle := time.Since(c.lastActivity)
				c.mu.Unlock()
				if idle >= c.cfg.PingInactivityThreshold {
					env, err := wire.NewCommand(wire.TypePing, wire.PingData{Timestamp: time.Now().Unix()})
					if err == nil {
						_ = c.writeFrame(env)
					}
				}
			}
		}
	}()
}

func (c *Connection) stopPingTimer() {
	c.mu.Lock()
	stop := c.pingStop
	c.pingStop = nil
	c.mu.Unlock()
	if stop != nil {
		close(stop)
	}
}

// readLoop is the single task servicing inbound frames for this stream;
// it runs until ReadMessage returns an error (clean close, unclean
// close, or Close() tearing down the underlying conn).
func (c *Connection) readLoop() {
	c.mu.Lock()
	stream := c.stream
	done := c.readDone
	c.mu.Unlock()

	defer close(done)

	for {
		data, err := stream.ReadMessage()
		if err != nil {
			c.handleStreamClosed(stream.CloseCode())
			return
		}
		c.mu.Lock()
		c.lastActivity = time.Now()
		c.mu.Unlock()
		c.handleFrame(data)
	}
}

func (c *Connection) handleFrame(data []byte) {
	env, forwardCompatible, err := wire.DecodeInbound(data)
	if err != nil {
		c.logger.Log(log.Event{
			Timestamp: time.Now(), GatewayID: c.gatewayID, ConnectionID: c.id,
			Layer: log.LayerWire, Category: log.CategoryError,
			Error: &log.ErrorEvent{Message: err.Error(), Kind: "invalid_frame"},
		})
		return
	}

	c.logger.Log(log.Event{
		Timestamp: time.Now(), GatewayID: c.gatewayID, ConnectionID: c.id,
		Layer: log.LayerWire, Category: log.CategoryMessage, Direction: log.DirectionIn,
		Frame: &log.FrameEvent{Type: env.Type, Size: len(data)},
	})
	c.bus.Emit(Event{Kind: EventMessage, Timestamp: time.Now(), GatewayID: c.gatewayID, ConnectionID: c.id, Frame: &env})

	if forwardCompatible {
		// Structurally an RTN_*/NOT_* frame with a Type this client has
		// never seen — still resolve a waiting response by type so a
		// forward-compatible server addition never strands a caller.
		if env.IsResponse() {
			if !c.correlator.resolve(env.Type, env) {
				c.emitError(fmt.Errorf("%s: %w", env.Type, ErrUnknownResponse))
			}
		}
		return
	}

	switch {
	case env.IsResponse():
		if !c.correlator.resolve(env.Type, env) {
			c.emitError(fmt.Errorf("%s: %w", env.Type, ErrUnknownResponse))
		}
	case env.IsNotification():
		c.handleNotification(env)
	}
}

func (c *Connection) handleNotification(env wire.Envelope) {
	now := time.Now()

	switch env.Type {
	case wire.TypeNotAPConn:
		var d wire.APConnData
		if err := wire.DecodeData(env, &d); err != nil {
			c.emitError(err)
			return
		}
		// Connected:0 is deliberately not surfaced as an event (it
		// would flicker the UI on a flaky AP radio link); only the
		// up transition is externally observable.
		if d.Connected == 1 {
			c.bus.Emit(Event{Kind: EventConnected, Timestamp: now, GatewayID: c.gatewayID, ConnectionID: c.id})
		} else {
			c.logger.Log(log.Event{Timestamp: now, GatewayID: c.gatewayID, ConnectionID: c.id, Layer: log.LayerConnection, Category: log.CategoryMessage})
		}

	case wire.TypeNotDynConn:
		var d wire.DynConnData
		if err := wire.DecodeData(env, &d); err != nil {
			c.emitError(err)
			return
		}
		entry := c.cacheStore.Inventory.ApplyConnectionChange(d.DynSerial, d.Connected, now)
		kind := EventSensorDisconnected
		if entry.Connected {
			kind = EventSensorConnected
		}
		c.bus.Emit(Event{Kind: kind, Timestamp: now, GatewayID: c.gatewayID, ConnectionID: c.id, Serial: d.DynSerial})

	case wire.TypeNotDynReadingStart:
		var d wire.ReadingStartedData
		if err := wire.DecodeData(env, &d); err != nil {
			c.emitError(err)
			return
		}
		c.bus.Emit(Event{Kind: EventReadingStarted, Timestamp: now, GatewayID: c.gatewayID, ConnectionID: c.id, Serial: d.DynSerial})

	case wire.TypeNotDynReading:
		var r wire.VibrationReadingWire
		if err := wire.DecodeData(env, &r); err != nil {
			c.emitError(err)
			return
		}
		reading := cache.VibrationReading{VibrationReadingWire: r}
		c.cacheStore.Vibration.Put(reading)
		c.waiters.resolve(KindVibration, r.Serial, readingOutcome{vibration: &reading})
		c.bus.Emit(Event{Kind: EventReadingCompleted, Timestamp: now, GatewayID: c.gatewayID, ConnectionID: c.id, Serial: r.Serial, Vibration: &reading})

	case wire.TypeNotDynTemp:
		var r wire.TemperatureReadingWire
		if err := wire.DecodeData(env, &r); err != nil {
			c.emitError(err)
			return
		}
		reading := cache.TemperatureReading{TemperatureReadingWire: r}
		c.cacheStore.Temperature.Put(reading)
		c.waiters.resolve(KindTemperature, r.Serial, readingOutcome{temperature: &reading})
		c.bus.Emit(Event{Kind: EventTemperatureReading, Timestamp: now, GatewayID: c.gatewayID, ConnectionID: c.id, Serial: r.Serial, Temperature: &reading})

	case wire.TypeNotDynBatt:
		var r wire.BatteryReadingWire
		if err := wire.DecodeData(env, &r); err != nil {
			c.emitError(err)
			return
		}
		reading := cache.BatteryReading{BatteryReadingWire: r}
		c.cacheStore.Battery.Put(reading)
		c.waiters.resolve(KindBattery, r.Serial, readingOutcome{battery: &reading})
		c.bus.Emit(Event{Kind: EventBatteryReading, Timestamp: now, GatewayID: c.gatewayID, ConnectionID: c.id, Serial: r.Serial, Battery: &reading})
	}
}

// handleStreamClosed runs once per stream, whether it closed cleanly,
// uncleanly, or because Close() tore it down.
func (c *Connection) handleStreamClosed(closeCode int) {
	c.mu.Lock()
	c.stream = nil
	wasClosed := c.closed
	c.mu.Unlock()

	c.bus.Emit(Event{Kind: EventClose, Timestamp: time.Now(), GatewayID: c.gatewayID, ConnectionID: c.id})
	c.stopPingTimer()

	if wasClosed {
		// Close() already cancelled every pending command/reading and
		// will set DISCONNECTED itself.
		return
	}

	c.correlator.cancelAll(ErrCancelled)
	c.waiters.cancelAll(ErrCancelled)

	if transport.IsCleanClose(closeCode) {
		c.setState(StateDisconnected)
		return
	}

	c.setState(StateReconnecting)
	c.scheduleReconnect()
}

// scheduleReconnect arms the next backoff-scheduled connect() attempt,
// or transitions to FAILED once maxReconnectAttempts is exhausted.
func (c *Connection) scheduleReconnect() {
	if c.backoff.attemptCount() >= c.cfg.MaxReconnectAttempts {
		c.setState(StateFailed)
		c.emitError(ErrMaxReconnectAttemptsExceeded)
		return
	}

	delay := c.backoff.next()
	c.logger.Log(log.Event{
		Timestamp: time.Now(), GatewayID: c.gatewayID, ConnectionID: c.id,
		Layer: log.LayerConnection, Category: log.CategoryReconnect,
		Reconnect: &log.ReconnectEvent{Attempt: c.backoff.attemptCount(), Delay: delay},
	})

	c.mu.Lock()
	c.reconnectTimer = time.AfterFunc(delay, func() {
		_ = c.attemptConnect(context.Background(), true)
	})
	c.mu.Unlock()
}
