// Package connection owns one gateway's stream: the connection state
// machine, authentication handshake, request/response correlation,
// notification dispatch, reconnection with backoff, ping liveness, and
// outbound queueing. It is the per-gateway component a Manager
// supervises; it never references the Manager itself.
package connection

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sensormesh/gateway-go/pkg/cache"
	"github.com/sensormesh/gateway-go/pkg/config"
	"github.com/sensormesh/gateway-go/pkg/events"
	"github.com/sensormesh/gateway-go/pkg/log"
	"github.com/sensormesh/gateway-go/pkg/transport"
	"github.com/sensormesh/gateway-go/pkg/wire"
)

// Credentials authenticate a Connection's POST_LOGIN handshake. They
// never leave the Connection — the Manager and Façade hold only
// gateway-ids.
type Credentials struct {
	Username string
	Password string
}

// DialFunc opens the underlying message stream. New sets it to
// defaultDial, which uses transport.Dialer; this package's tests dial a
// local fake gateway server through it.
type DialFunc func(ctx context.Context, url string, timeout time.Duration) (transport.Conn, error)

// preAuthCommands may be sent before AUTHENTICATED is reached; every
// other command type fails fast with ErrNotAuthenticated outside that
// state.
var preAuthCommands = map[string]bool{
	wire.TypePostLogin:      true,
	wire.TypePostSubChanges: true,
	wire.TypePing:           true,
}

// Connection is a single gateway's authenticated, full-duplex stream.
type Connection struct {
	id        string
	gatewayID string
	url       string
	creds     Credentials
	cfg       config.Options
	logger    log.Logger
	dial      DialFunc

	mu           sync.Mutex
	state        State
	stream       transport.Conn
	closed       bool
	lastActivity time.Time
	pingStop     chan struct{}
	reconnectTimer *time.Timer
	readDone     chan struct{}

	correlator *correlator
	waiters    *readingWaiters
	queue      *outboundQueue
	cacheStore *cache.Store
	backoff    *backoff
	bus        events.Bus
}

// New constructs a Connection for one gateway. It does not dial; call
// Connect to open the stream.
func New(gatewayID, url string, creds Credentials, cfg config.Options, logger log.Logger) *Connection {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &Connection{
		id:         uuid.NewString(),
		gatewayID:  gatewayID,
		url:        url,
		creds:      creds,
		cfg:        cfg,
		logger:     logger,
		dial:       defaultDial,
		state:      StateDisconnected,
		correlator: newCorrelator(),
		waiters:    newReadingWaiters(),
		queue:      &outboundQueue{},
		cacheStore: cache.NewStore(cfg.CachePerKindCapacity),
		backoff:    newBackoff(cfg.InitialReconnectDelay, cfg.MaxReconnectDelay),
	}
}

func defaultDial(ctx context.Context, url string, timeout time.Duration) (transport.Conn, error) {
	return transport.Dialer{}.Dial(ctx, url, timeout)
}

// ID returns the UUID identifying this stream instance (distinct from
// GatewayID, so reconnects are distinguishable in logs).
func (c *Connection) ID() string { return c.id }

// GatewayID returns the gateway this Connection serves.
func (c *Connection) GatewayID() string { return c.gatewayID }

// State returns the current connection state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsAuthenticated reports whether sensor/reading commands may currently
// be issued.
func (c *Connection) IsAuthenticated() bool { return c.State() == StateAuthenticated }

// IsConnected reports whether the underlying stream is open (connected
// or authenticated).
func (c *Connection) IsConnected() bool {
	s := c.State()
	return s == StateConnected || s == StateAuthenticated
}

// Cache returns the sensor inventory and reading caches this Connection
// has accumulated.
func (c *Connection) Cache() *cache.Store { return c.cacheStore }

// Subscribe registers fn for every Event this Connection emits. The
// returned func releases the subscription.
func (c *Connection) Subscribe(fn func(Event)) func() {
	return c.bus.Subscribe(func(e events.Event) { fn(e.(Event)) })
}

// Connect opens the stream and performs the POST_LOGIN handshake. It is
// idempotent: calling it while already CONNECTED, AUTHENTICATING, or
// AUTHENTICATED returns success without reopening.
func (c *Connection) Connect(ctx context.Context) error {
	return c.attemptConnect(ctx, false)
}

func (c *Connection) attemptConnect(ctx context.Context, viaReconnect bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	switch c.state {
	case StateConnected, StateAuthenticating, StateAuthenticated:
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.setState(StateConnecting)

	stream, err := c.dial(ctx, c.url, c.cfg.ConnectTimeout)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrConnectTimeout, err)
		if viaReconnect {
			c.setState(StateReconnecting)
			c.emitError(wrapped)
			c.scheduleReconnect()
		} else {
			c.setState(StateFailed)
			c.emitError(wrapped)
		}
		return wrapped
	}

	c.mu.Lock()
	c.stream = stream
	c.lastActivity = time.Now()
	c.readDone = make(chan struct{})
	c.mu.Unlock()

	c.setState(StateConnected)
	c.bus.Emit(Event{Kind: EventOpen, Timestamp: time.Now(), GatewayID: c.gatewayID, ConnectionID: c.id})

	go c.readLoop()
	c.startPingTimer()

	return c.login(ctx)
}

// login performs the POST_LOGIN handshake. Authentication failure is
// always terminal (FAILED), independent of whether this attempt came
// from an explicit Connect or a reconnection sweep — a fresh connect()
// with credentials is required, not automatic retry, after an auth
// rejection.
func (c *Connection) login(ctx context.Context) error {
	c.setState(StateAuthenticating)

	env, err := wire.NewCommand(wire.TypePostLogin, wire.LoginData{
		Email:    c.creds.Username,
		Password: c.creds.Password,
	})
	if err != nil {
		c.setState(StateFailed)
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	pc := c.correlator.register(wire.TypeRtnLogin, c.cfg.CommandTimeout, func() {
		c.emitError(fmt.Errorf("login: %w", ErrCommandTimeout))
	})

	if err := c.writeFrame(env); err != nil {
		c.setState(StateFailed)
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	select {
	case res := <-pc.resultCh:
		if res.err != nil {
			c.setState(StateFailed)
			return fmt.Errorf("%w", ErrAuthFailed)
		}
		var result wire.LoginResult
		if err := wire.DecodeData(res.env, &result); err != nil {
			c.setState(StateFailed)
			return fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
		if !result.Success {
			c.setState(StateFailed)
			return ErrAuthFailed
		}
	case <-ctx.Done():
		c.setState(StateFailed)
		return fmt.Errorf("%w: %v", ErrAuthFailed, ctx.Err())
	}

	c.setState(StateAuthenticated)
	c.backoff.reset()

	subEnv, err := wire.NewCommand(wire.TypePostSubChanges, struct{}{})
	if err == nil {
		_ = c.writeFrame(subEnv)
	}
	time.AfterFunc(500*time.Millisecond, c.drainQueue)

	return nil
}

// Close cancels any pending reconnect, stops the ping timer, closes the
// stream if open, and transitions to DISCONNECTED. Every pending
// command and reading future is rejected with Cancelled. Idempotent.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	stream := c.stream
	c.stream = nil
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
	}
	readDone := c.readDone
	c.mu.Unlock()

	c.stopPingTimer()
	c.correlator.cancelAll(ErrCancelled)
	c.waiters.cancelAll(ErrCancelled)

	if stream != nil {
		_ = stream.Close()
	}
	if readDone != nil {
		<-readDone
	}

	c.setState(StateDisconnected)
	return nil
}

// SendCommand sends commandType (one of the wire.Type* command
// constants) with data as its payload and returns the correlated RTN_*
// envelope. If the connection cannot send directly, the frame is
// queued and this call blocks until a response arrives, the command
// timeout elapses (ErrCommandTimeout, counted from this call, queued or
// not), the context is cancelled, or the connection is closed.
func (c *Connection) SendCommand(ctx context.Context, commandType string, data any) (wire.Envelope, error) {
	responseType, ok := wire.ResponseTypeFor[commandType]
	if !ok {
		return wire.Envelope{}, fmt.Errorf("connection: unrecognized command type %q", commandType)
	}

	c.mu.Lock()
	state := c.state
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return wire.Envelope{}, ErrClosed
	}
	// A stream that is open but not yet authenticated (CONNECTED or
	// AUTHENTICATING) can take preAuthCommands directly but must fail
	// fast for everything else. DISCONNECTED, CONNECTING, RECONNECTING
	// and FAILED are not a hard stop: the frame is queued below, and
	// DISCONNECTED/FAILED also arm a reconnect attempt.
	if !preAuthCommands[commandType] && (state == StateConnected || state == StateAuthenticating) {
		return wire.Envelope{}, ErrNotAuthenticated
	}

	env, err := wire.NewCommand(commandType, data)
	if err != nil {
		return wire.Envelope{}, err
	}

	pc := c.correlator.register(responseType, c.cfg.CommandTimeout, func() {
		c.emitError(fmt.Errorf("%s: %w", commandType, ErrCommandTimeout))
	})

	if state.sendCapable() {
		if err := c.writeFrame(env); err != nil {
			return wire.Envelope{}, err
		}
	} else {
		encoded, err := wire.Encode(env)
		if err != nil {
			return wire.Envelope{}, err
		}
		c.queue.push(encoded)
		if state == StateDisconnected || state == StateFailed {
			go func() { _ = c.Connect(context.Background()) }()
		}
	}

	select {
	case res := <-pc.resultCh:
		if res.err != nil {
			return wire.Envelope{}, res.err
		}
		return res.env, nil
	case <-ctx.Done():
		return wire.Envelope{}, ctx.Err()
	}
}

// GetConnectedSensors fetches the current sensor inventory and
// refreshes the cache with it.
func (c *Connection) GetConnectedSensors(ctx context.Context) ([]cache.SensorEntry, error) {
	env, err := c.SendCommand(ctx, wire.TypeGetDynConnected, struct{}{})
	if err != nil {
		return nil, err
	}
	var result wire.ConnectedSensorsResult
	if err := wire.DecodeData(env, &result); err != nil {
		return nil, err
	}

	now := time.Now()
	entries := make([]cache.SensorEntry, 0, len(result.Dynamizers))
	for _, d := range result.Dynamizers {
		entries = append(entries, cache.SensorEntry{
			Serial: d.DynSerial, PartNumber: d.PartNumber, Connected: d.Connected, LastSeenAt: now,
		})
	}
	c.cacheStore.Inventory.ReplaceAll(entries, now)
	return entries, nil
}

// GetVibrationReadings fetches up to count historical vibration
// readings for serial and merges them into the cache.
func (c *Connection) GetVibrationReadings(ctx context.Context, serial wire.Serial, count int) ([]wire.VibrationReadingWire, error) {
	env, err := c.SendCommand(ctx, wire.TypeGetDynReadings, wire.HistoryRequestData{DynSerial: serial, Count: count})
	if err != nil {
		return nil, err
	}
	var result wire.VibrationReadingsResult
	if err := wire.DecodeData(env, &result); err != nil {
		return nil, err
	}
	for _, r := range result.Readings {
		c.cacheStore.Vibration.Put(cache.VibrationReading{VibrationReadingWire: r})
	}
	return result.Readings, nil
}

// GetTemperatureReadings fetches up to count historical temperature
// readings for serial and merges them into the cache.
func (c *Connection) GetTemperatureReadings(ctx context.Context, serial wire.Serial, count int) ([]wire.TemperatureReadingWire, error) {
	env, err := c.SendCommand(ctx, wire.TypeGetDynTemps, wire.HistoryRequestData{DynSerial: serial, Count: count})
	if err != nil {
		return nil, err
	}
	var result wire.TemperatureReadingsResult
	if err := wire.DecodeData(env, &result); err != nil {
		return nil, err
	}
	for _, r := range result.Temperatures {
		c.cacheStore.Temperature.Put(cache.TemperatureReading{TemperatureReadingWire: r})
	}
	return result.Temperatures, nil
}

// GetBatteryReadings fetches up to count historical battery readings
// for serial and merges them into the cache.
func (c *Connection) GetBatteryReadings(ctx context.Context, serial wire.Serial, count int) ([]wire.BatteryReadingWire, error) {
	env, err := c.SendCommand(ctx, wire.TypeGetDynBatts, wire.HistoryRequestData{DynSerial: serial, Count: count})
	if err != nil {
		return nil, err
	}
	var result wire.BatteryReadingsResult
	if err := wire.DecodeData(env, &result); err != nil {
		return nil, err
	}
	for _, r := range result.Batteries {
		c.cacheStore.Battery.Put(cache.BatteryReading{BatteryReadingWire: r})
	}
	return result.Batteries, nil
}

// TakeVibrationReading requests a vibration reading for serial and
// waits for the NOT_DYN_READING that completes it (up to
// readingTimeoutMs), independent of how fast the RTN_* ack arrives.
func (c *Connection) TakeVibrationReading(ctx context.Context, serial wire.Serial) (wire.VibrationReadingWire, error) {
	if !c.IsAuthenticated() {
		return wire.VibrationReadingWire{}, ErrNotAuthenticated
	}
	rw := c.waiters.register(KindVibration, serial, c.cfg.ReadingTimeout)
	go c.fireTakeReading(ctx, wire.TypeTakeDynReading, serial)

	outcome := rw.wait()
	if outcome.err != nil {
		return wire.VibrationReadingWire{}, outcome.err
	}
	return outcome.vibration.VibrationReadingWire, nil
}

// TakeTemperatureReading requests a temperature reading for serial and
// waits for the NOT_DYN_TEMP that completes it.
func (c *Connection) TakeTemperatureReading(ctx context.Context, serial wire.Serial) (wire.TemperatureReadingWire, error) {
	if !c.IsAuthenticated() {
		return wire.TemperatureReadingWire{}, ErrNotAuthenticated
	}
	rw := c.waiters.register(KindTemperature, serial, c.cfg.ReadingTimeout)
	go c.fireTakeReading(ctx, wire.TypeTakeDynTemp, serial)

	outcome := rw.wait()
	if outcome.err != nil {
		return wire.TemperatureReadingWire{}, outcome.err
	}
	return outcome.temperature.TemperatureReadingWire, nil
}

// TakeBatteryReading requests a battery reading for serial and waits
// for the NOT_DYN_BATT that completes it.
func (c *Connection) TakeBatteryReading(ctx context.Context, serial wire.Serial) (wire.BatteryReadingWire, error) {
	if !c.IsAuthenticated() {
		return wire.BatteryReadingWire{}, ErrNotAuthenticated
	}
	rw := c.waiters.register(KindBattery, serial, c.cfg.ReadingTimeout)
	go c.fireTakeReading(ctx, wire.TypeTakeDynBatt, serial)

	outcome := rw.wait()
	if outcome.err != nil {
		return wire.BatteryReadingWire{}, outcome.err
	}
	return outcome.battery.BatteryReadingWire, nil
}

// fireTakeReading sends the TAKE_DYN_* command and discards its own
// RTN_* result. Completion for the caller comes from the correlated
// notification via readingWaiters, not from this response — a slow or
// lost RTN_* does not cancel a reading the gateway already accepted.
func (c *Connection) fireTakeReading(ctx context.Context, commandType string, serial wire.Serial) {
	if _, err := c.SendCommand(ctx, commandType, wire.TakeReadingData{DynSerial: serial}); err != nil {
		c.emitError(fmt.Errorf("%s: %w", commandType, err))
	}
}
