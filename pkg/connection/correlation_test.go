package connection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sensormesh/gateway-go/pkg/wire"
)

func TestCorrelatorResolvesInFIFOOrderPerResponseType(t *testing.T) {
	c := newCorrelator()
	first := c.register(wire.TypeRtnTakeDynBatt, time.Second, nil)
	second := c.register(wire.TypeRtnTakeDynBatt, time.Second, nil)

	ok := c.resolve(wire.TypeRtnTakeDynBatt, wire.Envelope{Type: wire.TypeRtnTakeDynBatt, Data: []byte(`1`)})
	require.True(t, ok)

	res := first.wait()
	require.NoError(t, res.err)
	assert.Equal(t, []byte(`1`), []byte(res.env.Data))

	ok = c.resolve(wire.TypeRtnTakeDynBatt, wire.Envelope{Type: wire.TypeRtnTakeDynBatt, Data: []byte(`2`)})
	require.True(t, ok)
	res = second.wait()
	require.NoError(t, res.err)
	assert.Equal(t, []byte(`2`), []byte(res.env.Data))
}

func TestCorrelatorResolveReportsFalseWhenNothingPending(t *testing.T) {
	c := newCorrelator()
	ok := c.resolve(wire.TypeRtnLogin, wire.Envelope{Type: wire.TypeRtnLogin})
	assert.False(t, ok)
}

func TestCorrelatorTimeoutSettlesWithCommandTimeout(t *testing.T) {
	c := newCorrelator()
	var timedOut bool
	pc := c.register(wire.TypeRtnLogin, 10*time.Millisecond, func() { timedOut = true })

	res := pc.wait()
	assert.ErrorIs(t, res.err, ErrCommandTimeout)
	assert.True(t, timedOut)

	// A late resolve against the now-timed-out type finds nothing.
	ok := c.resolve(wire.TypeRtnLogin, wire.Envelope{Type: wire.TypeRtnLogin})
	assert.False(t, ok)
}

func TestCorrelatorCancelAllSettlesEveryPendingCommand(t *testing.T) {
	c := newCorrelator()
	a := c.register(wire.TypeRtnLogin, time.Second, nil)
	b := c.register(wire.TypeRtnDynConnected, time.Second, nil)

	c.cancelAll(ErrCancelled)

	assert.ErrorIs(t, a.wait().err, ErrCancelled)
	assert.ErrorIs(t, b.wait().err, ErrCancelled)
}

func TestPendingCommandSettlesExactlyOnce(t *testing.T) {
	pc := newPendingCommand(wire.TypeRtnLogin, 1)
	pc.settle(wire.Envelope{Type: wire.TypeRtnLogin}, nil)
	pc.settle(wire.Envelope{}, ErrCancelled) // no-op, channel already has a value

	res := pc.wait()
	assert.NoError(t, res.err)
	assert.Equal(t, wire.TypeRtnLogin, res.env.Type)
}
