package connection

import (
	"sync"
	"time"

	"github.com/sensormesh/gateway-go/pkg/wire"
)

// pendingResult is what a pendingCommand eventually settles to: either
// the RTN_* envelope that answered it, or an error (timeout, cancel).
type pendingResult struct {
	env wire.Envelope
	err error
}

// pendingCommand is a single outstanding request/response correlation,
// identified by its expected response type plus a monotonically-unique
// tag per §4.2. The tag only tells identical outstanding commands
// apart; matching itself is FIFO within the expected response type,
// since the wire protocol carries no request id to match on directly.
type pendingCommand struct {
	responseType string
	tag          uint64

	resultCh chan pendingResult
	once     sync.Once
	timer    *time.Timer
}

func newPendingCommand(responseType string, tag uint64) *pendingCommand {
	return &pendingCommand{
		responseType: responseType,
		tag:          tag,
		resultCh:     make(chan pendingResult, 1),
	}
}

// settle resolves the command exactly once; later calls are no-ops, so
// a response arriving after a timeout already fired cannot double
// deliver.
func (p *pendingCommand) settle(env wire.Envelope, err error) {
	p.once.Do(func() {
		if p.timer != nil {
			p.timer.Stop()
		}
		p.resultCh <- pendingResult{env: env, err: err}
	})
}

// wait blocks until the command settles and returns its result.
func (p *pendingCommand) wait() pendingResult {
	return <-p.resultCh
}

// correlator tracks every pendingCommand for one Connection, indexed by
// the RTN_* type expected to answer it. Invariant 2 from the testable
// properties ("exactly one of response-resolve, timeout-reject,
// cancel-reject occurs") is enforced by pendingCommand.settle's
// sync.Once, not by the correlator itself.
type correlator struct {
	mu      sync.Mutex
	nextTag uint64
	pending map[string][]*pendingCommand
}

func newCorrelator() *correlator {
	return &correlator{pending: make(map[string][]*pendingCommand)}
}

// register creates a pendingCommand awaiting responseType, arms its
// timeout, and returns it. onTimeout is invoked (e.g. to log/emit an
// error event) exactly when the timer — not a response or cancellation
// — settles the command.
func (c *correlator) register(responseType string, timeout time.Duration, onTimeout func()) *pendingCommand {
	c.mu.Lock()
	c.nextTag++
	pc := newPendingCommand(responseType, c.nextTag)
	c.pending[responseType] = append(c.pending[responseType], pc)
	c.mu.Unlock()

	pc.timer = time.AfterFunc(timeout, func() {
		c.remove(responseType, pc)
		if onTimeout != nil {
			onTimeout()
		}
		pc.settle(wire.Envelope{}, ErrCommandTimeout)
	})
	return pc
}

// resolve completes the oldest pendingCommand awaiting responseType
// with env, per the FIFO-by-type matching rule. It reports false if no
// command is awaiting that type (an UnknownResponse situation the
// caller logs and emits as an error event).
func (c *correlator) resolve(responseType string, env wire.Envelope) bool {
	c.mu.Lock()
	queue := c.pending[responseType]
	if len(queue) == 0 {
		c.mu.Unlock()
		return false
	}
	pc := queue[0]
	c.pending[responseType] = queue[1:]
	c.mu.Unlock()

	pc.settle(env, nil)
	return true
}

// remove drops target from responseType's queue without settling it;
// used by the timeout path, which settles separately after removal.
func (c *correlator) remove(responseType string, target *pendingCommand) {
	c.mu.Lock()
	defer c.mu.Unlock()
	queue := c.pending[responseType]
	for i, pc := range queue {
		if pc == target {
			c.pending[responseType] = append(queue[:i:i], queue[i+1:]...)
			return
		}
	}
}

// cancelAll settles every outstanding command with err (Cancelled, on
// close()) and empties the correlator.
func (c *correlator) cancelAll(err error) {
	c.mu.Lock()
	all := c.pending
	c.pending = make(map[string][]*pendingCommand)
	c.mu.Unlock()

	for _, queue := range all {
		for _, pc := range queue {
			pc.settle(wire.Envelope{}, err)
		}
	}
}
