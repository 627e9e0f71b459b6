package connection

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sensormesh/gateway-go/pkg/wire"
)

// fakeGateway is a minimal scripted gateway server: it upgrades every
// client that dials it (a reconnect replaces the connection send writes
// to), forwards every inbound frame onto Received, and lets the test
// push frames to the client via send. Drives transport tests end-to-end
// against a local listener rather than mocking the wire.
type fakeGateway struct {
	server *httptest.Server

	mu   sync.Mutex
	conn *websocket.Conn

	Received chan wire.Envelope
}

func newFakeGateway(t *testing.T) *fakeGateway {
	t.Helper()
	fg := &fakeGateway{Received: make(chan wire.Envelope, 64)}
	upgrader := websocket.Upgrader{}

	fg.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fg.mu.Lock()
		fg.conn = conn
		fg.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			env, err := wire.Decode(data)
			if err != nil {
				continue
			}
			fg.Received <- env
		}
	}))
	t.Cleanup(fg.server.Close)
	return fg
}

func (fg *fakeGateway) url() string {
	return "ws" + strings.TrimPrefix(fg.server.URL, "http")
}

// send pushes env to the client. It fails the test at once if no client
// has connected yet; tests call waitForClient before it.
func (fg *fakeGateway) send(t *testing.T, env wire.Envelope) {
	t.Helper()
	data, err := wire.Encode(env)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	fg.mu.Lock()
	conn := fg.conn
	fg.mu.Unlock()
	if conn == nil {
		t.Fatalf("fakeGateway: no client connected yet")
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("write: %v", err)
	}
}

// closeWithCode sends a close frame with the given code.
func (fg *fakeGateway) closeWithCode(code int) {
	fg.mu.Lock()
	conn := fg.conn
	fg.mu.Unlock()
	if conn == nil {
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""))
}

// waitForClient polls until a client has upgraded.
func (fg *fakeGateway) waitForClient(t *testing.T) {
	t.Helper()
	for i := 0; i < 200; i++ {
		fg.mu.Lock()
		conn := fg.conn
		fg.mu.Unlock()
		if conn != nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("fakeGateway: client never connected")
}
