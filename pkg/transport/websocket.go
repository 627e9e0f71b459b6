package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSConn adapts a *websocket.Conn to the Conn interface, additionally
// tracking the close code the peer (or a local Close) reported so the
// connection state machine can apply the clean-close/reconnect policy.
type WSConn struct {
	conn      *websocket.Conn
	closeCode atomic.Int64
}

var _ Conn = (*WSConn)(nil)

// Dialer opens WSConn streams against gateway URLs. The zero value uses
// gorilla/websocket's default TLS configuration; set TLSConfig to
// override (e.g. for test fixtures using self-signed certificates).
type Dialer struct {
	TLSConfig *tls.Config
}

// Dial opens a websocket stream to rawURL, failing if the handshake does
// not complete before ctx is done or timeout elapses, whichever is
// sooner.
func (d Dialer) Dial(ctx context.Context, rawURL string, timeout time.Duration) (*WSConn, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return nil, fmt.Errorf("transport: parse %q: %w", rawURL, err)
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: timeout,
		TLSClientConfig:  d.TLSConfig,
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, _, err := dialer.DialContext(ctx, rawURL, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("transport: dial %q: %w", rawURL, err)
	}

	ws := &WSConn{conn: conn}
	conn.SetCloseHandler(func(code int, text string) error {
		ws.closeCode.Store(int64(code))
		return nil
	})
	return ws, nil
}

// ReadMessage returns the next text/binary message payload.
func (w *WSConn) ReadMessage() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		if closeErr, ok := err.(*websocket.CloseError); ok {
			w.closeCode.Store(int64(closeErr.Code))
		}
		return nil, err
	}
	return data, nil
}

// WriteMessage sends data as a text message.
func (w *WSConn) WriteMessage(data []byte) error {
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal closure frame and closes the underlying stream.
func (w *WSConn) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	w.closeCode.CompareAndSwap(0, CloseNormal)
	return w.conn.Close()
}

// SetReadDeadline arms the deadline for the next ReadMessage call.
func (w *WSConn) SetReadDeadline(t time.Time) error {
	return w.conn.SetReadDeadline(t)
}

// CloseCode returns the most recently observed close code, or 0 if the
// stream has not closed.
func (w *WSConn) CloseCode() int {
	return int(w.closeCode.Load())
}
