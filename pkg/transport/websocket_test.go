package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialRoundTripsTextMessages(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(echoHandler(t, upgrader))
	defer server.Close()

	ws, err := Dialer{}.Dial(context.Background(), toWS(server.URL), time.Second)
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.WriteMessage([]byte(`{"Type":"PING"}`)))

	data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"Type":"PING"}`, string(data))
}

func TestDialFailsAgainstUnreachableHost(t *testing.T) {
	_, err := Dialer{}.Dial(context.Background(), "ws://127.0.0.1:1", 200*time.Millisecond)
	require.Error(t, err)
}

func TestCloseReportsNormalCloseCode(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(echoHandler(t, upgrader))
	defer server.Close()

	ws, err := Dialer{}.Dial(context.Background(), toWS(server.URL), time.Second)
	require.NoError(t, err)

	require.NoError(t, ws.Close())
	assert.Equal(t, CloseNormal, ws.CloseCode())
}

func TestIsCleanCloseRecognizesNormalAndGoingAwayOnly(t *testing.T) {
	assert.True(t, IsCleanClose(CloseNormal))
	assert.True(t, IsCleanClose(CloseGoingAway))
	assert.False(t, IsCleanClose(1006))
	assert.False(t, IsCleanClose(1011))
}

func echoHandler(t *testing.T, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}
}

func toWS(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}
