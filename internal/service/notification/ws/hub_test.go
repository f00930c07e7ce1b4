package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KNICEX/algo-trading/internal/service/algo"
	"github.com/KNICEX/algo-trading/internal/service/notification"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(Config{})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	c1, c2 := dial(t, srv), dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 2 }, time.Second, 10*time.Millisecond)

	msg := notification.Message{
		Type: notification.MessageAlgoLog,
		Log:  &algo.LogEntry{AlgoName: "Iceberg_1", Msg: "Iceberg_1: order 3 NotTraded"},
	}
	require.NoError(t, hub.Notify(context.Background(), msg))

	for _, c := range []*websocket.Conn{c1, c2} {
		_ = c.SetReadDeadline(time.Now().Add(time.Second))
		_, data, err := c.ReadMessage()
		require.NoError(t, err)

		var got notification.Message
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, notification.MessageAlgoLog, got.Type)
		require.NotNil(t, got.Log)
		assert.Equal(t, "Iceberg_1", got.Log.AlgoName)
	}
}

func TestHub_DropsClosedClient(t *testing.T) {
	hub := NewHub(Config{})
	srv := httptest.NewServer(hub)
	defer srv.Close()

	c := dial(t, srv)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, c.Close())
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 10*time.Millisecond)

	// 没有客户端时广播不报错
	assert.NoError(t, hub.Notify(context.Background(), notification.Message{Type: notification.MessageAlgoUpdate}))
}
