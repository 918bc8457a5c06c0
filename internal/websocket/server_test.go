package websocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/co-wx/internal/observability"
	"github.com/yegors/co-wx/pkg/logger"
)

func startServer(t *testing.T) (*Server, *httptest.Server, *observability.Metrics) {
	t.Helper()
	metrics := observability.NewMetricsForTesting()
	s := NewServer(metrics, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)

	httpServer := httptest.NewServer(http.HandlerFunc(s.HandleConnection))
	t.Cleanup(func() {
		httpServer.Close()
		cancel()
	})
	return s, httpServer, metrics
}

func dial(t *testing.T, httpServer *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func waitForClients(t *testing.T, s *Server, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return s.ClientCount() == n }, 5*time.Second, 10*time.Millisecond)
}

func TestPublishRespectsSubscriptions(t *testing.T) {
	s, httpServer, metrics := startServer(t)

	all := dial(t, httpServer, "")
	bos := dial(t, httpServer, "")
	waitForClients(t, s, 2)
	assert.Eventually(t, func() bool { return testutil.ToFloat64(metrics.WSClients) == 2 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, bos.WriteJSON(Message{
		Type: MessageTypeSubscribe,
		Data: map[string]any{"stations": []string{"kbos"}},
	}))
	ack := readMessage(t, bos)
	assert.Equal(t, MessageTypeSubscribed, ack.Type)
	assert.Equal(t, []any{"KBOS"}, ack.Data["stations"])

	s.Publish("KTTA", "metar_update", map[string]any{"raw": "KTTA 031530Z 04008KT 10SM CLR 07/M02"})
	s.Publish("KBOS", "metar_update", map[string]any{"raw": "KBOS 031530Z 27010KT 10SM CLR 04/00"})

	first := readMessage(t, all)
	second := readMessage(t, all)
	assert.Equal(t, "KTTA", first.Data["station"])
	assert.Equal(t, "KBOS", second.Data["station"])

	got := readMessage(t, bos)
	assert.Equal(t, "metar_update", got.Type)
	assert.Equal(t, "KBOS", got.Data["station"])
	observation, ok := got.Data["observation"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "KBOS 031530Z 27010KT 10SM CLR 04/00", observation["raw"])
}

func TestQueryStringFilter(t *testing.T) {
	s, httpServer, _ := startServer(t)

	conn := dial(t, httpServer, "?stations=KTTA")
	waitForClients(t, s, 1)

	s.Publish("KBOS", "metar_update", map[string]any{})
	s.Publish("KTTA", "metar_update", map[string]any{})

	got := readMessage(t, conn)
	assert.Equal(t, "KTTA", got.Data["station"])
}

func TestUnsubscribeAndErrors(t *testing.T) {
	s, httpServer, _ := startServer(t)

	conn := dial(t, httpServer, "?stations=KTTA")
	waitForClients(t, s, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	assert.Equal(t, MessageTypeError, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(Message{Type: "bogus"}))
	bad := readMessage(t, conn)
	assert.Equal(t, MessageTypeError, bad.Type)
	assert.Contains(t, bad.Data["message"], "unknown message type")

	require.NoError(t, conn.WriteJSON(Message{Type: MessageTypeSubscribe, Data: map[string]any{}}))
	assert.Equal(t, MessageTypeError, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(Message{Type: MessageTypeUnsubscribe}))
	assert.Equal(t, MessageTypeSubscribed, readMessage(t, conn).Type)

	s.Publish("KBOS", "metar_update", map[string]any{})
	assert.Equal(t, "KBOS", readMessage(t, conn).Data["station"])
}

func TestClientDisconnectUnregisters(t *testing.T) {
	s, httpServer, metrics := startServer(t)

	conn := dial(t, httpServer, "")
	waitForClients(t, s, 1)

	require.NoError(t, conn.Close())
	waitForClients(t, s, 0)
	assert.Eventually(t, func() bool { return testutil.ToFloat64(metrics.WSClients) == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestNewStationFilters(t *testing.T) {
	f := newStationFilters([]string{" ktta", "KBOS", "", "KTTA"})
	assert.Equal(t, []string{"KBOS", "KTTA"}, f.List())

	assert.Nil(t, newStationFilters(nil))
	assert.Nil(t, newStationFilters([]string{" ", ""}))

	var none *ClientFilters
	assert.Equal(t, []string{}, none.List())
}

func TestEmptySubscriptionReceivesEverything(t *testing.T) {
	s, httpServer, _ := startServer(t)

	conn := dial(t, httpServer, "?stations=KBOS")
	waitForClients(t, s, 1)

	require.NoError(t, conn.WriteJSON(Message{
		Type: MessageTypeSubscribe,
		Data: map[string]any{"stations": []string{}},
	}))
	ack := readMessage(t, conn)
	assert.Equal(t, MessageTypeSubscribed, ack.Type)
	assert.Equal(t, []any{}, ack.Data["stations"])

	s.Publish("KTTA", "metar_update", map[string]any{"raw": "KTTA 031530Z 04008KT 10SM CLR 07/M02"})
	got := readMessage(t, conn)
	assert.Equal(t, "KTTA", got.Data["station"])
}

func TestEmptyQueryFilterReceivesEverything(t *testing.T) {
	s, httpServer, _ := startServer(t)

	conn := dial(t, httpServer, "?stations=,")
	waitForClients(t, s, 1)

	s.Publish("KTTA", "metar_update", map[string]any{})
	assert.Equal(t, "KTTA", readMessage(t, conn).Data["station"])
}

func TestShutdownClosesClients(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	s := NewServer(metrics, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(stopped)
	}()

	httpServer := httptest.NewServer(http.HandlerFunc(s.HandleConnection))
	t.Cleanup(httpServer.Close)

	conn := dial(t, httpServer, "")
	waitForClients(t, s, 1)

	cancel()
	<-stopped
	assert.Equal(t, 0, s.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) {
				assert.False(t, netErr.Timeout(), "connection should be closed by the server, not time out")
			}
			break
		}
	}
}
