package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yegors/co-wx/internal/metar"
	"github.com/yegors/co-wx/internal/weather"
	"github.com/yegors/co-wx/internal/websocket"
	"github.com/yegors/co-wx/pkg/logger"
)

func dialMessageServer(t *testing.T, svc WeatherProvider, query string) *gws.Conn {
	t.Helper()
	s := websocket.NewServer(nil, logger.NewNop())
	s.SetMessageHandler(NewWebSocketMessageHandler(svc, logger.NewNop()))

	ctx, cancel := context.WithCancel(context.Background())
	go s.Run(ctx)
	srv := httptest.NewServer(http.HandlerFunc(s.HandleConnection))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})

	conn, _, err := gws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+query, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *gws.Conn, msg websocket.Message) websocket.Message {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var reply websocket.Message
	require.NoError(t, conn.ReadJSON(&reply))
	return reply
}

func weatherWithKTTA(t *testing.T) *fakeWeather {
	t.Helper()
	svc := newFakeWeather()
	r, err := metar.Decode("KTTA 031530Z 04008KT 10SM CLR 07/M02")
	require.NoError(t, err)
	svc.observations["KTTA"] = &weather.Observation{Station: "KTTA", Raw: r.String(), Report: &r}
	return svc
}

func TestWebSocketLatest(t *testing.T) {
	conn := dialMessageServer(t, weatherWithKTTA(t), "")

	reply := roundTrip(t, conn, websocket.Message{Type: MessageTypeLatest, Data: map[string]any{"station": "ktta"}})
	assert.Equal(t, weather.MessageTypeMETARUpdate, reply.Type)
	assert.Equal(t, "KTTA", reply.Data["station"])
	obs := reply.Data["observation"].(map[string]any)
	assert.Equal(t, "KTTA 031530Z 04008KT 10SM CLR 07/M02", obs["raw"])

	reply = roundTrip(t, conn, websocket.Message{Type: MessageTypeLatest, Data: map[string]any{"station": "KBOS"}})
	assert.Equal(t, websocket.MessageTypeError, reply.Type)
	assert.Contains(t, reply.Data["message"], "no observation available for KBOS")
}

func TestWebSocketLatestUsesSubscription(t *testing.T) {
	conn := dialMessageServer(t, weatherWithKTTA(t), "?stations=KTTA")

	reply := roundTrip(t, conn, websocket.Message{Type: MessageTypeLatest})
	assert.Equal(t, weather.MessageTypeMETARUpdate, reply.Type)
	assert.Equal(t, "KTTA", reply.Data["station"])
}

func TestWebSocketLatestAfterEmptySubscription(t *testing.T) {
	conn := dialMessageServer(t, weatherWithKTTA(t), "?stations=KBOS")

	ack := roundTrip(t, conn, websocket.Message{Type: websocket.MessageTypeSubscribe, Data: map[string]any{"stations": []string{}}})
	require.Equal(t, websocket.MessageTypeSubscribed, ack.Type)

	reply := roundTrip(t, conn, websocket.Message{Type: MessageTypeLatest})
	assert.Equal(t, weather.MessageTypeMETARUpdate, reply.Type)
	assert.Equal(t, "KTTA", reply.Data["station"])
}

func TestWebSocketRefresh(t *testing.T) {
	svc := newFakeWeather()
	conn := dialMessageServer(t, svc, "")

	require.NoError(t, conn.WriteJSON(websocket.Message{Type: MessageTypeRefresh, Data: map[string]any{"station": "kbos"}}))
	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		return len(svc.refreshed) == 1 && svc.refreshed[0] == "KBOS"
	}, 5*time.Second, 10*time.Millisecond)

	reply := roundTrip(t, conn, websocket.Message{Type: MessageTypeRefresh, Data: map[string]any{}})
	assert.Equal(t, websocket.MessageTypeError, reply.Type)
	assert.Equal(t, "refresh requires a station", reply.Data["message"])

	reply = roundTrip(t, conn, websocket.Message{Type: "bogus"})
	assert.Equal(t, "unknown message type: bogus", reply.Data["message"])
}
