package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/domu-platform/domu/internal/app/domain/chat"
)

func startHubServer(t *testing.T, hub *Hub, inbound chan<- Inbound) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		userID := int64(1)
		if r.URL.Query().Get("user") == "2" {
			userID = 2
		}
		hub.Serve(r.Context(), userID, conn, func(_ context.Context, _ int64, in Inbound) {
			inbound <- in
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitOnline(t *testing.T, hub *Hub, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		ids, err := hub.Online(context.Background())
		return err == nil && len(ids) == want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_DeliversToRecipients(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(nil, nil)
	require.NoError(t, hub.Start(ctx))
	defer func() { _ = hub.Stop(ctx) }()

	inbound := make(chan Inbound, 1)
	srv := startHubServer(t, hub, inbound)
	first := dial(t, srv, "1")
	second := dial(t, srv, "2")
	waitOnline(t, hub, 2)

	msg := domain.Message{ID: 5, RoomID: 3, SenderID: 1, Content: "hola", Type: domain.MessageText}
	require.NoError(t, hub.Publish(ctx, []int64{2}, Event{Type: EventNewMessage, RoomID: 3, Message: &msg}))

	_ = second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := second.ReadMessage()
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, EventNewMessage, got["type"])
	assert.Equal(t, float64(3), got["roomId"])
	assert.Equal(t, "hola", got["message"].(map[string]interface{})["content"])

	// user 1 is not a recipient
	_ = first.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = first.ReadMessage()
	assert.Error(t, err)
}

func TestHub_InboundFramesAndPresence(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(nil, nil)
	require.NoError(t, hub.Start(ctx))
	defer func() { _ = hub.Stop(ctx) }()

	inbound := make(chan Inbound, 1)
	srv := startHubServer(t, hub, inbound)
	conn := dial(t, srv, "2")
	waitOnline(t, hub, 1)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"TYPING","roomId":9}`)))
	select {
	case in := <-inbound:
		assert.Equal(t, Inbound{Type: EventTyping, RoomID: 9}, in)
	case <-time.After(2 * time.Second):
		t.Fatal("inbound frame not handled")
	}

	ids, err := hub.Online(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, ids)

	require.NoError(t, conn.Close())
	waitOnline(t, hub, 0)
}
