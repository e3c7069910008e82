package websocket_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/adwski/chat-relay/model"
	"github.com/adwski/chat-relay/registry"
	"github.com/adwski/chat-relay/router"
	wsServer "github.com/adwski/chat-relay/server/websocket"
	"github.com/adwski/chat-relay/storage/memory"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	logger := zerolog.Nop()
	store := memory.NewStore()
	rt := router.NewRouter(router.Config{
		Logger:      &logger,
		Members:     store,
		SendTimeout: time.Second,
	})
	reg := registry.NewRegistry(registry.Config{
		Store:       store,
		Router:      rt,
		Logger:      &logger,
		DefaultRoom: "default-room",
		SendTimeout: time.Second,
	})
	srv := wsServer.NewServer(wsServer.Config{
		Logger:     &logger,
		Relay:      reg,
		ListenAddr: ":0",
		SendBuffer: 16,
	})

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(ts.Close)
	return ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial %s: %v", url, err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) model.Message {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("failed to set read deadline: %v", err)
	}
	var msg model.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	return msg
}

func assertNoMessage(t *testing.T, conn *websocket.Conn, who string) {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond)); err != nil {
		t.Fatalf("failed to set read deadline: %v", err)
	}
	var msg model.Message
	if err := conn.ReadJSON(&msg); err == nil {
		t.Errorf("%s unexpectedly received %+v", who, msg)
	}
}

func TestRelayRoundTrip(t *testing.T) {
	ts := newTestServer(t)

	c1 := dial(t, ts)
	c2 := dial(t, ts)

	if err := c1.WriteJSON(model.Message{Type: model.TypeJoin, Username: "Alice", RoomID: "abc"}); err != nil {
		t.Fatalf("c1 join failed: %v", err)
	}
	if got := readMessage(t, c1); got.Content != "Joined room abc" {
		t.Errorf("c1 join reply = %+v, want confirmation for room abc", got)
	}

	if err := c2.WriteJSON(model.Message{Type: model.TypeJoin, Username: "Bob", RoomID: "abc"}); err != nil {
		t.Fatalf("c2 join failed: %v", err)
	}
	if got := readMessage(t, c2); got.Content != "Joined room abc" {
		t.Errorf("c2 join reply = %+v, want confirmation for room abc", got)
	}

	if err := c1.WriteJSON(model.Message{Type: model.TypeChat, Content: "hi"}); err != nil {
		t.Fatalf("c1 chat failed: %v", err)
	}

	got := readMessage(t, c2)
	if got.Type != model.TypeChat || got.Username != "Alice" || got.Content != "hi" || got.RoomID != "abc" {
		t.Errorf("c2 received %+v, want chat from Alice in abc", got)
	}
	assertNoMessage(t, c1, "sender")
}

func TestRelayChatBeforeJoin(t *testing.T) {
	ts := newTestServer(t)

	c1 := dial(t, ts)

	if err := c1.WriteJSON(model.Message{Type: model.TypeChat, Content: "hello?"}); err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	got := readMessage(t, c1)
	if got.Type != model.TypeSystem || got.Content != "Please join a room first" {
		t.Errorf("reply = %+v, want join-first system message", got)
	}
}

func TestRelayMalformedPayload(t *testing.T) {
	ts := newTestServer(t)

	c1 := dial(t, ts)

	if err := c1.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	got := readMessage(t, c1)
	if got.Type != model.TypeSystem || got.Content != "Invalid message format" {
		t.Errorf("reply = %+v, want parse-failure system message", got)
	}
}

func TestRelayPeerDisconnect(t *testing.T) {
	ts := newTestServer(t)

	c1 := dial(t, ts)
	c2 := dial(t, ts)

	for i, conn := range []*websocket.Conn{c1, c2} {
		name := []string{"Alice", "Bob"}[i]
		if err := conn.WriteJSON(model.Message{Type: model.TypeJoin, Username: name, RoomID: "abc"}); err != nil {
			t.Fatalf("%s join failed: %v", name, err)
		}
		readMessage(t, conn)
	}

	if err := c2.Close(); err != nil {
		t.Fatalf("c2 close failed: %v", err)
	}
	// give the server a moment to process the disconnect
	time.Sleep(100 * time.Millisecond)

	if err := c1.WriteJSON(model.Message{Type: model.TypeChat, Content: "still there?"}); err != nil {
		t.Fatalf("c1 chat failed: %v", err)
	}
	assertNoMessage(t, c1, "sender")
}
