package websocket

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func setupHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	hub := NewHub(logger)
	go hub.Run()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(server.Close)
	return hub, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing feed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d clients, have %d", want, hub.ClientCount())
}

func TestHub_ClientCountStartsAtZero(t *testing.T) {
	hub, _ := setupHub(t)
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}

func TestHub_ClientConnects(t *testing.T) {
	hub, server := setupHub(t)

	dial(t, server)
	waitForClients(t, hub, 1)
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	hub, server := setupHub(t)

	conn := dial(t, server)
	waitForClients(t, hub, 1)

	status := 200
	sent := CallEvent{
		Type:       "call_success",
		WebhookID:  "wh-1",
		URL:        "https://example.com/hook",
		EventType:  "email.delivered",
		Attempt:    1,
		StatusCode: &status,
		ResponseMs: 42,
		Timestamp:  time.Now().UTC(),
	}
	hub.Broadcast(sent)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("reading feed: %v", err)
	}

	var got CallEvent
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decoding feed event: %v", err)
	}
	if got.Type != "call_success" || got.WebhookID != "wh-1" {
		t.Errorf("event mangled: %+v", got)
	}
	if got.StatusCode == nil || *got.StatusCode != 200 {
		t.Error("status code lost in transit")
	}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub, server := setupHub(t)

	conns := []*websocket.Conn{dial(t, server), dial(t, server), dial(t, server)}
	waitForClients(t, hub, 3)

	hub.Broadcast(CallEvent{Type: "call_failed", WebhookID: "wh-1", Error: "endpoint returned 500"})

	for i, conn := range conns {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("client %d never received the event: %v", i, err)
		}
		var got CallEvent
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("client %d: decoding event: %v", i, err)
		}
		if got.Type != "call_failed" {
			t.Errorf("client %d: got type %q", i, got.Type)
		}
	}
}

func TestHub_DisconnectedClientIsRemoved(t *testing.T) {
	hub, server := setupHub(t)

	conn := dial(t, server)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}
