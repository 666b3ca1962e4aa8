package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dealroom/internal/engine"
	"dealroom/internal/rules"
	"dealroom/internal/store"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	rng := rules.NewRNG(42)
	st := store.New(rng, store.DefaultTTLs(), zap.NewNop())
	srv := New(st, []string{"*"}, zap.NewNop())
	srv.AttachEngine(engine.New(st, rng, engine.Defaults(), srv, zap.NewNop()))

	ts := httptest.NewServer(srv.Handler([]string{"*"}))
	t.Cleanup(ts.Close)
	return ts
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type wireFrame struct {
	Event     string          `json:"event"`
	RequestID uint64          `json:"requestId"`
	Data      json.RawMessage `json:"data"`
}

func send(t *testing.T, conn *websocket.Conn, event string, requestID uint64, data any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"event": event, "requestId": requestID, "data": data})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) wireFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f wireFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("unmarshal %q: %v", raw, err)
	}
	return f
}

// awaitEvent skips unrelated pushes until the wanted event arrives.
func awaitEvent(t *testing.T, conn *websocket.Conn, event string) wireFrame {
	t.Helper()
	for i := 0; i < 10; i++ {
		f := readFrame(t, conn)
		if f.Event == event {
			return f
		}
	}
	t.Fatalf("no %s frame", event)
	return wireFrame{}
}

func TestCreateRoomOverWire(t *testing.T) {
	ts := newTestServer(t)
	conn := dialWS(t, ts)

	send(t, conn, "create-room", 1, map[string]any{"playerName": "Alice"})

	ack := awaitEvent(t, conn, "ack")
	if ack.RequestID != 1 {
		t.Fatalf("ack id %d", ack.RequestID)
	}
	var result struct {
		Success  bool   `json:"success"`
		RoomCode string `json:"roomCode"`
		PlayerID string `json:"playerId"`
	}
	if err := json.Unmarshal(ack.Data, &result); err != nil {
		t.Fatalf("ack data: %v", err)
	}
	if !result.Success || len(result.RoomCode) != rules.RoomCodeLen || result.PlayerID == "" {
		t.Fatalf("bad ack %+v", result)
	}

	stateFrame := awaitEvent(t, conn, "game-state-update")
	var snap struct {
		Phase   string `json:"phase"`
		Players []struct {
			Name   string `json:"name"`
			IsHost bool   `json:"isHost"`
		} `json:"players"`
		Boxes []struct {
			Value *float64 `json:"value"`
		} `json:"boxes"`
	}
	if err := json.Unmarshal(stateFrame.Data, &snap); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Phase != "waiting" || len(snap.Players) != 1 || !snap.Players[0].IsHost {
		t.Fatalf("bad snapshot %+v", snap)
	}
	for _, b := range snap.Boxes {
		if b.Value != nil {
			t.Fatalf("box value leaked over the wire")
		}
	}
}

func TestJoinAndChatOverWire(t *testing.T) {
	ts := newTestServer(t)
	hostConn := dialWS(t, ts)
	send(t, hostConn, "create-room", 1, map[string]any{"playerName": "Alice"})
	ack := awaitEvent(t, hostConn, "ack")
	var created struct {
		RoomCode string `json:"roomCode"`
	}
	if err := json.Unmarshal(ack.Data, &created); err != nil {
		t.Fatalf("ack data: %v", err)
	}

	joinConn := dialWS(t, ts)
	send(t, joinConn, "join-room", 2, map[string]any{
		"roomCode": strings.ToLower(created.RoomCode), "playerName": "Bob",
	})
	joinAck := awaitEvent(t, joinConn, "ack")
	var joined struct {
		Success bool `json:"success"`
	}
	if err := json.Unmarshal(joinAck.Data, &joined); err != nil || !joined.Success {
		t.Fatalf("join rejected: %s", joinAck.Data)
	}

	send(t, joinConn, "chat-message", 0, map[string]any{"content": "hello"})
	chat := awaitEvent(t, hostConn, "chat-message")
	var msg struct {
		SenderName string `json:"senderName"`
		Content    string `json:"content"`
	}
	if err := json.Unmarshal(chat.Data, &msg); err != nil {
		t.Fatalf("chat data: %v", err)
	}
	if msg.SenderName != "Bob" || msg.Content != "hello" {
		t.Fatalf("bad chat %+v", msg)
	}
}

func TestJoinUnknownRoomAck(t *testing.T) {
	ts := newTestServer(t)
	conn := dialWS(t, ts)

	send(t, conn, "join-room", 5, map[string]any{"roomCode": "ZZZZZZ", "playerName": "Bob"})
	ack := awaitEvent(t, conn, "ack")
	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(ack.Data, &result); err != nil {
		t.Fatalf("ack data: %v", err)
	}
	if result.Success || result.Error != "Room not found" {
		t.Fatalf("bad error ack %+v", result)
	}
}

func TestHealthAndInfo(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status %d", resp.StatusCode)
	}

	info, err := http.Get(ts.URL + "/info")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	defer info.Body.Close()
	var body struct {
		Rooms int `json:"rooms"`
	}
	if err := json.NewDecoder(info.Body).Decode(&body); err != nil {
		t.Fatalf("info body: %v", err)
	}
	if body.Rooms != 0 {
		t.Fatalf("fresh server reports %d rooms", body.Rooms)
	}
}
