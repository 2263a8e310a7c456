package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type testRelay struct {
	ts      *httptest.Server
	hub     *Hub
	reg     *Registry
	clock   *testClock
	sweeper *Sweeper
}

func newTestRelay(t *testing.T, cfg *Config) *testRelay {
	t.Helper()
	reg, clock := newTestRegistry(cfg)
	hub := NewHub(cfg, reg, zerolog.Nop())
	srv := NewServer(cfg, hub, zerolog.Nop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		hub.Shutdown()
		ts.Close()
	})
	return &testRelay{
		ts:      ts,
		hub:     hub,
		reg:     reg,
		clock:   clock,
		sweeper: NewSweeper(cfg, reg, hub, zerolog.Nop()),
	}
}

func (r *testRelay) dial(t *testing.T, forwardedFor string) *websocket.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("X-Forwarded-For", forwardedFor)
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(r.ts.URL, "http")+"/ws", header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// waitFor polls cond until it holds or a second passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatal(err)
	}
	if err := conn.WriteJSON(Envelope{Event: event, Data: raw}); err != nil {
		t.Fatalf("send %s: %v", event, err)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) (int, []byte) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	typ, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return typ, data
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	typ, data := readFrame(t, conn)
	if typ != websocket.TextMessage {
		t.Fatalf("expected text frame, got type %d", typ)
	}
	env, err := decodeEnvelope(data)
	if err != nil {
		t.Fatal(err)
	}
	return env
}

// expectSilence fails if conn receives anything within a short window.
func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(150 * time.Millisecond))
	if _, data, err := conn.ReadMessage(); err == nil {
		t.Fatalf("unexpected frame %q", data)
	}
}

func (r *testRelay) join(t *testing.T, conn *websocket.Conn, roomID string, loc *Location, want int) {
	t.Helper()
	send(t, conn, EventJoinRoom, JoinRoomRequest{RoomID: roomID, Location: loc})
	waitFor(t, "join "+roomID, func() bool { return len(r.hub.Subscribers(roomID)) >= want })
}

func TestServer_TextRelay(t *testing.T) {
	relay := newTestRelay(t, testConfig())
	c1 := relay.dial(t, "10.0.0.1")
	c2 := relay.dial(t, "10.0.0.2")
	relay.join(t, c1, "Swift-Tiger-42", nil, 1)
	relay.join(t, c2, "Swift-Tiger-42", nil, 2)

	send(t, c1, EventSendText, SendTextRequest{RoomID: "Swift-Tiger-42", Text: "hello"})

	env := readEnvelope(t, c2)
	var text string
	if err := json.Unmarshal(env.Data, &text); err != nil {
		t.Fatal(err)
	}
	if env.Event != EventReceiveText || env.RoomID != "Swift-Tiger-42" || text != "hello" {
		t.Errorf("got %+v (%q)", env, text)
	}
	expectSilence(t, c1)
}

func TestServer_NearbyByLocation(t *testing.T) {
	relay := newTestRelay(t, testConfig())
	c1 := relay.dial(t, "203.0.113.1")
	c2 := relay.dial(t, "198.51.100.7")
	relay.join(t, c1, "room-x", &Location{Lat: 48.8566, Lon: 2.3522}, 1)

	send(t, c2, EventGetNearbyRooms, Location{Lat: 48.8567, Lon: 2.3523})

	env := readEnvelope(t, c2)
	var ids []string
	if err := json.Unmarshal(env.Data, &ids); err != nil {
		t.Fatal(err)
	}
	if env.Event != EventNearbyRooms || len(ids) != 1 || ids[0] != "room-x" {
		t.Errorf("got %+v, ids %v", env, ids)
	}
}

func TestServer_NearbyEmptyList(t *testing.T) {
	relay := newTestRelay(t, testConfig())
	c := relay.dial(t, "203.0.113.9")

	send(t, c, EventGetNearbyRooms, nil)

	env := readEnvelope(t, c)
	if env.Event != EventNearbyRooms || string(env.Data) != "[]" {
		t.Errorf("got %+v, want empty list", env)
	}
}

func TestServer_IdleRoomClosed(t *testing.T) {
	relay := newTestRelay(t, testConfig())
	c1 := relay.dial(t, "10.0.0.1")
	c2 := relay.dial(t, "10.0.0.1")
	relay.join(t, c1, "room-y", nil, 1)
	relay.join(t, c2, "room-y", nil, 2)

	relay.sweeper.Sweep(relay.clock.Advance(1801 * time.Second))

	for _, c := range []*websocket.Conn{c1, c2} {
		env := readEnvelope(t, c)
		var reason string
		_ = json.Unmarshal(env.Data, &reason)
		if env.Event != EventRoomClosed || env.RoomID != "room-y" || reason != roomClosedReason {
			t.Errorf("got %+v", env)
		}
	}
	if relay.reg.Count() != 0 {
		t.Error("room still registered after sweep")
	}
}

func TestServer_OversizeFileRejected(t *testing.T) {
	cfg := testConfig()
	cfg.MaxMessageSize = 1024
	relay := newTestRelay(t, cfg)
	c1 := relay.dial(t, "10.0.0.1")
	c2 := relay.dial(t, "10.0.0.1")
	relay.join(t, c1, "room-z", nil, 1)
	relay.join(t, c2, "room-z", nil, 2)

	big, _ := encodeFileFrame(FileHeader{Event: EventSendFile, RoomID: "room-z", FileName: "big.bin"}, make([]byte, 1500))
	if err := c1.WriteMessage(websocket.BinaryMessage, big); err != nil {
		t.Fatal(err)
	}

	env := readEnvelope(t, c1)
	var payload ErrorPayload
	_ = json.Unmarshal(env.Data, &payload)
	if env.Event != EventError || payload.Code != CodePayloadTooLarge {
		t.Fatalf("got %+v", env)
	}

	small, _ := encodeFileFrame(FileHeader{Event: EventSendFile, RoomID: "room-z", FileName: "a.txt", FileType: "text/plain"}, []byte("tiny"))
	if err := c1.WriteMessage(websocket.BinaryMessage, small); err != nil {
		t.Fatal(err)
	}

	typ, frame := readFrame(t, c2)
	if typ != websocket.BinaryMessage {
		t.Fatalf("expected binary frame, got %d", typ)
	}
	hdr, data, err := decodeFileFrame(frame)
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Event != EventReceiveFile || hdr.FileName != "a.txt" || !bytes.Equal(data, []byte("tiny")) {
		t.Errorf("got %+v %q, want the small file first", hdr, data)
	}
}

func TestServer_OversizeFrameDrained(t *testing.T) {
	cfg := testConfig()
	cfg.MaxMessageSize = 1024
	relay := newTestRelay(t, cfg)
	c := relay.dial(t, "10.0.0.1")

	huge := bytes.Repeat([]byte("x"), int(frameLimit(cfg.MaxMessageSize))+1)
	if err := c.WriteMessage(websocket.TextMessage, huge); err != nil {
		t.Fatal(err)
	}

	env := readEnvelope(t, c)
	var payload ErrorPayload
	_ = json.Unmarshal(env.Data, &payload)
	if env.Event != EventError || payload.Code != CodePayloadTooLarge {
		t.Fatalf("got %+v", env)
	}

	// The connection stays usable.
	relay.join(t, c, "room-after", nil, 1)
}

func TestServer_InvalidRoomError(t *testing.T) {
	relay := newTestRelay(t, testConfig())
	c := relay.dial(t, "10.0.0.1")

	send(t, c, EventJoinRoom, JoinRoomRequest{RoomID: "not a room!"})

	env := readEnvelope(t, c)
	var payload ErrorPayload
	_ = json.Unmarshal(env.Data, &payload)
	if env.Event != EventError || payload.Code != CodeInvalidRoom {
		t.Errorf("got %+v", env)
	}

	// The connection stays usable.
	relay.join(t, c, "room-ok", nil, 1)
}

func TestServer_Health(t *testing.T) {
	relay := newTestRelay(t, testConfig())
	c := relay.dial(t, "10.0.0.1")
	relay.join(t, c, "room-1", nil, 1)

	resp, err := http.Get(relay.ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Status  string `json:"status"`
		Rooms   int    `json:"rooms"`
		Clients int    `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" || body.Rooms != 1 || body.Clients != 1 {
		t.Errorf("health = %+v", body)
	}
}

func TestServer_NewRoom(t *testing.T) {
	relay := newTestRelay(t, testConfig())

	for _, style := range []string{"", "words", "uuid"} {
		resp, err := http.Get(relay.ts.URL + "/api/rooms/new?style=" + style)
		if err != nil {
			t.Fatal(err)
		}
		var body struct {
			RoomID string `json:"roomId"`
		}
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusOK || ValidateRoomID(body.RoomID) != nil {
			t.Errorf("style %q: status %d id %q", style, resp.StatusCode, body.RoomID)
		}
	}

	resp, err := http.Get(relay.ts.URL + "/api/rooms/new?style=emoji")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad style status = %d", resp.StatusCode)
	}
}

func TestClientAddr(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "192.0.2.1:5555"
	if got := clientAddr(r); got != "192.0.2.1" {
		t.Errorf("remote addr = %q", got)
	}

	r.Header.Set("X-Real-IP", "192.0.2.2")
	if got := clientAddr(r); got != "192.0.2.2" {
		t.Errorf("x-real-ip = %q", got)
	}

	r.Header.Set("X-Forwarded-For", "192.0.2.3, 10.0.0.1")
	if got := clientAddr(r); got != "192.0.2.3" {
		t.Errorf("x-forwarded-for = %q", got)
	}
}
