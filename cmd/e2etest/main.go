// E2E test: connects WebSocket clients to a live relay and exercises join,
// text relay, file relay and nearby discovery.
// Usage: go run ./cmd/e2etest -relay ws://localhost:3000/ws
package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

var (
	relayURL = flag.String("relay", "ws://localhost:3000/ws", "relay WebSocket URL")
	fakeAddr = flag.String("addr", "198.51.100.23", "X-Forwarded-For value shared by the test clients")
)

type envelope struct {
	Event  string          `json:"event"`
	RoomID string          `json:"roomId,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type fileHeader struct {
	Event    string `json:"event"`
	RoomID   string `json:"roomId"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

func main() {
	flag.Parse()
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	// --- Ask the relay for a room id ---
	roomID, err := newRoomID(*relayURL)
	if err != nil {
		log.Fatal("new room:", err)
	}
	log.Printf(">> Using room %s", roomID)

	// --- Connect host and guest ---
	log.Println(">> Connecting host...")
	hostConn, err := dial(*relayURL, *fakeAddr)
	if err != nil {
		log.Fatal("host connect:", err)
	}
	defer hostConn.Close()
	log.Println("   Host connected ✓")

	log.Println(">> Connecting guest...")
	guestConn, err := dial(*relayURL, *fakeAddr)
	if err != nil {
		log.Fatal("guest connect:", err)
	}
	defer guestConn.Close()
	log.Println("   Guest connected ✓")

	for _, c := range []*websocket.Conn{hostConn, guestConn} {
		if err := send(c, "join-room", map[string]any{"roomId": roomID}); err != nil {
			log.Fatal("join:", err)
		}
	}
	// Joins are not acknowledged.
	time.Sleep(200 * time.Millisecond)
	log.Println("   Both joined ✓")

	// --- Test: host sends text, guest receives ---
	log.Println(">> Host sending text...")
	if err := send(hostConn, "send-text", map[string]any{"roomId": roomID, "text": "hello from host"}); err != nil {
		log.Fatal("host send:", err)
	}
	env, err := readEnvelope(guestConn)
	if err != nil {
		log.Fatal("guest read:", err)
	}
	var text string
	_ = json.Unmarshal(env.Data, &text)
	if env.Event != "receive-text" || text != "hello from host" {
		log.Fatalf("guest got %s %s", env.Event, env.Data)
	}
	log.Printf("   Guest received: %q ✓", text)

	// --- Test: guest sends file, host receives ---
	log.Println(">> Guest sending file...")
	payload := []byte("e2e file body")
	frame, err := fileFrame(fileHeader{Event: "send-file", RoomID: roomID, FileName: "e2e.txt", FileType: "text/plain"}, payload)
	if err != nil {
		log.Fatal("encode file:", err)
	}
	if err := guestConn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		log.Fatal("guest send:", err)
	}
	_ = hostConn.SetReadDeadline(time.Now().Add(5 * time.Second))
	typ, got, err := hostConn.ReadMessage()
	if err != nil {
		log.Fatal("host read:", err)
	}
	if typ != websocket.BinaryMessage || !strings.HasSuffix(string(got), string(payload)) {
		log.Fatalf("host got unexpected frame type %d", typ)
	}
	log.Printf("   Host received %d byte frame ✓", len(got))

	// --- Test: a third client on the same address discovers the room ---
	log.Println(">> Scanner looking for nearby rooms...")
	scanConn, err := dial(*relayURL, *fakeAddr)
	if err != nil {
		log.Fatal("scanner connect:", err)
	}
	defer scanConn.Close()
	if err := send(scanConn, "get-nearby-rooms", nil); err != nil {
		log.Fatal("nearby:", err)
	}
	env, err = readEnvelope(scanConn)
	if err != nil {
		log.Fatal("scanner read:", err)
	}
	var ids []string
	_ = json.Unmarshal(env.Data, &ids)
	if env.Event != "nearby-rooms" || !slices.Contains(ids, roomID) {
		log.Fatalf("scanner got %s %s", env.Event, env.Data)
	}
	log.Printf("   Nearby rooms: %v ✓", ids)

	// --- Done ---
	fmt.Println()
	log.Println("═══════════════════════════════")
	log.Println("  E2E TEST PASSED ✓")
	log.Println("═══════════════════════════════")
	os.Exit(0)
}

func dial(u, addr string) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("X-Forwarded-For", addr)
	conn, _, err := websocket.DefaultDialer.Dial(u, header)
	return conn, err
}

func newRoomID(wsURL string) (string, error) {
	base := strings.TrimSuffix(strings.Replace(wsURL, "ws", "http", 1), "/ws")
	resp, err := http.Get(base + "/api/rooms/new")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var body struct {
		RoomID string `json:"roomId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	return body.RoomID, nil
}

func send(c *websocket.Conn, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.WriteJSON(envelope{Event: event, Data: raw})
}

func readEnvelope(c *websocket.Conn) (envelope, error) {
	var env envelope
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	err := c.ReadJSON(&env)
	return env, err
}

func fileFrame(h fileHeader, payload []byte) ([]byte, error) {
	hdr, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, 4, 4+len(hdr)+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(hdr)))
	frame = append(frame, hdr...)
	return append(frame, payload...), nil
}
