package main

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Client → server events.
const (
	EventJoinRoom       = "join-room"
	EventLeaveRoom      = "leave-room"
	EventSendText       = "send-text"
	EventSendFile       = "send-file"
	EventGetNearbyRooms = "get-nearby-rooms"
)

// Server → client events.
const (
	EventReceiveText = "receive-text"
	EventReceiveFile = "receive-file"
	EventNearbyRooms = "nearby-rooms"
	EventRoomClosed  = "room-closed"
	EventError       = "error"
)

const (
	// fileHeaderPrefix is the size of the big-endian header length that
	// starts every binary file frame.
	fileHeaderPrefix  = 4
	maxFileHeaderSize = 64 * 1024

	roomClosedReason = "Room closed due to inactivity"
)

// Envelope is the JSON shape of every text frame in both directions.
type Envelope struct {
	Event  string          `json:"event"`
	RoomID string          `json:"roomId,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type JoinRoomRequest struct {
	RoomID   string    `json:"roomId"`
	Location *Location `json:"location,omitempty"`
}

type LeaveRoomRequest struct {
	RoomID string `json:"roomId"`
}

type SendTextRequest struct {
	RoomID string `json:"roomId"`
	Text   string `json:"text"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FileHeader precedes the raw bytes of a binary file frame.
type FileHeader struct {
	Event    string `json:"event"`
	RoomID   string `json:"roomId"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

// outbound is one frame queued for a client's write pump.
type outbound struct {
	binary bool
	data   []byte
}

func encodeEvent(event, roomID string, data any) ([]byte, error) {
	env := Envelope{Event: event, RoomID: roomID}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

func decodeEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return env, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if env.Event == "" {
		return env, fmt.Errorf("%w: missing event", ErrInvalidMessage)
	}
	return env, nil
}

// decodeData unmarshals env.Data into dst. Missing data leaves dst untouched.
func decodeData(env Envelope, dst any) error {
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidMessage, env.Event, err)
	}
	return nil
}

func encodeFileFrame(h FileHeader, payload []byte) ([]byte, error) {
	hdr, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("encode file header: %w", err)
	}
	if len(hdr) > maxFileHeaderSize {
		return nil, fmt.Errorf("%w: header is %d bytes", ErrMalformedFrame, len(hdr))
	}
	frame := make([]byte, fileHeaderPrefix+len(hdr)+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(hdr)))
	copy(frame[fileHeaderPrefix:], hdr)
	copy(frame[fileHeaderPrefix+len(hdr):], payload)
	return frame, nil
}

// decodeFileFrame splits a binary frame into its header and payload. The
// payload aliases frame.
func decodeFileFrame(frame []byte) (FileHeader, []byte, error) {
	var h FileHeader
	if len(frame) < fileHeaderPrefix {
		return h, nil, fmt.Errorf("%w: %d bytes", ErrMalformedFrame, len(frame))
	}
	n := binary.BigEndian.Uint32(frame)
	if n > maxFileHeaderSize || int(n) > len(frame)-fileHeaderPrefix {
		return h, nil, fmt.Errorf("%w: header length %d", ErrMalformedFrame, n)
	}
	end := fileHeaderPrefix + int(n)
	if err := json.Unmarshal(frame[fileHeaderPrefix:end], &h); err != nil {
		return h, nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return h, frame[end:], nil
}
