package main

import "errors"

var (
	ErrInvalidRoomID   = errors.New("invalid room id")
	ErrInvalidLocation = errors.New("invalid location")
	ErrInvalidMessage  = errors.New("invalid message format")
	ErrMalformedFrame  = errors.New("malformed file frame")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrRoomLimit       = errors.New("max rooms reached")
	ErrRoomFull        = errors.New("room full")
	ErrClientClosed    = errors.New("client closed")
	ErrQueueFull       = errors.New("client send queue is full")
)

// Client-facing error codes carried in "error" events.
const (
	CodeInvalidMessage  = "invalid-message"
	CodeInvalidRoom     = "invalid-room"
	CodeInvalidLocation = "invalid-location"
	CodePayloadTooLarge = "payload-too-large"
	CodeRateLimited     = "rate-limited"
	CodeRoomLimit       = "room-limit"
	CodeRoomFull        = "room-full"
)

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRoomID):
		return CodeInvalidRoom
	case errors.Is(err, ErrInvalidLocation):
		return CodeInvalidLocation
	case errors.Is(err, ErrPayloadTooLarge):
		return CodePayloadTooLarge
	case errors.Is(err, ErrRoomLimit):
		return CodeRoomLimit
	case errors.Is(err, ErrRoomFull):
		return CodeRoomFull
	default:
		return CodeInvalidMessage
	}
}
