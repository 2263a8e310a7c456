package main

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 60 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 256

	// frameReadWait bounds how long a single inbound frame (a large file
	// upload) may take to arrive.
	frameReadWait = 5 * time.Minute
)

type Client struct {
	hub            *Hub
	conn           *websocket.Conn
	connID         string
	addr           string
	maxMessageSize int64
	log            zerolog.Logger

	mu     sync.RWMutex
	closed bool
	send   chan outbound
}

func NewClient(hub *Hub, conn *websocket.Conn, addr string, maxMessageSize int64, log zerolog.Logger) *Client {
	connID := uuid.NewString()
	return &Client{
		hub:            hub,
		conn:           conn,
		connID:         connID,
		addr:           addr,
		maxMessageSize: maxMessageSize,
		log:            log.With().Str("conn", connID).Logger(),
		send:           make(chan outbound, sendBufferSize),
	}
}

func (c *Client) ConnID() string { return c.connID }
func (c *Client) Addr() string   { return c.addr }

// Enqueue hands msg to the write pump without blocking. A full queue drops
// the message.
func (c *Client) Enqueue(msg outbound) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrQueueFull
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Disconnect(c)
		c.Close()
		c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, r, err := c.conn.NextReader()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(frameReadWait))

		limit := frameLimit(c.maxMessageSize)
		data, err := io.ReadAll(io.LimitReader(r, limit+1))
		if err != nil {
			c.log.Warn().Err(err).Msg("frame read failed")
			return
		}
		if int64(len(data)) > limit {
			// Drain the rest of the frame so the connection stays usable.
			if _, err := io.Copy(io.Discard, r); err != nil {
				c.log.Warn().Err(err).Msg("oversize frame drain failed")
				return
			}
			c.reject(fmt.Errorf("%w: frame exceeds %d bytes", ErrPayloadTooLarge, limit))
			_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
			continue
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		switch msgType {
		case websocket.TextMessage:
			err = c.handleText(data)
		case websocket.BinaryMessage:
			err = c.handleBinary(data)
		}
		if err != nil {
			c.reject(err)
		}
	}
}

// frameLimit is the largest inbound frame read in full: a maximum-size file
// payload plus its header. Payload size is enforced by Hub.SendFile.
func frameLimit(maxMessageSize int64) int64 {
	return maxMessageSize + fileHeaderPrefix + maxFileHeaderSize
}

func (c *Client) handleText(data []byte) error {
	env, err := decodeEnvelope(data)
	if err != nil {
		return err
	}

	switch env.Event {
	case EventJoinRoom:
		var req JoinRoomRequest
		if err := decodeData(env, &req); err != nil {
			return err
		}
		return c.hub.Join(c, req.RoomID, req.Location)

	case EventLeaveRoom:
		var req LeaveRoomRequest
		if err := decodeData(env, &req); err != nil {
			return err
		}
		return c.hub.Leave(c, req.RoomID)

	case EventSendText:
		var req SendTextRequest
		if err := decodeData(env, &req); err != nil {
			return err
		}
		_, err := c.hub.SendText(c, req.RoomID, req.Text)
		return err

	case EventGetNearbyRooms:
		var loc *Location
		if err := decodeData(env, &loc); err != nil {
			return err
		}
		ids, err := c.hub.NearbyRooms(c, loc)
		if err != nil {
			return err
		}
		return c.emit(EventNearbyRooms, "", ids)

	case EventSendFile:
		return fmt.Errorf("%w: send-file must be a binary frame", ErrInvalidMessage)

	default:
		return fmt.Errorf("%w: unknown event %q", ErrInvalidMessage, env.Event)
	}
}

func (c *Client) handleBinary(data []byte) error {
	hdr, payload, err := decodeFileFrame(data)
	if err != nil {
		return err
	}
	if hdr.Event != EventSendFile {
		return fmt.Errorf("%w: unexpected binary event %q", ErrInvalidMessage, hdr.Event)
	}
	_, err = c.hub.SendFile(c, hdr, payload)
	return err
}

func (c *Client) emit(event, roomID string, data any) error {
	msg, err := encodeEvent(event, roomID, data)
	if err != nil {
		return err
	}
	return c.Enqueue(outbound{data: msg})
}

// reject reports err to this client only.
func (c *Client) reject(err error) {
	code := errorCode(err)
	payloadsRejected.WithLabelValues(code).Inc()
	c.log.Debug().Err(err).Str("code", code).Msg("operation rejected")

	if sendErr := c.emit(EventError, "", ErrorPayload{Code: code, Message: err.Error()}); sendErr != nil && !errors.Is(sendErr, ErrClientClosed) {
		c.log.Warn().Err(sendErr).Msg("error event not delivered")
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			frameType := websocket.TextMessage
			if msg.binary {
				frameType = websocket.BinaryMessage
			}
			if err := c.conn.WriteMessage(frameType, msg.data); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
