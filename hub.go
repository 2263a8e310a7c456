package main

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

// Peer is a connection handle as seen by the hub. Enqueue must not block.
type Peer interface {
	ConnID() string
	Addr() string
	Enqueue(msg outbound) error
	Close()
}

// Hub keeps the subscriber groups and dispatches relay operations against the
// registry. Lock order is hub.mu then registry.
type Hub struct {
	log               zerolog.Logger
	registry          *Registry
	maxMessageSize    int64
	maxRooms          int
	maxClientsPerRoom int

	mu      sync.RWMutex
	rooms   map[string]*Room               // room id → subscribers
	joined  map[string]map[string]struct{} // conn id → joined room ids
	clients map[string]Peer
}

func NewHub(cfg *Config, registry *Registry, log zerolog.Logger) *Hub {
	return &Hub{
		log:               log,
		registry:          registry,
		maxMessageSize:    cfg.MaxMessageSize,
		maxRooms:          cfg.MaxRooms,
		maxClientsPerRoom: cfg.MaxClientsPerRoom,
		rooms:             make(map[string]*Room),
		joined:            make(map[string]map[string]struct{}),
		clients:           make(map[string]Peer),
	}
}

func (h *Hub) Register(p Peer) {
	h.mu.Lock()
	h.clients[p.ConnID()] = p
	n := len(h.clients)
	h.mu.Unlock()

	clientsConnected.Set(float64(n))
	h.log.Debug().Str("conn", p.ConnID()).Str("addr", p.Addr()).Msg("client connected")
}

// Disconnect drops p from every room it joined. Registry records are kept.
func (h *Hub) Disconnect(p Peer) {
	h.mu.Lock()
	connID := p.ConnID()
	for roomID := range h.joined[connID] {
		h.removeLocked(connID, roomID)
	}
	delete(h.joined, connID)
	delete(h.clients, connID)
	n := len(h.clients)
	h.mu.Unlock()

	clientsConnected.Set(float64(n))
	h.log.Debug().Str("conn", connID).Msg("client disconnected")
}

// Join subscribes p to roomID and creates or refreshes the room record.
// Creating a room beyond maxRooms, or joining a room that already holds
// maxClientsPerRoom other connections, is refused.
func (h *Hub) Join(p Peer, roomID string, loc *Location) error {
	if err := ValidateRoomID(roomID); err != nil {
		return err
	}
	if loc != nil {
		if err := loc.Validate(); err != nil {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	connID := p.ConnID()
	if _, known := h.registry.Get(roomID); !known && h.registry.Count() >= h.maxRooms {
		return fmt.Errorf("%w: %d", ErrRoomLimit, h.maxRooms)
	}
	room, ok := h.rooms[roomID]
	if ok && !room.Has(connID) && room.ClientCount() >= h.maxClientsPerRoom {
		return fmt.Errorf("%w: %s has %d clients", ErrRoomFull, roomID, h.maxClientsPerRoom)
	}
	if !ok {
		room = NewRoom(roomID)
		h.rooms[roomID] = room
	}
	room.Add(p)

	if h.joined[connID] == nil {
		h.joined[connID] = make(map[string]struct{})
	}
	h.joined[connID][roomID] = struct{}{}

	h.registry.Touch(roomID, p.Addr(), loc)

	h.log.Info().Str("conn", connID).Str("room", roomID).Bool("located", loc != nil).Msg("joined room")
	return nil
}

func (h *Hub) Leave(p Peer, roomID string) error {
	if err := ValidateRoomID(roomID); err != nil {
		return err
	}
	h.mu.Lock()
	h.removeLocked(p.ConnID(), roomID)
	h.mu.Unlock()
	return nil
}

func (h *Hub) removeLocked(connID, roomID string) {
	if room, ok := h.rooms[roomID]; ok {
		room.Remove(connID)
		if room.ClientCount() == 0 {
			delete(h.rooms, roomID)
		}
	}
	if set, ok := h.joined[connID]; ok {
		delete(set, roomID)
	}
}

// SendText relays text to every other subscriber of roomID.
func (h *Hub) SendText(from Peer, roomID, text string) (int, error) {
	if err := ValidateRoomID(roomID); err != nil {
		return 0, err
	}
	data, err := encodeEvent(EventReceiveText, roomID, text)
	if err != nil {
		return 0, err
	}

	h.registry.RecordActivity(roomID)
	messagesRelayed.WithLabelValues("text").Inc()
	return h.broadcast(roomID, from.ConnID(), outbound{data: data}), nil
}

// SendFile relays an opaque file payload. Oversize payloads are rejected
// before anything is queued.
func (h *Hub) SendFile(from Peer, hdr FileHeader, payload []byte) (int, error) {
	if err := ValidateRoomID(hdr.RoomID); err != nil {
		return 0, err
	}
	if int64(len(payload)) > h.maxMessageSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	frame, err := encodeFileFrame(FileHeader{
		Event:    EventReceiveFile,
		RoomID:   hdr.RoomID,
		FileName: hdr.FileName,
		FileType: hdr.FileType,
	}, payload)
	if err != nil {
		return 0, err
	}

	h.registry.RecordActivity(hdr.RoomID)
	messagesRelayed.WithLabelValues("file").Inc()
	n := h.broadcast(hdr.RoomID, from.ConnID(), outbound{binary: true, data: frame})
	h.log.Debug().Str("room", hdr.RoomID).Int("bytes", len(payload)).Int("recipients", n).Msg("file relayed")
	return n, nil
}

func (h *Hub) broadcast(roomID, senderConnID string, msg outbound) int {
	h.mu.RLock()
	room, ok := h.rooms[roomID]
	h.mu.RUnlock()

	if !ok {
		return 0
	}
	return room.Broadcast(senderConnID, msg)
}

// NearbyRooms lists rooms near p, excluding the ones p has joined.
func (h *Hub) NearbyRooms(p Peer, loc *Location) ([]string, error) {
	if loc != nil {
		if err := loc.Validate(); err != nil {
			return nil, err
		}
	}

	h.mu.RLock()
	own := make(map[string]struct{}, len(h.joined[p.ConnID()]))
	for id := range h.joined[p.ConnID()] {
		own[id] = struct{}{}
	}
	h.mu.RUnlock()

	ids := make([]string, 0)
	for _, id := range h.registry.FindNearby(p.Addr(), loc) {
		if _, mine := own[id]; !mine {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Subscribers returns the current subscribers of roomID.
func (h *Hub) Subscribers(roomID string) []Peer {
	h.mu.RLock()
	room, ok := h.rooms[roomID]
	h.mu.RUnlock()

	if !ok {
		return nil
	}
	return room.Peers()
}

// CloseRoom notifies every subscriber of an evicted room and removes them
// from it. A room that was re-created by a join after eviction is left alone.
func (h *Hub) CloseRoom(roomID, reason string) error {
	data, err := encodeEvent(EventRoomClosed, roomID, reason)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, alive := h.registry.Get(roomID); alive {
		return nil
	}
	room, ok := h.rooms[roomID]
	if !ok {
		return nil
	}

	peers := room.Peers()
	for _, p := range peers {
		h.removeLocked(p.ConnID(), roomID)
	}
	delete(h.rooms, roomID)

	var errs []error
	for _, p := range peers {
		if err := notify(p, outbound{data: data}); err != nil {
			errs = append(errs, fmt.Errorf("conn %s: %w", p.ConnID(), err))
		}
	}
	return errors.Join(errs...)
}

// notify enqueues msg on p, turning a panic in p into an error.
func notify(p Peer, msg outbound) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enqueue panicked: %v", r)
		}
	}()
	return p.Enqueue(msg)
}

func (h *Hub) JoinedRooms(p Peer) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.joined[p.ConnID()]))
	for id := range h.joined[p.ConnID()] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) RoomCount() int {
	return h.registry.Count()
}

// Shutdown closes every connected client.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]Peer, 0, len(h.clients))
	for _, p := range h.clients {
		clients = append(clients, p)
	}
	h.mu.Unlock()

	for _, p := range clients {
		p.Close()
	}
}
