package main

import (
	"sync"
)

// Room is the transport-level subscriber set of one room id.
type Room struct {
	id    string
	mu    sync.RWMutex
	peers map[string]Peer
}

func NewRoom(id string) *Room {
	return &Room{
		id:    id,
		peers: make(map[string]Peer),
	}
}

func (r *Room) Add(p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[p.ConnID()] = p
}

func (r *Room) Remove(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, connID)
}

func (r *Room) Has(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.peers[connID]
	return ok
}

func (r *Room) ClientCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Peers returns a snapshot of the current subscribers.
func (r *Room) Peers() []Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// Broadcast queues msg for every subscriber except senderConnID and returns
// how many accepted it. Full or closed subscribers are skipped.
func (r *Room) Broadcast(senderConnID string, msg outbound) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	delivered := 0
	for id, p := range r.peers {
		if id == senderConnID {
			continue
		}
		if err := p.Enqueue(msg); err != nil {
			deliveriesDropped.Inc()
			continue
		}
		delivered++
	}
	return delivered
}
