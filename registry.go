package main

import (
	"sync"
	"time"
)

// RoomState is the registry's record of one active room.
type RoomState struct {
	OriginAddr   string
	CreatedAt    time.Time
	LastActivity time.Time
	Location     *Location
}

// Registry owns every RoomState. All methods serialize on one mutex.
type Registry struct {
	idleTimeout    time.Duration
	maxAge         time.Duration
	nearbyRadiusKm float64

	mu    sync.Mutex
	rooms map[string]*RoomState
	now   func() time.Time
}

func NewRegistry(cfg *Config) *Registry {
	return &Registry{
		idleTimeout:    cfg.RoomIdleTimeout,
		maxAge:         cfg.RoomMaxAge,
		nearbyRadiusKm: cfg.NearbyRadiusKm,
		rooms:          make(map[string]*RoomState),
		now:            time.Now,
	}
}

// Touch creates the room on first sight or refreshes its activity. A non-nil
// loc always replaces the stored location (last writer wins).
func (r *Registry) Touch(roomID, originAddr string, loc *Location) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	room, ok := r.rooms[roomID]
	if !ok {
		room = &RoomState{
			OriginAddr:   originAddr,
			CreatedAt:    now,
			LastActivity: now,
		}
		r.rooms[roomID] = room
		roomsActive.Set(float64(len(r.rooms)))
	} else {
		room.touch(now)
	}
	if loc != nil {
		l := *loc
		room.Location = &l
	}
}

// RecordActivity bumps LastActivity for a known room. Unknown ids are ignored.
func (r *Registry) RecordActivity(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room, ok := r.rooms[roomID]; ok {
		room.touch(r.now())
	}
}

func (rs *RoomState) touch(now time.Time) {
	if now.Before(rs.CreatedAt) {
		now = rs.CreatedAt
	}
	rs.LastActivity = now
}

// FindNearby drops rooms older than the absolute age limit, then returns the
// ids whose origin address equals originAddr or whose location lies within
// the nearby radius of loc.
func (r *Registry) FindNearby(originAddr string, loc *Location) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var ids []string
	for id, room := range r.rooms {
		if now.Sub(room.CreatedAt) > r.maxAge {
			delete(r.rooms, id)
			roomsEvicted.WithLabelValues("max_age").Inc()
			continue
		}

		if room.OriginAddr == originAddr {
			ids = append(ids, id)
			continue
		}
		if loc != nil && room.Location != nil && Distance(*loc, *room.Location) <= r.nearbyRadiusKm {
			ids = append(ids, id)
		}
	}
	roomsActive.Set(float64(len(r.rooms)))
	return ids
}

// EvictExpired removes every room idle for longer than the idle timeout and
// returns their ids.
func (r *Registry) EvictExpired(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	for id, room := range r.rooms {
		if now.Sub(room.LastActivity) > r.idleTimeout {
			delete(r.rooms, id)
			evicted = append(evicted, id)
		}
	}
	if len(evicted) > 0 {
		roomsEvicted.WithLabelValues("idle").Add(float64(len(evicted)))
		roomsActive.Set(float64(len(r.rooms)))
	}
	return evicted
}

// Get returns a copy of the room's state.
func (r *Registry) Get(roomID string) (RoomState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[roomID]
	if !ok {
		return RoomState{}, false
	}
	cp := *room
	if room.Location != nil {
		l := *room.Location
		cp.Location = &l
	}
	return cp, true
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// Now reports the registry clock.
func (r *Registry) Now() time.Time {
	return r.now()
}
