package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically evicts idle rooms and kicks their subscribers out.
type Sweeper struct {
	registry *Registry
	hub      *Hub
	interval time.Duration
	log      zerolog.Logger
}

func NewSweeper(cfg *Config, registry *Registry, hub *Hub, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		registry: registry,
		hub:      hub,
		interval: cfg.SweepInterval,
		log:      log,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(s.registry.Now())
		}
	}
}

// Sweep runs one eviction pass at now and returns the evicted room ids.
func (s *Sweeper) Sweep(now time.Time) []string {
	evicted := s.registry.EvictExpired(now)
	for _, id := range evicted {
		if err := s.closeRoom(id); err != nil {
			s.log.Warn().Err(err).Str("room", id).Msg("room close incomplete")
			continue
		}
		s.log.Info().Str("room", id).Msg("room cleaned up (idle timeout)")
	}
	return evicted
}

func (s *Sweeper) closeRoom(id string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic closing room: %v", r)
		}
	}()
	return s.hub.CloseRoom(id, roomClosedReason)
}
