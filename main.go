package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}

	logger := newLogger(cfg)

	registry := NewRegistry(cfg)
	hub := NewHub(cfg, registry, logger)
	sweeper := NewSweeper(cfg, registry, hub, logger.With().Str("component", "sweeper").Logger())
	srv := NewServer(cfg, hub, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeper.Run(ctx)
	go srv.Limiter().Run(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down...")
		cancel()
		hub.Shutdown()
		srv.Shutdown()
	}()

	logger.Info().
		Str("addr", cfg.Addr).
		Dur("idle_timeout", cfg.RoomIdleTimeout).
		Dur("max_age", cfg.RoomMaxAge).
		Float64("nearby_km", cfg.NearbyRadiusKm).
		Int64("max_message_size", cfg.MaxMessageSize).
		Msg("relay starting")
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func newLogger(cfg *Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(level).With().Timestamp().Logger()
}
