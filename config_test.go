package main

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("RELAY_CONFIG", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RoomIdleTimeout != 1800*time.Second {
		t.Errorf("idle timeout = %v", cfg.RoomIdleTimeout)
	}
	if cfg.RoomMaxAge != 86400*time.Second {
		t.Errorf("max age = %v", cfg.RoomMaxAge)
	}
	if cfg.SweepInterval != 60*time.Second {
		t.Errorf("sweep interval = %v", cfg.SweepInterval)
	}
	if cfg.NearbyRadiusKm != 0.5 {
		t.Errorf("nearby radius = %v", cfg.NearbyRadiusKm)
	}
	if cfg.MaxMessageSize != 100_000_000 {
		t.Errorf("max message size = %d", cfg.MaxMessageSize)
	}
	if cfg.MaxRooms != 1000 || cfg.MaxClientsPerRoom != 20 {
		t.Errorf("room caps = %d, %d", cfg.MaxRooms, cfg.MaxClientsPerRoom)
	}
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("RELAY_CONFIG", "")
	t.Setenv("RELAY_ADDR", ":9999")
	t.Setenv("RELAY_ROOM_IDLE_TIMEOUT", "60")
	t.Setenv("RELAY_NEARBY_RADIUS_KM", "1.25")
	t.Setenv("RELAY_MAX_ROOMS", "50")
	t.Setenv("RELAY_MAX_CLIENTS_PER_ROOM", "4")
	t.Setenv("RELAY_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9999" || cfg.RoomIdleTimeout != time.Minute || cfg.NearbyRadiusKm != 1.25 {
		t.Errorf("env not applied: %+v", cfg)
	}
	if cfg.MaxRooms != 50 || cfg.MaxClientsPerRoom != 4 {
		t.Errorf("room caps = %d, %d", cfg.MaxRooms, cfg.MaxClientsPerRoom)
	}
	if !slices.Equal(cfg.AllowedOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Errorf("origins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	yaml := "addr: \":4000\"\nroomIdleTimeout: 45m\nsweepInterval: 10s\nmaxMessageSize: 2048\n"
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RELAY_CONFIG", path)
	t.Setenv("RELAY_ADDR", ":5000")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":5000" {
		t.Errorf("env should override file, addr = %q", cfg.Addr)
	}
	if cfg.RoomIdleTimeout != 45*time.Minute || cfg.SweepInterval != 10*time.Second || cfg.MaxMessageSize != 2048 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.RoomMaxAge != 24*time.Hour {
		t.Errorf("unset file field should keep default, got %v", cfg.RoomMaxAge)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("RELAY_CONFIG", "")
	t.Setenv("RELAY_MAX_MESSAGE_SIZE", "0")

	if _, err := LoadConfig(); err == nil {
		t.Error("expected validation error for zero max message size")
	}
}

func TestLoadConfig_InvalidRoomCap(t *testing.T) {
	t.Setenv("RELAY_CONFIG", "")
	t.Setenv("RELAY_MAX_CLIENTS_PER_ROOM", "-1")

	if _, err := LoadConfig(); err == nil {
		t.Error("expected validation error for negative client cap")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	t.Setenv("RELAY_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := LoadConfig(); err == nil {
		t.Error("expected error for missing config file")
	}
}
