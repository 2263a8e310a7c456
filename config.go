package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr              string        `yaml:"addr"`
	Env               string        `yaml:"env"`
	LogLevel          string        `yaml:"logLevel"`
	TLSCert           string        `yaml:"tlsCert"`
	TLSKey            string        `yaml:"tlsKey"`
	MaxRooms          int           `yaml:"maxRooms"`
	MaxClientsPerRoom int           `yaml:"maxClientsPerRoom"`
	MaxMessageSize    int64         `yaml:"maxMessageSize"`
	RoomIdleTimeout   time.Duration `yaml:"roomIdleTimeout"`
	RoomMaxAge        time.Duration `yaml:"roomMaxAge"`
	SweepInterval     time.Duration `yaml:"sweepInterval"`
	NearbyRadiusKm    float64       `yaml:"nearbyRadiusKm"`
	RateLimitPerIP    float64       `yaml:"rateLimitPerIP"`
	AllowedOrigins    []string      `yaml:"allowedOrigins"`
	MetricsAddr       string        `yaml:"metricsAddr"`
}

func DefaultConfig() *Config {
	return &Config{
		Addr:              ":3000",
		Env:               "production",
		LogLevel:          "info",
		MaxRooms:          1000,
		MaxClientsPerRoom: 20,
		MaxMessageSize:    100_000_000,
		RoomIdleTimeout:   30 * time.Minute,
		RoomMaxAge:        24 * time.Hour,
		SweepInterval:     60 * time.Second,
		NearbyRadiusKm:    0.5,
		RateLimitPerIP:    20,
		AllowedOrigins:    []string{"*"},
	}
}

// LoadConfig layers defaults, the optional YAML file named by RELAY_CONFIG,
// and RELAY_* environment variables (.env files included), in that order.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()
	if path := os.Getenv("RELAY_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Addr = envStr("RELAY_ADDR", c.Addr)
	c.Env = envStr("RELAY_ENV", c.Env)
	c.LogLevel = envStr("RELAY_LOG_LEVEL", c.LogLevel)
	c.TLSCert = envStr("RELAY_TLS_CERT", c.TLSCert)
	c.TLSKey = envStr("RELAY_TLS_KEY", c.TLSKey)
	c.MaxRooms = envInt("RELAY_MAX_ROOMS", c.MaxRooms)
	c.MaxClientsPerRoom = envInt("RELAY_MAX_CLIENTS_PER_ROOM", c.MaxClientsPerRoom)
	c.MaxMessageSize = int64(envInt("RELAY_MAX_MESSAGE_SIZE", int(c.MaxMessageSize)))
	c.RoomIdleTimeout = envSeconds("RELAY_ROOM_IDLE_TIMEOUT", c.RoomIdleTimeout)
	c.RoomMaxAge = envSeconds("RELAY_ROOM_MAX_AGE", c.RoomMaxAge)
	c.SweepInterval = envSeconds("RELAY_SWEEP_INTERVAL", c.SweepInterval)
	c.NearbyRadiusKm = envFloat("RELAY_NEARBY_RADIUS_KM", c.NearbyRadiusKm)
	c.RateLimitPerIP = envFloat("RELAY_RATE_LIMIT_PER_IP", c.RateLimitPerIP)
	c.MetricsAddr = envStr("RELAY_METRICS_ADDR", c.MetricsAddr)

	if v := os.Getenv("RELAY_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}
}

func (c *Config) validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.MaxRooms <= 0 || c.MaxClientsPerRoom <= 0 {
		return errors.New("maxRooms and maxClientsPerRoom must be positive")
	}
	if c.MaxMessageSize <= 0 {
		return errors.New("maxMessageSize must be positive")
	}
	if c.RoomIdleTimeout <= 0 || c.RoomMaxAge <= 0 || c.SweepInterval <= 0 {
		return errors.New("room windows and sweep interval must be positive")
	}
	if c.NearbyRadiusKm < 0 {
		return errors.New("nearbyRadiusKm must not be negative")
	}
	if c.RateLimitPerIP <= 0 {
		return errors.New("rateLimitPerIP must be positive")
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("tlsCert and tlsKey must be set together")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// envSeconds reads a whole number of seconds.
func envSeconds(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}
