package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type Server struct {
	cfg        *Config
	hub        *Hub
	log        zerolog.Logger
	limiter    *RateLimiter
	upgrader   websocket.Upgrader
	router     chi.Router
	srv        *http.Server
	metricsSrv *http.Server
}

func NewServer(cfg *Config, hub *Hub, log zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		hub:     hub,
		log:     log,
		limiter: NewRateLimiter(cfg.RateLimitPerIP),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  65536,
		WriteBufferSize: 65536,
		CheckOrigin:     s.checkOrigin,
	}

	r := chi.NewRouter()
	r.Use(requestMetrics)
	r.Use(chimw.RequestID)
	r.Use(requestLogger(log))
	r.Use(chimw.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.With(s.limiter.Middleware).Get("/ws", s.handleWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
		r.Get("/rooms/new", s.handleNewRoom)
	})

	if cfg.MetricsAddr == "" {
		r.Handle("/metrics", promhttp.Handler())
	} else {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		s.metricsSrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	s.router = r
	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      r,
		ReadTimeout:  120 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Limiter exposes the upgrade limiter so its cleanup loop can be started.
func (s *Server) Limiter() *RateLimiter {
	return s.limiter
}

func (s *Server) ListenAndServe() error {
	if s.metricsSrv != nil {
		go func() {
			s.log.Info().Str("addr", s.metricsSrv.Addr).Msg("metrics listening")
			if err := s.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	var err error
	if s.cfg.TLSCert != "" && s.cfg.TLSKey != "" {
		s.srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS13,
		}
		s.log.Info().Str("cert", s.cfg.TLSCert).Msg("TLS enabled")
		err = s.srv.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
	} else {
		s.log.Info().Msg("TLS disabled (no cert/key configured)")
		err = s.srv.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Error().Err(err).Msg("shutdown error")
	}
	if s.metricsSrv != nil {
		if err := s.metricsSrv.Shutdown(ctx); err != nil {
			s.log.Error().Err(err).Msg("metrics shutdown error")
		}
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(s.cfg.AllowedOrigins, "*") {
		return true
	}
	return slices.Contains(s.cfg.AllowedOrigins, origin)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"rooms":   s.hub.RoomCount(),
		"clients": s.hub.ClientCount(),
	})
}

func (s *Server) handleNewRoom(w http.ResponseWriter, r *http.Request) {
	var id string
	switch r.URL.Query().Get("style") {
	case "", "words":
		id = NewWordRoomID()
	case "uuid":
		id = NewUUIDRoomID()
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "style must be words or uuid"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"roomId": id})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	addr := clientAddr(r)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("addr", addr).Msg("upgrade failed")
		return
	}

	// Frames between the soft limit and twice it are drained and rejected
	// in ReadPump; anything larger kills the connection.
	conn.SetReadLimit(2 * frameLimit(s.cfg.MaxMessageSize))

	client := NewClient(s.hub, conn, addr, s.cfg.MaxMessageSize, s.log)
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// clientAddr is the peer address used for same-network proximity: the first
// X-Forwarded-For entry, then X-Real-IP, then the transport peer host.
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
