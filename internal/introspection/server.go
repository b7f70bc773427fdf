package introspection

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Config controls the listening port and allowed WebSocket origins.
type Config struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Server is the read-only stats/stream HTTP server. It exposes no
// endpoint capable of mutating runtime state.
type Server struct {
	cfg      Config
	provider Provider
	hub      *Hub
	http     *http.Server
	log      *slog.Logger
}

// NewServer constructs a Server reporting statistics pulled from provider.
func NewServer(cfg Config, provider Provider, log *slog.Logger) *Server {
	if cfg.Port <= 0 {
		cfg.Port = 8090
	}
	log = log.With("component", "introspection-server")
	hub := NewHub(log)

	s := &Server{cfg: cfg, provider: provider, hub: hub, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/stream", s.handleStream)

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start runs the hub loop and a periodic snapshot pusher, then blocks
// serving HTTP until Stop is called.
func (s *Server) Start() error {
	go s.hub.Run()
	go s.pushLoop()

	s.log.Info("introspection server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("introspection server: %w", err)
	}
	return nil
}

// Stop gracefully shuts the HTTP server down.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.http.Shutdown(ctx)
}

func (s *Server) pushLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		s.hub.BroadcastSnapshot(buildSnapshot(s.provider))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(buildSnapshot(s.provider)); err != nil {
		s.log.Error("encode stats failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(req *http.Request) bool {
			return s.originAllowed(req.Header.Get("Origin"))
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}
	newClient(s.hub, conn)
}

// originAllowed reports whether origin is in the configured allow-list. An
// empty allow-list permits every origin, matching a purely local/dev setup.
func (s *Server) originAllowed(origin string) bool {
	if len(s.cfg.AllowedOrigins) == 0 || origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
