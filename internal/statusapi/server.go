package statusapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const shutdownTimeout = 5 * time.Second

// Server exposes the agent's state on a loopback address: current snapshot
// as JSON, a websocket event feed, Prometheus metrics and a health check.
type Server struct {
	logger   *slog.Logger
	addr     string
	snapshot func() any
	hub      *Hub
	metrics  *Metrics
	upgrader websocket.Upgrader
}

func NewServer(logger *slog.Logger, addr string, snapshot func() any, hub *Hub, metrics *Metrics) *Server {
	if logger == nil {
		logger = slog.Default().With("component", "statusapi")
	}

	return &Server{
		logger:   logger,
		addr:     addr,
		snapshot: snapshot,
		hub:      hub,
		metrics:  metrics,
	}
}

// Handler builds the route table. Split from Run so tests can drive it
// through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/ws", s.handleWebSocket)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully. The hub's
// delivery loop lives and dies with the server.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run()

	server := &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.logger.Info("status api listening", "addr", s.addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		s.hub.Close()

		return fmt.Errorf("status api: %w", err)
	}

	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("status api shutdown: %w", err)
	}
	s.logger.Info("status api stopped")

	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snapshot()); err != nil {
		s.logger.Warn("encode status response", "error", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)

		return
	}

	// The new client gets the current snapshot before live events.
	_ = conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
	if err := conn.WriteJSON(s.snapshot()); err != nil {
		s.logger.Debug("websocket initial write failed", "error", err)
		_ = conn.Close()

		return
	}

	s.hub.add(conn)
	defer s.hub.remove(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
