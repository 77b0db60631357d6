package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hallfield/homehub-core/internal/hub"
	"github.com/hallfield/homehub-core/internal/infrastructure/config"
	"github.com/hallfield/homehub-core/internal/infrastructure/database"
	"github.com/hallfield/homehub-core/internal/infrastructure/logging"
	"github.com/hallfield/homehub-core/internal/session"
)

// Server owns the HTTP listener, upgrades WebSocket clients and runs
// their pumps.
type Server struct {
	cfg        *config.Config
	logger     *logging.Logger
	dispatcher *Dispatcher
	hub        *hub.Hub
	sessions   *session.Registry
	db         *database.DB

	upgrader websocket.Upgrader
	http     *http.Server
}

// New wires the HTTP layer around a dispatcher.
func New(cfg *config.Config, dispatcher *Dispatcher, broadcast *hub.Hub, sessions *session.Registry, db *database.DB, logger *logging.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		logger:     logger,
		dispatcher: dispatcher,
		hub:        broadcast,
		sessions:   sessions,
		db:         db,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser origin policy is the deployment proxy's concern.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Get(cfg.WebSocket.Path, s.handleWebSocket)
	r.Get("/healthz", s.handleHealth)

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
		IdleTimeout:  cfg.GetIdleTimeout(),
	}
	return s
}

// Run serves until ctx is cancelled, then shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("websocket server listening",
			"addr", s.http.Addr, "path", s.cfg.WebSocket.Path)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}

// handleWebSocket upgrades the connection, registers the session and runs
// the pumps until the client disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	// The connection outlives the upgrade request.
	ctx := context.Background()
	sessionID := uuid.NewString()

	if err := s.sessions.Create(ctx, sessionID); err != nil {
		s.logger.Error("session create failed", "error", err)
		conn.Close() //nolint:errcheck // teardown
		return
	}

	client := newClient(sessionID, conn, s.dispatcher, s.cfg.WebSocket, s.logger)
	s.hub.Register(sessionID, client)
	s.logger.Info("client connected",
		"session_id", sessionID, "remote", r.RemoteAddr)

	go client.writePump()
	client.readPump(ctx)

	s.hub.Unregister(sessionID)
	if err := s.sessions.Remove(ctx, sessionID); err != nil {
		s.logger.Warn("session remove failed", "session_id", sessionID, "error", err)
	}
	s.logger.Info("client disconnected", "session_id", sessionID)
}

// handleHealth reports process and store liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.HealthCheck(r.Context()); err != nil {
		http.Error(w, `{"status":"degraded"}`, http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck // best-effort health response
}
