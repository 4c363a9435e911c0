package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// StartServices starts the background consumers the routes depend on. They
// stop when ctx is canceled.
func (s *Server) StartServices(ctx context.Context) error {
	if err := s.deps.Relay.Start(ctx); err != nil {
		return fmt.Errorf("failed to start broadcast relay: %w", err)
	}
	return nil
}

// Start serves HTTP on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	slog.Info("Server listening", "addr", addr, "env", s.deps.Config.Env, "store", s.deps.Config.StoreDriver)
	if err := s.E.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server stopped: %w", err)
	}
	return nil
}

// Shutdown ends live chat sessions, then stops accepting requests and waits
// for in-flight ones until ctx expires. Hijacked websocket connections are
// not tracked by the HTTP server, so sessions are closed first.
func (s *Server) Shutdown(ctx context.Context) error {
	s.deps.Sessions.Close()
	if err := s.E.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
