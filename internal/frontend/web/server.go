// Package web serves the sheet HTTP API.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/aionia-sheet/internal/config"
)

// Server listens for HTTP requests and dispatches them to a handler.
type Server struct {
	cfg     config.ServerConfig
	handler http.Handler
	logger  *zap.Logger

	mu       sync.Mutex
	srv      *http.Server
	listener net.Listener
	running  bool
}

// NewServer creates an HTTP server with the configured timeouts.
//
// Precondition: handler and logger must be non-nil.
// Postcondition: Returns a Server ready to be started with ListenAndServe.
func NewServer(cfg config.ServerConfig, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, handler: handler, logger: logger}
}

// ListenAndServe binds the configured address and serves until Stop is
// called. This method blocks.
//
// Precondition: The server must not already be running.
// Postcondition: Returns nil after a graceful Stop.
func (s *Server) ListenAndServe() error {
	start := time.Now()

	listener, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		ErrorLog:          zap.NewStdLog(s.logger.Named("http")),
	}

	s.mu.Lock()
	s.srv = srv
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.logger.Info("http server listening",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("startup", time.Since(start)),
	)

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

// Stop stops accepting requests and waits for in-flight requests until ctx
// expires.
//
// Postcondition: Safe to call when not running.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	running := s.running
	s.running = false
	s.mu.Unlock()

	if !running || srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// Addr returns the actual listening address, or empty string if not yet listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// IsRunning returns whether the server is currently accepting requests.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
