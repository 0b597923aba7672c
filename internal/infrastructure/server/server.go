package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eslsoft/lexloop/internal/infrastructure/config"
)

// Server wraps the HTTP listener with graceful shutdown.
type Server struct {
	httpServer *http.Server
	logger     *logrus.Logger
}

// NewServer builds the HTTP server around the given handler.
func NewServer(cfg *config.Config, handler http.Handler, logger *logrus.Logger) *Server {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.HTTPPort),
		Handler:           RequestLogger(handler, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return &Server{httpServer: httpServer, logger: logger}
}

// Start serves until the listener closes. ErrServerClosed from a graceful
// shutdown is not an error.
func (s *Server) Start() error {
	s.logger.Infof("HTTP server starting on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to serve HTTP: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Errorf("Failed to shutdown HTTP server: %v", err)
		return err
	}
	s.logger.Info("Server shutdown complete")
	return nil
}
