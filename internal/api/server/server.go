// Package server provides HTTP server lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/remiblancher/pqhybrid/internal/api/router"
	"github.com/remiblancher/pqhybrid/internal/api/service"
	"github.com/remiblancher/pqhybrid/internal/config"
)

// Server represents the HTTP server.
type Server struct {
	cfg     config.ServerConfig
	version string
	keys    *service.KeyService
	logger  *slog.Logger
	srv     *http.Server
}

// New creates a new Server serving keys.
func New(cfg config.ServerConfig, version string, keys *service.KeyService, logger *slog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		version: version,
		keys:    keys,
		logger:  logger,
	}
	s.srv = &http.Server{
		Addr: cfg.Address(),
		Handler: router.New(&router.Config{
			Version: version,
			Keys:    keys,
			Logger:  logger,
		}),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start listens on the configured address and blocks until SIGINT or
// SIGTERM, then shuts down gracefully.
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address(), err)
	}
	s.printStartupInfo(ln.Addr().String())
	return s.Run(ctx, ln)
}

// Run serves on ln until ctx is done. Shutdown waits for in-flight requests
// up to the configured shutdown timeout, then releases every stored key.
func (s *Server) Run(ctx context.Context, ln net.Listener) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errChan:
		s.keys.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		s.logger.Info("shutting down", "timeout", s.cfg.ShutdownTimeout)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	err := s.srv.Shutdown(shutdownCtx)
	s.keys.Close()
	if err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.logger.Info("server stopped gracefully")
	return nil
}

// printStartupInfo prints server startup information.
func (s *Server) printStartupInfo(addr string) {
	fmt.Println()
	fmt.Println("pqhybrid API Server")
	fmt.Println("===================")
	fmt.Printf("  Version:  %s\n", s.version)
	fmt.Printf("  Address:  http://%s\n", addr)
	fmt.Println()
	fmt.Println("Endpoints:")
	fmt.Println("  GET    /health                          - Health check")
	fmt.Println("  GET    /metrics                         - Prometheus metrics")
	fmt.Println("  GET    /api/v1/algorithms               - Supported algorithms")
	fmt.Println("  POST   /api/v1/keys                     - Generate a key")
	fmt.Println("  POST   /api/v1/keys/import              - Import a PEM or DER key")
	fmt.Println("  GET    /api/v1/keys[/{id}]              - List or describe keys")
	fmt.Println("  DELETE /api/v1/keys/{id}                - Release a key")
	fmt.Println("  POST   /api/v1/keys/{id}/sign|verify    - Hybrid signatures")
	fmt.Println("  POST   /api/v1/keys/{id}/encapsulate    - Hybrid KEM")
	fmt.Println("  POST   /api/v1/keys/{id}/decapsulate    - Hybrid KEM")
	fmt.Println("  POST   /api/v1/keys/{id}/cose/sign      - COSE_Sign1")
	fmt.Println("  POST   /api/v1/keys/{id}/cose/verify    - COSE_Sign1")
	fmt.Println()
	fmt.Println("Use Ctrl+C to stop")
	fmt.Println()
}
