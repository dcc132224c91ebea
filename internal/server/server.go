package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Server manages the HTTP server lifecycle.
//
// It wraps an http.Server with configuration and provides methods for
// starting, stopping, and graceful shutdown.
type Server struct {
	config *Config
	server *http.Server
	logger *slog.Logger
}

// New creates a new server instance.
//
// Parameters:
//   - config: server configuration (timeouts, port, size limits)
//   - logger: structured logger instance
//
// Returns a new Server instance.
func New(config *Config, logger *slog.Logger) *Server {
	return &Server{
		config: config,
		server: &http.Server{
			Addr:              ":" + config.Port,
			ReadTimeout:       config.ReadTimeout,
			ReadHeaderTimeout: config.ReadTimeout,
			WriteTimeout:      config.WriteTimeout,
			IdleTimeout:       config.IdleTimeout,
			MaxHeaderBytes:    config.MaxHeaderBytes,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		logger: logger,
	}
}

// RegisterHandler sets the HTTP handler for the server.
//
// This should be called before starting the server.
//
// Parameters:
//   - handler: the HTTP handler to register
func (s *Server) RegisterHandler(handler http.Handler) {
	s.server.Handler = handler
}

// Serve accepts connections on ln until the server is shut down.
//
// Returns nil after a graceful shutdown, or the error that stopped the
// server.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Debug("Starting HTTP server", "addr", ln.Addr().String())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server with a timeout.
//
// It waits for active connections to finish before shutting down, up to
// the specified timeout duration.
//
// Parameters:
//   - ctx: context with timeout for shutdown
//
// Returns an error if the shutdown fails or times out.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Debug("Shutting down server")
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Server forced to shutdown", "error", err)
		return err
	}
	s.logger.Debug("Server stopped gracefully")
	return nil
}

// Run serves on ln until ctx is cancelled or the server fails, then shuts
// down gracefully.
//
// This method:
//  1. Serves in a background goroutine
//  2. Waits for ctx to be done or for the server to fail
//  3. Shuts down, letting in-flight requests finish within timeout
//  4. Calls the cleanup function after the server has stopped (if provided)
//
// Parameters:
//   - ctx: cancelled to request shutdown
//   - ln: the listener to serve on
//   - timeout: maximum time to wait for graceful shutdown
//   - cleanup: optional function to call once requests have drained (can be nil)
//
// Returns the serve or shutdown error, nil on a clean stop.
func (s *Server) Run(ctx context.Context, ln net.Listener, timeout time.Duration, cleanup func()) error {
	if cleanup != nil {
		defer cleanup()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Debug("Shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

// GracefulShutdown listens on the configured port and serves until SIGINT
// or SIGTERM, then shuts down within timeout.
//
// This is a blocking call that runs until the server is shut down.
//
// Parameters:
//   - timeout: maximum time to wait for graceful shutdown
//   - cleanup: optional function to call after shutdown (can be nil)
//
// Returns an error if the port cannot be bound or the server fails.
func (s *Server) GracefulShutdown(timeout time.Duration, cleanup func()) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return err
	}
	return s.Run(ctx, ln, timeout, cleanup)
}
