package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// ShutdownTimeout bounds graceful shutdown
const ShutdownTimeout = 30 * time.Second

// HTTPServer runs the router on a TCP port
type HTTPServer struct {
	server *http.Server
	logger *slog.Logger
}

// NewHTTPServer creates a new HTTP server for handler on port
func NewHTTPServer(port int, handler http.Handler, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// Start listens in the background. The returned channel receives the
// listener error, if any, and is closed when serving stops.
func (s *HTTPServer) Start() <-chan error {
	errs := make(chan error, 1)
	s.logger.Info("HTTP server started", "address", s.server.Addr)

	go func() {
		defer close(errs)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error", "error", err)
			errs <- err
		}
	}()

	return errs
}

// Stop drains in-flight requests, giving up after ShutdownTimeout
func (s *HTTPServer) Stop(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, ShutdownTimeout)
	defer cancel()

	return s.server.Shutdown(ctx)
}
