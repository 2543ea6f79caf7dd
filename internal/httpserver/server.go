package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Options tunes the timeouts of the underlying http.Server. Zero values fall
// back to the package defaults.
type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server wraps the http.Server with sensible defaults.
type Server struct {
	inner *http.Server
}

// New constructs a server listening on the provided port.
func New(port int, handler http.Handler, opts Options) *Server {
	return &Server{
		inner: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       orDefault(opts.ReadTimeout, 15*time.Second),
			WriteTimeout:      orDefault(opts.WriteTimeout, 15*time.Second),
			IdleTimeout:       orDefault(opts.IdleTimeout, 60*time.Second),
		},
	}
}

// Start begins serving HTTP traffic. It returns nil after a graceful shutdown.
func (s *Server) Start() error {
	if err := s.inner.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve accepts connections on an existing listener.
func (s *Server) Serve(l net.Listener) error {
	if err := s.inner.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully terminates the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}

func orDefault(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}
