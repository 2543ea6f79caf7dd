package httpserver

import (
	"context"
	"time"
)

// ShutdownTimeout controls how long to wait for graceful shutdowns when the
// caller does not configure one.
var ShutdownTimeout = 10 * time.Second

// ShutdownWithin stops the server, waiting at most timeout for in-flight requests.
func (s *Server) ShutdownWithin(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.Shutdown(ctx)
}
