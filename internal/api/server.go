package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/net/netutil"
)

// Server runs the HTTP API with a connection-limited listener.
type Server struct {
	log      zerolog.Logger
	addr     string
	maxConns int
	handler  http.Handler
}

func NewServer(log zerolog.Logger, addr string, maxConns int, handler http.Handler) *Server {
	return &Server{
		log:      log.With().Str("module", "server").Logger(),
		addr:     addr,
		maxConns: maxConns,
		handler:  handler,
	}
}

// ListenAndServe blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", s.addr)
	}
	listener = netutil.LimitListener(listener, s.maxConns)

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()

	s.log.Info().Str("addr", s.addr).Msg("Listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return errors.Wrap(err, "server error")
	}
}
