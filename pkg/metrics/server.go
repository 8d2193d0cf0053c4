package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/rclong1221/sploot-media-clustering/pkg/log"
)

// Server exposes the prometheus registry on its own listener, gated by the
// metrics settings so worker-only deployments can scrape without the API.
type Server struct {
	srv *http.Server
}

// NewServer builds the metrics endpoint on addr.
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in a background goroutine until Stop.
func (s *Server) Start() {
	logger := log.WithComponent("metrics")
	go func() {
		logger.Info().Str("addr", s.srv.Addr).Msg("metrics endpoint listening")
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics endpoint failed")
		}
	}()
}

// Stop shuts the listener down within the given grace period.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
