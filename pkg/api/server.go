package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/rclong1221/sploot-media-clustering/pkg/broker"
	"github.com/rclong1221/sploot-media-clustering/pkg/cache"
	"github.com/rclong1221/sploot-media-clustering/pkg/cluster"
	"github.com/rclong1221/sploot-media-clustering/pkg/log"
	"github.com/rclong1221/sploot-media-clustering/pkg/metrics"
	"github.com/rclong1221/sploot-media-clustering/pkg/types"
)

// TokenHeader carries the shared secret on every internal request.
const TokenHeader = "X-Internal-Token"

// brokerProbeTimeout bounds the ping and group lookup of the broker health
// endpoint.
const brokerProbeTimeout = 2 * time.Second

// Config holds the HTTP surface configuration.
type Config struct {
	ListenAddr     string
	InternalToken  string
	RequestTimeout time.Duration
}

// Server is the token-authenticated internal HTTP surface.
type Server struct {
	service *cluster.Service
	cfg     Config
	srv     *http.Server
	logger  zerolog.Logger
}

// NewServer wires the endpoints over the cluster service.
func NewServer(service *cluster.Service, cfg Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		logger:  log.WithComponent("api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.instrument("healthz", s.handleHealthz))
	mux.HandleFunc("POST /internal/cluster-jobs", s.internal("cluster-jobs", s.handleSubmitJob))
	mux.HandleFunc("GET /internal/pets/{pet_id}/clusters", s.internal("get-clusters", s.handleGetClusters))
	mux.HandleFunc("POST /internal/pets/{pet_id}/invalidate", s.internal("invalidate", s.handleInvalidate))
	mux.HandleFunc("GET /internal/health/redis", s.internal("redis-health", s.handleRedisHealth))

	s.srv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.RequestTimeout,
		WriteTimeout:      cfg.RequestTimeout,
	}
	return s
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start serves until Stop. Returns on listener failure.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.cfg.ListenAddr).Msg("http surface listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop drains in-flight requests within the ctx deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// statusRecorder captures the written status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument wraps a handler with the per-request deadline, the structured
// request log, and prometheus counters.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()

		if s.cfg.RequestTimeout > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
			defer cancel()
			r = r.WithContext(ctx)
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		elapsed := time.Since(started)
		metrics.APIRequestsTotal.WithLabelValues(route, http.StatusText(rec.status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		event := s.logger.Info()
		if rec.status >= http.StatusInternalServerError {
			event = s.logger.Error()
		}
		event.
			Str("route", route).
			Str("method", r.Method).
			Int("status", rec.status).
			Str("pet_id", r.PathValue("pet_id")).
			Dur("latency", elapsed).
			Msg("request handled")
	}
}

// internal wraps an instrumented handler with token authentication. The
// token check runs before any body read, with a constant-time compare, and
// a mismatch yields the fixed 401 body.
func (s *Server) internal(route string, next http.HandlerFunc) http.HandlerFunc {
	return s.instrument(route, func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(TokenHeader)
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.InternalToken)) != 1 {
			metrics.AuthFailures.Inc()
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "invalid internal token"})
			return
		}
		next(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// submitJobRequest is the enqueue body. pet_id is the only required field.
type submitJobRequest struct {
	PetID    string            `json:"pet_id"`
	JobID    string            `json:"job_id,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	Force    bool              `json:"force,omitempty"`
	Payload  types.JobPayload  `json:"payload,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid request body"})
		return
	}
	if req.PetID == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"detail": "pet_id is required"})
		return
	}

	job := types.Job{
		JobID:    req.JobID,
		PetID:    req.PetID,
		Reason:   req.Reason,
		Force:    req.Force,
		Payload:  req.Payload,
		Metadata: req.Metadata,
	}

	if _, _, err := s.service.EnqueueJob(r.Context(), job); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleGetClusters(w http.ResponseWriter, r *http.Request) {
	petID := r.PathValue("pet_id")

	descriptor, err := s.service.GetState(r.Context(), petID)
	if err != nil {
		if errors.Is(err, cache.ErrMissing) {
			writeJSON(w, http.StatusNotFound, map[string]string{"detail": "cluster state not found"})
			return
		}
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, descriptor)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	petID := r.PathValue("pet_id")

	existed, err := s.service.Invalidate(r.Context(), petID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	status := "noop"
	if existed {
		status = "removed"
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": status})
}

func (s *Server) handleRedisHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.service.BrokerHealthy(r.Context(), brokerProbeTimeout); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "redis unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps internal failures to the error policy: broker problems
// become 503, everything else a generic 500 with no internal detail leaked.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, broker.ErrUnavailable) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"detail": "broker unavailable"})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
