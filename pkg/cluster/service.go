package cluster

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rclong1221/sploot-media-clustering/pkg/broker"
	"github.com/rclong1221/sploot-media-clustering/pkg/cache"
	"github.com/rclong1221/sploot-media-clustering/pkg/log"
	"github.com/rclong1221/sploot-media-clustering/pkg/metrics"
	"github.com/rclong1221/sploot-media-clustering/pkg/types"
)

// Service is the producer-and-reader side of the pipeline: it enqueues jobs
// onto the stream and serves the cached per-pet state. Workers own the
// consuming side.
type Service struct {
	stream *broker.StreamClient
	store  cache.Store
	rdb    *redis.Client
	logger zerolog.Logger
}

// NewService wires the service over the shared broker pool.
func NewService(stream *broker.StreamClient, store cache.Store, rdb *redis.Client) *Service {
	return &Service{
		stream: stream,
		store:  store,
		rdb:    rdb,
		logger: log.WithComponent("cluster"),
	}
}

// EnsureGroup prepares the stream and consumer group. Called on startup by
// both the HTTP process and the worker pool so a job enqueued before any
// worker exists still lands in the group's backlog.
func (s *Service) EnsureGroup(ctx context.Context) error {
	return s.stream.EnsureGroup(ctx)
}

// EnqueueJob validates, stamps, and appends one job. A missing job id is
// assigned; attempts always start at zero on first append. Returns the
// stamped job together with the broker message id.
func (s *Service) EnqueueJob(ctx context.Context, job types.Job) (types.Job, string, error) {
	if job.PetID == "" {
		return types.Job{}, "", fmt.Errorf("enqueue: pet_id is required")
	}
	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}
	job.Attempts = 0
	if job.EmittedAt.IsZero() {
		job.EmittedAt = time.Now().UTC()
	}
	job.Payload = job.Payload.Normalize()

	fields, err := job.StreamFields()
	if err != nil {
		return types.Job{}, "", fmt.Errorf("enqueue %s: %w", job.JobID, err)
	}

	messageID, err := s.stream.Append(ctx, fields)
	if err != nil {
		return types.Job{}, "", err
	}

	metrics.JobsEnqueued.Inc()
	s.logger.Info().
		Str("pet_id", job.PetID).
		Str("job_id", job.JobID).
		Str("message_id", messageID).
		Str("reason", job.Reason).
		Bool("force", job.Force).
		Msg("cluster job enqueued")

	return job, messageID, nil
}

// GetState reads the cached descriptor for a pet. cache.ErrMissing passes
// through as a first-class outcome.
func (s *Service) GetState(ctx context.Context, petID string) (types.ClusterDescriptor, error) {
	descriptor, err := s.store.Get(ctx, petID)
	if err != nil {
		if err == cache.ErrMissing {
			metrics.CacheMisses.Inc()
		}
		return types.ClusterDescriptor{}, err
	}
	metrics.CacheHits.Inc()
	return descriptor, nil
}

// Invalidate removes the cached descriptor, reporting whether one existed.
func (s *Service) Invalidate(ctx context.Context, petID string) (bool, error) {
	existed, err := s.store.Delete(ctx, petID)
	if err != nil {
		return false, err
	}
	s.logger.Info().
		Str("pet_id", petID).
		Bool("existed", existed).
		Msg("cluster state invalidated")
	return existed, nil
}

// BrokerHealthy probes the broker with a low-timeout ping plus a group
// lookup on the configured stream. Both must succeed.
func (s *Service) BrokerHealthy(ctx context.Context, timeout time.Duration) error {
	if err := broker.Ping(ctx, s.rdb, timeout); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	groups, err := s.stream.GroupInfo(ctx)
	if err != nil {
		return err
	}
	for _, group := range groups {
		if group.Name == s.stream.Group() {
			return nil
		}
	}
	return fmt.Errorf("%w: consumer group %s not found on %s", broker.ErrUnavailable, s.stream.Group(), s.stream.Stream())
}
