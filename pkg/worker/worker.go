package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rclong1221/sploot-media-clustering/pkg/broker"
	"github.com/rclong1221/sploot-media-clustering/pkg/cache"
	"github.com/rclong1221/sploot-media-clustering/pkg/log"
	"github.com/rclong1221/sploot-media-clustering/pkg/metrics"
	"github.com/rclong1221/sploot-media-clustering/pkg/strategy"
	"github.com/rclong1221/sploot-media-clustering/pkg/types"
)

// State is the worker lifecycle state.
type State string

const (
	StateStarting   State = "starting"
	StateConsuming  State = "consuming"
	StateReclaiming State = "reclaiming"
	StateDraining   State = "draining"
	StateStopped    State = "stopped"
	StateFailed     State = "failed"
)

// Dead-letter reasons.
const (
	ReasonDecode      = "decode"
	ReasonMaxAttempts = "max_attempts"
)

// ErrFatal marks an unrecoverable broker condition. The worker exits and
// relies on a supervisor restart.
var ErrFatal = errors.New("worker fatal")

// Hard cap on consecutive broker failures before the worker gives up.
const maxConsecutiveFailures = 10

// Backoff bounds while the broker is unavailable.
const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

// Config tunes one worker instance.
type Config struct {
	// Consumer is this worker's unique name within the shared group.
	Consumer string

	// ReadCount bounds one blocking group read.
	ReadCount int64

	// ReadBlock is the blocking-read timeout. An empty read is not an
	// error; it triggers a reclaim pass.
	ReadBlock time.Duration

	// RetryIdle is the idle threshold before a pending message is
	// claimed away from its silent owner.
	RetryIdle time.Duration

	// MaxAttempts bounds deliveries before dead-lettering.
	MaxAttempts int

	// MaxPending is the backpressure threshold: above it the worker
	// skips new-message reads and only reclaims.
	MaxPending int64

	// ReclaimEvery forces a reclaim pass every N ticks even when reads
	// keep returning messages.
	ReclaimEvery int

	// CacheTTL is applied to every descriptor write.
	CacheTTL time.Duration
}

// Worker is a long-lived consumer: it reads job batches, dispatches to the
// strategy, writes the cache, acknowledges, and periodically reclaims idle
// messages from dead consumers. Single-threaded internally; parallelism
// comes from running more instances in the same group.
type Worker struct {
	stream *broker.StreamClient
	store  cache.Store
	strat  strategy.Strategy
	cfg    Config
	logger zerolog.Logger

	state       atomic.Value
	claimCursor string
	ticks       int
}

// New creates a worker. The consumer name must be unique within the group.
func New(stream *broker.StreamClient, store cache.Store, strat strategy.Strategy, cfg Config) *Worker {
	if cfg.ReclaimEvery <= 0 {
		cfg.ReclaimEvery = 10
	}
	w := &Worker{
		stream:      stream,
		store:       store,
		strat:       strat,
		cfg:         cfg,
		logger:      log.WithConsumer(cfg.Consumer),
		claimCursor: "0-0",
	}
	w.state.Store(StateStarting)
	return w
}

// State returns the current lifecycle state.
func (w *Worker) State() State {
	return w.state.Load().(State)
}

// Run drives the consume/reclaim loop until ctx is cancelled. Message-level
// errors never terminate the loop; only repeated broker unavailability does,
// and then with ErrFatal so the process exits non-zero for the supervisor.
func (w *Worker) Run(ctx context.Context) error {
	w.state.Store(StateStarting)

	if err := w.stream.EnsureGroup(ctx); err != nil {
		w.state.Store(StateFailed)
		return fmt.Errorf("%w: %v", ErrFatal, err)
	}

	w.logger.Info().
		Str("stream", w.stream.Stream()).
		Str("group", w.stream.Group()).
		Msg("worker consuming")

	failures := 0
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			return w.drain()
		}

		err := w.tick(ctx)
		if ctx.Err() != nil {
			return w.drain()
		}
		if err != nil {
			failures++
			if failures >= maxConsecutiveFailures {
				w.state.Store(StateFailed)
				return fmt.Errorf("%w: broker unreachable after %d attempts: %v", ErrFatal, failures, err)
			}
			w.logger.Warn().Err(err).Dur("backoff", backoff).Msg("broker error, backing off")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return w.drain()
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}
		failures = 0
		backoff = initialBackoff
	}
}

func (w *Worker) drain() error {
	w.state.Store(StateDraining)
	w.logger.Info().Msg("worker draining")
	w.state.Store(StateStopped)
	return nil
}

// tick is one pass of the per-tick protocol: an optional new-message read
// (skipped under backpressure), then a reclaim pass when due.
func (w *Worker) tick(ctx context.Context) error {
	w.ticks++

	pending, err := w.stream.PendingCount(ctx, w.cfg.Consumer)
	if err != nil {
		return err
	}
	metrics.WorkerPending.WithLabelValues(w.cfg.Consumer).Set(float64(pending))

	var messages []redis.XMessage
	overloaded := w.cfg.MaxPending > 0 && pending > w.cfg.MaxPending
	if overloaded {
		w.logger.Warn().
			Int64("pending", pending).
			Int64("max_pending", w.cfg.MaxPending).
			Msg("backpressure: skipping new-message read")
	} else {
		w.state.Store(StateConsuming)
		messages, err = w.stream.ReadGroup(ctx, w.cfg.Consumer, w.cfg.ReadCount, w.cfg.ReadBlock, broker.CursorNew)
		if err != nil {
			return err
		}
		for _, msg := range messages {
			if ctx.Err() != nil {
				return nil
			}
			w.handle(ctx, msg, 1)
		}
	}

	if overloaded || len(messages) == 0 || w.ticks%w.cfg.ReclaimEvery == 0 {
		return w.reclaim(ctx)
	}
	return nil
}

// reclaim claims messages idle past the retry threshold and either retries
// or dead-letters them based on the broker's delivery counter.
func (w *Worker) reclaim(ctx context.Context) error {
	w.state.Store(StateReclaiming)

	claimed, next, err := w.stream.ClaimIdle(ctx, w.cfg.Consumer, w.cfg.RetryIdle, w.claimCursor, w.cfg.ReadCount)
	if err != nil {
		return err
	}
	w.claimCursor = next

	for _, msg := range claimed {
		if ctx.Err() != nil {
			return nil
		}
		metrics.JobsReclaimed.Inc()

		deliveries, err := w.stream.DeliveryCount(ctx, msg.ID)
		if err != nil {
			w.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("pending lookup failed, leaving message for next pass")
			continue
		}
		if deliveries >= int64(w.cfg.MaxAttempts) {
			w.deadLetter(ctx, msg, ReasonMaxAttempts, int(deliveries))
			continue
		}
		w.handle(ctx, msg, deliveries)
	}
	return nil
}

// handle processes one message: decode, strategy, cache write, ack. Decode
// failures dead-letter immediately; transient write failures leave the
// message pending for the reclaim path. The Put-then-Ack order is what
// makes delivery at-least-once with idempotent overwrite.
func (w *Worker) handle(ctx context.Context, msg redis.XMessage, attempts int64) {
	started := time.Now()

	job, err := types.JobFromStreamFields(msg.Values)
	if err != nil {
		w.logger.Error().Err(err).Str("message_id", msg.ID).Msg("job decode failed")
		w.deadLetter(ctx, msg, ReasonDecode, int(attempts))
		return
	}

	logger := w.logger.With().
		Str("pet_id", job.PetID).
		Str("job_id", job.JobID).
		Str("message_id", msg.ID).
		Logger()

	reason := job.Reason
	if job.Force {
		reason = "forced"
	}

	descriptor := w.strat.Cluster(job.PetID, job.Payload)

	if err := w.store.Put(ctx, descriptor, w.cfg.CacheTTL); err != nil {
		metrics.JobsProcessed.WithLabelValues("retry").Inc()
		logger.Warn().Err(err).Msg("cache write failed, leaving message pending")
		return
	}

	if err := w.stream.Ack(ctx, msg.ID); err != nil {
		// The descriptor is committed; the replay after reclaim will
		// overwrite it with identical bytes and ack then.
		metrics.JobsProcessed.WithLabelValues("retry").Inc()
		logger.Warn().Err(err).Msg("ack failed after cache write")
		return
	}

	metrics.JobsProcessed.WithLabelValues("ok").Inc()
	metrics.JobProcessingDuration.Observe(time.Since(started).Seconds())
	logger.Info().
		Int("clusters", len(descriptor.Clusters)).
		Str("reason", reason).
		Dur("elapsed", time.Since(started)).
		Msg("cluster state updated")
}

func (w *Worker) deadLetter(ctx context.Context, msg redis.XMessage, reason string, attempts int) {
	if err := w.stream.DeadLetter(ctx, msg, reason, attempts); err != nil {
		// Leave it pending; a later reclaim retries the dead-letter.
		w.logger.Error().Err(err).Str("message_id", msg.ID).Msg("dead-letter failed")
		return
	}
	metrics.JobsDeadLettered.WithLabelValues(reason).Inc()
	metrics.JobsProcessed.WithLabelValues("dead_letter").Inc()
}

// Pool runs N workers sharing one consumer group, each with a unique
// consumer name derived from the configured base.
type Pool struct {
	workers []*Worker
	logger  zerolog.Logger
}

// NewPool builds count workers from the base config.
func NewPool(stream *broker.StreamClient, store cache.Store, strat strategy.Strategy, base Config, count int) *Pool {
	if count <= 0 {
		count = 1
	}
	pool := &Pool{logger: log.WithComponent("worker-pool")}
	for i := 0; i < count; i++ {
		cfg := base
		cfg.Consumer = fmt.Sprintf("%s-%d", base.Consumer, i+1)
		pool.workers = append(pool.workers, New(stream, store, strat, cfg))
	}
	return pool
}

// Workers exposes the pool members, mainly for tests and state probes.
func (p *Pool) Workers() []*Worker { return p.workers }

// Run starts every worker and blocks until all exit. The first fatal error
// is returned; cancellation of ctx drains the pool cleanly.
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	errCh := make(chan error, len(p.workers))

	for _, w := range p.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				errCh <- err
			}
		}(w)
	}

	wg.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			return err
		}
	}
	p.logger.Info().Int("workers", len(p.workers)).Msg("worker pool stopped")
	return nil
}
