package broker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rclong1221/sploot-media-clustering/pkg/log"
)

// Read cursors for ReadGroup.
const (
	// CursorNew yields only never-delivered messages.
	CursorNew = ">"
	// CursorBacklog yields this consumer's still-pending backlog.
	CursorBacklog = "0"
)

// Extra fields stamped onto dead-lettered messages.
const (
	deadLetterReasonField   = "dead_letter_reason"
	deadLetterAttemptsField = "dead_letter_attempts"
	deadLetterOriginField   = "dead_letter_origin_id"
)

// StreamConfig wires a StreamClient to its keys and trim policy.
type StreamConfig struct {
	Stream          string
	Group           string
	DeadLetter      string
	MaxLen          int64
	ApproximateTrim bool
}

// StreamClient is a thin wrapper over the redis stream primitive scoped to
// one stream and consumer group. All operations honour the per-call deadline
// carried by ctx; on timeout, unacked messages stay pending for reclaim.
type StreamClient struct {
	rdb    *redis.Client
	cfg    StreamConfig
	logger zerolog.Logger
}

// NewStreamClient creates a stream client over a shared connection pool.
func NewStreamClient(rdb *redis.Client, cfg StreamConfig) *StreamClient {
	return &StreamClient{
		rdb:    rdb,
		cfg:    cfg,
		logger: log.WithComponent("broker"),
	}
}

// Stream returns the main stream key.
func (c *StreamClient) Stream() string { return c.cfg.Stream }

// Group returns the consumer group name.
func (c *StreamClient) Group() string { return c.cfg.Group }

// DeadLetterStream returns the dead-letter stream key.
func (c *StreamClient) DeadLetterStream() string { return c.cfg.DeadLetter }

// EnsureGroup creates the stream (if absent) and the consumer group anchored
// at $, so only messages appended after first startup are delivered.
// Idempotent: an existing group is not an error.
func (c *StreamClient) EnsureGroup(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "$").Err()
	if err != nil && !isBusyGroup(err) {
		return fmt.Errorf("%w: create group %s on %s: %v", ErrUnavailable, c.cfg.Group, c.cfg.Stream, err)
	}
	return nil
}

// Append adds a flat field map to the main stream, trimming to the
// configured maxlen. Returns the broker-assigned message id.
func (c *StreamClient) Append(ctx context.Context, fields map[string]any) (string, error) {
	return c.append(ctx, c.cfg.Stream, fields)
}

func (c *StreamClient) append(ctx context.Context, stream string, fields map[string]any) (string, error) {
	args := &redis.XAddArgs{
		Stream: stream,
		Values: fields,
	}
	if c.cfg.MaxLen > 0 {
		args.MaxLen = c.cfg.MaxLen
		args.Approx = c.cfg.ApproximateTrim
	}

	id, err := c.rdb.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("%w: append to %s: %v", ErrUnavailable, stream, err)
	}
	return id, nil
}

// ReadGroup performs a blocking group read. A block timeout yields an empty
// slice, not an error. The NOGROUP condition self-heals by recreating the
// group and reporting an empty read.
func (c *StreamClient) ReadGroup(ctx context.Context, consumer string, count int64, block time.Duration, cursor string) ([]redis.XMessage, error) {
	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: consumer,
		Streams:  []string{c.cfg.Stream, cursor},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		if isNoGroup(err) {
			if healErr := c.EnsureGroup(ctx); healErr != nil {
				return nil, healErr
			}
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read group %s: %v", ErrUnavailable, c.cfg.Group, err)
	}

	var messages []redis.XMessage
	for _, stream := range res {
		messages = append(messages, stream.Messages...)
	}
	return messages, nil
}

// ClaimIdle transfers messages idle longer than minIdle to consumer,
// starting from startID and paginating across calls via the returned next
// start id. Claiming bumps the broker's delivery counter and resets idle
// time.
func (c *StreamClient) ClaimIdle(ctx context.Context, consumer string, minIdle time.Duration, startID string, count int64) ([]redis.XMessage, string, error) {
	if startID == "" {
		startID = "0-0"
	}
	messages, next, err := c.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.cfg.Stream,
		Group:    c.cfg.Group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    startID,
		Count:    count,
	}).Result()
	if err != nil {
		if err == redis.Nil || isNoGroup(err) {
			return nil, "0-0", nil
		}
		return nil, "", fmt.Errorf("%w: claim idle on %s: %v", ErrUnavailable, c.cfg.Stream, err)
	}
	return messages, next, nil
}

// Ack acknowledges one message. Called exactly once per successful
// processing, always after the cache write.
func (c *StreamClient) Ack(ctx context.Context, id string) error {
	if err := c.rdb.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		return fmt.Errorf("%w: ack %s: %v", ErrUnavailable, id, err)
	}
	return nil
}

// DeadLetter copies the message onto the dead-letter stream with the reason
// and attempts count, then acknowledges the original. The copy keeps the
// original fields so dead-lettered jobs can be inspected and replayed.
func (c *StreamClient) DeadLetter(ctx context.Context, msg redis.XMessage, reason string, attempts int) error {
	fields := make(map[string]any, len(msg.Values)+3)
	for k, v := range msg.Values {
		fields[k] = v
	}
	fields[deadLetterReasonField] = reason
	fields[deadLetterAttemptsField] = strconv.Itoa(attempts)
	fields[deadLetterOriginField] = msg.ID

	if _, err := c.append(ctx, c.cfg.DeadLetter, fields); err != nil {
		return err
	}

	c.logger.Warn().
		Str("message_id", msg.ID).
		Str("reason", reason).
		Int("attempts", attempts).
		Msg("message dead-lettered")

	return c.Ack(ctx, msg.ID)
}

// PendingCount reports how many messages a consumer currently holds without
// ack. Drives the worker's backpressure decision.
func (c *StreamClient) PendingCount(ctx context.Context, consumer string) (int64, error) {
	summary, err := c.rdb.XPending(ctx, c.cfg.Stream, c.cfg.Group).Result()
	if err != nil {
		if err == redis.Nil || isNoGroup(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: pending summary on %s: %v", ErrUnavailable, c.cfg.Stream, err)
	}
	return summary.Consumers[consumer], nil
}

// DeliveryCount returns the broker's delivery counter for one pending
// message, or 0 when the message is no longer pending. Each claim and each
// redelivery increments the counter, so it doubles as the attempts record.
func (c *StreamClient) DeliveryCount(ctx context.Context, id string) (int64, error) {
	entries, err := c.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.cfg.Stream,
		Group:  c.cfg.Group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil {
		if err == redis.Nil || isNoGroup(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: pending detail for %s: %v", ErrUnavailable, id, err)
	}
	if len(entries) == 0 {
		return 0, nil
	}
	return entries[0].RetryCount, nil
}

// Trim caps the main stream length outside the append path.
func (c *StreamClient) Trim(ctx context.Context, maxLen int64) error {
	var err error
	if c.cfg.ApproximateTrim {
		err = c.rdb.XTrimMaxLenApprox(ctx, c.cfg.Stream, maxLen, 0).Err()
	} else {
		err = c.rdb.XTrimMaxLen(ctx, c.cfg.Stream, maxLen).Err()
	}
	if err != nil {
		return fmt.Errorf("%w: trim %s: %v", ErrUnavailable, c.cfg.Stream, err)
	}
	return nil
}

// GroupInfo returns consumer-group metadata for the main stream. Used by
// the broker health endpoint as the XINFO probe.
func (c *StreamClient) GroupInfo(ctx context.Context) ([]redis.XInfoGroup, error) {
	groups, err := c.rdb.XInfoGroups(ctx, c.cfg.Stream).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: xinfo groups on %s: %v", ErrUnavailable, c.cfg.Stream, err)
	}
	return groups, nil
}

func isBusyGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "BUSYGROUP")
}

func isNoGroup(err error) bool {
	return err != nil && strings.Contains(err.Error(), "NOGROUP")
}
