package cluster

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rclong1221/sploot-media-clustering/pkg/broker"
	"github.com/rclong1221/sploot-media-clustering/pkg/cache"
	"github.com/rclong1221/sploot-media-clustering/pkg/types"
)

func newTestService(t *testing.T) (*Service, *broker.StreamClient, cache.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	stream := broker.NewStreamClient(rdb, broker.StreamConfig{
		Stream:     "streams:test.cluster",
		Group:      "test-workers",
		DeadLetter: "streams:test.cluster.deadletter",
	})
	store := cache.NewRedisStore(rdb, "test.clusters")
	return NewService(stream, store, rdb), stream, store, mr
}

func TestEnqueueJobStampsMissingFields(t *testing.T) {
	service, stream, _, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, service.EnsureGroup(ctx))

	job, messageID, err := service.EnqueueJob(ctx, types.Job{
		PetID:   "pet-1",
		Reason:  "new_upload",
		Payload: types.JobPayload{ImageIDs: []string{"img-a", "img-a"}},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, messageID)
	assert.NotEmpty(t, job.JobID)
	assert.Zero(t, job.Attempts)
	assert.False(t, job.EmittedAt.IsZero())

	// The payload is normalized before it hits the wire
	assert.Equal(t, []string{"img-a"}, job.Payload.ImageIDs)

	messages, err := stream.ReadGroup(ctx, "probe", 10, 10*time.Millisecond, broker.CursorNew)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "pet-1", messages[0].Values["pet_id"])
}

func TestEnqueueJobKeepsCallerJobID(t *testing.T) {
	service, _, _, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, service.EnsureGroup(ctx))

	job, _, err := service.EnqueueJob(ctx, types.Job{JobID: "caller-id", PetID: "pet-1"})
	require.NoError(t, err)
	assert.Equal(t, "caller-id", job.JobID)
}

func TestEnqueueJobRequiresPetID(t *testing.T) {
	service, _, _, _ := newTestService(t)

	_, _, err := service.EnqueueJob(context.Background(), types.Job{})
	assert.Error(t, err)
}

func TestGetStateMissAndHit(t *testing.T) {
	service, _, store, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.GetState(ctx, "pet-1")
	assert.ErrorIs(t, err, cache.ErrMissing)

	descriptor := types.ClusterDescriptor{
		PetID:     "pet-1",
		Clusters:  []types.Cluster{},
		UpdatedAt: time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Put(ctx, descriptor, time.Hour))

	got, err := service.GetState(ctx, "pet-1")
	require.NoError(t, err)
	assert.Equal(t, "pet-1", got.PetID)
}

func TestInvalidate(t *testing.T) {
	service, _, store, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, types.ClusterDescriptor{PetID: "pet-1"}, time.Hour))

	existed, err := service.Invalidate(ctx, "pet-1")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = service.Invalidate(ctx, "pet-1")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestBrokerHealthy(t *testing.T) {
	service, _, _, mr := newTestService(t)
	ctx := context.Background()

	// Before the group exists the probe fails
	assert.Error(t, service.BrokerHealthy(ctx, time.Second))

	require.NoError(t, service.EnsureGroup(ctx))
	assert.NoError(t, service.BrokerHealthy(ctx, time.Second))

	mr.Close()
	assert.ErrorIs(t, service.BrokerHealthy(ctx, 100*time.Millisecond), broker.ErrUnavailable)
}
