package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rclong1221/sploot-media-clustering/pkg/broker"
	"github.com/rclong1221/sploot-media-clustering/pkg/types"
)

// RedisStore keeps per-pet cluster descriptors as JSON blobs under
// {namespace}:pets:{pet_id}:cluster.
type RedisStore struct {
	rdb       *redis.Client
	namespace string
}

// NewRedisStore creates a store over the shared connection pool.
func NewRedisStore(rdb *redis.Client, namespace string) *RedisStore {
	return &RedisStore{rdb: rdb, namespace: namespace}
}

// Key returns the cache key for a pet.
func (s *RedisStore) Key(petID string) string {
	return fmt.Sprintf("%s:pets:%s:cluster", s.namespace, petID)
}

// Put replaces the descriptor atomically with the given TTL.
func (s *RedisStore) Put(ctx context.Context, descriptor types.ClusterDescriptor, ttl time.Duration) error {
	raw, err := descriptor.Encode()
	if err != nil {
		return fmt.Errorf("encode descriptor for %s: %w", descriptor.PetID, err)
	}
	if err := s.rdb.Set(ctx, s.Key(descriptor.PetID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("%w: put %s: %v", broker.ErrUnavailable, descriptor.PetID, err)
	}
	return nil
}

// Get fetches the descriptor or reports ErrMissing.
func (s *RedisStore) Get(ctx context.Context, petID string) (types.ClusterDescriptor, error) {
	raw, err := s.rdb.Get(ctx, s.Key(petID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return types.ClusterDescriptor{}, ErrMissing
		}
		return types.ClusterDescriptor{}, fmt.Errorf("%w: get %s: %v", broker.ErrUnavailable, petID, err)
	}
	return types.DecodeDescriptor(raw)
}

// Delete removes the descriptor, reporting whether one existed.
func (s *RedisStore) Delete(ctx context.Context, petID string) (bool, error) {
	removed, err := s.rdb.Del(ctx, s.Key(petID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: delete %s: %v", broker.ErrUnavailable, petID, err)
	}
	return removed > 0, nil
}
