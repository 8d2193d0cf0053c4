package broker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rclong1221/sploot-media-clustering/pkg/config"
)

// ErrUnavailable marks broker failures that should surface as 503 on the
// HTTP side and as capped-backoff loops on the worker side.
var ErrUnavailable = errors.New("broker unavailable")

// NewClient builds the shared redis connection pool from settings. The same
// pool serves the stream client, the cache store, and health probes.
func NewClient(s *config.Settings) (*redis.Client, error) {
	opts, err := redis.ParseURL(s.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}

	if s.RedisUsername != "" {
		opts.Username = s.RedisUsername
	}
	if s.RedisPassword != "" {
		opts.Password = s.RedisPassword
	}

	opts.PoolSize = s.RedisPoolMaxConnections
	opts.DialTimeout = s.RedisSocketConnectTimeout
	if s.RedisSocketTimeout > 0 {
		opts.ReadTimeout = s.RedisSocketTimeout
		opts.WriteTimeout = s.RedisSocketTimeout
	}
	if !s.RedisRetryOnTimeout {
		opts.MaxRetries = -1
	}

	if s.RedisSSL {
		tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
		if s.RedisSSLCACerts != "" {
			pem, err := os.ReadFile(s.RedisSSLCACerts)
			if err != nil {
				return nil, fmt.Errorf("read REDIS_SSL_CA_CERTS: %w", err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("REDIS_SSL_CA_CERTS: no certificates found in %s", s.RedisSSLCACerts)
			}
			tlsConfig.RootCAs = pool
		}
		opts.TLSConfig = tlsConfig
	}

	return redis.NewClient(opts), nil
}

// Ping probes the broker with a short deadline. Used by health endpoints
// and startup checks.
func Ping(ctx context.Context, rdb *redis.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
