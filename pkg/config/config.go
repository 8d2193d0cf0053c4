package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DefaultInternalToken is the placeholder shared secret. Validation refuses
// it outside local and development environments.
const DefaultInternalToken = "changeme"

// Environment names recognized by validation.
const (
	EnvLocal       = "local"
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Settings is the typed configuration snapshot taken once at startup.
// Every field maps to one environment variable.
type Settings struct {
	Environment string
	AppName     string

	// Broker wiring
	RedisURL                  string
	RedisUsername             string
	RedisPassword             string
	RedisSSL                  bool
	RedisSSLCACerts           string
	RedisPoolMaxConnections   int
	RedisSocketTimeout        time.Duration
	RedisSocketConnectTimeout time.Duration
	RedisHealthcheckInterval  time.Duration
	RedisRetryOnTimeout       bool

	// HTTP surface
	InternalToken      string
	HTTPListenAddr     string
	HTTPRequestTimeout time.Duration

	// Cache & strategy
	Namespace      string
	ClusterTTL     time.Duration
	MaxClusterSize int

	// Stream & worker
	ClusterStreamKey             string
	ClusterDeadLetterStream      string
	ClusterStreamMaxLen          int64
	ClusterStreamApproximateTrim bool
	ClusterConsumerGroup         string
	ClusterWorkerConsumerName    string
	ClusterReadTimeout           time.Duration
	ClusterReadCount             int64
	ClusterRetryIdle             time.Duration
	ClusterMaxAttempts           int
	ClusterWorkerCount           int
	ClusterMaxPendingPerWorker   int64

	// Metrics endpoint
	WorkerMetricsEnabled bool
	WorkerMetricsHost    string
	WorkerMetricsPort    int

	// Logging
	LogLevel string
	LogJSON  bool
}

// FromEnv loads settings from the environment, applying defaults matching
// the documented configuration surface.
func FromEnv() (*Settings, error) {
	var errs []error

	s := &Settings{
		Environment: getString("ENVIRONMENT", EnvLocal),
		AppName:     getString("APP_NAME", "sploot-media-clustering"),

		RedisURL:        getString("REDIS_URL", "redis://127.0.0.1:6379/0"),
		RedisUsername:   getString("REDIS_USERNAME", ""),
		RedisPassword:   getString("REDIS_PASSWORD", ""),
		RedisSSLCACerts: getString("REDIS_SSL_CA_CERTS", ""),

		InternalToken:  getString("INTERNAL_TOKEN", DefaultInternalToken),
		HTTPListenAddr: getString("HTTP_LISTEN_ADDR", ":8000"),

		Namespace: getString("NAMESPACE", "sploot.media.clusters"),

		ClusterStreamKey:          getString("CLUSTER_STREAM_KEY", "streams:media.cluster"),
		ClusterDeadLetterStream:   getString("CLUSTER_DEAD_LETTER_STREAM", "streams:media.cluster.deadletter"),
		ClusterConsumerGroup:      getString("CLUSTER_CONSUMER_GROUP", "media-clustering-workers"),
		ClusterWorkerConsumerName: getString("CLUSTER_WORKER_CONSUMER_NAME", "media-clustering-worker"),

		WorkerMetricsHost: getString("WORKER_METRICS_HOST", "0.0.0.0"),

		LogLevel: getString("LOG_LEVEL", "info"),
	}

	s.RedisSSL = getBool("REDIS_SSL", false, &errs)
	s.RedisRetryOnTimeout = getBool("REDIS_RETRY_ON_TIMEOUT", true, &errs)
	s.RedisPoolMaxConnections = getInt("REDIS_POOL_MAX_CONNECTIONS", 20, &errs)
	s.RedisSocketTimeout = getDurationSeconds("REDIS_SOCKET_TIMEOUT", 0, &errs)
	s.RedisSocketConnectTimeout = getDurationSeconds("REDIS_SOCKET_CONNECT_TIMEOUT", 5*time.Second, &errs)
	s.RedisHealthcheckInterval = getDurationSeconds("REDIS_HEALTHCHECK_INTERVAL", 30*time.Second, &errs)

	s.HTTPRequestTimeout = getDurationMillis("HTTP_REQUEST_TIMEOUT_MS", 10*time.Second, &errs)

	s.ClusterTTL = getDurationSeconds("CLUSTER_TTL_SECONDS", 24*time.Hour, &errs)
	s.MaxClusterSize = getInt("MAX_CLUSTER_SIZE", 24, &errs)

	s.ClusterStreamMaxLen = int64(getInt("CLUSTER_STREAM_MAXLEN", 10000, &errs))
	s.ClusterStreamApproximateTrim = getBool("CLUSTER_STREAM_APPROXIMATE_TRIM", true, &errs)
	s.ClusterReadTimeout = getDurationMillis("CLUSTER_READ_TIMEOUT_MS", 5*time.Second, &errs)
	s.ClusterReadCount = int64(getInt("CLUSTER_READ_COUNT", 16, &errs))
	s.ClusterRetryIdle = getDurationMillis("CLUSTER_RETRY_IDLE_MS", time.Minute, &errs)
	s.ClusterMaxAttempts = getInt("CLUSTER_MAX_ATTEMPTS", 5, &errs)
	s.ClusterWorkerCount = getInt("CLUSTER_WORKER_COUNT", 1, &errs)
	s.ClusterMaxPendingPerWorker = int64(getInt("CLUSTER_MAX_PENDING_PER_WORKER", 64, &errs))

	s.WorkerMetricsEnabled = getBool("WORKER_METRICS_ENABLED", false, &errs)
	s.WorkerMetricsPort = getInt("WORKER_METRICS_PORT", 9100, &errs)

	s.LogJSON = getBool("LOG_JSON", s.Environment != EnvLocal, &errs)

	if len(errs) > 0 {
		return nil, errs[0]
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate enforces the startup guardrails. A failed validation aborts the
// process before any broker connection is attempted.
func (s *Settings) Validate() error {
	switch s.Environment {
	case EnvLocal, EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("config: unknown ENVIRONMENT %q", s.Environment)
	}

	if s.InternalToken == "" {
		return fmt.Errorf("config: INTERNAL_TOKEN must not be empty")
	}
	if s.InternalToken == DefaultInternalToken && !s.IsDevelopment() {
		return fmt.Errorf("config: INTERNAL_TOKEN is the placeholder value; refusing to start in %s", s.Environment)
	}

	if s.RedisURL == "" {
		return fmt.Errorf("config: REDIS_URL must not be empty")
	}
	if s.RedisPoolMaxConnections <= 0 {
		return fmt.Errorf("config: REDIS_POOL_MAX_CONNECTIONS must be positive, got %d", s.RedisPoolMaxConnections)
	}

	if s.Namespace == "" {
		return fmt.Errorf("config: NAMESPACE must not be empty")
	}
	if s.ClusterTTL <= 0 {
		return fmt.Errorf("config: CLUSTER_TTL_SECONDS must be positive")
	}
	if s.MaxClusterSize <= 0 {
		return fmt.Errorf("config: MAX_CLUSTER_SIZE must be positive, got %d", s.MaxClusterSize)
	}

	if s.ClusterStreamKey == "" || s.ClusterDeadLetterStream == "" {
		return fmt.Errorf("config: stream keys must not be empty")
	}
	if s.ClusterStreamKey == s.ClusterDeadLetterStream {
		return fmt.Errorf("config: CLUSTER_DEAD_LETTER_STREAM must differ from CLUSTER_STREAM_KEY")
	}
	if s.ClusterConsumerGroup == "" {
		return fmt.Errorf("config: CLUSTER_CONSUMER_GROUP must not be empty")
	}
	if s.ClusterReadCount <= 0 {
		return fmt.Errorf("config: CLUSTER_READ_COUNT must be positive")
	}
	if s.ClusterMaxAttempts <= 0 {
		return fmt.Errorf("config: CLUSTER_MAX_ATTEMPTS must be positive")
	}
	if s.ClusterWorkerCount <= 0 {
		return fmt.Errorf("config: CLUSTER_WORKER_COUNT must be positive")
	}

	if s.WorkerMetricsEnabled && (s.WorkerMetricsPort <= 0 || s.WorkerMetricsPort > 65535) {
		return fmt.Errorf("config: WORKER_METRICS_PORT out of range: %d", s.WorkerMetricsPort)
	}

	return nil
}

// IsDevelopment reports whether the environment permits relaxed guardrails.
func (s *Settings) IsDevelopment() bool {
	return s.Environment == EnvLocal || s.Environment == EnvDevelopment
}

// MetricsListenAddr joins the metrics host and port.
func (s *Settings) MetricsListenAddr() string {
	return fmt.Sprintf("%s:%d", s.WorkerMetricsHost, s.WorkerMetricsPort)
}

func getString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int, errs *[]error) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: %w", key, err))
		return fallback
	}
	return n
}

func getBool(key string, fallback bool, errs *[]error) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: %w", key, err))
		return fallback
	}
	return b
}

func getDurationSeconds(key string, fallback time.Duration, errs *[]error) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs < 0 {
		*errs = append(*errs, fmt.Errorf("config: %s: invalid seconds value %q", key, v))
		return fallback
	}
	return time.Duration(secs * float64(time.Second))
}

func getDurationMillis(key string, fallback time.Duration, errs *[]error) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms < 0 {
		*errs = append(*errs, fmt.Errorf("config: %s: invalid milliseconds value %q", key, v))
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}
