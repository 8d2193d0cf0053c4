package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "local")

	s, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "sploot-media-clustering", s.AppName)
	assert.Equal(t, "sploot.media.clusters", s.Namespace)
	assert.Equal(t, "streams:media.cluster", s.ClusterStreamKey)
	assert.Equal(t, "streams:media.cluster.deadletter", s.ClusterDeadLetterStream)
	assert.Equal(t, "media-clustering-workers", s.ClusterConsumerGroup)
	assert.Equal(t, 24*time.Hour, s.ClusterTTL)
	assert.Equal(t, 24, s.MaxClusterSize)
	assert.Equal(t, int64(16), s.ClusterReadCount)
	assert.Equal(t, 5*time.Second, s.ClusterReadTimeout)
	assert.Equal(t, time.Minute, s.ClusterRetryIdle)
	assert.Equal(t, 5, s.ClusterMaxAttempts)
	assert.Equal(t, int64(10000), s.ClusterStreamMaxLen)
	assert.Equal(t, ":8000", s.HTTPListenAddr)
	assert.Equal(t, 10*time.Second, s.HTTPRequestTimeout)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "staging")
	t.Setenv("INTERNAL_TOKEN", "s3cret")
	t.Setenv("CLUSTER_TTL_SECONDS", "600")
	t.Setenv("CLUSTER_READ_TIMEOUT_MS", "250")
	t.Setenv("MAX_CLUSTER_SIZE", "8")
	t.Setenv("CLUSTER_WORKER_COUNT", "4")

	s, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, EnvStaging, s.Environment)
	assert.Equal(t, 10*time.Minute, s.ClusterTTL)
	assert.Equal(t, 250*time.Millisecond, s.ClusterReadTimeout)
	assert.Equal(t, 8, s.MaxClusterSize)
	assert.Equal(t, 4, s.ClusterWorkerCount)
}

func TestFromEnvRejectsMalformedValues(t *testing.T) {
	t.Setenv("ENVIRONMENT", "local")
	t.Setenv("CLUSTER_READ_COUNT", "sixteen")

	_, err := FromEnv()
	assert.Error(t, err)
}

func TestValidatePlaceholderTokenGuardrail(t *testing.T) {
	// Placeholder token is tolerated only in development environments
	t.Setenv("ENVIRONMENT", "local")
	_, err := FromEnv()
	assert.NoError(t, err)

	t.Setenv("ENVIRONMENT", "production")
	_, err = FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INTERNAL_TOKEN")

	t.Setenv("INTERNAL_TOKEN", "real-token")
	_, err = FromEnv()
	assert.NoError(t, err)
}

func TestValidateGuardrails(t *testing.T) {
	base := func() *Settings {
		s, err := FromEnv()
		require.NoError(t, err)
		return s
	}
	t.Setenv("ENVIRONMENT", "local")

	s := base()
	s.Environment = "sandbox"
	assert.Error(t, s.Validate())

	s = base()
	s.ClusterDeadLetterStream = s.ClusterStreamKey
	assert.Error(t, s.Validate())

	s = base()
	s.ClusterTTL = 0
	assert.Error(t, s.Validate())

	s = base()
	s.MaxClusterSize = -1
	assert.Error(t, s.Validate())

	s = base()
	s.ClusterMaxAttempts = 0
	assert.Error(t, s.Validate())

	s = base()
	s.WorkerMetricsEnabled = true
	s.WorkerMetricsPort = 700000
	assert.Error(t, s.Validate())
}

func TestIsDevelopment(t *testing.T) {
	assert.True(t, (&Settings{Environment: EnvLocal}).IsDevelopment())
	assert.True(t, (&Settings{Environment: EnvDevelopment}).IsDevelopment())
	assert.False(t, (&Settings{Environment: EnvStaging}).IsDevelopment())
	assert.False(t, (&Settings{Environment: EnvProduction}).IsDevelopment())
}

func TestMetricsListenAddr(t *testing.T) {
	s := &Settings{WorkerMetricsHost: "0.0.0.0", WorkerMetricsPort: 9100}
	assert.Equal(t, "0.0.0.0:9100", s.MetricsListenAddr())
}
