package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rclong1221/sploot-media-clustering/pkg/broker"
	"github.com/rclong1221/sploot-media-clustering/pkg/cache"
	"github.com/rclong1221/sploot-media-clustering/pkg/cluster"
	"github.com/rclong1221/sploot-media-clustering/pkg/types"
)

const testToken = "test-internal-token"

type fixture struct {
	server *Server
	stream *broker.StreamClient
	store  cache.Store
	rdb    *redis.Client
	mr     *miniredis.Miniredis
}

func newFixture(t *testing.T) *fixture {
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
	service := cluster.NewService(stream, store, rdb)
	require.NoError(t, service.EnsureGroup(context.Background()))

	server := NewServer(service, Config{
		ListenAddr:     ":0",
		InternalToken:  testToken,
		RequestTimeout: 5 * time.Second,
	})
	return &fixture{server: server, stream: stream, store: store, rdb: rdb, mr: mr}
}

func (f *fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealthzNoAuth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestInternalRoutesRejectBadToken(t *testing.T) {
	f := newFixture(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/internal/cluster-jobs"},
		{http.MethodGet, "/internal/pets/pet-1/clusters"},
		{http.MethodPost, "/internal/pets/pet-1/invalidate"},
		{http.MethodGet, "/internal/health/redis"},
	}

	for _, p := range paths {
		// Missing and wrong tokens get the same fixed body
		for _, token := range []string{"", "wrong-token"} {
			rec := f.do(t, p.method, p.path, token, "")
			assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", p.method, p.path)
			assert.Equal(t, "invalid internal token", decodeBody(t, rec)["detail"])
		}
	}
}

func TestAuthRunsBeforeBodyParse(t *testing.T) {
	f := newFixture(t)

	// A broken body with a bad token must yield 401, not 400
	rec := f.do(t, http.MethodPost, "/internal/cluster-jobs", "wrong-token", "{not-json")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitJobAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	body := `{"pet_id":"pet-1","reason":"new_upload","payload":{"image_ids":["img-a","img-b"],"quality_score":0.8}}`
	rec := f.do(t, http.MethodPost, "/internal/cluster-jobs", testToken, body)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "accepted", decodeBody(t, rec)["status"])

	// The job is durable on the stream before the 202 goes out
	length, err := f.rdb.XLen(ctx, f.stream.Stream()).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)
}

func TestSubmitJobValidation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/internal/cluster-jobs", testToken, "{not-json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/internal/cluster-jobs", testToken, `{"reason":"x"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "pet_id is required", decodeBody(t, rec)["detail"])
}

func TestGetClusters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := f.do(t, http.MethodGet, "/internal/pets/pet-1/clusters", testToken, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "cluster state not found", decodeBody(t, rec)["detail"])

	descriptor := types.ClusterDescriptor{
		PetID: "pet-1",
		Clusters: []types.Cluster{
			{
				ID:          "pet-1-cluster-0",
				Label:       "All",
				HeroImageID: "img-a",
				Members:     []types.Member{{ImageID: "img-a", Score: 0.9, Position: 0}},
			},
		},
		UpdatedAt: time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.store.Put(ctx, descriptor, time.Hour))

	rec = f.do(t, http.MethodGet, "/internal/pets/pet-1/clusters", testToken, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got types.ClusterDescriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "pet-1", got.PetID)
	require.Len(t, got.Clusters, 1)
	assert.Equal(t, "img-a", got.Clusters[0].HeroImageID)
}

func TestInvalidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.store.Put(ctx, types.ClusterDescriptor{PetID: "pet-1"}, time.Hour))

	rec := f.do(t, http.MethodPost, "/internal/pets/pet-1/invalidate", testToken, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "removed", decodeBody(t, rec)["status"])

	// Invalidating again is a noop, still 202
	rec = f.do(t, http.MethodPost, "/internal/pets/pet-1/invalidate", testToken, "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "noop", decodeBody(t, rec)["status"])
}

func TestRedisHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/internal/health/redis", testToken, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	f.mr.Close()

	rec = f.do(t, http.MethodGet, "/internal/health/redis", testToken, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "redis unavailable", decodeBody(t, rec)["detail"])
}

func TestSubmitJobBrokerDown(t *testing.T) {
	f := newFixture(t)
	f.mr.Close()

	rec := f.do(t, http.MethodPost, "/internal/cluster-jobs", testToken, `{"pet_id":"pet-1"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
