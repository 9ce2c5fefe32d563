package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/fitroom/config"
	"github.com/BaSui01/fitroom/internal/cache"
	"github.com/BaSui01/fitroom/types"
)

func newTestClient(t *testing.T, baseURL string, cacheManager *cache.Manager) *Client {
	t.Helper()

	cfg := config.DefaultMarketplaceConfig()
	cfg.BaseURL = baseURL
	cfg.Token = "test-token"
	cfg.RequestsPerSecond = 1000
	cfg.MetadataTimeout = 5 * time.Second
	cfg.DownloadTimeout = 5 * time.Second

	q := newTestQueue(t, QueueConfig{
		RequestsPerSecond: cfg.RequestsPerSecond,
		MaxRetries:        cfg.MaxRetries,
		BackoffBase:       time.Millisecond,
	})
	return NewClient(cfg, q, cacheManager, zap.NewNop())
}

func newTestCache(t *testing.T) *cache.Manager {
	t.Helper()
	mr := miniredis.RunT(t)

	cfg := cache.DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.HealthCheckInterval = 0

	m, err := cache.NewManager(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestClient_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "models", r.URL.Query().Get("type"))
		assert.Equal(t, "red dress", r.URL.Query().Get("q"))

		fmt.Fprint(w, `{"results":[{"uid":"abc","name":"Red Dress"},{"uid":"def","name":"Another"}]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	models, err := c.Search(context.Background(), "red dress", 10)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "abc", models[0].UID)
}

func TestClient_MetadataUsesRedisCache(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/models/abc", r.URL.Path)
		fmt.Fprint(w, `{"uid":"abc","name":"Red Dress","vertex_count":1200}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, newTestCache(t))

	first, err := c.Metadata(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Red Dress", first.Name)

	// 第二次命中 Redis，不再打市场 API
	second, err := c.Metadata(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), hits.Load())
}

func TestClient_DownloadInfoPrefersGLB(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/abc/download", r.URL.Path)
		fmt.Fprint(w, `{"gltf":{"url":"https://cdn.example.com/a.zip","size":10},"glb":{"url":"https://cdn.example.com/a.glb","size":5}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	info, err := c.DownloadInfo(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.glb", info.URL)
}

func TestClient_DownloadInfoNoPackage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	_, err := c.DownloadInfo(context.Background(), "abc")
	require.Error(t, err)
	assert.Equal(t, types.ErrAssetNotFound, types.GetErrorCode(err))
}

func TestClient_FetchByUID(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models/abc/download":
			fmt.Fprintf(w, `{"glb":{"url":"%s/files/a.glb"}}`, srv.URL)
		case "/files/a.glb":
			w.Header().Set("Content-Type", "model/gltf-binary")
			w.Write([]byte("glb-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	res, err := c.Fetch(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("glb-bytes"), res.Data)
	assert.Equal(t, "model/gltf-binary", res.ContentType)
}

func TestClient_FetchByURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		w.Write([]byte("zip-bytes"))
	}))
	defer srv.Close()

	c := newTestClient(t, "http://unused.invalid", nil)
	res, err := c.Fetch(context.Background(), srv.URL+"/pkg.zip")
	require.NoError(t, err)
	assert.Equal(t, []byte("zip-bytes"), res.Data)
	assert.Equal(t, srv.URL+"/pkg.zip", res.SourceURL)
}

func TestClient_ThrottledThenRecovered(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"uid":"abc","name":"Recovered"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, nil)
	model, err := c.Metadata(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Recovered", model.Name)
	assert.Equal(t, int64(3), hits.Load())
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		status   int
		expected types.ErrorCode
	}{
		{http.StatusOK, ""},
		{http.StatusTooManyRequests, types.ErrThrottled},
		{http.StatusNotFound, types.ErrAssetNotFound},
		{http.StatusBadGateway, types.ErrUpstreamError},
		{http.StatusForbidden, types.ErrUpstreamError},
	}

	for _, tt := range tests {
		err := statusError(tt.status, "http://x")
		if tt.expected == "" {
			assert.NoError(t, err)
			continue
		}
		require.Error(t, err, tt.status)
		assert.Equal(t, tt.expected, types.GetErrorCode(err))
		if tt.status == http.StatusTooManyRequests {
			assert.True(t, types.IsRetryable(err))
		}
	}
}
