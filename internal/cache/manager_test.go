package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.Addr = mr.Addr()
	cfg.HealthCheckInterval = 0 // 测试中不启动后台循环

	m, err := NewManager(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	return m, mr
}

func TestNewManager_ConnectFailure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:1" // nothing listens here

	_, err := NewManager(cfg, zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}

func TestManager_GetSet(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, MetadataKey("sketchfab:abc"), `{"uid":"abc"}`, time.Minute))

	val, err := m.Get(ctx, MetadataKey("sketchfab:abc"))
	require.NoError(t, err)
	assert.Equal(t, `{"uid":"abc"}`, val)
}

func TestManager_GetMiss(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Get(context.Background(), MetadataKey("missing"))
	assert.True(t, IsCacheMiss(err))
}

func TestManager_SetDefaultTTL(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", 0))

	// ttl=0 时使用配置的默认 TTL
	assert.Equal(t, DefaultConfig().DefaultTTL, mr.TTL("k"))
}

func TestManager_TTLExpiry(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", "v", time.Minute))
	mr.FastForward(2 * time.Minute)

	_, err := m.Get(ctx, "k")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_JSONRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	type meta struct {
		UID  string `json:"uid"`
		Name string `json:"name"`
	}

	in := meta{UID: "abc123", Name: "leather jacket"}
	require.NoError(t, m.SetJSON(ctx, MetadataKey("sketchfab:abc123"), in, time.Minute))

	var out meta
	require.NoError(t, m.GetJSON(ctx, MetadataKey("sketchfab:abc123"), &out))
	assert.Equal(t, in, out)
}

func TestManager_GetJSON_Miss(t *testing.T) {
	m, _ := newTestManager(t)

	var out map[string]string
	err := m.GetJSON(context.Background(), "absent", &out)
	assert.True(t, IsCacheMiss(err))
}

func TestManager_DeleteAndExists(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, m.Set(ctx, "b", "2", time.Minute))

	count, err := m.Exists(ctx, "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	require.NoError(t, m.Delete(ctx, "a", "b"))

	count, err = m.Exists(ctx, "a", "b")
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestManager_DeleteEmpty(t *testing.T) {
	m, _ := newTestManager(t)
	assert.NoError(t, m.Delete(context.Background()))
}

func TestManager_ClosedOperations(t *testing.T) {
	m, _ := newTestManager(t)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close(), "重复关闭应为空操作")

	ctx := context.Background()

	_, err := m.Get(ctx, "k")
	assert.Error(t, err)

	assert.Error(t, m.Set(ctx, "k", "v", 0))
	assert.Error(t, m.Ping(ctx))
}

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "fitroom:marketplace:meta:sketchfab:abc", MetadataKey("sketchfab:abc"))
	assert.Equal(t, "fitroom:resolution:sketchfab:abc", ResolutionKey("sketchfab:abc"))
}
