package store

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/fitroom/assets"
	"github.com/BaSui01/fitroom/config"
	"github.com/BaSui01/fitroom/internal/metrics"
	"github.com/BaSui01/fitroom/types"
)

var serviceTestSeq atomic.Int64

// newTestService 组装带临时磁盘与独立指标命名空间的服务
func newTestService(t *testing.T, fetch func(ctx context.Context, origin string) (*FetchResult, error)) *Service {
	t.Helper()

	cfg := config.DefaultCacheConfig()
	cfg.Root = t.TempDir()

	disk, err := NewDiskStore(cfg, zap.NewNop())
	require.NoError(t, err)

	collector := metrics.NewCollector(
		fmt.Sprintf("storetest%d", serviceTestSeq.Add(1)), zap.NewNop())

	return NewService(cfg, disk, fetchFunc(fetch), collector, zap.NewNop())
}

type fetchFunc func(ctx context.Context, origin string) (*FetchResult, error)

func (f fetchFunc) Fetch(ctx context.Context, origin string) (*FetchResult, error) {
	return f(ctx, origin)
}

func zipPayload(t *testing.T, files map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, data := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func glbPayload(t *testing.T) []byte {
	t.Helper()
	glb, err := assets.EncodeGLB([]byte(`{"asset":{"version":"2.0"}}`), nil)
	require.NoError(t, err)
	return glb
}

func TestService_ResolveBinaryScene(t *testing.T) {
	glb := glbPayload(t)
	svc := newTestService(t, func(ctx context.Context, origin string) (*FetchResult, error) {
		return &FetchResult{Data: glb, SourceURL: "https://cdn.example.com/m.glb"}, nil
	})

	res, err := svc.Resolve(context.Background(), "model-1")
	require.NoError(t, err)

	assert.Equal(t, MethodDirect, res.Method)
	assert.Equal(t, string(assets.KindBinaryScene), res.Kind)
	assert.False(t, res.Cached)
	assert.Equal(t, "/assets/model-1/scene.glb", res.URL)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, glb, data)
}

func TestService_SecondResolveHitsCache(t *testing.T) {
	var calls atomic.Int64
	glb := glbPayload(t)
	svc := newTestService(t, func(ctx context.Context, origin string) (*FetchResult, error) {
		calls.Add(1)
		return &FetchResult{Data: glb}, nil
	})

	first, err := svc.Resolve(context.Background(), "model-1")
	require.NoError(t, err)

	second, err := svc.Resolve(context.Background(), "model-1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, MethodCache, second.Method)
	assert.True(t, second.Cached)

	// 缓存幂等：重复请求返回与首次解析字节一致的内容
	a, err := os.ReadFile(first.Path)
	require.NoError(t, err)
	b, err := os.ReadFile(second.Path)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestService_UnknownPayloadIsCachedAsIs(t *testing.T) {
	var calls atomic.Int64
	svc := newTestService(t, func(ctx context.Context, origin string) (*FetchResult, error) {
		calls.Add(1)
		return &FetchResult{Data: []byte("opaque payload")}, nil
	})

	first, err := svc.Resolve(context.Background(), "model-raw")
	require.NoError(t, err)

	assert.Equal(t, MethodDirect, first.Method)
	assert.Equal(t, string(assets.KindUnknown), first.Kind)
	assert.Equal(t, "/assets/model-raw/asset.bin", first.URL)

	// 原样副本同样算缓存命中，不会每次解析都重新抓取
	second, err := svc.Resolve(context.Background(), "model-raw")
	require.NoError(t, err)

	assert.Equal(t, int64(1), calls.Load())
	assert.Equal(t, MethodCache, second.Method)
	assert.Equal(t, string(assets.KindUnknown), second.Kind)
	assert.True(t, second.Cached)
}

func TestService_StaleCopyIsRefetched(t *testing.T) {
	var calls atomic.Int64
	glb := glbPayload(t)
	svc := newTestService(t, func(ctx context.Context, origin string) (*FetchResult, error) {
		calls.Add(1)
		return &FetchResult{Data: glb}, nil
	})

	res, err := svc.Resolve(context.Background(), "model-1")
	require.NoError(t, err)

	// 把缓存副本回拨到新鲜度窗口之外
	stale := time.Now().Add(-25 * time.Hour)
	require.NoError(t, os.Chtimes(res.Path, stale, stale))

	res, err = svc.Resolve(context.Background(), "model-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())
	assert.Equal(t, MethodDirect, res.Method)
}

func TestService_ArchiveWithBinaryEntry(t *testing.T) {
	glb := glbPayload(t)
	payload := zipPayload(t, map[string][]byte{"model/export.glb": glb})
	svc := newTestService(t, func(ctx context.Context, origin string) (*FetchResult, error) {
		return &FetchResult{Data: payload, SourceURL: "https://m.example.com/pkg.zip"}, nil
	})

	res, err := svc.Resolve(context.Background(), "model-zip")
	require.NoError(t, err)

	assert.Equal(t, MethodArchive, res.Method)
	assert.Equal(t, string(assets.KindBinaryScene), res.Kind)

	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, glb, data)
}

func TestService_ArchiveWithMultiFileScene(t *testing.T) {
	payload := zipPayload(t, map[string][]byte{
		"scene.gltf": []byte(`{
			"asset": {"version": "2.0"},
			"buffers": [{"uri": "geometry.bin", "byteLength": 4}],
			"images": [{"uri": "textures/diffuse.png"}]
		}`),
		"geometry.bin":         {1, 2, 3, 4},
		"textures/diffuse.png": {9, 8},
	})
	svc := newTestService(t, func(ctx context.Context, origin string) (*FetchResult, error) {
		return &FetchResult{Data: payload}, nil
	})

	res, err := svc.Resolve(context.Background(), "model-multi")
	require.NoError(t, err)

	// 多文件场景在内存中打包为单个 GLB
	assert.Equal(t, MethodPacked, res.Method)
	data, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.True(t, assets.IsGLB(data))

	// 归档里的缓冲与纹理进了共享池
	assert.FileExists(t, filepath.Join(svc.Disk().PoolPath(), "geometry.bin"))
	assert.FileExists(t, filepath.Join(svc.Disk().PoolPath(), "diffuse.png"))
}

func TestService_ArchivePackFailureFallsBackToResolver(t *testing.T) {
	// 场景引用归档里不存在的缓冲：打包失败，退回整包落盘 + 依赖解析
	payload := zipPayload(t, map[string][]byte{
		"scene.gltf": []byte(`{
			"asset": {"version": "2.0"},
			"buffers": [{"uri": "missing.bin", "byteLength": 4}]
		}`),
	})
	svc := newTestService(t, func(ctx context.Context, origin string) (*FetchResult, error) {
		return &FetchResult{Data: payload}, nil
	})

	res, err := svc.Resolve(context.Background(), "model-broken")
	require.NoError(t, err)

	assert.Equal(t, MethodResolved, res.Method)
	assert.Equal(t, 1, res.Placeholders)
	// 占位缓冲被合成到场景期望的路径上
	assert.FileExists(t, filepath.Join(svc.Disk().AssetDir("model-broken"), "missing.bin"))
}

func TestService_ArchiveWithoutScene(t *testing.T) {
	payload := zipPayload(t, map[string][]byte{"readme.txt": []byte("hi")})
	svc := newTestService(t, func(ctx context.Context, origin string) (*FetchResult, error) {
		return &FetchResult{Data: payload}, nil
	})

	_, err := svc.Resolve(context.Background(), "model-empty")
	require.Error(t, err)
	assert.Equal(t, types.ErrUnresolvedReference, types.GetErrorCode(err))
}

func TestService_TextSceneRunsResolver(t *testing.T) {
	svc := newTestService(t, func(ctx context.Context, origin string) (*FetchResult, error) {
		return &FetchResult{
			Data:        []byte(`{"asset":{"version":"2.0"},"images":[{"uri":"tex.png"}]}`),
			ContentType: "model/gltf+json",
		}, nil
	})

	res, err := svc.Resolve(context.Background(), "model-text")
	require.NoError(t, err)

	assert.Equal(t, MethodResolved, res.Method)
	assert.Equal(t, 1, res.Placeholders)
	assert.FileExists(t, filepath.Join(svc.Disk().AssetDir("model-text"), "tex.png"))
}

func TestService_FetchErrorPropagates(t *testing.T) {
	svc := newTestService(t, func(ctx context.Context, origin string) (*FetchResult, error) {
		return nil, types.NewError(types.ErrThrottled, "rate limited").WithOrigin(origin)
	})

	_, err := svc.Resolve(context.Background(), "model-x")
	require.Error(t, err)
	assert.Equal(t, types.ErrThrottled, types.GetErrorCode(err))
}

// 同一来源的并发解析只触发一次抓取，缓存落在一致状态
func TestService_ConcurrentSameOriginSingleFetch(t *testing.T) {
	var calls atomic.Int64
	glb := glbPayload(t)
	svc := newTestService(t, func(ctx context.Context, origin string) (*FetchResult, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return &FetchResult{Data: glb}, nil
	})

	const n = 8
	results := make([]*ResolveResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Resolve(context.Background(), "model-shared")
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load())
	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, results[0].Path, res.Path)
	}

	data, err := os.ReadFile(results[0].Path)
	require.NoError(t, err)
	assert.Equal(t, glb, data)
}

func TestService_ReadAssetTiers(t *testing.T) {
	glb := glbPayload(t)
	svc := newTestService(t, func(ctx context.Context, origin string) (*FetchResult, error) {
		return &FetchResult{Data: glb}, nil
	})

	_, err := svc.Resolve(context.Background(), "model-1")
	require.NoError(t, err)

	data, tier, err := svc.ReadAsset("model-1", "scene.glb")
	require.NoError(t, err)
	assert.Equal(t, TierExact, tier)
	assert.Equal(t, glb, data)

	// 第二次读取命中内存缓存
	_, tier, err = svc.ReadAsset("model-1", "scene.glb")
	require.NoError(t, err)
	assert.Equal(t, TierMemory, tier)
}

func TestService_ReadAssetNotFound(t *testing.T) {
	svc := newTestService(t, func(ctx context.Context, origin string) (*FetchResult, error) {
		return nil, nil
	})

	_, _, err := svc.ReadAsset("ghost", "scene.glb")
	require.Error(t, err)

	nf, ok := err.(*NotFoundError)
	require.True(t, ok)
	assert.Len(t, nf.Searched, 3)
}
