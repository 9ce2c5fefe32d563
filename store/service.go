package store

import (
	"context"
	"path"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BaSui01/fitroom/assets"
	"github.com/BaSui01/fitroom/config"
	"github.com/BaSui01/fitroom/internal/metrics"
	"github.com/BaSui01/fitroom/types"
)

// =============================================================================
// 🎯 资产解析服务
// =============================================================================
// 把一个来源标识（市场 ID 或远程 URL）变成缓存里的自包含场景文件：
// 抓取 → 分类 → 提取/打包/依赖解析 → 落盘。同一来源的并发请求通过
// singleflight 合并为一次解析。

// 解析方法，记录资产是如何得到的
const (
	MethodCache    = "cache"
	MethodDirect   = "direct"
	MethodArchive  = "archive"
	MethodPacked   = "packed"
	MethodResolved = "resolved"
)

// FetchResult 抓取器返回的原始载荷
type FetchResult struct {
	Data        []byte
	ContentType string
	// SourceURL 实际下载地址，分类时做扩展名判断用
	SourceURL string
}

// Fetcher 按来源标识抓取远程载荷。市场队列与代理客户端都实现它。
type Fetcher interface {
	Fetch(ctx context.Context, origin string) (*FetchResult, error)
}

// ResolveResult 一次解析的结果
type ResolveResult struct {
	Origin string `json:"origin"`
	// URL 资产服务器上的相对地址
	URL string `json:"url"`
	// Path 磁盘绝对路径
	Path string `json:"-"`
	// Method 解析方法：cache / direct / archive / packed / resolved
	Method string `json:"resolution_method"`
	// Kind 载荷分类结果
	Kind string `json:"kind"`
	// Cached 是否命中已有缓存
	Cached bool `json:"cached"`
	// Placeholders 依赖解析合成的占位资源数
	Placeholders int `json:"placeholders,omitempty"`
}

// Service 资产解析服务
type Service struct {
	disk      *DiskStore
	mem       *MemoryCache
	fetcher   Fetcher
	resolver  *assets.Resolver
	metrics   *metrics.Collector
	group     singleflight.Group
	freshness time.Duration
	logger    *zap.Logger
}

// NewService 组装解析服务
func NewService(cfg config.CacheConfig, disk *DiskStore, fetcher Fetcher, collector *metrics.Collector, logger *zap.Logger) *Service {
	return &Service{
		disk:      disk,
		mem:       NewMemoryCache(cfg.MemoryMaxEntries, cfg.MemoryTTL, cfg.MaxArchiveBytes),
		fetcher:   fetcher,
		resolver:  assets.NewResolver(disk.PoolPath(), logger),
		metrics:   collector,
		freshness: cfg.FreshnessWindow,
		logger:    logger.With(zap.String("component", "asset_service")),
	}
}

// Disk 暴露底层磁盘存储（资产服务器读路径用）
func (s *Service) Disk() *DiskStore { return s.disk }

// Resolve 解析来源标识为缓存内的自包含场景。同一来源的并发调用
// 共享同一次解析结果。
func (s *Service) Resolve(ctx context.Context, origin string) (*ResolveResult, error) {
	v, err, _ := s.group.Do(origin, func() (interface{}, error) {
		return s.resolveOrigin(ctx, origin)
	})
	if err != nil {
		return nil, err
	}
	return v.(*ResolveResult), nil
}

func (s *Service) resolveOrigin(ctx context.Context, origin string) (*ResolveResult, error) {
	start := time.Now()

	// 新鲜的缓存副本直接命中
	if p, ok := s.disk.Fresh(origin, s.freshness); ok {
		s.metrics.RecordCacheHit("disk")
		s.metrics.RecordResolution(MethodCache, "success", time.Since(start))
		return s.result(origin, p, MethodCache, kindOf(p), true, 0), nil
	}
	s.metrics.RecordCacheMiss("disk")

	fetched, err := s.fetcher.Fetch(ctx, origin)
	if err != nil {
		s.metrics.RecordResolution(MethodDirect, "error", time.Since(start))
		return nil, err
	}

	kind := assets.Classify(fetched.Data, fetched.SourceURL, fetched.ContentType)
	res, err := s.persist(origin, kind, fetched.Data)
	if err != nil {
		s.metrics.RecordResolution(string(kind), "error", time.Since(start))
		return nil, err
	}

	s.metrics.RecordResolution(res.Method, "success", time.Since(start))
	for i := 0; i < res.Placeholders; i++ {
		s.metrics.RecordPlaceholder("scene_ref")
	}

	s.logger.Info("asset resolved",
		zap.String("origin", origin),
		zap.String("kind", res.Kind),
		zap.String("method", res.Method),
		zap.Int("placeholders", res.Placeholders),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// persist 按分类结果把载荷固化到磁盘
func (s *Service) persist(origin string, kind assets.PayloadKind, data []byte) (*ResolveResult, error) {
	switch kind {
	case assets.KindBinaryScene:
		p, err := s.disk.WriteAsset(origin, "scene.glb", data)
		if err != nil {
			return nil, err
		}
		return s.result(origin, p, MethodDirect, string(kind), false, 0), nil

	case assets.KindTextScene:
		p, err := s.disk.WriteAsset(origin, "scene.gltf", data)
		if err != nil {
			return nil, err
		}
		resolution, err := s.resolver.Resolve(p, s.disk.AssetDir(origin))
		if err != nil {
			return nil, types.NewError(types.ErrUnresolvedReference, "scene file unreadable").
				WithCause(err).WithOrigin(origin)
		}
		return s.result(origin, p, MethodResolved, string(kind), false, resolution.Placeholders), nil

	case assets.KindArchive:
		return s.persistArchive(origin, data)

	default:
		// 未知载荷原样落盘，由调用方决定怎么用
		p, err := s.disk.WriteAsset(origin, "asset.bin", data)
		if err != nil {
			return nil, err
		}
		return s.result(origin, p, MethodDirect, string(kind), false, 0), nil
	}
}

// persistArchive 归档载荷：提取条目，优先取现成的二进制场景条目，
// 其次尝试在内存中打包多文件场景，都不行则整包落盘后做依赖解析。
func (s *Service) persistArchive(origin string, data []byte) (*ResolveResult, error) {
	entries, err := assets.ExtractEntries(data)
	if err != nil {
		return nil, err
	}

	// 几何缓冲与纹理入共享池，供其他资产的兜底查找复用
	for _, e := range entries.Entries() {
		if assets.IsImagePath(e.Path) || assets.IsBufferPath(e.Path) {
			s.disk.StashInPool(e.Path, e.Data)
		}
	}

	if glbPath, ok := entries.FindByExt(".glb"); ok {
		blob, _ := entries.Get(glbPath)
		p, err := s.disk.WriteAsset(origin, "scene.glb", blob)
		if err != nil {
			return nil, err
		}
		return s.result(origin, p, MethodArchive, string(assets.KindBinaryScene), false, 0), nil
	}

	scenePath, ok := entries.FindByExt(".gltf")
	if !ok {
		return nil, types.NewError(types.ErrUnresolvedReference, "archive contains no scene entry").
			WithOrigin(origin)
	}
	sceneData, _ := entries.Get(scenePath)

	if packed, err := assets.Pack(sceneData, entries); err == nil {
		p, werr := s.disk.WriteAsset(origin, "scene.glb", packed)
		if werr != nil {
			return nil, werr
		}
		s.metrics.RecordPackedScene(int64(len(packed)))
		return s.result(origin, p, MethodPacked, string(assets.KindBinaryScene), false, 0), nil
	}

	// 打包失败：退回多文件表示，整包落盘后跑依赖解析
	var diskScene string
	for _, e := range entries.Entries() {
		p, werr := s.disk.WriteAsset(origin, e.Path, e.Data)
		if werr != nil {
			return nil, werr
		}
		if e.Path == scenePath {
			diskScene = p
		}
	}
	resolution, rerr := s.resolver.Resolve(diskScene, s.disk.AssetDir(origin))
	if rerr != nil {
		return nil, types.NewError(types.ErrUnresolvedReference, "scene file unreadable").
			WithCause(rerr).WithOrigin(origin)
	}
	return s.result(origin, diskScene, MethodResolved, string(assets.KindTextScene), false, resolution.Placeholders), nil
}

// ReadAsset 资产服务器读路径：内存缓存 → 磁盘分层查找。
// 磁盘命中回填内存缓存。
func (s *Service) ReadAsset(origin, relPath string) ([]byte, string, error) {
	key := memKey(origin, relPath)
	if data, ok := s.mem.Get(key); ok {
		s.metrics.RecordCacheHit(TierMemory)
		return data, TierMemory, nil
	}

	res, err := s.disk.Read(origin, relPath)
	if err != nil {
		s.metrics.RecordCacheMiss("all")
		return nil, "", err
	}

	s.metrics.RecordCacheHit(res.Tier)
	s.mem.Set(key, res.Data)
	return res.Data, res.Tier, nil
}

func (s *Service) result(origin, absPath, method, kind string, cached bool, placeholders int) *ResolveResult {
	return &ResolveResult{
		Origin:       origin,
		URL:          path.Join("/assets", SanitizeOrigin(origin), filepath.Base(absPath)),
		Path:         absPath,
		Method:       method,
		Kind:         kind,
		Cached:       cached,
		Placeholders: placeholders,
	}
}

// memKey 内存缓存键：来源与缓存内相对路径
func memKey(origin, relPath string) string {
	return origin + "::" + relPath
}

// kindOf 从缓存文件的扩展名推断分类
func kindOf(p string) string {
	switch filepath.Ext(p) {
	case ".glb":
		return string(assets.KindBinaryScene)
	case ".gltf":
		return string(assets.KindTextScene)
	default:
		return string(assets.KindUnknown)
	}
}
