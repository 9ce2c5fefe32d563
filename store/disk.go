package store

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/fitroom/config"
)

// =============================================================================
// 💾 磁盘缓存
// =============================================================================
// 缓存根目录下每个已解析资产占一个顶层目录，目录名由来源标识净化
// 而来；另有一个共享资源池目录按 basename 存放所有见过的几何缓冲
// 与纹理。目录内容即事实来源，没有索引文件。

// 读取命中的缓存层级
const (
	TierMemory = "memory"
	TierExact  = "exact"
	TierPool   = "pool"
	TierScan   = "scan"
)

// ReadResult 一次磁盘读取的结果
type ReadResult struct {
	Data    []byte
	AbsPath string
	// Tier 命中层级：exact / pool / scan
	Tier string
}

// NotFoundError 全部层级未命中时的结构化响应，列出搜索过的位置
type NotFoundError struct {
	Origin   string   `json:"origin"`
	RelPath  string   `json:"path"`
	Searched []string `json:"searched"`
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("asset %s/%s not found (searched %d locations)",
		e.Origin, e.RelPath, len(e.Searched))
}

// DiskStore 资产的持久化存储
type DiskStore struct {
	root        string
	poolPath    string
	searchDepth int
	logger      *zap.Logger
}

// NewDiskStore 创建磁盘存储并确保根目录与资源池目录存在
func NewDiskStore(cfg config.CacheConfig, logger *zap.Logger) (*DiskStore, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve cache root: %w", err)
	}

	s := &DiskStore{
		root:        root,
		poolPath:    filepath.Join(root, cfg.PoolDir),
		searchDepth: cfg.SearchDepth,
		logger:      logger.With(zap.String("component", "disk_store")),
	}
	if s.searchDepth <= 0 {
		s.searchDepth = 3
	}

	if err := os.MkdirAll(s.poolPath, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directories: %w", err)
	}
	return s, nil
}

// Root 返回缓存根目录的绝对路径
func (s *DiskStore) Root() string { return s.root }

// PoolPath 返回共享资源池目录的绝对路径
func (s *DiskStore) PoolPath() string { return s.poolPath }

// SanitizeOrigin 把来源标识（市场 ID 或远程 URL）净化为目录名。
// 同一来源永远得到同一目录名，保证每个来源至多一份权威副本。
func SanitizeOrigin(origin string) string {
	s := origin
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if len(out) > 120 {
		out = out[:120]
	}
	if out == "" {
		out = "asset"
	}
	return out
}

// AssetDir 返回来源对应的资产目录绝对路径
func (s *DiskStore) AssetDir(origin string) string {
	return filepath.Join(s.root, SanitizeOrigin(origin))
}

// WriteAsset 把一个文件写入来源的资产目录，返回绝对路径。
// 同路径覆盖写：重新解析不产生重复副本。
func (s *DiskStore) WriteAsset(origin, relPath string, data []byte) (string, error) {
	rel := cleanRelPath(relPath)
	if rel == "" {
		return "", fmt.Errorf("invalid asset path %q", relPath)
	}

	abs := filepath.Join(s.AssetDir(origin), filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return "", err
	}
	return abs, nil
}

// StashInPool 把资源按 basename 写入共享池，同名后写覆盖
func (s *DiskStore) StashInPool(name string, data []byte) {
	base := filepath.Base(filepath.FromSlash(name))
	if base == "." || base == string(filepath.Separator) {
		return
	}
	if err := os.WriteFile(filepath.Join(s.poolPath, base), data, 0o644); err != nil {
		s.logger.Warn("pool stash failed", zap.String("name", base), zap.Error(err))
	}
}

// PrimaryScene 返回资产目录下的主场景文件（优先 .glb，其次 .gltf）
func (s *DiskStore) PrimaryScene(origin string) (string, bool) {
	dir := s.AssetDir(origin)
	for _, name := range []string{"scene.glb", "scene.gltf"} {
		p := filepath.Join(dir, name)
		if fileExists(p) {
			return p, true
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	for _, ext := range []string{".glb", ".gltf"} {
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ext) {
				return filepath.Join(dir, e.Name()), true
			}
		}
	}
	return "", false
}

// Fresh 报告来源的缓存副本是否存在且未超出新鲜度窗口。未知类型
// 载荷的原样副本（asset.bin）同样算缓存命中，不会每次解析都重新抓取。
func (s *DiskStore) Fresh(origin string, window time.Duration) (string, bool) {
	p, ok := s.PrimaryScene(origin)
	if !ok {
		raw := filepath.Join(s.AssetDir(origin), "asset.bin")
		if !fileExists(raw) {
			return "", false
		}
		p = raw
	}
	info, err := os.Stat(p)
	if err != nil {
		return "", false
	}
	if window > 0 && time.Since(info.ModTime()) > window {
		return p, false
	}
	return p, true
}

// Read 分层读取资产文件：资产目录内精确路径 → 共享池按 basename →
// 整个缓存根下限深递归搜索。池命中回填精确路径，递归命中同时入池，
// 后续读取走更快的层级。全部未命中返回 *NotFoundError。
func (s *DiskStore) Read(origin, relPath string) (*ReadResult, error) {
	rel := cleanRelPath(relPath)
	if rel == "" {
		return nil, fmt.Errorf("invalid asset path %q", relPath)
	}
	base := filepath.Base(filepath.FromSlash(rel))
	exact := filepath.Join(s.AssetDir(origin), filepath.FromSlash(rel))
	searched := []string{exact}

	if data, err := os.ReadFile(exact); err == nil {
		return &ReadResult{Data: data, AbsPath: exact, Tier: TierExact}, nil
	}

	pooled := filepath.Join(s.poolPath, base)
	searched = append(searched, pooled)
	if data, err := os.ReadFile(pooled); err == nil {
		s.backfill(exact, data)
		return &ReadResult{Data: data, AbsPath: pooled, Tier: TierPool}, nil
	}

	searched = append(searched, fmt.Sprintf("%s (depth<=%d)", s.root, s.searchDepth))
	if found := s.scanForBasename(base); found != "" {
		data, err := os.ReadFile(found)
		if err == nil {
			s.StashInPool(base, data)
			s.backfill(exact, data)
			return &ReadResult{Data: data, AbsPath: found, Tier: TierScan}, nil
		}
	}

	return nil, &NotFoundError{Origin: origin, RelPath: rel, Searched: searched}
}

// backfill 把命中的内容补写到精确路径
func (s *DiskStore) backfill(abs string, data []byte) {
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		s.logger.Warn("backfill failed", zap.String("path", abs), zap.Error(err))
	}
}

// scanForBasename 在缓存根下做限深递归搜索
func (s *DiskStore) scanForBasename(base string) string {
	var found string
	filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(s.root, p)
		if relErr != nil {
			return nil
		}
		depth := strings.Count(rel, string(filepath.Separator))
		if d.IsDir() {
			if depth >= s.searchDepth {
				return fs.SkipDir
			}
			return nil
		}
		if filepath.Base(p) == base {
			found = p
			return fs.SkipAll
		}
		return nil
	})
	return found
}

// cleanRelPath 规范化请求路径并拒绝越出资产目录的路径
func cleanRelPath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = filepath.ToSlash(filepath.Clean("/" + p))
	p = strings.TrimPrefix(p, "/")
	if p == "" || p == "." {
		return ""
	}
	return p
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}
