package assets

import (
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// =============================================================================
// 🔗 依赖解析器
// =============================================================================
// 对已落盘的多文件场景，确保每个被引用的几何缓冲与纹理都真实存在
// 于场景期望的路径上。查找阶梯：原路径 → 资产目录树 → 共享资源池 →
// 模糊匹配 → 占位合成。除场景文件本身不可读外从不硬失败。

// 解析方法常量，记录每个引用最终是如何满足的
const (
	MethodExact       = "exact"
	MethodTree        = "tree"
	MethodPool        = "pool"
	MethodFuzzy       = "fuzzy"
	MethodPlaceholder = "placeholder"
)

// RefOutcome 单个引用的解析结果
type RefOutcome struct {
	// Method 命中的查找阶梯层级
	Method string `json:"method"`
	// FinalURI 重写后的引用 URI（未重写时等于原 URI）
	FinalURI string `json:"final_uri"`
	// Source 模糊匹配时实际选中的文件名
	Source string `json:"source,omitempty"`
}

// Resolution 一次完整解析的诊断记录
type Resolution struct {
	// Outcomes 以场景中的原始 URI 为键
	Outcomes map[string]RefOutcome `json:"outcomes"`
	// Placeholders 合成的占位资源数量
	Placeholders int `json:"placeholders"`
	// SceneRewritten 场景文件是否被重写
	SceneRewritten bool `json:"scene_rewritten"`
}

// Resolver 依赖解析器
type Resolver struct {
	poolPath string
	logger   *zap.Logger
}

// NewResolver 创建依赖解析器。poolPath 为共享资源池目录的绝对路径。
func NewResolver(poolPath string, logger *zap.Logger) *Resolver {
	return &Resolver{
		poolPath: poolPath,
		logger:   logger.With(zap.String("component", "resolver")),
	}
}

// Resolve 解析场景文件的全部外部引用。assetRoot 是该资产的顶层目录，
// 树内查找以它为根；为空时取场景文件所在目录。
//
// 每个缺失引用按阶梯逐层尝试，第 2–5 层的命中同时把文件复制进
// 共享资源池，后续同名查找无需再走模糊匹配。引用被重定位时场景
// 文件会被改写后覆盖原文件。
func (r *Resolver) Resolve(sceneFilePath, assetRoot string) (*Resolution, error) {
	data, err := os.ReadFile(sceneFilePath)
	if err != nil {
		return nil, err
	}

	scene, err := ParseScene(data)
	if err != nil {
		return nil, err
	}

	sceneDir := filepath.Dir(sceneFilePath)
	if assetRoot == "" {
		assetRoot = sceneDir
	}

	res := &Resolution{Outcomes: make(map[string]RefOutcome)}
	rewritten := false

	resolveRef := func(uri string, isImage bool) string {
		if uri == "" || IsDataURI(uri) {
			return uri
		}

		normalized := normalizeRefURI(uri)
		if normalized == "" {
			// "." 或纯穿越段，锚定后没剩下任何路径
			if isImage {
				normalized = "placeholder.png"
			} else {
				normalized = "placeholder.bin"
			}
		}
		expected := filepath.Join(sceneDir, filepath.FromSlash(normalized))
		base := path.Base(normalized)
		outcome := RefOutcome{FinalURI: normalized}

		switch {
		case fileExists(expected):
			outcome.Method = MethodExact

		case r.copyFromTree(assetRoot, base, expected):
			outcome.Method = MethodTree

		case r.copyFromPool(base, expected):
			outcome.Method = MethodPool

		default:
			if source, ok := r.copyFuzzyMatch(assetRoot, base, expected, isImage); ok {
				outcome.Method = MethodFuzzy
				outcome.Source = source
			} else {
				r.writePlaceholder(expected, base, isImage)
				outcome.Method = MethodPlaceholder
				res.Placeholders++
			}
		}

		res.Outcomes[uri] = outcome
		if normalized != uri {
			rewritten = true
		}
		return normalized
	}

	for i := range scene.Buffers {
		scene.Buffers[i].URI = resolveRef(scene.Buffers[i].URI, false)
	}
	for i := range scene.Images {
		scene.Images[i].URI = resolveRef(scene.Images[i].URI, true)
	}

	if rewritten {
		encoded, err := scene.Encode()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(sceneFilePath, encoded, 0o644); err != nil {
			return nil, err
		}
		res.SceneRewritten = true
	}

	r.logger.Debug("scene dependencies resolved",
		zap.String("scene", sceneFilePath),
		zap.Int("references", len(res.Outcomes)),
		zap.Int("placeholders", res.Placeholders),
	)

	return res, nil
}

// =============================================================================
// 查找阶梯各层
// =============================================================================

// copyFromTree 在资产目录树内找同名文件并复制到期望路径
func (r *Resolver) copyFromTree(assetRoot, base, expected string) bool {
	var found string
	filepath.WalkDir(assetRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if filepath.Base(p) == base && p != expected {
			found = p
			return fs.SkipAll
		}
		return nil
	})

	if found == "" {
		return false
	}
	if err := copyFile(found, expected); err != nil {
		r.logger.Warn("tree copy failed", zap.String("src", found), zap.Error(err))
		return false
	}
	r.copyToPool(expected, base)
	return true
}

// copyFromPool 从共享资源池按 basename 复制
func (r *Resolver) copyFromPool(base, expected string) bool {
	src := filepath.Join(r.poolPath, base)
	if !fileExists(src) {
		return false
	}
	if err := copyFile(src, expected); err != nil {
		r.logger.Warn("pool copy failed", zap.String("src", src), zap.Error(err))
		return false
	}
	return true
}

// copyFuzzyMatch 在资产树与资源池的同类文件里做最长公共子序列打分，
// 得分超过 max(3, len/4) 才接受最佳候选。
func (r *Resolver) copyFuzzyMatch(assetRoot, base, expected string, isImage bool) (string, bool) {
	sameKind := func(p string) bool {
		if isImage {
			return IsImagePath(p)
		}
		return IsBufferPath(p)
	}

	var bestPath string
	var bestScore int

	consider := func(p string) {
		candidateBase := filepath.Base(p)
		if candidateBase == base || !sameKind(candidateBase) {
			return
		}
		score := lcsLength(base, candidateBase)
		if score > bestScore {
			bestScore = score
			bestPath = p
		}
	}

	filepath.WalkDir(assetRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		consider(p)
		return nil
	})
	if entries, err := os.ReadDir(r.poolPath); err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				consider(filepath.Join(r.poolPath, e.Name()))
			}
		}
	}

	threshold := len(base) / 4
	if threshold < 3 {
		threshold = 3
	}
	if bestPath == "" || bestScore <= threshold {
		return "", false
	}

	if err := copyFile(bestPath, expected); err != nil {
		r.logger.Warn("fuzzy copy failed", zap.String("src", bestPath), zap.Error(err))
		return "", false
	}
	r.copyToPool(expected, base)

	r.logger.Info("fuzzy-matched scene reference",
		zap.String("wanted", base),
		zap.String("matched", filepath.Base(bestPath)),
		zap.Int("score", bestScore),
	)
	return filepath.Base(bestPath), true
}

// writePlaceholder 合成占位资源写到期望路径并入池
func (r *Resolver) writePlaceholder(expected, base string, isImage bool) {
	var data []byte
	if isImage {
		data = PlaceholderPNG()
	} else {
		data = PlaceholderBuffer()
	}

	if err := os.MkdirAll(filepath.Dir(expected), 0o755); err != nil {
		r.logger.Warn("placeholder mkdir failed", zap.String("path", expected), zap.Error(err))
		return
	}
	if err := os.WriteFile(expected, data, 0o644); err != nil {
		r.logger.Warn("placeholder write failed", zap.String("path", expected), zap.Error(err))
		return
	}
	r.copyToPool(expected, base)

	r.logger.Info("synthesized placeholder resource",
		zap.String("path", expected),
		zap.Bool("image", isImage),
	)
}

// copyToPool 把已解析的资源复制进共享池，同名覆盖（后写优先）
func (r *Resolver) copyToPool(src, base string) {
	if err := os.MkdirAll(r.poolPath, 0o755); err != nil {
		return
	}
	dst := filepath.Join(r.poolPath, base)
	if err := copyFile(src, dst); err != nil {
		r.logger.Warn("pool write failed", zap.String("dst", dst), zap.Error(err))
	}
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// normalizeRefURI 统一引用 URI：去百分号转义、正斜杠、清理 "./" 前缀。
// 场景 JSON 与归档条目名来自同一份不可信下载，穿越段与绝对路径
// 一律锚定在场景目录内，引用永远不会逃逸资产目录。
func normalizeRefURI(uri string) string {
	u := uri
	if decoded, err := url.PathUnescape(u); err == nil {
		u = decoded
	}
	u = strings.ReplaceAll(u, "\\", "/")
	u = strings.TrimPrefix(path.Clean("/"+u), "/")
	return u
}

func fileExists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// lcsLength 计算两个字符串最长公共子序列的长度
func lcsLength(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}

	return prev[len(b)]
}
