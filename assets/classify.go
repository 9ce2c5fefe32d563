package assets

import (
	"bytes"
	"net/url"
	"path"
	"strings"
)

// =============================================================================
// 🔍 载荷分类
// =============================================================================

// PayloadKind 下载载荷的分类结果
type PayloadKind string

const (
	// KindArchive 压缩容器（ZIP）
	KindArchive PayloadKind = "archive"
	// KindBinaryScene 自包含二进制场景（GLB）
	KindBinaryScene PayloadKind = "binary-scene"
	// KindTextScene 多文件场景描述（glTF JSON）
	KindTextScene PayloadKind = "text-scene"
	// KindUnknown 无法识别
	KindUnknown PayloadKind = "unknown"
)

var (
	zipMagic = []byte{0x50, 0x4B, 0x03, 0x04} // "PK\x03\x04"
	glbMagic = []byte{0x67, 0x6C, 0x54, 0x46} // "glTF"
)

// Classify 判定载荷类型。检测顺序：魔数（覆盖一切提示）→ 源 URL
// 扩展名 → 声明的 content-type。所有调用点共用本函数，
// 避免检测规则在多处漂移。
func Classify(data []byte, sourceURL, contentType string) PayloadKind {
	// (a) 魔数
	if len(data) >= 4 {
		if bytes.HasPrefix(data, zipMagic) {
			return KindArchive
		}
		if bytes.HasPrefix(data, glbMagic) {
			return KindBinaryScene
		}
	}
	if looksLikeSceneJSON(data) {
		return KindTextScene
	}

	// (b) URL 扩展名
	switch extOf(sourceURL) {
	case ".zip":
		return KindArchive
	case ".glb":
		return KindBinaryScene
	case ".gltf":
		return KindTextScene
	}

	// (c) content-type
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "zip"):
		return KindArchive
	case strings.Contains(ct, "model/gltf-binary"):
		return KindBinaryScene
	case strings.Contains(ct, "model/gltf+json"):
		return KindTextScene
	}

	return KindUnknown
}

// looksLikeSceneJSON 判断字节是否像 glTF 场景描述：JSON 对象且
// 带有必选的 "asset" 键。
func looksLikeSceneJSON(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n\xef\xbb\xbf")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return bytes.Contains(trimmed, []byte(`"asset"`))
}

// extOf 提取 URL 路径部分的小写扩展名，忽略 query string。
func extOf(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	return strings.ToLower(path.Ext(p))
}

// MediaTypeForPath 根据文件扩展名推断嵌入资源的媒体类型。
// 图片按扩展名给出具体类型，几何缓冲等其余资源一律 octet-stream。
func MediaTypeForPath(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// IsImagePath 判断路径是否属于图片资源
func IsImagePath(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".png", ".jpg", ".jpeg", ".webp", ".ktx2", ".bmp", ".gif":
		return true
	}
	return false
}

// IsBufferPath 判断路径是否属于几何缓冲资源
func IsBufferPath(p string) bool {
	return strings.ToLower(path.Ext(p)) == ".bin"
}
