package handlers

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/fitroom/assets"
	"github.com/BaSui01/fitroom/config"
	"github.com/BaSui01/fitroom/store"
	"github.com/BaSui01/fitroom/types"
)

// =============================================================================
// 🧱 资产 Handler
// =============================================================================
// 资产服务器的 HTTP 面：按相对路径读缓存（分层兜底查找）、按来源
// 标识触发解析、带主机白名单的远程 URL 代理。

// RemoteFetcher 代理用的远程抓取器
type RemoteFetcher interface {
	FetchURL(ctx context.Context, rawURL string) (*store.FetchResult, error)
}

// AssetsHandler 资产端点处理器
type AssetsHandler struct {
	svc    *store.Service
	remote RemoteFetcher
	proxy  config.ProxyConfig
	logger *zap.Logger
}

// NewAssetsHandler 创建资产处理器
func NewAssetsHandler(svc *store.Service, remote RemoteFetcher, proxyCfg config.ProxyConfig, logger *zap.Logger) *AssetsHandler {
	return &AssetsHandler{
		svc:    svc,
		remote: remote,
		proxy:  proxyCfg,
		logger: logger.With(zap.String("component", "assets_handler")),
	}
}

// HandleServe 处理 GET /assets/{asset}/{path...}：从缓存分层读取
func (h *AssetsHandler) HandleServe(w http.ResponseWriter, r *http.Request) {
	origin := r.PathValue("asset")
	relPath := r.PathValue("path")
	if origin == "" || relPath == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "asset and path are required", h.logger)
		return
	}

	data, tier, err := h.svc.ReadAsset(origin, relPath)
	if err != nil {
		if nf, ok := err.(*store.NotFoundError); ok {
			WriteJSON(w, http.StatusNotFound, Response{
				Success: false,
				Error: &ErrorInfo{
					Code:     string(types.ErrAssetNotFound),
					Message:  nf.Error(),
					Origin:   nf.Origin,
					Searched: nf.Searched,
				},
			})
			return
		}
		WriteServiceError(w, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", sceneMediaType(relPath))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Cache-Tier", tier)
	w.Write(data)
}

// resolveRequest POST /api/v1/assets/resolve 的请求体
type resolveRequest struct {
	// Origin 市场模型 UID 或远程 URL
	Origin string `json:"origin"`
}

// HandleResolve 处理 POST /api/v1/assets/resolve
func (h *AssetsHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if strings.TrimSpace(req.Origin) == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "origin is required", h.logger)
		return
	}

	res, err := h.svc.Resolve(r.Context(), req.Origin)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	WriteSuccess(w, res)
}

// HandleProxy 处理 GET /api/v1/proxy?url=…：白名单内的远程抓取，
// 归档尽力转成单个二进制场景，其余原样透传。
func (h *AssetsHandler) HandleProxy(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "url query parameter is required", h.logger)
		return
	}

	if !h.hostAllowed(rawURL) {
		WriteError(w, types.NewError(types.ErrHostNotAllowed, "host is not on the proxy allowlist").
			WithOrigin(rawURL), h.logger)
		return
	}

	fetched, err := h.remote.FetchURL(r.Context(), rawURL)
	if err != nil {
		WriteServiceError(w, err, h.logger)
		return
	}
	if h.proxy.MaxBodyBytes > 0 && int64(len(fetched.Data)) > h.proxy.MaxBodyBytes {
		WriteError(w, types.NewError(types.ErrArchiveTooLarge,
			"remote payload exceeds limit of "+strconv.FormatInt(h.proxy.MaxBodyBytes, 10)+" bytes").
			WithOrigin(rawURL), h.logger)
		return
	}

	data, mediaType := h.coerce(fetched)
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

// coerce 归档尽力变成单个 GLB：现成的二进制场景条目直接返回，
// 多文件场景在内存中打包；失败时原样透传。
func (h *AssetsHandler) coerce(fetched *store.FetchResult) ([]byte, string) {
	kind := assets.Classify(fetched.Data, fetched.SourceURL, fetched.ContentType)
	if kind != assets.KindArchive {
		return fetched.Data, payloadMediaType(kind, fetched)
	}

	entries, err := assets.ExtractEntries(fetched.Data)
	if err != nil {
		h.logger.Warn("proxy archive extraction failed", zap.String("url", fetched.SourceURL), zap.Error(err))
		return fetched.Data, "application/zip"
	}

	if p, ok := entries.FindByExt(".glb"); ok {
		blob, _ := entries.Get(p)
		return blob, "model/gltf-binary"
	}
	if p, ok := entries.FindByExt(".gltf"); ok {
		sceneData, _ := entries.Get(p)
		if packed, err := assets.Pack(sceneData, entries); err == nil {
			return packed, "model/gltf-binary"
		} else {
			h.logger.Warn("proxy scene packing failed", zap.String("url", fetched.SourceURL), zap.Error(err))
		}
	}
	return fetched.Data, "application/zip"
}

// hostAllowed 按主机名子串匹配白名单
func (h *AssetsHandler) hostAllowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range h.proxy.AllowedHosts {
		if allowed != "" && strings.Contains(host, strings.ToLower(allowed)) {
			return true
		}
	}
	return false
}

func sceneMediaType(p string) string {
	switch strings.ToLower(path.Ext(p)) {
	case ".glb":
		return "model/gltf-binary"
	case ".gltf":
		return "model/gltf+json"
	default:
		return assets.MediaTypeForPath(p)
	}
}

func payloadMediaType(kind assets.PayloadKind, fetched *store.FetchResult) string {
	switch kind {
	case assets.KindBinaryScene:
		return "model/gltf-binary"
	case assets.KindTextScene:
		return "model/gltf+json"
	}
	if fetched.ContentType != "" {
		return fetched.ContentType
	}
	return "application/octet-stream"
}
