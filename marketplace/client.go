package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/fitroom/config"
	"github.com/BaSui01/fitroom/internal/cache"
	"github.com/BaSui01/fitroom/store"
	"github.com/BaSui01/fitroom/types"
)

// =============================================================================
// 🛒 市场 API 客户端
// =============================================================================
// 3D 资产市场的 REST 客户端（Bearer Token 认证）。对 API 的每次
// 调用都经过限速队列；模型包本体从市场返回的下载地址直接抓取，
// 不占用 API 配额。元数据可选地缓存在 Redis。

// Model 市场上的一个 3D 模型
type Model struct {
	UID          string `json:"uid"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	ViewerURL    string `json:"viewer_url,omitempty"`
	VertexCount  int    `json:"vertex_count,omitempty"`
	License      string `json:"license,omitempty"`
}

// DownloadInfo 模型包的下载地址与大小
type DownloadInfo struct {
	URL  string `json:"url"`
	Size int64  `json:"size,omitempty"`
}

// Client 市场客户端
type Client struct {
	cfg    config.MarketplaceConfig
	queue  *Queue
	cache  *cache.Manager // 可为 nil
	client *http.Client
	logger *zap.Logger
}

// NewClient 创建市场客户端。cacheManager 为 nil 时元数据不走 Redis。
func NewClient(cfg config.MarketplaceConfig, queue *Queue, cacheManager *cache.Manager, logger *zap.Logger) *Client {
	return &Client{
		cfg:    cfg,
		queue:  queue,
		cache:  cacheManager,
		client: &http.Client{Timeout: cfg.DownloadTimeout},
		logger: logger.With(zap.String("component", "marketplace")),
	}
}

// Search 按关键词搜索可下载的模型
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Model, error) {
	if limit <= 0 {
		limit = 24
	}

	v, err := c.queue.Enqueue(ctx, "search", func(ctx context.Context) (interface{}, error) {
		endpoint := fmt.Sprintf("%s/search?type=models&downloadable=true&count=%d&q=%s",
			c.cfg.BaseURL, limit, url.QueryEscape(query))

		var payload struct {
			Results []Model `json:"results"`
		}
		if err := c.getJSON(ctx, endpoint, c.cfg.MetadataTimeout, &payload); err != nil {
			return nil, err
		}
		return payload.Results, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Model), nil
}

// Metadata 获取单个模型的元数据，命中 Redis 缓存时不打市场 API
func (c *Client) Metadata(ctx context.Context, uid string) (*Model, error) {
	key := cache.MetadataKey(uid)
	if c.cache != nil {
		var cached Model
		if err := c.cache.GetJSON(ctx, key, &cached); err == nil {
			return &cached, nil
		}
	}

	v, err := c.queue.Enqueue(ctx, "metadata", func(ctx context.Context) (interface{}, error) {
		var model Model
		if err := c.getJSON(ctx, c.cfg.BaseURL+"/models/"+url.PathEscape(uid), c.cfg.MetadataTimeout, &model); err != nil {
			return nil, err
		}
		return &model, nil
	})
	if err != nil {
		return nil, err
	}

	model := v.(*Model)
	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, key, model, c.cfg.MetadataCacheTTL); err != nil {
			c.logger.Warn("metadata cache write failed", zap.String("uid", uid), zap.Error(err))
		}
	}
	return model, nil
}

// DownloadInfo 换取模型包的临时下载地址
func (c *Client) DownloadInfo(ctx context.Context, uid string) (*DownloadInfo, error) {
	v, err := c.queue.Enqueue(ctx, "download", func(ctx context.Context) (interface{}, error) {
		var payload struct {
			Gltf *DownloadInfo `json:"gltf"`
			GLB  *DownloadInfo `json:"glb"`
		}
		endpoint := c.cfg.BaseURL + "/models/" + url.PathEscape(uid) + "/download"
		if err := c.getJSON(ctx, endpoint, c.cfg.MetadataTimeout, &payload); err != nil {
			return nil, err
		}

		// GLB 包优先：省一次打包
		if payload.GLB != nil && payload.GLB.URL != "" {
			return payload.GLB, nil
		}
		if payload.Gltf != nil && payload.Gltf.URL != "" {
			return payload.Gltf, nil
		}
		return nil, types.NewError(types.ErrAssetNotFound, "model has no downloadable package").WithOrigin(uid)
	})
	if err != nil {
		return nil, err
	}
	return v.(*DownloadInfo), nil
}

// Fetch 实现 store.Fetcher：来源是 URL 时直接抓取，否则当作
// 市场模型 UID，先换下载地址再抓包。
func (c *Client) Fetch(ctx context.Context, origin string) (*store.FetchResult, error) {
	if strings.Contains(origin, "://") {
		return c.FetchURL(ctx, origin)
	}

	info, err := c.DownloadInfo(ctx, origin)
	if err != nil {
		return nil, err
	}
	return c.FetchURL(ctx, info.URL)
}

// FetchURL 抓取任意远程地址的原始字节（下载地址、代理目标）
func (c *Client) FetchURL(ctx context.Context, rawURL string) (*store.FetchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.DownloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "invalid download url").WithCause(err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "download failed").WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode, rawURL); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "reading download body failed").WithCause(err)
	}

	return &store.FetchResult{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
		SourceURL:   rawURL,
	}, nil
}

// getJSON 带认证头请求市场 API 并解码 JSON 响应
func (c *Client) getJSON(ctx context.Context, endpoint string, timeout time.Duration, dest interface{}) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return types.NewError(types.ErrInvalidRequest, "invalid marketplace endpoint").WithCause(err)
	}
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return types.NewError(types.ErrUpstreamError, "marketplace request failed").WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode, endpoint); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return types.NewError(types.ErrUpstreamError, "malformed marketplace response").WithCause(err)
	}
	return nil
}

// statusError 把 HTTP 状态码映射为服务错误码。429 标记为可重试的
// THROTTLED，由队列按退避表处理。
func statusError(status int, target string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return types.NewError(types.ErrThrottled, "marketplace rate limit exceeded").
			WithHTTPStatus(status).WithRetryable(true)
	case status == http.StatusNotFound:
		return types.NewError(types.ErrAssetNotFound, "remote resource not found: "+target).
			WithHTTPStatus(status)
	case status >= 400:
		return types.NewError(types.ErrUpstreamError, fmt.Sprintf("remote returned status %d for %s", status, target)).
			WithHTTPStatus(status)
	}
	return nil
}
