package tryon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/fitroom/config"
	"github.com/BaSui01/fitroom/types"
)

// =============================================================================
// 📸 2D 试穿
// =============================================================================
// 外部图像生成 API 的客户端：提交用户照片 + 服装图片，轮询任务
// 直到生成合成预览图。

// Request 一次 2D 试穿请求
type Request struct {
	// PersonImageURL 用户照片地址
	PersonImageURL string `json:"person_image_url"`
	// GarmentImageURL 服装图片地址
	GarmentImageURL string `json:"garment_image_url"`
	// Category 服装部位提示（upper/lower/dress）
	Category string `json:"category,omitempty"`
}

// Result 试穿结果
type Result struct {
	TaskID string `json:"task_id"`
	// ImageURL 合成预览图地址
	ImageURL string        `json:"image_url"`
	Elapsed  time.Duration `json:"-"`
}

// 任务状态
const (
	statusPending   = "pending"
	statusRunning   = "running"
	statusCompleted = "completed"
	statusFailed    = "failed"
)

// Provider 图像生成 API 客户端
type Provider struct {
	cfg    config.TryOnConfig
	client *http.Client
	logger *zap.Logger
}

// NewProvider 创建 2D 试穿客户端
func NewProvider(cfg config.TryOnConfig, logger *zap.Logger) *Provider {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	return &Provider{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger.With(zap.String("component", "tryon")),
	}
}

// Enabled 报告是否配置了外部 API
func (p *Provider) Enabled() bool {
	return p.cfg.BaseURL != ""
}

// TryOn 提交试穿任务并轮询到完成。整体时长受 cfg.Timeout 约束。
func (p *Provider) TryOn(ctx context.Context, req *Request) (*Result, error) {
	if !p.Enabled() {
		return nil, types.NewError(types.ErrServiceUnavailable, "2d try-on provider not configured")
	}
	if req.PersonImageURL == "" || req.GarmentImageURL == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "person and garment image urls are required")
	}

	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	taskID, err := p.submit(ctx, req)
	if err != nil {
		return nil, err
	}

	imageURL, err := p.poll(ctx, taskID)
	if err != nil {
		return nil, err
	}

	p.logger.Info("try-on completed",
		zap.String("task_id", taskID),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Result{TaskID: taskID, ImageURL: imageURL, Elapsed: time.Since(start)}, nil
}

type submitResponse struct {
	TaskID string `json:"task_id"`
}

type taskResponse struct {
	Status   string `json:"status"`
	ImageURL string `json:"image_url"`
	Error    string `json:"error,omitempty"`
}

func (p *Provider) submit(ctx context.Context, req *Request) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", types.NewError(types.ErrInternalError, "encode try-on request").WithCause(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+"/tasks", bytes.NewReader(body))
	if err != nil {
		return "", types.NewError(types.ErrInvalidRequest, "invalid try-on endpoint").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", types.NewError(types.ErrUpstreamError, "try-on submit failed").WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", types.NewError(types.ErrUpstreamError,
			fmt.Sprintf("try-on submit returned status %d", resp.StatusCode)).WithHTTPStatus(resp.StatusCode)
	}

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || out.TaskID == "" {
		return "", types.NewError(types.ErrUpstreamError, "malformed try-on submit response").WithCause(err)
	}
	return out.TaskID, nil
}

func (p *Provider) poll(ctx context.Context, taskID string) (string, error) {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		task, err := p.getTask(ctx, taskID)
		if err != nil {
			return "", err
		}

		switch task.Status {
		case statusCompleted:
			if task.ImageURL == "" {
				return "", types.NewError(types.ErrUpstreamError, "try-on completed without image url")
			}
			return task.ImageURL, nil
		case statusFailed:
			return "", types.NewError(types.ErrUpstreamError, "try-on task failed: "+task.Error)
		case statusPending, statusRunning, "":
			// 继续轮询
		default:
			return "", types.NewError(types.ErrUpstreamError, "unknown try-on task status: "+task.Status)
		}

		select {
		case <-ctx.Done():
			return "", types.NewError(types.ErrTimeout, "try-on polling timed out").WithCause(ctx.Err())
		case <-ticker.C:
		}
	}
}

func (p *Provider) getTask(ctx context.Context, taskID string) (*taskResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/tasks/"+taskID, nil)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "invalid try-on endpoint").WithCause(err)
	}
	if p.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "try-on poll failed").WithCause(err).WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewError(types.ErrUpstreamError,
			fmt.Sprintf("try-on poll returned status %d", resp.StatusCode)).WithHTTPStatus(resp.StatusCode)
	}

	var task taskResponse
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "malformed try-on task response").WithCause(err)
	}
	return &task, nil
}
