package marketplace

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/fitroom/internal/metrics"
	"github.com/BaSui01/fitroom/types"
)

// =============================================================================
// 🚦 限速请求队列
// =============================================================================
// 串行化对市场 API 的全部调用：单工作协程按 FIFO 逐个出队，
// 保证相邻请求间隔不小于 1000/N ms。限流响应（429）按固定倍增
// 表（base×1,2,4,8,16）重试至多 MaxRetries 次；其他错误立刻失败。
// 单个条目的失败不影响队列继续处理后续条目。

// ErrQueueClosed 队列已关闭
var ErrQueueClosed = errors.New("marketplace queue closed")

// Call 队列执行的一次市场调用
type Call func(ctx context.Context) (interface{}, error)

type queueItem struct {
	ctx      context.Context
	op       string
	call     Call
	enqueued time.Time
	done     chan queueResult
}

type queueResult struct {
	value interface{}
	err   error
}

// QueueConfig 队列配置
type QueueConfig struct {
	// RequestsPerSecond 每秒最大请求数 N，请求间隔 1000/N ms
	RequestsPerSecond float64
	// MaxRetries 429 重试次数上限
	MaxRetries int
	// BackoffBase 退避基准，第 i 次重试等待 base×2^(i-1)
	BackoffBase time.Duration
}

// Queue 市场 API 的限速 FIFO 队列
type Queue struct {
	cfg     QueueConfig
	limiter *rate.Limiter
	items   chan *queueItem
	metrics *metrics.Collector
	logger  *zap.Logger

	mu      sync.RWMutex
	closed  bool
	drained chan struct{}

	sleep func(ctx context.Context, d time.Duration) error // 测试注入
}

// NewQueue 创建并启动队列的工作协程
func NewQueue(cfg QueueConfig, collector *metrics.Collector, logger *zap.Logger) *Queue {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = time.Second
	}

	q := &Queue{
		cfg: cfg,
		// burst=1：永远不允许两次调用挤进同一个间隔
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		items:   make(chan *queueItem, 64),
		metrics: collector,
		logger:  logger.With(zap.String("component", "marketplace_queue")),
		drained: make(chan struct{}),
		sleep:   sleepCtx,
	}
	go q.worker()
	return q
}

// Enqueue 把一次市场调用排入队列并等待其结果。
// 调用方的 ctx 取消时立即返回，但已入队的条目仍会被工作协程处理。
func (q *Queue) Enqueue(ctx context.Context, op string, call Call) (interface{}, error) {
	item := &queueItem{
		ctx:      ctx,
		op:       op,
		call:     call,
		enqueued: time.Now(),
		done:     make(chan queueResult, 1),
	}

	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return nil, ErrQueueClosed
	}
	select {
	case q.items <- item:
		q.mu.RUnlock()
		q.metrics.SetQueueDepth(len(q.items))
	case <-ctx.Done():
		q.mu.RUnlock()
		return nil, ctx.Err()
	}

	select {
	case res := <-item.done:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close 停止接收新条目并在处理完已入队条目后退出工作协程
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.items)
	}
	q.mu.Unlock()
	<-q.drained
}

func (q *Queue) worker() {
	defer close(q.drained)

	for item := range q.items {
		q.metrics.SetQueueDepth(len(q.items))
		q.metrics.RecordQueueWait(time.Since(item.enqueued))

		value, err := q.process(item)
		item.done <- queueResult{value: value, err: err}
	}
}

// process 执行一个条目：每次尝试前等够请求间隔，限流时按退避表重试
func (q *Queue) process(item *queueItem) (interface{}, error) {
	var lastErr error

	for attempt := 0; ; attempt++ {
		if err := q.limiter.Wait(item.ctx); err != nil {
			return nil, err
		}

		value, err := item.call(item.ctx)
		if err == nil {
			q.metrics.RecordMarketplaceRequest(item.op, "success")
			return value, nil
		}
		lastErr = err

		if types.GetErrorCode(err) != types.ErrThrottled {
			q.metrics.RecordMarketplaceRequest(item.op, "error")
			return nil, err
		}
		if attempt >= q.cfg.MaxRetries {
			q.metrics.RecordMarketplaceRequest(item.op, "throttled")
			return nil, lastErr
		}

		delay := q.cfg.BackoffBase << attempt
		q.metrics.RecordMarketplaceRetry()
		q.logger.Warn("marketplace throttled, backing off",
			zap.String("operation", item.op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
		)
		if err := q.sleep(item.ctx, delay); err != nil {
			return nil, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
