package marketplace

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/BaSui01/fitroom/internal/metrics"
	"github.com/BaSui01/fitroom/types"
)

var queueTestSeq atomic.Int64

func newTestQueue(t *testing.T, cfg QueueConfig) *Queue {
	t.Helper()
	collector := metrics.NewCollector(
		fmt.Sprintf("queuetest%d", queueTestSeq.Add(1)), zap.NewNop())
	q := NewQueue(cfg, collector, zap.NewNop())
	t.Cleanup(q.Close)
	return q
}

func TestQueue_SuccessPassesValueThrough(t *testing.T) {
	q := newTestQueue(t, QueueConfig{RequestsPerSecond: 1000})

	v, err := q.Enqueue(context.Background(), "metadata", func(ctx context.Context) (interface{}, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestQueue_SpacingBetweenCalls(t *testing.T) {
	// N=50 → 相邻调用至少间隔 20ms
	q := newTestQueue(t, QueueConfig{RequestsPerSecond: 50})

	var mu sync.Mutex
	var stamps []time.Time

	const burst = 4
	var wg sync.WaitGroup
	for i := 0; i < burst; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.Enqueue(context.Background(), "search", func(ctx context.Context) (interface{}, error) {
				mu.Lock()
				stamps = append(stamps, time.Now())
				mu.Unlock()
				return nil, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, stamps, burst)
	sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
	for i := 1; i < burst; i++ {
		gap := stamps[i].Sub(stamps[i-1])
		assert.GreaterOrEqual(t, gap, 18*time.Millisecond, "调用 %d 与 %d 间隔过小", i-1, i)
	}
}

// 任意 M>=2 的突发下，相邻调用间隔都不小于 1000/N ms
func TestQueue_SpacingProperty(t *testing.T) {
	if testing.Short() {
		t.Skip("timing-sensitive property test")
	}

	rapid.Check(t, func(t *rapid.T) {
		burst := rapid.IntRange(2, 4).Draw(t, "burst")
		collector := metrics.NewCollector(
			fmt.Sprintf("queuetest%d", queueTestSeq.Add(1)), zap.NewNop())
		q := NewQueue(QueueConfig{RequestsPerSecond: 200}, collector, zap.NewNop())
		defer q.Close()

		var mu sync.Mutex
		var stamps []time.Time
		var wg sync.WaitGroup
		for i := 0; i < burst; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				q.Enqueue(context.Background(), "op", func(ctx context.Context) (interface{}, error) {
					mu.Lock()
					stamps = append(stamps, time.Now())
					mu.Unlock()
					return nil, nil
				})
			}()
		}
		wg.Wait()

		sort.Slice(stamps, func(i, j int) bool { return stamps[i].Before(stamps[j]) })
		for i := 1; i < len(stamps); i++ {
			if gap := stamps[i].Sub(stamps[i-1]); gap < 4*time.Millisecond {
				t.Fatalf("gap %v below spacing floor", gap)
			}
		}
	})
}

func TestQueue_RetriesOnThrottle(t *testing.T) {
	q := newTestQueue(t, QueueConfig{
		RequestsPerSecond: 1000,
		MaxRetries:        5,
		BackoffBase:       time.Second,
	})

	var delays []time.Duration
	q.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	var attempts int
	v, err := q.Enqueue(context.Background(), "download", func(ctx context.Context) (interface{}, error) {
		attempts++
		if attempts <= 2 {
			return nil, types.NewError(types.ErrThrottled, "slow down").WithRetryable(true)
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, attempts)
	// 退避表按倍增展开
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, delays)
}

func TestQueue_ThrottleExhaustsSchedule(t *testing.T) {
	q := newTestQueue(t, QueueConfig{
		RequestsPerSecond: 1000,
		MaxRetries:        5,
		BackoffBase:       time.Second,
	})

	var delays []time.Duration
	q.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	var attempts int
	_, err := q.Enqueue(context.Background(), "download", func(ctx context.Context) (interface{}, error) {
		attempts++
		return nil, types.NewError(types.ErrThrottled, "slow down").WithRetryable(true)
	})

	require.Error(t, err)
	assert.Equal(t, types.ErrThrottled, types.GetErrorCode(err))
	// 首次尝试 + 5 次重试，完整退避表 1,2,4,8,16
	assert.Equal(t, 6, attempts)
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
	}, delays)
}

func TestQueue_NonThrottleFailsImmediately(t *testing.T) {
	q := newTestQueue(t, QueueConfig{RequestsPerSecond: 1000, MaxRetries: 5})

	var slept bool
	q.sleep = func(ctx context.Context, d time.Duration) error {
		slept = true
		return nil
	}

	var attempts int
	_, err := q.Enqueue(context.Background(), "metadata", func(ctx context.Context) (interface{}, error) {
		attempts++
		return nil, types.NewError(types.ErrUpstreamError, "boom")
	})

	require.Error(t, err)
	assert.Equal(t, types.ErrUpstreamError, types.GetErrorCode(err))
	assert.Equal(t, 1, attempts)
	assert.False(t, slept)
}

func TestQueue_SurvivesItemFailure(t *testing.T) {
	q := newTestQueue(t, QueueConfig{RequestsPerSecond: 1000})

	_, err := q.Enqueue(context.Background(), "a", func(ctx context.Context) (interface{}, error) {
		return nil, types.NewError(types.ErrUpstreamError, "boom")
	})
	require.Error(t, err)

	// 前一个条目失败不影响队列继续处理
	v, err := q.Enqueue(context.Background(), "b", func(ctx context.Context) (interface{}, error) {
		return "still alive", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "still alive", v)
}

func TestQueue_EnqueueAfterClose(t *testing.T) {
	collector := metrics.NewCollector(
		fmt.Sprintf("queuetest%d", queueTestSeq.Add(1)), zap.NewNop())
	q := NewQueue(QueueConfig{RequestsPerSecond: 1000}, collector, zap.NewNop())
	q.Close()

	_, err := q.Enqueue(context.Background(), "op", func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueue_CallerContextCancel(t *testing.T) {
	q := newTestQueue(t, QueueConfig{RequestsPerSecond: 1000})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Enqueue(ctx, "op", func(ctx context.Context) (interface{}, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
