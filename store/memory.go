package store

import (
	"container/list"
	"sync"
	"time"
)

// =============================================================================
// 🧠 内存缓存
// =============================================================================
// 进程内的读穿透缓存，按来源 URL 存放归档派生的二进制块。条目数有
// 上界（最旧先逐出），带 TTL，超过字节上限的载荷直接拒绝缓存以
// 约束内存。

type memoryEntry struct {
	key      string
	data     []byte
	storedAt time.Time
}

// MemoryCache 有界的内存二进制块缓存
type MemoryCache struct {
	mu         sync.Mutex
	maxEntries int
	ttl        time.Duration
	maxBytes   int64
	order      *list.List
	entries    map[string]*list.Element

	now func() time.Time // 测试注入
}

// NewMemoryCache 创建内存缓存。maxEntries<=0 时取 50，
// maxBytes<=0 时不限制单条目大小。
func NewMemoryCache(maxEntries int, ttl time.Duration, maxBytes int64) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 50
	}
	return &MemoryCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		maxBytes:   maxBytes,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
		now:        time.Now,
	}
}

// Get 返回未过期的条目。过期条目被当场移除并按未命中处理。
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*memoryEntry)
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		c.removeLocked(el)
		return nil, false
	}
	return entry.data, true
}

// Set 缓存一个二进制块。超过字节上限的载荷被拒绝（返回 false），
// 条目数达到上界时逐出最旧的条目。
func (c *MemoryCache) Set(key string, data []byte) bool {
	if c.maxBytes > 0 && int64(len(data)) > c.maxBytes {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
	for c.order.Len() >= c.maxEntries {
		c.removeLocked(c.order.Front())
	}

	el := c.order.PushBack(&memoryEntry{key: key, data: data, storedAt: c.now()})
	c.entries[key] = el
	return true
}

// Delete 移除一个条目
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
}

// Len 返回当前条目数
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *MemoryCache) removeLocked(el *list.Element) {
	entry := el.Value.(*memoryEntry)
	c.order.Remove(el)
	delete(c.entries, entry.key)
}
