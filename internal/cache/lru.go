package cache

import (
	"sync"
	"time"
)

// =============================================================================
// 🗂️ LRU 本地缓存（双向链表，O(1) 读写与淘汰，可选 TTL）
// =============================================================================

// LRU 容量受限的本地缓存，ttl<=0 表示永不过期
type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*lruNode[V]
	head     *lruNode[V] // 最近使用
	tail     *lruNode[V] // 最久未使用
	now      func() time.Time

	evictions uint64
}

type lruNode[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	prev      *lruNode[V]
	next      *lruNode[V]
}

// NewLRU 创建 LRU 缓存，capacity<=0 时取 1
func NewLRU[V any](capacity int, ttl time.Duration) *LRU[V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &LRU[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*lruNode[V]),
		now:      time.Now,
	}
}

// Get 读取缓存并刷新使用顺序
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	node, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if c.expired(node) {
		c.removeNode(node)
		delete(c.items, key)
		return zero, false
	}
	c.moveToHead(node)
	return node.value, true
}

// Set 写入缓存，超出容量时淘汰最久未使用的条目
func (c *LRU[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[key]; ok {
		node.value = value
		node.expiresAt = c.expiry()
		c.moveToHead(node)
		return
	}

	if len(c.items) >= c.capacity {
		c.evictTail()
	}

	node := &lruNode[V]{key: key, value: value, expiresAt: c.expiry()}
	c.items[key] = node
	c.addToHead(node)
}

// Delete 删除条目
func (c *LRU[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[key]; ok {
		c.removeNode(node)
		delete(c.items, key)
	}
}

// DeleteFunc 删除所有 key 满足条件的条目，返回删除数量
func (c *LRU[V]) DeleteFunc(match func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, node := range c.items {
		if match(key) {
			c.removeNode(node)
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// Clear 清空缓存
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*lruNode[V])
	c.head = nil
	c.tail = nil
}

// Len 当前条目数（含尚未惰性清理的过期条目）
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats 返回条目数、容量与累计淘汰数
func (c *LRU[V]) Stats() (size, capacity int, evictions uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items), c.capacity, c.evictions
}

func (c *LRU[V]) expiry() time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(c.ttl)
}

func (c *LRU[V]) expired(node *lruNode[V]) bool {
	return !node.expiresAt.IsZero() && c.now().After(node.expiresAt)
}

// addToHead 添加节点到头部 O(1)
func (c *LRU[V]) addToHead(node *lruNode[V]) {
	node.prev = nil
	node.next = c.head
	if c.head != nil {
		c.head.prev = node
	}
	c.head = node
	if c.tail == nil {
		c.tail = node
	}
}

// removeNode 从链表中移除节点 O(1)
func (c *LRU[V]) removeNode(node *lruNode[V]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		c.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		c.tail = node.prev
	}
	node.prev, node.next = nil, nil
}

func (c *LRU[V]) moveToHead(node *lruNode[V]) {
	if node == c.head {
		return
	}
	c.removeNode(node)
	c.addToHead(node)
}

// evictTail 淘汰尾部节点 O(1)
func (c *LRU[V]) evictTail() {
	if c.tail == nil {
		return
	}
	tail := c.tail
	delete(c.items, tail.key)
	c.removeNode(tail)
	c.evictions++
}
