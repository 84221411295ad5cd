package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// InMemoryFactStoreConfig 进程内事实存储配置
type InMemoryFactStoreConfig struct {
	// MaxKeys 最多保留的列表数，0 表示不限制
	MaxKeys int

	// Now 测试用时钟，默认 time.Now
	Now func() time.Time
}

type factList struct {
	values    []string
	updatedAt time.Time
	expiresAt time.Time
}

// InMemoryFactStore 带 TTL 的进程内有界列表存储，实现 FactStore。
// 未启用 Redis 时作为 RedisContextBuilder 的后端，适合本地开发与单实例部署。
type InMemoryFactStore struct {
	mu      sync.Mutex
	entries map[string]*factList

	maxKeys int
	now     func() time.Time
	logger  *zap.Logger
}

// NewInMemoryFactStore 创建进程内事实存储
func NewInMemoryFactStore(config InMemoryFactStoreConfig, logger *zap.Logger) *InMemoryFactStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &InMemoryFactStore{
		entries: make(map[string]*factList),
		maxKeys: config.MaxKeys,
		now:     now,
		logger:  logger.With(zap.String("component", "fact_store_inmemory")),
	}
}

// AppendBounded 追加到列表末尾并只保留最后 maxLen 条，ttl>0 时刷新过期时间
func (s *InMemoryFactStore) AppendBounded(ctx context.Context, key string, maxLen int, ttl time.Duration, values ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("key is required")
	}
	if len(values) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.cleanupExpiredLocked(now)

	ent, ok := s.entries[key]
	if !ok {
		ent = &factList{}
		s.entries[key] = ent
	}
	ent.values = append(ent.values, values...)
	if maxLen > 0 && len(ent.values) > maxLen {
		ent.values = append([]string(nil), ent.values[len(ent.values)-maxLen:]...)
	}
	ent.updatedAt = now
	if ttl > 0 {
		ent.expiresAt = now.Add(ttl)
	}

	s.evictIfNeededLocked()
	return nil
}

// Range 返回列表全部元素，不存在时返回空切片
func (s *InMemoryFactStore) Range(ctx context.Context, key string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupExpiredLocked(s.now())

	ent, ok := s.entries[key]
	if !ok {
		return []string{}, nil
	}
	return append([]string(nil), ent.values...), nil
}

// Delete 删除列表
func (s *InMemoryFactStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}

// Len 当前列表数
func (s *InMemoryFactStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *InMemoryFactStore) cleanupExpiredLocked(now time.Time) {
	for k, ent := range s.entries {
		if !ent.expiresAt.IsZero() && !now.Before(ent.expiresAt) {
			delete(s.entries, k)
		}
	}
}

// evictIfNeededLocked 超出 MaxKeys 时淘汰最久未写入的列表
func (s *InMemoryFactStore) evictIfNeededLocked() {
	if s.maxKeys <= 0 || len(s.entries) <= s.maxKeys {
		return
	}

	type kv struct {
		key       string
		updatedAt time.Time
	}
	all := make([]kv, 0, len(s.entries))
	for k, ent := range s.entries {
		all = append(all, kv{key: k, updatedAt: ent.updatedAt})
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].updatedAt.Before(all[j].updatedAt)
	})

	toEvict := len(s.entries) - s.maxKeys
	for i := 0; i < toEvict; i++ {
		delete(s.entries, all[i].key)
	}
	s.logger.Debug("fact lists evicted", zap.Int("evicted", toEvict))
}
