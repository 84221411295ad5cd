package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()

	mr := miniredis.RunT(t)

	config := Config{
		Addr:       mr.Addr(),
		KeyPrefix:  "test:",
		DefaultTTL: time.Minute,
	}

	manager, err := NewManager(config, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func TestManager_SetAndGet(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "turn", "enhanced", time.Minute))

	value, err := manager.Get(ctx, "turn")
	require.NoError(t, err)
	assert.Equal(t, "enhanced", value)

	// 前缀写入底层键
	assert.True(t, mr.Exists("test:turn"))
}

func TestManager_GetMiss(t *testing.T) {
	_, manager := setupTestRedis(t)

	value, err := manager.Get(context.Background(), "missing")
	assert.True(t, IsCacheMiss(err))
	assert.Empty(t, value)
}

func TestManager_DefaultTTL(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "ttl", "v", 0))
	assert.Equal(t, time.Minute, mr.TTL("test:ttl"))

	mr.FastForward(2 * time.Minute)
	_, err := manager.Get(ctx, "ttl")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_Delete(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "a", "1", 0))
	require.NoError(t, manager.Set(ctx, "b", "2", 0))
	require.NoError(t, manager.Delete(ctx, "a", "b"))
	require.NoError(t, manager.Delete(ctx))

	_, err := manager.Get(ctx, "a")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_AppendBounded(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, manager.AppendBounded(ctx, "facts", 3, 0, fmt.Sprintf("f%d", i)))
	}
	require.NoError(t, manager.AppendBounded(ctx, "facts", 3, 0))

	vals, err := manager.Range(ctx, "facts")
	require.NoError(t, err)
	assert.Equal(t, []string{"f3", "f4", "f5"}, vals)

	empty, err := manager.Range(ctx, "none")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestManager_Closed(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())

	assert.ErrorIs(t, manager.Ping(ctx), ErrClosed)
	_, err := manager.Get(ctx, "x")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, manager.Set(ctx, "x", "y", 0), ErrClosed)
}

func TestNewManager_Unreachable(t *testing.T) {
	manager, err := NewManager(Config{Addr: "127.0.0.1:1"}, nil)
	assert.Nil(t, manager)
	assert.Error(t, err)
}

func TestManager_ConcurrentOperations(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("concurrent-%d", id)
			assert.NoError(t, manager.Set(ctx, key, "value", time.Minute))
			value, err := manager.Get(ctx, key)
			assert.NoError(t, err)
			assert.Equal(t, "value", value)
		}(i)
	}
	wg.Wait()
}
