package cache

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// 🧪 LRU 测试
// =============================================================================

func TestLRU_SetAndGet(t *testing.T) {
	c := NewLRU[string](2, 0)

	c.Set("a", "1")
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "1", v)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](2, 0)

	c.Set("a", 1)
	c.Set("b", 2)
	// 访问 a，使 b 成为最久未使用
	_, _ = c.Get("a")
	c.Set("c", 3)

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)

	size, capacity, evictions := c.Stats()
	assert.Equal(t, 2, size)
	assert.Equal(t, 2, capacity)
	assert.Equal(t, uint64(1), evictions)
}

func TestLRU_UpdateExisting(t *testing.T) {
	c := NewLRU[int](2, 0)
	c.Set("a", 1)
	c.Set("a", 2)

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_TTL(t *testing.T) {
	c := NewLRU[string](4, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Set("a", "1")
	_, ok := c.Get("a")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestLRU_DeleteFuncAndClear(t *testing.T) {
	c := NewLRU[int](10, 0)
	c.Set("conv1:a", 1)
	c.Set("conv1:b", 2)
	c.Set("conv2:a", 3)

	removed := c.DeleteFunc(func(key string) bool { return strings.HasPrefix(key, "conv1:") })
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, c.Len())

	c.Delete("conv2:a")
	assert.Equal(t, 0, c.Len())

	c.Set("x", 1)
	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("x")
	assert.False(t, ok)
}

func TestLRU_ZeroCapacity(t *testing.T) {
	c := NewLRU[int](0, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	assert.Equal(t, 1, c.Len())
}

// Property: 任意写入序列后条目数不超过容量，且最后写入的键一定可读
func TestProperty_LRU_BoundedCapacity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("size never exceeds capacity", prop.ForAll(
		func(capacity int, keys []int) bool {
			c := NewLRU[int](capacity, 0)
			for _, k := range keys {
				c.Set(fmt.Sprintf("k%d", k), k)
			}
			if c.Len() > capacity {
				return false
			}
			if len(keys) == 0 {
				return true
			}
			last := keys[len(keys)-1]
			v, ok := c.Get(fmt.Sprintf("k%d", last))
			return ok && v == last
		},
		gen.IntRange(1, 16),
		gen.SliceOf(gen.IntRange(0, 40)),
	))

	properties.TestingRun(t)
}
