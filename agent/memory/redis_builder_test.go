package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/convergio/internal/cache"
	"github.com/BaSui01/convergio/types"
)

func newTestBuilder(t *testing.T) *RedisContextBuilder {
	t.Helper()

	mr := miniredis.RunT(t)
	manager, err := cache.NewManager(cache.Config{Addr: mr.Addr(), KeyPrefix: "test:", DefaultTTL: time.Hour}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return NewRedisContextBuilder(manager, DefaultBuilderConfig(), zap.NewNop())
}

func TestRedisContextBuilder_RanksFacts(t *testing.T) {
	b := newTestBuilder(t)
	ctx := context.Background()

	require.NoError(t, b.Remember(ctx, "u1", "Q3 marketing budget is 2M"))
	require.NoError(t, b.Remember(ctx, "u1", "Security audit scheduled in May"))
	require.NoError(t, b.Remember(ctx, "u1", "Office coffee preference is espresso"))
	require.NoError(t, b.Remember(ctx, "u2", "marketing budget for another tenant"))

	got, err := b.BuildMemoryContext(ctx, Request{
		ConversationID:      "c1",
		UserID:              "u1",
		AgentName:           "cmo",
		Message:             "What's the marketing budget for Q3?",
		MaxFacts:            5,
		SimilarityThreshold: 0.3,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Q3 marketing budget is 2M"}, got.Facts)
	assert.Contains(t, got.Content, "Facts:\n- Q3 marketing budget is 2M")
	assert.False(t, got.Empty())
}

func TestRedisContextBuilder_MaxFacts(t *testing.T) {
	b := newTestBuilder(t)
	ctx := context.Background()

	for _, f := range []string{"budget plan alpha", "budget plan beta", "budget plan gamma"} {
		require.NoError(t, b.Remember(ctx, "u1", f))
	}

	got, err := b.BuildMemoryContext(ctx, Request{UserID: "u1", Message: "budget plan", MaxFacts: 2})
	require.NoError(t, err)
	assert.Len(t, got.Facts, 2)
}

func TestRedisContextBuilder_HistoryAndInsights(t *testing.T) {
	b := newTestBuilder(t)

	history := []types.TurnRecord{
		{Turn: 1, Agent: "cfo", Content: "The marketing budget looks tight"},
		{Turn: 2, Agent: "cso", Content: "Security review needed"},
	}
	got, err := b.BuildMemoryContext(context.Background(), Request{
		ConversationID: "c1",
		AgentName:      "cmo",
		Message:        "Can we raise the marketing budget?",
		History:        history,
	})
	require.NoError(t, err)

	assert.Empty(t, got.Facts)
	assert.Equal(t, []string{"Turn 1 (cfo): The marketing budget looks tight"}, got.History)
	assert.Equal(t, []string{
		"2 agent(s) have contributed so far: cfo, cso",
		"Respond to the latest point raised by cso",
	}, got.Insights)
}

func TestRedisContextBuilder_CancelledContext(t *testing.T) {
	b := newTestBuilder(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.BuildMemoryContext(ctx, Request{UserID: "u1", Message: "budget"})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRedisContextBuilder_RememberValidation(t *testing.T) {
	b := newTestBuilder(t)
	assert.Error(t, b.Remember(context.Background(), "", "fact"))
	assert.Error(t, b.Remember(context.Background(), "u1", "   "))
}

func TestContext_Empty(t *testing.T) {
	var nilCtx *Context
	assert.True(t, nilCtx.Empty())
	assert.True(t, (&Context{Content: "  "}).Empty())
	assert.False(t, (&Context{Insights: []string{"x"}}).Empty())
}

func TestJaccard(t *testing.T) {
	a := tokenize("marketing budget review")
	b := tokenize("budget review for security")
	assert.InDelta(t, 2.0/4.0, jaccard(a, b), 1e-9)
	assert.Zero(t, jaccard(a, nil))
}
