package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/BaSui01/convergio/types"
)

// FactStore 有界列表存储，cache.Manager 即满足该接口
type FactStore interface {
	AppendBounded(ctx context.Context, key string, maxLen int, ttl time.Duration, values ...string) error
	Range(ctx context.Context, key string) ([]string, error)
}

// BuilderConfig Redis 上下文构建器配置
type BuilderConfig struct {
	// 每个用户保留的事实条数
	MaxFactsPerUser int `yaml:"max_facts_per_user" json:"max_facts_per_user"`
	// 事实过期时间，0 使用存储默认值
	FactTTL time.Duration `yaml:"fact_ttl" json:"fact_ttl"`
	// 关联历史最多返回几轮
	MaxHistory int `yaml:"max_history" json:"max_history"`
}

// DefaultBuilderConfig 返回默认配置
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		MaxFactsPerUser: 200,
		FactTTL:         7 * 24 * time.Hour,
		MaxHistory:      3,
	}
}

// RedisContextBuilder 基于 Redis 事实列表与关键词相似度的上下文构建器
type RedisContextBuilder struct {
	store  FactStore
	config BuilderConfig
	logger *zap.Logger
}

// NewRedisContextBuilder 创建构建器
func NewRedisContextBuilder(store FactStore, config BuilderConfig, logger *zap.Logger) *RedisContextBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxHistory <= 0 {
		config.MaxHistory = DefaultBuilderConfig().MaxHistory
	}
	return &RedisContextBuilder{
		store:  store,
		config: config,
		logger: logger.With(zap.String("component", "memory_context_builder")),
	}
}

// Remember 为用户记录一条事实
func (b *RedisContextBuilder) Remember(ctx context.Context, userID, fact string) error {
	fact = strings.TrimSpace(fact)
	if userID == "" || fact == "" {
		return fmt.Errorf("user id and fact are required")
	}
	if err := b.store.AppendBounded(ctx, factsKey(userID), b.config.MaxFactsPerUser, b.config.FactTTL, fact); err != nil {
		return fmt.Errorf("remember fact: %w", err)
	}
	return nil
}

type scoredFact struct {
	text  string
	score float64
}

// BuildMemoryContext implements ContextBuilder.
func (b *RedisContextBuilder) BuildMemoryContext(ctx context.Context, req Request) (*Context, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Context{}
	query := tokenize(req.Message)

	if req.UserID != "" {
		facts, err := b.store.Range(ctx, factsKey(req.UserID))
		if err != nil {
			return nil, fmt.Errorf("load facts: %w", err)
		}
		out.Facts = rankFacts(query, facts, req.SimilarityThreshold, req.MaxFacts)
	}

	out.History = b.relatedHistory(query, req.History)
	out.Insights = insights(req.AgentName, req.History)
	out.Content = render(out)

	b.logger.Debug("memory context built",
		zap.String("conversation_id", req.ConversationID),
		zap.String("agent", req.AgentName),
		zap.Int("facts", len(out.Facts)),
		zap.Int("history", len(out.History)),
	)
	return out, nil
}

func rankFacts(query map[string]struct{}, facts []string, threshold float64, limit int) []string {
	scored := make([]scoredFact, 0, len(facts))
	for _, f := range facts {
		s := jaccard(query, tokenize(f))
		if s <= 0 || s < threshold {
			continue
		}
		scored = append(scored, scoredFact{text: f, score: s})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	out := make([]string, len(scored))
	for i, s := range scored {
		out[i] = s.text
	}
	return out
}

// relatedHistory 从最近往前找与当前消息有词汇重叠的轮次，按时间顺序返回
func (b *RedisContextBuilder) relatedHistory(query map[string]struct{}, history []types.TurnRecord) []string {
	if len(query) == 0 {
		return nil
	}
	var picked []string
	for i := len(history) - 1; i >= 0 && len(picked) < b.config.MaxHistory; i-- {
		t := history[i]
		if jaccard(query, tokenize(t.Content)) <= 0 {
			continue
		}
		picked = append(picked, fmt.Sprintf("Turn %d (%s): %s", t.Turn, displayName(t.Agent), truncate(t.Content, 160)))
	}
	for l, r := 0, len(picked)-1; l < r; l, r = l+1, r-1 {
		picked[l], picked[r] = picked[r], picked[l]
	}
	return picked
}

func insights(agent string, history []types.TurnRecord) []string {
	speakers := types.Speakers(history)
	if len(speakers) == 0 {
		return nil
	}
	out := []string{fmt.Sprintf("%d agent(s) have contributed so far: %s", len(speakers), strings.Join(speakers, ", "))}
	last := history[len(history)-1]
	if last.Agent != "" && last.Agent != agent && last.Role != types.RoleUser {
		out = append(out, fmt.Sprintf("Respond to the latest point raised by %s", last.Agent))
	}
	return out
}

func render(c *Context) string {
	var sb strings.Builder
	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(title)
		sb.WriteString(":\n")
		for _, it := range items {
			sb.WriteString("- ")
			sb.WriteString(it)
			sb.WriteString("\n")
		}
	}
	section("Facts", c.Facts)
	section("Related History", c.History)
	section("Insights", c.Insights)
	return strings.TrimRight(sb.String(), "\n")
}

func factsKey(userID string) string {
	return "memory:facts:" + userID
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "this": {}, "that": {}, "are": {},
	"was": {}, "you": {}, "our": {}, "from": {}, "have": {}, "has": {}, "what": {},
	"how": {}, "should": {}, "would": {}, "could": {}, "will": {}, "about": {},
}

func tokenize(s string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len([]rune(w)) < 3 {
			continue
		}
		if _, skip := stopwords[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}

func displayName(agent string) string {
	if agent == "" {
		return "unknown"
	}
	return agent
}
