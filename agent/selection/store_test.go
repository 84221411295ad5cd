package selection

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setupTestStore(t *testing.T) *GormDecisionStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// :memory: 每个连接各自一个库
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := NewGormDecisionStore(db)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestGormDecisionStore_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	ok := true

	d := decision("c1", 2, "cfo", 3.5)
	d.SelectionRationale = map[string]any{"reason": "budget question"}
	d.CandidateScores = map[string]float64{"cfo": 0.9, "cto": 0.2}
	d.PreviousSpeakers = []string{"user"}
	d.RAGHints = []string{"Q3 budget"}
	d.SuccessIndicator = &ok
	require.NoError(t, store.SaveDecision(ctx, d))
	require.NoError(t, store.SaveDecision(ctx, decision("c1", 1, "cto", 1)))
	require.NoError(t, store.SaveDecision(ctx, decision("c2", 1, "cmo", 1)))

	got, err := store.Decisions(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "cto", got[0].SelectedAgent)
	assert.Equal(t, "cfo", got[1].SelectedAgent)
	assert.Equal(t, "budget question", got[1].SelectionRationale["reason"])
	assert.Equal(t, 0.9, got[1].CandidateScores["cfo"])
	assert.Equal(t, []string{"user"}, got[1].PreviousSpeakers)
	require.NotNil(t, got[1].SuccessIndicator)
	assert.True(t, *got[1].SuccessIndicator)
}

func TestGormDecisionStore_Evaluation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.Evaluation(ctx, "c1")
	assert.True(t, errors.Is(err, ErrConversationNotFound))

	require.NoError(t, store.SaveEvaluation(ctx, QualitySummary{
		ConversationID:      "c1",
		ConversationType:    TypeAnalysis,
		TotalTurns:          4,
		BaselineTurns:       8,
		QualityScore:        0.7,
		SpeakerDistribution: map[string]int{"cfo": 2, "cto": 2},
	}))

	rec, err := store.Evaluation(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 0.7, rec.QualityScore)
	assert.Equal(t, 2, rec.SpeakerDistribution["cto"])

	// 同一会话只允许一条评估
	assert.Error(t, store.SaveEvaluation(ctx, QualitySummary{ConversationID: "c1"}))
}

func TestRecorder_PersistsThroughStore(t *testing.T) {
	store := setupTestStore(t)
	r := NewRecorder(DefaultConfig(), WithStore(store), WithLogger(zaptest.NewLogger(t)))
	ctx := context.Background()

	record(t, r, "c1", "x", "y", "x")
	summary, err := r.EvaluateConversationQuality(ctx, "c1", true, ptr(0.5), TypeStrategy)
	require.NoError(t, err)

	decisions, err := store.Decisions(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, decisions, 3)

	rec, err := store.Evaluation(ctx, "c1")
	require.NoError(t, err)
	assert.InDelta(t, summary.QualityScore, rec.QualityScore, 1e-9)
	assert.Equal(t, TypeStrategy, rec.ConversationType)
}

type failingStore struct{}

func (failingStore) SaveDecision(context.Context, SelectionDecision) error {
	return errors.New("db down")
}

func (failingStore) SaveEvaluation(context.Context, QualitySummary) error {
	return errors.New("db down")
}

func (failingStore) Decisions(context.Context, string) ([]SelectionDecision, error) {
	return nil, errors.New("db down")
}

func TestRecorder_StoreFailureIsNotFatal(t *testing.T) {
	r := NewRecorder(DefaultConfig(), WithStore(failingStore{}))

	record(t, r, "c1", "x")
	_, err := r.EvaluateConversationQuality(context.Background(), "c1", true, nil, "")

	assert.NoError(t, err)
	assert.Equal(t, 1, r.GetKPIDashboard().TotalSelections)
}
