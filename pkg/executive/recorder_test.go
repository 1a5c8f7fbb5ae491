package executive

import (
	"context"
	"testing"

	"github.com/headelf/headelf/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *persistence.Store {
	t.Helper()
	store, err := persistence.New(t.TempDir(), persistence.WithoutAudit())
	require.NoError(t, err)
	return store
}

func TestDecodeResult(t *testing.T) {
	t.Run("full result", func(t *testing.T) {
		result, err := DecodeResult(map[string]any{
			"recommendation":     map[string]any{"action": "migrate"},
			"analysis":           map[string]any{"risk": "medium"},
			"confidence":         0.87,
			"execution_metadata": map[string]any{"duration_ms": 1200},
			"ignored":            true,
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"action": "migrate"}, result.Recommendation)
		assert.Equal(t, map[string]any{"risk": "medium"}, result.Analysis)
		assert.Equal(t, 0.87, result.Confidence)
		assert.Equal(t, map[string]any{"duration_ms": 1200}, result.ExecutionMetadata)
	})

	t.Run("defaults", func(t *testing.T) {
		result, err := DecodeResult(map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{}, result.Recommendation)
		assert.Equal(t, map[string]any{}, result.Analysis)
		assert.Equal(t, map[string]any{}, result.ExecutionMetadata)
		assert.Equal(t, 0.0, result.Confidence)
	})

	t.Run("numeric string confidence", func(t *testing.T) {
		result, err := DecodeResult(map[string]any{"confidence": "0.5"})
		require.NoError(t, err)
		assert.Equal(t, 0.5, result.Confidence)
	})

	t.Run("wrong shape", func(t *testing.T) {
		_, err := DecodeResult(map[string]any{"analysis": []string{"a"}})
		assert.Error(t, err)
	})
}

func TestPersistDecisionResult(t *testing.T) {
	store := newStore(t)
	recorder := NewRecorder(store)
	ctx := context.Background()

	id, err := recorder.PersistDecisionResult(ctx, "CTO", "technology_strategy", "Evaluate cloud migration",
		map[string]any{
			"recommendation": map[string]any{"action": "migrate"},
			"confidence":     0.87,
		},
		map[string]any{"user_id": "demo_cto", "session_id": "s-1", "industry": "retail"},
	)
	require.NoError(t, err)

	rec, err := store.GetDecision(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "demo_cto", rec.UserID)
	assert.Equal(t, "s-1", rec.SessionID)
	assert.Equal(t, "CTO", rec.ExecutiveRole)
	assert.Equal(t, "retail", rec.Context["industry"])
	assert.Equal(t, "migrate", rec.Recommendation["action"])
	require.NotNil(t, rec.Confidence)
	assert.Equal(t, 0.87, *rec.Confidence)
}

func TestPersistDecisionResult_DefaultsIdentity(t *testing.T) {
	store := newStore(t)
	recorder := NewRecorder(store)
	ctx := context.Background()

	id, err := recorder.PersistDecisionResult(ctx, "CFO", "budget", "Q3 plan", map[string]any{}, nil)
	require.NoError(t, err)

	rec, err := store.GetDecision(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "anonymous", rec.UserID)
	assert.Equal(t, "unknown", rec.SessionID)
	require.NotNil(t, rec.Confidence)
	assert.Equal(t, 0.0, *rec.Confidence)
}

func TestPersistDecisionResult_BadResult(t *testing.T) {
	recorder := NewRecorder(newStore(t))

	_, err := recorder.PersistDecisionResult(context.Background(), "CTO", "x", "q",
		map[string]any{"confidence": "very"}, nil)
	assert.Error(t, err)
}

func TestGetRelevantContext(t *testing.T) {
	store := newStore(t)
	recorder := NewRecorder(store)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := recorder.PersistDecisionResult(ctx, "CTO", "technology_strategy", "q",
			map[string]any{"confidence": 0.5}, map[string]any{"user_id": "demo_cto"})
		require.NoError(t, err)
	}
	_, err := recorder.PersistDecisionResult(ctx, "CTO", "budget", "q",
		map[string]any{}, map[string]any{"user_id": "demo_cto"})
	require.NoError(t, err)

	require.NoError(t, store.UpdateUserContext(ctx, "demo_cto", persistence.UserContext{
		persistence.ContextLearningPatterns: map[string]any{"prefers": "conservative"},
	}))

	rc, err := recorder.GetRelevantContext(ctx, "demo_cto", "technology_strategy")
	require.NoError(t, err)
	assert.Len(t, rc.RecentSimilarDecisions, 5)
	for _, d := range rc.RecentSimilarDecisions {
		assert.Equal(t, "technology_strategy", d.DecisionType)
	}
	assert.Equal(t, map[string]any{"prefers": "conservative"}, rc.LearningPatterns)
	assert.EqualValues(t, 8, rc.UserContext[persistence.ContextDecisionCount])
}

func TestGetRelevantContext_NewUser(t *testing.T) {
	recorder := NewRecorder(newStore(t))

	rc, err := recorder.GetRelevantContext(context.Background(), "newcomer", "budget")
	require.NoError(t, err)
	assert.Nil(t, rc.UserContext)
	assert.Empty(t, rc.RecentSimilarDecisions)
	assert.Equal(t, map[string]any{}, rc.LearningPatterns)
}
