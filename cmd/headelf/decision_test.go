package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/headelf/headelf/pkg/persistence"
	"github.com/headelf/headelf/pkg/presenter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *persistence.Store {
	t.Helper()
	store, err := persistence.New(t.TempDir(), persistence.WithoutAudit())
	require.NoError(t, err)
	return store
}

func TestRecordDecision(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	resultFile := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, os.WriteFile(resultFile, []byte(`{
		"recommendation": {"action": "migrate"},
		"analysis": {"risk": "medium"},
		"confidence": 0.5,
		"execution_metadata": {"skill": "cto-intelligence"}
	}`), 0o644))

	config := NewDecisionRecordConfig()
	config.Role = "CTO"
	config.DecisionType = "technology_strategy"
	config.Query = "Evaluate cloud migration"
	config.ResultFile = resultFile
	config.Confidence = 0.87
	config.UserID = "demo_cto"
	config.SessionID = "s-1"
	config.Context = []string{"industry=retail"}

	id, err := recordDecision(ctx, store, config, nil)
	require.NoError(t, err)

	d, err := store.GetDecision(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "CTO", d.ExecutiveRole)
	assert.Equal(t, "demo_cto", d.UserID)
	assert.Equal(t, "s-1", d.SessionID)
	require.NotNil(t, d.Confidence)
	assert.Equal(t, 0.87, *d.Confidence)
	assert.Equal(t, map[string]any{"action": "migrate"}, d.Recommendation)
	assert.Equal(t, map[string]any{"skill": "cto-intelligence"}, d.ExecutionMetadata)
	assert.Equal(t, "retail", d.Context["industry"])
}

func TestRecordDecision_Stdin(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	config := NewDecisionRecordConfig()
	config.Role = "CFO"
	config.DecisionType = "budget"
	config.Query = "Q3 forecast"
	config.ResultFile = "-"

	id, err := recordDecision(ctx, store, config, strings.NewReader(`{"confidence": "0.7"}`))
	require.NoError(t, err)

	d, err := store.GetDecision(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, 0.7, *d.Confidence)
	assert.Equal(t, "anonymous", d.UserID)
	assert.Equal(t, "unknown", d.SessionID)
}

func TestRecordDecision_Errors(t *testing.T) {
	store := newTestStore(t)

	base := func() *DecisionRecordConfig {
		c := NewDecisionRecordConfig()
		c.Role = "CTO"
		c.DecisionType = "technology_strategy"
		c.Query = "q"
		return c
	}

	tests := []struct {
		name    string
		mutate  func(*DecisionRecordConfig)
		stdin   string
		wantErr string
	}{
		{"confidence above one", func(c *DecisionRecordConfig) { c.Confidence = 1.5 }, "", "confidence must be between 0 and 1"},
		{"bad context", func(c *DecisionRecordConfig) { c.Context = []string{"oops"} }, "", "invalid key=value pair"},
		{"bad result", func(c *DecisionRecordConfig) { c.ResultFile = "-" }, "not json", "as a JSON object"},
		{"bad role", func(c *DecisionRecordConfig) { c.Role = "../CTO" }, "", "failed to persist decision result"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base()
			tt.mutate(c)
			_, err := recordDecision(context.Background(), store, c, strings.NewReader(tt.stdin))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	history, err := store.GetDecisionHistory(context.Background(), persistence.HistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRenderDecisions_JSON(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	config := NewDecisionRecordConfig()
	config.Role = "CTO"
	config.DecisionType = "technology_strategy"
	config.Query = "Evaluate cloud migration"
	id, err := recordDecision(ctx, store, config, nil)
	require.NoError(t, err)

	decisions, err := store.GetDecisionHistory(ctx, persistence.HistoryFilter{})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, renderDecisions(&buf, OutputJSON, decisions))

	var out []persistence.DecisionRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, id, out[0].ID)

	buf.Reset()
	require.NoError(t, renderDecisions(&buf, OutputJSON, []persistence.DecisionRecord{}))
	assert.Equal(t, "[]\n", buf.String())
}

func TestLoadContext(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	out, err := loadContext(ctx, store, "demo_cto", "")
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = loadContext(ctx, store, "demo_cto", "budget")
	require.NoError(t, err)
	assert.Nil(t, out)

	config := NewDecisionRecordConfig()
	config.Role = "CTO"
	config.DecisionType = "budget"
	config.Query = "Hiring plan"
	config.UserID = "demo_cto"
	_, err = recordDecision(ctx, store, config, nil)
	require.NoError(t, err)

	out, err = loadContext(ctx, store, "demo_cto", "")
	require.NoError(t, err)
	uc, ok := out.(persistence.UserContext)
	require.True(t, ok)
	assert.Equal(t, "demo_cto", uc["user_id"])

	out, err = loadContext(ctx, store, "demo_cto", "budget")
	require.NoError(t, err)
	require.NotNil(t, out)

	var buf bytes.Buffer
	require.NoError(t, writeStructured(&buf, OutputJSON, out))
	var rc map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rc))
	assert.Len(t, rc["recent_similar_decisions"], 1)
	assert.Equal(t, map[string]any{}, rc["learning_patterns"])
}

func TestShowDecision_Quiet(t *testing.T) {
	d := &persistence.DecisionRecord{
		ID:             "1760862600000-1a2b3c4d",
		Timestamp:      "2026-10-19T08:30:00Z",
		ExecutiveRole:  "CTO",
		DecisionType:   "technology_strategy",
		Query:          "Evaluate cloud migration",
		UserID:         "demo_cto",
		SessionID:      "unknown",
		Recommendation: map[string]any{"action": "migrate"},
	}

	presenter.SetQuiet(true)
	defer presenter.SetQuiet(false)

	var buf bytes.Buffer
	showDecision(&buf, d)
	assert.Empty(t, buf.String())

	presenter.SetQuiet(false)
	showDecision(&buf, d)
	assert.Equal(t, "action: migrate\n", buf.String())
}
