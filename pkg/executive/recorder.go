// Package executive connects executive skill executors to the decision
// store: it turns an executor's loosely typed result into a DecisionRecord
// and assembles the historical context an executor consults before deciding.
package executive

import (
	"context"

	"github.com/headelf/headelf/pkg/logger"
	"github.com/headelf/headelf/pkg/persistence"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// relevantDecisionLimit is the number of similar past decisions handed to an
// executor.
const relevantDecisionLimit = 5

// Store is the subset of the persistence store the recorder needs.
type Store interface {
	PersistDecision(ctx context.Context, rec persistence.DecisionRecord) (string, error)
	GetDecisionHistory(ctx context.Context, filter persistence.HistoryFilter) ([]persistence.DecisionRecord, error)
	GetUserContext(ctx context.Context, userID string) (persistence.UserContext, error)
}

// Result is the decoded output of an executor run.
type Result struct {
	Recommendation    map[string]any `mapstructure:"recommendation"`
	Analysis          map[string]any `mapstructure:"analysis"`
	Confidence        float64        `mapstructure:"confidence"`
	ExecutionMetadata map[string]any `mapstructure:"execution_metadata"`
}

// DecodeResult decodes an executor result map. Numeric strings are accepted
// for confidence; unknown keys are ignored.
func DecodeResult(raw map[string]any) (Result, error) {
	var result Result
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &result,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return result, errors.Wrap(err, "failed to create result decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return result, errors.Wrap(err, "failed to decode executor result")
	}

	if result.Recommendation == nil {
		result.Recommendation = map[string]any{}
	}
	if result.Analysis == nil {
		result.Analysis = map[string]any{}
	}
	if result.ExecutionMetadata == nil {
		result.ExecutionMetadata = map[string]any{}
	}
	return result, nil
}

// RelevantContext is what an executor sees of a user's history.
type RelevantContext struct {
	UserContext            persistence.UserContext      `json:"user_context"`
	RecentSimilarDecisions []persistence.DecisionRecord `json:"recent_similar_decisions"`
	LearningPatterns       map[string]any               `json:"learning_patterns"`
}

// Recorder records executor results as decisions.
type Recorder struct {
	store Store
}

// NewRecorder returns a Recorder backed by store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

// PersistDecisionResult stores the result of an executor run and returns the
// new decision ID. The user and session are taken from the user_id and
// session_id entries of execCtx when present.
func (r *Recorder) PersistDecisionResult(ctx context.Context, role, decisionType, query string, result, execCtx map[string]any) (string, error) {
	decoded, err := DecodeResult(result)
	if err != nil {
		return "", err
	}

	rec := persistence.DecisionRecord{
		ExecutiveRole:     role,
		DecisionType:      decisionType,
		Query:             query,
		Context:           execCtx,
		Recommendation:    decoded.Recommendation,
		Analysis:          decoded.Analysis,
		Confidence:        persistence.Float(decoded.Confidence),
		UserID:            stringValue(execCtx, "user_id"),
		SessionID:         stringValue(execCtx, "session_id"),
		ExecutionMetadata: decoded.ExecutionMetadata,
	}
	if rec.Context == nil {
		rec.Context = map[string]any{}
	}

	id, err := r.store.PersistDecision(ctx, rec)
	if err != nil {
		return "", errors.Wrap(err, "failed to persist decision result")
	}

	logger.G(ctx).WithFields(logrus.Fields{
		"decision_id":    id,
		"executive_role": role,
		"decision_type":  decisionType,
	}).Info("decision recorded")
	return id, nil
}

// GetRelevantContext returns the user's stored context together with their
// most recent decisions of the same type.
func (r *Recorder) GetRelevantContext(ctx context.Context, userID, decisionType string) (*RelevantContext, error) {
	uc, err := r.store.GetUserContext(ctx, userID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load context for user %s", userID)
	}

	recent, err := r.store.GetDecisionHistory(ctx, persistence.HistoryFilter{
		UserID:       userID,
		DecisionType: decisionType,
		Limit:        relevantDecisionLimit,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load decision history")
	}

	patterns := map[string]any{}
	if lp, ok := uc[persistence.ContextLearningPatterns].(map[string]any); ok {
		patterns = lp
	}

	return &RelevantContext{
		UserContext:            uc,
		RecentSimilarDecisions: recent,
		LearningPatterns:       patterns,
	}, nil
}

func stringValue(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}
