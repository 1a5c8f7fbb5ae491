package persistence

import "github.com/headelf/headelf/pkg/version"

// DecisionRecord is a single executive decision as persisted on disk.
// Records are append-only: once written under an ID they are never updated
// except to embed the audit commit hash.
type DecisionRecord struct {
	ID                  string               `json:"id"`
	Timestamp           string               `json:"timestamp"`
	ExecutiveRole       string               `json:"executive_role"`
	DecisionType        string               `json:"decision_type"`
	Query               string               `json:"query"`
	Context             map[string]any       `json:"context,omitempty"`
	Recommendation      map[string]any       `json:"recommendation,omitempty"`
	Analysis            map[string]any       `json:"analysis,omitempty"`
	Confidence          *float64             `json:"confidence,omitempty"`
	UserID              string               `json:"user_id"`
	SessionID           string               `json:"session_id"`
	ExecutionMetadata   map[string]any       `json:"execution_metadata,omitempty"`
	PersistenceMetadata *PersistenceMetadata `json:"persistence_metadata,omitempty"`
	GitCommitHash       string               `json:"git_commit_hash,omitempty"`
}

// PersistenceMetadata is injected into every decision record at write time.
type PersistenceMetadata struct {
	PersistedBy   string `json:"persisted_by"`
	Version       string `json:"version"`
	SchemaVersion string `json:"schema_version"`
}

func currentMetadata() *PersistenceMetadata {
	return &PersistenceMetadata{
		PersistedBy:   version.PersistedBy,
		Version:       version.PersistenceVersion,
		SchemaVersion: version.SchemaVersion,
	}
}

// Float returns a pointer to f, for filling DecisionRecord.Confidence.
func Float(f float64) *float64 { return &f }

// TimeRange bounds a query by ISO-8601 timestamps. Start is inclusive and
// End exclusive; either may be empty.
type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// HistoryFilter selects decisions in GetDecisionHistory. Zero-valued fields
// do not constrain the result.
type HistoryFilter struct {
	UserID        string
	DecisionType  string
	ExecutiveRole string
	DateRange     *TimeRange
	Limit         int
}

// UserContext is the free-form per-user document. Updates shallow-merge
// top-level keys.
type UserContext map[string]any

// Well-known UserContext keys.
const (
	ContextUserID              = "user_id"
	ContextLastUpdated         = "last_updated"
	ContextOrganizationProfile = "organization_profile"
	ContextRolePreferences     = "role_preferences"
	ContextHistoricalDecisions = "historical_decisions"
	ContextLearningPatterns    = "learning_patterns"
	ContextCustomExtensions    = "custom_extensions"
	ContextLastDecision        = "last_decision"
	ContextLastActivity        = "last_activity"
	ContextDecisionCount       = "decision_count"
)

// AnalyticsSnapshot aggregates decisions over a time range.
type AnalyticsSnapshot struct {
	TimeRange         TimeRange         `json:"time_range"`
	TotalDecisions    int               `json:"total_decisions"`
	DecisionsByRole   map[string]int    `json:"decisions_by_role"`
	ConfidenceMetrics ConfidenceMetrics `json:"confidence_metrics"`
	MostActiveAreas   []AreaCount       `json:"most_active_areas"`
	TrendAnalysis     TrendAnalysis     `json:"trend_analysis"`
	GeneratedAt       string            `json:"generated_at"`
}

// ConfidenceMetrics summarises the confidence of decisions that carry one.
// Distribution keys are confidences rounded to one decimal place.
type ConfidenceMetrics struct {
	Average      float64        `json:"average"`
	Distribution map[string]int `json:"distribution"`
}

// AreaCount is a decision type with its number of decisions.
type AreaCount struct {
	DecisionType string `json:"decision_type"`
	Count        int    `json:"count"`
}

// TrendAnalysis holds per-day decision counts keyed by UTC date.
type TrendAnalysis struct {
	DailyCounts map[string]int `json:"daily_counts"`
}

// ExtensionManifestEntry describes an installed extension repository.
type ExtensionManifestEntry struct {
	Repository  string `json:"repository"`
	Version     string `json:"version"`
	InstalledAt string `json:"installed_at"`
	Path        string `json:"path"`
}
