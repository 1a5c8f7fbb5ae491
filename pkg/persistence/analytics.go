package persistence

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/headelf/headelf/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultAnalyticsWindow = 30 * 24 * time.Hour
	maxActiveAreas         = 10
	unknownDecisionType    = "unknown"
)

// GenerateAnalytics aggregates decisions in tr (default: the trailing 30
// days) and stores the result as today's snapshot, replacing any snapshot
// generated earlier the same UTC day.
func (s *Store) GenerateAnalytics(ctx context.Context, tr *TimeRange) (*AnalyticsSnapshot, error) {
	now := s.now()
	if tr == nil {
		tr = &TimeRange{
			Start: formatTimestamp(now.Add(-defaultAnalyticsWindow)),
			End:   formatTimestamp(now),
		}
	}

	var snapshot *AnalyticsSnapshot
	err := telemetry.WithSpan(ctx, "persistence.generate_analytics", func(ctx context.Context) error {
		decisions, err := s.GetDecisionHistory(ctx, HistoryFilter{DateRange: tr})
		if err != nil {
			return err
		}

		snapshot = summarize(*tr, decisions)
		snapshot.GeneratedAt = formatTimestamp(now)

		path := filepath.Join(s.paths.Snapshots, now.UTC().Format("2006-01-02")+".json")
		if err := writeJSON(path, snapshot); err != nil {
			return err
		}

		s.audit(ctx, []string{path}, fmt.Sprintf("Analytics snapshot: %s to %s", tr.Start, tr.End))
		return nil
	}, attribute.String("range.start", tr.Start), attribute.String("range.end", tr.End))
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func summarize(tr TimeRange, decisions []DecisionRecord) *AnalyticsSnapshot {
	snapshot := &AnalyticsSnapshot{
		TimeRange:       tr,
		TotalDecisions:  len(decisions),
		DecisionsByRole: map[string]int{},
		ConfidenceMetrics: ConfidenceMetrics{
			Distribution: map[string]int{},
		},
		MostActiveAreas: []AreaCount{},
		TrendAnalysis:   TrendAnalysis{DailyCounts: map[string]int{}},
	}

	var (
		confidenceSum   float64
		confidenceCount int
		typeIndex       = map[string]int{}
	)

	for i := range decisions {
		d := &decisions[i]

		role := d.ExecutiveRole
		if role == "" {
			role = defaultRole
		}
		snapshot.DecisionsByRole[role]++

		if d.Confidence != nil {
			confidenceSum += *d.Confidence
			confidenceCount++
			snapshot.ConfidenceMetrics.Distribution[confidenceBucket(*d.Confidence)]++
		}

		decisionType := d.DecisionType
		if decisionType == "" {
			decisionType = unknownDecisionType
		}
		if idx, ok := typeIndex[decisionType]; ok {
			snapshot.MostActiveAreas[idx].Count++
		} else {
			typeIndex[decisionType] = len(snapshot.MostActiveAreas)
			snapshot.MostActiveAreas = append(snapshot.MostActiveAreas, AreaCount{DecisionType: decisionType, Count: 1})
		}

		if date, _, ok := strings.Cut(d.Timestamp, "T"); ok {
			snapshot.TrendAnalysis.DailyCounts[date]++
		}
	}

	if confidenceCount > 0 {
		snapshot.ConfidenceMetrics.Average = confidenceSum / float64(confidenceCount)
	}

	// Stable sort keeps discovery order among equal counts.
	sort.SliceStable(snapshot.MostActiveAreas, func(i, j int) bool {
		return snapshot.MostActiveAreas[i].Count > snapshot.MostActiveAreas[j].Count
	})
	if len(snapshot.MostActiveAreas) > maxActiveAreas {
		snapshot.MostActiveAreas = snapshot.MostActiveAreas[:maxActiveAreas]
	}

	return snapshot
}

// confidenceBucket rounds c to one decimal place, ties to even on the exact
// binary value.
func confidenceBucket(c float64) string {
	return strconv.FormatFloat(c, 'f', 1, 64)
}
