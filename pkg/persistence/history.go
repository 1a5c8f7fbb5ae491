package persistence

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/headelf/headelf/pkg/logger"
	"github.com/headelf/headelf/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

type compiledFilter struct {
	HistoryFilter
	role  string
	start *time.Time
	end   *time.Time
}

func compileFilter(f HistoryFilter) (compiledFilter, error) {
	c := compiledFilter{HistoryFilter: f}
	if f.ExecutiveRole != "" {
		c.role = roleSlug(f.ExecutiveRole)
	}
	if f.DateRange != nil {
		if f.DateRange.Start != "" {
			t, err := ParseTimestamp(f.DateRange.Start)
			if err != nil {
				return c, err
			}
			c.start = &t
		}
		if f.DateRange.End != "" {
			t, err := ParseTimestamp(f.DateRange.End)
			if err != nil {
				return c, err
			}
			c.end = &t
		}
	}
	return c, nil
}

func (c compiledFilter) matches(rec *DecisionRecord) bool {
	if c.UserID != "" && rec.UserID != c.UserID {
		return false
	}
	if c.DecisionType != "" && rec.DecisionType != c.DecisionType {
		return false
	}
	if c.role != "" && roleSlug(rec.ExecutiveRole) != c.role {
		return false
	}
	if c.start != nil || c.end != nil {
		ts, err := ParseTimestamp(rec.Timestamp)
		if err != nil {
			return false
		}
		if c.start != nil && ts.Before(*c.start) {
			return false
		}
		if c.end != nil && !ts.Before(*c.end) {
			return false
		}
	}
	return true
}

// searchDirs returns the canonical directory followed by the role and date
// index directories the filter selects.
func (s *Store) searchDirs(c compiledFilter) []string {
	dirs := []string{s.paths.Decisions}
	if c.role != "" && validateSegment("executive role", c.role) == nil {
		dirs = append(dirs, filepath.Join(s.paths.DecisionsByRole, c.role))
	}
	if c.start != nil {
		dirs = append(dirs, filepath.Join(s.paths.DecisionsByDate, c.start.Format("2006-01-02")))
	}
	return dirs
}

// GetDecisionHistory returns decisions matching every field set in filter.
// Each searched directory is scanned newest filename first and results are
// concatenated in directory order, de-duplicated by ID. Missing directories
// and undecodable files are skipped.
func (s *Store) GetDecisionHistory(ctx context.Context, filter HistoryFilter) ([]DecisionRecord, error) {
	c, err := compileFilter(filter)
	if err != nil {
		return nil, fsError("parse filter", "", err)
	}

	var results []DecisionRecord
	err = telemetry.WithSpan(ctx, "persistence.get_decision_history", func(ctx context.Context) error {
		seen := make(map[string]struct{})
		for _, dir := range s.searchDirs(c) {
			if err := s.scanDecisionDir(ctx, dir, c, seen, &results); err != nil {
				return err
			}
		}
		telemetry.SetAttributes(ctx, attribute.Int("decision.count", len(results)))
		return nil
	}, attribute.Int("filter.limit", filter.Limit))
	if err != nil {
		return nil, err
	}

	if c.Limit > 0 && len(results) > c.Limit {
		results = results[:c.Limit]
	}
	if results == nil {
		results = []DecisionRecord{}
	}
	return results, nil
}

func (s *Store) scanDecisionDir(ctx context.Context, dir string, c compiledFilter, seen map[string]struct{}, results *[]DecisionRecord) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fsError("read directory", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(names)))

	for _, name := range names {
		if c.Limit > 0 && len(*results) >= c.Limit {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		path := filepath.Join(dir, name)
		var rec DecisionRecord
		if err := readJSON(path, &rec); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			if IsKind(err, KindMalformedRecord) {
				logger.G(ctx).WithError(err).WithField("path", path).Warn("skipping unreadable decision file")
				continue
			}
			return err
		}

		if rec.ID == "" || !c.matches(&rec) {
			continue
		}
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		*results = append(*results, rec)
	}
	return nil
}
