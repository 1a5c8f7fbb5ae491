package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/headelf/headelf/pkg/logger"
	"github.com/headelf/headelf/pkg/telemetry"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultUserID       = "anonymous"
	defaultSessionID    = "unknown"
	defaultRole         = "unknown"
	defaultDecisionType = "analysis"
	querySummaryLength  = 50
)

// GenerateDecisionID returns "<epoch-millis>-<8 hex chars of a random UUID>".
func GenerateDecisionID(now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%d-%s", now.UnixMilli(), random[:8])
}

// decisionFileName is "<date>-<role>-<id>.json", which makes lexicographic
// order date-then-role-then-id.
func decisionFileName(date, role, id string) string {
	return fmt.Sprintf("%s-%s-%s.json", date, role, id)
}

func roleSlug(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return defaultRole
	}
	return role
}

// validateSegment rejects values that would escape the directory they name
// a file or directory in.
func validateSegment(kind, value string) error {
	if value == "" || value == "." || value == ".." ||
		strings.ContainsAny(value, `/\`) || strings.ContainsRune(value, 0) {
		return fsError("validate "+kind, value, errors.Wrapf(ErrInvalidName, "invalid %s %q", kind, value))
	}
	return nil
}

// decisionPaths returns the canonical, by-role and by-date paths of a record.
func (s *Store) decisionPaths(rec *DecisionRecord) (string, string, string) {
	date := strings.SplitN(rec.Timestamp, "T", 2)[0]
	role := roleSlug(rec.ExecutiveRole)
	name := decisionFileName(date, role, rec.ID)
	return filepath.Join(s.paths.Decisions, name),
		filepath.Join(s.paths.DecisionsByRole, role, name),
		filepath.Join(s.paths.DecisionsByDate, date, name)
}

// PersistDecision writes rec to the canonical directory and both secondary
// indices, refreshes the caller's user context and attempts an audit
// commit. The returned ID is valid whether or not the commit succeeded.
// Only the canonical copy is rewritten with the commit hash.
func (s *Store) PersistDecision(ctx context.Context, rec DecisionRecord) (string, error) {
	now := s.now()
	if rec.ID == "" {
		rec.ID = GenerateDecisionID(now)
	}
	if rec.UserID == "" {
		rec.UserID = defaultUserID
	}
	if rec.SessionID == "" {
		rec.SessionID = defaultSessionID
	}
	rec.Timestamp = formatTimestamp(now)
	rec.PersistenceMetadata = currentMetadata()
	rec.GitCommitHash = ""

	if err := validateSegment("decision id", rec.ID); err != nil {
		return "", err
	}
	if err := validateSegment("executive role", roleSlug(rec.ExecutiveRole)); err != nil {
		return "", err
	}
	if err := validateSegment("user id", rec.UserID); err != nil {
		return "", err
	}

	err := telemetry.WithSpan(ctx, "persistence.persist_decision", func(ctx context.Context) error {
		ctx = logger.WithFields(ctx, logrus.Fields{
			"decision_id":    rec.ID,
			"executive_role": rec.ExecutiveRole,
			"user_id":        rec.UserID,
		})

		mainPath, rolePath, datePath := s.decisionPaths(&rec)

		data, err := encodeJSON(rec)
		if err != nil {
			return errors.Wrap(err, "failed to encode decision record")
		}
		for _, path := range []string{mainPath, rolePath, datePath} {
			if err := writeFileAtomic(path, data); err != nil {
				return err
			}
		}

		count, err := s.countUserDecisions(ctx, rec.UserID, rec.ID)
		if err != nil {
			return err
		}
		if err := s.UpdateUserContext(ctx, rec.UserID, UserContext{
			ContextLastDecision:  rec.ID,
			ContextLastActivity:  rec.Timestamp,
			ContextDecisionCount: count + 1,
		}); err != nil {
			return err
		}

		hash := s.audit(ctx, []string{mainPath, rolePath, datePath}, decisionSummary(&rec))
		if hash == "" {
			return nil
		}

		telemetry.SetAttributes(ctx, attribute.String("git.commit", hash))
		rec.GitCommitHash = hash
		if err := writeJSON(mainPath, rec); err != nil {
			return err
		}
		logger.G(ctx).WithField("commit", hash).Debug("decision recorded in git")
		return nil
	}, attribute.String("decision.id", rec.ID), attribute.String("decision.role", rec.ExecutiveRole))
	if err != nil {
		return "", err
	}

	return rec.ID, nil
}

// countUserDecisions counts stored decisions for userID other than excludeID.
func (s *Store) countUserDecisions(ctx context.Context, userID, excludeID string) (int, error) {
	history, err := s.GetDecisionHistory(ctx, HistoryFilter{UserID: userID})
	if err != nil {
		return 0, err
	}
	count := 0
	for _, d := range history {
		if d.ID != excludeID {
			count++
		}
	}
	return count, nil
}

func decisionSummary(rec *DecisionRecord) string {
	decisionType := rec.DecisionType
	if decisionType == "" {
		decisionType = defaultDecisionType
	}
	query := []rune(rec.Query)
	if len(query) > querySummaryLength {
		query = query[:querySummaryLength]
	}
	return fmt.Sprintf("%s decision: %s - %s...", strings.ToUpper(roleSlug(rec.ExecutiveRole)), decisionType, string(query))
}

// GetDecision returns the canonical copy of the decision with the given ID.
func (s *Store) GetDecision(ctx context.Context, id string) (*DecisionRecord, error) {
	if err := validateSegment("decision id", id); err != nil {
		return nil, err
	}

	matches, err := filepath.Glob(filepath.Join(s.paths.Decisions, "*-"+id+".json"))
	if err != nil {
		return nil, errors.Wrap(err, "failed to search decisions")
	}

	for _, path := range matches {
		var rec DecisionRecord
		if err := readJSON(path, &rec); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			if IsKind(err, KindMalformedRecord) {
				logger.G(ctx).WithError(err).WithField("path", path).Warn("skipping unreadable decision file")
				continue
			}
			return nil, err
		}
		if rec.ID == id {
			return &rec, nil
		}
	}
	return nil, nil
}
