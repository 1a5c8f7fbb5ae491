package persistence

import (
	"context"
	"os"
	"path/filepath"

	"github.com/headelf/headelf/pkg/logger"
	"github.com/headelf/headelf/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

func (s *Store) userContextPath(userID string) (string, error) {
	if err := validateSegment("user id", userID); err != nil {
		return "", err
	}
	return filepath.Join(s.paths.Users, userID+".json"), nil
}

// PersistUserContext overwrites the user's context file with uc plus
// user_id and a fresh last_updated, then attempts an audit commit.
func (s *Store) PersistUserContext(ctx context.Context, userID string, uc UserContext) error {
	path, err := s.userContextPath(userID)
	if err != nil {
		return err
	}

	return telemetry.WithSpan(ctx, "persistence.persist_user_context", func(ctx context.Context) error {
		doc := make(UserContext, len(uc)+2)
		for k, v := range uc {
			doc[k] = v
		}
		doc[ContextUserID] = userID
		doc[ContextLastUpdated] = formatTimestamp(s.now())

		if err := writeJSON(path, doc); err != nil {
			return err
		}

		s.audit(ctx, []string{path}, "Update user context: "+userID)
		return nil
	}, attribute.String("user.id", userID))
}

// GetUserContext returns the stored context, or nil when the user has none
// or the file cannot be decoded.
func (s *Store) GetUserContext(ctx context.Context, userID string) (UserContext, error) {
	path, err := s.userContextPath(userID)
	if err != nil {
		return nil, err
	}

	var uc UserContext
	if err := readJSON(path, &uc); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		if IsKind(err, KindMalformedRecord) {
			logger.G(ctx).WithError(err).WithField("user_id", userID).Warn("failed to read user context")
			return nil, nil
		}
		return nil, err
	}
	return uc, nil
}

// UpdateUserContext shallow-merges updates into the user's context, starting
// from an empty skeleton when none exists. Nested values are replaced, not
// merged.
func (s *Store) UpdateUserContext(ctx context.Context, userID string, updates UserContext) error {
	existing, err := s.GetUserContext(ctx, userID)
	if err != nil {
		return err
	}
	if existing == nil {
		existing = defaultUserContext(userID)
	}

	for k, v := range updates {
		existing[k] = v
	}
	return s.PersistUserContext(ctx, userID, existing)
}

func defaultUserContext(userID string) UserContext {
	return UserContext{
		ContextUserID:              userID,
		ContextOrganizationProfile: map[string]any{},
		ContextRolePreferences:     map[string]any{},
		ContextHistoricalDecisions: []any{},
		ContextLearningPatterns:    map[string]any{},
		ContextCustomExtensions:    []any{},
	}
}
