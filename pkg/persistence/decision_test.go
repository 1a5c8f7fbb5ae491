package persistence

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ctoDecision() DecisionRecord {
	return DecisionRecord{
		ExecutiveRole: "CTO",
		DecisionType:  "technology_strategy",
		Query:         "Evaluate cloud migration",
		Context:       map[string]any{"industry": "retail"},
		Confidence:    Float(0.87),
		UserID:        "demo_cto",
	}
}

func readRecord(t *testing.T, path string) DecisionRecord {
	t.Helper()
	var rec DecisionRecord
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &rec))
	return rec
}

func TestGenerateDecisionID(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)
	id := GenerateDecisionID(now)

	assert.Regexp(t, regexp.MustCompile(`^\d+-[0-9a-f]{8}$`), id)
	millis, _, _ := strings.Cut(id, "-")
	assert.Equal(t, strconv.FormatInt(now.UnixMilli(), 10), millis)
}

func TestPersistDecision_Scenario(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	id, err := s.PersistDecision(ctx, ctoDecision())
	require.NoError(t, err)

	history, err := s.GetDecisionHistory(ctx, HistoryFilter{UserID: "demo_cto", Limit: 5})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, id, history[0].ID)
	require.NotNil(t, history[0].Confidence)
	assert.Equal(t, 0.87, *history[0].Confidence)
}

func TestPersistDecision_Layout(t *testing.T) {
	s, _, _ := newTestStore(t)
	p := s.Paths()

	id, err := s.PersistDecision(context.Background(), ctoDecision())
	require.NoError(t, err)

	name := "2026-10-19-cto-" + id + ".json"
	main := filepath.Join(p.Decisions, name)
	byRole := filepath.Join(p.DecisionsByRole, "cto", name)
	byDate := filepath.Join(p.DecisionsByDate, "2026-10-19", name)

	rec := readRecord(t, main)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "2026-10-19T08:30:00.000000Z", rec.Timestamp)
	assert.Equal(t, "unknown", rec.SessionID)
	require.NotNil(t, rec.PersistenceMetadata)
	assert.Equal(t, "HeadElf-GitPersistence", rec.PersistenceMetadata.PersistedBy)
	assert.Equal(t, "1.0", rec.PersistenceMetadata.Version)
	assert.Equal(t, "1.0", rec.PersistenceMetadata.SchemaVersion)
	assert.Empty(t, rec.GitCommitHash)

	// Same bytes in all three copies.
	want, err := os.ReadFile(main)
	require.NoError(t, err)
	for _, path := range []string{byRole, byDate} {
		got, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, path)
	}
	assert.True(t, strings.HasPrefix(string(want), "{\n  \"id\": "))
}

func TestPersistDecision_Defaults(t *testing.T) {
	s, _, _ := newTestStore(t)

	id, err := s.PersistDecision(context.Background(), DecisionRecord{Query: "q"})
	require.NoError(t, err)

	rec := readRecord(t, filepath.Join(s.Paths().Decisions, "2026-10-19-unknown-"+id+".json"))
	assert.Equal(t, "anonymous", rec.UserID)
	assert.Equal(t, "unknown", rec.SessionID)
	assert.Nil(t, rec.Confidence)
}

func TestPersistDecision_CallerSuppliedID(t *testing.T) {
	s, _, _ := newTestStore(t)

	rec := ctoDecision()
	rec.ID = "fixed-id"
	id, err := s.PersistDecision(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", id)
	assert.FileExists(t, filepath.Join(s.Paths().Decisions, "2026-10-19-cto-fixed-id.json"))
}

func TestPersistDecision_UniqueIDs(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 25; i++ {
		id, err := s.PersistDecision(ctx, ctoDecision())
		require.NoError(t, err)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 25)
}

func TestPersistDecision_CommitHashOnCanonicalOnly(t *testing.T) {
	s, committer, _ := newTestStore(t)
	committer.err = nil
	committer.hash = "0123456789abcdef0123456789abcdef01234567"
	p := s.Paths()

	id, err := s.PersistDecision(context.Background(), ctoDecision())
	require.NoError(t, err)

	call := committer.last()
	assert.Equal(t, "CTO decision: technology_strategy - Evaluate cloud migration...", call.summary)
	require.Len(t, call.files, 3)

	name := "2026-10-19-cto-" + id + ".json"
	main := readRecord(t, filepath.Join(p.Decisions, name))
	byRole := readRecord(t, filepath.Join(p.DecisionsByRole, "cto", name))
	byDate := readRecord(t, filepath.Join(p.DecisionsByDate, "2026-10-19", name))

	assert.Equal(t, committer.hash, main.GitCommitHash)
	assert.Empty(t, byRole.GitCommitHash)
	assert.Empty(t, byDate.GitCommitHash)

	main.GitCommitHash = ""
	assert.Equal(t, byRole, main)
	assert.Equal(t, byDate, main)
}

func TestPersistDecision_SummaryTruncatesQuery(t *testing.T) {
	s, committer, _ := newTestStore(t)

	rec := DecisionRecord{ExecutiveRole: "cfo", Query: strings.Repeat("é", 80)}
	_, err := s.PersistDecision(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, "CFO decision: analysis - "+strings.Repeat("é", 50)+"...", committer.last().summary)
}

func TestPersistDecision_UpdatesUserContext(t *testing.T) {
	s, _, clock := newTestStore(t)
	ctx := context.Background()

	first, err := s.PersistDecision(ctx, ctoDecision())
	require.NoError(t, err)

	uc, err := s.GetUserContext(ctx, "demo_cto")
	require.NoError(t, err)
	require.NotNil(t, uc)
	assert.Equal(t, first, uc[ContextLastDecision])
	assert.EqualValues(t, 1, uc[ContextDecisionCount])
	assert.Equal(t, map[string]any{}, uc[ContextOrganizationProfile])

	clock.Advance(time.Minute)
	second, err := s.PersistDecision(ctx, ctoDecision())
	require.NoError(t, err)

	uc, err = s.GetUserContext(ctx, "demo_cto")
	require.NoError(t, err)
	assert.Equal(t, second, uc[ContextLastDecision])
	assert.Equal(t, "2026-10-19T08:31:00.000000Z", uc[ContextLastActivity])
	assert.EqualValues(t, 2, uc[ContextDecisionCount])
}

func TestPersistDecision_InvalidRole(t *testing.T) {
	s, _, _ := newTestStore(t)

	rec := ctoDecision()
	rec.ExecutiveRole = "../escape"
	_, err := s.PersistDecision(context.Background(), rec)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindFilesystem))
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestPersistDecision_InvalidUserWritesNothing(t *testing.T) {
	s, committer, _ := newTestStore(t)

	for _, userID := range []string{"team/alpha", "..", `a\b`} {
		t.Run(userID, func(t *testing.T) {
			rec := ctoDecision()
			rec.UserID = userID
			id, err := s.PersistDecision(context.Background(), rec)
			require.Error(t, err)
			assert.Empty(t, id)
			assert.True(t, IsKind(err, KindFilesystem))
			assert.ErrorIs(t, err, ErrInvalidName)
		})
	}

	for _, dir := range []string{s.Paths().Decisions, s.Paths().DecisionsByRole, s.Paths().DecisionsByDate, s.Paths().Users} {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, dir)
	}

	history, err := s.GetDecisionHistory(context.Background(), HistoryFilter{})
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Empty(t, committer.calls)
}

func TestPersistDecision_WithoutVersionControl(t *testing.T) {
	clock := newTestClock()
	s, err := New(t.TempDir(), WithClock(clock.Now))
	require.NoError(t, err)

	id, err := s.PersistDecision(context.Background(), ctoDecision())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	p := s.Paths()
	name := "2026-10-19-cto-" + id + ".json"
	assert.FileExists(t, filepath.Join(p.Decisions, name))
	assert.FileExists(t, filepath.Join(p.DecisionsByRole, "cto", name))
	assert.FileExists(t, filepath.Join(p.DecisionsByDate, "2026-10-19", name))
}

func TestPersistDecision_GitRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	root := t.TempDir()
	for _, args := range [][]string{
		{"init", "-q"},
		{"config", "user.email", "audit@example.com"},
		{"config", "user.name", "Audit"},
		{"config", "commit.gpgsign", "false"},
	} {
		cmd := exec.Command("git", args...)
		cmd.Dir = root
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}

	s, err := New(root)
	require.NoError(t, err)

	id, err := s.PersistDecision(context.Background(), ctoDecision())
	require.NoError(t, err)

	rec, err := s.GetDecision(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Len(t, rec.GitCommitHash, 40)

	byRole, err := filepath.Glob(filepath.Join(s.Paths().DecisionsByRole, "cto", "*-"+id+".json"))
	require.NoError(t, err)
	require.Len(t, byRole, 1)
	assert.Empty(t, readRecord(t, byRole[0]).GitCommitHash)

	cmd := exec.Command("git", "log", "--format=%s")
	cmd.Dir = root
	out, err := cmd.Output()
	require.NoError(t, err)
	assert.Contains(t, string(out), "[HeadElf] CTO decision: technology_strategy - Evaluate cloud migration...")
	assert.Contains(t, string(out), "[HeadElf] Update user context: demo_cto")
}

func TestGetDecision(t *testing.T) {
	s, _, _ := newTestStore(t)
	ctx := context.Background()

	id, err := s.PersistDecision(ctx, ctoDecision())
	require.NoError(t, err)

	rec, err := s.GetDecision(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Evaluate cloud migration", rec.Query)

	missing, err := s.GetDecision(ctx, "0-deadbeef")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = s.GetDecision(ctx, "../x")
	assert.True(t, IsKind(err, KindFilesystem))
}
