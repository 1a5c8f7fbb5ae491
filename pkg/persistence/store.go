// Package persistence stores executive decisions, user contexts, analytics
// snapshots and the extension manifest as pretty-printed JSON files under a
// data/ directory, and records each write in git when the directory lives in
// a working tree. The audit commit is best effort: files are always written
// first and a failed commit never fails the operation.
package persistence

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/headelf/headelf/pkg/logger"
	"github.com/headelf/headelf/pkg/vcs"
	"github.com/pkg/errors"
)

const defaultGitIgnore = `# Sensitive data patterns
*.key
*.secret
**/private/
**/temp/

# Temporary files
*.tmp
*.log

# OS specific
.DS_Store
Thumbs.db
`

// Committer records files in version control and returns the commit hash.
type Committer interface {
	Commit(ctx context.Context, files []string, summary string) (string, error)
}

// ExtensionFetcher obtains extension repositories.
type ExtensionFetcher interface {
	Clone(ctx context.Context, repository, dest string) error
	Pull(ctx context.Context, dir string) error
	Checkout(ctx context.Context, dir, ref string) error
}

// Paths is the on-disk layout of a store. Integrators reading the tree
// directly rely on these names.
type Paths struct {
	Root            string
	Data            string
	Decisions       string
	DecisionsByRole string
	DecisionsByDate string
	Contexts        string
	Users           string
	Analytics       string
	Snapshots       string
	Trends          string
	Extensions      string
	Manifest        string
	GitIgnore       string
}

// NewPaths returns the layout rooted at root.
func NewPaths(root string) Paths {
	data := filepath.Join(root, "data")
	decisions := filepath.Join(data, "decisions")
	contexts := filepath.Join(data, "contexts")
	analytics := filepath.Join(data, "analytics")
	extensions := filepath.Join(data, "extensions")
	return Paths{
		Root:            root,
		Data:            data,
		Decisions:       decisions,
		DecisionsByRole: filepath.Join(decisions, "by-role"),
		DecisionsByDate: filepath.Join(decisions, "by-date"),
		Contexts:        contexts,
		Users:           filepath.Join(contexts, "users"),
		Analytics:       analytics,
		Snapshots:       filepath.Join(analytics, "snapshots"),
		Trends:          filepath.Join(analytics, "trends"),
		Extensions:      extensions,
		Manifest:        filepath.Join(extensions, "manifest.json"),
		GitIgnore:       filepath.Join(data, ".gitignore"),
	}
}

func (p Paths) dirs() []string {
	return []string{
		p.Data,
		p.Decisions,
		p.DecisionsByRole,
		p.DecisionsByDate,
		p.Contexts,
		p.Users,
		p.Analytics,
		p.Snapshots,
		p.Trends,
		p.Extensions,
	}
}

// Store is the decision persistence store. It holds no locks: a single
// writer per root is assumed and concurrent writers race last-writer-wins.
type Store struct {
	paths     Paths
	committer Committer
	fetcher   ExtensionFetcher
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithCommitter replaces the git auditor.
func WithCommitter(c Committer) Option {
	return func(s *Store) {
		s.committer = c
	}
}

// WithoutAudit disables version control commits entirely.
func WithoutAudit() Option {
	return func(s *Store) {
		s.committer = disabledCommitter{}
	}
}

// WithFetcher replaces the git extension fetcher.
func WithFetcher(f ExtensionFetcher) Option {
	return func(s *Store) {
		s.fetcher = f
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

type disabledCommitter struct{}

func (disabledCommitter) Commit(context.Context, []string, string) (string, error) {
	return "", vcs.ErrNotWorkTree
}

// New opens the store rooted at root, creating the directory tree if needed.
func New(root string, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fsError("resolve root", root, err)
	}

	s := &Store{
		paths:     NewPaths(abs),
		committer: vcs.NewAuditor(abs),
		fetcher:   vcs.NewFetcher(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Init(); err != nil {
		return nil, err
	}
	return s, nil
}

// Paths returns the store layout.
func (s *Store) Paths() Paths { return s.paths }

// Init creates any missing directories and writes the default ignore file
// if none exists. It never modifies an existing ignore file.
func (s *Store) Init() error {
	for _, dir := range s.paths.dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fsError("create directory", dir, err)
		}
	}

	if _, err := os.Stat(s.paths.GitIgnore); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fsError("stat", s.paths.GitIgnore, err)
	}

	if err := os.WriteFile(s.paths.GitIgnore, []byte(defaultGitIgnore), 0o644); err != nil {
		return fsError("write", s.paths.GitIgnore, err)
	}
	return nil
}

// audit commits files and returns the hash, or "" when no audit trail is
// available for any reason.
func (s *Store) audit(ctx context.Context, files []string, summary string) string {
	hash, err := s.committer.Commit(ctx, files, summary)
	if err != nil {
		entry := logger.G(ctx).WithError(vcsError("commit", err)).WithField("files", len(files))
		if errors.Is(err, vcs.ErrNotWorkTree) {
			entry.Debug("data directory is not under version control, skipping audit commit")
		} else {
			entry.Warn("git operation failed, continuing without version control")
		}
		return ""
	}
	return hash
}
