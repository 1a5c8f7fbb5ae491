package vcs

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/headelf/headelf/pkg/version"
	"github.com/pkg/errors"
)

const commitTimestampLayout = "2006-01-02T15:04:05.000000"

// FormatCommitMessage renders the audit commit message for n files.
func FormatCommitMessage(systemName, summary string, now time.Time, n int) string {
	return fmt.Sprintf("[%s] %s\n\nGenerated by %s Executive Intelligence System\nTimestamp: %sZ\nFiles: %d file(s)",
		systemName, summary, systemName, now.UTC().Format(commitTimestampLayout), n)
}

// Auditor commits files under Root to the enclosing git repository.
type Auditor struct {
	Root       string
	SystemName string
	Now        func() time.Time

	git *Git
}

// NewAuditor returns an Auditor for the data tree rooted at root.
func NewAuditor(root string) *Auditor {
	return &Auditor{
		Root:       root,
		SystemName: version.SystemName,
		Now:        time.Now,
		git:        New(root),
	}
}

// Commit stages and commits files, returning the new HEAD hash. It returns
// ErrNotWorkTree when Root is not under version control.
func (a *Auditor) Commit(ctx context.Context, files []string, summary string) (string, error) {
	if !a.git.IsWorkTree(ctx) {
		return "", ErrNotWorkTree
	}

	rel := make([]string, 0, len(files))
	for _, f := range files {
		r, err := filepath.Rel(a.Root, f)
		if err != nil {
			return "", errors.Wrapf(err, "failed to relativize %s", f)
		}
		rel = append(rel, r)
	}

	if err := a.git.Add(ctx, rel...); err != nil {
		return "", err
	}

	msg := FormatCommitMessage(a.SystemName, summary, a.Now(), len(files))
	if err := a.git.Commit(ctx, msg, rel...); err != nil {
		return "", err
	}

	return a.git.HeadHash(ctx)
}
