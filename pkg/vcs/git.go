// Package vcs wraps the git command line for the two things headelf needs
// from version control: a best-effort audit commit after each write to the
// data tree, and fetching extension repositories.
package vcs

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/headelf/headelf/pkg/osutil"
	"github.com/pkg/errors"
)

// ErrNotWorkTree is returned when the directory is not inside a git working tree.
var ErrNotWorkTree = errors.New("not inside a git working tree")

// Git runs git commands with Dir as the working directory.
type Git struct {
	Dir    string
	Binary string
}

// New returns a Git bound to dir.
func New(dir string) *Git {
	return &Git{Dir: dir, Binary: "git"}
}

func (g *Git) run(ctx context.Context, stdin io.Reader, args ...string) (string, error) {
	bin := g.Binary
	if bin == "" {
		bin = "git"
	}

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = g.Dir
	cmd.Stdin = stdin
	osutil.IsolateProcess(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return "", errors.Wrapf(err, "git %s failed: %s", args[0], msg)
	}
	return stdout.String(), nil
}

// IsWorkTree reports whether Dir is inside a git working tree.
func (g *Git) IsWorkTree(ctx context.Context) bool {
	out, err := g.run(ctx, nil, "rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(out) == "true"
}

// Add stages the given paths, which are interpreted relative to Dir.
func (g *Git) Add(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := g.run(ctx, nil, append([]string{"add", "--"}, paths...)...)
	return err
}

// Commit records the given paths with message. Changes staged for other
// paths are left staged.
func (g *Git) Commit(ctx context.Context, message string, paths ...string) error {
	args := []string{"commit", "-F", "-"}
	if len(paths) > 0 {
		args = append(args, "--")
		args = append(args, paths...)
	}
	_, err := g.run(ctx, strings.NewReader(message), args...)
	return err
}

// HeadHash returns the full hash of HEAD.
func (g *Git) HeadHash(ctx context.Context) (string, error) {
	out, err := g.run(ctx, nil, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Fetcher clones, updates and pins extension repositories.
type Fetcher struct {
	Binary string
	// Branch is pulled when updating an existing checkout.
	Branch string
}

// NewFetcher returns a Fetcher that pulls origin/main on update.
func NewFetcher() *Fetcher {
	return &Fetcher{Binary: "git", Branch: "main"}
}

func (f *Fetcher) git(dir string) *Git {
	return &Git{Dir: dir, Binary: f.Binary}
}

// Clone clones repository into dest. The parent of dest must exist.
func (f *Fetcher) Clone(ctx context.Context, repository, dest string) error {
	_, err := f.git(filepath.Dir(dest)).run(ctx, nil, "clone", repository, dest)
	return err
}

// Pull updates the checkout in dir from origin.
func (f *Fetcher) Pull(ctx context.Context, dir string) error {
	branch := f.Branch
	if branch == "" {
		branch = "main"
	}
	_, err := f.git(dir).run(ctx, nil, "pull", "origin", branch)
	return err
}

// Checkout switches the checkout in dir to ref.
func (f *Fetcher) Checkout(ctx context.Context, dir, ref string) error {
	_, err := f.git(dir).run(ctx, nil, "checkout", ref)
	return err
}
