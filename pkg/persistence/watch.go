package persistence

import (
	"context"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/headelf/headelf/pkg/logger"
	"github.com/pkg/errors"
)

// WatchDecisions calls fn once for every decision written to the canonical
// directory after the watch starts. It blocks until ctx is done.
func (s *Store) WatchDecisions(ctx context.Context, fn func(DecisionRecord)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create decision watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(s.paths.Decisions); err != nil {
		return fsError("watch", s.paths.Decisions, err)
	}

	// The canonical file is rewritten with the commit hash after the audit
	// commit, which produces a second event for the same ID.
	seen := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}

			var rec DecisionRecord
			if err := readJSON(event.Name, &rec); err != nil {
				if !os.IsNotExist(err) {
					logger.G(ctx).WithError(err).WithField("path", event.Name).Debug("ignoring unreadable decision file")
				}
				continue
			}
			if rec.ID == "" {
				continue
			}
			if _, dup := seen[rec.ID]; dup {
				continue
			}
			seen[rec.ID] = struct{}{}
			fn(rec)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.G(ctx).WithError(err).Warn("decision watcher error")
		}
	}
}
