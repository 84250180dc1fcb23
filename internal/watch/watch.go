// Package watch notifies when spatial database files change on disk.
//
// A Watcher observes the static prefix directory of each discovery pattern
// and the directory of every configured source. Creating, removing,
// renaming or rewriting a database file that matches a pattern, or that is
// itself a configured source, triggers the change callback. The application
// wires it to source.Registry.Invalidate. Other files in a source directory
// are ignored.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"mapsources/internal/discover"
	"mapsources/internal/logging"
)

// Config configures a Watcher.
type Config struct {
	// Patterns are discovery globs; their static prefix directories are watched.
	Patterns []string

	// SourcePaths returns the database paths of the configured sources. It
	// is called at start and after every change, so newly added sources are
	// picked up, and must not rebuild the registry. May be nil.
	SourcePaths func(ctx context.Context) []string

	// OnChange is called with the path of each changed database file.
	OnChange func(path string)

	// Logger for structured logging. Scoped with component="watcher".
	Logger *slog.Logger
}

// Watcher watches directories for database file changes.
type Watcher struct {
	cfg     Config
	logger  *slog.Logger
	watched map[string]bool
	sources map[string]bool
}

// New creates a Watcher.
func New(cfg Config) *Watcher {
	return &Watcher{
		cfg:     cfg,
		logger:  logging.Default(cfg.Logger).With("component", "watcher"),
		watched: make(map[string]bool),
		sources: make(map[string]bool),
	}
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	w.addDirs(ctx, fw)
	w.logger.Info("watching", "dirs", len(w.watched))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("database file changed", "path", event.Name, "op", event.Op.String())
			if w.cfg.OnChange != nil {
				w.cfg.OnChange(event.Name)
			}
			w.addDirs(ctx, fw)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("fsnotify error", "error", err)
		}
	}
}

// addDirs refreshes the known source paths and starts watching any pattern
// or source directory not yet watched. Directories that cannot be watched
// (e.g. missing) are retried on the next change.
func (w *Watcher) addDirs(ctx context.Context, fw *fsnotify.Watcher) {
	dirs := discover.WatchDirs(w.cfg.Patterns)
	if w.cfg.SourcePaths != nil {
		clear(w.sources)
		for _, path := range w.cfg.SourcePaths(ctx) {
			path = filepath.Clean(path)
			w.sources[path] = true
			dirs = append(dirs, filepath.Dir(path))
		}
	}
	for _, dir := range dirs {
		dir = filepath.Clean(dir)
		if w.watched[dir] {
			continue
		}
		if err := fw.Add(dir); err != nil {
			w.logger.Warn("failed to watch directory", "dir", dir, "error", err)
			continue
		}
		w.watched[dir] = true
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) &&
		!event.Has(fsnotify.Rename) && !event.Has(fsnotify.Write) {
		return false
	}
	return w.sources[filepath.Clean(event.Name)] || discover.Matches(event.Name, w.cfg.Patterns)
}
