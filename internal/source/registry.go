package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"mapsources/internal/config"
	"mapsources/internal/config/memory"
	"mapsources/internal/logging"
	"mapsources/internal/spatial"
)

// Registry is the single access point for the configured map sources.
//
// The persisted list in the config store is the source of truth. The live
// list is rebuilt from it lazily: on first access, and on the first access
// after Invalidate. A rebuild opens one handler per database path and keeps
// only the descriptors whose table is still present in the file.
//
// Concurrency model:
//   - Public methods are serialized by one mutex and may be called from any goroutine
//   - All I/O is synchronous; a rebuild runs to completion once started
//   - Handlers are owned by the registry; returned maps are copies and
//     callers must not close the handlers in them
//
// Logging:
//   - Logger is dependency-injected via Config.Logger
//   - Registry owns its scoped logger (component="source-registry")
//   - Failures that the API converts to empty/false results are logged here
type Registry struct {
	mu sync.Mutex

	state   State
	sources []Descriptor

	// Lock-step with sources: every live descriptor has an entry in both.
	tables   map[Key]spatial.Table
	handlers map[Key]spatial.Handler

	// At most one open handler per database path.
	open map[string]spatial.Handler

	store  config.Store
	opener spatial.Opener
	mode   spatial.QueryMode

	logger *slog.Logger
}

// Config configures a Registry.
type Config struct {
	// Store persists the source list. If nil, an in-memory store is used
	// and sources do not survive a restart.
	Store config.Store

	// Opener opens database files. Defaults to a spatial.SQLiteOpener
	// running in the registry's query mode.
	Opener spatial.Opener

	// Logger for structured logging. If nil, logging is disabled.
	// The registry scopes this logger with component="source-registry".
	Logger *slog.Logger
}

// NewRegistry creates a Registry. The live list is not loaded until first
// use. If the recovery flag is set in the store, the registry starts in
// corrective query mode and clears the flag.
func NewRegistry(ctx context.Context, cfg Config) (*Registry, error) {
	if cfg.Store == nil {
		cfg.Store = memory.NewStore()
	}
	r := &Registry{
		state:    StateUninitialized,
		tables:   make(map[Key]spatial.Table),
		handlers: make(map[Key]spatial.Handler),
		open:     make(map[string]spatial.Handler),
		store:    cfg.Store,
		mode:     spatial.QueryModeStrict,
		logger:   logging.Default(cfg.Logger).With("component", "source-registry"),
	}

	recovery, err := config.GetBool(ctx, cfg.Store, RecoveryModeKey, false)
	if err != nil {
		return nil, fmt.Errorf("read recovery flag: %w", err)
	}
	if recovery {
		// Recovery applies to one start only.
		if err := config.PutBool(ctx, cfg.Store, RecoveryModeKey, false); err != nil {
			return nil, fmt.Errorf("reset recovery flag: %w", err)
		}
		r.mode = spatial.QueryModeCorrective
		r.logger.Warn("recovery mode enabled for this session", "query_mode", r.mode)
	}

	r.opener = cfg.Opener
	if r.opener == nil {
		r.opener = spatial.SQLiteOpener{Mode: r.mode}
	}

	return r, nil
}

// Sources returns the live source list, rebuilding it first if needed.
// Failures while rebuilding are logged and yield an empty list.
func (r *Registry) Sources(ctx context.Context) []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLocked(ctx)
	return slices.Clone(r.sources)
}

// SaveSources persists ds under SettingsKey. The live list is not changed.
func (r *Registry) SaveSources(ctx context.Context, ds []Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(ctx, ds)
}

// SaveCurrentSources persists the live list. Failures are logged only.
func (r *Registry) SaveCurrentSources(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLocked(ctx)
	if err := r.saveLocked(ctx, r.sources); err != nil {
		r.logger.Error("save current sources", "error", err)
	}
}

// AddFromFile adds every table of the database at path that is not already
// a live source, then persists the live list. It reports whether anything
// was added. Open and discovery failures are logged and yield false.
func (r *Registry) AddFromFile(ctx context.Context, path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		r.logger.Warn("resolve path", "path", path, "error", err)
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLocked(ctx)

	h, fresh := r.open[abs], false
	if h == nil {
		if h = r.openHandler(ctx, abs); h == nil {
			return false
		}
		fresh = true
	}

	tables, err := h.Tables(ctx)
	if err != nil {
		r.logger.Warn("list tables", "path", abs, "error", err)
		if fresh {
			r.closeHandler(h)
		}
		return false
	}

	added := 0
	for _, t := range tables {
		d := FromTable(t)
		d.DatabasePath = abs
		k := d.Key()
		if _, ok := r.tables[k]; ok {
			continue
		}
		r.sources = append(r.sources, d)
		r.tables[k] = t
		r.handlers[k] = h
		added++
	}

	if added == 0 {
		if fresh {
			r.closeHandler(h)
		}
		return false
	}
	r.open[abs] = h

	r.logger.Info("sources added", "path", abs, "count", added)
	if err := r.saveLocked(ctx, r.sources); err != nil {
		r.logger.Error("persist sources after add", "path", abs, "error", err)
	}
	return true
}

// Remove removes d from the live list and persists the result. See RemoveAll.
func (r *Registry) Remove(ctx context.Context, d Descriptor) error {
	return r.RemoveAll(ctx, []Descriptor{d})
}

// RemoveAll removes ds from the live list, closes the handler of every path
// no longer referenced by a live source, and persists the result once.
// The in-memory removal stands even when persisting fails.
func (r *Registry) RemoveAll(ctx context.Context, ds []Descriptor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLocked(ctx)

	drop := make(map[Key]struct{}, len(ds))
	for _, d := range ds {
		drop[d.Key()] = struct{}{}
	}

	removed := 0
	r.sources = slices.DeleteFunc(r.sources, func(d Descriptor) bool {
		_, ok := drop[d.Key()]
		if ok {
			removed++
		}
		return ok
	})
	for k := range drop {
		delete(r.tables, k)
		delete(r.handlers, k)
	}

	for path, h := range r.open {
		if !r.referencedLocked(path) {
			r.closeHandler(h)
			delete(r.open, path)
		}
	}

	r.logger.Info("sources removed", "count", removed)
	return r.saveLocked(ctx, r.sources)
}

// OpenHandler probes path and returns a validated handler, or nil if path is
// not an existing file of a supported kind. The registry does not keep the
// handler; the caller owns it.
func (r *Registry) OpenHandler(ctx context.Context, path string) spatial.Handler {
	return r.openHandler(ctx, path)
}

// TableMap returns a copy of the live source to table associations.
func (r *Registry) TableMap(ctx context.Context) map[Key]spatial.Table {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLocked(ctx)
	return maps.Clone(r.tables)
}

// HandlerMap returns a copy of the live source to handler associations.
func (r *Registry) HandlerMap(ctx context.Context) map[Key]spatial.Handler {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLocked(ctx)
	return maps.Clone(r.handlers)
}

// Paths returns the distinct database paths of the live list. The list is
// loaded on first use, but a stale list is returned as it stands rather
// than rebuilt, so callers reacting to file changes do not reopen every
// database.
func (r *Registry) Paths(ctx context.Context) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateUninitialized {
		r.rebuildLocked(ctx)
	}
	paths, _ := groupByPath(r.sources)
	return paths
}

// Invalidate marks a populated registry stale so that the next access
// rebuilds the live list.
func (r *Registry) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StatePopulated {
		r.state = StateStale
		r.logger.Debug("registry invalidated")
	}
}

// State returns the current lifecycle state.
func (r *Registry) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// QueryMode returns the mode the registry started in. The default opener
// runs its handlers in this mode; a caller-supplied Opener receives it only
// if the caller passes it on.
func (r *Registry) QueryMode() spatial.QueryMode {
	return r.mode
}

// Close closes every open handler and returns the registry to the
// uninitialized state. The registry remains usable. Errors from closing
// handlers are joined.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.resetLocked()
	r.state = StateUninitialized
	return err
}

func (r *Registry) ensureLocked(ctx context.Context) {
	if r.state == StatePopulated {
		return
	}
	r.rebuildLocked(ctx)
}

// rebuildLocked replaces all live state with the persisted list, keeping
// only descriptors whose table is found in its file.
func (r *Registry) rebuildLocked(ctx context.Context) {
	if err := r.resetLocked(); err != nil {
		r.logger.Warn("close databases before reload", "error", err)
	}
	r.state = StatePopulated

	persisted, err := r.loadLocked(ctx)
	if err != nil {
		r.logger.Error("load persisted sources", "error", err)
		return
	}

	// One handler per path serves every descriptor under it.
	paths, wanted := groupByPath(persisted)
	found := make(map[Key]spatial.Table, len(persisted))
	for _, path := range paths {
		h := r.openHandler(ctx, path)
		if h == nil {
			continue
		}
		tables, err := h.Tables(ctx)
		if err != nil {
			r.logger.Warn("list tables", "path", path, "error", err)
			r.closeHandler(h)
			continue
		}
		matched := false
		for _, t := range tables {
			if _, ok := wanted[path][t.Title]; ok {
				found[Key{DatabasePath: path, Title: t.Title}] = t
				matched = true
			}
		}
		if !matched {
			r.closeHandler(h)
			continue
		}
		r.open[path] = h
	}

	dropped := 0
	for _, d := range persisted {
		k := d.Key()
		if _, dup := r.tables[k]; dup {
			continue
		}
		t, ok := found[k]
		if !ok {
			dropped++
			r.logger.Debug("source not found in database", "path", d.DatabasePath, "title", d.Title)
			continue
		}
		r.sources = append(r.sources, d)
		r.tables[k] = t
		r.handlers[k] = r.open[d.DatabasePath]
	}

	r.logger.Info("sources loaded", "count", len(r.sources), "dropped", dropped, "files", len(r.open))
}

// resetLocked closes every handler and clears the live state. The state is
// cleared even when closing fails.
func (r *Registry) resetLocked() error {
	var errs []error
	for path, h := range r.open {
		if err := h.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", path, err))
		}
	}
	r.sources = nil
	r.tables = make(map[Key]spatial.Table)
	r.handlers = make(map[Key]spatial.Handler)
	r.open = make(map[string]spatial.Handler)
	return errors.Join(errs...)
}

func (r *Registry) loadLocked(ctx context.Context) ([]Descriptor, error) {
	v, err := r.store.GetSetting(ctx, SettingsKey)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", SettingsKey, err)
	}
	if v == nil {
		return nil, nil
	}
	return Decode(*v)
}

func (r *Registry) saveLocked(ctx context.Context, ds []Descriptor) error {
	data, err := Encode(ds)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	if err := r.store.PutSetting(ctx, SettingsKey, data); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrSerialization, SettingsKey, err)
	}
	return nil
}

func (r *Registry) referencedLocked(path string) bool {
	for _, d := range r.sources {
		if d.DatabasePath == path {
			return true
		}
	}
	return false
}

func (r *Registry) openHandler(ctx context.Context, path string) spatial.Handler {
	kind, ok := spatial.KindForPath(path)
	if !ok {
		r.logger.Debug("unsupported file", "path", path)
		return nil
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		r.logger.Debug("not a regular file", "path", path, "error", err)
		return nil
	}
	h, err := r.opener.Open(ctx, path, kind)
	if err != nil {
		r.logger.Warn("open database", "path", path, "kind", kind, "error", err)
		return nil
	}
	return h
}

func (r *Registry) closeHandler(h spatial.Handler) {
	if err := h.Close(); err != nil {
		r.logger.Warn("close database", "path", h.Path(), "error", err)
	}
}
