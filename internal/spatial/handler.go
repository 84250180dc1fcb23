package spatial

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"

	_ "modernc.org/sqlite"
)

// Handler is an open connection to one spatial database file.
// Implementations must be safe for concurrent use.
type Handler interface {
	// Path returns the database file path the handler was opened with.
	Path() string

	// Kind returns the container format.
	Kind() Kind

	// Tables returns the discoverable tables. The result is computed once
	// per handler and cached.
	Tables(ctx context.Context) ([]Table, error)

	// Close releases the connection. Closing twice is a no-op.
	Close() error
}

// Opener opens a handler for a file of a known kind. It must return an
// error, not a handler, when the file is not a valid database of that kind.
type Opener interface {
	Open(ctx context.Context, path string, kind Kind) (Handler, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, path string, kind Kind) (Handler, error)

// Open calls f.
func (f OpenerFunc) Open(ctx context.Context, path string, kind Kind) (Handler, error) {
	return f(ctx, path, kind)
}

// ErrClosed is returned by Tables after Close.
var ErrClosed = errors.New("spatial handler closed")

// discoverFunc enumerates the tables of an open database.
type discoverFunc func(ctx context.Context, db *sql.DB, path string) ([]Table, error)

// SQLiteOpener opens Spatialite and GeoPackage files with the pure-Go
// SQLite driver. Connections are query-only; the opener never creates or
// modifies a file.
type SQLiteOpener struct {
	// Mode is passed to every handler. The zero value is QueryModeStrict.
	Mode QueryMode
}

var _ Opener = SQLiteOpener{}

// Open validates path as a database of kind and returns a handler for it.
func (o SQLiteOpener) Open(ctx context.Context, path string, kind Kind) (Handler, error) {
	var (
		marker   string
		discover discoverFunc
	)
	switch kind {
	case KindSpatialite:
		marker, discover = "geometry_columns", discoverSpatialite
	case KindGeoPackage:
		marker, discover = "gpkg_contents", discoverGeoPackage
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, path)
	}

	// sql.Open would create a missing file; refuse anything but an existing regular file.
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%s is not a regular file", path)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=query_only(1)")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ok, err := tableExists(ctx, db, marker)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("inspect %s: %w", path, err)
	}
	if !ok {
		db.Close()
		return nil, fmt.Errorf("%w: %s has no %s table", ErrNotSpatial, path, marker)
	}

	return &sqliteHandler{db: db, path: path, kind: kind, mode: o.Mode, discover: discover}, nil
}

// sqliteHandler is the Handler returned by SQLiteOpener.
type sqliteHandler struct {
	mu       sync.Mutex
	db       *sql.DB
	path     string
	kind     Kind
	mode     QueryMode
	discover discoverFunc
	tables   []Table
	loaded   bool
	closed   bool
}

func (h *sqliteHandler) Path() string { return h.path }
func (h *sqliteHandler) Kind() Kind   { return h.kind }

func (h *sqliteHandler) Tables(ctx context.Context) ([]Table, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	if !h.loaded {
		tables, err := h.discover(ctx, h.db, h.path)
		if err != nil {
			return nil, fmt.Errorf("discover tables in %s: %w", h.path, err)
		}
		if h.mode == QueryModeCorrective {
			if tables, err = dropOrphans(ctx, h.db, tables); err != nil {
				return nil, fmt.Errorf("check tables in %s: %w", h.path, err)
			}
		}
		h.tables = tables
		h.loaded = true
	}
	return slices.Clone(h.tables), nil
}

func (h *sqliteHandler) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	return h.db.Close()
}

// tableExists reports whether a table or view named name exists.
func tableExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT count(*) FROM sqlite_master WHERE type IN ('table', 'view') AND lower(name) = lower(?)",
		name).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// dropOrphans removes tables whose metadata registration names a table or
// view that does not exist in the schema.
func dropOrphans(ctx context.Context, db *sql.DB, tables []Table) ([]Table, error) {
	kept := tables[:0]
	for _, t := range tables {
		ok, err := tableExists(ctx, db, t.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			kept = append(kept, t)
		}
	}
	return kept, nil
}

// columnExists reports whether table has a column named column.
func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT count(*) FROM pragma_table_info(?) WHERE lower(name) = lower(?)",
		table, column).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// extentFrom builds an Extent when all four bounds are present.
func extentFrom(minX, minY, maxX, maxY sql.NullFloat64) *Extent {
	if !minX.Valid || !minY.Valid || !maxX.Valid || !maxY.Valid {
		return nil
	}
	return &Extent{MinX: minX.Float64, MinY: minY.Float64, MaxX: maxX.Float64, MaxY: maxY.Float64}
}
