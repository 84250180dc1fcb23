// Package spatial opens spatial database files and discovers the tables a
// map renderer can draw from them.
//
// Two kinds of database are supported, both SQLite containers:
//
//   - Spatialite (.sqlite, .db): vector tables registered in geometry_columns,
//     spatial views registered in views_geometry_columns.
//   - GeoPackage (.gpkg): feature and tile tables registered in gpkg_contents.
//
// A Handler owns one read-only connection to one file. Discovered tables are
// plain values; they stay valid after the handler is closed but the renderer
// can only query them through an open handler.
package spatial

import (
	"errors"
	"path/filepath"
	"strings"
)

// Kind identifies the container format of a spatial database file.
type Kind int

const (
	KindUnknown Kind = iota
	KindSpatialite
	KindGeoPackage
)

func (k Kind) String() string {
	switch k {
	case KindSpatialite:
		return "spatialite"
	case KindGeoPackage:
		return "geopackage"
	default:
		return "unknown"
	}
}

// extensions maps lower-case file extensions to the kind they denote.
var extensions = map[string]Kind{
	".sqlite": KindSpatialite,
	".db":     KindSpatialite,
	".gpkg":   KindGeoPackage,
}

// Extensions returns the supported file extensions, lower-case with the dot.
func Extensions() []string {
	return []string{".sqlite", ".db", ".gpkg"}
}

// KindForPath returns the kind implied by the file extension of path.
func KindForPath(path string) (Kind, bool) {
	k, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return k, ok
}

// Supported reports whether path has a supported database extension.
func Supported(path string) bool {
	_, ok := KindForPath(path)
	return ok
}

var (
	// ErrUnsupported is returned for files whose extension is not a supported kind.
	ErrUnsupported = errors.New("unsupported spatial database kind")

	// ErrNotSpatial is returned when a file opens as SQLite but lacks the
	// metadata tables of its kind.
	ErrNotSpatial = errors.New("not a spatial database")
)

// QueryMode selects how much a handler trusts a file's spatial metadata.
type QueryMode int

const (
	// QueryModeStrict trusts the metadata tables as-is.
	QueryModeStrict QueryMode = iota
	// QueryModeCorrective re-checks every metadata registration against the
	// schema and skips layers whose table or view is missing. It is used for
	// one start after a crash.
	QueryModeCorrective
)

func (m QueryMode) String() string {
	if m == QueryModeCorrective {
		return "corrective"
	}
	return "strict"
}
