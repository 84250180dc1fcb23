// Package source manages the configured collection of map sources.
//
// A map source is one drawable table inside a spatial database file. The
// configured list is persisted in the config store under SettingsKey; the
// Registry reconciles it against the tables actually present in the files
// and hands out live table and handler associations to renderers.
package source

import (
	"errors"

	"mapsources/internal/spatial"
)

const (
	// SettingsKey is the config store key holding the serialized source list.
	SettingsKey = "spatialite_maps"

	// RecoveryModeKey is the config store key of the one-shot recovery flag.
	RecoveryModeKey = "spatialite_recovery_mode"
)

// ErrSerialization is wrapped by every error returned from persisting the
// source list.
var ErrSerialization = errors.New("source list serialization failed")

// Descriptor is a persisted reference to one table in a database file.
// Two descriptors denote the same source iff their Keys are equal.
type Descriptor struct {
	DatabasePath string `json:"databasePath"`
	Title        string `json:"title"`
	TableType    string `json:"tableType"`
	GeometryType string `json:"geometryType"`
}

// FromTable builds the descriptor for a discovered table.
func FromTable(t spatial.Table) Descriptor {
	return Descriptor{
		DatabasePath: t.DatabasePath,
		Title:        t.Title,
		TableType:    t.TypeDescription(),
		GeometryType: t.GeometryDescription(),
	}
}

// State is the lifecycle state of a Registry.
type State int

const (
	// StateUninitialized: the live list has not been loaded yet.
	StateUninitialized State = iota
	// StatePopulated: the live list reflects the last rebuild and mutations since.
	StatePopulated
	// StateStale: the next access rebuilds the live list from the store.
	StateStale
)

func (s State) String() string {
	switch s {
	case StatePopulated:
		return "populated"
	case StateStale:
		return "stale"
	default:
		return "uninitialized"
	}
}
