// Package home manages the mapsources home directory layout.
//
// The home directory owns all persistent state of the registry: the config
// store holding the serialized source list, and the default maps directory
// scanned for database files.
//
// Layout:
//
//	<root>/
//	  config.json   or  config.db     (config store, type-dependent)
//	  maps/                            (spatial database files: .sqlite, .db, .gpkg)
package home

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir represents a mapsources home directory.
type Dir struct {
	root string
}

// New creates a Dir with an explicit root path.
func New(root string) Dir {
	return Dir{root: root}
}

// Default returns a Dir using the platform-appropriate default location:
//   - Linux:   ~/.config/mapsources
//   - macOS:   ~/Library/Application Support/mapsources
//   - Windows: %APPDATA%/mapsources
func Default() (Dir, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return Dir{}, fmt.Errorf("determine config directory: %w", err)
	}
	return Dir{root: filepath.Join(base, "mapsources")}, nil
}

// Root returns the home directory path.
func (d Dir) Root() string {
	return d.root
}

// ConfigPath returns the config store path for the given store type.
// The SQLite store uses config.db; every other type uses config.json.
func (d Dir) ConfigPath(configType string) string {
	if configType == "sqlite" {
		return filepath.Join(d.root, "config.db")
	}
	return filepath.Join(d.root, "config.json")
}

// MapsDir returns the default directory scanned for spatial database files.
func (d Dir) MapsDir() string {
	return filepath.Join(d.root, "maps")
}

// EnsureExists creates the home directory (and parents) if it doesn't exist.
func (d Dir) EnsureExists() error {
	if err := os.MkdirAll(d.root, 0o750); err != nil {
		return fmt.Errorf("create home directory %s: %w", d.root, err)
	}
	return nil
}
