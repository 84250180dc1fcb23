// Package config provides configuration persistence for mapsources.
//
// Store persists named settings across restarts. The source registry keeps
// its serialized source list under one well-known key; other components
// keep small flags (recovery mode) next to it.
//
// Store does not:
//   - Interpret setting values
//   - Watch for live changes
//   - Cache reads (every Get goes to the backend)
package config

import (
	"context"
	"maps"
	"strconv"
)

// Store persists and loads settings with granular key/value operations.
//
// Validation: Store does not validate setting values. It only ensures the
// data can be written and read back. Semantic validation is the
// responsibility of the component that owns the key.
type Store interface {
	// Load reads the full configuration. Returns nil if nothing exists.
	Load(ctx context.Context) (*Config, error)

	// GetSetting returns the value for key, or nil if the key is absent.
	GetSetting(ctx context.Context, key string) (*string, error)

	// ListSettings returns every stored key/value pair.
	ListSettings(ctx context.Context) (map[string]string, error)

	// PutSetting creates or replaces the value for key.
	PutSetting(ctx context.Context, key string, value string) error

	// DeleteSetting removes key. Deleting an absent key is not an error.
	DeleteSetting(ctx context.Context, key string) error
}

// Config is the full persisted configuration.
type Config struct {
	Settings map[string]string `json:"settings,omitempty"`
}

// Copy returns a deep copy of c.
func (c *Config) Copy() *Config {
	if c == nil {
		return nil
	}
	return &Config{Settings: maps.Clone(c.Settings)}
}

// GetBool reads a boolean setting. Absent or unparsable values yield def.
func GetBool(ctx context.Context, s Store, key string, def bool) (bool, error) {
	v, err := s.GetSetting(ctx, key)
	if err != nil {
		return def, err
	}
	if v == nil {
		return def, nil
	}
	b, err := strconv.ParseBool(*v)
	if err != nil {
		return def, nil
	}
	return b, nil
}

// PutBool writes a boolean setting.
func PutBool(ctx context.Context, s Store, key string, value bool) error {
	return s.PutSetting(ctx, key, strconv.FormatBool(value))
}
