// Package cli implements the mapsources subcommand tree. Every command opens
// the config store and source registry of the selected home directory, works
// on them, and closes them before returning.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"mapsources/internal/config"
	configfile "mapsources/internal/config/file"
	configmem "mapsources/internal/config/memory"
	configsqlite "mapsources/internal/config/sqlite"
	"mapsources/internal/discover"
	"mapsources/internal/home"
	"mapsources/internal/source"
)

// AddPersistentFlags registers the flags shared by every subcommand.
func AddPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("home", "", "home directory (default: platform config dir)")
	cmd.PersistentFlags().String("config-type", "sqlite", "config store type: sqlite, json, or memory")
	cmd.PersistentFlags().StringP("output", "o", "table", "output format: table or json")
}

// app is the state a command works on.
type app struct {
	home       home.Dir
	configType string
	store      config.Store
	registry   *source.Registry
	logger     *slog.Logger
}

// openApp opens the config store and registry selected by cmd's flags.
func openApp(cmd *cobra.Command, logger *slog.Logger) (*app, error) {
	homeFlag, _ := cmd.Flags().GetString("home")
	configType, _ := cmd.Flags().GetString("config-type")

	hd, err := resolveHome(homeFlag)
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	// For non-memory config types, ensure the home directory exists.
	if configType != "memory" {
		if err := hd.EnsureExists(); err != nil {
			return nil, err
		}
	}

	store, err := openConfigStore(hd, configType)
	if err != nil {
		return nil, fmt.Errorf("open config store: %w", err)
	}

	reg, err := source.NewRegistry(cmd.Context(), source.Config{Store: store, Logger: logger})
	if err != nil {
		closeStore(store)
		return nil, fmt.Errorf("create source registry: %w", err)
	}

	return &app{
		home:       hd,
		configType: configType,
		store:      store,
		registry:   reg,
		logger:     logger,
	}, nil
}

// Close closes the registry's handlers and the config store.
func (a *app) Close() error {
	return errors.Join(a.registry.Close(), closeStore(a.store))
}

// patterns returns the --pattern flag values, or the default patterns for
// the home maps directory.
func (a *app) patterns(cmd *cobra.Command) []string {
	if cmd.Flags().Lookup("pattern") != nil {
		if ps, _ := cmd.Flags().GetStringSlice("pattern"); len(ps) > 0 {
			return ps
		}
	}
	return discover.DefaultPatterns(a.home.MapsDir())
}

func resolveHome(flagValue string) (home.Dir, error) {
	if flagValue != "" {
		return home.New(flagValue), nil
	}
	return home.Default()
}

func openConfigStore(hd home.Dir, configType string) (config.Store, error) {
	switch configType {
	case "memory":
		return configmem.NewStore(), nil
	case "json":
		return configfile.NewStore(hd.ConfigPath("json")), nil
	case "sqlite":
		return configsqlite.NewStore(hd.ConfigPath("sqlite"))
	default:
		return nil, fmt.Errorf("unknown config store type: %q", configType)
	}
}

func closeStore(store config.Store) error {
	if c, ok := store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// withApp runs fn with an opened app and closes it afterwards. A close
// failure is returned only when fn succeeded.
func withApp(cmd *cobra.Command, logger *slog.Logger, fn func(a *app) error) (err error) {
	a, err := openApp(cmd, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close: %w", cerr)
		}
	}()
	return fn(a)
}

func outputFormat(cmd *cobra.Command) string {
	f, _ := cmd.Flags().GetString("output")
	return f
}
