package cli

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mapsources/internal/source"
)

type status struct {
	Home         string     `json:"home"`
	ConfigType   string     `json:"configType"`
	ConfigPath   string     `json:"configPath,omitempty"`
	MapsDir      string     `json:"mapsDir"`
	Sources      int        `json:"sources"`
	Files        int        `json:"files"`
	SourcesSaved *time.Time `json:"sourcesSaved,omitempty"`
	QueryMode    string     `json:"queryMode"`
}

// updateTimer is implemented by config stores that record when each
// setting was last written.
type updateTimer interface {
	UpdatedAt(ctx context.Context, key string) (time.Time, error)
}

// NewStatusCommand returns the "status" command.
func NewStatusCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the home directory, config store and source summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, logger, func(a *app) error {
				sources := a.registry.Sources(cmd.Context())
				files := make(map[string]struct{})
				for _, d := range sources {
					files[d.DatabasePath] = struct{}{}
				}

				st := status{
					Home:       a.home.Root(),
					ConfigType: a.configType,
					MapsDir:    a.home.MapsDir(),
					Sources:    len(sources),
					Files:      len(files),
					QueryMode:  a.registry.QueryMode().String(),
				}
				if a.configType != "memory" {
					st.ConfigPath = a.home.ConfigPath(a.configType)
				}
				if ut, ok := a.store.(updateTimer); ok {
					saved, err := ut.UpdatedAt(cmd.Context(), source.SettingsKey)
					if err != nil {
						return err
					}
					if !saved.IsZero() {
						st.SourcesSaved = &saved
					}
				}

				p := newPrinter(cmd)
				if p.isJSON() {
					return p.json(st)
				}
				p.kv([][2]string{
					{"Home", st.Home},
					{"Config", st.ConfigType + " " + st.ConfigPath},
					{"Maps dir", st.MapsDir},
					{"Sources", strconv.Itoa(st.Sources)},
					{"Files", strconv.Itoa(st.Files)},
					{"Sources saved", formatSaved(st.SourcesSaved)},
					{"Query mode", st.QueryMode},
				})
				return nil
			})
		},
	}
}

func formatSaved(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format(time.RFC3339)
}
