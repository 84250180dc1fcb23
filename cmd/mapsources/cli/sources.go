package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"mapsources/internal/scan"
	"mapsources/internal/source"
	"mapsources/internal/spatial"
)

// NewSourcesCommand returns the "sources" command with all subcommands wired in.
func NewSourcesCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage configured map sources",
	}
	cmd.AddCommand(
		newSourcesListCmd(logger),
		newSourcesAddCmd(logger),
		newSourcesRemoveCmd(logger),
		newSourcesScanCmd(logger),
		newSourcesSaveCmd(logger),
		newSourcesTablesCmd(logger),
	)
	return cmd
}

func newSourcesListCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured sources whose tables are present",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, logger, func(a *app) error {
				sources := a.registry.Sources(cmd.Context())
				p := newPrinter(cmd)
				if p.isJSON() {
					return p.json(sources)
				}
				p.table([]string{"TITLE", "TYPE", "GEOMETRY", "DATABASE"}, descriptorRows(sources))
				return nil
			})
		},
	}
}

func newSourcesAddCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "add <file>...",
		Short: "Add every table of one or more database files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, logger, func(a *app) error {
				type result struct {
					Path  string `json:"path"`
					Added bool   `json:"added"`
				}
				results := make([]result, 0, len(args))
				for _, path := range args {
					results = append(results, result{Path: path, Added: a.registry.AddFromFile(cmd.Context(), path)})
				}

				p := newPrinter(cmd)
				if p.isJSON() {
					return p.json(results)
				}
				for _, r := range results {
					if r.Added {
						p.line("added sources from %s", r.Path)
					} else {
						p.line("nothing new in %s", r.Path)
					}
				}
				return nil
			})
		},
	}
}

func newSourcesRemoveCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <database> [title...]",
		Short: "Remove sources of a database file (all of them if no title is given)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			titles := args[1:]

			return withApp(cmd, logger, func(a *app) error {
				var drop []source.Descriptor
				for _, d := range a.registry.Sources(cmd.Context()) {
					if d.DatabasePath != path {
						continue
					}
					if len(titles) == 0 || slices.Contains(titles, d.Title) {
						drop = append(drop, d)
					}
				}
				if len(drop) == 0 {
					return fmt.Errorf("no matching sources for %s", path)
				}

				if err := a.registry.RemoveAll(cmd.Context(), drop); err != nil {
					if errors.Is(err, source.ErrSerialization) {
						return fmt.Errorf("sources removed for this session but not saved: %w", err)
					}
					return err
				}

				p := newPrinter(cmd)
				if p.isJSON() {
					return p.json(drop)
				}
				p.line("removed %d source(s)", len(drop))
				return nil
			})
		},
	}
}

func newSourcesScanCmd(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Add every database file matching the patterns (default: <home>/maps/**)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, logger, func(a *app) error {
				res, err := scan.New(a.registry, a.patterns(cmd), logger).Run(cmd.Context())
				if err != nil {
					return err
				}

				p := newPrinter(cmd)
				if p.isJSON() {
					return p.json(res)
				}
				p.line("scanned %d file(s), added sources from %d", res.Files, len(res.Added))
				for _, path := range res.Added {
					p.line("  %s", path)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringSlice("pattern", nil, "glob pattern of database files (repeatable, ** allowed)")
	return cmd
}

func newSourcesSaveCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Rewrite the stored list with the sources currently present",
		Long:  "Sources whose database file or table is missing are dropped from the stored list.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, logger, func(a *app) error {
				a.registry.SaveCurrentSources(cmd.Context())
				newPrinter(cmd).line("saved %d source(s)", len(a.registry.Sources(cmd.Context())))
				return nil
			})
		},
	}
}

// tableInfo is the JSON shape of a discovered table.
type tableInfo struct {
	Title          string          `json:"title"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	Geometry       string          `json:"geometry,omitempty"`
	GeometryColumn string          `json:"geometryColumn,omitempty"`
	SRID           int             `json:"srid"`
	Extent         *spatial.Extent `json:"extent,omitempty"`
}

func newSourcesTablesCmd(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "tables <file>",
		Short: "List the tables a database file offers, without adding them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, logger, func(a *app) error {
				h := a.registry.OpenHandler(cmd.Context(), args[0])
				if h == nil {
					return fmt.Errorf("%s is not a supported spatial database", args[0])
				}
				defer h.Close()

				tables, err := h.Tables(cmd.Context())
				if err != nil {
					return err
				}

				p := newPrinter(cmd)
				if p.isJSON() {
					infos := make([]tableInfo, len(tables))
					for i, t := range tables {
						infos[i] = tableInfo{
							Title:          t.Title,
							Name:           t.Name,
							Type:           t.TypeDescription(),
							Geometry:       t.GeometryDescription(),
							GeometryColumn: t.GeometryColumn,
							SRID:           t.SRID,
							Extent:         t.Extent,
						}
					}
					return p.json(infos)
				}
				var rows [][]string
				for _, t := range tables {
					rows = append(rows, []string{
						t.Title, t.TypeDescription(), t.GeometryDescription(),
						strconv.Itoa(t.SRID), formatExtent(t.Extent),
					})
				}
				p.table([]string{"TITLE", "TYPE", "GEOMETRY", "SRID", "EXTENT"}, rows)
				return nil
			})
		},
	}
}

func descriptorRows(ds []source.Descriptor) [][]string {
	rows := make([][]string, 0, len(ds))
	for _, d := range ds {
		rows = append(rows, []string{d.Title, d.TableType, d.GeometryType, d.DatabasePath})
	}
	return rows
}

func formatExtent(e *spatial.Extent) string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%g,%g %g,%g", e.MinX, e.MinY, e.MaxX, e.MaxY)
}
