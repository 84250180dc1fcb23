// Package scan adds every discovered spatial database file to the source
// registry.
package scan

import (
	"context"
	"fmt"
	"log/slog"

	"mapsources/internal/discover"
	"mapsources/internal/logging"
)

// Adder is the part of source.Registry a scan needs.
type Adder interface {
	AddFromFile(ctx context.Context, path string) bool
}

// Result summarizes one scan.
type Result struct {
	Files int      `json:"files"` // files discovered
	Added []string `json:"added"` // files that contributed at least one new source
}

// Scanner discovers database files by pattern and offers each to the registry.
type Scanner struct {
	registry Adder
	patterns []string
	logger   *slog.Logger
}

// New creates a Scanner. The logger is scoped with component="scanner".
func New(registry Adder, patterns []string, logger *slog.Logger) *Scanner {
	return &Scanner{
		registry: registry,
		patterns: patterns,
		logger:   logging.Default(logger).With("component", "scanner"),
	}
}

// Run discovers files and adds each to the registry. Files that are not
// valid databases or contribute nothing new are skipped by the registry.
// Cancelling ctx stops the scan between files.
func (s *Scanner) Run(ctx context.Context) (Result, error) {
	files, err := discover.Files(s.patterns)
	if err != nil {
		return Result{}, fmt.Errorf("discover files: %w", err)
	}

	res := Result{Files: len(files)}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if s.registry.AddFromFile(ctx, path) {
			res.Added = append(res.Added, path)
		}
	}

	s.logger.Info("scan complete", "files", res.Files, "added", len(res.Added))
	return res, nil
}
