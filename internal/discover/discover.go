// Package discover finds spatial database files by glob pattern.
//
// Patterns use doublestar syntax, so "**" matches any number of directories.
// Relative patterns are resolved against the working directory.
package discover

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"mapsources/internal/spatial"
)

// DefaultPatterns returns the patterns matching every supported database
// file below dir.
func DefaultPatterns(dir string) []string {
	exts := spatial.Extensions()
	names := make([]string, len(exts))
	for i, ext := range exts {
		names[i] = strings.TrimPrefix(ext, ".")
	}
	return []string{filepath.Join(dir, "**", "*.{"+strings.Join(names, ",")+"}")}
}

// Files returns deduplicated absolute paths of regular files that match any
// of the patterns and carry a supported database extension.
func Files(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var result []string

	for _, pattern := range patterns {
		pattern, err := absPattern(pattern)
		if err != nil {
			return nil, err
		}

		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, err
		}

		for _, m := range matches {
			abs, err := filepath.Abs(m)
			if err != nil || !spatial.Supported(abs) {
				continue
			}
			info, err := os.Stat(abs)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			if !seen[abs] {
				seen[abs] = true
				result = append(result, abs)
			}
		}
	}

	return result, nil
}

// WatchDirs returns the static directory prefix of each pattern, the
// deepest directory that contains every possible match.
func WatchDirs(patterns []string) []string {
	seen := make(map[string]bool)
	var dirs []string

	for _, pattern := range patterns {
		if abs, err := absPattern(pattern); err == nil {
			pattern = abs
		}
		dir := staticPrefix(pattern)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	return dirs
}

// Matches reports whether path is a supported database file matching any of
// the patterns.
func Matches(path string, patterns []string) bool {
	if !spatial.Supported(path) {
		return false
	}
	for _, pattern := range patterns {
		if abs, err := absPattern(pattern); err == nil {
			pattern = abs
		}
		if ok, _ := doublestar.PathMatch(pattern, path); ok {
			return true
		}
	}
	return false
}

func absPattern(pattern string) (string, error) {
	if filepath.IsAbs(pattern) {
		return pattern, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, pattern), nil
}

// staticPrefix returns the longest directory path before the first glob character.
func staticPrefix(pattern string) string {
	for i, c := range pattern {
		if c == '*' || c == '?' || c == '[' || c == '{' {
			return filepath.Dir(pattern[:i])
		}
	}
	// A literal file path; watch its directory.
	return filepath.Dir(pattern)
}
