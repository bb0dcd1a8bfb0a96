package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// defaultIgnorePatterns apply to every directory ingest.
var defaultIgnorePatterns = []string{IgnoreFileName, ".git"}

// ignorePattern is one parsed ignore line. Patterns containing '/' match the
// path relative to the ingest root; the rest match a basename at any depth.
type ignorePattern struct {
	glob      string
	matchPath bool
}

// IgnoreMatcher decides which files a directory ingest skips.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher parses raw pattern lines on top of the defaults.
// Blank lines and '#' comments are skipped, as are malformed globs.
func NewIgnoreMatcher(lines []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, line := range append(append([]string{}, defaultIgnorePatterns...), lines...) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSuffix(line, "/")
		if _, err := filepath.Match(line, ""); err != nil {
			continue
		}
		m.patterns = append(m.patterns, ignorePattern{
			glob:      line,
			matchPath: strings.Contains(line, "/"),
		})
	}
	return m
}

// Match reports whether relativePath, taken from the ingest root, is ignored.
func (m *IgnoreMatcher) Match(relativePath string) bool {
	if relativePath == "" {
		return false
	}
	slashed := filepath.ToSlash(relativePath)
	base := filepath.Base(relativePath)

	for _, p := range m.patterns {
		target := base
		if p.matchPath {
			target = slashed
		}
		if ok, _ := filepath.Match(p.glob, target); ok {
			return true
		}
	}
	return false
}

// ParseIgnoreFile returns the lines of an ignore file, or nil if it does
// not exist.
func ParseIgnoreFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return lines, nil
}
