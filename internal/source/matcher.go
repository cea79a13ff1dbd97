// Package source enumerates corpus files: a project tree on disk, a ZIP
// archive in memory, or a remote repository archive. All variants produce
// the same entry shape so the pipeline does not care where bytes came from.
package source

import (
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultExcludes filters build artifacts and dependency trees out of every
// source variant.
var DefaultExcludes = []string{
	"**/node_modules/**",
	"**/.git/**",
	"**/dist/**",
	"**/build/**",
	"**/out/**",
	"**/vendor/**",
	"**/coverage/**",
	"**/__pycache__/**",
	"**/.venv/**",
	"**/*.min.js",
	"**/*.min.css",
	"**/*.map",
	"**/.DS_Store",
}

// Matcher decides path inclusion from doublestar glob patterns. An empty
// include list admits everything; excludes always win.
type Matcher struct {
	include []string
	exclude []string
}

// NewMatcher builds a matcher. DefaultExcludes are always appended.
func NewMatcher(include, exclude []string) *Matcher {
	return &Matcher{
		include: include,
		exclude: append(append([]string(nil), exclude...), DefaultExcludes...),
	}
}

// Match reports whether the slash-separated project-relative path is in
// scope.
func (m *Matcher) Match(relPath string) bool {
	relPath = filepath.ToSlash(relPath)

	for _, pattern := range m.exclude {
		if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
			return false
		}
	}
	if len(m.include) == 0 {
		return true
	}
	for _, pattern := range m.include {
		if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
			return true
		}
	}
	return false
}

// prunedDirs are directory names whose whole subtree is never in scope.
// Pruning them at walk time avoids descending into huge dependency trees.
var prunedDirs = map[string]bool{
	"node_modules": true,
	".git":         true,
	"dist":         true,
	"build":        true,
	"out":          true,
	"vendor":       true,
	"coverage":     true,
	"__pycache__":  true,
	".venv":        true,
}

// MatchDir reports whether a directory may contain in-scope files.
func (m *Matcher) MatchDir(relPath string) bool {
	return !prunedDirs[filepath.Base(strings.TrimSuffix(relPath, "/"))]
}
