package source

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/codegraphhq/codegraph/internal/model"
	"github.com/codegraphhq/codegraph/internal/state"
)

// DiskSource enumerates a project tree on disk.
type DiskSource struct {
	Root    string
	Include []string
	Exclude []string
}

// Scan walks the tree and returns one discovery entry per in-scope file,
// with the raw content hash already computed.
func (s *DiskSource) Scan(ctx context.Context) ([]state.DiscoveredFile, error) {
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root; %w", err)
	}
	matcher := NewMatcher(s.Include, s.Exclude)

	var entries []state.DiscoveredFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if rel != "." && !matcher.MatchDir(rel) {
				return fs.SkipDir
			}
			return nil
		}
		if !matcher.Match(rel) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		entries = append(entries, state.DiscoveredFile{
			Path:           filepath.ToSlash(rel),
			AbsolutePath:   path,
			RawContentHash: model.Hash16(data),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s; %w", root, err)
	}
	return entries, nil
}
