package source

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/codegraphhq/codegraph/internal/model"
)

// VirtualEntry is one file extracted from an archive or remote repository.
type VirtualEntry struct {
	Path     string
	Content  []byte
	Metadata model.Props
}

// maxArchiveFileBytes caps a single extracted file. Larger members are
// skipped, not failed: archives routinely carry bundled assets.
const maxArchiveFileBytes = 50 << 20

// ExtractZip unpacks a ZIP buffer into virtual entries, applying the
// default excludes and the optional include/exclude patterns. A single
// top-level directory wrapping everything (the GitHub archive shape) is
// stripped from the paths.
func ExtractZip(data []byte, include, exclude []string) ([]VirtualEntry, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open zip; %w", err)
	}

	prefix := commonRootPrefix(reader.File)
	matcher := NewMatcher(include, exclude)

	var entries []VirtualEntry
	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		rel := strings.TrimPrefix(f.Name, prefix)
		if rel == "" || strings.HasPrefix(rel, "..") || path.IsAbs(rel) {
			continue
		}
		if !matcher.Match(rel) {
			continue
		}
		if f.UncompressedSize64 > maxArchiveFileBytes {
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s in zip; %w", f.Name, err)
		}
		content, err := io.ReadAll(io.LimitReader(rc, maxArchiveFileBytes+1))
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s from zip; %w", f.Name, err)
		}
		if int64(len(content)) > maxArchiveFileBytes {
			continue
		}

		entries = append(entries, VirtualEntry{
			Path:    rel,
			Content: content,
			Metadata: model.Props{
				"source":       "archive",
				"originalPath": f.Name,
			},
		})
	}
	return entries, nil
}

// commonRootPrefix returns the single top-level directory shared by every
// member, or "" when the archive has no such wrapper.
func commonRootPrefix(files []*zip.File) string {
	prefix := ""
	for _, f := range files {
		name := f.Name
		idx := strings.Index(name, "/")
		if idx <= 0 {
			return ""
		}
		root := name[:idx+1]
		if prefix == "" {
			prefix = root
			continue
		}
		if root != prefix {
			return ""
		}
	}
	return prefix
}
