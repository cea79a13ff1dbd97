// Package content provides uniform read-by-identity access to file bytes,
// whether they live on disk or as properties on graph-resident File nodes.
package content

import (
	"context"
	"errors"

	"github.com/codegraphhq/codegraph/internal/model"
)

var (
	// ErrNotFound is returned when the file's bytes cannot be located.
	ErrNotFound = errors.New("file content not found")

	// ErrUnreadable is returned when the file exists but cannot be read.
	ErrUnreadable = errors.New("file content unreadable")
)

// BatchResult aggregates the outcome of a batched read.
type BatchResult struct {
	// Content maps file uuid to raw bytes.
	Content map[string][]byte

	// Hashes maps file uuid to the 16-hex-char content hash.
	Hashes map[string]string

	// Errors maps file uuid to the read failure, if any.
	Errors map[string]error
}

func newBatchResult() *BatchResult {
	return &BatchResult{
		Content: map[string][]byte{},
		Hashes:  map[string]string{},
		Errors:  map[string]error{},
	}
}

func (r *BatchResult) merge(other *BatchResult) {
	for k, v := range other.Content {
		r.Content[k] = v
	}
	for k, v := range other.Hashes {
		r.Hashes[k] = v
	}
	for k, v := range other.Errors {
		r.Errors[k] = v
	}
}

// Provider reads file bytes by identity.
type Provider interface {
	// Read returns the raw bytes of the file.
	Read(ctx context.Context, file *model.File) ([]byte, error)

	// ReadWithHash returns the raw bytes and their 16-hex-char SHA-256 hash.
	ReadWithHash(ctx context.Context, file *model.File) ([]byte, string, error)

	// Exists reports whether the file's bytes are available.
	Exists(ctx context.Context, file *model.File) bool

	// ReadBatch reads many files, parallelising or batching as the variant
	// allows. Per-file failures land in the result's Errors map; the call
	// itself only fails on infrastructure errors.
	ReadBatch(ctx context.Context, files []*model.File) (*BatchResult, error)
}
