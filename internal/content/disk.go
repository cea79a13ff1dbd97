package content

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/codegraphhq/codegraph/internal/model"
)

// DiskProvider reads file bytes from the local filesystem.
type DiskProvider struct {
	// Parallelism bounds concurrent reads in ReadBatch.
	Parallelism int
}

// NewDiskProvider creates a disk provider with the given read parallelism.
func NewDiskProvider(parallelism int) *DiskProvider {
	if parallelism <= 0 {
		parallelism = 8
	}
	return &DiskProvider{Parallelism: parallelism}
}

// Read returns the raw bytes at the file's absolute path.
func (p *DiskProvider) Read(ctx context.Context, file *model.File) ([]byte, error) {
	if file.AbsolutePath == "" {
		return nil, fmt.Errorf("%w: %s has no absolute path", ErrNotFound, file.Path)
	}
	data, err := os.ReadFile(file.AbsolutePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, file.AbsolutePath)
		}
		return nil, fmt.Errorf("%w: %s; %v", ErrUnreadable, file.AbsolutePath, err)
	}
	return data, nil
}

// ReadWithHash returns the bytes and their content hash.
func (p *DiskProvider) ReadWithHash(ctx context.Context, file *model.File) ([]byte, string, error) {
	data, err := p.Read(ctx, file)
	if err != nil {
		return nil, "", err
	}
	return data, model.Hash16(data), nil
}

// Exists reports whether the path is a readable regular file.
func (p *DiskProvider) Exists(ctx context.Context, file *model.File) bool {
	if file.AbsolutePath == "" {
		return false
	}
	info, err := os.Stat(file.AbsolutePath)
	return err == nil && info.Mode().IsRegular()
}

// ReadBatch reads files concurrently, bounded by Parallelism.
func (p *DiskProvider) ReadBatch(ctx context.Context, files []*model.File) (*BatchResult, error) {
	result := newBatchResult()

	type item struct {
		uuid string
		data []byte
		hash string
		err  error
	}

	items := make([]item, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Parallelism)

	for i, f := range files {
		g.Go(func() error {
			data, hash, err := p.ReadWithHash(gctx, f)
			items[i] = item{uuid: f.UUID, data: data, hash: hash, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, it := range items {
		if it.err != nil {
			result.Errors[it.uuid] = it.err
			continue
		}
		result.Content[it.uuid] = it.data
		result.Hashes[it.uuid] = it.hash
	}
	return result, nil
}
