package content

import (
	"context"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

// HybridProvider routes each file to the disk or virtual provider based on
// its virtuality.
type HybridProvider struct {
	disk    *DiskProvider
	virtual *VirtualProvider
}

// NewHybridProvider creates a provider over both backends.
func NewHybridProvider(client graph.Client, parallelism int) *HybridProvider {
	return &HybridProvider{
		disk:    NewDiskProvider(parallelism),
		virtual: NewVirtualProvider(client),
	}
}

func (p *HybridProvider) pick(file *model.File) Provider {
	if file.Virtual() {
		return p.virtual
	}
	return p.disk
}

// Read routes to the matching backend.
func (p *HybridProvider) Read(ctx context.Context, file *model.File) ([]byte, error) {
	return p.pick(file).Read(ctx, file)
}

// ReadWithHash routes to the matching backend.
func (p *HybridProvider) ReadWithHash(ctx context.Context, file *model.File) ([]byte, string, error) {
	return p.pick(file).ReadWithHash(ctx, file)
}

// Exists routes to the matching backend.
func (p *HybridProvider) Exists(ctx context.Context, file *model.File) bool {
	return p.pick(file).Exists(ctx, file)
}

// ReadBatch partitions files by virtuality and merges both results.
func (p *HybridProvider) ReadBatch(ctx context.Context, files []*model.File) (*BatchResult, error) {
	var diskFiles, virtualFiles []*model.File
	for _, f := range files {
		if f.Virtual() {
			virtualFiles = append(virtualFiles, f)
		} else {
			diskFiles = append(diskFiles, f)
		}
	}

	result := newBatchResult()
	if len(diskFiles) > 0 {
		diskResult, err := p.disk.ReadBatch(ctx, diskFiles)
		if err != nil {
			return nil, err
		}
		result.merge(diskResult)
	}
	if len(virtualFiles) > 0 {
		virtualResult, err := p.virtual.ReadBatch(ctx, virtualFiles)
		if err != nil {
			return nil, err
		}
		result.merge(virtualResult)
	}
	return result, nil
}
