package content

import (
	"context"
	"fmt"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

// VirtualProvider reads file bytes stored as _rawContent on graph File nodes.
type VirtualProvider struct {
	client graph.Client
}

// NewVirtualProvider creates a provider over the given graph client.
func NewVirtualProvider(client graph.Client) *VirtualProvider {
	return &VirtualProvider{client: client}
}

const virtualReadQuery = `
MATCH (f:File)
WHERE f.uuid IN $uuids
RETURN f.uuid AS uuid, f._rawContent AS content, f._rawContentHash AS hash`

// Read fetches the graph-resident bytes of a single file.
func (p *VirtualProvider) Read(ctx context.Context, file *model.File) ([]byte, error) {
	result, err := p.ReadBatch(ctx, []*model.File{file})
	if err != nil {
		return nil, err
	}
	if readErr, ok := result.Errors[file.UUID]; ok {
		return nil, readErr
	}
	return result.Content[file.UUID], nil
}

// ReadWithHash fetches bytes and the stored raw content hash.
func (p *VirtualProvider) ReadWithHash(ctx context.Context, file *model.File) ([]byte, string, error) {
	data, err := p.Read(ctx, file)
	if err != nil {
		return nil, "", err
	}
	return data, model.Hash16(data), nil
}

// Exists reports whether a File node with non-null _rawContent exists.
func (p *VirtualProvider) Exists(ctx context.Context, file *model.File) bool {
	rows, err := p.client.Run(ctx,
		"MATCH (f:File {uuid: $uuid}) WHERE f._rawContent IS NOT NULL RETURN count(f) AS n",
		map[string]any{"uuid": file.UUID})
	if err != nil || len(rows) == 0 {
		return false
	}
	return model.Int(rows[0]["n"]) > 0
}

// ReadBatch performs one graph query keyed by the uuid set.
func (p *VirtualProvider) ReadBatch(ctx context.Context, files []*model.File) (*BatchResult, error) {
	result := newBatchResult()
	if len(files) == 0 {
		return result, nil
	}

	uuids := make([]string, len(files))
	for i, f := range files {
		uuids[i] = f.UUID
	}

	rows, err := p.client.Run(ctx, virtualReadQuery, map[string]any{"uuids": uuids})
	if err != nil {
		return nil, fmt.Errorf("virtual content query failed; %w", err)
	}

	for _, row := range rows {
		uuid := model.Str(row["uuid"])
		text := model.Str(row["content"])
		if text == "" {
			result.Errors[uuid] = fmt.Errorf("%w: virtual file %s has no _rawContent", ErrNotFound, uuid)
			continue
		}
		result.Content[uuid] = []byte(text)
		if hash := model.Str(row["hash"]); hash != "" {
			result.Hashes[uuid] = hash
		} else {
			result.Hashes[uuid] = model.Hash16([]byte(text))
		}
	}

	for _, f := range files {
		if _, ok := result.Content[f.UUID]; !ok {
			if _, errored := result.Errors[f.UUID]; !errored {
				result.Errors[f.UUID] = fmt.Errorf("%w: %s", ErrNotFound, f.Path)
			}
		}
	}
	return result, nil
}
