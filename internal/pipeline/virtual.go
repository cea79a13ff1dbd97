package pipeline

import (
	"context"
	"fmt"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
	"github.com/codegraphhq/codegraph/internal/state"
)

// VirtualFile is one graph-resident file to ingest: its bytes live as node
// properties, never on disk.
type VirtualFile struct {
	Path     string
	Content  []byte
	Metadata model.Props
}

// IngestOptions tunes a virtual ingestion.
type IngestOptions struct {
	// AdditionalProperties are stamped onto every File node and all of its
	// descendants at the end of the ingestion.
	AdditionalProperties model.Props
}

// IngestVirtualFiles upserts the files as discovered graph-resident File
// nodes and runs the full pipeline over them.
func (p *Processor) IngestVirtualFiles(ctx context.Context, projectID string, files []VirtualFile, opts *IngestOptions) (Stats, error) {
	var stats Stats
	if len(files) == 0 {
		return stats, nil
	}

	entries := make([]state.DiscoveredFile, len(files))
	uuids := make([]string, len(files))
	for i, vf := range files {
		entries[i] = state.DiscoveredFile{
			Path:           vf.Path,
			IsVirtual:      true,
			RawContent:     string(vf.Content),
			RawContentHash: model.Hash16(vf.Content),
		}
		uuids[i] = model.FileUUID(projectID, vf.Path)
	}

	marked, err := p.states.MarkDiscoveredBatch(ctx, projectID, entries)
	if err != nil {
		return stats, err
	}
	stats.FilesSkipped += marked.Skipped

	if err := p.applyFileMetadata(ctx, projectID, files); err != nil {
		return stats, err
	}

	dStats, err := p.ProcessDiscovered(ctx, projectID)
	stats.FilesProcessed += dStats.FilesProcessed
	stats.FilesSkipped += dStats.FilesSkipped
	stats.FilesErrored += dStats.FilesErrored
	if err != nil {
		return stats, err
	}

	lStats, err := p.ProcessLinked(ctx, projectID)
	stats.EntitiesCreated += lStats.EntitiesCreated
	stats.RelationsCreated += lStats.RelationsCreated
	stats.EmbeddingsGenerated += lStats.EmbeddingsGenerated
	stats.FilesErrored += lStats.FilesErrored
	if err != nil {
		return stats, err
	}

	if opts != nil && len(opts.AdditionalProperties) > 0 {
		if err := p.stampProperties(ctx, uuids, opts.AdditionalProperties); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// applyFileMetadata stores per-file caller metadata on the File nodes.
func (p *Processor) applyFileMetadata(ctx context.Context, projectID string, files []VirtualFile) error {
	var rows []map[string]any
	for _, vf := range files {
		if len(vf.Metadata) == 0 {
			continue
		}
		rows = append(rows, map[string]any{
			"uuid":  model.FileUUID(projectID, vf.Path),
			"props": vf.Metadata,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	if _, err := p.client.Write(ctx, `
UNWIND $rows AS row
MATCH (f:File {uuid: row.uuid})
SET f += row.props`, map[string]any{"rows": rows}); err != nil {
		return fmt.Errorf("failed to apply file metadata; %w", err)
	}
	return nil
}

// stampProperties writes the additional properties onto the File nodes and
// every node defined in them.
func (p *Processor) stampProperties(ctx context.Context, fileUUIDs []string, props model.Props) error {
	stmts := []graph.Statement{
		{
			Query: `
MATCH (f:File)
WHERE f.uuid IN $uuids
SET f += $props`,
			Params: map[string]any{"uuids": fileUUIDs, "props": props},
		},
		{
			Query: `
MATCH (n)-[:DEFINED_IN]->(f:File)
WHERE f.uuid IN $uuids
SET n += $props`,
			Params: map[string]any{"uuids": fileUUIDs, "props": props},
		},
	}
	if _, err := p.client.WriteBatch(ctx, stmts); err != nil {
		return fmt.Errorf("failed to stamp additional properties; %w", err)
	}
	return nil
}
