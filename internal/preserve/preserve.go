// Package preserve snapshots embedding and entity metadata before a file is
// reparsed and restores it onto the recreated nodes afterwards. Node uuids
// are deterministic, so a semantically unchanged node comes back with the
// same uuid and its snapshot applies cleanly; a changed node gets a new uuid
// and its snapshot simply never matches.
package preserve

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

// preservedKeys are the node properties worth carrying across a reparse.
// Everything else is recomputed by the parser.
var preservedKeys = []string{
	model.PropEntitiesContentHash,
	model.PropUsesChunks,
	model.PropChunkCount,
	model.PropEmbeddingProvider,
	model.PropEmbeddingModel,
	"embedding_name",
	"embedding_name_hash",
	"embedding_content",
	"embedding_content_hash",
	"embedding_description",
	"embedding_description_hash",
}

// Snapshot holds the preserved metadata of one file's nodes, keyed by uuid.
type Snapshot struct {
	FileUUID string
	Nodes    map[string]model.Props
	// States maps uuid to the node _state at snapshot time, paired with the
	// content hash the state was earned against. Restore only reapplies a
	// state when the recreated node still carries the same content hash.
	States map[string]StateRecord
	// Chunks maps parent uuid to the full property bags of its embedding
	// chunk children. Chunks are deleted wholesale on reparse; recreating
	// them is the only way to keep usesChunks truthful.
	Chunks map[string][]model.Props
}

// StateRecord pairs a node state with the content hash it was computed for.
type StateRecord struct {
	State       model.State
	ContentHash string
}

// Empty reports whether the snapshot captured nothing.
func (s *Snapshot) Empty() bool {
	return len(s.Nodes) == 0 && len(s.Chunks) == 0
}

// Preserver takes and restores snapshots through the graph client.
type Preserver struct {
	client graph.Client
	logger *slog.Logger
}

// Option configures the Preserver.
type Option func(*Preserver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Preserver) {
		p.logger = logger
	}
}

// New creates a Preserver over the given graph client.
func New(client graph.Client, opts ...Option) *Preserver {
	p := &Preserver{
		client: client,
		logger: slog.Default().With("component", "preserve"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

const snapshotNodesQuery = `
MATCH (n)-[:DEFINED_IN]->(f:File {uuid: $fileUuid})
WHERE n._state IS NOT NULL
RETURN n.uuid AS uuid, properties(n) AS props`

const snapshotChunksQuery = `
MATCH (n)-[:DEFINED_IN]->(f:File {uuid: $fileUuid})
MATCH (n)-[:HAS_EMBEDDING_CHUNK]->(c:EmbeddingChunk)
RETURN n.uuid AS parent, properties(c) AS props`

// Snapshot captures the preserved metadata of every node defined in the file.
func (p *Preserver) Snapshot(ctx context.Context, fileUUID string) (*Snapshot, error) {
	snap := &Snapshot{
		FileUUID: fileUUID,
		Nodes:    make(map[string]model.Props),
		States:   make(map[string]StateRecord),
		Chunks:   make(map[string][]model.Props),
	}

	rows, err := p.client.Run(ctx, snapshotNodesQuery, map[string]any{"fileUuid": fileUUID})
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot nodes of file %s; %w", fileUUID, err)
	}
	for _, row := range rows {
		uuid := model.Str(row["uuid"])
		props, ok := row["props"].(map[string]any)
		if uuid == "" || !ok {
			continue
		}
		kept := make(model.Props)
		for _, key := range preservedKeys {
			if v, present := props[key]; present && v != nil {
				kept[key] = v
			}
		}
		if len(kept) > 0 {
			snap.Nodes[uuid] = kept
		}
		if state := model.Str(props[model.PropState]); state != "" {
			snap.States[uuid] = StateRecord{
				State:       model.State(state),
				ContentHash: model.Str(props[model.PropContentHash]),
			}
		}
	}

	chunkRows, err := p.client.Run(ctx, snapshotChunksQuery, map[string]any{"fileUuid": fileUUID})
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot chunks of file %s; %w", fileUUID, err)
	}
	for _, row := range chunkRows {
		parent := model.Str(row["parent"])
		props, ok := row["props"].(map[string]any)
		if parent == "" || !ok {
			continue
		}
		snap.Chunks[parent] = append(snap.Chunks[parent], model.Props(props))
	}

	p.logger.Debug("snapshot taken",
		"file", fileUUID, "nodes", len(snap.Nodes), "chunkParents", len(snap.Chunks))
	return snap, nil
}

const restoreNodesQuery = `
UNWIND $rows AS row
MATCH (n {uuid: row.uuid})
SET n += row.props
FOREACH (_ IN CASE
    WHEN row.state IS NOT NULL AND n._contentHash = row.contentHash
    THEN [1] ELSE [] END |
  SET n._state = row.state)`

const restoreChunksQuery = `
UNWIND $rows AS row
MATCH (n {uuid: row.parent})
MERGE (c:EmbeddingChunk {uuid: row.props.uuid})
SET c += row.props
MERGE (n)-[:HAS_EMBEDDING_CHUNK]->(c)`

// Restore reapplies a snapshot onto whichever nodes survived the reparse with
// an identical uuid. The node _state is restored only when the recreated
// node's content hash matches the one the state was earned against; a node
// whose content changed under the same uuid re-enters the pipeline normally.
// Returns the number of nodes the snapshot was applied to.
func (p *Preserver) Restore(ctx context.Context, snap *Snapshot) (int, error) {
	if snap == nil || snap.Empty() {
		return 0, nil
	}

	rows := make([]map[string]any, 0, len(snap.Nodes))
	for uuid, props := range snap.Nodes {
		row := map[string]any{"uuid": uuid, "props": props}
		if rec, ok := snap.States[uuid]; ok {
			row["state"] = string(rec.State)
			row["contentHash"] = rec.ContentHash
		}
		rows = append(rows, row)
	}

	var stmts []graph.Statement
	if len(rows) > 0 {
		stmts = append(stmts, graph.Statement{
			Query:  restoreNodesQuery,
			Params: map[string]any{"rows": rows},
		})
	}

	var chunkRows []map[string]any
	for parent, chunks := range snap.Chunks {
		if _, kept := snap.Nodes[parent]; !kept {
			continue
		}
		for _, props := range chunks {
			chunkRows = append(chunkRows, map[string]any{"parent": parent, "props": props})
		}
	}
	if len(chunkRows) > 0 {
		stmts = append(stmts, graph.Statement{
			Query:  restoreChunksQuery,
			Params: map[string]any{"rows": chunkRows},
		})
	}

	if len(stmts) == 0 {
		return 0, nil
	}
	if _, err := p.client.WriteBatch(ctx, stmts); err != nil {
		return 0, fmt.Errorf("failed to restore snapshot for file %s; %w", snap.FileUUID, err)
	}

	p.logger.Debug("snapshot restored",
		"file", snap.FileUUID, "nodes", len(rows), "chunks", len(chunkRows))
	return len(rows), nil
}
