package resolve

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
	"github.com/codegraphhq/codegraph/internal/parser"
)

// refEdgeTypes maps reference kinds to edge types.
var refEdgeTypes = map[parser.ReferenceKind]string{
	parser.RefConsumes:  model.EdgeConsumes,
	parser.RefImports:   model.EdgeImports,
	parser.RefInherits:  model.EdgeInheritsFrom,
	parser.RefImplement: model.EdgeImplements,
	parser.RefDecorated: model.EdgeDecoratedBy,
}

// Result reports one file's resolution outcome.
type Result struct {
	Resolved int
	Pending  int
}

// Resolver converts parser references into edges.
type Resolver struct {
	client graph.Client
	logger *slog.Logger
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a Resolver over the given graph client.
func New(client graph.Client, opts ...Option) *Resolver {
	r := &Resolver{
		client: client,
		logger: slog.Default().With("component", "resolve"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

const cleanupFileEdgesQuery = `
MATCH (n)-[:DEFINED_IN]->(f:File {uuid: $fileUuid})
MATCH (n)-[r:CONSUMES|IMPORTS|INHERITS_FROM|IMPLEMENTS|DECORATED_BY]->()
DELETE r`

const cleanupFilePendingQuery = `
MATCH ()-[r:PENDING_IMPORT {fromFileUuid: $fileUuid}]->(:Project)
DELETE r`

// CleanupFile drops all reference edges originating in the file's nodes.
// Runs before re-resolving so removed imports don't leave stale CONSUMES
// edges behind, mirroring the MENTIONS diff cleanup on the entity side.
func (r *Resolver) CleanupFile(ctx context.Context, fileUUID string) error {
	stmts := []graph.Statement{
		{Query: cleanupFileEdgesQuery, Params: map[string]any{"fileUuid": fileUUID}},
		{Query: cleanupFilePendingQuery, Params: map[string]any{"fileUuid": fileUUID}},
	}
	if _, err := r.client.WriteBatch(ctx, stmts); err != nil {
		return fmt.Errorf("failed to clean reference edges of file %s; %w", fileUUID, err)
	}
	return nil
}

// ResolveFile resolves one parsed file's references against the name map and
// writes the resulting edges. Unresolvable references become PENDING_IMPORT
// edges anchored at the Project node with the symbolic target in the edge
// properties.
func (r *Resolver) ResolveFile(ctx context.Context, projectID string, file *model.File, refs []parser.Reference, nm NameMap) (Result, error) {
	var result Result
	if len(refs) == 0 {
		return result, nil
	}

	resolvedByType := make(map[string][]map[string]any)
	var pending []map[string]any

	for _, ref := range refs {
		edgeType, ok := refEdgeTypes[ref.Kind]
		if !ok {
			continue
		}

		target, found := nm.Lookup(ref.Symbol, ref.Module, file.Path, file.UUID)
		if found && target.UUID != ref.FromID {
			resolvedByType[edgeType] = append(resolvedByType[edgeType], map[string]any{
				"from": ref.FromID,
				"to":   target.UUID,
				"props": map[string]any{
					"symbol": ref.Symbol,
				},
			})
			result.Resolved++
			continue
		}
		if found {
			// Self reference; nothing to record.
			continue
		}

		pending = append(pending, map[string]any{
			"from":   ref.FromID,
			"symbol": ref.Symbol,
			"module": ref.Module,
			"kind":   string(ref.Kind),
		})
		result.Pending++
	}

	var stmts []graph.Statement
	for edgeType, rows := range resolvedByType {
		stmts = append(stmts, graph.Statement{
			Query: fmt.Sprintf(`
UNWIND $rows AS row
MATCH (a {uuid: row.from})
MATCH (b {uuid: row.to})
MERGE (a)-[r:%s]->(b)
SET r += row.props`, edgeType),
			Params: map[string]any{"rows": rows},
		})
	}
	if len(pending) > 0 {
		stmts = append(stmts, graph.Statement{
			Query: `
UNWIND $rows AS row
MATCH (p:Project {id: $projectId})
MATCH (a {uuid: row.from})
MERGE (a)-[r:PENDING_IMPORT {symbol: row.symbol, module: row.module}]->(p)
SET r.kind = row.kind,
    r.fromFileUuid = $fileUuid`,
			Params: map[string]any{
				"rows":      pending,
				"projectId": projectID,
				"fileUuid":  file.UUID,
			},
		})
	}

	if len(stmts) > 0 {
		if _, err := r.client.WriteBatch(ctx, stmts); err != nil {
			return result, fmt.Errorf("failed to write reference edges for %s; %w", file.Path, err)
		}
	}

	r.logger.Debug("resolved references",
		"file", file.Path, "resolved", result.Resolved, "pending", result.Pending)
	return result, nil
}
