// Package state implements the persisted file and node lifecycle machines.
// All state lives as properties on graph nodes; there is no journal.
package state

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

// Machine drives the per-file lifecycle persisted on File nodes.
type Machine struct {
	client graph.Client
	logger *slog.Logger
	now    func() time.Time
}

// Option configures the Machine.
type Option func(*Machine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// NewMachine creates a state machine over the given graph client.
func NewMachine(client graph.Client, opts ...Option) *Machine {
	m := &Machine{
		client: client,
		logger: slog.Default().With("component", "filestate"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DiscoveredFile is one entry for MarkDiscoveredBatch.
type DiscoveredFile struct {
	Path           string // project-relative
	AbsolutePath   string
	RawContentHash string
	IsVirtual      bool
	RawContent     string // only for virtual files
}

// MarkResult reports the outcome of MarkDiscoveredBatch.
type MarkResult struct {
	Created int
	Reset   int
	Skipped int
}

const existingFilesQuery = `
MATCH (f:File)
WHERE f.uuid IN $uuids
RETURN f.uuid AS uuid, f._rawContentHash AS hash, f._state AS state`

const ensureProjectQuery = `
MERGE (p:Project {id: $projectId})
ON CREATE SET p.uuid = $projectId, p.createdAt = $now`

const upsertDirectoriesQuery = `
UNWIND $dirs AS row
MERGE (d:Directory {uuid: row.uuid})
ON CREATE SET d.path = row.path,
    d.name = row.name,
    d.depth = row.depth,
    d.absolutePath = row.absolutePath`

const parentOfQuery = `
UNWIND $links AS row
MATCH (a:Directory {uuid: row.parent})
MATCH (b:Directory {uuid: row.child})
MERGE (a)-[:PARENT_OF]->(b)`

const inDirectoryQuery = `
UNWIND $links AS row
MATCH (f:File {uuid: row.file})
MATCH (d:Directory {uuid: row.dir})
MERGE (f)-[:IN_DIRECTORY]->(d)`

// EnsureProject upserts the Project anchor node that files, directories and
// pending imports hang off. Every write against the project assumes the
// anchor exists, so this runs once at startup and again before any batch
// that creates files.
func (m *Machine) EnsureProject(ctx context.Context, projectID string) error {
	_, err := m.client.Write(ctx, ensureProjectQuery, map[string]any{
		"projectId": projectID,
		"now":       m.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to ensure project %s; %w", projectID, err)
	}
	return nil
}

// MarkDiscoveredBatch idempotently upserts the files and marks them
// discovered. A file that already exists keeps its state unless its raw
// content hash changed or it previously errored. The raw content hash is
// written eagerly here: it identifies the bytes the pipeline intends to
// process, and a failed parse re-reads the same bytes on retry.
func (m *Machine) MarkDiscoveredBatch(ctx context.Context, projectID string, entries []DiscoveredFile) (MarkResult, error) {
	var result MarkResult
	if len(entries) == 0 {
		return result, nil
	}

	uuids := make([]string, len(entries))
	byUUID := make(map[string]DiscoveredFile, len(entries))
	for i, e := range entries {
		id := model.FileUUID(projectID, e.Path)
		uuids[i] = id
		byUUID[id] = e
	}

	rows, err := m.client.Run(ctx, existingFilesQuery, map[string]any{"uuids": uuids})
	if err != nil {
		return result, fmt.Errorf("failed to query existing files; %w", err)
	}

	existing := make(map[string]graph.Record, len(rows))
	for _, row := range rows {
		existing[model.Str(row["uuid"])] = row
	}

	now := m.now().UnixMilli()
	var toCreate, toReset []map[string]any
	var created []DiscoveredFile
	for _, id := range uuids {
		entry := byUUID[id]
		row, found := existing[id]

		if !found {
			file := model.NewFile(projectID, entry.Path, entry.AbsolutePath)
			file.IsVirtual = entry.IsVirtual
			file.RawContentHash = entry.RawContentHash
			props := file.Properties()
			props[model.PropState] = string(model.StateDiscovered)
			props[model.PropStateChangedAt] = now
			props[model.PropRetryCount] = 0
			if entry.IsVirtual && entry.RawContent != "" {
				props[model.PropRawContent] = entry.RawContent
			}
			toCreate = append(toCreate, map[string]any{"uuid": id, "props": props})
			created = append(created, entry)
			continue
		}

		priorHash := model.Str(row["hash"])
		priorState := model.State(model.Str(row["state"]))
		if priorHash == entry.RawContentHash && priorState != model.StateError {
			result.Skipped++
			continue
		}

		reset := map[string]any{
			"uuid": id,
			"hash": entry.RawContentHash,
		}
		if entry.IsVirtual && entry.RawContent != "" {
			reset["content"] = entry.RawContent
		} else {
			reset["content"] = nil
		}
		toReset = append(toReset, reset)
	}

	var stmts []graph.Statement
	if len(toCreate) > 0 {
		// The project anchor must exist before BELONGS_TO is merged below;
		// the MATCH would otherwise drop every row silently.
		stmts = append(stmts, graph.Statement{
			Query:  ensureProjectQuery,
			Params: map[string]any{"projectId": projectID, "now": now},
		})
		dirs, parents, fileDirs := directoryBatch(projectID, created)
		if len(dirs) > 0 {
			stmts = append(stmts, graph.Statement{
				Query:  upsertDirectoriesQuery,
				Params: map[string]any{"dirs": dirs},
			})
		}
		if len(parents) > 0 {
			stmts = append(stmts, graph.Statement{
				Query:  parentOfQuery,
				Params: map[string]any{"links": parents},
			})
		}
		stmts = append(stmts, graph.Statement{
			Query: `
UNWIND $files AS row
MERGE (f:File {uuid: row.uuid})
SET f += row.props
WITH f
MATCH (p:Project {id: $projectId})
MERGE (f)-[:BELONGS_TO]->(p)`,
			Params: map[string]any{"files": toCreate, "projectId": projectID},
		})
		if len(fileDirs) > 0 {
			stmts = append(stmts, graph.Statement{
				Query:  inDirectoryQuery,
				Params: map[string]any{"links": fileDirs},
			})
		}
	}
	if len(toReset) > 0 {
		stmts = append(stmts, graph.Statement{
			Query: `
UNWIND $files AS row
MATCH (f:File {uuid: row.uuid})
SET f._state = 'discovered',
    f._stateChangedAt = $now,
    f._rawContentHash = row.hash,
    f.errorType = null,
    f.errorMessage = null
FOREACH (_ IN CASE WHEN row.content IS NULL THEN [] ELSE [1] END |
    SET f._rawContent = row.content)`,
			Params: map[string]any{"files": toReset, "now": now},
		})
	}
	if len(stmts) > 0 {
		if _, err := m.client.WriteBatch(ctx, stmts); err != nil {
			return result, fmt.Errorf("failed to mark files discovered; %w", err)
		}
	}

	result.Created = len(toCreate)
	result.Reset = len(toReset)
	m.logger.Debug("marked discovered",
		"created", result.Created, "reset", result.Reset, "skipped", result.Skipped)
	return result, nil
}

// directoryBatch derives the Directory nodes and edges implied by newly
// created file paths: one node per distinct ancestor directory, PARENT_OF
// between consecutive ancestors and IN_DIRECTORY from each file to its
// immediate parent. Files at the project root carry no directory edge.
func directoryBatch(projectID string, entries []DiscoveredFile) (dirs, parents, fileDirs []map[string]any) {
	seenDir := make(map[string]bool)
	seenLink := make(map[string]bool)
	for _, e := range entries {
		if strings.HasPrefix(e.Path, model.VirtualPathPrefix) {
			continue
		}
		dir := path.Dir(e.Path)
		if dir == "." || dir == "/" {
			continue
		}
		absRoot := ""
		if e.AbsolutePath != "" && strings.HasSuffix(e.AbsolutePath, e.Path) {
			absRoot = strings.TrimSuffix(e.AbsolutePath, e.Path)
		}
		fileDirs = append(fileDirs, map[string]any{
			"file": model.FileUUID(projectID, e.Path),
			"dir":  model.DirectoryUUID(projectID, dir),
		})
		for d := dir; d != "." && d != "/"; d = path.Dir(d) {
			if !seenDir[d] {
				seenDir[d] = true
				row := map[string]any{
					"uuid":         model.DirectoryUUID(projectID, d),
					"path":         d,
					"name":         path.Base(d),
					"depth":        strings.Count(d, "/") + 1,
					"absolutePath": nil,
				}
				if absRoot != "" {
					row["absolutePath"] = absRoot + d
				}
				dirs = append(dirs, row)
			}
			parent := path.Dir(d)
			if parent == "." || parent == "/" {
				continue
			}
			link := parent + "\x00" + d
			if !seenLink[link] {
				seenLink[link] = true
				parents = append(parents, map[string]any{
					"parent": model.DirectoryUUID(projectID, parent),
					"child":  model.DirectoryUUID(projectID, d),
				})
			}
		}
	}
	return dirs, parents, fileDirs
}

// TransitionOptions carries the optional error attribution for a transition.
type TransitionOptions struct {
	ErrorType    model.ErrorType
	ErrorMessage string
}

// Transition atomically moves one file to the target state. The update is
// guarded by the allowed-transition table: the write matches only files
// whose current state may reach the target, so a concurrent transition
// cannot be overwritten illegally.
func (m *Machine) Transition(ctx context.Context, uuid string, target model.State, opts *TransitionOptions) error {
	return m.TransitionBatch(ctx, []string{uuid}, target, opts)
}

// TransitionBatch atomically moves every file to the target state. Returns
// ErrInvalidTransition if any file was not in a state allowed to reach the
// target.
func (m *Machine) TransitionBatch(ctx context.Context, uuids []string, target model.State, opts *TransitionOptions) error {
	if len(uuids) == 0 {
		return nil
	}

	sources := model.TransitionSources(target)
	sourceStrs := make([]string, len(sources))
	for i, s := range sources {
		sourceStrs[i] = string(s)
	}

	params := map[string]any{
		"uuids":   uuids,
		"sources": sourceStrs,
		"target":  string(target),
		"now":     m.now().UnixMilli(),
	}

	query := `
MATCH (f:File)
WHERE f.uuid IN $uuids AND f._state IN $sources
SET f._state = $target, f._stateChangedAt = $now`
	if target == model.StateError && opts != nil {
		query += `,
    f.errorType = $errorType,
    f.errorMessage = $errorMessage,
    f.retryCount = coalesce(f.retryCount, 0) + 1`
		params["errorType"] = string(opts.ErrorType)
		params["errorMessage"] = opts.ErrorMessage
	} else if target == model.StateDiscovered {
		// Leaving error (or being invalidated) clears the error attribution.
		query += `,
    f.errorType = null, f.errorMessage = null`
	}

	if _, err := m.client.Write(ctx, query, params); err != nil {
		return fmt.Errorf("transition to %s failed; %w", target, err)
	}

	rows, err := m.client.Run(ctx, `
MATCH (f:File)
WHERE f.uuid IN $uuids AND f._state = $target
RETURN count(f) AS n`, map[string]any{"uuids": uuids, "target": string(target)})
	if err != nil {
		return fmt.Errorf("transition verification failed; %w", err)
	}
	moved := 0
	if len(rows) > 0 {
		moved = model.Int(rows[0]["n"])
	}
	if moved < len(uuids) {
		return fmt.Errorf("%w: %d of %d file(s) could not move to %s",
			model.ErrInvalidTransition, len(uuids)-moved, len(uuids), target)
	}
	return nil
}
