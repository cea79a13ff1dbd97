package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codegraphhq/codegraph/internal/cache"
	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
	"github.com/codegraphhq/codegraph/internal/providers/embeddings"
)

// Activity is signalled after every external batch so watchdogs can extend
// their timeouts.
type Activity func(phase string)

// Config holds the embedding thresholds.
type Config struct {
	// MaxInlineChars is the largest content embedded as one vector; content
	// exactly at the cap stays inline, one byte past it is chunked.
	MaxInlineChars int
	// MaxInlineLines chunks tall-but-narrow content.
	MaxInlineLines int
	// MinTextLength skips views whose text carries no signal.
	MinTextLength int
	// BatchSize caps texts per provider call.
	BatchSize int
	// EmbedTimeout bounds one provider call.
	EmbedTimeout time.Duration
	Chunk        ChunkOptions
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		MaxInlineChars: 1500,
		MaxInlineLines: 100,
		MinTextLength:  3,
		BatchSize:      64,
		EmbedTimeout:   2 * time.Minute,
		Chunk:          DefaultChunkOptions(),
	}
}

// Stats reports one embedding run.
type Stats struct {
	NodesReady       int
	VectorsGenerated int
	ChunksCreated    int
	ChunkCleanups    int
	CacheHits        int
	ViewsSkipped     int
}

// Service is the embedding engine.
type Service struct {
	client          graph.Client
	provider        embeddings.Provider
	cache           *cache.EmbeddingCache
	views           ViewTable
	cfg             Config
	logger          *slog.Logger
	activity        Activity
	skipEntityTypes []string
}

// Option configures the Service.
type Option func(*Service)

// WithCache attaches the optional redis vector cache.
func WithCache(c *cache.EmbeddingCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithViewTable replaces the default view table.
func WithViewTable(t ViewTable) Option {
	return func(s *Service) { s.views = t }
}

// WithConfig replaces the default thresholds.
func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

// WithActivity sets the activity callback.
func WithActivity(fn Activity) Option {
	return func(s *Service) { s.activity = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithSkipEntityTypes excludes value-like entity types from embedding at
// the query level.
func WithSkipEntityTypes(types []string) Option {
	return func(s *Service) {
		s.skipEntityTypes = make([]string, len(types))
		for i, t := range types {
			s.skipEntityTypes[i] = strings.ToLower(t)
		}
	}
}

// New creates an embedding service.
func New(client graph.Client, provider embeddings.Provider, opts ...Option) *Service {
	s := &Service{
		client:   client,
		provider: provider,
		views:    DefaultViewTable(),
		cfg:      DefaultConfig(),
		logger:   slog.Default().With("component", "embed"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) signal(phase string) {
	if s.activity != nil {
		s.activity(phase)
	}
}

// task is one pending view embedding.
type task struct {
	label  string
	uuid   string
	view   View
	text   string
	hash   string
	vector []float32
	chunk  *Chunk // non-nil for chunk tasks
}

// chunkParent records a node whose content view is being (re)chunked.
type chunkParent struct {
	label      string
	uuid       string
	fullHash   string
	chunkCount int
}

// Run brings every linked node of the project to ready. Four phases:
// collect, chunk cleanup, batch embed, persist.
func (s *Service) Run(ctx context.Context, projectID string) (Stats, error) {
	var stats Stats

	tasks, cleanups, parents, advance, err := s.collect(ctx, projectID, &stats)
	if err != nil {
		return stats, err
	}
	s.logger.Info("embedding work collected",
		"tasks", len(tasks), "cleanups", cleanupCount(cleanups), "advance", advanceCount(advance))

	// Cleanup must land before any new chunk write so a node never holds a
	// mix of old and new chunk children.
	if err := s.cleanupChunks(ctx, cleanups, &stats); err != nil {
		return stats, err
	}

	if err := s.embedTasks(ctx, tasks, &stats); err != nil {
		return stats, err
	}

	if err := s.persist(ctx, tasks, parents, &stats); err != nil {
		return stats, err
	}

	if err := s.advanceReady(ctx, advance, &stats); err != nil {
		return stats, err
	}

	s.logger.Info("embedding run complete",
		"vectors", stats.VectorsGenerated, "chunks", stats.ChunksCreated,
		"ready", stats.NodesReady, "cacheHits", stats.CacheHits)
	return stats, nil
}

// collect queries linked nodes label by label and decides per view: skip,
// small task, or chunk tasks. Returns the tasks, the chunk-cleanup set, the
// chunked parents, and the nodes with nothing to do that still advance.
func (s *Service) collect(ctx context.Context, projectID string, stats *Stats) ([]*task, map[string][]string, []chunkParent, map[string][]string, error) {
	var tasks []*task
	cleanups := make(map[string][]string) // label -> uuids needing chunk deletion
	var parents []chunkParent
	advance := make(map[string][]string) // label -> uuids ready without work

	providerName := s.provider.ProviderName()
	modelName := s.provider.ModelName()

	for _, label := range s.views.Labels() {
		rows, err := s.queryLinked(ctx, projectID, label)
		if err != nil {
			return nil, nil, nil, nil, err
		}

		for _, row := range rows {
			props, ok := row["props"].(map[string]any)
			if !ok {
				continue
			}
			uuid := model.Str(props[model.PropUUID])
			if uuid == "" {
				continue
			}

			hadChunks := model.Bool(props[model.PropUsesChunks])
			providerCurrent := model.Str(props[model.PropEmbeddingProvider]) == providerName &&
				model.Str(props[model.PropEmbeddingModel]) == modelName
			nodeTasks := 0

			for _, view := range s.views[label] {
				text := view.Extract(props)
				if len(text) < s.cfg.MinTextLength {
					stats.ViewsSkipped++
					continue
				}
				hash := model.Hash16String(text)
				// A provider or model switch makes every stored hash stale
				// regardless of match.
				if providerCurrent && model.Str(props[view.HashProp]) == hash {
					stats.ViewsSkipped++
					continue
				}

				if view.Name == contentView.Name && s.needsChunking(text) {
					startLine := model.Int(props["startLine"])
					if startLine == 0 {
						startLine = 1
					}
					page := model.Int(props["pageNum"])
					chunks := ChunkLines(text, startLine, page, s.cfg.Chunk)

					// Old chunks go first even when new ones replace them:
					// chunk counts may shrink.
					if hadChunks {
						cleanups[label] = append(cleanups[label], uuid)
					}
					for i := range chunks {
						c := chunks[i]
						tasks = append(tasks, &task{
							label: label,
							uuid:  uuid,
							view:  view,
							text:  c.Content,
							hash:  model.Hash16String(c.Content),
							chunk: &c,
						})
					}
					parents = append(parents, chunkParent{
						label:      label,
						uuid:       uuid,
						fullHash:   hash,
						chunkCount: len(chunks),
					})
					nodeTasks += len(chunks)
					continue
				}

				if view.Name == contentView.Name && hadChunks {
					// Content shrank back under the cap; drop the chunks.
					cleanups[label] = append(cleanups[label], uuid)
				}
				tasks = append(tasks, &task{
					label: label,
					uuid:  uuid,
					view:  view,
					text:  text,
					hash:  hash,
				})
				nodeTasks++
			}

			if nodeTasks == 0 {
				advance[label] = append(advance[label], uuid)
			}
		}
	}

	return tasks, cleanups, parents, advance, nil
}

func (s *Service) needsChunking(text string) bool {
	if len(text) > s.cfg.MaxInlineChars {
		return true
	}
	return strings.Count(text, "\n")+1 > s.cfg.MaxInlineLines
}

func (s *Service) queryLinked(ctx context.Context, projectID, label string) ([]graph.Record, error) {
	query := fmt.Sprintf(`
MATCH (n:%s {projectId: $projectId, _state: 'linked'})
RETURN properties(n) AS props`, label)
	params := map[string]any{"projectId": projectID}

	if label == model.LabelEntity && len(s.skipEntityTypes) > 0 {
		query = `
MATCH (n:Entity {projectId: $projectId, _state: 'linked'})
WHERE NOT toLower(n.entityType) IN $skipTypes
RETURN properties(n) AS props`
		params["skipTypes"] = s.skipEntityTypes
	}

	rows, err := s.client.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("failed to query linked %s nodes; %w", label, err)
	}
	return rows, nil
}

// cleanupChunks deletes prior chunk children and clears the chunk markers,
// grouped per label.
func (s *Service) cleanupChunks(ctx context.Context, cleanups map[string][]string, stats *Stats) error {
	var stmts []graph.Statement
	for label, uuids := range cleanups {
		stmts = append(stmts, graph.Statement{
			Query: fmt.Sprintf(`
UNWIND $uuids AS uuid
MATCH (n:%s {uuid: uuid})
OPTIONAL MATCH (n)-[:HAS_EMBEDDING_CHUNK]->(c:EmbeddingChunk)
DETACH DELETE c
REMOVE n.usesChunks, n.chunkCount`, label),
			Params: map[string]any{"uuids": uuids},
		})
		stats.ChunkCleanups += len(uuids)
	}
	if len(stmts) == 0 {
		return nil
	}
	if _, err := s.client.WriteBatch(ctx, stmts); err != nil {
		return fmt.Errorf("chunk cleanup failed; %w", err)
	}
	s.signal("chunk-cleanup")
	return nil
}

// embedTasks fills every task's vector, consulting the cache first and
// dispatching the misses in provider batches.
func (s *Service) embedTasks(ctx context.Context, tasks []*task, stats *Stats) error {
	if len(tasks) == 0 {
		return nil
	}

	pending := tasks
	if s.cache != nil {
		pending = s.consultCache(ctx, tasks, stats)
	}

	for start := 0; start < len(pending); start += s.cfg.BatchSize {
		end := start + s.cfg.BatchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		texts := make([]string, len(batch))
		for i, t := range batch {
			texts[i] = t.text
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
		vectors, err := s.provider.Embed(callCtx, texts)
		cancel()
		if err != nil {
			return fmt.Errorf("embedding batch of %d failed; %w", len(batch), err)
		}

		fresh := make(map[string][]float32, len(batch))
		for i, t := range batch {
			t.vector = vectors[i]
			fresh[t.hash] = vectors[i]
		}
		stats.VectorsGenerated += len(batch)

		if s.cache != nil {
			if err := s.cache.PutBatch(ctx, s.provider.ProviderName(), s.provider.ModelName(), fresh); err != nil {
				s.logger.Warn("vector cache write failed", "error", err)
			}
		}
		s.signal("embed")
	}
	return nil
}

// consultCache fills vectors for cached hashes and returns the misses.
func (s *Service) consultCache(ctx context.Context, tasks []*task, stats *Stats) []*task {
	hashes := make([]string, 0, len(tasks))
	seen := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if !seen[t.hash] {
			seen[t.hash] = true
			hashes = append(hashes, t.hash)
		}
	}

	found, err := s.cache.GetBatch(ctx, s.provider.ProviderName(), s.provider.ModelName(), hashes)
	if err != nil {
		s.logger.Warn("vector cache lookup failed", "error", err)
		return tasks
	}

	var misses []*task
	for _, t := range tasks {
		if vector, ok := found[t.hash]; ok {
			t.vector = vector
			stats.CacheHits++
			continue
		}
		misses = append(misses, t)
	}
	return misses
}

// persist writes vectors and the ready transition in the same statements.
// Small tasks group by (label, view) so property names stay static; chunk
// tasks group by label.
func (s *Service) persist(ctx context.Context, tasks []*task, parents []chunkParent, stats *Stats) error {
	now := time.Now().UnixMilli()
	providerName := s.provider.ProviderName()
	modelName := s.provider.ModelName()

	type groupKey struct{ label, view string }
	smallGroups := make(map[groupKey][]map[string]any)
	chunkGroups := make(map[string][]map[string]any)
	readyNodes := make(map[string]map[string]bool) // label -> uuid set

	markReady := func(label, uuid string) {
		if readyNodes[label] == nil {
			readyNodes[label] = make(map[string]bool)
		}
		readyNodes[label][uuid] = true
	}

	for _, t := range tasks {
		if t.vector == nil {
			continue
		}
		if t.chunk != nil {
			props := ChunkProps(t.uuid, t.label, *t.chunk)
			chunkGroups[t.label] = append(chunkGroups[t.label], map[string]any{
				"parent": t.uuid,
				"uuid":   props[model.PropUUID],
				"props":  props,
				"vector": t.vector,
				"hash":   t.hash,
			})
			stats.ChunksCreated++
			continue
		}
		smallGroups[groupKey{t.label, t.view.Name}] = append(smallGroups[groupKey{t.label, t.view.Name}], map[string]any{
			"uuid":   t.uuid,
			"vector": t.vector,
			"hash":   t.hash,
		})
		markReady(t.label, t.uuid)
	}

	var stmts []graph.Statement
	for key, rows := range smallGroups {
		view := s.viewByName(key.label, key.view)
		stmts = append(stmts, graph.Statement{
			Query: fmt.Sprintf(`
UNWIND $rows AS row
MATCH (n:%s {uuid: row.uuid})
SET n.%s = row.vector,
    n.%s = row.hash,
    n.embedding_provider = $provider,
    n.embedding_model = $model,
    n._state = 'ready',
    n._stateChangedAt = $now`, key.label, view.VectorProp, view.HashProp),
			Params: map[string]any{
				"rows": rows, "provider": providerName, "model": modelName, "now": now,
			},
		})
	}

	for label, rows := range chunkGroups {
		stmts = append(stmts, graph.Statement{
			Query: fmt.Sprintf(`
UNWIND $rows AS row
MATCH (n:%s {uuid: row.parent})
MERGE (c:EmbeddingChunk {uuid: row.uuid})
SET c += row.props,
    c.embedding_content = row.vector,
    c.embedding_content_hash = row.hash,
    c.projectId = n.projectId
MERGE (n)-[:HAS_EMBEDDING_CHUNK]->(c)`, label),
			Params: map[string]any{"rows": rows},
		})
	}

	// Chunked parents keep the full-text hash for skip detection but lose
	// any inline content vector; chunk children carry the vectors.
	parentsByLabel := make(map[string][]map[string]any)
	for _, p := range parents {
		parentsByLabel[p.label] = append(parentsByLabel[p.label], map[string]any{
			"uuid":       p.uuid,
			"hash":       p.fullHash,
			"chunkCount": p.chunkCount,
		})
		markReady(p.label, p.uuid)
	}
	for label, rows := range parentsByLabel {
		stmts = append(stmts, graph.Statement{
			Query: fmt.Sprintf(`
UNWIND $rows AS row
MATCH (n:%s {uuid: row.uuid})
SET n.usesChunks = true,
    n.chunkCount = row.chunkCount,
    n.embedding_content_hash = row.hash,
    n.embedding_provider = $provider,
    n.embedding_model = $model,
    n._state = 'ready',
    n._stateChangedAt = $now
REMOVE n.embedding_content`, label),
			Params: map[string]any{
				"rows": rows, "provider": providerName, "model": modelName, "now": now,
			},
		})
	}

	if len(stmts) == 0 {
		return nil
	}
	if _, err := s.client.WriteBatch(ctx, stmts); err != nil {
		return fmt.Errorf("failed to persist embeddings; %w", err)
	}

	for _, uuids := range readyNodes {
		stats.NodesReady += len(uuids)
	}
	s.signal("persist")
	return nil
}

// advanceReady moves nodes with no pending views to ready.
func (s *Service) advanceReady(ctx context.Context, advance map[string][]string, stats *Stats) error {
	now := time.Now().UnixMilli()
	var stmts []graph.Statement
	for label, uuids := range advance {
		stmts = append(stmts, graph.Statement{
			Query: fmt.Sprintf(`
UNWIND $uuids AS uuid
MATCH (n:%s {uuid: uuid, _state: 'linked'})
SET n._state = 'ready', n._stateChangedAt = $now`, label),
			Params: map[string]any{"uuids": uuids, "now": now},
		})
		stats.NodesReady += len(uuids)
	}
	if len(stmts) == 0 {
		return nil
	}
	if _, err := s.client.WriteBatch(ctx, stmts); err != nil {
		return fmt.Errorf("failed to advance ready nodes; %w", err)
	}
	return nil
}

func (s *Service) viewByName(label, name string) View {
	for _, v := range s.views[label] {
		if v.Name == name {
			return v
		}
	}
	return View{Name: name, VectorProp: "embedding_" + name, HashProp: "embedding_" + name + "_hash"}
}

func cleanupCount(m map[string][]string) int {
	n := 0
	for _, v := range m {
		n += len(v)
	}
	return n
}

func advanceCount(m map[string][]string) int {
	n := 0
	for _, v := range m {
		n += len(v)
	}
	return n
}
