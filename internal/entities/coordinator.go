package entities

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

// Extractor is the coordinator's view of the extraction service. *Client
// satisfies it; tests substitute a stub.
type Extractor interface {
	Available(ctx context.Context) bool
	LoadModel(ctx context.Context) error
	UnloadModel(ctx context.Context) error
	ClassifyBatch(ctx context.Context, texts []string) ([][]Classification, error)
	ExtractBatch(ctx context.Context, texts, entityTypes, relationTypes []string) ([]ExtractResult, error)
	Presets(ctx context.Context) (map[string]Preset, error)
}

// Config holds the coordinator settings.
type Config struct {
	// ClassifyChars is how much of a file's text the domain classifier sees.
	ClassifyChars int
	// BatchSize caps candidate nodes per extraction batch.
	BatchSize int
	// ConfidenceThreshold drops extracted entities below it.
	ConfidenceThreshold float64
	// DisabledDomains are skipped even when the service enables them.
	DisabledDomains []string
}

// DefaultConfig returns the standard coordinator settings.
func DefaultConfig() Config {
	return Config{
		ClassifyChars:       500,
		BatchSize:           1000,
		ConfidenceThreshold: 0.5,
	}
}

// Stats reports one extraction run.
type Stats struct {
	// Degraded is set when the service was unreachable and the phase was
	// skipped entirely.
	Degraded         bool
	NodesProcessed   int
	FilesClassified  int
	EntitiesCreated  int
	RelationsCreated int
	MentionsRemoved  int
	EntitiesRemoved  int
}

// Coordinator runs the entity phase against the graph.
type Coordinator struct {
	client   graph.Client
	svc      Extractor
	cfg      Config
	logger   *slog.Logger
	activity func(phase string)
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithConfig replaces the default settings.
func WithConfig(cfg Config) Option {
	return func(c *Coordinator) { c.cfg = cfg }
}

// WithActivity sets the activity callback signalled after each batch.
func WithActivity(fn func(phase string)) Option {
	return func(c *Coordinator) { c.activity = fn }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// NewCoordinator creates an entity extraction coordinator.
func NewCoordinator(client graph.Client, svc Extractor, opts ...Option) *Coordinator {
	c := &Coordinator{
		client: client,
		svc:    svc,
		cfg:    DefaultConfig(),
		logger: slog.Default().With("component", "entities"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Coordinator) signal(phase string) {
	if c.activity != nil {
		c.activity(phase)
	}
}

// candidate is one node awaiting extraction.
type candidate struct {
	uuid        string
	label       string
	content     string
	contentHash string
	fileUUID    string
	filePath    string
}

// Run extracts entities for every candidate node of the project. The model
// is loaded for the duration of the run and unloaded before Run returns, so
// callers may start embedding as soon as Run comes back without an error.
func (c *Coordinator) Run(ctx context.Context, projectID string) (Stats, error) {
	var stats Stats

	if !c.svc.Available(ctx) {
		c.logger.Warn("entity service unreachable, skipping entity phase")
		stats.Degraded = true
		return stats, nil
	}

	candidates, err := c.collectCandidates(ctx, projectID)
	if err != nil {
		return stats, err
	}
	if len(candidates) == 0 {
		return stats, nil
	}

	if err := c.svc.LoadModel(ctx); err != nil {
		return stats, fmt.Errorf("failed to load extraction model; %w", err)
	}

	runErr := c.extract(ctx, projectID, candidates, &stats)

	// The accelerator must be free before the embedding phase starts, so
	// unload failures are errors, not warnings.
	if err := c.svc.UnloadModel(ctx); err != nil {
		if runErr != nil {
			return stats, fmt.Errorf("failed to unload extraction model after %v; %w", runErr, err)
		}
		return stats, fmt.Errorf("failed to unload extraction model; %w", err)
	}
	if runErr != nil {
		return stats, runErr
	}

	removed, err := c.deleteOrphanEntities(ctx, projectID)
	if err != nil {
		return stats, err
	}
	stats.EntitiesRemoved = removed

	c.logger.Info("entity phase complete",
		"nodes", stats.NodesProcessed, "entities", stats.EntitiesCreated,
		"relations", stats.RelationsCreated, "mentionsRemoved", stats.MentionsRemoved,
		"entitiesRemoved", stats.EntitiesRemoved)
	return stats, nil
}

// collectCandidates fetches every node whose entity annotations are stale.
func (c *Coordinator) collectCandidates(ctx context.Context, projectID string) ([]candidate, error) {
	var candidates []candidate
	for _, label := range model.EntityCandidateLabels {
		query := fmt.Sprintf(`
MATCH (n:%s {projectId: $projectId})-[:DEFINED_IN]->(f:File)
WHERE n._content IS NOT NULL AND n._content <> ''
  AND (n._entitiesContentHash IS NULL OR n._entitiesContentHash <> n._contentHash)
RETURN n.uuid AS uuid, n._content AS content, n._contentHash AS contentHash,
       f.uuid AS fileUuid, f.path AS filePath`, label)

		rows, err := c.client.Run(ctx, query, map[string]any{"projectId": projectID})
		if err != nil {
			return nil, fmt.Errorf("failed to query %s entity candidates; %w", label, err)
		}
		for _, row := range rows {
			candidates = append(candidates, candidate{
				uuid:        model.Str(row["uuid"]),
				label:       label,
				content:     model.Str(row["content"]),
				contentHash: model.Str(row["contentHash"]),
				fileUUID:    model.Str(row["fileUuid"]),
				filePath:    model.Str(row["filePath"]),
			})
		}
	}
	return candidates, nil
}

// extract classifies, groups by combo and runs the batched extraction.
func (c *Coordinator) extract(ctx context.Context, projectID string, candidates []candidate, stats *Stats) error {
	combos := c.classifyFiles(ctx, candidates, stats)

	presets, err := c.svc.Presets(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch extraction presets; %w", err)
	}

	// Group candidates by their file's combo key.
	groups := make(map[string][]candidate)
	for _, cand := range candidates {
		combo := combos[cand.fileUUID]
		if combo == "" {
			combo = "default"
		}
		groups[combo] = append(groups[combo], cand)
	}

	comboKeys := make([]string, 0, len(groups))
	for k := range groups {
		comboKeys = append(comboKeys, k)
	}
	sort.Strings(comboKeys)

	for _, combo := range comboKeys {
		nodes := groups[combo]
		entityTypes, relationTypes := c.mergeTypes(combo, presets)

		if len(entityTypes) == 0 {
			// Every domain in the combo is disabled. Record the hashes so
			// these nodes are not re-attempted until their content changes.
			c.logger.Info("all domains disabled for combo", "combo", combo, "nodes", len(nodes))
			if err := c.markProcessed(ctx, nodes); err != nil {
				return err
			}
			stats.NodesProcessed += len(nodes)
			continue
		}

		for start := 0; start < len(nodes); start += c.cfg.BatchSize {
			end := start + c.cfg.BatchSize
			if end > len(nodes) {
				end = len(nodes)
			}
			if err := c.extractBatch(ctx, projectID, nodes[start:end], entityTypes, relationTypes, stats); err != nil {
				return err
			}
			c.signal("extract")
		}
	}
	return nil
}

// classifyFiles sends each distinct file's leading text through the domain
// classifier and returns fileUUID -> combo key. Any failure falls back to
// "default" for every file.
func (c *Coordinator) classifyFiles(ctx context.Context, candidates []candidate, stats *Stats) map[string]string {
	var fileOrder []string
	samples := make(map[string]string)
	for _, cand := range candidates {
		if _, seen := samples[cand.fileUUID]; !seen {
			fileOrder = append(fileOrder, cand.fileUUID)
			samples[cand.fileUUID] = ""
		}
		if len(samples[cand.fileUUID]) < c.cfg.ClassifyChars {
			samples[cand.fileUUID] += cand.content + "\n"
		}
	}

	texts := make([]string, len(fileOrder))
	for i, fileUUID := range fileOrder {
		texts[i] = truncateSample(samples[fileUUID], c.cfg.ClassifyChars)
	}

	combos := make(map[string]string, len(fileOrder))
	results, err := c.svc.ClassifyBatch(ctx, texts)
	if err != nil {
		c.logger.Warn("domain classification failed, using default combo", "error", err)
		for _, fileUUID := range fileOrder {
			combos[fileUUID] = "default"
		}
		return combos
	}

	for i, fileUUID := range fileOrder {
		combos[fileUUID] = comboKey(results[i])
	}
	stats.FilesClassified = len(fileOrder)
	c.signal("classify")
	return combos
}

// truncateSample caps a classification sample at max bytes without cutting
// through a multi-byte rune: the cut point backs up to the nearest rune start.
func truncateSample(text string, max int) string {
	if len(text) <= max {
		return text
	}
	for max > 0 && !utf8.RuneStart(text[max]) {
		max--
	}
	return text[:max]
}

// comboKey renders classifier labels as a sorted pipe-joined key. An empty
// label list maps to "default".
func comboKey(labels []Classification) string {
	if len(labels) == 0 {
		return "default"
	}
	seen := make(map[string]bool, len(labels))
	var domains []string
	for _, l := range labels {
		domain := strings.ToLower(strings.TrimSpace(l.Label))
		if domain == "" || seen[domain] {
			continue
		}
		seen[domain] = true
		domains = append(domains, domain)
	}
	if len(domains) == 0 {
		return "default"
	}
	sort.Strings(domains)
	return strings.Join(domains, "|")
}

// mergeTypes unions the type sets of every enabled domain in the combo.
func (c *Coordinator) mergeTypes(combo string, presets map[string]Preset) ([]string, []string) {
	disabled := make(map[string]bool, len(c.cfg.DisabledDomains))
	for _, d := range c.cfg.DisabledDomains {
		disabled[strings.ToLower(d)] = true
	}

	entitySet := make(map[string]bool)
	relationSet := make(map[string]bool)
	for _, domain := range strings.Split(combo, "|") {
		preset, ok := presets[domain]
		if !ok {
			preset, ok = presets["default"]
			if !ok {
				continue
			}
		}
		if disabled[domain] || (preset.Enabled != nil && !*preset.Enabled) {
			continue
		}
		for _, t := range preset.EntityTypes {
			entitySet[t] = true
		}
		for _, t := range preset.RelationTypes {
			relationSet[t] = true
		}
	}
	return sortedKeys(entitySet), sortedKeys(relationSet)
}

// extractBatch runs one service call for up to BatchSize nodes and
// reconciles the graph: upsert entities and mentions, upsert relations,
// delete stale mentions, record processed hashes.
func (c *Coordinator) extractBatch(ctx context.Context, projectID string, nodes []candidate, entityTypes, relationTypes []string, stats *Stats) error {
	existing, err := c.readMentions(ctx, nodes)
	if err != nil {
		return err
	}

	texts := make([]string, len(nodes))
	for i, n := range nodes {
		texts[i] = n.content
	}
	results, err := c.svc.ExtractBatch(ctx, texts, entityTypes, relationTypes)
	if err != nil {
		return fmt.Errorf("entity extraction failed; %w", err)
	}

	now := time.Now().UnixMilli()
	entityRows := make(map[string][]map[string]any) // source label -> rows
	relationRows := make(map[string]map[string]any) // dedupe key -> row
	staleRows := make(map[string][]map[string]any)  // source label -> rows

	for i, node := range nodes {
		kept := make(map[string]bool)
		var ents []map[string]any
		entityByName := make(map[string]string) // raw name -> uuid, for relations

		for _, e := range results[i].Entities {
			if e.Confidence < c.cfg.ConfidenceThreshold {
				continue
			}
			entityUUID := model.EntityUUID(e.Type, e.Name)
			kept[entityUUID] = true
			entityByName[model.NormalizeEntityName(e.Name)] = entityUUID
			ents = append(ents, map[string]any{
				"uuid":        entityUUID,
				"name":        e.Name,
				"entityType":  strings.ToLower(e.Type),
				"confidence":  e.Confidence,
				"contentHash": model.Hash16String(e.Name),
			})
		}
		if len(ents) > 0 {
			entityRows[node.label] = append(entityRows[node.label], map[string]any{
				"nodeUuid": node.uuid,
				"entities": ents,
			})
			stats.EntitiesCreated += len(ents)
		}

		for _, r := range results[i].Relations {
			subject, okS := entityByName[model.NormalizeEntityName(r.Subject)]
			object, okO := entityByName[model.NormalizeEntityName(r.Object)]
			if !okS || !okO || subject == object {
				continue
			}
			key := subject + "|" + r.Predicate + "|" + object
			if prev, ok := relationRows[key]; ok {
				if r.Confidence > prev["confidence"].(float64) {
					prev["confidence"] = r.Confidence
				}
				continue
			}
			relationRows[key] = map[string]any{
				"subject":    subject,
				"predicate":  r.Predicate,
				"object":     object,
				"confidence": r.Confidence,
			}
		}

		var stale []string
		for entityUUID := range existing[node.uuid] {
			if !kept[entityUUID] {
				stale = append(stale, entityUUID)
			}
		}
		if len(stale) > 0 {
			sort.Strings(stale)
			staleRows[node.label] = append(staleRows[node.label], map[string]any{
				"nodeUuid": node.uuid,
				"stale":    stale,
			})
			stats.MentionsRemoved += len(stale)
		}
	}

	var stmts []graph.Statement

	// One UNWIND per source label keeps the MATCH label-scoped.
	for _, label := range sortedRowKeys(entityRows) {
		stmts = append(stmts, graph.Statement{
			Query: fmt.Sprintf(`
UNWIND $rows AS row
MATCH (n:%s {uuid: row.nodeUuid})
UNWIND row.entities AS ent
MERGE (e:Entity {uuid: ent.uuid})
ON CREATE SET e._name = ent.name,
              e._content = ent.name,
              e._description = ent.entityType,
              e.entityType = ent.entityType,
              e._contentHash = ent.contentHash,
              e.projectId = $projectId,
              e._state = 'linked',
              e._stateChangedAt = $now
SET e.confidence = CASE
      WHEN e.confidence IS NULL OR ent.confidence > e.confidence THEN ent.confidence
      ELSE e.confidence END
MERGE (n)-[m:MENTIONS]->(e)
SET m.confidence = ent.confidence`, label),
			Params: map[string]any{
				"rows": entityRows[label], "projectId": projectID, "now": now,
			},
		})
	}

	if len(relationRows) > 0 {
		rows := make([]map[string]any, 0, len(relationRows))
		for _, key := range sortedKeysAny(relationRows) {
			rows = append(rows, relationRows[key])
		}
		stmts = append(stmts, graph.Statement{
			Query: `
UNWIND $rows AS row
MATCH (a:Entity {uuid: row.subject})
MATCH (b:Entity {uuid: row.object})
MERGE (a)-[r:RELATED_TO {predicate: row.predicate}]->(b)
SET r.confidence = CASE
      WHEN r.confidence IS NULL OR row.confidence > r.confidence THEN row.confidence
      ELSE r.confidence END`,
			Params: map[string]any{"rows": rows},
		})
		stats.RelationsCreated += len(rows)
	}

	for _, label := range sortedRowKeys(staleRows) {
		stmts = append(stmts, graph.Statement{
			Query: fmt.Sprintf(`
UNWIND $rows AS row
MATCH (n:%s {uuid: row.nodeUuid})-[m:MENTIONS]->(e:Entity)
WHERE e.uuid IN row.stale
DELETE m`, label),
			Params: map[string]any{"rows": staleRows[label]},
		})
	}

	if len(stmts) > 0 {
		if _, err := c.client.WriteBatch(ctx, stmts); err != nil {
			return fmt.Errorf("failed to persist extraction batch; %w", err)
		}
	}

	if err := c.markProcessed(ctx, nodes); err != nil {
		return err
	}
	stats.NodesProcessed += len(nodes)
	return nil
}

// readMentions returns nodeUUID -> set of currently mentioned entity uuids.
func (c *Coordinator) readMentions(ctx context.Context, nodes []candidate) (map[string]map[string]bool, error) {
	byLabel := make(map[string][]string)
	for _, n := range nodes {
		byLabel[n.label] = append(byLabel[n.label], n.uuid)
	}

	existing := make(map[string]map[string]bool)
	for _, label := range sortedKeysSlice(byLabel) {
		query := fmt.Sprintf(`
UNWIND $uuids AS uuid
MATCH (n:%s {uuid: uuid})-[:MENTIONS]->(e:Entity)
RETURN n.uuid AS nodeUuid, e.uuid AS entityUuid`, label)

		rows, err := c.client.Run(ctx, query, map[string]any{"uuids": byLabel[label]})
		if err != nil {
			return nil, fmt.Errorf("failed to read existing mentions; %w", err)
		}
		for _, row := range rows {
			nodeUUID := model.Str(row["nodeUuid"])
			if existing[nodeUUID] == nil {
				existing[nodeUUID] = make(map[string]bool)
			}
			existing[nodeUUID][model.Str(row["entityUuid"])] = true
		}
	}
	return existing, nil
}

// markProcessed records each node's content hash as its entity hash so the
// next run skips it unless the content changes.
func (c *Coordinator) markProcessed(ctx context.Context, nodes []candidate) error {
	byLabel := make(map[string][]map[string]any)
	for _, n := range nodes {
		byLabel[n.label] = append(byLabel[n.label], map[string]any{
			"uuid": n.uuid,
			"hash": n.contentHash,
		})
	}

	var stmts []graph.Statement
	for _, label := range sortedRowKeys(byLabel) {
		stmts = append(stmts, graph.Statement{
			Query: fmt.Sprintf(`
UNWIND $rows AS row
MATCH (n:%s {uuid: row.uuid})
SET n._entitiesContentHash = row.hash`, label),
			Params: map[string]any{"rows": byLabel[label]},
		})
	}
	if len(stmts) == 0 {
		return nil
	}
	if _, err := c.client.WriteBatch(ctx, stmts); err != nil {
		return fmt.Errorf("failed to record entity hashes; %w", err)
	}
	return nil
}

// deleteOrphanEntities removes Entity nodes with zero inbound mentions.
func (c *Coordinator) deleteOrphanEntities(ctx context.Context, projectID string) (int, error) {
	rows, err := c.client.Run(ctx, `
MATCH (e:Entity {projectId: $projectId})
WHERE NOT ( ()-[:MENTIONS]->(e) )
RETURN count(e) AS orphans`, map[string]any{"projectId": projectID})
	if err != nil {
		return 0, fmt.Errorf("failed to count orphan entities; %w", err)
	}
	orphans := 0
	if len(rows) > 0 {
		orphans = model.Int(rows[0]["orphans"])
	}
	if orphans == 0 {
		return 0, nil
	}

	if _, err := c.client.Write(ctx, `
MATCH (e:Entity {projectId: $projectId})
WHERE NOT ( ()-[:MENTIONS]->(e) )
DETACH DELETE e`, map[string]any{"projectId": projectID}); err != nil {
		return 0, fmt.Errorf("failed to delete orphan entities; %w", err)
	}
	return orphans, nil
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedRowKeys(m map[string][]map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysSlice(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeysAny(m map[string]map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
