package entities

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

// stubExtractor scripts the extraction service.
type stubExtractor struct {
	available   bool
	classifyOut [][]Classification
	classifyErr error
	extractOut  []ExtractResult
	extractErr  error
	presets     map[string]Preset

	loads, unloads  int
	extractCalls    int
	lastEntityTypes []string
}

func (s *stubExtractor) Available(ctx context.Context) bool { return s.available }

func (s *stubExtractor) LoadModel(ctx context.Context) error {
	s.loads++
	return nil
}

func (s *stubExtractor) UnloadModel(ctx context.Context) error {
	s.unloads++
	return nil
}

func (s *stubExtractor) ClassifyBatch(ctx context.Context, texts []string) ([][]Classification, error) {
	if s.classifyErr != nil {
		return nil, s.classifyErr
	}
	out := make([][]Classification, len(texts))
	for i := range texts {
		if i < len(s.classifyOut) {
			out[i] = s.classifyOut[i]
		}
	}
	return out, nil
}

func (s *stubExtractor) ExtractBatch(ctx context.Context, texts, entityTypes, relationTypes []string) ([]ExtractResult, error) {
	s.extractCalls++
	s.lastEntityTypes = entityTypes
	if s.extractErr != nil {
		return nil, s.extractErr
	}
	out := make([]ExtractResult, len(texts))
	for i := range texts {
		if i < len(s.extractOut) {
			out[i] = s.extractOut[i]
		}
	}
	return out, nil
}

func (s *stubExtractor) Presets(ctx context.Context) (map[string]Preset, error) {
	return s.presets, nil
}

func candidateRow(uuid, content, fileUUID string) graph.Record {
	return graph.Record{
		"uuid":        uuid,
		"content":     content,
		"contentHash": model.Hash16String(content),
		"fileUuid":    fileUUID,
		"filePath":    "docs/notes.md",
	}
}

func TestRun_DegradedWhenServiceDown(t *testing.T) {
	fake := graph.NewFake()
	svc := &stubExtractor{available: false}

	stats, err := NewCoordinator(fake, svc).Run(context.Background(), "proj")
	require.NoError(t, err)

	assert.True(t, stats.Degraded)
	assert.Equal(t, 0, svc.loads)
	assert.Empty(t, fake.Writes)
}

func TestRun_ExtractsAndReconcilesMentions(t *testing.T) {
	fake := graph.NewFake()
	fake.ReadsByMatch["(n:MarkdownSection {projectId"] = []graph.Record{
		candidateRow("section-1", "Ada Lovelace designed programs for the Analytical Engine.", "file-1"),
	}
	// The section previously mentioned an entity the new text dropped.
	fake.ReadsByMatch["-[:MENTIONS]->(e:Entity)"] = []graph.Record{
		{"nodeUuid": "section-1", "entityUuid": "entity:person:charles babbage"},
	}
	fake.ReadsByMatch["count(e) AS orphans"] = []graph.Record{{"orphans": int64(1)}}

	svc := &stubExtractor{
		available:   true,
		classifyOut: [][]Classification{{{Label: "technology", Confidence: 0.9}}},
		presets: map[string]Preset{
			"technology": {EntityTypes: []string{"person", "machine"}, RelationTypes: []string{"designed"}},
		},
		extractOut: []ExtractResult{{
			Entities: []Entity{
				{Name: "Ada Lovelace", Type: "Person", Confidence: 0.95},
				{Name: "Analytical Engine", Type: "Machine", Confidence: 0.9},
				{Name: "noise", Type: "Person", Confidence: 0.1}, // under threshold
			},
			Relations: []Relation{
				{Subject: "Ada Lovelace", Predicate: "designed", Object: "Analytical Engine", Confidence: 0.8},
			},
		}},
	}

	stats, err := NewCoordinator(fake, svc).Run(context.Background(), "proj")
	require.NoError(t, err)

	assert.Equal(t, 1, svc.loads)
	assert.Equal(t, 1, svc.unloads)
	assert.Equal(t, 1, stats.NodesProcessed)
	assert.Equal(t, 2, stats.EntitiesCreated, "the low-confidence entity is dropped")
	assert.Equal(t, 1, stats.RelationsCreated)
	assert.Equal(t, 1, stats.MentionsRemoved)
	assert.Equal(t, 1, stats.EntitiesRemoved)

	queries := strings.Join(fake.WrittenQueries(), "\n---\n")
	assert.Contains(t, queries, "MERGE (e:Entity {uuid: ent.uuid})")
	assert.Contains(t, queries, "MERGE (n)-[m:MENTIONS]->(e)")
	assert.Contains(t, queries, "MERGE (a)-[r:RELATED_TO {predicate: row.predicate}]->(b)")
	assert.Contains(t, queries, "DELETE m")
	assert.Contains(t, queries, "n._entitiesContentHash = row.hash")
	assert.Contains(t, queries, "DETACH DELETE e")
}

func TestRun_DisabledDomainRecordsHashesOnly(t *testing.T) {
	fake := graph.NewFake()
	fake.ReadsByMatch["(n:MarkdownSection {projectId"] = []graph.Record{
		candidateRow("section-1", "Patient presented with elevated markers.", "file-1"),
	}

	disabled := false
	svc := &stubExtractor{
		available:   true,
		classifyOut: [][]Classification{{{Label: "medical", Confidence: 0.9}}},
		presets: map[string]Preset{
			"medical": {EntityTypes: []string{"condition"}, Enabled: &disabled},
		},
	}

	stats, err := NewCoordinator(fake, svc).Run(context.Background(), "proj")
	require.NoError(t, err)

	assert.Equal(t, 0, svc.extractCalls)
	assert.Equal(t, 1, stats.NodesProcessed)
	assert.Equal(t, 0, stats.EntitiesCreated)

	queries := strings.Join(fake.WrittenQueries(), "\n")
	assert.Contains(t, queries, "n._entitiesContentHash = row.hash")
	assert.NotContains(t, queries, "MENTIONS")
}

func TestRun_ClassifyFailureFallsBackToDefault(t *testing.T) {
	fake := graph.NewFake()
	fake.ReadsByMatch["(n:MarkdownSection {projectId"] = []graph.Record{
		candidateRow("section-1", "some text", "file-1"),
	}

	svc := &stubExtractor{
		available:   true,
		classifyErr: errors.New("classifier crashed"),
		presets: map[string]Preset{
			"default": {EntityTypes: []string{"organization", "person"}},
		},
		extractOut: []ExtractResult{{}},
	}

	_, err := NewCoordinator(fake, svc).Run(context.Background(), "proj")
	require.NoError(t, err)

	assert.Equal(t, 1, svc.extractCalls)
	assert.Equal(t, []string{"organization", "person"}, svc.lastEntityTypes)
}

func TestRun_UnloadsModelAfterExtractError(t *testing.T) {
	fake := graph.NewFake()
	fake.ReadsByMatch["(n:MarkdownSection {projectId"] = []graph.Record{
		candidateRow("section-1", "some text", "file-1"),
	}

	svc := &stubExtractor{
		available:  true,
		presets:    map[string]Preset{"default": {EntityTypes: []string{"person"}}},
		extractErr: errors.New("extractor exploded"),
	}

	_, err := NewCoordinator(fake, svc).Run(context.Background(), "proj")
	require.Error(t, err)
	assert.Equal(t, 1, svc.unloads, "the accelerator must be released on failure")
}

func TestComboKey(t *testing.T) {
	tests := []struct {
		name   string
		labels []Classification
		want   string
	}{
		{"empty", nil, "default"},
		{"single", []Classification{{Label: "legal"}}, "legal"},
		{"sorted", []Classification{{Label: "technology"}, {Label: "legal"}}, "legal|technology"},
		{"dedup", []Classification{{Label: "Legal"}, {Label: "legal"}}, "legal"},
		{"blank labels", []Classification{{Label: "  "}}, "default"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, comboKey(tt.labels))
		})
	}
}

func TestTruncateSample_RespectsRuneBoundaries(t *testing.T) {
	text := strings.Repeat("é", 300) // 2 bytes per rune

	out := truncateSample(text, 501)
	assert.True(t, utf8.ValidString(out), "truncation must not split a rune")
	assert.Equal(t, 500, len(out))

	assert.Equal(t, "short", truncateSample("short", 500))
	assert.Equal(t, "", truncateSample("日本語", 2))
}
