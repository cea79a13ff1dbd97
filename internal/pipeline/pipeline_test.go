package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/content"
	"github.com/codegraphhq/codegraph/internal/embed"
	"github.com/codegraphhq/codegraph/internal/entities"
	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

// memoryContent serves file bytes from a map keyed by file uuid.
type memoryContent struct {
	data map[string][]byte
}

func (m *memoryContent) Read(ctx context.Context, file *model.File) ([]byte, error) {
	data, ok := m.data[file.UUID]
	if !ok {
		return nil, content.ErrNotFound
	}
	return data, nil
}

func (m *memoryContent) ReadWithHash(ctx context.Context, file *model.File) ([]byte, string, error) {
	data, err := m.Read(ctx, file)
	if err != nil {
		return nil, "", err
	}
	return data, model.Hash16(data), nil
}

func (m *memoryContent) Exists(ctx context.Context, file *model.File) bool {
	_, ok := m.data[file.UUID]
	return ok
}

func (m *memoryContent) ReadBatch(ctx context.Context, files []*model.File) (*content.BatchResult, error) {
	result := &content.BatchResult{
		Content: map[string][]byte{},
		Hashes:  map[string]string{},
		Errors:  map[string]error{},
	}
	for _, f := range files {
		data, err := m.Read(ctx, f)
		if err != nil {
			result.Errors[f.UUID] = err
			continue
		}
		result.Content[f.UUID] = data
		result.Hashes[f.UUID] = model.Hash16(data)
	}
	return result, nil
}

type stubEntityPhase struct {
	stats entities.Stats
	err   error
	runs  int
}

func (s *stubEntityPhase) Run(ctx context.Context, projectID string) (entities.Stats, error) {
	s.runs++
	return s.stats, s.err
}

type stubEmbedPhase struct {
	stats      embed.Stats
	err        error
	runs       int
	ranAfter   *stubEntityPhase
	entityRuns int // entity phase run count observed when embedding started
}

func (s *stubEmbedPhase) Run(ctx context.Context, projectID string) (embed.Stats, error) {
	s.runs++
	if s.ranAfter != nil {
		s.entityRuns = s.ranAfter.runs
	}
	return s.stats, s.err
}

func fileRow(f *model.File, state model.State) graph.Record {
	props := f.Properties()
	props[model.PropState] = string(state)
	return graph.Record{"props": map[string]any(props)}
}

func TestProcessDiscovered_ParsesAndLinks(t *testing.T) {
	projectID := "proj"
	file := model.NewFile(projectID, "docs/readme.md", "")
	file.IsVirtual = true

	fake := graph.NewFake()
	fake.ReadsByMatch["_state: $state})"] = []graph.Record{fileRow(file, model.StateDiscovered)}
	fake.ReadsByMatch["AND f._state = $target"] = []graph.Record{{"n": int64(1)}}

	contents := &memoryContent{data: map[string][]byte{
		file.UUID: []byte("# Title\n\nHello world with [a link](https://example.com).\n"),
	}}

	p := New(fake, contents)
	stats, err := p.ProcessDiscovered(context.Background(), projectID)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesProcessed)
	assert.Equal(t, 0, stats.FilesErrored)

	queries := strings.Join(fake.WrittenQueries(), "\n---\n")
	assert.Contains(t, queries, "MERGE (n:MarkdownDocument")
	assert.Contains(t, queries, "MERGE (n:MarkdownSection")
	assert.Contains(t, queries, ":DEFINED_IN")
	assert.Contains(t, queries, "DETACH DELETE n, c", "stale children must be pruned")
	assert.Contains(t, queries, "SET f._state = $target", "file transitions must be recorded")
}

func TestProcessDiscovered_ReadFailureErrorsFile(t *testing.T) {
	projectID := "proj"
	file := model.NewFile(projectID, "gone.md", "")

	fake := graph.NewFake()
	fake.ReadsByMatch["_state: $state})"] = []graph.Record{fileRow(file, model.StateDiscovered)}
	fake.ReadsByMatch["AND f._state = $target"] = []graph.Record{{"n": int64(1)}}

	p := New(fake, &memoryContent{data: map[string][]byte{}})
	stats, err := p.ProcessDiscovered(context.Background(), projectID)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesErrored)
	assert.Equal(t, 0, stats.FilesProcessed)

	queries := strings.Join(fake.WrittenQueries(), "\n")
	assert.Contains(t, queries, "f.errorType = $errorType")
}

func TestProcessLinked_RunsEntitiesBeforeEmbedding(t *testing.T) {
	projectID := "proj"
	file := model.NewFile(projectID, "docs/readme.md", "")

	fake := graph.NewFake()
	fake.ReadsByMatch["_state: $state})"] = []graph.Record{fileRow(file, model.StateLinked)}
	fake.ReadsByMatch["AND f._state = $target"] = []graph.Record{{"n": int64(1)}}

	entityPhase := &stubEntityPhase{stats: entities.Stats{EntitiesCreated: 4, RelationsCreated: 2}}
	embedPhase := &stubEmbedPhase{stats: embed.Stats{VectorsGenerated: 9}, ranAfter: entityPhase}

	p := New(fake, &memoryContent{},
		WithEntityPhase(entityPhase),
		WithEmbedPhase(embedPhase))

	stats, err := p.ProcessLinked(context.Background(), projectID)
	require.NoError(t, err)

	assert.Equal(t, 1, entityPhase.runs)
	assert.Equal(t, 1, embedPhase.runs)
	assert.Equal(t, 1, embedPhase.entityRuns, "entity phase must complete before embedding starts")
	assert.Equal(t, 4, stats.EntitiesCreated)
	assert.Equal(t, 2, stats.RelationsCreated)
	assert.Equal(t, 9, stats.EmbeddingsGenerated)
	assert.Equal(t, 1, stats.FilesProcessed)
}

func TestProcessLinked_DegradedEntityPhaseStillEmbeds(t *testing.T) {
	projectID := "proj"
	file := model.NewFile(projectID, "docs/readme.md", "")

	fake := graph.NewFake()
	fake.ReadsByMatch["_state: $state})"] = []graph.Record{fileRow(file, model.StateLinked)}
	fake.ReadsByMatch["AND f._state = $target"] = []graph.Record{{"n": int64(1)}}

	entityPhase := &stubEntityPhase{stats: entities.Stats{Degraded: true}}
	embedPhase := &stubEmbedPhase{}

	p := New(fake, &memoryContent{},
		WithEntityPhase(entityPhase),
		WithEmbedPhase(embedPhase))

	stats, err := p.ProcessLinked(context.Background(), projectID)
	require.NoError(t, err)

	assert.Equal(t, 1, embedPhase.runs)
	assert.Equal(t, 1, stats.FilesProcessed)
}

func TestProcessLinked_EntityErrorMarksFiles(t *testing.T) {
	projectID := "proj"
	file := model.NewFile(projectID, "docs/readme.md", "")

	fake := graph.NewFake()
	fake.ReadsByMatch["_state: $state})"] = []graph.Record{fileRow(file, model.StateLinked)}
	fake.ReadsByMatch["AND f._state = $target"] = []graph.Record{{"n": int64(1)}}

	entityPhase := &stubEntityPhase{err: errors.New("extractor crashed")}
	embedPhase := &stubEmbedPhase{}

	p := New(fake, &memoryContent{},
		WithEntityPhase(entityPhase),
		WithEmbedPhase(embedPhase))

	stats, err := p.ProcessLinked(context.Background(), projectID)
	require.Error(t, err)

	assert.Equal(t, 0, embedPhase.runs, "embedding must not run after an entity failure")
	assert.Equal(t, 1, stats.FilesErrored)

	queries := strings.Join(fake.WrittenQueries(), "\n")
	assert.Contains(t, queries, "f.errorType = $errorType")
}

func TestRecover_ResetsStuckAndRetryableFiles(t *testing.T) {
	projectID := "proj"
	stuck := model.NewFile(projectID, "stuck.md", "")
	errored := model.NewFile(projectID, "errored.md", "")

	fake := graph.NewFake()
	// FilesInState is called once per intermediate state, in order.
	fake.Reads = [][]graph.Record{
		{fileRow(stuck, model.StateParsing)},
		{},
		{},
		{},
	}
	fake.ReadsByMatch["AND f._state = $target"] = []graph.Record{{"n": int64(1)}}
	fake.ReadsByMatch["< $maxRetries"] = []graph.Record{fileRow(errored, model.StateError)}
	fake.ReadsByMatch["f._state AS state, count(f) AS n"] = []graph.Record{
		{"state": "error", "n": int64(2)},
		{"state": "embedded", "n": int64(5)},
	}

	p := New(fake, &memoryContent{})
	res, err := p.Recover(context.Background(), projectID)
	require.NoError(t, err)

	assert.Equal(t, 1, res.StatesReset)
	assert.Equal(t, 1, res.FilesRecovered)
	assert.Equal(t, 2, res.FilesInError)
}
