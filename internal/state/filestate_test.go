package state

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

func TestMarkDiscoveredBatch_CreatesProjectAndDirectories(t *testing.T) {
	fake := graph.NewFake()
	m := NewMachine(fake)

	res, err := m.MarkDiscoveredBatch(context.Background(), "proj", []DiscoveredFile{
		{Path: "docs/guide/intro.md", AbsolutePath: "/repo/docs/guide/intro.md", RawContentHash: "aaaa"},
		{Path: "readme.md", AbsolutePath: "/repo/readme.md", RawContentHash: "bbbb"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Created)

	queries := fake.WrittenQueries()
	require.NotEmpty(t, queries)
	assert.Contains(t, queries[0], "MERGE (p:Project {id: $projectId})",
		"the project anchor must exist before anything hangs off it")

	joined := strings.Join(queries, "\n---\n")
	assert.Contains(t, joined, "MERGE (d:Directory {uuid: row.uuid})")
	assert.Contains(t, joined, "MERGE (a)-[:PARENT_OF]->(b)")
	assert.Contains(t, joined, "MERGE (f)-[:BELONGS_TO]->(p)")
	assert.Contains(t, joined, "MERGE (f)-[:IN_DIRECTORY]->(d)")

	var dirs []map[string]any
	for _, stmt := range fake.Writes {
		if strings.Contains(stmt.Query, "MERGE (d:Directory") {
			dirs = stmt.Params["dirs"].([]map[string]any)
		}
	}
	require.Len(t, dirs, 2)
	depths := map[string]int{}
	for _, d := range dirs {
		depths[d["path"].(string)] = d["depth"].(int)
	}
	assert.Equal(t, map[string]int{"docs": 1, "docs/guide": 2}, depths)

	var links []map[string]any
	for _, stmt := range fake.Writes {
		if strings.Contains(stmt.Query, "IN_DIRECTORY") {
			links = stmt.Params["links"].([]map[string]any)
		}
	}
	require.Len(t, links, 1, "root-level files carry no directory edge")
	assert.Equal(t, model.FileUUID("proj", "docs/guide/intro.md"), links[0]["file"])
	assert.Equal(t, model.DirectoryUUID("proj", "docs/guide"), links[0]["dir"])
}

func TestMarkDiscoveredBatch_UnchangedFileIsNoOp(t *testing.T) {
	fake := graph.NewFake()
	uuid := model.FileUUID("proj", "readme.md")
	fake.ReadsByMatch["f._rawContentHash AS hash"] = []graph.Record{
		{"uuid": uuid, "hash": "aaaa", "state": "ready"},
	}
	m := NewMachine(fake)

	res, err := m.MarkDiscoveredBatch(context.Background(), "proj", []DiscoveredFile{
		{Path: "readme.md", RawContentHash: "aaaa"},
	})
	require.NoError(t, err)
	assert.Equal(t, MarkResult{Skipped: 1}, res)
	assert.Empty(t, fake.Writes)
}

func TestMarkDiscoveredBatch_ResetsChangedAndErroredFiles(t *testing.T) {
	fake := graph.NewFake()
	changed := model.FileUUID("proj", "a.md")
	errored := model.FileUUID("proj", "b.md")
	fake.ReadsByMatch["f._rawContentHash AS hash"] = []graph.Record{
		{"uuid": changed, "hash": "old", "state": "ready"},
		{"uuid": errored, "hash": "same", "state": "error"},
	}
	m := NewMachine(fake)

	res, err := m.MarkDiscoveredBatch(context.Background(), "proj", []DiscoveredFile{
		{Path: "a.md", RawContentHash: "new"},
		{Path: "b.md", RawContentHash: "same"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Reset)
	assert.Equal(t, 0, res.Created)

	joined := strings.Join(fake.WrittenQueries(), "\n")
	assert.Contains(t, joined, "f._state = 'discovered'")
	assert.NotContains(t, joined, "MERGE (p:Project", "no new files, no anchor write")
}

func TestTransitionBatch_GuardsIllegalMoves(t *testing.T) {
	fake := graph.NewFake()
	fake.ReadsByMatch["count(f) AS n"] = []graph.Record{{"n": int64(0)}}
	m := NewMachine(fake)

	err := m.TransitionBatch(context.Background(), []string{"u1"}, model.StateParsed, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrInvalidTransition))

	joined := strings.Join(fake.WrittenQueries(), "\n")
	assert.Contains(t, joined, "f._state IN $sources",
		"the update must only match files allowed to reach the target")
}

func TestTransitionBatch_MovesAllowedFiles(t *testing.T) {
	fake := graph.NewFake()
	fake.ReadsByMatch["count(f) AS n"] = []graph.Record{{"n": int64(2)}}
	m := NewMachine(fake)

	err := m.TransitionBatch(context.Background(), []string{"u1", "u2"}, model.StateParsing, nil)
	require.NoError(t, err)
}

func TestEnsureProject_MergesAnchor(t *testing.T) {
	fake := graph.NewFake()
	m := NewMachine(fake)

	require.NoError(t, m.EnsureProject(context.Background(), "proj"))
	require.Len(t, fake.Writes, 1)
	assert.Contains(t, fake.Writes[0].Query, "MERGE (p:Project {id: $projectId})")
	assert.Equal(t, "proj", fake.Writes[0].Params["projectId"])
}
