package preserve

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

func TestSnapshot_KeepsOnlyPreservedMetadata(t *testing.T) {
	fake := graph.NewFake()
	fake.ReadsByMatch["WHERE n._state IS NOT NULL"] = []graph.Record{{
		"uuid": "n1",
		"props": map[string]any{
			"_state":                 "ready",
			"_contentHash":           "h1",
			"_content":               "full body",
			"name":                   "thing",
			"usesChunks":             true,
			"embedding_content_hash": "ech",
		},
	}}
	fake.ReadsByMatch["HAS_EMBEDDING_CHUNK"] = []graph.Record{{
		"parent": "n1",
		"props":  map[string]any{"uuid": "n1_chunk_0", "embedding_content": []any{0.1, 0.2}},
	}}

	snap, err := New(fake).Snapshot(context.Background(), "file-1")
	require.NoError(t, err)

	require.Contains(t, snap.Nodes, "n1")
	kept := snap.Nodes["n1"]
	assert.Equal(t, true, kept["usesChunks"])
	assert.Equal(t, "ech", kept["embedding_content_hash"])
	assert.NotContains(t, kept, "_content", "recomputed properties must not be carried")
	assert.NotContains(t, kept, "name")

	assert.Equal(t, StateRecord{State: model.StateReady, ContentHash: "h1"}, snap.States["n1"])
	assert.Len(t, snap.Chunks["n1"], 1)
}

func TestRestore_ReappliesStateOnlyWhenHashMatches(t *testing.T) {
	fake := graph.NewFake()
	snap := &Snapshot{
		FileUUID: "file-1",
		Nodes:    map[string]model.Props{"n1": {"embedding_content_hash": "ech"}},
		States:   map[string]StateRecord{"n1": {State: model.StateReady, ContentHash: "h1"}},
		Chunks:   map[string][]model.Props{},
	}

	applied, err := New(fake).Restore(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)

	require.Len(t, fake.Writes, 1)
	stmt := fake.Writes[0]
	assert.Contains(t, stmt.Query, "n._contentHash = row.contentHash",
		"state only comes back when the node still carries the hash it was earned against")
	rows := stmt.Params["rows"].([]map[string]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "ready", rows[0]["state"])
	assert.Equal(t, "h1", rows[0]["contentHash"])
}

func TestRestore_SkipsChunksOfUnkeptParents(t *testing.T) {
	fake := graph.NewFake()
	snap := &Snapshot{
		FileUUID: "file-1",
		Nodes:    map[string]model.Props{"kept": {"usesChunks": true}},
		States:   map[string]StateRecord{},
		Chunks: map[string][]model.Props{
			"kept": {{"uuid": "kept_chunk_0"}},
			"gone": {{"uuid": "gone_chunk_0"}},
		},
	}

	_, err := New(fake).Restore(context.Background(), snap)
	require.NoError(t, err)

	var chunkRows []map[string]any
	for _, stmt := range fake.Writes {
		if strings.Contains(stmt.Query, "EmbeddingChunk") {
			chunkRows = stmt.Params["rows"].([]map[string]any)
		}
	}
	require.Len(t, chunkRows, 1)
	assert.Equal(t, "kept", chunkRows[0]["parent"])
}

func TestRestore_EmptySnapshotWritesNothing(t *testing.T) {
	fake := graph.NewFake()
	snap := &Snapshot{
		FileUUID: "file-1",
		Nodes:    map[string]model.Props{},
		States:   map[string]StateRecord{},
		Chunks:   map[string][]model.Props{},
	}

	applied, err := New(fake).Restore(context.Background(), snap)
	require.NoError(t, err)
	assert.Zero(t, applied)
	assert.Empty(t, fake.Writes)
}
