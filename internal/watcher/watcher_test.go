package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

func newTestWatcher(t *testing.T, fake *graph.Fake, root string, opts ...Option) *Watcher {
	t.Helper()
	w, err := New(fake, "proj", root, opts...)
	require.NoError(t, err)
	return w
}

func TestFlush_MarksDiscoveredAndCascadesDeletes(t *testing.T) {
	root := t.TempDir()
	keep := filepath.Join(root, "notes.md")
	require.NoError(t, os.WriteFile(keep, []byte("# notes"), 0o644))

	fake := graph.NewFake()
	flushed := 0
	w := newTestWatcher(t, fake, root, WithOnFlush(func(ctx context.Context) { flushed++ }))

	w.flush(context.Background(), []Change{
		{Path: keep, Op: OpModify, At: time.Now()},
		{Path: filepath.Join(root, "gone.md"), Op: OpDelete, At: time.Now()},
	})

	queries := strings.Join(fake.WrittenQueries(), "\n---\n")
	assert.Contains(t, queries, "MERGE (f:File {uuid: row.uuid})")
	assert.Contains(t, queries, "DETACH DELETE c, n, f")
	assert.Equal(t, 1, flushed)

	// The cascade targets the deterministic uuid of the deleted path.
	var deleteParams map[string]any
	for _, stmt := range fake.Writes {
		if strings.Contains(stmt.Query, "DETACH DELETE c, n, f") {
			deleteParams = stmt.Params
		}
	}
	require.NotNil(t, deleteParams)
	assert.Equal(t, model.FileUUID("proj", "gone.md"), deleteParams["uuid"])
}

func TestFlush_UnchangedFileDoesNotTriggerCallback(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "notes.md")
	data := []byte("# notes")
	require.NoError(t, os.WriteFile(file, data, 0o644))

	fake := graph.NewFake()
	// The file already exists with the same hash and a live state.
	fake.ReadsByMatch["WHERE f.uuid IN $uuids"] = []graph.Record{{
		"uuid":  model.FileUUID("proj", "notes.md"),
		"hash":  model.Hash16(data),
		"state": "embedded",
	}}

	flushed := 0
	w := newTestWatcher(t, fake, root, WithOnFlush(func(ctx context.Context) { flushed++ }))

	w.flush(context.Background(), []Change{{Path: file, Op: OpModify, At: time.Now()}})
	assert.Equal(t, 0, flushed, "an unchanged file must not wake the processor")
}

func TestPause_DropsRawEvents(t *testing.T) {
	root := t.TempDir()
	fake := graph.NewFake()
	w := newTestWatcher(t, fake, root)

	w.Pause()
	assert.True(t, w.isPaused())

	err := w.WithPause(func() error {
		assert.True(t, w.isPaused())
		return nil
	})
	require.NoError(t, err)
	assert.True(t, w.isPaused(), "explicit Pause is still in effect after WithPause")

	w.Resume()
	assert.False(t, w.isPaused())
}

func TestIsEditorNoise(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/p/.file.swp", true},
		{"/p/4913", true},
		{"/p/#notes.md#", true},
		{"/p/notes.md~", true},
		{"/p/notes.md", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isEditorNoise(tt.path), tt.path)
	}
}
