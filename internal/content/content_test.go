package content

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
)

func TestDiskProvider_ReadWithHash(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	f := &model.File{UUID: "u1", Path: "a.txt", AbsolutePath: path}
	p := NewDiskProvider(2)

	data, hash, err := p.ReadWithHash(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, model.Hash16([]byte("hello")), hash)
	assert.True(t, p.Exists(context.Background(), f))
}

func TestDiskProvider_MissingFile(t *testing.T) {
	f := &model.File{UUID: "u1", Path: "gone.txt", AbsolutePath: filepath.Join(t.TempDir(), "gone.txt")}
	p := NewDiskProvider(2)

	_, err := p.Read(context.Background(), f)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, p.Exists(context.Background(), f))
}

func TestDiskProvider_ReadBatchPartialFailure(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.txt")
	require.NoError(t, os.WriteFile(good, []byte("ok"), 0o644))

	files := []*model.File{
		{UUID: "good", Path: "good.txt", AbsolutePath: good},
		{UUID: "bad", Path: "bad.txt", AbsolutePath: filepath.Join(dir, "bad.txt")},
	}
	result, err := NewDiskProvider(2).ReadBatch(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, "ok", string(result.Content["good"]))
	assert.Equal(t, model.Hash16([]byte("ok")), result.Hashes["good"])
	assert.ErrorIs(t, result.Errors["bad"], ErrNotFound)
}

func TestVirtualProvider_ReadBatch(t *testing.T) {
	fake := graph.NewFake()
	fake.ReadsByMatch["f._rawContent AS content"] = []graph.Record{
		{"uuid": "u1", "content": "stored text", "hash": "deadbeefdeadbeef"},
	}

	files := []*model.File{
		{UUID: "u1", Path: "virtual://a"},
		{UUID: "u2", Path: "virtual://b"},
	}
	result, err := NewVirtualProvider(fake).ReadBatch(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, "stored text", string(result.Content["u1"]))
	assert.Equal(t, "deadbeefdeadbeef", result.Hashes["u1"], "stored hash wins over recomputation")
	assert.ErrorIs(t, result.Errors["u2"], ErrNotFound)
}

func TestHybridProvider_PartitionsOnVirtuality(t *testing.T) {
	dir := t.TempDir()
	diskPath := filepath.Join(dir, "disk.txt")
	require.NoError(t, os.WriteFile(diskPath, []byte("on disk"), 0o644))

	fake := graph.NewFake()
	fake.ReadsByMatch["f._rawContent AS content"] = []graph.Record{
		{"uuid": "virt-1", "content": "in graph", "hash": ""},
	}

	files := []*model.File{
		{UUID: "disk-1", Path: "disk.txt", AbsolutePath: diskPath},
		{UUID: "virt-1", Path: "virtual://gen", IsVirtual: true},
	}
	result, err := NewHybridProvider(fake, 2).ReadBatch(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, "on disk", string(result.Content["disk-1"]))
	assert.Equal(t, "in graph", string(result.Content["virt-1"]))
	assert.Empty(t, result.Errors)
}
