package embed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/model"
)

func TestChunkLines_Empty(t *testing.T) {
	assert.Nil(t, ChunkLines("", 1, 0, DefaultChunkOptions()))
}

func TestChunkLines_SingleChunk(t *testing.T) {
	content := "line one\nline two\nline three"
	chunks := ChunkLines(content, 10, 0, DefaultChunkOptions())

	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, content, chunks[0].Content)
	assert.Equal(t, 0, chunks[0].StartChar)
	assert.Equal(t, len(content), chunks[0].EndChar)
	assert.Equal(t, 10, chunks[0].StartLine)
	assert.Equal(t, 12, chunks[0].EndLine)
}

func TestChunkLines_SplitsWithOverlap(t *testing.T) {
	// 10 lines of 30 chars each; a 70-char cap fits two lines per chunk
	// with a one-line overlap carried forward.
	line := strings.Repeat("x", 29) + "\n"
	content := strings.Repeat(line, 10)
	opts := ChunkOptions{MaxChars: 70, OverlapLines: 1}

	chunks := ChunkLines(content, 1, 0, opts)
	require.Greater(t, len(chunks), 1)

	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		// Char offsets index the original content exactly.
		assert.Equal(t, c.Content, content[c.StartChar:c.EndChar], "chunk %d", i)
		assert.LessOrEqual(t, len(c.Content), opts.MaxChars, "chunk %d", i)
	}

	// Each chunk starts on its predecessor's last line.
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].EndLine, chunks[i].StartLine, "chunk %d", i)
	}
	assert.Equal(t, 1, chunks[0].StartLine)
}

func TestChunkLines_OversizedLineStaysWhole(t *testing.T) {
	long := strings.Repeat("a", 3000)
	content := "short\n" + long + "\nshort again"

	chunks := ChunkLines(content, 1, 0, ChunkOptions{MaxChars: 100, OverlapLines: 0})
	require.GreaterOrEqual(t, len(chunks), 2)

	var found bool
	for _, c := range chunks {
		if strings.Contains(c.Content, long) {
			found = true
		}
		assert.Equal(t, c.Content, content[c.StartChar:c.EndChar])
	}
	assert.True(t, found, "the oversized line must survive unsplit")
}

func TestChunkLines_PagePropagation(t *testing.T) {
	chunks := ChunkLines("some text", 5, 7, DefaultChunkOptions())
	require.Len(t, chunks, 1)
	assert.Equal(t, 7, chunks[0].PageNum)
}

func TestChunkProps(t *testing.T) {
	c := Chunk{
		Index:     2,
		Content:   "body",
		StartChar: 100,
		EndChar:   104,
		StartLine: 12,
		EndLine:   12,
	}

	props := ChunkProps("parent-uuid", model.LabelScope, c)
	assert.Equal(t, model.ChunkUUID("parent-uuid", 2), props[model.PropUUID])
	assert.Equal(t, "parent-uuid", props["parentUuid"])
	assert.Equal(t, model.LabelScope, props["parentLabel"])
	assert.Equal(t, 2, props["chunkIndex"])
	assert.NotContains(t, props, "pageNum")

	c.PageNum = 3
	props = ChunkProps("parent-uuid", model.LabelScope, c)
	assert.Equal(t, 3, props["pageNum"])
}
