package embed

import (
	"github.com/codegraphhq/codegraph/internal/model"
)

// Chunk is one size-bounded, line-aligned slice of a node's content. Line
// numbers are absolute in the parent's source: the parent's startLine plus
// the chunk's in-content line offset minus one.
type Chunk struct {
	Index     int
	Content   string
	StartChar int
	EndChar   int
	StartLine int
	EndLine   int
	PageNum   int
}

// ChunkOptions controls the line-based chunker.
type ChunkOptions struct {
	MaxChars     int // character cap per chunk
	OverlapLines int // lines repeated at the start of the next chunk
}

// DefaultChunkOptions returns the standard chunking parameters.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{MaxChars: 1200, OverlapLines: 2}
}

// ChunkLines splits content into line-aligned chunks under the character
// cap, with a line overlap between neighbors. A single line longer than the
// cap becomes its own oversized chunk rather than being split mid-line.
// parentStartLine anchors the absolute line numbers; parentPage, when
// non-zero, propagates onto every chunk.
func ChunkLines(content string, parentStartLine, parentPage int, opts ChunkOptions) []Chunk {
	if opts.MaxChars <= 0 {
		opts = DefaultChunkOptions()
	}
	if content == "" {
		return nil
	}

	lines := splitKeepNewlines(content)

	var chunks []Chunk
	var current []string
	currentLen := 0
	startLineIdx := 0 // 0-based in-content line index of the current chunk
	charOffset := 0   // absolute char offset of the current chunk start

	flush := func(endLineIdx int) {
		if len(current) == 0 {
			return
		}
		text := join(current)
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Content:   text,
			StartChar: charOffset,
			EndChar:   charOffset + len(text),
			StartLine: parentStartLine + startLineIdx,
			EndLine:   parentStartLine + endLineIdx,
			PageNum:   parentPage,
		})
	}

	for i, line := range lines {
		if currentLen > 0 && currentLen+len(line) > opts.MaxChars {
			flush(i - 1)

			// Start the next chunk with the overlap tail of this one.
			overlap := opts.OverlapLines
			if overlap > len(current) {
				overlap = len(current)
			}
			tail := current[len(current)-overlap:]
			tailLen := 0
			for _, t := range tail {
				tailLen += len(t)
			}

			charOffset = charOffset + currentLen - tailLen
			startLineIdx = i - overlap
			current = append([]string(nil), tail...)
			currentLen = tailLen
		}
		current = append(current, line)
		currentLen += len(line)
	}
	flush(len(lines) - 1)

	return chunks
}

// ChunkProps renders a chunk as EmbeddingChunk node properties.
func ChunkProps(parentUUID, parentLabel string, c Chunk) model.Props {
	props := model.Props{
		model.PropUUID:    model.ChunkUUID(parentUUID, c.Index),
		"parentUuid":      parentUUID,
		"parentLabel":     parentLabel,
		"chunkIndex":      c.Index,
		model.PropContent: c.Content,
		"startChar":       c.StartChar,
		"endChar":         c.EndChar,
		"startLine":       c.StartLine,
		"endLine":         c.EndLine,
	}
	if c.PageNum > 0 {
		props["pageNum"] = c.PageNum
	}
	return props
}

// splitKeepNewlines splits into lines that retain their trailing newline so
// char offsets stay exact.
func splitKeepNewlines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}

func join(lines []string) string {
	total := 0
	for _, l := range lines {
		total += len(l)
	}
	out := make([]byte, 0, total)
	for _, l := range lines {
		out = append(out, l...)
	}
	return string(out)
}
