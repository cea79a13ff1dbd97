package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/model"
)

func TestMarkdownParser_SectionsCodeBlocksAndLinks(t *testing.T) {
	text := "# Title\n\n" +
		"intro with [a link](https://example.com)\n\n" +
		"## Setup\n\n" +
		"```bash\necho hi\n```\n\n" +
		"## Usage\n\nplain text\n"

	file := model.NewFile("proj", "readme.md", "")
	g, err := NewMarkdownParser().Parse(context.Background(), "readme.md", []byte(text),
		Options{ProjectID: "proj", File: file})
	require.NoError(t, err)

	var docs, sections, blocks int
	for _, n := range g.Nodes {
		switch n.Labels[0] {
		case model.LabelMarkdownDocument:
			docs++
		case model.LabelMarkdownSection:
			sections++
		case model.LabelCodeBlock:
			blocks++
		}
	}
	assert.Equal(t, 1, docs)
	assert.Equal(t, 3, sections)
	assert.Equal(t, 1, blocks)
	assert.Equal(t, "Title", g.Metadata["title"])

	var hasLink, containsCode, hasSection bool
	for _, r := range g.Relationships {
		switch r.Type {
		case model.EdgeLinksTo:
			hasLink = true
		case model.EdgeContainsCode:
			containsCode = true
		case model.EdgeHasSection:
			hasSection = true
		}
	}
	assert.True(t, hasLink)
	assert.True(t, containsCode)
	assert.True(t, hasSection)
}

func TestMarkdownParser_DuplicateHeadingsKeepDistinctIdentity(t *testing.T) {
	text := "# A\n\n## Notes\n\none\n\n# B\n\n## Notes\n\ntwo\n"

	file := model.NewFile("proj", "doc.md", "")
	g, err := NewMarkdownParser().Parse(context.Background(), "doc.md", []byte(text),
		Options{ProjectID: "proj", File: file})
	require.NoError(t, err)

	ids := map[string]bool{}
	for _, n := range g.Nodes {
		assert.False(t, ids[n.ID], "section uuids must be unique")
		ids[n.ID] = true
	}
}
