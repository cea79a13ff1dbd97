package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/model"
)

func TestDispatcher_RoutesByTypeAndNormalizes(t *testing.T) {
	d := NewDispatcher()
	projectID := "proj"

	tests := []struct {
		path  string
		data  string
		label string
	}{
		{"readme.md", "# Hi\n", model.LabelMarkdownDocument},
		{"config.yaml", "port: 8080\nname: svc\n", model.LabelDataFile},
		{"notes.txt", "plain text\n", model.LabelDocumentFile},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			file := model.NewFile(projectID, tt.path, "")
			g, err := d.Parse(context.Background(), projectID, file, []byte(tt.data))
			require.NoError(t, err)
			require.NotEmpty(t, g.Nodes)
			assert.Equal(t, tt.label, g.Nodes[0].Labels[0])

			for _, n := range g.Nodes {
				assert.Equal(t, projectID, n.Properties[model.PropProjectID])
				assert.Equal(t, file.UUID, n.Properties[PropFileUUID])
			}
			var definedIn int
			for _, r := range g.Relationships {
				if r.Type == model.EdgeDefinedIn && r.To == file.UUID {
					definedIn++
				}
			}
			assert.Equal(t, len(g.Nodes), definedIn, "every node must be wired to its file")
		})
	}
}

func TestDispatcher_StampsContentHash(t *testing.T) {
	d := NewDispatcher()
	file := model.NewFile("proj", "readme.md", "")

	g, err := d.Parse(context.Background(), "proj", file, []byte("# Hi\n\nbody\n"))
	require.NoError(t, err)

	for _, n := range g.Nodes {
		content := model.Str(n.Properties[model.PropContent])
		if content == "" {
			continue
		}
		assert.Equal(t, model.Hash16String(content), n.Properties[model.PropContentHash])
	}
}
