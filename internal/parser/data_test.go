package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/model"
)

func TestDataParser_TopLevelKeysBecomeSections(t *testing.T) {
	data := []byte(`{"server": {"port": 8080}, "debug": true}`)
	file := model.NewFile("proj", "cfg.json", "")

	g, err := NewDataParser().Parse(context.Background(), "cfg.json", data,
		Options{ProjectID: "proj", File: file})
	require.NoError(t, err)

	var sections []string
	for _, n := range g.Nodes {
		if n.Labels[0] == model.LabelDataSection {
			sections = append(sections, model.Str(n.Properties[model.PropName]))
		}
	}
	assert.Equal(t, []string{"debug", "server"}, sections, "sections come out key-sorted")
	assert.Equal(t, "json", g.Metadata["format"])
}

func TestDataParser_NonMapTopLevelFallsBackToFileNode(t *testing.T) {
	file := model.NewFile("proj", "list.yaml", "")

	g, err := NewDataParser().Parse(context.Background(), "list.yaml", []byte("- a\n- b\n"),
		Options{ProjectID: "proj", File: file})
	require.NoError(t, err)

	require.Len(t, g.Nodes, 1)
	assert.Equal(t, model.LabelDataFile, g.Nodes[0].Labels[0])
}
