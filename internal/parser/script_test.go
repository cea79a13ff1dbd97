package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/model"
)

func TestScriptParser_ImportsBecomeImportReferences(t *testing.T) {
	src := "import { helper } from './lib/helper'\n" +
		"import fs from 'fs'\n" +
		"\n" +
		"export class App extends Base {\n" +
		"  run() {\n" +
		"    helper()\n" +
		"  }\n" +
		"}\n"

	file := model.NewFile("proj", "src/app.ts", "")
	g, err := NewScriptParser().Parse(context.Background(), "src/app.ts", []byte(src),
		Options{ProjectID: "proj", File: file})
	require.NoError(t, err)

	kinds := map[string][]ReferenceKind{}
	modules := map[string]string{}
	for _, ref := range g.References {
		kinds[ref.Symbol] = append(kinds[ref.Symbol], ref.Kind)
		if ref.Module != "" {
			modules[ref.Symbol] = ref.Module
		}
	}

	assert.Contains(t, kinds["helper"], RefImports, "module-level imports carry the import kind")
	assert.Contains(t, kinds["fs"], RefImports)
	assert.Contains(t, kinds["Base"], RefInherits)
	assert.Contains(t, kinds["helper"], RefConsumes, "the call inside run() is a consume")
	assert.Equal(t, "./lib/helper", modules["helper"])
}

func TestScriptParser_PythonScopes(t *testing.T) {
	src := "from lib.shapes import Shape\n" +
		"\n" +
		"class Circle(Shape):\n" +
		"    def area(self):\n" +
		"        return 1\n"

	file := model.NewFile("proj", "geo.py", "")
	g, err := NewScriptParser().Parse(context.Background(), "geo.py", []byte(src),
		Options{ProjectID: "proj", File: file})
	require.NoError(t, err)

	types := map[string]string{}
	for _, n := range g.Nodes {
		types[model.Str(n.Properties[model.PropName])] = model.Str(n.Properties["type"])
	}
	assert.Equal(t, "class", types["Circle"])
	assert.Equal(t, "method", types["area"])

	var inherits, imports bool
	for _, ref := range g.References {
		if ref.Symbol == "Shape" && ref.Kind == RefInherits {
			inherits = true
		}
		if ref.Symbol == "Shape" && ref.Kind == RefImports {
			imports = true
		}
	}
	assert.True(t, inherits)
	assert.True(t, imports)
}
