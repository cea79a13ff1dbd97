package resolve

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codegraphhq/codegraph/internal/graph"
	"github.com/codegraphhq/codegraph/internal/model"
	"github.com/codegraphhq/codegraph/internal/parser"
)

func TestResolveFile_WritesEdgesByKind(t *testing.T) {
	fake := graph.NewFake()
	r := New(fake)
	file := model.NewFile("proj", "src/app.ts", "")

	nm := NameMap{}
	nm.Add("Base", Candidate{UUID: "base-1", FileUUID: "f2", FilePath: "src/base.ts", Type: "class"})
	nm.Add("helper", Candidate{UUID: "helper-1", FileUUID: "f3", FilePath: "src/lib/helper.ts", Type: "function"})

	res, err := r.ResolveFile(context.Background(), "proj", file, []parser.Reference{
		{FromID: "scope-1", Symbol: "Base", Kind: parser.RefInherits},
		{FromID: "mod-1", Symbol: "helper", Module: "./lib/helper", Kind: parser.RefImports},
		{FromID: "mod-1", Symbol: "missing", Module: "pkg", Kind: parser.RefConsumes},
	}, nm)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Resolved)
	assert.Equal(t, 1, res.Pending)

	joined := strings.Join(fake.WrittenQueries(), "\n---\n")
	assert.Contains(t, joined, "MERGE (a)-[r:INHERITS_FROM]->(b)")
	assert.Contains(t, joined, "MERGE (a)-[r:IMPORTS]->(b)")
	assert.Contains(t, joined, "PENDING_IMPORT")
}

func TestPendingImportResolvesOnLaterSweep(t *testing.T) {
	fake := graph.NewFake()
	r := New(fake)
	file := model.NewFile("proj", "src/app.ts", "")

	_, err := r.ResolveFile(context.Background(), "proj", file, []parser.Reference{
		{FromID: "mod-1", Symbol: "Widget", Module: "./widget", Kind: parser.RefImports},
	}, NameMap{})
	require.NoError(t, err)

	var recorded map[string]any
	for _, stmt := range fake.Writes {
		if strings.Contains(stmt.Query, "PENDING_IMPORT") {
			rows := stmt.Params["rows"].([]map[string]any)
			require.Len(t, rows, 1)
			recorded = rows[0]
		}
	}
	require.NotNil(t, recorded, "unresolved import must be parked as PENDING_IMPORT")
	assert.Equal(t, "imports", recorded["kind"])

	// The target appears in a later ingest; the sweep finds the parked edge
	// and rewrites it to its concrete type in the same write.
	swept := graph.NewFake()
	swept.ReadsByMatch["r:PENDING_IMPORT]->(:Project"] = []graph.Record{{
		"from":     recorded["from"],
		"symbol":   recorded["symbol"],
		"module":   recorded["module"],
		"kind":     recorded["kind"],
		"fileUuid": file.UUID,
		"filePath": file.Path,
	}}

	nm := NameMap{}
	nm.Add("Widget", Candidate{UUID: "widget-1", FileUUID: "f2", FilePath: "src/widget.ts", Type: "class"})

	res, err := New(swept).Sweep(context.Background(), "proj", nm)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Resolved)
	assert.Equal(t, 0, res.Remaining)

	joined := strings.Join(swept.WrittenQueries(), "\n")
	assert.Contains(t, joined, "MERGE (a)-[r:IMPORTS]->(b)")
	assert.Contains(t, joined, "DELETE p")
}

func TestSweep_UnknownKindFallsBackToConsumes(t *testing.T) {
	fake := graph.NewFake()
	fake.ReadsByMatch["r:PENDING_IMPORT]->(:Project"] = []graph.Record{
		{"from": "mod-1", "symbol": "legacy", "module": "", "kind": "", "fileUuid": "f1", "filePath": "src/a.ts"},
		{"from": "mod-1", "symbol": "nowhere", "module": "", "kind": "imports", "fileUuid": "f1", "filePath": "src/a.ts"},
	}
	nm := NameMap{}
	nm.Add("legacy", Candidate{UUID: "legacy-1", FileUUID: "f2", FilePath: "src/legacy.ts", Type: "function"})

	res, err := New(fake).Sweep(context.Background(), "proj", nm)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Resolved)
	assert.Equal(t, 1, res.Remaining)
	assert.Contains(t, strings.Join(fake.WrittenQueries(), "\n"), "MERGE (a)-[r:CONSUMES]->(b)")
}

func TestCleanupFile_DropsAllReferenceEdgeTypes(t *testing.T) {
	fake := graph.NewFake()
	require.NoError(t, New(fake).CleanupFile(context.Background(), "file-1"))

	joined := strings.Join(fake.WrittenQueries(), "\n")
	assert.Contains(t, joined, "CONSUMES|IMPORTS|INHERITS_FROM|IMPLEMENTS|DECORATED_BY")
	assert.Contains(t, joined, "PENDING_IMPORT {fromFileUuid: $fileUuid}")
}

func TestNameMapLookup_TieBreaks(t *testing.T) {
	nm := NameMap{}
	nm.Add("render", Candidate{UUID: "a", FileUUID: "f1", FilePath: "src/a.ts", Type: "function"})
	nm.Add("render", Candidate{UUID: "b", FileUUID: "f2", FilePath: "src/b.ts", Type: "function"})
	nm.Add("Shape", Candidate{UUID: "iface", FileUUID: "f1", FilePath: "src/shape.ts", Type: "interface"})
	nm.Add("Shape", Candidate{UUID: "cls", FileUUID: "f2", FilePath: "src/impl.ts", Type: "class"})

	tests := []struct {
		name     string
		symbol   string
		module   string
		fromPath string
		fromFile string
		want     string
		found    bool
	}{
		{"module path wins", "render", "./b", "src/app.ts", "f9", "b", true},
		{"same file wins", "render", "", "src/a.ts", "f1", "a", true},
		{"value kind beats type-only", "Shape", "", "src/app.ts", "f9", "cls", true},
		{"ambiguous stays unresolved", "render", "", "src/app.ts", "f9", "", false},
		{"unknown name", "nope", "", "src/app.ts", "f9", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, ok := nm.Lookup(tt.symbol, tt.module, tt.fromPath, tt.fromFile)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, c.UUID)
			}
		})
	}
}
