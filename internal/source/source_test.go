package source

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		exclude []string
		path    string
		want    bool
	}{
		{"no patterns admits all", nil, nil, "src/app.ts", true},
		{"default exclude node_modules", nil, nil, "node_modules/lodash/index.js", false},
		{"default exclude minified", nil, nil, "assets/app.min.js", false},
		{"include narrows scope", []string{"src/**"}, nil, "docs/readme.md", false},
		{"include match", []string{"src/**"}, nil, "src/deep/app.ts", true},
		{"explicit exclude wins over include", []string{"**"}, []string{"**/*.test.ts"}, "src/app.test.ts", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(tt.include, tt.exclude)
			assert.Equal(t, tt.want, m.Match(tt.path))
		})
	}
}

func TestMatchDir_PrunesDependencyTrees(t *testing.T) {
	m := NewMatcher(nil, nil)
	assert.False(t, m.MatchDir("node_modules"))
	assert.False(t, m.MatchDir("web/.git"))
	assert.True(t, m.MatchDir("src"))
}

func TestDiskSource_Scan(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "x"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "app.ts"), []byte("export {}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.md"), []byte("# hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "x", "i.js"), []byte("x"), 0o644))

	entries, err := (&DiskSource{Root: root}).Scan(context.Background())
	require.NoError(t, err)

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
		assert.NotEmpty(t, e.RawContentHash)
		assert.NotEmpty(t, e.AbsolutePath)
	}
	assert.ElementsMatch(t, []string{"src/app.ts", "readme.md"}, paths)
}

func zipBuffer(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestExtractZip_StripsArchiveRoot(t *testing.T) {
	data := zipBuffer(t, map[string]string{
		"repo-main/src/app.ts":          "export {}",
		"repo-main/readme.md":           "# readme",
		"repo-main/node_modules/x/i.js": "noise",
		"repo-main/dist/bundle.min.js":  "noise",
	})

	entries, err := ExtractZip(data, nil, nil)
	require.NoError(t, err)

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
		assert.Equal(t, "archive", e.Metadata["source"])
	}
	assert.ElementsMatch(t, []string{"src/app.ts", "readme.md"}, paths)
}

func TestExtractZip_NoCommonRootKeepsPaths(t *testing.T) {
	data := zipBuffer(t, map[string]string{
		"a/x.md": "x",
		"b/y.md": "y",
	})

	entries, err := ExtractZip(data, nil, nil)
	require.NoError(t, err)

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.Path
	}
	assert.ElementsMatch(t, []string{"a/x.md", "b/y.md"}, paths)
}
