package corpus_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensor/forensor/internal/adapters/outbound/corpus"
	"github.com/forensor/forensor/internal/domain"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func TestCollect_SortedAndTyped(t *testing.T) {
	root := writeTree(t, map[string]string{
		"b.py":      "x = 1\n",
		"a.go":      "package main\n",
		"sub/c.js":  "const x = 1;\n",
		"README.md": "# readme\n",
	})

	c, err := corpus.New().Collect(root, domain.DefaultConfig(), 1.0)

	require.NoError(t, err)
	require.Len(t, c.Files, 3)
	assert.Equal(t, "a.go", c.Files[0].Path)
	assert.Equal(t, "go", c.Files[0].Language)
	assert.Equal(t, "b.py", c.Files[1].Path)
	assert.Equal(t, "python", c.Files[1].Language)
	assert.Equal(t, "sub/c.js", c.Files[2].Path)
	assert.Equal(t, "javascript", c.Files[2].Language)
}

func TestCollect_SkipsToolDirectories(t *testing.T) {
	root := writeTree(t, map[string]string{
		"app.py":              "x = 1\n",
		"vendor/lib.py":       "x = 1\n",
		".git/hook.py":        "x = 1\n",
		"node_modules/x.js":   "x = 1\n",
		"__pycache__/a.py":    "x = 1\n",
		"sub/.venv/pkg/b.py":  "x = 1\n",
		"sub/build/gen.py":    "x = 1\n",
		"sub/target/out.java": "x = 1\n",
	})

	c, err := corpus.New().Collect(root, domain.DefaultConfig(), 1.0)

	require.NoError(t, err)
	require.Len(t, c.Files, 1)
	assert.Equal(t, "app.py", c.Files[0].Path)
}

func TestCollect_IgnoreGlobsMatchPathAndBasename(t *testing.T) {
	root := writeTree(t, map[string]string{
		"app.py":           "x = 1\n",
		"app_test.py":      "x = 1\n",
		"deep/old_test.py": "x = 1\n",
		"gen/schema.py":    "x = 1\n",
	})
	cfg := domain.DefaultConfig()
	cfg.Ignore = []string{"*_test.py", "gen/**"}

	c, err := corpus.New().Collect(root, cfg, 1.0)

	require.NoError(t, err)
	require.Len(t, c.Files, 1)
	assert.Equal(t, "app.py", c.Files[0].Path)
}

func TestCollect_BinarySkippedWithNote(t *testing.T) {
	root := writeTree(t, map[string]string{
		"blob.py": "payload\x00binary\n",
		"ok.py":   "x = 1\n",
	})

	c, err := corpus.New().Collect(root, domain.DefaultConfig(), 1.0)

	require.NoError(t, err)
	require.Len(t, c.Files, 1)
	assert.Equal(t, "ok.py", c.Files[0].Path)
	assert.Equal(t, 1, c.Skipped)
	require.Len(t, c.Notes, 1)
	assert.Contains(t, c.Notes[0], "binary")
}

func TestCollect_MinifiedSkippedWithNote(t *testing.T) {
	root := writeTree(t, map[string]string{
		"bundle.min.js": strings.Repeat("a", 5000),
	})

	c, err := corpus.New().Collect(root, domain.DefaultConfig(), 1.0)

	require.NoError(t, err)
	assert.Empty(t, c.Files)
	require.Len(t, c.Notes, 1)
	assert.Contains(t, c.Notes[0], "minified")
}

func TestCollect_OversizedSkippedWithNote(t *testing.T) {
	root := writeTree(t, map[string]string{
		"big.py": strings.Repeat("x = 1\n", 10),
	})
	cfg := domain.DefaultConfig()
	cfg.MaxFileBytes = 8

	c, err := corpus.New().Collect(root, cfg, 1.0)

	require.NoError(t, err)
	assert.Empty(t, c.Files)
	assert.Equal(t, 1, c.Skipped)
	require.Len(t, c.Notes, 1)
	assert.Contains(t, c.Notes[0], "cap")
}

func TestCollect_SamplingIsDeterministic(t *testing.T) {
	files := make(map[string]string, 10)
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
		files[name+".py"] = "x = 1\n"
	}
	root := writeTree(t, files)

	first, err := corpus.New().Collect(root, domain.DefaultConfig(), 0.5)
	require.NoError(t, err)
	second, err := corpus.New().Collect(root, domain.DefaultConfig(), 0.5)
	require.NoError(t, err)

	require.Len(t, first.Files, 5)
	assert.Equal(t, "a.py", first.Files[0].Path)
	assert.Equal(t, "c.py", first.Files[1].Path)
	assert.Equal(t, 5, first.Skipped)

	var firstPaths, secondPaths []string
	for _, f := range first.Files {
		firstPaths = append(firstPaths, f.Path)
	}
	for _, f := range second.Files {
		secondPaths = append(secondPaths, f.Path)
	}
	assert.Equal(t, firstPaths, secondPaths)
}

func TestCollect_LineCountIncludesTrailingPartial(t *testing.T) {
	root := writeTree(t, map[string]string{
		"three.py": "a = 1\nb = 2\nc = 3",
	})

	c, err := corpus.New().Collect(root, domain.DefaultConfig(), 1.0)

	require.NoError(t, err)
	require.Len(t, c.Files, 1)
	assert.Equal(t, 3, c.Files[0].Lines)
}

func TestCollect_MissingRootFails(t *testing.T) {
	_, err := corpus.New().Collect(filepath.Join(t.TempDir(), "nope"), domain.DefaultConfig(), 1.0)

	assert.Error(t, err)
}

func TestCount_AppliesCollectionRules(t *testing.T) {
	root := writeTree(t, map[string]string{
		"a.py":             "x = 1\n",
		"b.js":             "const x = 1;\n",
		"skip_test.py":     "x = 1\n",
		"vendor/lib.py":    "x = 1\n",
		"docs/README.md":   "# readme\n",
		"deep/nested/c.go": "package deep\n",
	})
	cfg := domain.DefaultConfig()
	cfg.Ignore = []string{"*_test.py"}

	n, err := corpus.New().Count(root, cfg)

	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestCount_MissingRootFails(t *testing.T) {
	_, err := corpus.New().Count(filepath.Join(t.TempDir(), "nope"), domain.DefaultConfig())

	assert.Error(t, err)
}
