package walk

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBinaryExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".ico", ".webp", ".pdf"}

// writeTree creates files (slash-separated relative paths) under root.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}
}

func relPaths(entries []FileEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.RelPath
	}

	return out
}

func newTestEnumerator(opts Options) *Enumerator {
	if opts.BinaryExtensions == nil {
		opts.BinaryExtensions = testBinaryExtensions
	}

	return NewEnumerator(opts, slog.Default())
}

func TestList_ExclusionScenario(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":         "hello",
		".hidden/x.txt": "secret",
		"image.png":     "\x89PNG",
		"package.json":  "{}",
	})

	entries, err := newTestEnumerator(Options{}).List(t.Context(), root)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.txt", "image.png"}, relPaths(entries))
	assert.False(t, entries[0].IsBinary)
	assert.True(t, entries[1].IsBinary)
	assert.Equal(t, int64(5), entries[0].Size)
	assert.Equal(t, filepath.Join(root, "a.txt"), entries[0].AbsPath)
}

func TestList_FullPolicy(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"README.md":                    "readme",
		"app/main.py":                  "print()",
		"app/main.pyc":                 "bytecode",
		"app/__pycache__/main.cpython": "bytecode",
		"app/.env":                     "KEY=1",
		".git/HEAD":                    "ref",
		"web/package-lock.json":        "{}",
		"web/index.js":                 "//",
		"upload-to-github.js":          "//",
		"docs/Guide.PDF":               "%PDF",
	})

	entries, err := newTestEnumerator(Options{}).List(t.Context(), root)
	require.NoError(t, err)

	// Depth-first with lexical order inside each directory.
	assert.Equal(t, []string{
		"README.md",
		"app/main.py",
		"docs/Guide.PDF",
		"web/index.js",
	}, relPaths(entries))

	assert.True(t, entries[2].IsBinary, "extension match is case-insensitive")
}

func TestList_SymlinksNotFollowed(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"real/file.txt": "x"})

	require.NoError(t, os.Symlink(filepath.Join(root, "real"), filepath.Join(root, "loop")))
	require.NoError(t, os.Symlink(filepath.Join(root, "real", "file.txt"), filepath.Join(root, "link.txt")))

	entries, err := newTestEnumerator(Options{}).List(t.Context(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"real/file.txt"}, relPaths(entries))
}

func TestList_ConfiguredFilters(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		".forgepushignore":      "generated/\n",
		"generated/out.txt":     "x",
		"node_modules/lib/a.js": "x",
		"keep.txt":              "x",
		"debug.log":             "x",
		"huge.bin":              "0123456789",
	})

	entries, err := newTestEnumerator(Options{
		SkipFiles:   []string{"*.log"},
		SkipDirs:    []string{"node_modules"},
		IgnoreFile:  ".forgepushignore",
		MaxFileSize: 5,
	}).List(t.Context(), root)
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.txt"}, relPaths(entries))
}

func TestList_RemotePathIsNFC(t *testing.T) {
	root := t.TempDir()
	decomposed := "cafe\u0301.txt"
	writeTree(t, root, map[string]string{"menu/" + decomposed: "x"})

	entries, err := newTestEnumerator(Options{}).List(t.Context(), root)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, "menu/"+decomposed, entries[0].RelPath)
	assert.Equal(t, "menu/caf\u00e9.txt", entries[0].RemotePath)
}

func TestList_EmptyRoot(t *testing.T) {
	entries, err := newTestEnumerator(Options{}).List(t.Context(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestList_RootErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")

	_, err := newTestEnumerator(Options{}).List(t.Context(), missing)
	require.ErrorIs(t, err, os.ErrNotExist)

	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err = newTestEnumerator(Options{}).List(t.Context(), file)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestList_Canceled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.txt": "x"})

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := newTestEnumerator(Options{}).List(ctx, root)
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsBinary(t *testing.T) {
	e := NewEnumerator(Options{BinaryExtensions: []string{"PNG", ".Pdf", " "}}, nil)

	assert.True(t, e.IsBinary("logo.png"))
	assert.True(t, e.IsBinary("LOGO.PNG"))
	assert.True(t, e.IsBinary("doc.pdf"))
	assert.False(t, e.IsBinary("notes.txt"))
	assert.False(t, e.IsBinary("png"))
}
