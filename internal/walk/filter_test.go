package walk

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFilter(t *testing.T, opts Options) *Filter {
	t.Helper()

	return NewFilter(t.TempDir(), opts, slog.Default())
}

func TestFilter_BuiltinPolicy(t *testing.T) {
	t.Parallel()

	f := newTestFilter(t, Options{ToolNames: []string{"forgepush"}})

	tests := []struct {
		name     string
		path     string
		isDir    bool
		included bool
	}{
		{"plain file", "a.txt", false, true},
		{"nested file", "src/main.go", false, true},
		{"dotfile", ".env", false, false},
		{"nested dotfile", "src/.DS_Store", false, false},
		{"dot directory", ".git", true, false},
		{"pycache directory", "pkg/__pycache__", true, false},
		{"pycache-like file", "__pycache__", false, true},
		{"pyc file", "mod.pyc", false, false},
		{"pyc uppercase is kept", "mod.PYC", false, true},
		{"py file", "mod.py", false, true},
		{"uploader script", "upload-to-github.js", false, false},
		{"package manifest", "package.json", false, false},
		{"package lock", "sub/package-lock.json", false, false},
		{"manifest-named directory", "package.json", true, true},
		{"running executable", "forgepush", false, false},
		{"other js", "index.js", false, true},
		{"plain directory", "src", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := f.Check(tt.path, tt.isDir, 10)
			assert.Equal(t, tt.included, result.Included, "reason: %s", result.Reason)

			if !tt.included {
				assert.NotEmpty(t, result.Reason)
			}
		})
	}
}

func TestFilter_ConfigPatterns(t *testing.T) {
	t.Parallel()

	f := newTestFilter(t, Options{
		SkipFiles:   []string{"*.log", "Secrets.*"},
		SkipDirs:    []string{"node_modules", "build*"},
		MaxFileSize: 100,
	})

	tests := []struct {
		name     string
		path     string
		isDir    bool
		size     int64
		included bool
	}{
		{"log file", "logs/app.log", false, 1, false},
		{"case-insensitive", "SECRETS.txt", false, 1, false},
		{"node_modules", "web/node_modules", true, 0, false},
		{"build glob", "build-output", true, 0, false},
		{"dir pattern does not hit files", "node_modules", false, 1, true},
		{"file pattern does not hit dirs", "debug.log", true, 0, true},
		{"at size limit", "big.bin", false, 100, true},
		{"over size limit", "big.bin", false, 101, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := f.Check(tt.path, tt.isDir, tt.size)
			assert.Equal(t, tt.included, result.Included, "reason: %s", result.Reason)
		})
	}
}

func TestFilter_MalformedPatternSkipped(t *testing.T) {
	f := newTestFilter(t, Options{SkipFiles: []string{"[", "*.tmp"}})

	assert.False(t, f.Check("x.tmp", false, 1).Included)
	assert.True(t, f.Check("x.txt", false, 1).Included)
}

func TestFilter_IgnoreFile(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "pushignore"), []byte("dist/\n*.bak\n!keep.bak\n"), 0o600))

	f := NewFilter(root, Options{IgnoreFile: "pushignore"}, nil)

	assert.False(t, f.Check("dist", true, 0).Included)
	assert.False(t, f.Check("notes.bak", false, 1).Included)
	assert.True(t, f.Check("keep.bak", false, 1).Included)
	assert.True(t, f.Check("src", true, 0).Included)

	result := f.Check("pushignore", false, 1)
	assert.False(t, result.Included, "the ignore file itself is never uploaded")
}

func TestFilter_MissingIgnoreFile(t *testing.T) {
	f := newTestFilter(t, Options{IgnoreFile: ".forgepushignore"})

	assert.True(t, f.Check("anything.bak", false, 1).Included)
}
