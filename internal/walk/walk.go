// Package walk enumerates the files under an upload root, applying the
// built-in exclusion policy and any configured filters.
package walk

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Options configures an Enumerator. The zero value applies only the
// built-in exclusion policy and treats every file as text.
type Options struct {
	// SkipFiles and SkipDirs are glob patterns matched against base names.
	SkipFiles []string
	SkipDirs  []string

	// IgnoreFile is a gitignore-style file name looked up in the root.
	IgnoreFile string

	// MaxFileSize skips larger files. Zero means no limit.
	MaxFileSize int64

	// BinaryExtensions lists extensions (with leading dot, any case) whose
	// files are uploaded as raw bytes.
	BinaryExtensions []string

	// ToolNames are extra file names to exclude, such as the running
	// executable when it lives inside the root.
	ToolNames []string
}

// FileEntry is one file selected for upload.
type FileEntry struct {
	AbsPath    string // for reading
	RelPath    string // slash-separated, as on disk
	RemotePath string // RelPath in NFC, used for the API
	IsBinary   bool
	Size       int64
}

// Enumerator lists the uploadable files under a root.
type Enumerator struct {
	opts   Options
	binary map[string]bool
	logger *slog.Logger
}

// NewEnumerator creates an Enumerator. A nil logger discards output.
func NewEnumerator(opts Options, logger *slog.Logger) *Enumerator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	binary := make(map[string]bool, len(opts.BinaryExtensions))
	for _, ext := range opts.BinaryExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}

		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}

		binary[ext] = true
	}

	return &Enumerator{opts: opts, binary: binary, logger: logger}
}

// List walks root depth-first in lexical order and returns every included
// regular file. Symlinks and other non-regular entries are skipped. An
// unreadable directory aborts the walk.
func (e *Enumerator) List(ctx context.Context, root string) ([]FileEntry, error) {
	e.logger.Info("enumerating files", slog.String("root", root))

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("walk: %w", err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("walk: %s is not a directory", root)
	}

	w := &walker{
		enum:   e,
		root:   root,
		filter: NewFilter(root, e.opts, e.logger),
	}

	if err := w.walkDir(ctx, ""); err != nil {
		return nil, err
	}

	e.logger.Info("enumeration complete",
		slog.String("root", root),
		slog.Int("files", len(w.entries)),
		slog.Int("excluded", w.excluded),
	)

	return w.entries, nil
}

// IsBinary reports whether name has one of the configured binary extensions.
func (e *Enumerator) IsBinary(name string) bool {
	return e.binary[strings.ToLower(filepath.Ext(name))]
}

// walker carries the state of a single List call.
type walker struct {
	enum     *Enumerator
	root     string
	filter   *Filter
	entries  []FileEntry
	excluded int
}

// walkDir reads one directory (relative, slash-separated; "" is the root)
// and recurses into included subdirectories in place.
func (w *walker) walkDir(ctx context.Context, rel string) error {
	full := filepath.Join(w.root, filepath.FromSlash(rel))

	dirEntries, err := os.ReadDir(full)
	if err != nil {
		return fmt.Errorf("walk: reading directory %q: %w", full, err)
	}

	for _, de := range dirEntries {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := w.processEntry(ctx, rel, de); err != nil {
			return err
		}
	}

	return nil
}

func (w *walker) processEntry(ctx context.Context, parent string, de fs.DirEntry) error {
	rel := joinRelPath(parent, de.Name())
	logger := w.enum.logger

	switch mode := de.Type(); {
	case mode&fs.ModeSymlink != 0:
		logger.Debug("symlink skipped", slog.String("path", rel))
		w.excluded++

		return nil
	case de.IsDir():
		if result := w.filter.Check(rel, true, 0); !result.Included {
			w.excluded++
			return nil
		}

		return w.walkDir(ctx, rel)
	case !mode.IsRegular():
		logger.Debug("non-regular file skipped", slog.String("path", rel))
		w.excluded++

		return nil
	}

	info, err := de.Info()
	if err != nil {
		return fmt.Errorf("walk: stat %q: %w", rel, err)
	}

	if result := w.filter.Check(rel, false, info.Size()); !result.Included {
		w.excluded++
		return nil
	}

	w.entries = append(w.entries, FileEntry{
		AbsPath:    filepath.Join(w.root, filepath.FromSlash(rel)),
		RelPath:    rel,
		RemotePath: norm.NFC.String(rel),
		IsBinary:   w.enum.IsBinary(de.Name()),
		Size:       info.Size(),
	})

	return nil
}

func joinRelPath(parent, child string) string {
	if parent == "" {
		return child
	}

	return path.Join(parent, child)
}
