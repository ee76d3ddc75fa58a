package walk

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// pycacheDir is the Python bytecode cache directory, never uploaded.
const pycacheDir = "__pycache__"

// pycExt is the compiled Python file extension, never uploaded.
const pycExt = ".pyc"

// builtinDenylist names files that are never uploaded regardless of
// configuration: the historical uploader script and npm manifests.
var builtinDenylist = []string{
	"upload-to-github.js",
	"package.json",
	"package-lock.json",
}

// Result is the outcome of a filter check.
type Result struct {
	Included bool
	Reason   string
}

// Filter decides which entries under a root are uploaded. It applies a
// three-layer cascade: the built-in exclusion policy, configured patterns
// and size limit, then the root ignore file.
type Filter struct {
	opts      Options
	denylist  map[string]bool
	ignore    *ignore.GitIgnore
	ignoreRel string
	logger    *slog.Logger
}

// NewFilter builds a filter for root. A missing ignore file is not an error.
func NewFilter(root string, opts Options, logger *slog.Logger) *Filter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	f := &Filter{
		opts:     opts,
		denylist: make(map[string]bool, len(builtinDenylist)+len(opts.ToolNames)),
		logger:   logger,
	}

	for _, name := range builtinDenylist {
		f.denylist[name] = true
	}

	for _, name := range opts.ToolNames {
		if name != "" {
			f.denylist[name] = true
		}
	}

	if opts.IgnoreFile != "" {
		f.ignoreRel = opts.IgnoreFile
		f.ignore = loadIgnoreFile(filepath.Join(root, opts.IgnoreFile), logger)
	}

	return f
}

func loadIgnoreFile(p string, logger *slog.Logger) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("no ignore file", slog.String("path", p))
		} else {
			logger.Warn("ignore file unreadable, ignoring it",
				slog.String("path", p),
				slog.String("error", err.Error()),
			)
		}

		return nil
	}

	logger.Debug("loaded ignore file", slog.String("path", p))

	return gi
}

// Check evaluates a slash-separated path relative to the root.
func (f *Filter) Check(relPath string, isDir bool, size int64) Result {
	name := path.Base(relPath)

	if result := f.checkBuiltin(relPath, name, isDir); !result.Included {
		return result
	}

	if result := f.checkConfigPatterns(relPath, name, isDir, size); !result.Included {
		return result
	}

	return f.checkIgnoreFile(relPath, isDir)
}

// checkBuiltin applies the fixed exclusion policy.
func (f *Filter) checkBuiltin(relPath, name string, isDir bool) Result {
	if strings.HasPrefix(name, ".") {
		f.logger.Debug("path excluded as dotfile", slog.String("path", relPath))
		return Result{Reason: "dotfile"}
	}

	if isDir {
		if name == pycacheDir {
			f.logger.Debug("path excluded as bytecode cache", slog.String("path", relPath))
			return Result{Reason: "python bytecode cache"}
		}

		return Result{Included: true}
	}

	if strings.HasSuffix(name, pycExt) {
		f.logger.Debug("path excluded as compiled python", slog.String("path", relPath))
		return Result{Reason: "compiled python file"}
	}

	if f.denylist[name] {
		f.logger.Debug("path excluded by denylist", slog.String("path", relPath))
		return Result{Reason: "denylisted file name"}
	}

	if relPath == f.ignoreRel {
		return Result{Reason: "ignore file"}
	}

	return Result{Included: true}
}

// checkConfigPatterns applies skip_dirs, skip_files and max_file_size.
func (f *Filter) checkConfigPatterns(relPath, name string, isDir bool, size int64) Result {
	if isDir {
		if matchesSkipPattern(name, f.opts.SkipDirs, f.logger) {
			f.logger.Debug("path excluded by skip_dirs", slog.String("path", relPath))
			return Result{Reason: "matches skip_dirs pattern"}
		}

		return Result{Included: true}
	}

	if matchesSkipPattern(name, f.opts.SkipFiles, f.logger) {
		f.logger.Debug("path excluded by skip_files", slog.String("path", relPath))
		return Result{Reason: "matches skip_files pattern"}
	}

	if f.opts.MaxFileSize > 0 && size > f.opts.MaxFileSize {
		f.logger.Debug("path excluded by max_file_size",
			slog.String("path", relPath),
			slog.Int64("size", size),
			slog.Int64("max", f.opts.MaxFileSize),
		)

		return Result{Reason: "exceeds max_file_size"}
	}

	return Result{Included: true}
}

func (f *Filter) checkIgnoreFile(relPath string, isDir bool) Result {
	if f.ignore == nil {
		return Result{Included: true}
	}

	// go-gitignore uses a trailing slash to mark directories.
	matchPath := relPath
	if isDir {
		matchPath += "/"
	}

	if f.ignore.MatchesPath(matchPath) {
		f.logger.Debug("path excluded by ignore file",
			slog.String("path", relPath),
			slog.String("ignore_file", f.ignoreRel),
		)

		return Result{Reason: "excluded by " + f.ignoreRel}
	}

	return Result{Included: true}
}

// matchesSkipPattern reports whether name matches any glob pattern.
// Comparison is case-insensitive. Malformed patterns are logged and skipped.
func matchesSkipPattern(name string, patterns []string, logger *slog.Logger) bool {
	lowerName := strings.ToLower(name)

	for _, pattern := range patterns {
		matched, err := filepath.Match(strings.ToLower(pattern), lowerName)
		if err != nil {
			logger.Warn("malformed skip pattern",
				slog.String("pattern", pattern),
				slog.String("error", err.Error()),
			)

			continue
		}

		if matched {
			return true
		}
	}

	return false
}
