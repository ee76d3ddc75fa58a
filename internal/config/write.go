package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// configFilePermissions is the standard permission mode for config files.
// Owner read/write, group and others read-only.
const configFilePermissions = 0o644

// configDirPermissions is the standard permission mode for config directories.
const configDirPermissions = 0o755

// ErrConfigExists is returned by WriteTemplate when the target file already
// exists and overwrite was not requested.
var ErrConfigExists = errors.New("config: file already exists")

// configTemplate is the default config file content written by
// "config init". Every setting is present as a commented-out default so
// users can discover each option without reading docs.
const configTemplate = `# forgepush configuration
# Every key is optional. With no file at all, forgepush uploads the current
# directory to a repository named after it.

# ── Repository ──
# "name" (under the authenticated account) or "owner/name" (organization).
# repository = ""
# description = ""
# private = false
# Branch to commit to (default: the repository's default branch)
# branch = ""

# ── Files ──
# Directory to upload (default: current directory)
# root_dir = ""
# Extra file and directory name patterns to skip. Dotfiles, __pycache__,
# *.pyc, package.json and package-lock.json are always skipped.
# skip_files = []
# skip_dirs = []
# gitignore-style file in root_dir with more exclusions
# ignore_file = ".forgepushignore"
# Skip files larger than this (0 means no limit)
# max_file_size = "0"

# ── Upload ──
# Extensions sent as raw bytes; all other files are decoded as UTF-8 text
# binary_extensions = [".png", ".jpg", ".jpeg", ".gif", ".bmp", ".ico", ".webp", ".pdf"]
# How to treat text files that are not valid UTF-8: replace (substitute
# U+FFFD and warn), strict (fail the file), raw (upload bytes unchanged)
# text_decoding = "replace"
# Compare the stored blob ID with the local one after each upload
# verify_uploads = true
# Write a JSON summary of each run here
# report_file = ""

# ── Network ──
# api_url = "https://api.github.com/"
# http_timeout = "60s"
# user_agent = ""

# ── Logging ──
# log_level = "info"
# log_format = "auto"
# log_file = ""
# log_retention_days = 30
`

// WriteTemplate writes the commented default config to path. An existing
// file is only replaced when overwrite is true. The write is atomic (temp
// file + rename) and parent directories are created as needed.
func WriteTemplate(path string, overwrite bool, logger *slog.Logger) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrConfigExists, path)
		}
	}

	logger.Info("writing config template", slog.String("path", path))

	return atomicWriteFile(path, []byte(configTemplate))
}

// atomicWriteFile writes data to a temporary file in the same directory as
// path, then renames it into place, so readers never observe a partially
// written config.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tempPath := f.Name()

	// Clean up the temp file on any error path.
	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("writing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
