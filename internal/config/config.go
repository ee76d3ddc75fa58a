// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for forgepush. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
// A missing config file is not an error: the tool runs with no flags and no
// file, uploading the current directory.
package config

import (
	"time"

	"github.com/tonimelisma/forgepush/internal/repoid"
)

// Config is the top-level configuration structure parsed from a TOML file.
// All keys are flat top-level keys; the embedded sections only group them
// in Go.
type Config struct {
	RepositoryConfig
	FilterConfig
	UploadConfig
	NetworkConfig
	LoggingConfig
}

// RepositoryConfig selects and describes the remote repository.
// Repository is "name" or "owner/name"; empty means "derive from the root
// directory name, under the authenticated account".
type RepositoryConfig struct {
	Repository  string `toml:"repository"`
	Description string `toml:"description"`
	Private     bool   `toml:"private"`
	Branch      string `toml:"branch"`
}

// FilterConfig extends the built-in exclusion policy. The built-in rules
// (dotfiles, __pycache__, *.pyc, the tool itself, package manifests) always
// apply; these patterns only add to them.
type FilterConfig struct {
	RootDir     string   `toml:"root_dir"`
	SkipFiles   []string `toml:"skip_files"`
	SkipDirs    []string `toml:"skip_dirs"`
	IgnoreFile  string   `toml:"ignore_file"`
	MaxFileSize string   `toml:"max_file_size"`
}

// UploadConfig controls payload encoding and post-upload checks.
type UploadConfig struct {
	BinaryExtensions []string `toml:"binary_extensions"`
	TextDecoding     string   `toml:"text_decoding"`
	VerifyUploads    bool     `toml:"verify_uploads"`
	ReportFile       string   `toml:"report_file"`
}

// NetworkConfig controls the forge API endpoint and HTTP client behavior.
type NetworkConfig struct {
	APIURL      string `toml:"api_url"`
	HTTPTimeout string `toml:"http_timeout"`
	UserAgent   string `toml:"user_agent"`
}

// LoggingConfig controls log output behavior: level, format, and rotation.
type LoggingConfig struct {
	LogLevel         string `toml:"log_level"`
	LogFile          string `toml:"log_file"`
	LogFormat        string `toml:"log_format"`
	LogRetentionDays int    `toml:"log_retention_days"`
}

// Text decoding modes for non-binary files.
const (
	TextDecodingStrict  = "strict"
	TextDecodingReplace = "replace"
	TextDecodingRaw     = "raw"
)

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to zero value".
type CLIOverrides struct {
	ConfigPath  string  // --config flag (empty = use default)
	Repository  *string // --repo flag
	Description *string // --description flag
	Private     *bool   // --private flag
	RootDir     *string // --dir flag
	ReportFile  *string // --report flag
	DryRun      *bool   // --dry-run flag
}

// Resolved is the effective configuration after the override chain has
// been applied and every string value parsed. It is what the rest of the
// program consumes.
type Resolved struct {
	ConfigPath string

	Repository  repoid.Ref // never zero after Resolve
	Description string
	Private     bool
	Branch      string

	RootDir     string // absolute
	SkipFiles   []string
	SkipDirs    []string
	IgnoreFile  string
	MaxFileSize int64 // 0 = unlimited

	BinaryExtensions []string // lowercase, leading dot
	TextDecoding     string
	VerifyUploads    bool
	ReportFile       string
	DryRun           bool

	APIURL      string
	HTTPTimeout time.Duration // 0 = no client timeout
	UserAgent   string

	LogLevel         string
	LogFile          string
	LogFormat        string
	LogRetentionDays int
}
