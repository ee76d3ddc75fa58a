package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tonimelisma/forgepush/internal/repoid"
)

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are treated as fatal errors with "did you
// mean?" suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
// It returns a fully parsed and validated Resolved ready for use.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	// 1. Resolve config path: CLI > env > default
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfgPath = expandTilde(cfgPath)

	// 2. Load config file (returns defaults if no file exists)
	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	// 3. Apply env overrides
	if env.RootDir != "" {
		cfg.RootDir = env.RootDir
	}

	if env.Repository != "" {
		cfg.Repository = env.Repository
	}

	// 4. Apply CLI overrides (pointer fields: nil = not specified)
	applyCLIOverrides(cfg, &cli)

	// 5. Parse into the resolved form
	resolved, err := resolveValues(cfg)
	if err != nil {
		return nil, err
	}

	resolved.ConfigPath = cfgPath

	if cli.DryRun != nil {
		resolved.DryRun = *cli.DryRun
	}

	// 6. Validate the final resolved values
	if err := ValidateResolved(resolved); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return resolved, nil
}

func applyCLIOverrides(cfg *Config, cli *CLIOverrides) {
	if cli.RootDir != nil {
		cfg.RootDir = *cli.RootDir
	}

	if cli.Repository != nil {
		cfg.Repository = *cli.Repository
	}

	if cli.Description != nil {
		cfg.Description = *cli.Description
	}

	if cli.Private != nil {
		cfg.Private = *cli.Private
	}

	if cli.ReportFile != nil {
		cfg.ReportFile = *cli.ReportFile
	}
}

// resolveValues parses every string-typed setting. Values coming from a
// config file were already validated by Load, but env and CLI values were
// not, so parse errors are still possible here.
func resolveValues(cfg *Config) (*Resolved, error) {
	root, err := resolveRootDir(cfg.RootDir)
	if err != nil {
		return nil, err
	}

	ref, err := resolveRepository(cfg.Repository, root)
	if err != nil {
		return nil, err
	}

	maxSize, err := ParseSize(cfg.MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("max_file_size: %w", err)
	}

	timeout, err := time.ParseDuration(cfg.HTTPTimeout)
	if err != nil {
		return nil, fmt.Errorf("http_timeout: invalid duration %q: %w", cfg.HTTPTimeout, err)
	}

	reportFile := cfg.ReportFile
	if reportFile != "" {
		reportFile = expandTilde(reportFile)
	}

	return &Resolved{
		Repository:       ref,
		Description:      cfg.Description,
		Private:          cfg.Private,
		Branch:           cfg.Branch,
		RootDir:          root,
		SkipFiles:        cfg.SkipFiles,
		SkipDirs:         cfg.SkipDirs,
		IgnoreFile:       cfg.IgnoreFile,
		MaxFileSize:      maxSize,
		BinaryExtensions: normalizeExtensions(cfg.BinaryExtensions),
		TextDecoding:     cfg.TextDecoding,
		VerifyUploads:    cfg.VerifyUploads,
		ReportFile:       reportFile,
		APIURL:           ensureTrailingSlash(cfg.APIURL),
		HTTPTimeout:      timeout,
		UserAgent:        cfg.UserAgent,
		LogLevel:         cfg.LogLevel,
		LogFile:          expandTilde(cfg.LogFile),
		LogFormat:        cfg.LogFormat,
		LogRetentionDays: cfg.LogRetentionDays,
	}, nil
}

// resolveRootDir returns the absolute upload root. Empty means the current
// working directory.
func resolveRootDir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("determining working directory: %w", err)
		}

		return wd, nil
	}

	abs, err := filepath.Abs(expandTilde(dir))
	if err != nil {
		return "", fmt.Errorf("root_dir: %w", err)
	}

	return abs, nil
}

// resolveRepository parses an explicit selector, or derives the name from
// the root directory when none was given.
func resolveRepository(raw, root string) (repoid.Ref, error) {
	if raw != "" {
		ref, err := repoid.New(raw)
		if err != nil {
			return repoid.Ref{}, fmt.Errorf("repository: %w", err)
		}

		return ref, nil
	}

	ref := repoid.FromDirName(filepath.Base(root))
	if ref.IsZero() {
		return repoid.Ref{}, fmt.Errorf(
			"repository: cannot derive a repository name from %q; set repository or --repo", root)
	}

	return ref, nil
}

// normalizeExtensions lowercases extensions and ensures a leading dot, so
// "PNG" and ".png" both match "photo.Png".
func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))

	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}

		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}

		out = append(out, e)
	}

	return out
}

func ensureTrailingSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}

	return u + "/"
}
