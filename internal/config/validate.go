package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/tonimelisma/forgepush/internal/repoid"
)

// Validation range constants.
const (
	minLogRetention = 1
	maxHTTPTimeout  = 30 * time.Minute
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateRepository(&cfg.RepositoryConfig)...)
	errs = append(errs, validateFilter(&cfg.FilterConfig)...)
	errs = append(errs, validateUpload(&cfg.UploadConfig)...)
	errs = append(errs, validateNetwork(&cfg.NetworkConfig)...)
	errs = append(errs, validateLogging(&cfg.LoggingConfig)...)

	return errors.Join(errs...)
}

// ValidateResolved checks constraints on the final merged result, after env
// and CLI overrides that Validate never saw.
func ValidateResolved(r *Resolved) error {
	var errs []error

	if !filepath.IsAbs(r.RootDir) {
		errs = append(errs, fmt.Errorf("root_dir: must be absolute after expansion, got %q", r.RootDir))
	}

	if r.Repository.IsZero() {
		errs = append(errs, errors.New("repository: must not be empty"))
	}

	errs = append(errs, validateTextDecoding(r.TextDecoding)...)

	if r.HTTPTimeout < 0 || r.HTTPTimeout > maxHTTPTimeout {
		errs = append(errs, fmt.Errorf("http_timeout: must be between 0 and %s, got %s", maxHTTPTimeout, r.HTTPTimeout))
	}

	return errors.Join(errs...)
}

func validateRepository(r *RepositoryConfig) []error {
	var errs []error

	if r.Repository != "" {
		if _, err := repoid.New(r.Repository); err != nil {
			errs = append(errs, fmt.Errorf("repository: %w", err))
		}
	}

	if strings.ContainsAny(r.Branch, " ~^:?*[\\") {
		errs = append(errs, fmt.Errorf("branch: %q is not a valid branch name", r.Branch))
	}

	return errs
}

func validateFilter(f *FilterConfig) []error {
	var errs []error

	if _, err := ParseSize(f.MaxFileSize); err != nil {
		errs = append(errs, fmt.Errorf("max_file_size: %w", err))
	}

	errs = append(errs, validatePatterns("skip_files", f.SkipFiles)...)
	errs = append(errs, validatePatterns("skip_dirs", f.SkipDirs)...)

	if strings.Contains(f.IgnoreFile, "/") || strings.Contains(f.IgnoreFile, `\`) {
		errs = append(errs, fmt.Errorf("ignore_file: must be a file name in the root directory, got %q", f.IgnoreFile))
	}

	return errs
}

// validatePatterns checks glob syntax. filepath.Match reports ErrBadPattern
// only when it reaches the malformed part, so match against the pattern
// itself to force a full scan.
func validatePatterns(field string, patterns []string) []error {
	var errs []error

	for _, p := range patterns {
		if p == "" {
			errs = append(errs, fmt.Errorf("%s: empty pattern", field))

			continue
		}

		if _, err := filepath.Match(p, p); err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid pattern %q: %w", field, p, err))
		}
	}

	return errs
}

func validateUpload(u *UploadConfig) []error {
	var errs []error

	for _, ext := range u.BinaryExtensions {
		if strings.TrimSpace(ext) == "" || strings.ContainsAny(ext, `/\*`) {
			errs = append(errs, fmt.Errorf("binary_extensions: invalid extension %q", ext))
		}
	}

	errs = append(errs, validateTextDecoding(u.TextDecoding)...)

	return errs
}

var validTextDecodings = map[string]bool{
	TextDecodingStrict:  true,
	TextDecodingReplace: true,
	TextDecodingRaw:     true,
}

func validateTextDecoding(mode string) []error {
	if !validTextDecodings[mode] {
		return []error{fmt.Errorf("text_decoding: must be one of strict, replace, raw; got %q", mode)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	var errs []error

	u, err := url.Parse(n.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api_url: must be an absolute http(s) URL, got %q", n.APIURL))
	}

	errs = append(errs, validateDurationNonNeg("http_timeout", n.HTTPTimeout)...)

	return errs
}

func validateDurationNonNeg(field, value string) []error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid duration %q: %w", field, value, err)}
	}

	if d < 0 {
		return []error{fmt.Errorf("%s: must be >= 0, got %s", field, d)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	errs = append(errs, validateLogLevel(l.LogLevel)...)
	errs = append(errs, validateLogFormat(l.LogFormat)...)

	if l.LogRetentionDays < minLogRetention {
		errs = append(errs, fmt.Errorf("log_retention_days: must be >= %d, got %d",
			minLogRetention, l.LogRetentionDays))
	}

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

func validateLogLevel(level string) []error {
	if !validLogLevels[level] {
		return []error{fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", level)}
	}

	return nil
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}

func validateLogFormat(format string) []error {
	if !validLogFormats[format] {
		return []error{fmt.Errorf("log_format: must be one of auto, text, json; got %q", format)}
	}

	return nil
}
