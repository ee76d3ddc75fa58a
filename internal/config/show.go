package config

import (
	"fmt"
	"io"
	"strings"
)

// RenderEffective writes the resolved configuration as a human-readable
// annotated summary to w. This powers the "config show" command, giving
// users visibility into the effective values after all four override layers
// (defaults -> file -> env -> CLI) have been applied.
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	if r.ConfigPath != "" {
		ew.printf("# Effective configuration (file: %s)\n\n", r.ConfigPath)
	} else {
		ew.printf("# Effective configuration (no config file)\n\n")
	}

	renderRepositorySection(ew, r)
	renderFilterSection(ew, r)
	renderUploadSection(ew, r)
	renderNetworkSection(ew, r)
	renderLoggingSection(ew, r)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderRepositorySection(ew *errWriter, r *Resolved) {
	ew.printf("[repository]\n")
	ew.printf("  repository   = %q\n", r.Repository.String())
	ew.printf("  description  = %q\n", r.Description)
	ew.printf("  private      = %t\n", r.Private)

	if r.Branch != "" {
		ew.printf("  branch       = %q\n", r.Branch)
	}

	ew.printf("\n")
}

func renderFilterSection(ew *errWriter, r *Resolved) {
	ew.printf("[filter]\n")
	ew.printf("  root_dir      = %q\n", r.RootDir)
	ew.printf("  skip_files    = [%s]\n", joinQuoted(r.SkipFiles))
	ew.printf("  skip_dirs     = [%s]\n", joinQuoted(r.SkipDirs))
	ew.printf("  ignore_file   = %q\n", r.IgnoreFile)
	ew.printf("  max_file_size = %d\n", r.MaxFileSize)
	ew.printf("\n")
}

func renderUploadSection(ew *errWriter, r *Resolved) {
	ew.printf("[upload]\n")
	ew.printf("  binary_extensions = [%s]\n", joinQuoted(r.BinaryExtensions))
	ew.printf("  text_decoding     = %q\n", r.TextDecoding)
	ew.printf("  verify_uploads    = %t\n", r.VerifyUploads)
	ew.printf("  report_file       = %q\n", r.ReportFile)
	ew.printf("  dry_run           = %t\n", r.DryRun)
	ew.printf("\n")
}

func renderNetworkSection(ew *errWriter, r *Resolved) {
	ew.printf("[network]\n")
	ew.printf("  api_url      = %q\n", r.APIURL)
	ew.printf("  http_timeout = %q\n", r.HTTPTimeout.String())

	if r.UserAgent != "" {
		ew.printf("  user_agent   = %q\n", r.UserAgent)
	}

	ew.printf("\n")
}

func renderLoggingSection(ew *errWriter, r *Resolved) {
	ew.printf("[logging]\n")
	ew.printf("  log_level          = %q\n", r.LogLevel)
	ew.printf("  log_format         = %q\n", r.LogFormat)

	if r.LogFile != "" {
		ew.printf("  log_file           = %q\n", r.LogFile)
	}

	ew.printf("  log_retention_days = %d\n", r.LogRetentionDays)
}

// joinQuoted returns a comma-separated list of quoted strings.
func joinQuoted(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}

	return strings.Join(quoted, ", ")
}
