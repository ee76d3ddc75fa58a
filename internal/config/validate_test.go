package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/forgepush/internal/repoid"
)

func TestValidate_DefaultsAreValid(t *testing.T) {
	require.NoError(t, Validate(DefaultConfig()))
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"bad repository", func(c *Config) { c.Repository = "a/b/c" }, "repository"},
		{"bad branch", func(c *Config) { c.Branch = "feature branch" }, "branch"},
		{"bad max_file_size", func(c *Config) { c.MaxFileSize = "big" }, "max_file_size"},
		{"bad skip_files pattern", func(c *Config) { c.SkipFiles = []string{"[abc"} }, "skip_files"},
		{"empty skip_dirs pattern", func(c *Config) { c.SkipDirs = []string{""} }, "skip_dirs"},
		{"ignore_file with path", func(c *Config) { c.IgnoreFile = "sub/.ignore" }, "ignore_file"},
		{"bad binary extension", func(c *Config) { c.BinaryExtensions = []string{"*.png"} }, "binary_extensions"},
		{"bad text_decoding", func(c *Config) { c.TextDecoding = "ascii" }, "text_decoding"},
		{"relative api_url", func(c *Config) { c.APIURL = "api.github.com" }, "api_url"},
		{"ftp api_url", func(c *Config) { c.APIURL = "ftp://api.github.com/" }, "api_url"},
		{"bad http_timeout", func(c *Config) { c.HTTPTimeout = "soon" }, "http_timeout"},
		{"negative http_timeout", func(c *Config) { c.HTTPTimeout = "-1s" }, "http_timeout"},
		{"bad log_level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"bad log_format", func(c *Config) { c.LogFormat = "xml" }, "log_format"},
		{"bad log_retention_days", func(c *Config) { c.LogRetentionDays = 0 }, "log_retention_days"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateResolved(t *testing.T) {
	valid := func() *Resolved {
		return &Resolved{
			RootDir:      "/srv/site",
			Repository:   repoid.MustNew("site"),
			TextDecoding: TextDecodingStrict,
			HTTPTimeout:  time.Minute,
		}
	}

	require.NoError(t, ValidateResolved(valid()))

	r := valid()
	r.RootDir = "relative/dir"
	assert.ErrorContains(t, ValidateResolved(r), "root_dir")

	r = valid()
	r.Repository = repoid.Ref{}
	assert.ErrorContains(t, ValidateResolved(r), "repository")

	r = valid()
	r.HTTPTimeout = time.Hour
	assert.ErrorContains(t, ValidateResolved(r), "http_timeout")
}
