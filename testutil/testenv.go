// Package testutil provides shared test helpers: in-process fakes of the
// connectors broker and the forge API, plus environment loading for the
// live integration tests.
package testutil

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file at the given path.
// Missing file is not an error (CI sets env vars directly).
// Existing env vars take precedence over .env values.
func LoadDotEnv(envPath string) {
	f, err := os.Open(envPath)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}

		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), "\"'")

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}

// ValidateAllowlist crashes the process unless owner is listed in
// FORGEPUSH_ALLOWED_TEST_OWNERS. Live tests create repositories, so they
// only run against accounts set aside for it.
func ValidateAllowlist(owner string) {
	allowlist := os.Getenv("FORGEPUSH_ALLOWED_TEST_OWNERS")
	if allowlist == "" {
		fmt.Fprintln(os.Stderr, "FATAL: FORGEPUSH_ALLOWED_TEST_OWNERS not set")
		fmt.Fprintln(os.Stderr, "Example: FORGEPUSH_ALLOWED_TEST_OWNERS=forgepush-ci,forgepush-ci-org")
		os.Exit(1)
	}

	for _, a := range strings.Split(allowlist, ",") {
		if strings.EqualFold(strings.TrimSpace(a), owner) {
			return
		}
	}

	fmt.Fprintf(os.Stderr, "FATAL: %q is not in FORGEPUSH_ALLOWED_TEST_OWNERS=%q\n", owner, allowlist)
	os.Exit(1)
}

// FindModuleRoot walks up from the current directory to find go.mod.
// Returns the fallback if the root is not found.
func FindModuleRoot(fallback string) string {
	dir, err := os.Getwd()
	if err != nil {
		return fallback
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return fallback
		}

		dir = parent
	}
}
