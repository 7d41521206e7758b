// Package testutil provides utilities for testing wsbuild in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// overrideVars are the WSBUILD_* variables a developer may have exported.
// They are removed for the duration of a test so defaults apply.
var overrideVars = []string{
	"WSBUILD_NODE_VERSION",
	"WSBUILD_NODE_MIRROR",
	"WSBUILD_NODE_VERIFY",
	"WSBUILD_NODE_KEYRING",
	"WSBUILD_NPM_VERSION",
	"WSBUILD_NPM_REGISTRY",
	"WSBUILD_WORKSPACE_DIR",
	"WSBUILD_JOBS",
	"WSBUILD_LOG_LEVEL",
	"WSBUILD_FETCH_TIMEOUT",
	"WSBUILD_TRACE_EXPORTER",
	"WSBUILD_TRACE_FILE",
}

// SetupTestEnv creates isolated test directories for each test and returns
// their root. XDG data, config and cache homes point into it, so nothing a
// test runs touches the user's real directories.
//
// The cleanup function is automatically handled by t.TempDir(),
// so callers don't need to manually clean up.
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	// Create temp directory (auto-cleaned by testing framework)
	tmpDir := t.TempDir()

	dirs := map[string]string{
		"XDG_DATA_HOME":   filepath.Join(tmpDir, "data"),
		"XDG_CONFIG_HOME": filepath.Join(tmpDir, "config"),
		"XDG_CACHE_HOME":  filepath.Join(tmpDir, "cache"),
	}
	for key, dir := range dirs {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
		t.Setenv(key, dir)
	}

	for _, key := range overrideVars {
		Unsetenv(t, key)
	}

	// Mark as test mode
	t.Setenv("WSBUILD_TEST_MODE", "1")

	return tmpDir
}

// Unsetenv removes key for the duration of the test and restores it afterwards.
func Unsetenv(t *testing.T, key string) {
	t.Helper()

	// t.Setenv registers the restore and forbids t.Parallel
	t.Setenv(key, "")
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("unset %s: %v", key, err)
	}
}
