// Package testutil provides utilities for testing iso-updater in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SetupTestEnv points iso-updater at a fresh temporary base directory and
// returns it. The directory itself is not created, so tests see the state
// before `iso-updater init`.
//
// HOME and the git author variables are isolated too, so the user's home
// directory and git identity never leak into a test. Everything lives under
// t.TempDir() and is removed when the test ends.
func SetupTestEnv(t *testing.T) string {
	t.Helper()

	tmpDir := t.TempDir()
	base := filepath.Join(tmpDir, "isos")
	home := filepath.Join(tmpDir, "home")

	if err := os.MkdirAll(home, 0o750); err != nil {
		t.Fatalf("failed to create test home %s: %v", home, err)
	}

	t.Setenv("ISO_UPDATER_DIR", base)
	t.Setenv("HOME", home)

	// Deterministic history commits
	t.Setenv("ISO_UPDATER_GIT_NAME", "Test User")
	t.Setenv("ISO_UPDATER_GIT_EMAIL", "test@example.com")
	t.Setenv("GIT_AUTHOR_NAME", "")
	t.Setenv("GIT_AUTHOR_EMAIL", "")

	return base
}
