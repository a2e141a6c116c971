package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/GideonBear/iso-updater/internal/config"
	"github.com/GideonBear/iso-updater/internal/state"
	"github.com/GideonBear/iso-updater/internal/testutil"
)

// execute runs a command line against the isolated environment and returns
// everything written to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	err := run(context.Background(), args, &buf)
	return buf.String(), err
}

// mustExecute fails the test when the command fails.
func mustExecute(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execute(t, args...)
	if err != nil {
		t.Fatalf("%v failed: %v\noutput:\n%s", args, err, out)
	}
	return out
}

// setupInitialized creates an isolated base directory with the given
// isos.lua (if any) and runs init.
func setupInitialized(t *testing.T, settings string) config.Paths {
	t.Helper()
	base := testutil.SetupTestEnv(t)
	if settings != "" {
		if err := os.MkdirAll(base, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(base, config.SettingsFile), []byte(settings), 0644); err != nil {
			t.Fatal(err)
		}
	}
	mustExecute(t, "init")
	return config.Paths{Base: base}
}

// loadState reads data.json directly.
func loadState(t *testing.T, paths config.Paths) *state.Data {
	t.Helper()
	d, err := state.NewStore(paths.Data(), nil, nil).Load()
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	return d
}

// saveState overwrites data.json directly.
func saveState(t *testing.T, paths config.Paths, d *state.Data) {
	t.Helper()
	if err := state.NewStore(paths.Data(), nil, nil).Save(context.Background(), d, "test"); err != nil {
		t.Fatalf("save state: %v", err)
	}
}
