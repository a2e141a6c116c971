package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/GideonBear/iso-updater/internal/config"
	"github.com/GideonBear/iso-updater/internal/state"
)

// createDirectoryStructure creates all required directories.
// This is idempotent - safe to call multiple times
func createDirectoryStructure(paths config.Paths) error {
	if paths.Base == "" {
		return fmt.Errorf("base directory cannot be empty")
	}

	dirs := []string{
		paths.Base,
		paths.Images(),
		paths.Keyrings(),
		paths.Logs(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// writeDefaultSettings writes an annotated isos.lua unless one exists.
// It reports whether a file was written.
func writeDefaultSettings(path string, settings *config.Settings) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("check settings file: %w", err)
	}

	code := config.NewGenerator().Generate(settings)
	if err := os.WriteFile(path, []byte(code), 0644); err != nil {
		return false, fmt.Errorf("write settings file: %w", err)
	}
	return true, nil
}

// runInit handles the `iso-updater init` subcommand
func runInit(ctx context.Context, args []string, w io.Writer) error {
	flags := pflag.NewFlagSet("init", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	verbose := flags.BoolP("verbose", "v", false, "mirror log records to stderr")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printInitHelp(w, flags)
			return nil
		}
		return fmt.Errorf("%w\nRun 'iso-updater init --help' for usage", err)
	}
	if flags.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flags.Arg(0))
	}

	a, err := loadApp(ctx, w, appOptions{verbose: *verbose})
	if err != nil {
		return err
	}
	defer a.Close()

	store := a.store()
	if store.Exists() {
		return fmt.Errorf("iso-updater already initialized at %s", a.paths.Base)
	}

	a.out.heading("Initializing iso-updater...")
	a.out.println()

	if err := createDirectoryStructure(a.paths); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	a.out.success("Created %s", a.paths.Base)

	written, err := writeDefaultSettings(a.paths.Settings(), a.settings)
	if err != nil {
		return err
	}
	if written {
		a.out.success("Wrote default settings to %s", a.paths.Settings())
	} else {
		a.out.info("Keeping existing settings in %s", a.paths.Settings())
	}

	if a.settings.History {
		if err := state.NewHistory(a.paths.History()).Init(ctx); err != nil {
			return fmt.Errorf("initialize history: %w", err)
		}
	}
	if err := store.Save(ctx, state.New(), "initialize"); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	a.out.success("Created empty state in %s", store.Path())
	a.logger.Info("initialized", "base", a.paths.Base)

	a.out.println()
	a.out.println("Next steps:")
	a.out.println("  1. Add a source:  iso-updater source add mint --linux-mint cinnamon")
	a.out.println("  2. Fetch images:  iso-updater update")
	return nil
}

func printInitHelp(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage: iso-updater init [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Create the iso-updater directory (default ~/.isos, override with ISO_UPDATER_DIR),")
	fmt.Fprintln(w, "an annotated isos.lua and an empty state file.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprint(w, flags.FlagUsages())
}
