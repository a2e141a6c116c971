package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/GideonBear/iso-updater/internal/config"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", config.FormatError(err, false))
		stop()
		os.Exit(1)
	}
}

// run dispatches a command line (without the program name).
func run(ctx context.Context, args []string, w io.Writer) error {
	if len(args) == 0 {
		printUsage(w)
		return nil
	}

	switch args[0] {
	case "--version", "version":
		fmt.Fprintf(w, "iso-updater %s\n", Version)
		return nil
	case "init":
		return runInit(ctx, args[1:], w)
	case "update":
		return runUpdate(ctx, args[1:], w)
	case "source":
		return runSource(ctx, args[1:], w)
	case "status":
		return runStatus(ctx, args[1:], w)
	case "help", "--help", "-h":
		printUsage(w)
		return nil
	default:
		printUsage(w)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "iso-updater keeps a directory of installer images current")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  iso-updater --version              Show version information")
	fmt.Fprintln(w, "  iso-updater init                   Create the iso-updater directory")
	fmt.Fprintln(w, "  iso-updater source add <id> ...    Track a new image source")
	fmt.Fprintln(w, "  iso-updater source remove <id>     Stop tracking a source")
	fmt.Fprintln(w, "  iso-updater source list            List tracked sources")
	fmt.Fprintln(w, "  iso-updater update [options]       Install and update images")
	fmt.Fprintln(w, "  iso-updater status                 Show installed images")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Set ISO_UPDATER_DIR to use a directory other than ~/.isos.")
}
