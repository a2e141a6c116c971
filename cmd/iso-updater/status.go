package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/GideonBear/iso-updater/internal/iso"
	"github.com/GideonBear/iso-updater/internal/state"
)

// runStatus handles the `iso-updater status` subcommand
func runStatus(ctx context.Context, args []string, w io.Writer) error {
	for _, arg := range args {
		switch arg {
		case "--help", "-h":
			fmt.Fprintln(w, "Usage: iso-updater status")
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Show every source with its installed image and drive copy.")
			return nil
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	a, err := loadApp(ctx, w, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := a.store().Load()
	if err != nil {
		return err
	}

	a.out.heading("iso-updater at %s", a.paths.Base)
	a.out.println()

	if len(d.Sources) == 0 {
		a.out.println("No sources configured.")
	}
	for _, id := range d.IDs() {
		a.out.println(id + "  " + d.Sources[id].Describe())
		installed, ok := d.Files[id]
		if !ok {
			a.out.detail("not installed")
		} else {
			a.out.detail("installed  %s", describeInstalled(installed))
		}
		if copy, ok := d.USB[id]; ok {
			a.out.detail("drive      %s", describeInstalled(copy))
		}
	}

	var orphans []string
	for id := range d.USB {
		if _, ok := d.Sources[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	if len(orphans) > 0 {
		a.out.println()
		a.out.warning("On the drive without a source (removed on next update): %s", strings.Join(orphans, ", "))
	}

	if a.settings.History {
		entries, err := state.NewHistory(a.paths.History()).Log(ctx, 1)
		if err != nil {
			a.logger.Warn("cannot read history", "error", err)
		} else if len(entries) > 0 {
			a.out.println()
			a.out.info("Last change: %s (%s)", strings.TrimSpace(entries[0].Message), entries[0].When.Local().Format(time.DateTime))
		}
	}
	return nil
}

func describeInstalled(p iso.InPlace) string {
	version := p.File.VersionString()
	if version == "" {
		version = "unversioned"
	}
	return fmt.Sprintf("%s  %s  %s", version, p.File.ShortHash(), p.Filename)
}
