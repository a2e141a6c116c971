package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/GideonBear/iso-updater/internal/reconcile"
	"github.com/GideonBear/iso-updater/internal/source"
	"github.com/GideonBear/iso-updater/internal/usb"
)

// runUpdate handles the `iso-updater update` subcommand
func runUpdate(ctx context.Context, args []string, w io.Writer) error {
	flags := pflag.NewFlagSet("update", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	dryRun := flags.BoolP("dry-run", "n", false, "report what would be fetched without downloading images")
	only := flags.StringSlice("only", nil, "restrict the run to these source ids (repeatable or comma separated)")
	verbose := flags.BoolP("verbose", "v", false, "mirror log records to stderr")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUpdateHelp(w, flags)
			return nil
		}
		return fmt.Errorf("%w\nRun 'iso-updater update --help' for usage", err)
	}
	if flags.NArg() > 0 {
		return fmt.Errorf("unexpected argument: %s", flags.Arg(0))
	}

	a, err := loadApp(ctx, w, appOptions{verbose: *verbose})
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.requireInitialized(); err != nil {
		return err
	}

	opts := reconcile.RunOptions{Only: *only, RunID: a.runID}

	if *dryRun {
		current, err := a.store().Load()
		if err != nil {
			return err
		}
		report := a.reconciler().Plan(ctx, current, opts)
		printReport(a.out, report)
		return reportError(report)
	}

	lock, err := a.lock(ctx)
	if err != nil {
		return err
	}
	defer lock.Release()

	store := a.store()
	current, err := store.Load()
	if err != nil {
		return err
	}

	rec := a.reconciler()
	next, report, err := rec.Run(ctx, current, opts)
	if err != nil {
		return err
	}
	// Images placed before an interrupt are kept, so the save must not
	// observe the cancellation. Superseded images go only once the new
	// entries are on disk.
	if err := store.Save(context.WithoutCancel(ctx), next, historyMessage(report)); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	rec.Prune(report)

	printReport(a.out, report)
	return reportError(report)
}

// reportError summarizes failures for the exit status. The details have
// already been printed.
func reportError(report *reconcile.Report) error {
	if n := report.Failed(); n > 0 {
		return fmt.Errorf("%d of %d failed: %w", n, countEntries(report), report.Err())
	}
	return nil
}

func countEntries(report *reconcile.Report) int {
	n := len(report.Results)
	if report.USB != nil {
		n += len(report.USB.Results)
	}
	if report.USBErr != nil {
		n++
	}
	return n
}

// historyMessage describes the run in one line, e.g.
// "update: installed tails; updated mint (22.1)".
func historyMessage(report *reconcile.Report) string {
	var parts []string
	for _, res := range report.Results {
		switch res.Outcome {
		case reconcile.OutcomeInstalled, reconcile.OutcomeUpdated, reconcile.OutcomeRelabelled:
			part := res.Outcome.String() + " " + res.ID
			if res.Current != nil && res.Current.File.Version != nil {
				part += " (" + *res.Current.File.Version + ")"
			}
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		return "update: no changes"
	}
	return "update: " + strings.Join(parts, "; ")
}

func printReport(p *printer, report *reconcile.Report) {
	if report.DryRun {
		p.heading("Dry run - no changes made")
		p.println()
	}

	for _, res := range report.Results {
		printResult(p, res)
	}

	switch {
	case report.USBErr != nil:
		p.println()
		p.failure("usb: %v", report.USBErr)
	case report.USB != nil && report.USB.Skipped:
		p.println()
		p.info("usb: skipped (%s)", report.USB.Reason)
	case report.USB != nil:
		p.println()
		p.heading("Drive %s", report.USB.Target)
		for _, res := range report.USB.Results {
			printDriveResult(p, res)
		}
	}
}

func printResult(p *printer, res reconcile.Result) {
	switch res.Outcome {
	case reconcile.OutcomeFailed:
		p.failure("%s: %v", res.ID, res.Err)
	case reconcile.OutcomePlanned:
		printPlan(p, res.ID, *res.Plan)
	case reconcile.OutcomeUpToDate:
		p.info("%s: up to date%s", res.ID, versionSuffix(res))
	default:
		p.success("%s: %s%s", res.ID, res.Outcome, versionSuffix(res))
		if res.Current != nil {
			p.detail("%s (%s)", res.Current.Filename, res.Current.File.ShortHash())
		}
	}
}

func printPlan(p *printer, id string, plan source.Plan) {
	version := ""
	if plan.Version != "" {
		version = " " + plan.Version
	}
	switch plan.Action {
	case source.ActionInstall:
		p.info("%s: would install%s", id, version)
	case source.ActionUpdate:
		p.info("%s: would update to%s", id, version)
	default:
		p.info("%s: up to date%s", id, version)
	}
}

func printDriveResult(p *printer, res usb.Result) {
	switch res.Action {
	case usb.ActionFailed:
		p.failure("%s: %v", res.ID, res.Err)
	case usb.ActionUpToDate:
		p.info("%s: up to date", res.ID)
	default:
		p.success("%s: %s %s", res.ID, res.Action, res.Entry.Filename)
	}
}

func versionSuffix(res reconcile.Result) string {
	if res.Current == nil || res.Current.File.Version == nil {
		return ""
	}
	return " (" + *res.Current.File.Version + ")"
}

func printUpdateHelp(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage: iso-updater update [options]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Install new sources, update installed ones that have a newer release and")
	fmt.Fprintln(w, "sync the removable drive. Exits non-zero if any source fails.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprint(w, flags.FlagUsages())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Examples:")
	fmt.Fprintln(w, "  iso-updater update               Update everything")
	fmt.Fprintln(w, "  iso-updater update --dry-run     Show what would be fetched")
	fmt.Fprintln(w, "  iso-updater update --only mint   Update one source")
}
