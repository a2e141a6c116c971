package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/GideonBear/iso-updater/internal/iso"
	"github.com/GideonBear/iso-updater/internal/source"
	"github.com/GideonBear/iso-updater/internal/state"
)

// runSource dispatches `iso-updater source <action>`.
func runSource(ctx context.Context, args []string, w io.Writer) error {
	if len(args) == 0 {
		printSourceUsage(w)
		return fmt.Errorf("source subcommand requires an action")
	}
	switch args[0] {
	case "add":
		return runSourceAdd(ctx, args[1:], w)
	case "remove", "rm":
		return runSourceRemove(ctx, args[1:], w)
	case "list", "ls":
		return runSourceList(ctx, args[1:], w)
	case "--help", "-h", "help":
		printSourceUsage(w)
		return nil
	default:
		printSourceUsage(w)
		return fmt.Errorf("unknown source action: %s", args[0])
	}
}

func printSourceUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: iso-updater source add <id> --constant-url URL [--name FILE] [--version V] [--force]")
	fmt.Fprintln(w, "       iso-updater source add <id> --linux-mint EDITION [--mirror URL] [--force]")
	fmt.Fprintln(w, "       iso-updater source remove <id> [--purge]")
	fmt.Fprintln(w, "       iso-updater source list")
}

// sourceAddOptions are the flags of `source add`.
type sourceAddOptions struct {
	constantURL string
	name        string
	version     string
	linuxMint   string
	mirror      string
	force       bool
	verbose     bool
}

// spec builds the source configuration from the flags. Exactly one kind
// must be selected.
func (o sourceAddOptions) spec() (source.Spec, error) {
	switch {
	case o.constantURL != "" && o.linuxMint != "":
		return source.Spec{}, fmt.Errorf("--constant-url and --linux-mint are mutually exclusive")
	case o.constantURL != "":
		if o.mirror != "" {
			return source.Spec{}, fmt.Errorf("--mirror only applies to --linux-mint")
		}
		return source.NewConstantURL(source.ConstantURL{
			URL:     o.constantURL,
			Name:    o.name,
			Version: iso.StringPtr(o.version),
		}), nil
	case o.linuxMint != "":
		if o.name != "" || o.version != "" {
			return source.Spec{}, fmt.Errorf("--name and --version only apply to --constant-url")
		}
		edition, err := source.ParseEdition(o.linuxMint)
		if err != nil {
			return source.Spec{}, err
		}
		return source.NewLinuxMint(source.LinuxMint{Edition: edition, Mirror: o.mirror}), nil
	default:
		return source.Spec{}, fmt.Errorf("one of --constant-url or --linux-mint is required")
	}
}

// runSourceAdd handles the `iso-updater source add` subcommand
func runSourceAdd(ctx context.Context, args []string, w io.Writer) error {
	var opts sourceAddOptions
	flags := pflag.NewFlagSet("source add", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.StringVar(&opts.constantURL, "constant-url", "", "download the image from this fixed URL")
	flags.StringVar(&opts.name, "name", "", "file name for a constant URL image (default: last URL segment)")
	flags.StringVar(&opts.version, "version", "", "version label for a constant URL image")
	flags.StringVar(&opts.linuxMint, "linux-mint", "", "track Linux Mint releases of this edition (cinnamon, mate, xfce)")
	flags.StringVar(&opts.mirror, "mirror", "", "Linux Mint mirror root (default: "+source.DefaultMintMirror+")")
	flags.BoolVarP(&opts.force, "force", "f", false, "replace an existing source with the same id")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "mirror log records to stderr")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printSourceUsage(w)
			fmt.Fprintln(w)
			fmt.Fprint(w, flags.FlagUsages())
			return nil
		}
		return fmt.Errorf("%w\nRun 'iso-updater source add --help' for usage", err)
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("source add requires exactly one id")
	}
	id := flags.Arg(0)

	if err := state.ValidateID(id); err != nil {
		return err
	}
	spec, err := opts.spec()
	if err != nil {
		return err
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	a, err := loadApp(ctx, w, appOptions{verbose: opts.verbose})
	if err != nil {
		return err
	}
	defer a.Close()

	return a.withState(ctx, func(d *state.Data) (string, error) {
		if _, exists := d.Sources[id]; exists && !opts.force {
			return "", fmt.Errorf("source %s already exists (use --force to replace it)", id)
		}
		d.Sources[id] = spec
		a.out.success("Added %s: %s", id, spec.Describe())
		a.out.detail("Run 'iso-updater update' to fetch it")
		return "add source " + id, nil
	})
}

// runSourceRemove handles the `iso-updater source remove` subcommand
func runSourceRemove(ctx context.Context, args []string, w io.Writer) error {
	flags := pflag.NewFlagSet("source remove", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	purge := flags.Bool("purge", false, "also delete the installed image")
	verbose := flags.BoolP("verbose", "v", false, "mirror log records to stderr")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printSourceUsage(w)
			fmt.Fprintln(w)
			fmt.Fprint(w, flags.FlagUsages())
			return nil
		}
		return fmt.Errorf("%w\nRun 'iso-updater source remove --help' for usage", err)
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("source remove requires exactly one id")
	}
	id := flags.Arg(0)

	a, err := loadApp(ctx, w, appOptions{verbose: *verbose})
	if err != nil {
		return err
	}
	defer a.Close()

	// The image is deleted only after the state no longer references it.
	var purged *iso.InPlace
	err = a.withState(ctx, func(d *state.Data) (string, error) {
		if _, exists := d.Sources[id]; !exists {
			return "", fmt.Errorf("no source named %s", id)
		}
		delete(d.Sources, id)
		if installed, ok := d.Files[id]; ok {
			delete(d.Files, id)
			purged = &installed
		}
		if _, onDrive := d.USB[id]; onDrive {
			a.out.detail("The copy on the drive is removed on the next update")
		}
		return "remove source " + id, nil
	})
	if err != nil {
		return err
	}
	a.out.success("Removed %s", id)

	if purged == nil {
		return nil
	}
	if !*purge {
		a.out.detail("Kept %s (use --purge to delete it)", purged.Path(a.paths.Images()))
		return nil
	}
	if err := purged.Remove(a.paths.Images()); err != nil {
		return err
	}
	os.Remove(filepath.Dir(purged.Path(a.paths.Images())))
	a.out.success("Deleted %s", purged.Filename)
	return nil
}

// runSourceList handles the `iso-updater source list` subcommand
func runSourceList(ctx context.Context, args []string, w io.Writer) error {
	if len(args) > 0 {
		if args[0] == "--help" || args[0] == "-h" {
			printSourceUsage(w)
			return nil
		}
		return fmt.Errorf("unexpected argument: %s", args[0])
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

	if len(d.Sources) == 0 {
		a.out.println("No sources configured.")
		a.out.println()
		a.out.println("To add one:")
		a.out.println("  iso-updater source add mint --linux-mint cinnamon")
		return nil
	}

	for _, id := range d.IDs() {
		a.out.info("%s  %s", id, d.Sources[id].Describe())
	}
	return nil
}

// withState loads state under the lock, lets fn modify it and saves it
// once. fn returns the history message.
func (a *app) withState(ctx context.Context, fn func(d *state.Data) (string, error)) error {
	if err := a.requireInitialized(); err != nil {
		return err
	}
	lock, err := a.lock(ctx)
	if err != nil {
		return err
	}
	defer lock.Release()

	store := a.store()
	d, err := store.Load()
	if err != nil {
		return err
	}

	message, err := fn(d)
	if err != nil {
		return err
	}
	return store.Save(ctx, d, message)
}
