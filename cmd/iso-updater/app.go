package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"github.com/GideonBear/iso-updater/internal/config"
	"github.com/GideonBear/iso-updater/internal/crawl"
	"github.com/GideonBear/iso-updater/internal/fetch"
	"github.com/GideonBear/iso-updater/internal/logging"
	"github.com/GideonBear/iso-updater/internal/reconcile"
	"github.com/GideonBear/iso-updater/internal/source"
	"github.com/GideonBear/iso-updater/internal/state"
	"github.com/GideonBear/iso-updater/internal/usb"
	"github.com/GideonBear/iso-updater/internal/verify"
)

// app bundles what every command needs: the resolved directory layout,
// the settings file, a logger and this invocation's run id.
type app struct {
	paths    config.Paths
	settings *config.Settings
	logger   *slog.Logger
	closeLog func() error
	runID    string
	out      *printer
}

// appOptions are the flags shared by every command.
type appOptions struct {
	// verbose mirrors log records to stderr.
	verbose bool
}

// loadApp resolves the base directory, reads isos.lua and sets up logging.
// The log file is only written once the base directory exists.
func loadApp(ctx context.Context, w io.Writer, opts appOptions) (*app, error) {
	paths, err := config.ResolvePaths()
	if err != nil {
		return nil, err
	}

	settings, err := config.NewParser(config.HostDetector{}).Load(ctx, paths.Settings())
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(settings.Log.Level)
	if err != nil {
		return nil, err
	}
	format, err := logging.ParseFormat(settings.Log.Format)
	if err != nil {
		return nil, err
	}
	logCfg := logging.Config{Level: level, Format: format}
	if opts.verbose {
		logCfg.Console = os.Stderr
	}
	if settings.Log.File && dirExists(paths.Base) {
		logCfg.FilePath = paths.LogFile()
	}
	logger, closeLog, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	return &app{
		paths:    paths,
		settings: settings,
		logger:   logger,
		closeLog: closeLog,
		runID:    runID,
		out:      newPrinter(w),
	}, nil
}

func (a *app) Close() error {
	return a.closeLog()
}

// store returns the state store, recording history when enabled.
func (a *app) store() *state.Store {
	var history *state.History
	if a.settings.History {
		history = state.NewHistory(a.paths.History())
	}
	return state.NewStore(a.paths.Data(), history, a.logger)
}

// requireInitialized fails with a hint when init has not run.
func (a *app) requireInitialized() error {
	if !a.store().Exists() {
		return state.ErrNotInitialized
	}
	return nil
}

// lock takes the single-writer lock on the base directory.
func (a *app) lock(ctx context.Context) (*state.Lock, error) {
	return state.AcquireLock(ctx, a.paths.Lock(), a.runID)
}

// sourceEnv wires the transport, crawler and the configured signature
// backend into the ports the providers use.
func (a *app) sourceEnv() *source.Env {
	downloader := fetch.NewDownloader(fetch.Options{
		Retries:   a.settings.Download.Retries,
		Timeout:   a.settings.Download.Timeout,
		UserAgent: a.settings.Download.UserAgent,
		Logger:    a.logger,
	})

	env := &source.Env{
		Fetcher: downloader,
		Crawler: crawl.New(downloader, a.logger),
		Logger:  a.logger,
	}

	switch a.settings.Verify.Backend {
	case config.BackendGPG:
		gpg := verify.NewGPG("", a.settings.Verify.Keyserver, a.logger)
		env.Verifier = gpg
		env.Keys = gpg
	default:
		keyring := verify.NewKeyring(a.paths.Keyrings())
		env.Verifier = verify.NewOpenPGP(keyring)
		env.Keys = verify.NewHKPRetriever(keyring, downloader, a.settings.Verify.Keyserver, a.logger)
	}
	return env
}

// reconciler returns a reconciler over the images directory that syncs the
// configured drive.
func (a *app) reconciler() *reconcile.Reconciler {
	drive := usb.NewSyncer(usb.Config{
		Path:       a.settings.USB.Path,
		AutoDetect: a.settings.USB.AutoDetect,
		Marker:     a.settings.USB.Marker,
	}, a.logger)

	return reconcile.New(a.sourceEnv(), reconcile.Options{
		ManagedDir: a.paths.Images(),
		Drive:      drive,
		Logger:     a.logger,
	})
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
