// Package reconcile brings the managed directory in line with the configured
// sources: new sources are installed, installed ones are updated when their
// provider has something newer, and the removable drive is synced last.
//
// Every source is handled independently. A failure is recorded in the Report
// under the source id and leaves that source's installed entry unchanged.
// The caller persists the returned state once, at the end of the run, and
// only then calls Prune to delete the images the run superseded. Until the
// state is saved the previous entries still reference those files.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/google/uuid"

	"github.com/GideonBear/iso-updater/internal/config"
	"github.com/GideonBear/iso-updater/internal/iso"
	"github.com/GideonBear/iso-updater/internal/logging"
	"github.com/GideonBear/iso-updater/internal/source"
	"github.com/GideonBear/iso-updater/internal/state"
	"github.com/GideonBear/iso-updater/internal/usb"
)

// DriveSyncer mirrors the managed directory onto a removable drive.
type DriveSyncer interface {
	Sync(ctx context.Context, managedDir string, files, mirrored map[string]iso.InPlace) (*usb.Report, error)
}

// Options configure a Reconciler.
type Options struct {
	// ManagedDir holds the installed images, one subdirectory per source.
	ManagedDir string
	// ScratchParent is where the run's scratch directory is created. It must
	// be on the same filesystem as ManagedDir. Defaults to ManagedDir's parent.
	ScratchParent string
	// Drive is optional; without it the drive pass is skipped.
	Drive  DriveSyncer
	Logger logging.Logger
}

// Reconciler runs reconciliation passes.
type Reconciler struct {
	env           *source.Env
	managedDir    string
	scratchParent string
	drive         DriveSyncer
	logger        logging.Logger
}

// New returns a reconciler that fetches through env.
func New(env *source.Env, opts Options) *Reconciler {
	parent := opts.ScratchParent
	if parent == "" {
		parent = filepath.Dir(opts.ManagedDir)
	}
	return &Reconciler{
		env:           env,
		managedDir:    opts.ManagedDir,
		scratchParent: parent,
		drive:         opts.Drive,
		logger:        logging.OrNop(opts.Logger),
	}
}

// RunOptions narrow a single run.
type RunOptions struct {
	// Only restricts the run to these source ids. Empty means all.
	Only []string
	// RunID tags log lines. A new UUID is generated when empty.
	RunID string
}

// Run reconciles every selected source, then syncs the drive. It returns the
// new state, derived from a copy of current, and the per-id report. current
// is never modified. The error is non-nil only when the run could not start;
// per-source failures are in the report.
func (r *Reconciler) Run(ctx context.Context, current *state.Data, opts RunOptions) (*state.Data, *Report, error) {
	report := &Report{RunID: runID(opts.RunID)}
	log := logging.With(r.logger, "run_id", report.RunID)

	ids, unknown := selectIDs(current, opts.Only)

	if err := os.MkdirAll(r.managedDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("%w: create managed directory %s: %v", iso.ErrPlacement, r.managedDir, err)
	}
	scratch, err := os.MkdirTemp(r.scratchParent, ".scratch-")
	if err != nil {
		return nil, nil, fmt.Errorf("create scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			log.Warn("failed to remove scratch directory", "path", scratch, "error", err)
		}
	}()

	next := current.Clone()
	log.Info("reconciliation started", "sources", len(ids), "managed_dir", r.managedDir)

	for _, id := range unknown {
		report.Results = append(report.Results, Result{
			ID:      id,
			Outcome: OutcomeFailed,
			Err:     fmt.Errorf("%w: unknown source %q", config.ErrConfig, id),
		})
	}

	for _, id := range ids {
		result := r.reconcileOne(ctx, logging.With(log, "source", id), next, id, filepath.Join(scratch, id))
		report.Results = append(report.Results, result)
	}

	if r.drive != nil {
		driveReport, err := r.drive.Sync(ctx, r.managedDir, next.Files, next.USB)
		if err != nil {
			log.Error("drive sync failed", "error", err)
			report.USBErr = err
		} else {
			report.USB = driveReport
			next.USB = driveReport.State
		}
	}

	log.Info("reconciliation finished", "failed", report.Failed(), "changed", report.Changed())
	return next, report, nil
}

// reconcileOne installs or updates one source and records the result in
// next. On failure next is left untouched for id.
func (r *Reconciler) reconcileOne(ctx context.Context, log logging.Logger, next *state.Data, id, scratch string) Result {
	spec := next.Sources[id]
	result := Result{ID: id}

	fail := func(err error) Result {
		log.Error("source failed", "error", err)
		result.Outcome = OutcomeFailed
		result.Err = err
		return result
	}

	if err := os.MkdirAll(scratch, 0700); err != nil {
		return fail(fmt.Errorf("create scratch directory: %w", err))
	}

	env := *r.env
	env.Logger = log

	existing, installed := next.Files[id]
	if installed {
		prev := existing
		result.Previous = &prev
		if _, err := os.Stat(existing.Path(r.managedDir)); errors.Is(err, os.ErrNotExist) {
			log.Warn("installed image is missing, reinstalling", "filename", existing.Filename)
			installed = false
		}
	}

	if !installed {
		log.Info("installing", "source", spec.Describe())
		artifact, err := spec.Latest(ctx, &env, scratch)
		if err != nil {
			return fail(err)
		}
		placed, err := r.place(id, artifact)
		if err != nil {
			return fail(err)
		}
		if result.Previous != nil && result.Previous.Filename != placed.Filename {
			result.Superseded = result.Previous
		}
		next.Files[id] = placed
		result.Outcome = OutcomeInstalled
		result.Current = &placed
		log.Info("installed", "filename", placed.Filename, "version", placed.File.VersionString(), "hash", placed.File.ShortHash())
		return result
	}

	artifact, err := spec.Updated(ctx, &env, existing.File, scratch)
	if err != nil {
		return fail(err)
	}
	if artifact == nil {
		log.Info("no update", "version", existing.File.VersionString())
		result.Outcome = OutcomeUpToDate
		result.Current = result.Previous
		return result
	}

	if artifact.File.Equal(existing.File) {
		relabelled := iso.InPlace{File: artifact.File, Filename: existing.Filename}
		next.Files[id] = relabelled
		result.Outcome = OutcomeRelabelled
		result.Current = &relabelled
		log.Info("same image under a new version", "from", existing.File.VersionString(), "to", artifact.File.VersionString())
		return result
	}

	placed, err := r.place(id, artifact)
	if err != nil {
		return fail(err)
	}
	if placed.Filename != existing.Filename {
		result.Superseded = result.Previous
	}
	next.Files[id] = placed
	result.Outcome = OutcomeUpdated
	result.Current = &placed
	log.Info("updated", "from", existing.File.VersionString(), "to", placed.File.VersionString(), "filename", placed.Filename)
	return result
}

// place moves a verified artifact to <managed>/<id>/<filename>.
func (r *Reconciler) place(id string, artifact *source.Artifact) (iso.InPlace, error) {
	return iso.Put(artifact.File, artifact.Path, r.managedDir, id+"/"+artifact.Filename)
}

// Prune deletes the images report's run superseded. Call it only after the
// state returned by Run has been saved. The new images are already in
// place, so a failure only leaves a stray file behind.
func (r *Reconciler) Prune(report *Report) {
	log := logging.With(r.logger, "run_id", report.RunID)
	for _, old := range report.Superseded() {
		if err := old.Remove(r.managedDir); err != nil {
			log.Warn("failed to remove superseded image", "filename", old.Filename, "error", err)
			continue
		}
		log.Debug("removed superseded image", "filename", old.Filename)
	}
}

// Plan reports what Run would do without downloading images or touching
// the managed directory.
func (r *Reconciler) Plan(ctx context.Context, current *state.Data, opts RunOptions) *Report {
	report := &Report{RunID: runID(opts.RunID), DryRun: true}
	log := logging.With(r.logger, "run_id", report.RunID)

	ids, unknown := selectIDs(current, opts.Only)
	for _, id := range unknown {
		report.Results = append(report.Results, Result{
			ID:      id,
			Outcome: OutcomeFailed,
			Err:     fmt.Errorf("%w: unknown source %q", config.ErrConfig, id),
		})
	}

	for _, id := range ids {
		env := *r.env
		env.Logger = logging.With(log, "source", id)

		result := Result{ID: id}
		var existing *iso.File
		if installed, ok := current.Files[id]; ok {
			prev := installed
			result.Previous = &prev
			existing = &prev.File
		}

		plan, err := current.Sources[id].Check(ctx, &env, existing)
		if err != nil {
			env.Logger.Error("check failed", "error", err)
			result.Outcome = OutcomeFailed
			result.Err = err
		} else {
			result.Outcome = OutcomePlanned
			result.Plan = &plan
		}
		report.Results = append(report.Results, result)
	}
	return report
}

// selectIDs returns the configured ids to run, sorted, and the requested
// ids that are not configured.
func selectIDs(d *state.Data, only []string) (ids, unknown []string) {
	all := d.IDs()
	if len(only) == 0 {
		return all, nil
	}
	for _, id := range only {
		switch {
		case slices.Contains(ids, id):
		case slices.Contains(all, id):
			ids = append(ids, id)
		default:
			unknown = append(unknown, id)
		}
	}
	slices.Sort(ids)
	return ids, unknown
}

func runID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
