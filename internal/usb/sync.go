package usb

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/GideonBear/iso-updater/internal/iso"
	"github.com/GideonBear/iso-updater/internal/logging"
	"github.com/GideonBear/iso-updater/internal/source"
)

// Action is what a sync did for one id.
type Action int

const (
	ActionUpToDate Action = iota
	ActionCopied
	ActionRemoved
	ActionFailed
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionUpToDate:
		return "up-to-date"
	case ActionCopied:
		return "copied"
	case ActionRemoved:
		return "removed"
	case ActionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome for one id.
type Result struct {
	ID     string
	Action Action
	Entry  iso.InPlace
	Err    error
}

// Report is the outcome of one sync pass.
type Report struct {
	// Target is the drive directory, empty when skipped.
	Target  string
	Skipped bool
	Reason  string
	Results []Result
	// State is the drive mapping after the pass.
	State map[string]iso.InPlace
}

// Syncer copies managed images to the drive.
type Syncer struct {
	cfg        Config
	partitions partitionLister
	usage      usageReader
	logger     logging.Logger
}

// NewSyncer returns a syncer for the configured drive.
func NewSyncer(cfg Config, logger logging.Logger) *Syncer {
	return &Syncer{
		cfg:        cfg,
		partitions: listPartitions,
		usage:      disk.UsageWithContext,
		logger:     logging.OrNop(logger),
	}
}

// Sync brings the drive in line with files. mirrored is the drive mapping
// from the last run; it is not modified. Every id in files ends up copied
// and hash-checked on the drive, and ids only in mirrored are removed.
func (s *Syncer) Sync(ctx context.Context, managedDir string, files, mirrored map[string]iso.InPlace) (*Report, error) {
	target, reason, err := s.Target(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{
		Target: target,
		State:  maps.Clone(mirrored),
	}
	if report.State == nil {
		report.State = map[string]iso.InPlace{}
	}
	if target == "" {
		report.Skipped = true
		report.Reason = reason
		s.logger.Info("skipping drive sync", "reason", reason)
		return report, nil
	}

	for _, id := range slices.Sorted(maps.Keys(files)) {
		result := s.syncOne(ctx, managedDir, target, id, files[id], report.State)
		report.Results = append(report.Results, result)
	}

	for _, id := range slices.Sorted(maps.Keys(mirrored)) {
		if _, ok := files[id]; ok {
			continue
		}
		old := mirrored[id]
		if err := old.Remove(target); err != nil {
			report.Results = append(report.Results, Result{ID: id, Action: ActionFailed, Entry: old, Err: err})
			continue
		}
		delete(report.State, id)
		s.logger.Info("removed image from drive", "id", id, "filename", old.Filename)
		report.Results = append(report.Results, Result{ID: id, Action: ActionRemoved, Entry: old})
	}

	return report, nil
}

func (s *Syncer) syncOne(ctx context.Context, managedDir, target, id string, want iso.InPlace, state map[string]iso.InPlace) Result {
	old, had := state[id]
	if had && old.Filename == want.Filename && old.File.Equal(want.File) && exists(old.Path(target)) {
		state[id] = want
		return Result{ID: id, Action: ActionUpToDate, Entry: want}
	}

	if err := s.copy(ctx, managedDir, target, want); err != nil {
		s.logger.Error("drive copy failed", "id", id, "error", err)
		return Result{ID: id, Action: ActionFailed, Entry: want, Err: err}
	}
	state[id] = want

	if had && old.Filename != want.Filename {
		if err := old.Remove(target); err != nil {
			s.logger.Warn("failed to remove previous image from drive", "id", id, "filename", old.Filename, "error", err)
		}
	}

	s.logger.Info("copied image to drive", "id", id, "filename", want.Filename, "hash", want.File.ShortHash())
	return Result{ID: id, Action: ActionCopied, Entry: want}
}

// copy writes the managed file to <target>/<filename>.part, checks its hash
// and renames it into place. The partial copy never survives a failure.
func (s *Syncer) copy(ctx context.Context, managedDir, target string, entry iso.InPlace) (err error) {
	src := entry.Path(managedDir)
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("%w: managed image %s: %v", iso.ErrPlacement, entry.Filename, err)
	}
	if err := s.checkSpace(ctx, target, info.Size()); err != nil {
		return err
	}

	dest := entry.Path(target)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("%w: create parent of %s: %v", iso.ErrPlacement, dest, err)
	}
	part := dest + ".part"
	defer func() {
		if err != nil {
			os.Remove(part)
		}
	}()

	if err := copyFile(ctx, src, part); err != nil {
		return fmt.Errorf("%w: copy %s to drive: %v", iso.ErrPlacement, entry.Filename, err)
	}

	hash, err := iso.HashFile(part)
	if err != nil {
		return fmt.Errorf("%w: %v", iso.ErrPlacement, err)
	}
	if !strings.EqualFold(hash, entry.File.Hash) {
		return fmt.Errorf("%w: copy of %s on drive has hash %s, expected %s",
			source.ErrVerification, entry.Filename, hash, entry.File.Hash)
	}

	if err := os.Rename(part, dest); err != nil {
		return fmt.Errorf("%w: rename %s: %v", iso.ErrPlacement, part, err)
	}
	return nil
}

func copyFile(ctx context.Context, src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, &contextReader{ctx: ctx, r: in}); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// contextReader stops a long copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
