// Package usb mirrors the managed directory onto a removable drive, such as
// a Ventoy stick, so the drive always carries the installed images.
package usb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v4/disk"
)

// ErrNoSpace is returned when the drive cannot hold an image.
var ErrNoSpace = errors.New("not enough free space on drive")

// Config selects the drive.
type Config struct {
	// Path is the drive directory. It takes precedence over detection.
	Path string
	// AutoDetect scans mounted partitions for one containing Marker.
	AutoDetect bool
	// Marker is the directory that identifies the drive.
	Marker string
}

// partitionLister and usageReader wrap gopsutil so tests can supply mounts.
type (
	partitionLister func(ctx context.Context) ([]disk.PartitionStat, error)
	usageReader     func(ctx context.Context, path string) (*disk.UsageStat, error)
)

func listPartitions(ctx context.Context) ([]disk.PartitionStat, error) {
	return disk.PartitionsWithContext(ctx, false)
}

// Target returns the drive directory. An empty directory with a reason
// means no drive is attached, which is not an error.
func (s *Syncer) Target(ctx context.Context) (dir, reason string, err error) {
	if s.cfg.Path != "" {
		info, err := os.Stat(s.cfg.Path)
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Sprintf("%s is not mounted", s.cfg.Path), nil
		}
		if err != nil {
			return "", "", fmt.Errorf("stat drive %s: %w", s.cfg.Path, err)
		}
		if !info.IsDir() {
			return "", "", fmt.Errorf("drive %s is not a directory", s.cfg.Path)
		}
		return s.cfg.Path, "", nil
	}

	if !s.cfg.AutoDetect {
		return "", "no drive configured", nil
	}

	partitions, err := s.partitions(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", "", fmt.Errorf("drive detection cancelled: %w", ctx.Err())
		}
		return "", "", fmt.Errorf("list partitions: %w", err)
	}

	for _, p := range partitions {
		if p.Mountpoint == "" {
			continue
		}
		info, err := os.Stat(filepath.Join(p.Mountpoint, s.cfg.Marker))
		if err != nil || !info.IsDir() {
			continue
		}
		s.logger.Debug("drive detected", "mountpoint", p.Mountpoint, "device", p.Device, "fstype", p.Fstype)
		return p.Mountpoint, "", nil
	}

	return "", fmt.Sprintf("no mounted partition contains %q", s.cfg.Marker), nil
}

// checkSpace fails with ErrNoSpace when dir has fewer than need free bytes.
// A drive whose usage cannot be read is assumed to have room.
func (s *Syncer) checkSpace(ctx context.Context, dir string, need int64) error {
	usage, err := s.usage(ctx, dir)
	if err != nil {
		s.logger.Debug("cannot read drive usage", "path", dir, "error", err)
		return nil
	}
	if need > 0 && usage.Free < uint64(need) {
		return fmt.Errorf("%w: need %d bytes, %d free", ErrNoSpace, need, usage.Free)
	}
	return nil
}
