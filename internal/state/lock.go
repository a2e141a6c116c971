package state

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// StaleLockThreshold is the maximum age of a lock before it's considered
	// stale. A run downloads several disk images, so this is generous.
	StaleLockThreshold = 12 * time.Hour
)

var ErrLockExists = errors.New("state lock exists: another iso-updater run may be in progress")

// Lock is an exclusive lock on one base directory.
type Lock struct {
	path string
	file *os.File
}

// LockInfo is the metadata written into a lock file.
type LockInfo struct {
	PID       int
	RunID     string
	Timestamp time.Time
}

// AcquireLock creates the lock file at path with O_CREATE|O_EXCL.
// A lock older than StaleLockThreshold is replaced once.
func AcquireLock(ctx context.Context, path, runID string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if isStale, _ := isLockStale(path); !isStale {
			return nil, lockHeldError(path)
		}
		os.Remove(path)
		file, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
		if err != nil {
			return nil, lockHeldError(path)
		}
	}

	lockData := fmt.Sprintf("pid=%d\nrun_id=%s\ntimestamp=%s\n", os.Getpid(), runID, time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(lockData); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("write lock data: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(path)
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	return &Lock{
		path: path,
		file: file,
	}, nil
}

// Release releases the lock.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	if l.path != "" {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
		l.path = ""
	}

	return nil
}

// ReadLockInfo parses the metadata of an existing lock file.
func ReadLockInfo(path string) (LockInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return LockInfo{}, err
	}
	defer file.Close()

	var info LockInfo
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			info.PID, _ = strconv.Atoi(value)
		case "run_id":
			info.RunID = value
		case "timestamp":
			info.Timestamp, _ = time.Parse(time.RFC3339, value)
		}
	}
	return info, scanner.Err()
}

func lockHeldError(path string) error {
	info, err := ReadLockInfo(path)
	if err != nil || info.PID == 0 {
		return ErrLockExists
	}
	return fmt.Errorf("%w (pid %d, run %s, since %s)", ErrLockExists, info.PID, info.RunID, info.Timestamp.Local().Format(time.DateTime))
}

// isLockStale checks if a lock file is older than the stale lock threshold.
func isLockStale(lockPath string) (bool, error) {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false, err
	}

	age := time.Since(info.ModTime())
	return age > StaleLockThreshold, nil
}
