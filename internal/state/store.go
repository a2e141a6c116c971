package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/GideonBear/iso-updater/internal/config"
	"github.com/GideonBear/iso-updater/internal/logging"
)

// Store reads and writes the state file. Load happens once at the start of
// a run and Save once at the end.
type Store struct {
	path    string
	history *History
	logger  logging.Logger
}

// NewStore returns a store for the state file at path. history may be nil.
func NewStore(path string, history *History, logger logging.Logger) *Store {
	return &Store{
		path:    path,
		history: history,
		logger:  logging.OrNop(logger),
	}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the state file is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads, schema-checks and validates the state file.
func (s *Store) Load() (*Data, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read state %s: %v", config.ErrConfig, s.path, err)
	}
	return Decode(raw)
}

// Decode parses a state document.
func Decode(raw []byte) (*Data, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: parse state: %v", config.ErrConfig, err)
	}
	if err := validateSchema(doc); err != nil {
		return nil, fmt.Errorf("%w: state does not match schema: %v", config.ErrConfig, err)
	}

	var d Data
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("%w: decode state: %v", config.ErrConfig, err)
	}
	d.normalize()

	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Encode renders state as indented JSON.
func Encode(d *Data) ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return append(data, '\n'), nil
}

// Save validates d and writes it atomically, then records the snapshot in
// history when enabled. A history failure is logged, not returned.
func (s *Store) Save(ctx context.Context, d *Data, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.normalize()
	if err := d.Validate(); err != nil {
		return err
	}

	data, err := Encode(d)
	if err != nil {
		return err
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	s.logger.Debug("state saved", "path", s.path, "sources", len(d.Sources))

	if s.history != nil {
		hash, err := s.history.Record(ctx, data, message)
		if err != nil {
			s.logger.Warn("failed to record state history", "error", err)
		} else if !hash.IsZero() {
			s.logger.Debug("state history recorded", "commit", hash.String())
		}
	}
	return nil
}

// writeAtomic writes data to a temporary file next to path and renames it.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write temporary state file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename state file: %w", err)
	}

	// Sync directory for durability
	df, err := os.Open(dir)
	if err == nil {
		if syncErr := df.Sync(); syncErr != nil {
			df.Close()
			return fmt.Errorf("sync directory: %w", syncErr)
		}
		df.Close()
	}

	return nil
}
