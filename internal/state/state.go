// Package state holds the persisted data of an iso-updater installation:
// configured sources and the artifacts installed for them in the managed
// directory and on the removable drive.
package state

import (
	"errors"
	"fmt"
	"regexp"
	"slices"

	"github.com/GideonBear/iso-updater/internal/config"
	"github.com/GideonBear/iso-updater/internal/iso"
	"github.com/GideonBear/iso-updater/internal/source"
)

// ErrNotInitialized is returned when no state file exists yet.
var ErrNotInitialized = fmt.Errorf("%w: not initialized (run 'iso-updater init')", config.ErrConfig)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// Data is the persisted state. The three maps share one identifier space.
type Data struct {
	Sources map[string]source.Spec  `json:"sources"`
	Files   map[string]iso.InPlace `json:"files"`
	USB     map[string]iso.InPlace `json:"usb"`
}

// New returns empty state.
func New() *Data {
	return &Data{
		Sources: map[string]source.Spec{},
		Files:   map[string]iso.InPlace{},
		USB:     map[string]iso.InPlace{},
	}
}

// ValidateID checks that id can name a source and its managed subdirectory.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: invalid source id %q (letters, digits, '.', '_' and '-', not starting with a symbol)", config.ErrConfig, id)
	}
	return nil
}

// Validate checks every identifier and source configuration.
func (d *Data) Validate() error {
	var errs []error
	for _, id := range sortedKeys(d.Sources) {
		if err := ValidateID(id); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := d.Sources[id].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", id, err))
		}
	}
	for name, m := range map[string]map[string]iso.InPlace{"files": d.Files, "usb": d.USB} {
		for _, id := range sortedKeys(m) {
			if err := ValidateID(id); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
			}
			if _, err := iso.CleanRelative(m[id].Filename); err != nil {
				errs = append(errs, fmt.Errorf("%w: %s entry %s: %v", config.ErrConfig, name, id, err))
			}
		}
	}
	return errors.Join(errs...)
}

// IDs returns the configured source identifiers in sorted order.
func (d *Data) IDs() []string {
	return sortedKeys(d.Sources)
}

// Clone returns a deep copy of d.
func (d *Data) Clone() *Data {
	c := New()
	for id, spec := range d.Sources {
		c.Sources[id] = cloneSpec(spec)
	}
	for id, p := range d.Files {
		c.Files[id] = cloneInPlace(p)
	}
	for id, p := range d.USB {
		c.USB[id] = cloneInPlace(p)
	}
	return c
}

// normalize replaces nil maps left by a decoder with empty ones.
func (d *Data) normalize() {
	if d.Sources == nil {
		d.Sources = map[string]source.Spec{}
	}
	if d.Files == nil {
		d.Files = map[string]iso.InPlace{}
	}
	if d.USB == nil {
		d.USB = map[string]iso.InPlace{}
	}
}

func cloneSpec(s source.Spec) source.Spec {
	if s.ConstantURL != nil {
		c := *s.ConstantURL
		c.Version = cloneString(c.Version)
		s.ConstantURL = &c
	}
	if s.LinuxMint != nil {
		m := *s.LinuxMint
		s.LinuxMint = &m
	}
	return s
}

func cloneInPlace(p iso.InPlace) iso.InPlace {
	p.File.Version = cloneString(p.File.Version)
	return p
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
