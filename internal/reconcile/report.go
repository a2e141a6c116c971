package reconcile

import (
	"errors"
	"fmt"

	"github.com/GideonBear/iso-updater/internal/iso"
	"github.com/GideonBear/iso-updater/internal/source"
	"github.com/GideonBear/iso-updater/internal/usb"
)

// Outcome is what a run did for one source.
type Outcome int

const (
	OutcomeUpToDate Outcome = iota
	OutcomeInstalled
	OutcomeUpdated
	// OutcomeRelabelled means the newer release has the installed bytes; only
	// the version label changed.
	OutcomeRelabelled
	// OutcomePlanned is the outcome of every source in a dry run.
	OutcomePlanned
	OutcomeFailed
)

// String returns the string representation of the outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeUpToDate:
		return "up-to-date"
	case OutcomeInstalled:
		return "installed"
	case OutcomeUpdated:
		return "updated"
	case OutcomeRelabelled:
		return "relabelled"
	case OutcomePlanned:
		return "planned"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome for one source id.
type Result struct {
	ID      string
	Outcome Outcome
	// Previous is the installed artifact before the run, if any.
	Previous *iso.InPlace
	// Current is the installed artifact after the run, if any.
	Current *iso.InPlace
	// Superseded is the previous image when the run placed its replacement
	// under another filename. It stays on disk until Prune.
	Superseded *iso.InPlace
	// Plan is set for dry runs.
	Plan *source.Plan
	Err  error
}

// SourceError attributes a failure to one source id.
type SourceError struct {
	ID string
	// Drive is set for failures of the removable-drive pass.
	Drive bool
	Err   error
}

func (e *SourceError) Error() string {
	if e.Drive {
		return fmt.Sprintf("usb %s: %v", e.ID, e.Err)
	}
	return fmt.Sprintf("source %s: %v", e.ID, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Report collects the per-id results of one run.
type Report struct {
	RunID   string
	DryRun  bool
	Results []Result
	// USB is nil when the drive pass did not run.
	USB *usb.Report
	// USBErr is set when the drive could not be located.
	USBErr error
}

// Result returns the result for id.
func (r *Report) Result(id string) (Result, bool) {
	for _, res := range r.Results {
		if res.ID == id {
			return res, true
		}
	}
	return Result{}, false
}

// Superseded returns the images the run replaced, in result order.
func (r *Report) Superseded() []iso.InPlace {
	var old []iso.InPlace
	for _, res := range r.Results {
		if res.Superseded != nil {
			old = append(old, *res.Superseded)
		}
	}
	return old
}

// Failed returns the number of failed sources and drive entries.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			n++
		}
	}
	if r.USB != nil {
		for _, res := range r.USB.Results {
			if res.Action == usb.ActionFailed {
				n++
			}
		}
	}
	if r.USBErr != nil {
		n++
	}
	return n
}

// Changed reports whether the run modified installed state.
func (r *Report) Changed() bool {
	for _, res := range r.Results {
		switch res.Outcome {
		case OutcomeInstalled, OutcomeUpdated, OutcomeRelabelled:
			return true
		}
	}
	if r.USB != nil {
		for _, res := range r.USB.Results {
			if res.Action == usb.ActionCopied || res.Action == usb.ActionRemoved {
				return true
			}
		}
	}
	return false
}

// Err joins every per-id failure into one error, nil when all succeeded.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, &SourceError{ID: res.ID, Err: res.Err})
		}
	}
	if r.USB != nil {
		for _, res := range r.USB.Results {
			if res.Err != nil {
				errs = append(errs, &SourceError{ID: res.ID, Drive: true, Err: res.Err})
			}
		}
	}
	if r.USBErr != nil {
		errs = append(errs, fmt.Errorf("usb: %w", r.USBErr))
	}
	return errors.Join(errs...)
}
