package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/GideonBear/iso-updater/internal/logging"
)

// Backend selects how detached signatures are verified.
type Backend string

const (
	// BackendOpenPGP verifies in process against the keyrings directory.
	BackendOpenPGP Backend = "openpgp"
	// BackendGPG shells out to gpg(1) and its default keyring.
	BackendGPG Backend = "gpg"
)

// Settings represents the complete iso-updater settings file.
type Settings struct {
	USB      USBSettings
	Verify   VerifySettings
	Download DownloadSettings
	Log      LogSettings

	// History commits every saved state file into a git repository.
	History bool
}

// USBSettings locate the removable drive that mirrors the managed images.
type USBSettings struct {
	// Path is the drive directory. Empty means auto detection, if enabled.
	Path string
	// AutoDetect scans mounted partitions for one containing Marker.
	AutoDetect bool
	// Marker is the directory that identifies the drive, e.g. "ventoy".
	Marker string
}

// VerifySettings configure signature verification and key retrieval.
type VerifySettings struct {
	Backend   Backend
	Keyserver string
}

// DownloadSettings configure the HTTP transport.
type DownloadSettings struct {
	Retries int
	// Timeout bounds page requests completely and image downloads only
	// while they make no progress.
	Timeout   time.Duration
	UserAgent string
}

// LogSettings configure the log output.
type LogSettings struct {
	Level  string
	Format string
	// File also appends log records to logs/iso-updater.log.
	File bool
}

// Defaults returns the settings used when no settings file exists.
func Defaults() *Settings {
	return &Settings{
		USB: USBSettings{
			AutoDetect: true,
			Marker:     "ventoy",
		},
		Verify: VerifySettings{
			Backend:   BackendOpenPGP,
			Keyserver: "hkps://keys.openpgp.org",
		},
		Download: DownloadSettings{
			Retries:   3,
			Timeout:   30 * time.Minute,
			UserAgent: "iso-updater",
		},
		Log: LogSettings{
			Level:  "info",
			Format: "text",
			File:   true,
		},
		History: true,
	}
}

// Validate performs basic validation on Settings.
func (s *Settings) Validate() error {
	if s.USB.Path != "" && !filepath.IsAbs(s.USB.Path) {
		return &ValidationError{Field: "usb.path", Message: fmt.Sprintf("must be absolute (got %q)", s.USB.Path)}
	}
	if s.USB.AutoDetect && s.USB.Marker == "" {
		return &ValidationError{Field: "usb.marker", Message: "cannot be empty when auto_detect is enabled"}
	}
	if strings.ContainsAny(s.USB.Marker, `/\`) {
		return &ValidationError{Field: "usb.marker", Message: "must be a plain directory name"}
	}

	switch s.Verify.Backend {
	case BackendOpenPGP, BackendGPG:
	default:
		return &ValidationError{Field: "verify.backend", Message: fmt.Sprintf("unknown backend %q (expected openpgp or gpg)", s.Verify.Backend)}
	}
	if err := validateKeyserver(s.Verify.Keyserver); err != nil {
		return &ValidationError{Field: "verify.keyserver", Message: err.Error()}
	}

	if s.Download.Retries < 0 || s.Download.Retries > MaxRetries {
		return &ValidationError{Field: "download.retries", Message: fmt.Sprintf("must be between 0 and %d", MaxRetries)}
	}
	if s.Download.Timeout <= 0 {
		return &ValidationError{Field: "download.timeout", Message: "must be positive"}
	}

	if _, err := logging.ParseLevel(s.Log.Level); err != nil {
		return &ValidationError{Field: "log.level", Message: err.Error()}
	}
	if _, err := logging.ParseFormat(s.Log.Format); err != nil {
		return &ValidationError{Field: "log.format", Message: err.Error()}
	}

	return nil
}

// validateKeyserver accepts hkp, hkps, http and https URLs.
func validateKeyserver(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid keyserver URL: %w", err)
	}
	switch u.Scheme {
	case "hkp", "hkps", "http", "https":
	default:
		return fmt.Errorf("keyserver must use hkps://, hkp://, https:// or http:// (got %q)", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("keyserver %q has no host", raw)
	}
	return nil
}

// Paths is the layout of one base directory.
type Paths struct {
	Base string
}

// ResolvePaths returns the base directory from ISO_UPDATER_DIR, or ~/.isos.
func ResolvePaths() (Paths, error) {
	if dir := os.Getenv(EnvDir); dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return Paths{}, fmt.Errorf("resolve %s: %w", EnvDir, err)
		}
		return Paths{Base: abs}, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, fmt.Errorf("cannot determine home directory: %w", err)
	}
	return Paths{Base: filepath.Join(home, DirName)}, nil
}

func (p Paths) Data() string     { return filepath.Join(p.Base, DataFile) }
func (p Paths) Settings() string { return filepath.Join(p.Base, SettingsFile) }
func (p Paths) Images() string   { return filepath.Join(p.Base, ImagesDir) }
func (p Paths) Keyrings() string { return filepath.Join(p.Base, KeyringsDir) }
func (p Paths) Logs() string     { return filepath.Join(p.Base, LogsDir) }
func (p Paths) LogFile() string  { return filepath.Join(p.Base, LogsDir, LogFile) }
func (p Paths) History() string  { return filepath.Join(p.Base, HistoryDir) }
func (p Paths) Lock() string     { return filepath.Join(p.Base, LockFile) }
