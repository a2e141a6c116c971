package iso

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrPlacement is returned when an artifact cannot be moved into the managed directory.
var ErrPlacement = errors.New("placement failed")

// InPlace is an artifact that has been moved into a managed directory.
type InPlace struct {
	File File `json:"iso_file"`
	// Filename is relative to the managed directory and may contain subdirectories.
	Filename string `json:"filename"`
}

// Path returns the absolute location of the artifact under dir.
func (p InPlace) Path(dir string) string {
	return filepath.Join(dir, filepath.FromSlash(p.Filename))
}

// Put renames the verified artifact at src to targetDir/targetFilename and
// returns the installed record. The rename never copies, so src and
// targetDir must be on the same filesystem. On failure src is left untouched.
func Put(file File, src, targetDir, targetFilename string) (InPlace, error) {
	rel, err := CleanRelative(targetFilename)
	if err != nil {
		return InPlace{}, err
	}

	info, err := os.Stat(targetDir)
	if err != nil {
		return InPlace{}, fmt.Errorf("%w: target directory %s: %v", ErrPlacement, targetDir, err)
	}
	if !info.IsDir() {
		return InPlace{}, fmt.Errorf("%w: target %s is not a directory", ErrPlacement, targetDir)
	}

	dest := filepath.Join(targetDir, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return InPlace{}, fmt.Errorf("%w: create parent of %s: %v", ErrPlacement, dest, err)
	}

	if err := os.Rename(src, dest); err != nil {
		return InPlace{}, fmt.Errorf("%w: rename %s to %s: %v", ErrPlacement, src, dest, err)
	}

	return InPlace{File: file, Filename: filepath.ToSlash(rel)}, nil
}

// Remove deletes the artifact from dir. A missing file is not an error.
func (p InPlace) Remove(dir string) error {
	if err := os.Remove(p.Path(dir)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", p.Filename, err)
	}
	return nil
}

// CleanRelative returns name as a clean path below a managed directory. It
// rejects absolute paths and paths escaping the directory.
func CleanRelative(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("%w: empty target filename", ErrPlacement)
	}
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: illegal target filename %q", ErrPlacement, name)
	}
	return clean, nil
}
