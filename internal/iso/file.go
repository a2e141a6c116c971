// Package iso describes downloaded disk images: the integrity record of an
// artifact and its installed location under a managed directory.
package iso

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// File is the integrity record of one downloaded artifact.
type File struct {
	// Hash is the hex-encoded SHA-256 digest of the whole file.
	Hash string `json:"hash"`
	// Version is the release label, if any. Several different files may
	// share a version.
	Version *string `json:"version,omitempty"`
}

// NewFile hashes the file at path and returns its record.
func NewFile(path string, version *string) (File, error) {
	hash, err := HashFile(path)
	if err != nil {
		return File{}, err
	}
	return File{Hash: hash, Version: cloneVersion(version)}, nil
}

// Equal reports whether two records describe the same bytes.
// The version label is not considered.
func (f File) Equal(other File) bool {
	return strings.EqualFold(f.Hash, other.Hash)
}

// VersionString returns the version label or "" when absent.
func (f File) VersionString() string {
	if f.Version == nil {
		return ""
	}
	return *f.Version
}

// ShortHash returns the first 12 hex characters of the hash for display.
func (f File) ShortHash() string {
	if len(f.Hash) <= 12 {
		return f.Hash
	}
	return f.Hash[:12]
}

// HashFile streams the file at path through SHA-256 and returns the hex digest.
func HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func cloneVersion(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
