package verify

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// Keyring stores public keys as <FINGERPRINT>.asc files in a directory.
type Keyring struct {
	dir string
}

// NewKeyring returns a keyring rooted at dir. The directory is created on
// first Store.
func NewKeyring(dir string) *Keyring {
	return &Keyring{dir: dir}
}

// NormalizeFingerprint upper-cases a fingerprint and strips spaces and a
// leading "0x".
func NormalizeFingerprint(fpr string) string {
	fpr = strings.ReplaceAll(strings.TrimSpace(fpr), " ", "")
	fpr = strings.TrimPrefix(strings.TrimPrefix(fpr, "0x"), "0X")
	return strings.ToUpper(fpr)
}

// Path returns the file holding the key with the given fingerprint.
func (k *Keyring) Path(fpr string) string {
	return filepath.Join(k.dir, NormalizeFingerprint(fpr)+".asc")
}

// Has reports whether a non-empty key file exists for fpr.
func (k *Keyring) Has(fpr string) bool {
	info, err := os.Stat(k.Path(fpr))
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}

// Load reads the key for fpr, armored or binary.
func (k *Keyring) Load(fpr string) (openpgp.EntityList, error) {
	data, err := os.ReadFile(k.Path(fpr))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, NormalizeFingerprint(fpr))
	}
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}

	keyring, err := parseKeys(data)
	if err != nil {
		return nil, err
	}
	if findEntity(keyring, fpr) == nil {
		return nil, fmt.Errorf("%w: %s not in %s", ErrKeyNotFound, NormalizeFingerprint(fpr), k.Path(fpr))
	}
	return keyring, nil
}

// Store saves key material for fpr after checking that it contains that key.
// The file is written atomically.
func (k *Keyring) Store(fpr string, data []byte) error {
	keyring, err := parseKeys(data)
	if err != nil {
		return err
	}
	if findEntity(keyring, fpr) == nil {
		return fmt.Errorf("%w: wanted %s, got %s", ErrFingerprintMismatch, NormalizeFingerprint(fpr), fingerprints(keyring))
	}

	if err := os.MkdirAll(k.dir, 0755); err != nil {
		return fmt.Errorf("create keyring dir: %w", err)
	}

	path := k.Path(fpr)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write keyring file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename keyring file: %w", err)
	}
	return nil
}

// parseKeys reads an armored keyring, falling back to binary.
func parseKeys(data []byte) (openpgp.EntityList, error) {
	keyring, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		keyring, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("read keyring: %w", err)
		}
	}
	if len(keyring) == 0 {
		return nil, fmt.Errorf("keyring is empty")
	}
	return keyring, nil
}

// findEntity returns the entity whose primary key has fingerprint fpr.
func findEntity(keyring openpgp.EntityList, fpr string) *openpgp.Entity {
	want := NormalizeFingerprint(fpr)
	for _, e := range keyring {
		if e.PrimaryKey != nil && fingerprint(e) == want {
			return e
		}
	}
	return nil
}

func fingerprint(e *openpgp.Entity) string {
	return strings.ToUpper(hex.EncodeToString(e.PrimaryKey.Fingerprint))
}

func fingerprints(keyring openpgp.EntityList) string {
	var fprs []string
	for _, e := range keyring {
		if e.PrimaryKey != nil {
			fprs = append(fprs, fingerprint(e))
		}
	}
	return strings.Join(fprs, ", ")
}
