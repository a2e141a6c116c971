package verify

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNormalizeFingerprint(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"27deb15644c6b3cf3bd7d291300f846ba25bae09", "27DEB15644C6B3CF3BD7D291300F846BA25BAE09"},
		{"0x27DEB15644C6B3CF3BD7D291300F846BA25BAE09", "27DEB15644C6B3CF3BD7D291300F846BA25BAE09"},
		{" 27DE B156 44C6 B3CF 3BD7  D291 300F 846B A25B AE09 ", "27DEB15644C6B3CF3BD7D291300F846BA25BAE09"},
	}
	for _, tt := range tests {
		if got := NormalizeFingerprint(tt.in); got != tt.want {
			t.Errorf("NormalizeFingerprint(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestKeyringStoreAndLoad(t *testing.T) {
	key := newTestKey(t, "mint")
	keyring := NewKeyring(filepath.Join(t.TempDir(), "keyrings"))

	if keyring.Has(key.fpr) {
		t.Fatal("empty keyring should not have the key")
	}

	if err := keyring.Store(strings.ToLower(key.fpr), key.armoredPublic(t)); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if !keyring.Has(key.fpr) {
		t.Error("Has should report the stored key")
	}
	if filepath.Base(keyring.Path(key.fpr)) != key.fpr+".asc" {
		t.Errorf("Path = %s", keyring.Path(key.fpr))
	}

	entities, err := keyring.Load(key.fpr)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if findEntity(entities, key.fpr) == nil {
		t.Error("loaded keyring should contain the key")
	}
}

func TestKeyringStoreBinary(t *testing.T) {
	key := newTestKey(t, "mint")
	keyring := NewKeyring(t.TempDir())

	if err := keyring.Store(key.fpr, binaryPublic(t, key)); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if _, err := keyring.Load(key.fpr); err != nil {
		t.Errorf("Load: %v", err)
	}
}

func TestKeyringStoreRejectsWrongKey(t *testing.T) {
	wanted := newTestKey(t, "mint")
	other := newTestKey(t, "impostor")
	keyring := NewKeyring(t.TempDir())

	err := keyring.Store(wanted.fpr, other.armoredPublic(t))
	if !errors.Is(err, ErrFingerprintMismatch) {
		t.Fatalf("expected ErrFingerprintMismatch, got %v", err)
	}
	if keyring.Has(wanted.fpr) {
		t.Error("rejected key must not be stored")
	}
}

func TestKeyringStoreRejectsGarbage(t *testing.T) {
	keyring := NewKeyring(t.TempDir())
	if err := keyring.Store("ABCD", []byte("<html>rate limited</html>")); err == nil {
		t.Error("expected error for non-key data")
	}
}

func TestKeyringLoadMissing(t *testing.T) {
	keyring := NewKeyring(t.TempDir())
	if _, err := keyring.Load("ABCD"); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}

func TestKeyringLoadFileWithoutKey(t *testing.T) {
	wanted := newTestKey(t, "mint")
	other := newTestKey(t, "other")
	dir := t.TempDir()
	keyring := NewKeyring(dir)

	// A file named after one key but holding another.
	if err := os.WriteFile(keyring.Path(wanted.fpr), other.armoredPublic(t), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := keyring.Load(wanted.fpr); !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound, got %v", err)
	}
}
