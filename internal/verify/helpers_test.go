package verify

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

// testKey is a freshly generated signing key.
type testKey struct {
	entity *openpgp.Entity
	fpr    string
}

func newTestKey(t *testing.T, name string) testKey {
	t.Helper()
	cfg := &packet.Config{Algorithm: packet.PubKeyAlgoEdDSA}
	entity, err := openpgp.NewEntity(name, "test", name+"@example.test", cfg)
	if err != nil {
		t.Fatalf("NewEntity: %v", err)
	}
	return testKey{entity: entity, fpr: fingerprint(entity)}
}

// armoredPublic returns the armored public key.
func (k testKey) armoredPublic(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		t.Fatalf("armor.Encode: %v", err)
	}
	if err := k.entity.Serialize(w); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close armor: %v", err)
	}
	return buf.Bytes()
}

// binaryPublic returns the unarmored public keys of all given keys.
func binaryPublic(t *testing.T, keys ...testKey) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, k := range keys {
		if err := k.entity.Serialize(&buf); err != nil {
			t.Fatalf("Serialize: %v", err)
		}
	}
	return buf.Bytes()
}

// sign returns a detached signature over data.
func (k testKey) sign(t *testing.T, data []byte, armored bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	var err error
	if armored {
		err = openpgp.ArmoredDetachSign(&buf, k.entity, bytes.NewReader(data), nil)
	} else {
		err = openpgp.DetachSign(&buf, k.entity, bytes.NewReader(data), nil)
	}
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return buf.Bytes()
}

func writeTestFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}
