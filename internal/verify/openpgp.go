package verify

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp" //nolint:staticcheck // Using ProtonMail's maintained fork
)

// OpenPGP verifies detached signatures in process against a Keyring.
type OpenPGP struct {
	keyring *Keyring
}

// NewOpenPGP creates a verifier reading keys from keyring.
func NewOpenPGP(keyring *Keyring) *OpenPGP {
	return &OpenPGP{keyring: keyring}
}

// Verify checks that signaturePath is a valid signature over dataPath made
// by the key keyID (or one of its subkeys).
func (v *OpenPGP) Verify(ctx context.Context, keyID, signaturePath, dataPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	keyring, err := v.keyring.Load(keyID)
	if err != nil {
		return fmt.Errorf("load keyring: %w", err)
	}

	dataFile, err := os.Open(dataPath)
	if err != nil {
		return fmt.Errorf("open data: %w", err)
	}
	defer dataFile.Close()

	sigFile, err := os.Open(signaturePath)
	if err != nil {
		return fmt.Errorf("open signature: %w", err)
	}
	defer sigFile.Close()

	// Try armored first, then binary
	signer, err := openpgp.CheckArmoredDetachedSignature(keyring, dataFile, sigFile, nil)
	if err != nil {
		if _, seekErr := dataFile.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("rewind data: %w", seekErr)
		}
		if _, seekErr := sigFile.Seek(0, io.SeekStart); seekErr != nil {
			return fmt.Errorf("rewind signature: %w", seekErr)
		}
		signer, err = openpgp.CheckDetachedSignature(keyring, dataFile, sigFile, nil)
	}
	if err != nil {
		return fmt.Errorf("verify signature: %w", err)
	}

	if signer == nil || signer.PrimaryKey == nil || fingerprint(signer) != NormalizeFingerprint(keyID) {
		return fmt.Errorf("%w: wanted %s", ErrWrongSigner, NormalizeFingerprint(keyID))
	}
	return nil
}
