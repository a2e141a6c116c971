// Package verify checks detached OpenPGP signatures and obtains the public
// keys they are checked against.
//
// Two backends implement the same pair of operations:
//
//   - OpenPGP verifies in process with ProtonMail/go-crypto against armored
//     keys kept one per fingerprint in a keyring directory, and HKPRetriever
//     downloads missing keys from a keyserver.
//   - GPG runs gpg(1) against the user's default keyring, receiving keys
//     with --recv-key and verifying with --verify.
//
// In both cases a signature only counts when it was made by the expected
// key: a valid signature from any other key in the keyring is rejected.
package verify

import "errors"

var (
	// ErrKeyNotFound means the keyring holds no key with the fingerprint.
	ErrKeyNotFound = errors.New("key not found")
	// ErrWrongSigner means the signature is valid but made by another key.
	ErrWrongSigner = errors.New("signature made by unexpected key")
	// ErrFingerprintMismatch means a retrieved key is not the one requested.
	ErrFingerprintMismatch = errors.New("retrieved key fingerprint mismatch")
)
