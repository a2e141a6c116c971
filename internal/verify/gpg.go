package verify

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/GideonBear/iso-updater/internal/logging"
)

// GPG verifies signatures and receives keys by running gpg(1) against the
// user's default keyring.
type GPG struct {
	bin       string
	keyserver string
	logger    logging.Logger
}

// NewGPG creates a gpg backend. bin defaults to "gpg" on PATH.
func NewGPG(bin, keyserver string, logger logging.Logger) *GPG {
	if bin == "" {
		bin = "gpg"
	}
	return &GPG{bin: bin, keyserver: keyserver, logger: logging.OrNop(logger)}
}

// Retrieve receives keyID from the keyserver unless gpg already has it.
func (g *GPG) Retrieve(ctx context.Context, keyID string) error {
	fpr := NormalizeFingerprint(keyID)

	if _, err := g.run(ctx, "--list-keys", fpr); err == nil {
		g.logger.Debug("signing key present in gpg keyring", "key", fpr)
		return nil
	}

	g.logger.Info("receiving signing key", "key", fpr, "keyserver", g.keyserver)
	if _, err := g.run(ctx, "--keyserver", g.keyserver, "--recv-key", fpr); err != nil {
		return fmt.Errorf("gpg --recv-key %s: %w", fpr, err)
	}
	return nil
}

// Verify runs gpg --verify and requires a VALIDSIG status line naming keyID
// as the signing key or its primary key. gpg exits non-zero on a bad
// signature; a good signature from another key in the keyring is rejected
// here.
func (g *GPG) Verify(ctx context.Context, keyID, signaturePath, dataPath string) error {
	out, err := g.run(ctx, "--status-fd", "1", "--verify", signaturePath, dataPath)
	if err != nil {
		return fmt.Errorf("gpg --verify: %w", err)
	}

	want := NormalizeFingerprint(keyID)
	signers := validSigners(out)
	for _, fpr := range signers {
		if fpr == want {
			return nil
		}
	}
	if len(signers) == 0 {
		return fmt.Errorf("gpg --verify: no valid signature reported")
	}
	return fmt.Errorf("%w: wanted %s, got %s", ErrWrongSigner, want, strings.Join(signers, ", "))
}

// validSigners extracts the signing and primary key fingerprints from
// "[GNUPG:] VALIDSIG <fpr> <date> <ts> <expire> <ver> <res> <pk> <hash> <class> <primary-fpr>".
func validSigners(status []byte) []string {
	var fprs []string
	scanner := bufio.NewScanner(bytes.NewReader(status))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 3 || fields[0] != "[GNUPG:]" || fields[1] != "VALIDSIG" {
			continue
		}
		fprs = append(fprs, NormalizeFingerprint(fields[2]))
		if len(fields) >= 12 {
			fprs = append(fprs, NormalizeFingerprint(fields[11]))
		}
	}
	return fprs
}

// run executes gpg in batch mode and returns stdout. stderr is included in
// the error.
func (g *GPG) run(ctx context.Context, args ...string) ([]byte, error) {
	args = append([]string{"--batch", "--no-tty"}, args...)
	cmd := exec.CommandContext(ctx, g.bin, args...)
	cmd.Env = append(os.Environ(), "LC_ALL=C")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return stdout.Bytes(), err
		}
		return stdout.Bytes(), fmt.Errorf("%w: %s", err, msg)
	}
	return stdout.Bytes(), nil
}
