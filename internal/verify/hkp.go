package verify

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/GideonBear/iso-updater/internal/logging"
)

// Getter returns the body of a URL. *fetch.Downloader satisfies it.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// HKPRetriever downloads public keys from an HKP keyserver into a Keyring.
type HKPRetriever struct {
	keyring   *Keyring
	getter    Getter
	keyserver string
	logger    logging.Logger
}

// NewHKPRetriever creates a retriever for keyserver, e.g.
// "hkps://keys.openpgp.org".
func NewHKPRetriever(keyring *Keyring, getter Getter, keyserver string, logger logging.Logger) *HKPRetriever {
	return &HKPRetriever{
		keyring:   keyring,
		getter:    getter,
		keyserver: keyserver,
		logger:    logging.OrNop(logger),
	}
}

// Retrieve makes keyID available in the keyring. A key already present is
// not downloaded again.
func (r *HKPRetriever) Retrieve(ctx context.Context, keyID string) error {
	if r.keyring.Has(keyID) {
		r.logger.Debug("signing key cached", "key", NormalizeFingerprint(keyID))
		return nil
	}

	lookup, err := lookupURL(r.keyserver, keyID)
	if err != nil {
		return err
	}

	r.logger.Info("retrieving signing key", "key", NormalizeFingerprint(keyID), "keyserver", r.keyserver)
	data, err := r.getter.Get(ctx, lookup)
	if err != nil {
		return fmt.Errorf("fetch key %s: %w", NormalizeFingerprint(keyID), err)
	}

	if err := r.keyring.Store(keyID, data); err != nil {
		return fmt.Errorf("store key %s: %w", NormalizeFingerprint(keyID), err)
	}
	return nil
}

// lookupURL maps an hkp(s) keyserver to its HTTP lookup endpoint. Plain hkp
// without a port uses the registered HKP port 11371.
func lookupURL(keyserver, keyID string) (string, error) {
	u, err := url.Parse(keyserver)
	if err != nil {
		return "", fmt.Errorf("invalid keyserver %q: %w", keyserver, err)
	}

	switch u.Scheme {
	case "hkps", "https":
		u.Scheme = "https"
	case "hkp":
		u.Scheme = "http"
		if u.Port() == "" {
			u.Host = net.JoinHostPort(u.Hostname(), "11371")
		}
	case "http":
	default:
		return "", fmt.Errorf("unsupported keyserver scheme %q", u.Scheme)
	}

	u.Path = "/pks/lookup"
	u.RawQuery = url.Values{
		"op":      {"get"},
		"options": {"mr"},
		"search":  {"0x" + NormalizeFingerprint(keyID)},
	}.Encode()
	return u.String(), nil
}
