package source

import (
	"context"
	"iter"
	"net/url"

	"github.com/GideonBear/iso-updater/internal/iso"
	"github.com/GideonBear/iso-updater/internal/logging"
)

// Fetcher retrieves the bytes at url into the file at dest.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// Crawler enumerates every URL reachable below root by following
// directory-listing links. The sequence yields a non-nil error at most once,
// after which it stops.
type Crawler interface {
	Walk(ctx context.Context, root *url.URL) iter.Seq2[*url.URL, error]
}

// SignatureVerifier checks a detached signature over the file at dataPath.
// keyID is the fingerprint of the only key allowed to have made the signature.
type SignatureVerifier interface {
	Verify(ctx context.Context, keyID, signaturePath, dataPath string) error
}

// KeyRetriever makes the public key keyID available to the SignatureVerifier.
type KeyRetriever interface {
	Retrieve(ctx context.Context, keyID string) error
}

// Env bundles the collaborators a provider needs to fetch and verify.
type Env struct {
	Fetcher  Fetcher
	Crawler  Crawler
	Verifier SignatureVerifier
	Keys     KeyRetriever
	Logger   logging.Logger
}

func (e *Env) logger() logging.Logger {
	if e == nil {
		return logging.Nop()
	}
	return logging.OrNop(e.Logger)
}

// Artifact is a verified file sitting in scratch space, ready for placement.
type Artifact struct {
	File iso.File
	// Path is the artifact's location in scratch space.
	Path string
	// Filename is the name the provider suggests for the managed directory.
	Filename string
}

// Action is the outcome of a Check.
type Action int

const (
	// ActionNone means the installed artifact is current.
	ActionNone Action = iota
	// ActionInstall means nothing is installed yet.
	ActionInstall
	// ActionUpdate means a strictly newer artifact exists.
	ActionUpdate
)

// String returns the string representation of the action
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "up-to-date"
	case ActionInstall:
		return "install"
	case ActionUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Plan describes what an update would do without downloading artifacts.
type Plan struct {
	Action Action
	// Version is the version that would be installed, if known.
	Version string
}

// Source is implemented by every provider variant.
type Source interface {
	// Latest fetches and verifies the newest artifact into scratch.
	Latest(ctx context.Context, env *Env, scratch string) (*Artifact, error)

	// Updated returns a new artifact only if one strictly newer than existing
	// exists, and nil otherwise.
	Updated(ctx context.Context, env *Env, existing iso.File, scratch string) (*Artifact, error)

	// Check reports what Latest or Updated would do. existing is nil when
	// nothing is installed.
	Check(ctx context.Context, env *Env, existing *iso.File) (Plan, error)

	// Describe returns a one-line human-readable description.
	Describe() string
}
