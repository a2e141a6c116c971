package source

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/GideonBear/iso-updater/internal/config"
	"github.com/GideonBear/iso-updater/internal/iso"
	"github.com/GideonBear/iso-updater/internal/version"
)

const (
	// DefaultMintMirror is the root of the stable release tree.
	DefaultMintMirror = "https://mirrors.edge.kernel.org/linuxmint/stable/"

	// MintSigningKey is the fingerprint of the Linux Mint release signing key.
	MintSigningKey = "27DEB15644C6B3CF3BD7D291300F846BA25BAE09"

	mintManifestName  = "sha256sum.txt"
	mintSignatureName = "sha256sum.txt.gpg"
	mintImageName     = "linuxmint.iso"
)

// LinuxMint tracks the newest stable Linux Mint release of one edition.
type LinuxMint struct {
	Edition Edition `json:"edition"`
	// Mirror overrides DefaultMintMirror. It must end in a slash.
	Mirror string `json:"mirror,omitempty"`
}

// Release is one version directory found on the mirror.
type Release struct {
	Version version.Version
	// Dir is the directory name as published, e.g. "20" for version 20.0.
	Dir string
}

// Latest fetches and verifies the newest release.
func (m *LinuxMint) Latest(ctx context.Context, env *Env, scratch string) (*Artifact, error) {
	release, err := m.latestRelease(ctx, env)
	if err != nil {
		return nil, err
	}
	return m.download(ctx, env, release, scratch)
}

// Updated fetches the newest release only if it is strictly newer than existing.
func (m *LinuxMint) Updated(ctx context.Context, env *Env, existing iso.File, scratch string) (*Artifact, error) {
	current, err := installedVersion(existing)
	if err != nil {
		return nil, err
	}

	release, err := m.latestRelease(ctx, env)
	if err != nil {
		return nil, err
	}

	if !current.Less(release.Version) {
		env.logger().Debug("no newer release", "installed", current, "latest", release.Version)
		return nil, nil
	}

	env.logger().Info("newer release available", "installed", current, "latest", release.Version)
	return m.download(ctx, env, release, scratch)
}

// Check crawls the mirror and compares without downloading.
func (m *LinuxMint) Check(ctx context.Context, env *Env, existing *iso.File) (Plan, error) {
	var current version.Version
	if existing != nil {
		v, err := installedVersion(*existing)
		if err != nil {
			return Plan{}, err
		}
		current = v
	}

	release, err := m.latestRelease(ctx, env)
	if err != nil {
		return Plan{}, err
	}

	switch {
	case existing == nil:
		return Plan{Action: ActionInstall, Version: release.Version.String()}, nil
	case current.Less(release.Version):
		return Plan{Action: ActionUpdate, Version: release.Version.String()}, nil
	default:
		return Plan{Action: ActionNone, Version: current.String()}, nil
	}
}

// Describe returns the edition and mirror.
func (m *LinuxMint) Describe() string {
	return fmt.Sprintf("linux mint %s (%s)", m.Edition, m.mirror())
}

// Releases crawls the mirror and returns every release, sorted ascending
// and deduplicated by version.
func (m *LinuxMint) Releases(ctx context.Context, env *Env) ([]Release, error) {
	root, err := m.root()
	if err != nil {
		return nil, err
	}

	var urls []*url.URL
	for u, err := range env.Crawler.Walk(ctx, root) {
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCrawl, root, err)
		}
		urls = append(urls, u)
	}

	return releasesFromURLs(root, urls)
}

func (m *LinuxMint) latestRelease(ctx context.Context, env *Env) (Release, error) {
	releases, err := m.Releases(ctx, env)
	if err != nil {
		return Release{}, err
	}
	if len(releases) == 0 {
		return Release{}, fmt.Errorf("%w: no versions found on %s", ErrCrawl, m.mirror())
	}
	return releases[len(releases)-1], nil
}

// releasesFromURLs extracts the release directory, the first path segment
// below root, from each URL. A URL without that segment or with an
// unparseable one means the mirror layout is not what we expect.
func releasesFromURLs(root *url.URL, urls []*url.URL) ([]Release, error) {
	depth := len(pathSegments(root.Path))

	releases := make([]Release, 0, len(urls))
	for _, u := range urls {
		segments := pathSegments(u.Path)
		if len(segments) <= depth || segments[depth] == "" {
			return nil, fmt.Errorf("%w: url %s has fewer than %d path segments", ErrCrawl, u, depth+1)
		}

		dir := segments[depth]
		v, err := version.Parse(dir)
		if err != nil {
			return nil, fmt.Errorf("%w: url %s: %w", ErrCrawl, u, err)
		}
		releases = append(releases, Release{Version: v, Dir: dir})
	}

	slices.SortStableFunc(releases, func(a, b Release) int {
		return a.Version.Compare(b.Version)
	})
	releases = slices.CompactFunc(releases, func(a, b Release) bool {
		return a.Version == b.Version
	})

	return releases, nil
}

// pathSegments splits "/a/b/c/" into ["a", "b", "c"].
func pathSegments(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// download fetches the signed manifest, verifies it, then fetches the image
// and checks its hash against the manifest.
func (m *LinuxMint) download(ctx context.Context, env *Env, release Release, scratch string) (*Artifact, error) {
	log := env.logger()

	root, err := m.root()
	if err != nil {
		return nil, err
	}
	base := root.JoinPath(release.Dir)
	imageName := fmt.Sprintf("linuxmint-%s-%s-64bit.iso", release.Dir, m.Edition)

	if err := env.Keys.Retrieve(ctx, MintSigningKey); err != nil {
		return nil, fmt.Errorf("%w: retrieve signing key %s: %w", ErrVerification, MintSigningKey, err)
	}

	manifestPath := filepath.Join(scratch, mintManifestName)
	signaturePath := filepath.Join(scratch, mintSignatureName)

	if err := fetch(ctx, env, base.JoinPath(mintManifestName).String(), manifestPath); err != nil {
		return nil, err
	}
	if err := fetch(ctx, env, base.JoinPath(mintSignatureName).String(), signaturePath); err != nil {
		return nil, err
	}

	if err := env.Verifier.Verify(ctx, MintSigningKey, signaturePath, manifestPath); err != nil {
		return nil, fmt.Errorf("%w: manifest signature for %s: %w", ErrVerification, release.Dir, err)
	}
	log.Info("manifest signature valid", "version", release.Version, "key", MintSigningKey)

	manifestText, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read manifest: %w", ErrFetch, err)
	}
	manifest, err := ParseManifest(string(manifestText))
	if err != nil {
		return nil, err
	}
	entry, err := manifest.Lookup(m.Edition)
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, manifestPath)
	}

	imagePath := filepath.Join(scratch, mintImageName)
	log.Info("downloading image", "url", base.JoinPath(imageName).String())
	if err := fetch(ctx, env, base.JoinPath(imageName).String(), imagePath); err != nil {
		return nil, err
	}

	log.Debug("hashing image", "path", imagePath)
	file, err := iso.NewFile(imagePath, iso.StringPtr(release.Version.String()))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	if !strings.EqualFold(file.Hash, entry.Hash) {
		os.Remove(imagePath)
		return nil, fmt.Errorf("%w: hash mismatch for %s: expected %s, got %s",
			ErrVerification, imageName, entry.Hash, file.Hash)
	}
	log.Info("hash matches", "hash", file.Hash)

	return &Artifact{File: file, Path: imagePath, Filename: imageName}, nil
}

func fetch(ctx context.Context, env *Env, rawURL, dest string) error {
	if err := env.Fetcher.Fetch(ctx, rawURL, dest); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFetch, rawURL, err)
	}
	return nil
}

func installedVersion(existing iso.File) (version.Version, error) {
	if existing.Version == nil {
		return version.Version{}, fmt.Errorf("%w: installed image %s has no version", config.ErrConfig, existing.ShortHash())
	}
	return version.Parse(*existing.Version)
}

func (m *LinuxMint) mirror() string {
	if m.Mirror != "" {
		return m.Mirror
	}
	return DefaultMintMirror
}

func (m *LinuxMint) root() (*url.URL, error) {
	u, err := url.Parse(m.mirror())
	if err != nil {
		return nil, fmt.Errorf("%w: mirror %q: %v", config.ErrConfig, m.mirror(), err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

func (m *LinuxMint) validate() error {
	if _, err := ParseEdition(string(m.Edition)); err != nil {
		return fmt.Errorf("%w: %v", config.ErrConfig, err)
	}
	u, err := url.Parse(m.mirror())
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: mirror %q must be an http or https URL", config.ErrConfig, m.mirror())
	}
	return nil
}
