package source

import (
	"context"
	"errors"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/GideonBear/iso-updater/internal/config"
	"github.com/GideonBear/iso-updater/internal/iso"
	"github.com/GideonBear/iso-updater/internal/version"
)

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestReleasesFromURLs(t *testing.T) {
	root := mustURL(t, "https://mirrors.edge.kernel.org/linuxmint/stable/")

	var urls []*url.URL
	for _, dir := range []string{"22.1", "19.3", "20", "20.1", "20.2", "20.3", "21", "21.1", "21.2", "21.3", "22"} {
		urls = append(urls,
			mustURL(t, root.String()+dir+"/"),
			mustURL(t, root.String()+dir+"/sha256sum.txt"),
			mustURL(t, root.String()+dir+"/linuxmint-"+dir+"-cinnamon-64bit.iso"),
		)
	}

	releases, err := releasesFromURLs(root, urls)
	if err != nil {
		t.Fatalf("releasesFromURLs: %v", err)
	}

	want := []string{"19.3", "20.0", "20.1", "20.2", "20.3", "21.0", "21.1", "21.2", "21.3", "22.0", "22.1"}
	if len(releases) != len(want) {
		t.Fatalf("got %d releases, want %d: %v", len(releases), len(want), releases)
	}
	for i, r := range releases {
		if r.Version.String() != want[i] {
			t.Errorf("releases[%d] = %s, want %s", i, r.Version, want[i])
		}
	}
	if releases[1].Dir != "20" {
		t.Errorf("20.0 should keep its published directory name, got %q", releases[1].Dir)
	}
}

func TestReleasesFromURLsErrors(t *testing.T) {
	root := mustURL(t, "https://mirror.test/linuxmint/stable/")

	tests := []struct {
		name string
		url  string
	}{
		{"too shallow", "https://mirror.test/linuxmint/"},
		{"the root itself", "https://mirror.test/linuxmint/stable/"},
		{"unparseable directory", "https://mirror.test/linuxmint/stable/beta/"},
		{"stray file", "https://mirror.test/linuxmint/stable/README.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			urls := []*url.URL{mustURL(t, "https://mirror.test/linuxmint/stable/22.1/"), mustURL(t, tt.url)}
			_, err := releasesFromURLs(root, urls)
			if !errors.Is(err, ErrCrawl) {
				t.Errorf("expected ErrCrawl, got %v", err)
			}
		})
	}
}

func TestLinuxMintLatest(t *testing.T) {
	mirror := newMintMirror("21.3", "22", "22.1")
	scratch := t.TempDir()

	artifact, err := mirror.source(EditionMate).Latest(context.Background(), mirror.env(), scratch)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}

	if artifact.File.VersionString() != "22.1" {
		t.Errorf("version = %q, want 22.1", artifact.File.VersionString())
	}
	if artifact.Filename != "linuxmint-22.1-mate-64bit.iso" {
		t.Errorf("filename = %q", artifact.Filename)
	}
	if artifact.File.Hash != sha256Hex("image 22.1 mate") {
		t.Errorf("hash = %s", artifact.File.Hash)
	}
	if !strings.HasPrefix(artifact.Path, scratch) {
		t.Errorf("artifact %s should live in scratch %s", artifact.Path, scratch)
	}
	if mirror.verifier.calls != 1 {
		t.Errorf("verifier called %d times, want 1", mirror.verifier.calls)
	}
}

func TestLinuxMintLatestUsesPublishedDirectory(t *testing.T) {
	mirror := newMintMirror("21.3", "22")

	artifact, err := mirror.source(EditionXfce).Latest(context.Background(), mirror.env(), t.TempDir())
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if artifact.File.VersionString() != "22.0" {
		t.Errorf("version tag = %q, want canonical 22.0", artifact.File.VersionString())
	}
	if !mirror.fetcher.requested(testMirrorRoot + "22/linuxmint-22-xfce-64bit.iso") {
		t.Error("image should be fetched from the published directory name")
	}
}

func TestLinuxMintHashMismatch(t *testing.T) {
	mirror := newMintMirror("22.1")
	imageURL := testMirrorRoot + "22.1/linuxmint-22.1-cinnamon-64bit.iso"
	mirror.fetcher.files[imageURL] = "tampered bytes"
	scratch := t.TempDir()

	artifact, err := mirror.source(EditionCinnamon).Latest(context.Background(), mirror.env(), scratch)
	if !errors.Is(err, ErrVerification) {
		t.Fatalf("expected ErrVerification, got %v", err)
	}
	if artifact != nil {
		t.Error("no artifact may be returned on hash mismatch")
	}

	entries, _ := os.ReadDir(scratch)
	for _, e := range entries {
		if e.Name() == mintImageName {
			t.Error("mismatched image should be removed from scratch")
		}
	}
}

func TestLinuxMintBadSignature(t *testing.T) {
	mirror := newMintMirror("22.1")
	mirror.verifier.err = errBadSignature

	_, err := mirror.source(EditionCinnamon).Latest(context.Background(), mirror.env(), t.TempDir())
	if !errors.Is(err, ErrVerification) {
		t.Fatalf("expected ErrVerification, got %v", err)
	}
	if mirror.fetcher.requested(testMirrorRoot + "22.1/linuxmint-22.1-cinnamon-64bit.iso") {
		t.Error("image must not be downloaded when the manifest signature is bad")
	}
}

func TestLinuxMintKeyRetrievalFailure(t *testing.T) {
	mirror := newMintMirror("22.1")
	mirror.keys.err = errors.New("keyserver unreachable")

	_, err := mirror.source(EditionCinnamon).Latest(context.Background(), mirror.env(), t.TempDir())
	if !errors.Is(err, ErrVerification) {
		t.Fatalf("expected ErrVerification, got %v", err)
	}
	if mirror.verifier.calls != 0 {
		t.Error("verifier should not run without the key")
	}
}

func TestLinuxMintMissingEdition(t *testing.T) {
	mirror := newMintMirror("22.1")
	mirror.fetcher.files[testMirrorRoot+"22.1/sha256sum.txt"] =
		sha256Hex("x") + " *linuxmint-22.1-xfce-64bit.iso\n"

	_, err := mirror.source(EditionCinnamon).Latest(context.Background(), mirror.env(), t.TempDir())
	if !errors.Is(err, ErrCrawl) {
		t.Fatalf("expected ErrCrawl, got %v", err)
	}
}

func TestLinuxMintCrawlFailures(t *testing.T) {
	t.Run("transport error", func(t *testing.T) {
		mirror := newMintMirror("22.1")
		mirror.crawler.err = errors.New("connection reset")

		_, err := mirror.source(EditionCinnamon).Latest(context.Background(), mirror.env(), t.TempDir())
		if !errors.Is(err, ErrCrawl) {
			t.Fatalf("expected ErrCrawl, got %v", err)
		}
	})

	t.Run("no versions", func(t *testing.T) {
		mirror := newMintMirror()

		_, err := mirror.source(EditionCinnamon).Latest(context.Background(), mirror.env(), t.TempDir())
		if !errors.Is(err, ErrCrawl) {
			t.Fatalf("expected ErrCrawl, got %v", err)
		}
	})

	t.Run("missing manifest", func(t *testing.T) {
		mirror := newMintMirror("22.1")
		delete(mirror.fetcher.files, testMirrorRoot+"22.1/sha256sum.txt")

		_, err := mirror.source(EditionCinnamon).Latest(context.Background(), mirror.env(), t.TempDir())
		if !errors.Is(err, ErrFetch) {
			t.Fatalf("expected ErrFetch, got %v", err)
		}
	})
}

func TestLinuxMintUpdated(t *testing.T) {
	tests := []struct {
		name      string
		installed string
		wantNew   bool
	}{
		{"older installed", "22.0", true},
		{"same version", "22.1", false},
		{"newer installed", "23.0", false},
		{"numeric not lexical", "9.9", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mirror := newMintMirror("21.3", "22.1")
			existing := iso.File{Hash: "old", Version: iso.StringPtr(tt.installed)}

			artifact, err := mirror.source(EditionCinnamon).Updated(context.Background(), mirror.env(), existing, t.TempDir())
			if err != nil {
				t.Fatalf("Updated: %v", err)
			}

			if tt.wantNew {
				if artifact == nil {
					t.Fatal("expected an update")
				}
				if artifact.File.VersionString() != "22.1" {
					t.Errorf("version = %s, want 22.1", artifact.File.VersionString())
				}
				return
			}

			if artifact != nil {
				t.Errorf("expected no update, got %+v", artifact)
			}
			if len(mirror.fetcher.requests) != 0 {
				t.Errorf("nothing should be downloaded when current, got %v", mirror.fetcher.requests)
			}
		})
	}
}

func TestLinuxMintUpdatedRequiresVersion(t *testing.T) {
	mirror := newMintMirror("22.1")
	src := mirror.source(EditionCinnamon)

	_, err := src.Updated(context.Background(), mirror.env(), iso.File{Hash: "old"}, t.TempDir())
	if !errors.Is(err, config.ErrConfig) {
		t.Errorf("missing version: expected ErrConfig, got %v", err)
	}

	_, err = src.Updated(context.Background(), mirror.env(), iso.File{Hash: "old", Version: iso.StringPtr("latest")}, t.TempDir())
	if !errors.Is(err, version.ErrInvalidVersion) {
		t.Errorf("bad version: expected ErrInvalidVersion, got %v", err)
	}
}

func TestLinuxMintCheck(t *testing.T) {
	mirror := newMintMirror("21.3", "22.1")
	src := mirror.source(EditionCinnamon)
	ctx := context.Background()

	plan, err := src.Check(ctx, mirror.env(), nil)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if plan.Action != ActionInstall || plan.Version != "22.1" {
		t.Errorf("fresh plan = %+v", plan)
	}

	plan, err = src.Check(ctx, mirror.env(), &iso.File{Hash: "h", Version: iso.StringPtr("21.3")})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if plan.Action != ActionUpdate {
		t.Errorf("outdated plan = %+v", plan)
	}

	plan, err = src.Check(ctx, mirror.env(), &iso.File{Hash: "h", Version: iso.StringPtr("22.1")})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if plan.Action != ActionNone {
		t.Errorf("current plan = %+v", plan)
	}

	if len(mirror.fetcher.requests) != 0 {
		t.Errorf("Check must not download, got %v", mirror.fetcher.requests)
	}
}
