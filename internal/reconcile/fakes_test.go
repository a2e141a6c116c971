package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"iter"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/GideonBear/iso-updater/internal/iso"
	"github.com/GideonBear/iso-updater/internal/source"
	"github.com/GideonBear/iso-updater/internal/state"
	"github.com/GideonBear/iso-updater/internal/usb"
)

const (
	goodMirror = "https://mirror.test/linuxmint/stable/"
	badMirror  = "https://tampered.test/linuxmint/stable/"
	tailsURL   = "https://example.test/tails.iso"
)

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// fakeNet serves files and directory listings from memory.
type fakeNet struct {
	mu       sync.Mutex
	files    map[string]string
	listings map[string][]string
	requests []string
}

func newFakeNet() *fakeNet {
	return &fakeNet{
		files:    map[string]string{},
		listings: map[string][]string{},
	}
}

func (n *fakeNet) Fetch(ctx context.Context, rawURL, dest string) error {
	n.mu.Lock()
	n.requests = append(n.requests, rawURL)
	content, ok := n.files[rawURL]
	n.mu.Unlock()

	if !ok {
		return fmt.Errorf("unexpected status code: 404")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte(content), 0644)
}

func (n *fakeNet) Walk(ctx context.Context, root *url.URL) iter.Seq2[*url.URL, error] {
	return func(yield func(*url.URL, error) bool) {
		n.mu.Lock()
		urls := n.listings[root.String()]
		n.mu.Unlock()

		if urls == nil {
			yield(nil, fmt.Errorf("list %s: unexpected status code: 404", root))
			return
		}
		for _, raw := range urls {
			u, err := url.Parse(raw)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(u, nil) {
				return
			}
		}
	}
}

// fetchedImages returns the requested URLs ending in .iso.
func (n *fakeNet) fetchedImages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var images []string
	for _, r := range n.requests {
		if strings.HasSuffix(r, ".iso") {
			images = append(images, r)
		}
	}
	return images
}

func mintImage(dir string, edition source.Edition) string {
	return fmt.Sprintf("linux mint %s %s", dir, edition)
}

func mintFilename(dir string, edition source.Edition) string {
	return fmt.Sprintf("linuxmint-%s-%s-64bit.iso", dir, edition)
}

// publishMint adds a signed release to the mirror at root. The manifest
// entry for tamper, if set, does not match the published image.
func (n *fakeNet) publishMint(root, dir string, tamper source.Edition) {
	base := root + dir + "/"
	n.listings[root] = append(n.listings[root], base)

	var manifest strings.Builder
	for _, edition := range source.Editions {
		name := mintFilename(dir, edition)
		body := mintImage(dir, edition)
		n.files[base+name] = body
		n.listings[root] = append(n.listings[root], base+name)

		hash := sha256Hex(body)
		if edition == tamper {
			hash = sha256Hex("not the published image")
		}
		fmt.Fprintf(&manifest, "%s *%s\n", hash, name)
	}
	n.files[base+"sha256sum.txt"] = manifest.String()
	n.files[base+"sha256sum.txt.gpg"] = "signature"
	n.listings[root] = append(n.listings[root], base+"sha256sum.txt", base+"sha256sum.txt.gpg")
}

type acceptAll struct{}

func (acceptAll) Verify(ctx context.Context, keyID, signaturePath, dataPath string) error {
	return nil
}

func (acceptAll) Retrieve(ctx context.Context, keyID string) error {
	return nil
}

func (n *fakeNet) env() *source.Env {
	return &source.Env{Fetcher: n, Crawler: n, Verifier: acceptAll{}, Keys: acceptAll{}}
}

func mintSpec(root string, edition source.Edition) source.Spec {
	return source.NewLinuxMint(source.LinuxMint{Edition: edition, Mirror: root})
}

// install writes content as an installed image for id and returns its entry.
func install(t *testing.T, managed, id, filename, content, version string) iso.InPlace {
	t.Helper()
	entry := iso.InPlace{
		File:     iso.File{Hash: sha256Hex(content), Version: iso.StringPtr(version)},
		Filename: id + "/" + filename,
	}
	path := entry.Path(managed)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return entry
}

// testBase returns a base directory with an images subdirectory.
func testBase(t *testing.T) (base, managed string) {
	t.Helper()
	base = t.TempDir()
	managed = filepath.Join(base, "images")
	if err := os.MkdirAll(managed, 0755); err != nil {
		t.Fatal(err)
	}
	return base, managed
}

func assertNoScratch(t *testing.T, base string) {
	t.Helper()
	entries, err := os.ReadDir(base)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".scratch-") {
			t.Errorf("scratch directory %s left behind", e.Name())
		}
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// fakeDrive records the mapping it was asked to mirror.
type fakeDrive struct {
	files map[string]iso.InPlace
	err   error
}

func (d *fakeDrive) Sync(ctx context.Context, managedDir string, files, mirrored map[string]iso.InPlace) (*usb.Report, error) {
	if d.err != nil {
		return nil, d.err
	}
	d.files = files
	report := &usb.Report{Target: "/media/drive", State: map[string]iso.InPlace{}}
	for id, f := range files {
		report.State[id] = f
		report.Results = append(report.Results, usb.Result{ID: id, Action: usb.ActionCopied, Entry: f})
	}
	return report, nil
}

func newData(sources map[string]source.Spec) *state.Data {
	d := state.New()
	for id, spec := range sources {
		d.Sources[id] = spec
	}
	return d
}
