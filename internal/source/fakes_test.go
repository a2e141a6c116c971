package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// fakeFetcher serves fixed contents per URL and records every request.
type fakeFetcher struct {
	mu       sync.Mutex
	files    map[string]string
	requests []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{files: make(map[string]string)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL, dest string) error {
	f.mu.Lock()
	f.requests = append(f.requests, rawURL)
	content, ok := f.files[rawURL]
	f.mu.Unlock()

	if !ok {
		return fmt.Errorf("unexpected status code: 404")
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return os.WriteFile(dest, []byte(content), 0644)
}

func (f *fakeFetcher) requested(rawURL string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r == rawURL {
			return true
		}
	}
	return false
}

// fakeCrawler yields a fixed list of URLs, then err if set.
type fakeCrawler struct {
	urls []string
	err  error
}

func (c *fakeCrawler) Walk(ctx context.Context, root *url.URL) iter.Seq2[*url.URL, error] {
	return func(yield func(*url.URL, error) bool) {
		for _, raw := range c.urls {
			u, err := url.Parse(raw)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(u, nil) {
				return
			}
		}
		if c.err != nil {
			yield(nil, c.err)
		}
	}
}

type fakeVerifier struct {
	err   error
	calls int
}

func (v *fakeVerifier) Verify(ctx context.Context, keyID, signaturePath, dataPath string) error {
	v.calls++
	if keyID != MintSigningKey {
		return fmt.Errorf("unexpected key %s", keyID)
	}
	if _, err := os.Stat(signaturePath); err != nil {
		return err
	}
	return v.err
}

type fakeKeys struct {
	err error
}

func (k *fakeKeys) Retrieve(ctx context.Context, keyID string) error {
	return k.err
}

var errBadSignature = errors.New("BAD signature")

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// mintMirror builds a fake mirror publishing the given releases. The newest
// release carries the image content for every edition.
type mintMirror struct {
	root     string
	fetcher  *fakeFetcher
	crawler  *fakeCrawler
	verifier *fakeVerifier
	keys     *fakeKeys
}

const testMirrorRoot = "https://mirror.test/linuxmint/stable/"

func newMintMirror(releases ...string) *mintMirror {
	m := &mintMirror{
		root:     testMirrorRoot,
		fetcher:  newFakeFetcher(),
		crawler:  &fakeCrawler{},
		verifier: &fakeVerifier{},
		keys:     &fakeKeys{},
	}
	for _, r := range releases {
		m.publish(r, "image "+r)
	}
	return m
}

// publish adds a release directory with a signed manifest for every edition.
func (m *mintMirror) publish(dir, content string) {
	base := m.root + dir + "/"
	m.crawler.urls = append(m.crawler.urls, base)

	var manifest string
	for _, edition := range Editions {
		name := fmt.Sprintf("linuxmint-%s-%s-64bit.iso", dir, edition)
		body := content + " " + string(edition)
		m.fetcher.files[base+name] = body
		m.crawler.urls = append(m.crawler.urls, base+name)
		manifest += fmt.Sprintf("%s *%s\n", sha256Hex(body), name)
	}
	m.fetcher.files[base+"sha256sum.txt"] = manifest
	m.fetcher.files[base+"sha256sum.txt.gpg"] = "signature"
	m.crawler.urls = append(m.crawler.urls, base+"sha256sum.txt", base+"sha256sum.txt.gpg")
}

func (m *mintMirror) env() *Env {
	return &Env{Fetcher: m.fetcher, Crawler: m.crawler, Verifier: m.verifier, Keys: m.keys}
}

func (m *mintMirror) source(edition Edition) *LinuxMint {
	return &LinuxMint{Edition: edition, Mirror: m.root}
}
