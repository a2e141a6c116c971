package source

import (
	"bufio"
	"fmt"
	"strings"
)

// Edition selects one of the desktop images published for each Linux Mint release.
type Edition string

const (
	EditionCinnamon Edition = "cinnamon"
	EditionMate     Edition = "mate"
	EditionXfce     Edition = "xfce"
)

// Editions lists the known editions.
var Editions = []Edition{EditionCinnamon, EditionMate, EditionXfce}

// ParseEdition parses a lower-case edition name.
func ParseEdition(s string) (Edition, error) {
	switch Edition(s) {
	case EditionCinnamon, EditionMate, EditionXfce:
		return Edition(s), nil
	default:
		return "", fmt.Errorf("invalid edition %q", s)
	}
}

// String returns the string representation of the edition
func (e Edition) String() string {
	return string(e)
}

// editionToken is the hyphen-separated position of the edition in
// "linuxmint-<version>-<edition>-64bit.iso".
const editionToken = 2

// ManifestEntry is one line of a checksum manifest.
type ManifestEntry struct {
	Hash     string
	Filename string
}

// Manifest maps each edition to its expected checksum.
type Manifest map[Edition]ManifestEntry

// ParseManifest parses sha256sum output ("<hex>  <file>" or "<hex> *<file>").
// When an edition appears more than once, the plain "-64bit.iso" image wins
// over variants such as "-64bit-edge.iso".
func ParseManifest(text string) (Manifest, error) {
	manifest := make(Manifest)

	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		hash := fields[0]
		filename := strings.TrimPrefix(fields[1], "*")

		tokens := strings.Split(filename, "-")
		if len(tokens) <= editionToken {
			return nil, fmt.Errorf("%w: manifest line %d: filename %q has fewer than %d hyphen-separated parts",
				ErrCrawl, lineNo, filename, editionToken+1)
		}

		edition, err := ParseEdition(tokens[editionToken])
		if err != nil {
			return nil, fmt.Errorf("%w: manifest line %d: %v", ErrCrawl, lineNo, err)
		}

		if prev, ok := manifest[edition]; ok && isPlainImage(prev.Filename) {
			continue
		}
		manifest[edition] = ManifestEntry{Hash: strings.ToLower(hash), Filename: filename}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan manifest: %v", ErrCrawl, err)
	}

	return manifest, nil
}

// Lookup returns the entry for edition or an ErrCrawl lookup failure.
func (m Manifest) Lookup(edition Edition) (ManifestEntry, error) {
	entry, ok := m[edition]
	if !ok {
		return ManifestEntry{}, fmt.Errorf("%w: no checksum for edition %s in manifest", ErrCrawl, edition)
	}
	return entry, nil
}

func isPlainImage(filename string) bool {
	return strings.HasSuffix(filename, "-64bit.iso")
}
