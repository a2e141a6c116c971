package crawl

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Links returns the targets of every <a href> in an HTML page, resolved
// against base. Query strings and fragments are dropped; duplicates are
// reported once in document order.
func Links(base *url.URL, page []byte) ([]*url.URL, error) {
	z := html.NewTokenizer(bytes.NewReader(page))

	seen := make(map[string]bool)
	var links []*url.URL
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return nil, fmt.Errorf("parse listing %s: %w", base, err)
			}
			return links, nil
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if atom.Lookup(name) != atom.A || !hasAttr {
				continue
			}
			href, ok := hrefAttr(z)
			if !ok {
				continue
			}
			ref, err := url.Parse(strings.TrimSpace(href))
			if err != nil {
				// Listings contain the occasional junk href; skip it.
				continue
			}
			u := base.ResolveReference(ref)
			u.RawQuery = ""
			u.Fragment = ""
			if key := u.String(); !seen[key] {
				seen[key] = true
				links = append(links, u)
			}
		}
	}
}

func hrefAttr(z *html.Tokenizer) (string, bool) {
	for {
		key, val, more := z.TagAttr()
		if string(key) == "href" {
			return string(val), true
		}
		if !more {
			return "", false
		}
	}
}

// isChild reports whether u lies strictly below dir on the same host.
func isChild(dir, u *url.URL) bool {
	if u.Scheme != dir.Scheme || u.Host != dir.Host {
		return false
	}
	return strings.HasPrefix(u.Path, dir.Path) && len(u.Path) > len(dir.Path)
}

// isDir reports whether u names a directory listing.
func isDir(u *url.URL) bool {
	return strings.HasSuffix(u.Path, "/")
}
