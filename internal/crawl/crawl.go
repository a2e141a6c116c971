// Package crawl walks HTTP directory listings, the autoindex pages served
// by distribution mirrors, and enumerates the files and directories below
// a root URL.
package crawl

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"strings"

	"github.com/GideonBear/iso-updater/internal/logging"
)

const (
	// DefaultMaxDepth bounds how many directory levels below root are listed
	DefaultMaxDepth = 4
	// DefaultMaxPages bounds how many listings one walk may request
	DefaultMaxPages = 1000
)

// Getter returns the body of a URL. *fetch.Downloader satisfies it.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Crawler follows directory-listing links breadth first.
type Crawler struct {
	getter   Getter
	logger   logging.Logger
	maxDepth int
	maxPages int
}

// New creates a Crawler that requests listings through getter.
func New(getter Getter, logger logging.Logger) *Crawler {
	return &Crawler{
		getter:   getter,
		logger:   logging.OrNop(logger),
		maxDepth: DefaultMaxDepth,
		maxPages: DefaultMaxPages,
	}
}

// Walk yields every file and directory URL below root, excluding root
// itself. Only links pointing strictly below the listing they appear on are
// followed, so parent and sort links are ignored. Each directory is listed
// once; directories deeper than the depth limit are yielded but not listed.
//
// A failed request or an exceeded limit is yielded as the final error.
func (c *Crawler) Walk(ctx context.Context, root *url.URL) iter.Seq2[*url.URL, error] {
	return func(yield func(*url.URL, error) bool) {
		start := *root
		if !strings.HasSuffix(start.Path, "/") {
			start.Path += "/"
		}

		type dir struct {
			url   *url.URL
			depth int
		}
		queue := []dir{{url: &start}}
		listed := map[string]bool{start.String(): true}
		yielded := make(map[string]bool)
		pages := 0

		for len(queue) > 0 {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			current := queue[0]
			queue = queue[1:]

			pages++
			if pages > c.maxPages {
				yield(nil, fmt.Errorf("crawl of %s exceeded %d listings", root, c.maxPages))
				return
			}

			c.logger.Debug("listing directory", "url", current.url.String())
			body, err := c.getter.Get(ctx, current.url.String())
			if err != nil {
				yield(nil, fmt.Errorf("list %s: %w", current.url, err))
				return
			}

			links, err := Links(current.url, body)
			if err != nil {
				yield(nil, err)
				return
			}

			for _, link := range links {
				if !isChild(current.url, link) {
					continue
				}
				key := link.String()
				if yielded[key] {
					continue
				}
				yielded[key] = true
				if !yield(link, nil) {
					return
				}

				if isDir(link) && !listed[key] && current.depth+1 <= c.maxDepth {
					listed[key] = true
					queue = append(queue, dir{url: link, depth: current.depth + 1})
				}
			}
		}
	}
}
