package source

import "errors"

// Failure classes for a single fetch attempt. Every error returned by a
// provider wraps exactly one of these.
var (
	// ErrFetch indicates a transport failure while downloading a file.
	ErrFetch = errors.New("fetch failed")

	// ErrCrawl indicates a traversal failure, a malformed mirror layout, or a
	// missing manifest entry.
	ErrCrawl = errors.New("crawl failed")

	// ErrVerification indicates a signature or hash mismatch.
	ErrVerification = errors.New("verification failed")
)
