// Package fetch is the HTTP transport used by iso-updater: file downloads
// for images, manifests and signatures, and small in-memory GETs for
// directory listings and keyserver lookups.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/GideonBear/iso-updater/internal/logging"
)

const (
	// DefaultTimeout bounds a whole Get and any stall of a Fetch
	DefaultTimeout = 30 * time.Minute
	// DefaultRetries is the default number of download retries
	DefaultRetries = 3
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "iso-updater"
	// MaxPageSize bounds Get responses
	MaxPageSize = 8 << 20
)

// StatusError is returned for a non-200 response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d", e.Code)
}

// retryable reports whether another attempt could succeed.
// Client errors other than 408 and 429 are final.
func (e *StatusError) retryable() bool {
	if e.Code == http.StatusRequestTimeout || e.Code == http.StatusTooManyRequests {
		return true
	}
	return e.Code < 400 || e.Code >= 500
}

// ErrStalled is returned when a download receives no data for Timeout.
var ErrStalled = errors.New("download stalled")

// Options configure a Downloader. A zero Timeout or UserAgent selects the
// default; Retries is used as given.
//
// Timeout bounds a Get from request to last byte. A Fetch may take as long
// as the body needs; Timeout only bounds the wait for the response headers
// and each gap between received bytes.
type Options struct {
	Retries   int
	Timeout   time.Duration
	UserAgent string
	Logger    logging.Logger
}

// Downloader handles HTTP downloads with retry logic
type Downloader struct {
	client      *http.Client
	fetchClient *http.Client
	idleTimeout time.Duration
	userAgent   string
	retries   int
	logger    logging.Logger

	// backoff returns the wait before the given retry (1-based)
	backoff func(attempt int) time.Duration
}

// NewDownloader creates a new downloader
func NewDownloader(opts Options) *Downloader {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	return &Downloader{
		client: &http.Client{
			Transport:     transport,
			Timeout:       timeout,
			CheckRedirect: checkRedirect,
		},
		fetchClient: &http.Client{
			Transport:     transport,
			CheckRedirect: checkRedirect,
		},
		idleTimeout: timeout,
		userAgent:   userAgent,
		retries:     retries,
		logger:      logging.OrNop(opts.Logger),
		backoff:     exponentialBackoff,
	}
}

func checkRedirect(req *http.Request, via []*http.Request) error {
	// Allow up to 10 redirects
	if len(via) >= 10 {
		return fmt.Errorf("too many redirects")
	}
	return nil
}

// exponentialBackoff waits 1s, 2s, 4s, ...
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt-1)) * time.Second
}

// Fetch downloads url to dest. The file appears at dest only once the body
// has been read completely; a failed attempt leaves nothing behind.
func (d *Downloader) Fetch(ctx context.Context, url, dest string) error {
	return d.retry(ctx, url, func() error {
		return d.downloadOnce(ctx, url, dest)
	})
}

// Get returns the body of url, which must be at most MaxPageSize bytes.
func (d *Downloader) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := d.retry(ctx, url, func() error {
		b, err := d.getOnce(ctx, url)
		body = b
		return err
	})
	return body, err
}

func (d *Downloader) retry(ctx context.Context, url string, attemptFn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= d.retries; attempt++ {
		// Check context before each attempt
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if attempt > 0 {
			wait := d.backoff(attempt)
			d.logger.Warn("retrying download", "url", url, "attempt", attempt, "wait", wait, "error", lastErr)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := attemptFn()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.retryable() {
			return err
		}
	}

	if d.retries == 0 {
		return lastErr
	}
	return fmt.Errorf("download failed after %d retries: %w", d.retries, lastErr)
}

func (d *Downloader) do(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}
	return resp, nil
}

// downloadOnce performs a single download attempt
func (d *Downloader) downloadOnce(ctx context.Context, url, destPath string) error {
	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	resp, err := d.do(reqCtx, d.fetchClient, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body := newIdleReader(resp.Body, d.idleTimeout, func() { cancel(ErrStalled) })
	defer body.stop()

	destDir := filepath.Dir(destPath)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	tmpPath := destPath + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	// Track whether we need to clean up the temp file
	cleanupNeeded := true
	defer func() {
		tmpFile.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	start := time.Now()
	n, err := io.Copy(tmpFile, body)
	if err != nil {
		if cause := context.Cause(reqCtx); errors.Is(cause, ErrStalled) {
			return fmt.Errorf("%w: no data from %s for %s", ErrStalled, url, d.idleTimeout)
		}
		return fmt.Errorf("copy response body: %w", err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return fmt.Errorf("short body: got %d of %d bytes", n, resp.ContentLength)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	cleanupNeeded = false
	d.logger.Debug("downloaded", "url", url, "bytes", n, "elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

func (d *Downloader) getOnce(ctx context.Context, url string) ([]byte, error) {
	resp, err := d.do(ctx, d.client, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxPageSize+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(body) > MaxPageSize {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", url, MaxPageSize)
	}
	return body, nil
}

// idleReader calls onIdle when no bytes have been read for timeout.
type idleReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
}

func newIdleReader(r io.Reader, timeout time.Duration, onIdle func()) *idleReader {
	return &idleReader{r: r, timeout: timeout, timer: time.AfterFunc(timeout, onIdle)}
}

func (r *idleReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		r.timer.Reset(r.timeout)
	}
	return n, err
}

func (r *idleReader) stop() {
	r.timer.Stop()
}
