package source

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/GideonBear/iso-updater/internal/config"
	"github.com/GideonBear/iso-updater/internal/iso"
)

// ConstantURL is an image published at a URL that never changes.
// It is installed once; later runs never report an update.
type ConstantURL struct {
	// Name is the filename used in the managed directory. Defaults to the
	// last path segment of URL.
	Name    string  `json:"name,omitempty"`
	URL     string  `json:"url"`
	Version *string `json:"version,omitempty"`
}

// Latest downloads the image and hashes it.
func (c *ConstantURL) Latest(ctx context.Context, env *Env, scratch string) (*Artifact, error) {
	dest := filepath.Join(scratch, "download.iso")

	env.logger().Info("downloading image", "url", c.URL)
	if err := env.Fetcher.Fetch(ctx, c.URL, dest); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFetch, c.URL, err)
	}

	file, err := iso.NewFile(dest, c.Version)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	return &Artifact{File: file, Path: dest, Filename: c.filename()}, nil
}

// Updated always returns nil: a constant URL has no remote change detection.
func (c *ConstantURL) Updated(ctx context.Context, env *Env, existing iso.File, scratch string) (*Artifact, error) {
	return nil, nil
}

// Check reports an install when nothing is installed and nothing otherwise.
func (c *ConstantURL) Check(ctx context.Context, env *Env, existing *iso.File) (Plan, error) {
	if existing == nil {
		return Plan{Action: ActionInstall, Version: iso.File{Version: c.Version}.VersionString()}, nil
	}
	return Plan{Action: ActionNone}, nil
}

// Describe returns the URL.
func (c *ConstantURL) Describe() string {
	return "constant url " + c.URL
}

func (c *ConstantURL) filename() string {
	if c.Name != "" {
		return c.Name
	}
	if u, err := url.Parse(c.URL); err == nil {
		if base := path.Base(u.Path); base != "/" && base != "." {
			return base
		}
	}
	return "download.iso"
}

func (c *ConstantURL) validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("%w: constant url %q: %v", config.ErrConfig, c.URL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: constant url %q must be http or https", config.ErrConfig, c.URL)
	}
	if strings.ContainsAny(c.Name, `/\`) || c.Name == ".." {
		return fmt.Errorf("%w: name %q must be a plain filename", config.ErrConfig, c.Name)
	}
	return nil
}
