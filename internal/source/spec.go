package source

import (
	"context"
	"fmt"

	"github.com/GideonBear/iso-updater/internal/config"
	"github.com/GideonBear/iso-updater/internal/iso"
)

// Kind identifies a provider variant.
type Kind string

const (
	// KindConstantURL is a fixed download URL without update detection.
	KindConstantURL Kind = "constant_url"
	// KindLinuxMint is the Linux Mint versioned mirror.
	KindLinuxMint Kind = "linux_mint"
)

// Kinds lists every provider variant.
var Kinds = []Kind{KindConstantURL, KindLinuxMint}

// Spec is the persisted configuration of one source: a Kind plus the
// payload for exactly that kind.
type Spec struct {
	Kind        Kind         `json:"kind"`
	ConstantURL *ConstantURL `json:"constant_url,omitempty"`
	LinuxMint   *LinuxMint   `json:"linux_mint,omitempty"`
}

// NewConstantURL returns a Spec for a ConstantURL source.
func NewConstantURL(c ConstantURL) Spec {
	return Spec{Kind: KindConstantURL, ConstantURL: &c}
}

// NewLinuxMint returns a Spec for a LinuxMint source.
func NewLinuxMint(m LinuxMint) Spec {
	return Spec{Kind: KindLinuxMint, LinuxMint: &m}
}

// Provider returns the provider for the spec's kind.
// Every Kind must be handled here; an unknown kind is a configuration error.
func (s Spec) Provider() (Source, error) {
	switch s.Kind {
	case KindConstantURL:
		if s.ConstantURL == nil {
			return nil, fmt.Errorf("%w: %s source without payload", config.ErrConfig, s.Kind)
		}
		return s.ConstantURL, nil
	case KindLinuxMint:
		if s.LinuxMint == nil {
			return nil, fmt.Errorf("%w: %s source without payload", config.ErrConfig, s.Kind)
		}
		return s.LinuxMint, nil
	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", config.ErrConfig, s.Kind)
	}
}

// Validate checks that exactly the payload for Kind is set and is well formed.
func (s Spec) Validate() error {
	set := 0
	if s.ConstantURL != nil {
		set++
	}
	if s.LinuxMint != nil {
		set++
	}
	if set > 1 {
		return fmt.Errorf("%w: source has more than one payload", config.ErrConfig)
	}

	switch s.Kind {
	case KindConstantURL:
		if s.ConstantURL == nil {
			return fmt.Errorf("%w: %s source without payload", config.ErrConfig, s.Kind)
		}
		return s.ConstantURL.validate()
	case KindLinuxMint:
		if s.LinuxMint == nil {
			return fmt.Errorf("%w: %s source without payload", config.ErrConfig, s.Kind)
		}
		return s.LinuxMint.validate()
	default:
		return fmt.Errorf("%w: unknown source kind %q", config.ErrConfig, s.Kind)
	}
}

// Latest dispatches to the provider's Latest.
func (s Spec) Latest(ctx context.Context, env *Env, scratch string) (*Artifact, error) {
	p, err := s.Provider()
	if err != nil {
		return nil, err
	}
	return p.Latest(ctx, env, scratch)
}

// Updated dispatches to the provider's Updated.
func (s Spec) Updated(ctx context.Context, env *Env, existing iso.File, scratch string) (*Artifact, error) {
	p, err := s.Provider()
	if err != nil {
		return nil, err
	}
	return p.Updated(ctx, env, existing, scratch)
}

// Check dispatches to the provider's Check.
func (s Spec) Check(ctx context.Context, env *Env, existing *iso.File) (Plan, error) {
	p, err := s.Provider()
	if err != nil {
		return Plan{}, err
	}
	return p.Check(ctx, env, existing)
}

// Describe returns the provider's description, or the raw kind when invalid.
func (s Spec) Describe() string {
	p, err := s.Provider()
	if err != nil {
		return string(s.Kind)
	}
	return p.Describe()
}
