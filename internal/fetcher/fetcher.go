// Package fetcher selects between rendered and plain HTTP retrieval.
package fetcher

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/codeecho/codeecho/internal/analysis"
)

// AdmissionPolicy decides whether a validated URL may be fetched at all.
type AdmissionPolicy interface {
	AllowURL(u *url.URL) error
}

// WaitLimiter throttles fetches against one host.
type WaitLimiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Options carries the optional fetch guards; nil fields disable them.
type Options struct {
	Policy  AdmissionPolicy
	Limiter WaitLimiter
}

// Composite implements analysis.Fetcher with a render-first strategy:
// headless Chrome when available, falling back to a plain GET when the
// browser fails. Validation and policy errors never reach the network.
type Composite struct {
	render  analysis.Fetcher
	plain   analysis.Fetcher
	policy  AdmissionPolicy
	limiter WaitLimiter
	logger  *zap.Logger
}

// New builds a Composite. The render fetcher may be nil, in which case every
// fetch goes straight to the plain fetcher.
func New(render, plain analysis.Fetcher, opts Options, logger *zap.Logger) *Composite {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composite{
		render:  render,
		plain:   plain,
		policy:  opts.Policy,
		limiter: opts.Limiter,
		logger:  logger,
	}
}

// Fetch validates the URL, tries the rendering fetcher, and falls back to
// plain HTTP. Both paths failing classifies the target as unreachable.
func (c *Composite) Fetch(ctx context.Context, rawURL string) (analysis.PageSnapshot, error) {
	normalized, err := ValidateURL(rawURL)
	if err != nil {
		return analysis.PageSnapshot{}, analysis.NewFetchError(analysis.FetchInvalidURL, rawURL, err)
	}
	if c.policy != nil {
		parsed, parseErr := url.Parse(normalized)
		if parseErr != nil {
			return analysis.PageSnapshot{}, analysis.NewFetchError(analysis.FetchInvalidURL, rawURL, parseErr)
		}
		if policyErr := c.policy.AllowURL(parsed); policyErr != nil {
			return analysis.PageSnapshot{}, analysis.NewFetchError(analysis.FetchInvalidURL, normalized, policyErr)
		}
	}
	if c.limiter != nil {
		if waitErr := c.limiter.Wait(ctx, normalized); waitErr != nil {
			return analysis.PageSnapshot{}, analysis.NewFetchError(analysis.FetchUnreachable, normalized, waitErr)
		}
	}

	if c.render != nil {
		snap, renderErr := c.render.Fetch(ctx, normalized)
		if renderErr == nil {
			return snap, nil
		}
		if ctx.Err() != nil {
			return analysis.PageSnapshot{}, analysis.NewFetchError(analysis.FetchUnreachable, normalized, ctx.Err())
		}
		c.logger.Warn("rendered fetch failed, falling back to plain http",
			zap.String("url", normalized),
			zap.Error(renderErr),
		)
	}

	snap, plainErr := c.plain.Fetch(ctx, normalized)
	if plainErr != nil {
		return analysis.PageSnapshot{}, analysis.NewFetchError(analysis.FetchUnreachable, normalized, plainErr)
	}
	return snap, nil
}

var (
	errEmptyURL  = errors.New("url is empty")
	errBadScheme = errors.New("url scheme must be http or https")
	errNoHost    = errors.New("url has no host")
)

// ValidateURL checks that rawURL is an absolute http(s) URL with a host and
// returns it with a default https scheme applied when none was given.
func ValidateURL(rawURL string) (string, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return "", errEmptyURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errBadScheme
	}
	if parsed.Hostname() == "" {
		return "", errNoHost
	}
	return parsed.String(), nil
}
