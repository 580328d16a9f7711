// Package extractor turns media page URLs into raw stream metadata.
//
// Backends implement Extractor. Router picks a backend by host, Browser
// scrapes pages that block automated clients, and Chain tries several
// backends in order.
package extractor

import (
	"context"
	"errors"
	"strings"

	"github.com/iconidentify/linkgrabba/internal/domain"
)

// Extractor fetches raw media metadata for a page URL.
type Extractor interface {
	// Name identifies the backend in logs and errors.
	Name() string

	// Extract returns the page's title, thumbnail and raw format list.
	// Failures are *domain.ExtractionError.
	Extract(ctx context.Context, url string) (*domain.RawMediaInfo, error)
}

// ReadinessChecker is implemented by backends that depend on external tools.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Chain tries extractors in order and returns the first success.
type Chain struct {
	extractors []Extractor
}

// NewChain creates a chain over the given extractors.
func NewChain(extractors ...Extractor) *Chain {
	return &Chain{extractors: extractors}
}

// Name returns "chain(a,b,...)".
func (c *Chain) Name() string {
	names := make([]string, 0, len(c.extractors))
	for _, e := range c.extractors {
		names = append(names, e.Name())
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Extract runs each extractor until one succeeds.
func (c *Chain) Extract(ctx context.Context, url string) (*domain.RawMediaInfo, error) {
	if len(c.extractors) == 0 {
		return nil, domain.NewExtractionError(c.Name(), url, domain.ErrBackendUnavailable, nil)
	}

	var errs []error
	reason := domain.ErrExtractionFailed
	for _, e := range c.extractors {
		info, err := e.Extract(ctx, url)
		if err == nil {
			return info, nil
		}
		errs = append(errs, err)

		var extErr *domain.ExtractionError
		if errors.As(err, &extErr) {
			reason = extErr.Reason
		}
		if ctx.Err() != nil {
			break
		}
	}

	return nil, domain.NewExtractionError(c.Name(), url, reason, errors.Join(errs...))
}

// Ready reports ready when any member is ready.
func (c *Chain) Ready(ctx context.Context) error {
	var errs []error
	for _, e := range c.extractors {
		rc, ok := e.(ReadinessChecker)
		if !ok {
			return nil
		}
		err := rc.Ready(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
