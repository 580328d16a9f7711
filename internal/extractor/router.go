package extractor

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/iconidentify/linkgrabba/internal/domain"
)

// Router selects the browser strategy for hosts on its allowlist and the
// general backend for everything else.
type Router struct {
	browser Extractor
	general Extractor
	hosts   []string
}

// NewRouter creates a router. A nil browser routes every URL to general.
func NewRouter(browser, general Extractor, hosts []string) *Router {
	normalized := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h = normalizeHost(h); h != "" {
			normalized = append(normalized, h)
		}
	}
	return &Router{
		browser: browser,
		general: general,
		hosts:   normalized,
	}
}

// Name returns the router name.
func (r *Router) Name() string {
	return "router"
}

// Select returns the extractor responsible for rawURL.
func (r *Router) Select(rawURL string) (Extractor, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("scheme %q: %w", u.Scheme, domain.ErrInvalidURL)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("missing host: %w", domain.ErrInvalidURL)
	}

	if r.browser != nil && MatchHost(u.Hostname(), r.hosts) {
		return r.browser, nil
	}
	return r.general, nil
}

// Extract dispatches to the selected extractor.
func (r *Router) Extract(ctx context.Context, rawURL string) (*domain.RawMediaInfo, error) {
	e, err := r.Select(rawURL)
	if err != nil {
		return nil, domain.NewExtractionError(r.Name(), rawURL, domain.ErrUnsupportedURL, err)
	}
	return e.Extract(ctx, rawURL)
}

// Ready delegates to the general backend.
func (r *Router) Ready(ctx context.Context) error {
	if rc, ok := r.general.(ReadinessChecker); ok {
		return rc.Ready(ctx)
	}
	return nil
}

// MatchHost reports whether host equals a pattern or is a subdomain of one.
// Leading "www." and "m." are ignored on both sides.
func MatchHost(host string, patterns []string) bool {
	host = normalizeHost(host)
	if host == "" {
		return false
	}
	for _, p := range patterns {
		p = normalizeHost(p)
		if p == "" {
			continue
		}
		if host == p || strings.HasSuffix(host, "."+p) {
			return true
		}
	}
	return false
}

func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimSuffix(h, ".")
	for _, prefix := range []string{"www.", "m."} {
		h = strings.TrimPrefix(h, prefix)
	}
	return h
}
