package extractor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/iconidentify/linkgrabba/internal/config"
	"github.com/iconidentify/linkgrabba/internal/domain"
)

// BrowserFormatID identifies the single format synthesized from a page's
// <video> element.
const BrowserFormatID = "browser"

const videoSourceJS = `(() => {
	const v = document.querySelector('video');
	return v ? (v.currentSrc || v.src || '') : '';
})()`

// PageSnapshot is what the browser reads from a rendered page.
type PageSnapshot struct {
	Title       string
	VideoSource string
}

// PageProber renders a page and reads its title and video source.
type PageProber func(ctx context.Context, pageURL string, cookies []Cookie) (*PageSnapshot, error)

// Browser scrapes the playing <video> element of a rendered page and falls
// back to another extractor when the page exposes no usable source.
type Browser struct {
	cfg         config.BrowserConfig
	cookiesPath string
	fallback    Extractor
	probe       PageProber
	logger      *slog.Logger
}

// NewBrowser creates a headless Chrome backend. fallback may be nil.
func NewBrowser(cfg config.BrowserConfig, cookiesPath string, fallback Extractor, logger *slog.Logger) *Browser {
	b := &Browser{
		cfg:         cfg,
		cookiesPath: cookiesPath,
		fallback:    fallback,
		logger:      logger,
	}
	b.probe = b.probeWithChrome
	return b
}

// SetProber replaces the page prober.
func (b *Browser) SetProber(p PageProber) {
	b.probe = p
}

// Name returns the backend name.
func (b *Browser) Name() string {
	return "browser"
}

// Extract renders url and returns its video source, or the fallback's result.
func (b *Browser) Extract(ctx context.Context, url string) (*domain.RawMediaInfo, error) {
	cookies, format, err := LoadCookies(b.cookiesPath)
	if err != nil {
		// Extraction proceeds unauthenticated.
		b.logger.Warn("ignoring unreadable cookie file", "path", b.cookiesPath, "error", err)
		cookies = nil
	} else if len(cookies) > 0 {
		b.logger.Debug("seeding browser cookies", "count", len(cookies), "format", format.String())
	}

	start := time.Now()
	snap, err := b.probe(ctx, url, cookies)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) && b.fallback != nil && ctx.Err() == nil {
			b.logger.Warn("browser unavailable, using fallback", "url", url, "fallback", b.fallback.Name())
			return b.fallback.Extract(ctx, url)
		}
		reason := domain.ErrExtractionFailed
		if errors.Is(err, exec.ErrNotFound) {
			reason = domain.ErrBackendUnavailable
		}
		return nil, domain.NewExtractionError(b.Name(), url, reason, err)
	}

	if src := strings.TrimSpace(snap.VideoSource); usableSource(src) {
		b.logger.Info("browser found video source", "url", url, "duration", time.Since(start))
		return &domain.RawMediaInfo{
			Title: snap.Title,
			Formats: []domain.RawFormat{{
				FormatID:       BrowserFormatID,
				Ext:            "mp4",
				DirectURL:      src,
				ResolutionHint: "best",
			}},
		}, nil
	}

	if b.fallback == nil {
		return nil, domain.NewExtractionError(b.Name(), url, domain.ErrExtractionFailed, errors.New("no video source on page"))
	}

	b.logger.Info("no usable video source, using fallback", "url", url, "fallback", b.fallback.Name())
	info, err := b.fallback.Extract(ctx, url)
	if err != nil {
		return nil, err
	}
	if info.Title == "" {
		info.Title = snap.Title
	}
	return info, nil
}

// usableSource rejects empty sources and in-page object URLs, which cannot
// be fetched outside the page.
func usableSource(src string) bool {
	if src == "" {
		return false
	}
	lower := strings.ToLower(src)
	return !strings.HasPrefix(lower, "blob:") && !strings.HasPrefix(lower, "data:")
}

// probeWithChrome launches an isolated headless Chrome for one page. All
// browser resources are released by the deferred cancels on every path.
func (b *Browser) probeWithChrome(ctx context.Context, pageURL string, cookies []Cookie) (*PageSnapshot, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(b.cfg.UserAgent),
	)
	if b.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.cfg.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if b.cfg.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		browserCtx, cancel = context.WithTimeout(browserCtx, b.cfg.NavigationTimeout)
		defer cancel()
	}

	tasks := chromedp.Tasks{network.Enable()}
	if len(cookies) > 0 {
		tasks = append(tasks, network.SetCookies(cookieParams(cookies)))
	}

	var snap PageSnapshot
	tasks = append(tasks,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(b.cfg.SettleDelay),
		chromedp.Title(&snap.Title),
		chromedp.Evaluate(videoSourceJS, &snap.VideoSource),
	)

	if err := chromedp.Run(browserCtx, tasks); err != nil {
		return nil, fmt.Errorf("chromedp: %w", err)
	}
	return &snap, nil
}

func cookieParams(cookies []Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if !c.Expires.IsZero() {
			exp := cdp.TimeSinceEpoch(c.Expires)
			p.Expires = &exp
		}
		switch strings.ToLower(c.SameSite) {
		case "strict":
			p.SameSite = network.CookieSameSiteStrict
		case "lax":
			p.SameSite = network.CookieSameSiteLax
		case "none", "no_restriction":
			p.SameSite = network.CookieSameSiteNone
		}
		params = append(params, p)
	}
	return params
}
