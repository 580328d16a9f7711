package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/iconidentify/linkgrabba/internal/config"
	"github.com/iconidentify/linkgrabba/internal/domain"
)

// ErrStalled is returned when an upstream body delivers no bytes for the
// configured read timeout.
var ErrStalled = errors.New("download stalled")

// HTTPDownloader implements Opener using HTTP requests.
type HTTPDownloader struct {
	// streamClient has no overall timeout; stalls are caught per read.
	streamClient *http.Client
	userAgent    string
	cfg          config.DownloadConfig
	logger       *slog.Logger
}

// NewHTTPDownloader creates a new HTTP stream opener.
func NewHTTPDownloader(cfg config.DownloadConfig, logger *slog.Logger) *HTTPDownloader {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.HeaderTimeout

	return &HTTPDownloader{
		streamClient: &http.Client{
			Transport: transport,
		},
		userAgent: cfg.UserAgent,
		cfg:       cfg,
		logger:    logger,
	}
}

// Open issues a single GET for url. Upstream failures before the body
// starts are returned as *domain.DispatchError.
func (d *HTTPDownloader) Open(ctx context.Context, url string) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, &domain.DispatchError{URL: url, Err: fmt.Errorf("%w: create request: %v", domain.ErrUpstreamFailed, err)}
	}

	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "video/mp4,video/*;q=0.9,audio/*;q=0.8,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := d.streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, &domain.DispatchError{URL: url, Err: fmt.Errorf("%w: %v", domain.ErrUpstreamFailed, err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		cancel()
		return nil, &domain.DispatchError{URL: url, Status: resp.StatusCode, Err: statusError(resp.StatusCode)}
	}

	size := resp.ContentLength
	if size < 0 {
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			if parsed, err := strconv.ParseInt(cl, 10, 64); err == nil {
				size = parsed
			}
		}
	}

	return &Stream{
		Body:        newProgressReader(resp.Body, size, d.cfg.ReadTimeout, cancel, d.logger, url),
		Size:        size,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func statusError(code int) error {
	switch code {
	case http.StatusForbidden, http.StatusUnauthorized, http.StatusGone:
		return domain.ErrURLExpired
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	default:
		return domain.ErrUpstreamFailed
	}
}

// progressReader wraps an upstream body to track download progress and
// abort the request when no data arrives for readTimeout.
type progressReader struct {
	reader      io.ReadCloser
	total       int64
	downloaded  int64
	readTimeout time.Duration
	cancel      context.CancelFunc
	stall       *time.Timer
	stalled     bool
	lastLog     time.Time
	logger      *slog.Logger
	url         string
	mu          sync.Mutex
	closed      bool
}

func newProgressReader(r io.ReadCloser, total int64, readTimeout time.Duration, cancel context.CancelFunc, logger *slog.Logger, url string) *progressReader {
	p := &progressReader{
		reader:      r,
		total:       total,
		readTimeout: readTimeout,
		cancel:      cancel,
		lastLog:     time.Now(),
		logger:      logger,
		url:         url,
	}
	if readTimeout > 0 {
		p.stall = time.AfterFunc(readTimeout, func() {
			p.mu.Lock()
			p.stalled = true
			p.mu.Unlock()
			cancel()
		})
	}
	return p
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stalled {
		return n, fmt.Errorf("%w: %s", ErrStalled, p.url)
	}

	if n > 0 {
		p.downloaded += int64(n)
		if p.stall != nil {
			p.stall.Reset(p.readTimeout)
		}
		if time.Since(p.lastLog) > 30*time.Second {
			p.logProgress()
			p.lastLog = time.Now()
		}
	}

	return n, err
}

func (p *progressReader) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.stall != nil {
		p.stall.Stop()
	}
	p.logger.Debug("upstream stream closed", "url", p.url, "downloaded_bytes", p.downloaded, "total_bytes", p.total)
	p.mu.Unlock()

	err := p.reader.Close()
	p.cancel()
	return err
}

func (p *progressReader) logProgress() {
	if p.total > 0 {
		pct := float64(p.downloaded) / float64(p.total) * 100
		p.logger.Info("download progress",
			"url", p.url,
			"downloaded_mb", p.downloaded/(1024*1024),
			"total_mb", p.total/(1024*1024),
			"percent", fmt.Sprintf("%.1f%%", pct),
		)
	} else {
		p.logger.Info("download progress",
			"url", p.url,
			"downloaded_mb", p.downloaded/(1024*1024),
		)
	}
}
