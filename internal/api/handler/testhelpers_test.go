package handler

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/iconidentify/linkgrabba/internal/config"
	"github.com/iconidentify/linkgrabba/internal/domain"
	"github.com/iconidentify/linkgrabba/internal/downloader"
)

// testLogger returns a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDownloadConfig() config.DownloadConfig {
	return config.DownloadConfig{
		HeaderTimeout: 5 * time.Second,
		ReadTimeout:   5 * time.Second,
		ChunkSize:     1024,
		UserAgent:     "test-agent",
	}
}

// mockChecker is a test implementation of ReadinessChecker.
type mockChecker struct {
	err error
}

func (m *mockChecker) Ready(ctx context.Context) error {
	return m.err
}

// mockOpener is a test implementation of downloader.Opener.
type mockOpener struct {
	body    string
	size    int64
	err     error
	gotURL  string
	opened  int
	bodyRef *trackingBody
}

func (m *mockOpener) Open(ctx context.Context, url string) (*downloader.Stream, error) {
	m.opened++
	m.gotURL = url
	if m.err != nil {
		return nil, m.err
	}
	m.bodyRef = &trackingBody{Reader: strings.NewReader(m.body)}
	return &downloader.Stream{Body: m.bodyRef, Size: m.size}, nil
}

// trackingBody records whether it was closed.
type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}

// mockResolver is a test implementation of session.Resolver.
type mockResolver struct {
	result *domain.MediaResult
	err    error
}

func (m *mockResolver) Resolve(ctx context.Context, url string) (*domain.MediaResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}
