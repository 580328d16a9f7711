package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/iconidentify/linkgrabba/internal/domain"
	"github.com/iconidentify/linkgrabba/internal/extractor"
)

// DefaultTitle is used when the extractor reports no title.
const DefaultTitle = "Video"

// MediaService resolves a submitted page URL into a normalized format list.
type MediaService struct {
	extractor extractor.Extractor
	logger    *slog.Logger
}

// NewMediaService creates a new media service.
func NewMediaService(ext extractor.Extractor, logger *slog.Logger) *MediaService {
	return &MediaService{
		extractor: ext,
		logger:    logger,
	}
}

// Resolve extracts and normalizes the formats available for rawURL.
func (s *MediaService) Resolve(ctx context.Context, rawURL string) (*domain.MediaResult, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := validateURL(rawURL); err != nil {
		return nil, err
	}

	start := time.Now()
	info, err := s.extractor.Extract(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	result := &domain.MediaResult{
		Title:     strings.TrimSpace(info.Title),
		Thumbnail: info.Thumbnail,
		Formats:   Normalize(info.Formats),
	}
	if result.Title == "" {
		result.Title = DefaultTitle
	}

	s.logger.Info("media resolved",
		"url", rawURL,
		"backend", s.extractor.Name(),
		"raw_formats", len(info.Formats),
		"formats", len(result.Formats),
		"duration", time.Since(start),
	)

	return result, nil
}

// Ready reports whether the underlying extractor can serve requests.
func (s *MediaService) Ready(ctx context.Context) error {
	if rc, ok := s.extractor.(extractor.ReadinessChecker); ok {
		return rc.Ready(ctx)
	}
	return nil
}

func validateURL(rawURL string) error {
	if rawURL == "" {
		return domain.ErrInvalidURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return domain.ErrInvalidURL
	}
	return nil
}
