package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/iconidentify/linkgrabba/internal/domain"
	"github.com/iconidentify/linkgrabba/internal/downloader"
)

// DownloadHandler proxies progressive streams as attachments and redirects
// everything else to its origin.
type DownloadHandler struct {
	opener    downloader.Opener
	chunkSize int
	logger    *slog.Logger
}

// NewDownloadHandler creates a new download handler.
func NewDownloadHandler(opener downloader.Opener, chunkSize int, logger *slog.Logger) *DownloadHandler {
	return &DownloadHandler{
		opener:    opener,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// Download handles GET /download.
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	videoURL := strings.TrimSpace(q.Get("video_url"))
	if videoURL == "" {
		writeError(w, http.StatusBadRequest, "video_url is required")
		return
	}
	if u, err := url.Parse(videoURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, http.StatusBadRequest, "video_url must be an http(s) URL")
		return
	}

	streamType := q.Get("type_")
	if streamType != domain.KindVideoAudio.String() {
		// Adaptive streams are stitched client-side from their origin.
		w.Header().Set("Location", videoURL)
		w.WriteHeader(http.StatusTemporaryRedirect)
		return
	}

	start := time.Now()
	stream, err := h.opener.Open(r.Context(), videoURL)
	if err != nil {
		h.logger.Warn("upstream open failed", "error", err)
		writeError(w, http.StatusBadGateway, upstreamMessage(err))
		return
	}
	defer stream.Body.Close()

	filename := BuildFilename(q.Get("title"), q.Get("resolution"), streamType, ExtensionFromURL(videoURL))

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", ContentDisposition(filename))
	if stream.Size >= 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(stream.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	written, err := downloader.CopyChunked(w, stream.Body, h.chunkSize)
	switch {
	case err == nil:
		h.logger.Info("download complete",
			"filename", filename,
			"bytes", written,
			"duration", time.Since(start),
		)
	case r.Context().Err() != nil || errors.Is(err, downloader.ErrClientWrite):
		h.logger.Info("download aborted by client",
			"filename", filename,
			"bytes", written,
			"duration", time.Since(start),
		)
	default:
		// Headers are already sent; the client sees a truncated body.
		h.logger.Warn("download truncated",
			"filename", filename,
			"bytes", written,
			"error", err,
			"duration", time.Since(start),
		)
	}
}

func upstreamMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrURLExpired):
		return domain.ErrURLExpired.Error()
	case errors.Is(err, domain.ErrRateLimited):
		return domain.ErrRateLimited.Error()
	default:
		return domain.ErrUpstreamFailed.Error()
	}
}
