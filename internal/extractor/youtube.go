package extractor

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/kkdai/youtube/v2"

	"github.com/iconidentify/linkgrabba/internal/domain"
)

// YouTubeClient is the subset of *youtube.Client used by the native backend.
type YouTubeClient interface {
	GetVideoContext(ctx context.Context, url string) (*youtube.Video, error)
	GetStreamURLContext(ctx context.Context, video *youtube.Video, format *youtube.Format) (string, error)
}

// YouTube resolves YouTube pages in-process without spawning a browser or
// yt-dlp.
type YouTube struct {
	client YouTubeClient
	logger *slog.Logger
}

// NewYouTube creates a native YouTube backend.
func NewYouTube(httpClient *http.Client, logger *slog.Logger) *YouTube {
	return &YouTube{
		client: &youtube.Client{HTTPClient: httpClient},
		logger: logger,
	}
}

// NewYouTubeWithClient creates a native YouTube backend around client.
func NewYouTubeWithClient(client YouTubeClient, logger *slog.Logger) *YouTube {
	return &YouTube{client: client, logger: logger}
}

// Name returns the backend name.
func (y *YouTube) Name() string {
	return "youtube"
}

// Extract fetches the video's player response and maps its formats.
func (y *YouTube) Extract(ctx context.Context, url string) (*domain.RawMediaInfo, error) {
	if _, err := youtube.ExtractVideoID(url); err != nil {
		return nil, domain.NewExtractionError(y.Name(), url, domain.ErrUnsupportedURL, err)
	}

	video, err := y.client.GetVideoContext(ctx, url)
	if err != nil {
		reason := domain.ErrExtractionFailed
		lower := strings.ToLower(err.Error())
		if strings.Contains(lower, "login required") || strings.Contains(lower, "private") {
			reason = domain.ErrAuthRequired
		}
		return nil, domain.NewExtractionError(y.Name(), url, reason, err)
	}

	info := &domain.RawMediaInfo{
		Title:     video.Title,
		Thumbnail: bestThumbnailURL(video.Thumbnails),
		Formats:   make([]domain.RawFormat, 0, len(video.Formats)),
	}

	for i := range video.Formats {
		f := &video.Formats[i]
		raw := mapYouTubeFormat(f)
		if raw.DirectURL == "" {
			// Ciphered formats need the player script to build their URL.
			streamURL, err := y.client.GetStreamURLContext(ctx, video, f)
			if err != nil {
				y.logger.Debug("skipping undecipherable format", "itag", f.ItagNo, "error", err)
			} else {
				raw.DirectURL = streamURL
			}
		}
		info.Formats = append(info.Formats, raw)
	}

	return info, nil
}

func mapYouTubeFormat(f *youtube.Format) domain.RawFormat {
	raw := domain.RawFormat{
		FormatID:  itagID(f.ItagNo),
		Height:    f.Height,
		DirectURL: f.URL,
	}

	mediaType, params, err := mime.ParseMediaType(f.MimeType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(f.MimeType, ";", 2)[0])
	}
	var codecs []string
	for _, c := range strings.Split(params["codecs"], ",") {
		if c = strings.TrimSpace(c); c != "" {
			codecs = append(codecs, c)
		}
	}

	major, sub, _ := strings.Cut(mediaType, "/")
	raw.Ext = sub
	if sub == "3gpp" {
		raw.Ext = "3gp"
	}

	switch major {
	case "audio":
		raw.VideoCodec = domain.CodecNone
		if len(codecs) > 0 {
			raw.AudioCodec = codecs[0]
		}
	case "video":
		if len(codecs) > 0 {
			raw.VideoCodec = codecs[0]
		}
		switch {
		case len(codecs) > 1:
			raw.AudioCodec = codecs[1]
		case f.AudioChannels == 0:
			raw.AudioCodec = domain.CodecNone
		}
	default:
		raw.VideoCodec = domain.CodecNone
		raw.AudioCodec = domain.CodecNone
	}

	bitrate := f.AverageBitrate
	if bitrate <= 0 {
		bitrate = f.Bitrate
	}
	if bitrate > 0 && raw.VideoCodec == domain.CodecNone {
		kbps := float64(bitrate) / 1000
		raw.AverageBitrate = &kbps
	}

	return raw
}

func itagID(itag int) string {
	return strconv.Itoa(itag)
}

func bestThumbnailURL(thumbnails youtube.Thumbnails) string {
	bestURL := ""
	var bestArea uint
	for _, thumb := range thumbnails {
		area := thumb.Width * thumb.Height
		if area >= bestArea {
			bestArea = area
			bestURL = thumb.URL
		}
	}
	return bestURL
}
