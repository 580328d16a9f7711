package extractor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os/exec"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/iconidentify/linkgrabba/internal/config"
	"github.com/iconidentify/linkgrabba/internal/domain"
)

// errNoInfo is returned when yt-dlp exits cleanly but prints no info dump.
var errNoInfo = errors.New("yt-dlp returned no extracted info")

// RunError is a failed yt-dlp run together with what it printed to stderr.
type RunError struct {
	Stderr string
	Err    error
}

func (e *RunError) Error() string {
	return e.Err.Error()
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// InfoRunner runs a prepared yt-dlp command against url and returns the
// single-JSON info dump. Run failures are *RunError.
type InfoRunner func(ctx context.Context, cmd *ytdlp.Command, url string) (*ytdlp.ExtractedInfo, error)

// YTDLP is the general-purpose backend. It runs the yt-dlp binary and reads
// its single-JSON dump without downloading any payload.
type YTDLP struct {
	path        string
	format      string
	timeout     time.Duration
	cookiesPath string
	run         InfoRunner
	logger      *slog.Logger
}

// NewYTDLP creates a yt-dlp backend.
func NewYTDLP(cfg config.ExtractorConfig, logger *slog.Logger) *YTDLP {
	return &YTDLP{
		path:        cfg.YTDLPPath,
		format:      cfg.Format,
		timeout:     cfg.Timeout,
		cookiesPath: cfg.CookiesPath,
		run:         runCommand,
		logger:      logger,
	}
}

// SetRunner replaces the command runner.
func (y *YTDLP) SetRunner(run InfoRunner) {
	y.run = run
}

// Name returns the backend name.
func (y *YTDLP) Name() string {
	return "yt-dlp"
}

// Ready checks that the yt-dlp binary can be resolved.
func (y *YTDLP) Ready(ctx context.Context) error {
	if _, err := exec.LookPath(y.path); err != nil {
		return fmt.Errorf("%s: %w", y.path, domain.ErrBackendUnavailable)
	}
	return nil
}

// Extract runs yt-dlp against url and maps its format list.
func (y *YTDLP) Extract(ctx context.Context, url string) (*domain.RawMediaInfo, error) {
	if y.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.timeout)
		defer cancel()
	}

	start := time.Now()
	info, err := y.run(ctx, y.options().command(y.path), url)
	if err != nil {
		reason, cause := classifyRunError(ctx, err)
		y.logger.Warn("yt-dlp extraction failed",
			"url", url,
			"reason", reason,
			"error", cause,
			"duration", time.Since(start),
		)
		return nil, domain.NewExtractionError(y.Name(), url, reason, cause)
	}

	result := mapExtractedInfo(info)
	y.logger.Info("yt-dlp extraction complete",
		"url", url,
		"formats", len(result.Formats),
		"duration", time.Since(start),
	)
	return result, nil
}

// ytdlpOptions are the per-run settings applied to a yt-dlp command.
type ytdlpOptions struct {
	format  string
	cookies string
}

func (y *YTDLP) options() ytdlpOptions {
	opts := ytdlpOptions{format: y.format}

	// yt-dlp only reads Netscape jars; JSON exports are for the browser.
	if y.cookiesPath != "" {
		cookies, format, err := LoadCookies(y.cookiesPath)
		switch {
		case err != nil:
			y.logger.Warn("ignoring unreadable cookie file", "path", y.cookiesPath, "error", err)
		case format == CookieFormatNetscape && len(cookies) > 0:
			opts.cookies = y.cookiesPath
		}
	}
	return opts
}

func (o ytdlpOptions) command(path string) *ytdlp.Command {
	cmd := ytdlp.New().
		SetExecutable(path).
		DumpSingleJSON().
		SkipDownload().
		NoPlaylist().
		NoWarnings()
	if o.format != "" {
		cmd = cmd.Format(o.format)
	}
	if o.cookies != "" {
		cmd = cmd.Cookies(o.cookies)
	}
	return cmd
}

func runCommand(ctx context.Context, cmd *ytdlp.Command, url string) (*ytdlp.ExtractedInfo, error) {
	res, err := cmd.Run(ctx, url)
	if err != nil {
		runErr := &RunError{Err: err}
		if res != nil {
			runErr.Stderr = res.Stderr
		}
		return nil, runErr
	}

	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errNoInfo, err)
	}
	if len(infos) == 0 || infos[0] == nil {
		return nil, errNoInfo
	}
	return infos[0], nil
}

func mapExtractedInfo(info *ytdlp.ExtractedInfo) *domain.RawMediaInfo {
	result := &domain.RawMediaInfo{
		Title:     deref(info.Title),
		Thumbnail: deref(info.Thumbnail),
		Formats:   make([]domain.RawFormat, 0, len(info.Formats)),
	}
	for _, f := range info.Formats {
		if f != nil {
			result.Formats = append(result.Formats, mapExtractedFormat(f))
		}
	}
	// Single-format extractions report the stream at the top level.
	if len(info.Formats) == 0 && deref(info.URL) != "" {
		result.Formats = append(result.Formats, mapExtractedFormat(&info.ExtractedFormat))
	}
	return result
}

func mapExtractedFormat(f *ytdlp.ExtractedFormat) domain.RawFormat {
	raw := domain.RawFormat{
		FormatID:   deref(f.FormatID),
		VideoCodec: deref(f.VCodec),
		AudioCodec: deref(f.ACodec),
		Ext:        deref(f.Extension),
		DirectURL:  deref(f.URL),
	}
	if f.Height != nil && *f.Height > 0 {
		raw.Height = int(math.Round(*f.Height))
	}
	if f.ABR != nil {
		abr := *f.ABR
		raw.AverageBitrate = &abr
	}
	return raw
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// classifyRunError maps a failed yt-dlp run to a domain reason and a cause
// carrying yt-dlp's own error message.
func classifyRunError(ctx context.Context, err error) (reason, cause error) {
	if errors.Is(err, errNoInfo) {
		return domain.ErrParseFailed, err
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) ||
		strings.Contains(err.Error(), "executable file not found") {
		return domain.ErrBackendUnavailable, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return domain.ErrExtractionFailed, ctxErr
	}

	var stderr string
	var runErr *RunError
	if errors.As(err, &runErr) {
		stderr = runErr.Stderr
		err = runErr.Err
	}

	msg := lastErrorLine(stderr)
	if msg == "" {
		msg = err.Error()
	}
	cause = errors.New(msg)
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "unsupported url"):
		return domain.ErrUnsupportedURL, cause
	case strings.Contains(lower, "sign in"),
		strings.Contains(lower, "login required"),
		strings.Contains(lower, "confirm your age"),
		strings.Contains(lower, "private video"):
		return domain.ErrAuthRequired, cause
	case strings.Contains(lower, "not available in your country"),
		strings.Contains(lower, "geo restrict"),
		strings.Contains(lower, "geo-restrict"):
		return domain.ErrGeoRestricted, cause
	default:
		return domain.ErrExtractionFailed, cause
	}
}

func lastErrorLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	fallback := ""
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
		if fallback == "" {
			fallback = line
		}
	}
	return fallback
}
