package domain

import (
	"errors"
	"strconv"
)

// Domain errors.
var (
	// ErrInvalidURL is returned when a submitted URL cannot be parsed as http(s).
	ErrInvalidURL = errors.New("invalid URL")

	// ErrUnsupportedURL is returned when no backend can handle the URL.
	ErrUnsupportedURL = errors.New("unsupported URL")

	// ErrAuthRequired is returned when the media requires a logged-in session.
	ErrAuthRequired = errors.New("authentication required")

	// ErrGeoRestricted is returned when the media is not available in the server's region.
	ErrGeoRestricted = errors.New("media not available in this region")

	// ErrBackendUnavailable is returned when an extractor backend cannot be started.
	ErrBackendUnavailable = errors.New("extractor backend unavailable")

	// ErrParseFailed is returned when backend output cannot be decoded.
	ErrParseFailed = errors.New("failed to parse extractor output")

	// ErrExtractionFailed is the catch-all extraction failure.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrURLExpired is returned when a direct stream URL is no longer accepted upstream.
	ErrURLExpired = errors.New("stream URL has expired")

	// ErrRateLimited is returned when rate limited by the upstream host.
	ErrRateLimited = errors.New("rate limited")

	// ErrUpstreamFailed is returned when the upstream stream cannot be opened.
	ErrUpstreamFailed = errors.New("upstream stream unavailable")
)

// ExtractionError wraps an extraction failure with backend context.
// It matches both Reason and Err with errors.Is.
type ExtractionError struct {
	Backend string
	URL     string
	Reason  error
	Err     error
}

func (e *ExtractionError) Error() string {
	msg := e.Backend + ": " + e.Reason.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ExtractionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

// NewExtractionError creates a new ExtractionError.
func NewExtractionError(backend, url string, reason, err error) *ExtractionError {
	if reason == nil {
		reason = ErrExtractionFailed
	}
	return &ExtractionError{
		Backend: backend,
		URL:     url,
		Reason:  reason,
		Err:     err,
	}
}

// DispatchError wraps a failure to open or relay an upstream stream.
type DispatchError struct {
	URL    string
	Status int
	Err    error
}

func (e *DispatchError) Error() string {
	if e.Status != 0 {
		return "dispatch: upstream status " + strconv.Itoa(e.Status) + ": " + e.Err.Error()
	}
	return "dispatch: " + e.Err.Error()
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
