package handler

import (
	"mime"
	"net/url"
	"strings"
	"unicode"
)

// DefaultDownloadTitle names downloads submitted without a title.
const DefaultDownloadTitle = "video"

const defaultExt = "mp4"

// SanitizeTitle replaces every rune that is not a letter, digit, space,
// underscore or hyphen with an underscore.
func SanitizeTitle(title string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, title)
}

// ExtensionFromURL derives a file extension from the "mime" query parameter
// of a stream URL, e.g. "video/webm" gives "webm". It falls back to mp4.
func ExtensionFromURL(streamURL string) string {
	u, err := url.Parse(streamURL)
	if err != nil {
		return defaultExt
	}
	m := u.Query().Get("mime")
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	i := strings.LastIndexByte(m, '/')
	if i < 0 {
		return defaultExt
	}
	ext := strings.TrimSpace(m[i+1:])
	if ext == "" {
		return defaultExt
	}
	return ext
}

// BuildFilename joins the sanitized title with the optional resolution and
// stream type: "<title>[_<resolution>][_<type>].<ext>".
func BuildFilename(title, resolution, streamType, ext string) string {
	if title == "" {
		title = DefaultDownloadTitle
	}
	parts := []string{SanitizeTitle(title)}
	if resolution != "" {
		parts = append(parts, resolution)
	}
	if streamType != "" {
		parts = append(parts, streamType)
	}
	return strings.Join(parts, "_") + "." + ext
}

// ContentDisposition returns an attachment header value for filename.
// Non-ASCII names use the RFC 2231 filename* form.
func ContentDisposition(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}
