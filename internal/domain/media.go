package domain

import (
	"fmt"
	"strconv"
)

// CodecNone marks a stream as absent in extractor codec fields.
const CodecNone = "none"

// RawMediaInfo is what an extractor backend returns for a page URL.
type RawMediaInfo struct {
	Title     string
	Thumbnail string
	Formats   []RawFormat
}

// RawFormat is one stream variant as reported by an extractor backend.
//
// An empty codec means the backend could not tell and counts as present;
// only CodecNone marks a stream as absent. Height zero means unknown.
type RawFormat struct {
	FormatID       string
	VideoCodec     string
	AudioCodec     string
	Height         int
	AverageBitrate *float64 // kbps
	Ext            string
	DirectURL      string

	// ResolutionHint labels muxed formats that carry no height.
	ResolutionHint string
}

// HasVideo reports whether the format carries a video stream.
func (f RawFormat) HasVideo() bool {
	return f.VideoCodec != CodecNone
}

// HasAudio reports whether the format carries an audio stream.
func (f RawFormat) HasAudio() bool {
	return f.AudioCodec != CodecNone
}

// StreamKind classifies a format by the streams it carries.
type StreamKind int

const (
	KindVideoAudio StreamKind = iota + 1
	KindVideoOnly
	KindAudioOnly
)

// String returns the wire name of the kind.
func (k StreamKind) String() string {
	switch k {
	case KindVideoAudio:
		return "video+audio"
	case KindVideoOnly:
		return "video"
	case KindAudioOnly:
		return "audio"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k StreamKind) MarshalText() ([]byte, error) {
	switch k {
	case KindVideoAudio, KindVideoOnly, KindAudioOnly:
		return []byte(k.String()), nil
	default:
		return nil, fmt.Errorf("invalid stream kind %d", int(k))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *StreamKind) UnmarshalText(text []byte) error {
	parsed, ok := ParseStreamKind(string(text))
	if !ok {
		return fmt.Errorf("invalid stream kind %q", string(text))
	}
	*k = parsed
	return nil
}

// ParseStreamKind maps a wire name back to a StreamKind.
func ParseStreamKind(s string) (StreamKind, bool) {
	switch s {
	case "video+audio":
		return KindVideoAudio, true
	case "video":
		return KindVideoOnly, true
	case "audio":
		return KindAudioOnly, true
	default:
		return 0, false
	}
}

// ClassifyKind derives the kind of a raw format. ok is false when the format
// carries neither video nor audio.
func ClassifyKind(f RawFormat) (kind StreamKind, ok bool) {
	switch {
	case f.HasVideo() && f.HasAudio():
		return KindVideoAudio, true
	case f.HasVideo():
		return KindVideoOnly, true
	case f.HasAudio():
		return KindAudioOnly, true
	default:
		return 0, false
	}
}

// NormalizedFormat is a client-ready candidate format.
type NormalizedFormat struct {
	FormatID        string
	Kind            StreamKind
	ResolutionLabel string
	Bitrate         *float64 // kbps, audio-only formats
	Ext             string
	DirectURL       string
}

// MediaResult is the outcome of resolving one submitted URL.
type MediaResult struct {
	Title     string
	Thumbnail string
	Formats   []NormalizedFormat
}

// HeightLabel renders a pixel height as "720p".
func HeightLabel(height int) string {
	return strconv.Itoa(height) + "p"
}

// BitrateLabel renders a kbps bitrate as "128kbps".
func BitrateLabel(kbps float64) string {
	return strconv.FormatFloat(kbps, 'f', -1, 64) + "kbps"
}
