package handler

import (
	"mime"
	"testing"
)

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"My Video", "My Video"},
		{"My Video!", "My Video_"},
		{"a/b\\c:d", "a_b_c_d"},
		{"keep_this-too", "keep_this-too"},
		{"Café 東京", "Café 東京"},
		{"quote\"semi;", "quote_semi_"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := SanitizeTitle(tt.in); got != tt.want {
				t.Errorf("SanitizeTitle(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtensionFromURL(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://rr.googlevideo.com/videoplayback?mime=video%2Fwebm&itag=43", "webm"},
		{"https://rr.googlevideo.com/videoplayback?mime=video/mp4", "mp4"},
		{"https://cdn.example.com/a?mime=audio%2Fmp4%3B+codecs%3D%22mp4a%22", "mp4"},
		{"https://cdn.example.com/a?mime=video", "mp4"},
		{"https://cdn.example.com/a?mime=video%2F", "mp4"},
		{"https://cdn.example.com/a.mp4", "mp4"},
		{"://bad", "mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			if got := ExtensionFromURL(tt.url); got != tt.want {
				t.Errorf("ExtensionFromURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}

func TestBuildFilename(t *testing.T) {
	tests := []struct {
		name                 string
		title, res, typ, ext string
		want                 string
	}{
		{"all parts", "My Video", "720p", "video+audio", "mp4", "My Video_720p_video+audio.mp4"},
		{"no resolution", "Clip", "", "video+audio", "webm", "Clip_video+audio.webm"},
		{"title only", "Clip", "", "", "mp4", "Clip.mp4"},
		{"default title", "", "360p", "video+audio", "mp4", "video_360p_video+audio.mp4"},
		{"sanitized", "What?!", "1080p", "", "mp4", "What___1080p.mp4"},
		{"space kept, punctuation replaced", "My Video!", "720p", "video+audio", "mp4", "My Video__720p_video+audio.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildFilename(tt.title, tt.res, tt.typ, tt.ext); got != tt.want {
				t.Errorf("BuildFilename() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContentDisposition(t *testing.T) {
	tests := []string{
		"My Video_720p_video+audio.mp4",
		"plain.mp4",
		"Café 東京_video+audio.mp4",
	}

	for _, filename := range tests {
		t.Run(filename, func(t *testing.T) {
			header := ContentDisposition(filename)
			disposition, params, err := mime.ParseMediaType(header)
			if err != nil {
				t.Fatalf("ParseMediaType(%q) failed: %v", header, err)
			}
			if disposition != "attachment" {
				t.Errorf("disposition = %q, want attachment", disposition)
			}
			if params["filename"] != filename {
				t.Errorf("filename = %q, want %q", params["filename"], filename)
			}
		})
	}
}

func TestContentDisposition_QuotesSpaces(t *testing.T) {
	got := ContentDisposition("My Video_720p_video+audio.mp4")
	want := `attachment; filename="My Video_720p_video+audio.mp4"`
	if got != want {
		t.Errorf("ContentDisposition() = %q, want %q", got, want)
	}
}
