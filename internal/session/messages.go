package session

import "github.com/iconidentify/linkgrabba/internal/domain"

// Status values sent in StatusMessage.
const (
	StatusProgress = "progress"
	StatusDone     = "done"
)

// Fixed status texts.
const (
	ProgressText = "Extracting info..."
	DoneText     = "Done! Direct links ready."
)

// StatusMessage is a progress or completion notification.
type StatusMessage struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ErrorMessage reports a failed submission.
type ErrorMessage struct {
	Error string `json:"error"`
}

// ResultMessage carries the resolved formats for one submission.
type ResultMessage struct {
	Title     string          `json:"title"`
	Thumbnail string          `json:"thumbnail"`
	Formats   []FormatPayload `json:"formats"`
}

// FormatPayload is one candidate format on the wire.
type FormatPayload struct {
	FormatID   string            `json:"format_id"`
	Type       domain.StreamKind `json:"type"`
	Resolution string            `json:"resolution,omitempty"`
	Bitrate    *float64          `json:"bitrate,omitempty"`
	Ext        string            `json:"ext,omitempty"`
	DirectURL  string            `json:"direct_url"`
}

// NewResultMessage converts a resolved result to its wire form.
func NewResultMessage(r *domain.MediaResult) ResultMessage {
	msg := ResultMessage{
		Title:     r.Title,
		Thumbnail: r.Thumbnail,
		Formats:   make([]FormatPayload, 0, len(r.Formats)),
	}
	for _, f := range r.Formats {
		msg.Formats = append(msg.Formats, FormatPayload{
			FormatID:   f.FormatID,
			Type:       f.Kind,
			Resolution: f.ResolutionLabel,
			Bitrate:    f.Bitrate,
			Ext:        f.Ext,
			DirectURL:  f.DirectURL,
		})
	}
	return msg
}
