package downloader

import (
	"context"
	"io"
)

// Opener opens upstream media streams.
type Opener interface {
	// Open starts a GET for url and returns once response headers arrive.
	// Caller is responsible for closing the stream body.
	Open(ctx context.Context, url string) (*Stream, error)
}

// Stream is an open upstream response.
type Stream struct {
	Body        io.ReadCloser
	Size        int64 // -1 when unknown
	ContentType string
}
