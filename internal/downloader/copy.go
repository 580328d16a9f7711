package downloader

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// DefaultChunkSize is the copy buffer size used when none is configured.
const DefaultChunkSize = 1 << 20

// ErrClientWrite marks a copy that stopped because the destination failed.
var ErrClientWrite = errors.New("client write failed")

// CopyChunked copies src to dst through a buffer of chunkSize bytes and
// flushes dst after every chunk when it is an http.Flusher. Write failures
// wrap ErrClientWrite; read failures are returned as they are.
func CopyChunked(dst io.Writer, src io.Reader, chunkSize int) (int64, error) {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	flusher, _ := dst.(http.Flusher)
	buf := make([]byte, chunkSize)

	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			w, err := dst.Write(buf[:n])
			written += int64(w)
			if err != nil {
				return written, fmt.Errorf("%w: %v", ErrClientWrite, err)
			}
			if w != n {
				return written, fmt.Errorf("%w: %v", ErrClientWrite, io.ErrShortWrite)
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
