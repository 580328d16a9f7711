package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/iconidentify/linkgrabba/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type frame struct {
	msgType int
	data    []byte
	err     error
}

// fakeConn feeds scripted frames to the channel and records what it writes.
type fakeConn struct {
	in  chan frame
	out chan []byte

	closeOnce sync.Once
	closed    chan struct{}

	writeErr error

	mu       sync.Mutex
	deadline time.Time
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan frame, 16),
		out:    make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

// errDeadline mimics the timeout a net.Conn returns after its read deadline.
var errDeadline = errors.New("i/o timeout")

// ReadMessage fails when the read deadline has already passed, like a
// websocket.Conn whose deadline expired while nobody was reading.
func (c *fakeConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	expired := !c.deadline.IsZero() && time.Now().After(c.deadline)
	c.mu.Unlock()
	if expired {
		return 0, nil, errDeadline
	}

	select {
	case f := <-c.in:
		return f.msgType, f.data, f.err
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *fakeConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) WriteJSON(v any) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.out <- data
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) submit(url string) {
	c.in <- frame{msgType: websocket.TextMessage, data: []byte(url)}
}

func (c *fakeConn) disconnect() {
	c.in <- frame{err: io.EOF}
}

// next waits for the next written message and decodes it as a generic map.
func (c *fakeConn) next(t *testing.T) map[string]any {
	t.Helper()
	select {
	case data := <-c.out:
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("decode %s: %v", data, err)
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

type resolverFunc func(ctx context.Context, url string) (*domain.MediaResult, error)

func (f resolverFunc) Resolve(ctx context.Context, url string) (*domain.MediaResult, error) {
	return f(ctx, url)
}

func runChannel(t *testing.T, conn *fakeConn, r Resolver) <-chan error {
	t.Helper()
	ch := NewChannel(conn, r, 4, testLogger())
	done := make(chan error, 1)
	go func() { done <- ch.Run(context.Background()) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func expectStatus(t *testing.T, m map[string]any, status, message string) {
	t.Helper()
	if m["status"] != status || m["message"] != message {
		t.Errorf("message = %v, want status %q message %q", m, status, message)
	}
}

func sampleResult() *domain.MediaResult {
	abr := 128.0
	return &domain.MediaResult{
		Title:     "My Video",
		Thumbnail: "https://i.example.com/t.jpg",
		Formats: []domain.NormalizedFormat{
			{FormatID: "18", Kind: domain.KindVideoAudio, ResolutionLabel: "360p", Ext: "mp4", DirectURL: "https://cdn.example.com/18"},
			{FormatID: "140", Kind: domain.KindAudioOnly, ResolutionLabel: "128kbps", Bitrate: &abr, Ext: "m4a", DirectURL: "https://cdn.example.com/140"},
		},
	}
}

func TestChannel_ErrorThenSuccess(t *testing.T) {
	conn := newFakeConn()
	resolver := resolverFunc(func(ctx context.Context, url string) (*domain.MediaResult, error) {
		if url == "https://bad.example.com/" {
			return nil, domain.NewExtractionError("yt-dlp", url, domain.ErrUnsupportedURL, nil)
		}
		return sampleResult(), nil
	})
	done := runChannel(t, conn, resolver)

	conn.submit("https://bad.example.com/")
	expectStatus(t, conn.next(t), StatusProgress, ProgressText)
	if msg := conn.next(t); msg["error"] != "yt-dlp: unsupported URL" {
		t.Errorf("error message = %v", msg)
	}

	conn.submit("  https://good.example.com/  ")
	expectStatus(t, conn.next(t), StatusProgress, ProgressText)

	result := conn.next(t)
	if result["title"] != "My Video" || result["thumbnail"] != "https://i.example.com/t.jpg" {
		t.Errorf("result = %v", result)
	}
	formats, ok := result["formats"].([]any)
	if !ok || len(formats) != 2 {
		t.Fatalf("formats = %v", result["formats"])
	}
	first := formats[0].(map[string]any)
	if first["type"] != "video+audio" || first["resolution"] != "360p" || first["direct_url"] != "https://cdn.example.com/18" {
		t.Errorf("first format = %v", first)
	}
	if _, has := first["bitrate"]; has {
		t.Error("muxed format should omit bitrate")
	}
	second := formats[1].(map[string]any)
	if second["type"] != "audio" || second["bitrate"] != 128.0 {
		t.Errorf("second format = %v", second)
	}

	expectStatus(t, conn.next(t), StatusDone, DoneText)

	conn.disconnect()
	if err := waitRun(t, done); err != nil {
		t.Errorf("Run() = %v, want nil on disconnect", err)
	}
}

func TestChannel_EmptySubmission(t *testing.T) {
	conn := newFakeConn()
	called := false
	done := runChannel(t, conn, resolverFunc(func(ctx context.Context, url string) (*domain.MediaResult, error) {
		called = true
		return sampleResult(), nil
	}))

	conn.submit("   ")
	expectStatus(t, conn.next(t), StatusProgress, ProgressText)
	if msg := conn.next(t); msg["error"] != "invalid URL" {
		t.Errorf("message = %v, want invalid URL error", msg)
	}

	conn.disconnect()
	waitRun(t, done)
	if called {
		t.Error("resolver should not be called for empty submissions")
	}
}

func TestChannel_SequentialOrdering(t *testing.T) {
	conn := newFakeConn()
	release := make(chan struct{})
	started := make(chan string, 2)

	done := runChannel(t, conn, resolverFunc(func(ctx context.Context, url string) (*domain.MediaResult, error) {
		started <- url
		if url == "https://a.example.com/" {
			<-release
		}
		return &domain.MediaResult{Title: url}, nil
	}))

	conn.submit("https://a.example.com/")
	conn.submit("https://b.example.com/")

	expectStatus(t, conn.next(t), StatusProgress, ProgressText)
	if got := <-started; got != "https://a.example.com/" {
		t.Fatalf("first started = %q", got)
	}

	select {
	case url := <-started:
		t.Fatalf("second submission %q started before first finished", url)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	if msg := conn.next(t); msg["title"] != "https://a.example.com/" {
		t.Errorf("result = %v, want first submission", msg)
	}
	expectStatus(t, conn.next(t), StatusDone, DoneText)
	expectStatus(t, conn.next(t), StatusProgress, ProgressText)
	if msg := conn.next(t); msg["title"] != "https://b.example.com/" {
		t.Errorf("result = %v, want second submission", msg)
	}
	expectStatus(t, conn.next(t), StatusDone, DoneText)

	conn.disconnect()
	waitRun(t, done)
}

func TestChannel_DisconnectCancelsExtraction(t *testing.T) {
	conn := newFakeConn()
	cancelled := make(chan struct{})

	done := runChannel(t, conn, resolverFunc(func(ctx context.Context, url string) (*domain.MediaResult, error) {
		<-ctx.Done()
		close(cancelled)
		return nil, ctx.Err()
	}))

	conn.submit("https://slow.example.com/")
	expectStatus(t, conn.next(t), StatusProgress, ProgressText)

	conn.disconnect()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("extraction was not cancelled")
	}
	if err := waitRun(t, done); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}

	select {
	case data := <-conn.out:
		t.Errorf("unexpected message after disconnect: %s", data)
	default:
	}
}

func TestChannel_IgnoresBinaryFrames(t *testing.T) {
	conn := newFakeConn()
	done := runChannel(t, conn, resolverFunc(func(ctx context.Context, url string) (*domain.MediaResult, error) {
		return &domain.MediaResult{Title: url}, nil
	}))

	conn.in <- frame{msgType: websocket.BinaryMessage, data: []byte("https://ignored.example.com/")}
	conn.submit("https://text.example.com/")

	expectStatus(t, conn.next(t), StatusProgress, ProgressText)
	if msg := conn.next(t); msg["title"] != "https://text.example.com/" {
		t.Errorf("result = %v, want text submission", msg)
	}

	conn.disconnect()
	waitRun(t, done)
}

func TestChannel_WriteFailure(t *testing.T) {
	conn := newFakeConn()
	conn.writeErr = errors.New("broken pipe")
	done := runChannel(t, conn, resolverFunc(func(ctx context.Context, url string) (*domain.MediaResult, error) {
		return sampleResult(), nil
	}))

	conn.submit("https://example.com/")

	err := waitRun(t, done)
	if err == nil || !errors.Is(err, conn.writeErr) {
		t.Errorf("Run() = %v, want write error", err)
	}
}

func TestChannel_CloseFrameIsDisconnect(t *testing.T) {
	conn := newFakeConn()
	done := runChannel(t, conn, resolverFunc(func(ctx context.Context, url string) (*domain.MediaResult, error) {
		return sampleResult(), nil
	}))

	conn.in <- frame{err: &websocket.CloseError{Code: websocket.CloseGoingAway}}
	if err := waitRun(t, done); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
}

func TestChannel_ParentCancel(t *testing.T) {
	conn := newFakeConn()
	ch := NewChannel(conn, resolverFunc(func(ctx context.Context, url string) (*domain.MediaResult, error) {
		return sampleResult(), nil
	}), 0, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ch.Run(ctx) }()

	cancel()
	if err := waitRun(t, done); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
	select {
	case <-conn.closed:
	default:
		t.Error("connection should be closed")
	}
}

func TestChannel_BacklogOutlivesReadTimeout(t *testing.T) {
	conn := newFakeConn()
	ch := NewChannel(conn, resolverFunc(func(ctx context.Context, url string) (*domain.MediaResult, error) {
		select {
		case <-time.After(60 * time.Millisecond):
			return sampleResult(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}), 1, testLogger())
	// Shorter than the time the reader waits for queue space.
	ch.SetReadTimeout(40 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- ch.Run(context.Background()) }()

	const submissions = 4
	for i := 0; i < submissions; i++ {
		conn.submit("https://example.com/v")
	}

	doneCount := 0
	for doneCount < submissions {
		m := conn.next(t)
		if _, ok := m["error"]; ok {
			t.Fatalf("unexpected error message: %v", m)
		}
		if m["status"] == StatusDone {
			doneCount++
		}
	}

	select {
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	default:
	}

	conn.disconnect()
	if err := waitRun(t, done); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
}

func TestChannel_ReadDeadlineArmedPerRead(t *testing.T) {
	conn := newFakeConn()
	ch := NewChannel(conn, resolverFunc(func(ctx context.Context, url string) (*domain.MediaResult, error) {
		return sampleResult(), nil
	}), 1, testLogger())
	ch.SetReadTimeout(time.Hour)

	done := make(chan error, 1)
	go func() { done <- ch.Run(context.Background()) }()

	conn.submit("https://example.com/v")
	for i := 0; i < 3; i++ {
		conn.next(t)
	}

	conn.mu.Lock()
	deadline := conn.deadline
	conn.mu.Unlock()
	if deadline.IsZero() {
		t.Error("read deadline was never set")
	}

	conn.disconnect()
	if err := waitRun(t, done); err != nil {
		t.Errorf("Run() = %v, want nil", err)
	}
}

func TestChannel_ID(t *testing.T) {
	a := NewChannel(newFakeConn(), nil, 1, testLogger())
	b := NewChannel(newFakeConn(), nil, 1, testLogger())

	if _, err := uuid.Parse(a.ID()); err != nil {
		t.Errorf("ID %q is not a UUID: %v", a.ID(), err)
	}
	if a.ID() == b.ID() {
		t.Error("session IDs should be unique")
	}
}

func TestNewResultMessage_EmptyFormats(t *testing.T) {
	data, err := json.Marshal(NewResultMessage(&domain.MediaResult{Title: "Video"}))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	want := `{"title":"Video","thumbnail":"","formats":[]}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}
}
