// Package session runs the per-client extraction protocol: the client sends
// page URLs, the server answers each with progress, result and completion
// messages, one submission at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/iconidentify/linkgrabba/internal/domain"
)

// DefaultQueueSize bounds the submissions buffered behind the one in flight.
const DefaultQueueSize = 8

// Conn is the subset of *websocket.Conn used by a channel.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	SetReadDeadline(t time.Time) error
	WriteJSON(v any) error
	Close() error
}

// Resolver turns a submitted URL into a media result.
type Resolver interface {
	Resolve(ctx context.Context, url string) (*domain.MediaResult, error)
}

// Channel serves one connected client.
type Channel struct {
	id          string
	conn        Conn
	resolver    Resolver
	queueSize   int
	readTimeout time.Duration
	logger      *slog.Logger
}

// NewChannel creates a channel over conn.
func NewChannel(conn Conn, resolver Resolver, queueSize int, logger *slog.Logger) *Channel {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	id := uuid.New().String()
	return &Channel{
		id:        id,
		conn:      conn,
		resolver:  resolver,
		queueSize: queueSize,
		logger:    logger.With("session_id", id),
	}
}

// SetReadTimeout makes every read fail if no frame, including a pong,
// arrives within d. The deadline is armed right before each read, so time
// the reader spends waiting for queue space is not counted. Zero disables it.
func (c *Channel) SetReadTimeout(d time.Duration) {
	c.readTimeout = d
}

// ID returns the session identifier used in logs.
func (c *Channel) ID() string {
	return c.id
}

// Run serves the client until it disconnects or ctx is cancelled, then
// closes the connection. A client disconnect is not an error.
func (c *Channel) Run(ctx context.Context) error {
	start := time.Now()
	c.logger.Info("session opened")

	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan string, c.queueSize)

	// Unblocks the reader once either side stops.
	stop := context.AfterFunc(gctx, func() { c.conn.Close() })
	defer stop()

	g.Go(func() error { return c.readLoop(gctx, queue) })
	g.Go(func() error { return c.processLoop(gctx, queue) })

	err := g.Wait()
	c.conn.Close()

	if err != nil && !isDisconnect(err) {
		c.logger.Warn("session ended with error", "error", err, "duration", time.Since(start))
		return err
	}
	c.logger.Info("session closed", "duration", time.Since(start))
	return nil
}

func (c *Channel) readLoop(ctx context.Context, queue chan<- string) error {
	for {
		if c.readTimeout > 0 {
			if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
				return fmt.Errorf("set read deadline: %w", err)
			}
		}
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		if msgType != websocket.TextMessage {
			continue
		}

		select {
		case queue <- string(data):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Channel) processLoop(ctx context.Context, queue <-chan string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case submission := <-queue:
			if err := c.handle(ctx, submission); err != nil {
				return err
			}
		}
	}
}

// handle runs one submission. Only write failures are returned; extraction
// failures are reported to the client.
func (c *Channel) handle(ctx context.Context, submission string) error {
	url := strings.TrimSpace(submission)

	if err := c.send(StatusMessage{Status: StatusProgress, Message: ProgressText}); err != nil {
		return err
	}

	if url == "" {
		return c.send(ErrorMessage{Error: domain.ErrInvalidURL.Error()})
	}

	start := time.Now()
	result, err := c.resolver.Resolve(ctx, url)
	if ctx.Err() != nil {
		c.logger.Info("extraction abandoned", "url", url, "duration", time.Since(start))
		return ctx.Err()
	}
	if err != nil {
		c.logger.Warn("extraction failed", "url", url, "error", err, "duration", time.Since(start))
		return c.send(ErrorMessage{Error: err.Error()})
	}

	if err := c.send(NewResultMessage(result)); err != nil {
		return err
	}
	c.logger.Info("extraction complete", "url", url, "formats", len(result.Formats), "duration", time.Since(start))
	return c.send(StatusMessage{Status: StatusDone, Message: DoneText})
}

func (c *Channel) send(v any) error {
	if err := c.conn.WriteJSON(v); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func isDisconnect(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return true
		}
	}
	return false
}
