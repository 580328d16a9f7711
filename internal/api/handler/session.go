package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iconidentify/linkgrabba/internal/config"
	"github.com/iconidentify/linkgrabba/internal/session"
)

const pingWriteTimeout = 10 * time.Second

// SessionHandler upgrades clients to WebSocket extraction sessions.
type SessionHandler struct {
	resolver session.Resolver
	cfg      config.SessionConfig
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(resolver session.Resolver, cfg config.SessionConfig, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{
		resolver: resolver,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger,
	}
}

// Extract handles GET /ws/extract.
func (h *SessionHandler) Extract(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.logger.Warn("websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ch := session.NewChannel(conn, h.resolver, h.cfg.QueueSize, h.logger.With("remote_addr", r.RemoteAddr))

	if h.cfg.PingInterval > 0 {
		pongWait := 2 * h.cfg.PingInterval
		ch.SetReadTimeout(pongWait)
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		go keepalive(ctx, conn, h.cfg.PingInterval)
	}

	if err := ch.Run(ctx); err != nil {
		h.logger.Debug("session error", "session_id", ch.ID(), "error", err)
	}
}

// keepalive pings the client until ctx is done or a ping fails.
func keepalive(ctx context.Context, conn *websocket.Conn, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pingWriteTimeout)); err != nil {
				return
			}
		}
	}
}
