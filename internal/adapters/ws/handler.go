package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/pitwall/internal/domain/rank"
	"github.com/okian/pitwall/pkg/logger"
)

// Default handler configuration constants.
const (
	defaultWriteTimeout = 10 * time.Second
	defaultPingInterval = 30 * time.Second
	maxControlFrameSize = 1 << 20 // viewer frames are small; telemetry payloads stay well under this
)

// Deps bundles what the subscriber endpoint needs from the service layer.
type Deps interface {
	// Ingest validates and enqueues a telemetry payload. origin is the
	// subscriber handle the sample arrived on, so driver:update messages can
	// target it. Returns true when a retried sample was suppressed.
	Ingest(ctx context.Context, fields map[string]any, origin string) (bool, error)

	// Leaderboard returns the current ranked top-N list.
	Leaderboard(ctx context.Context) []rank.Entry

	// ResetDrivers clears all driver state and broadcasts an empty board.
	ResetDrivers(ctx context.Context) error
}

// Handler upgrades viewer connections and bridges them to the registry.
type Handler struct {
	reg  *Registry
	deps Deps

	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	pingInterval time.Duration
	log          logger.Logger
}

// NewHandler creates a WebSocket handler with configuration options.
func NewHandler(reg *Registry, deps Deps, opts ...HandlerOption) *Handler {
	h := &Handler{
		reg:  reg,
		deps: deps,
		upgrader: websocket.Upgrader{
			// Viewers connect from arbitrary dashboards.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		writeTimeout: defaultWriteTimeout,
		pingInterval: defaultPingInterval,
		log:          logger.Get().Named("ws"),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// ServeWS handles GET /ws: upgrade, register, push the initial leaderboard
// snapshot, then pump messages until disconnect.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(ctx, "websocket upgrade failed", logger.Error(err))
		return
	}

	handle := h.reg.NewHandle()
	h.log.Info(ctx, "subscriber connected", logger.String("handle", handle.ID()))

	go h.writePump(conn, handle)

	// Initial snapshot so a fresh viewer renders immediately.
	if err := h.reg.DeliverToOne(ctx, handle.ID(), LeaderboardMessage(h.deps.Leaderboard(ctx))); err != nil {
		h.log.Warn(ctx, "initial snapshot delivery failed", logger.Error(err))
	}

	h.readLoop(ctx, conn, handle)
}

// readLoop dispatches viewer control messages until the connection drops.
func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, handle *Handle) {
	defer func() {
		h.reg.Remove(handle)
		_ = conn.Close()
		h.log.Info(ctx, "subscriber disconnected", logger.String("handle", handle.ID()))
	}()

	conn.SetReadLimit(maxControlFrameSize)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			_ = h.reg.DeliverToOne(ctx, handle.ID(), ErrorMessage("invalid message"))
			continue
		}

		switch env.Type {
		case TypeTelemetryUpdate:
			if _, err := h.deps.Ingest(ctx, env.Data, handle.ID()); err != nil {
				_ = h.reg.DeliverToOne(ctx, handle.ID(), ErrorMessage(err.Error()))
			}
		case TypeLeaderboardSubscribe:
			// Forced recompute-and-send, bypassing the debounce.
			_ = h.reg.DeliverToOne(ctx, handle.ID(), LeaderboardMessage(h.deps.Leaderboard(ctx)))
		case TypeLeaderboardReset:
			if err := h.deps.ResetDrivers(ctx); err != nil {
				_ = h.reg.DeliverToOne(ctx, handle.ID(), ErrorMessage(err.Error()))
			}
		default:
			h.log.Debug(ctx, "ignoring unknown control message",
				logger.String("type", env.Type),
				logger.String("handle", handle.ID()),
			)
		}
	}
}

// writePump drains the handle's outbound queue onto the socket, keeping the
// connection alive with pings. Any write error closes the handle; the read
// loop then unregisters it.
func (h *Handler) writePump(conn *websocket.Conn, handle *Handle) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		handle.Close()
		_ = conn.Close()
	}()

	for {
		select {
		case msg := <-handle.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-handle.Closed():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
