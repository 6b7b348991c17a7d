// Package livews bridges a browser to a live session over a WebSocket:
// binary frames carry PCM audio both ways and text frames carry JSON control
// messages and UI events.
package livews

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"hotel-receptionist/internal/metrics"
	"hotel-receptionist/internal/session"

	"github.com/gorilla/websocket"
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultPingInterval = 20 * time.Second
	maxFrameBytes       = 1 << 20
	outboundBuffer      = 256
)

// Call is the live session surface driven by the browser.
type Call interface {
	Connect(ctx context.Context) error
	CaptureFrame(ctx context.Context, pcm []byte) error
	SetMuted(muted bool)
	Disconnect(ctx context.Context, reason string)
	Close()
}

// CallFactory builds a call wired to the connection's observer and menu.
type CallFactory func(obs session.Observer, menu session.MenuUI) Call

// Options tunes the handler.
type Options struct {
	WriteTimeout time.Duration
	PingInterval time.Duration
	// AllowedOrigins restricts browser origins; empty allows all.
	AllowedOrigins []string
}

// Handler serves GET /live.
type Handler struct {
	newCall  CallFactory
	logger   *slog.Logger
	metrics  *metrics.Metrics
	opts     Options
	upgrader websocket.Upgrader
}

// NewHandler creates the live call handler.
func NewHandler(newCall CallFactory, logger *slog.Logger, m *metrics.Metrics, opts Options) *Handler {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	h := &Handler{
		newCall: newCall,
		logger:  logger.With("component", "live_ws"),
		metrics: m,
		opts:    opts,
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.originAllowed}
	return h
}

func (h *Handler) originAllowed(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.opts.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameBytes)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	b := newBridge(outboundBuffer)
	defer b.close()
	writeErr := make(chan error, 1)
	go func() { writeErr <- b.writeLoop(conn, h.opts.WriteTimeout, h.opts.PingInterval) }()

	call := h.newCall(b, b)
	defer call.Close()

	if err := call.Connect(ctx); err != nil {
		h.logger.Error("live call failed to connect", "error", err)
		h.countError()
		_ = b.sendEvent(ServerEvent{Type: EventNotification, Message: "Unable to reach the receptionist. Please try again.", Kind: "error"})
		b.close()
		<-writeErr
		return
	}

	h.readLoop(ctx, conn, b, call)
	b.close()
	if err := <-writeErr; err != nil {
		h.logger.Debug("live writer stopped", "error", err)
	}
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, b *bridge, call Call) {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("live read ended", "error", err)
			}
			return
		}

		switch kind {
		case websocket.BinaryMessage:
			if err := call.CaptureFrame(ctx, data); err != nil && !errors.Is(err, session.ErrNotConnected) {
				h.logger.Warn("forwarding caller audio failed", "error", err)
			}
		case websocket.TextMessage:
			var msg ClientMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				h.logger.Debug("ignoring malformed client message", "error", err)
				continue
			}
			h.handleMessage(ctx, b, call, msg)
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, b *bridge, call Call, msg ClientMessage) {
	switch msg.Type {
	case TypeMute:
		call.SetMuted(msg.Muted)
	case TypeMenuSubmit:
		if !b.resolveMenu(msg.CallID, msg.Items, false) {
			h.logger.Debug("menu submit without open menu", "call_id", msg.CallID)
		}
	case TypeMenuCancel:
		b.resolveMenu(msg.CallID, nil, true)
	case TypeHangup:
		// Disconnect waits for playback; keep reading meanwhile.
		go call.Disconnect(ctx, "")
	default:
		h.logger.Debug("unknown client message", "type", msg.Type)
	}
}

func (h *Handler) countError() {
	if h.metrics == nil {
		return
	}
	h.metrics.Errors.WithLabelValues("live_ws").Inc()
}
