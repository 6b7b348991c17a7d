package livews

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"hotel-receptionist/internal/pricing"
	"hotel-receptionist/internal/session"

	"github.com/gorilla/websocket"
)

var errClosed = errors.New("live connection closed")

type frame struct {
	kind int
	data []byte
}

// bridge turns engine callbacks into websocket frames and menu submissions
// from the browser into MenuUI answers. It implements session.Observer and
// session.MenuUI for one connection.
type bridge struct {
	out  chan frame
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	pending map[string]chan []pricing.CartLine
}

func newBridge(buffer int) *bridge {
	return &bridge{
		out:     make(chan frame, buffer),
		done:    make(chan struct{}),
		pending: make(map[string]chan []pricing.CartLine),
	}
}

func (b *bridge) close() {
	b.once.Do(func() { close(b.done) })
}

func (b *bridge) send(f frame) error {
	select {
	case <-b.done:
		return errClosed
	case b.out <- f:
		return nil
	}
}

func (b *bridge) sendEvent(ev ServerEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.send(frame{kind: websocket.TextMessage, data: data})
}

func (b *bridge) OnState(s session.State) {
	_ = b.sendEvent(ServerEvent{Type: EventState, State: s.String()})
}

func (b *bridge) OnNotification(n session.Notification) {
	_ = b.sendEvent(ServerEvent{Type: EventNotification, Message: n.Message, Kind: n.Kind})
}

func (b *bridge) OnTranscript(entries []session.TranscriptEntry) {
	_ = b.sendEvent(ServerEvent{Type: EventTranscript, Transcript: entries})
}

func (b *bridge) OnAudio(p session.Playback) {
	if err := b.sendEvent(ServerEvent{
		Type:       EventPlayback,
		StartAt:    p.StartAt.UnixMilli(),
		DurationMS: p.Duration.Milliseconds(),
	}); err != nil {
		return
	}
	_ = b.send(frame{kind: websocket.BinaryMessage, data: p.PCM})
}

func (b *bridge) OnFeedbackPrompt() {
	_ = b.sendEvent(ServerEvent{Type: EventFeedback})
}

// OpenMenu shows the menu and waits for menu_submit or menu_cancel.
func (b *bridge) OpenMenu(ctx context.Context, callID string, menu pricing.Menu) ([]pricing.CartLine, error) {
	reply := make(chan []pricing.CartLine, 1)
	b.mu.Lock()
	b.pending[callID] = reply
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, callID)
		b.mu.Unlock()
	}()

	if err := b.sendEvent(ServerEvent{Type: EventMenuOpen, CallID: callID, Menu: menu}); err != nil {
		return nil, session.ErrMenuCancelled
	}

	select {
	case cart, ok := <-reply:
		if !ok {
			return nil, session.ErrMenuCancelled
		}
		return cart, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.done:
		return nil, session.ErrMenuCancelled
	}
}

// resolveMenu answers a pending OpenMenu. A nil cart cancels. An empty
// callID targets the only open menu.
func (b *bridge) resolveMenu(callID string, cart []pricing.CartLine, cancel bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if callID == "" {
		for id := range b.pending {
			callID = id
			break
		}
	}
	reply, ok := b.pending[callID]
	if !ok {
		return false
	}
	delete(b.pending, callID)
	if cancel {
		close(reply)
	} else {
		reply <- cart
	}
	return true
}

// writeLoop is the only writer of conn.
func (b *bridge) writeLoop(conn *websocket.Conn, writeTimeout, pingInterval time.Duration) error {
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	for {
		select {
		case <-b.done:
			b.drain(conn, writeTimeout)
			deadline := time.Now().Add(writeTimeout)
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return nil
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				return err
			}
		case f := <-b.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(f.kind, f.data); err != nil {
				return err
			}
		}
	}
}

// drain flushes frames queued before close.
func (b *bridge) drain(conn *websocket.Conn, writeTimeout time.Duration) {
	for {
		select {
		case f := <-b.out:
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(f.kind, f.data); err != nil {
				return
			}
		default:
			return
		}
	}
}
