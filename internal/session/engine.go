package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/metrics"
	"hotel-receptionist/internal/pricing"
	"hotel-receptionist/internal/tools"

	"github.com/google/uuid"
)

const (
	greeting        = "The user has connected. Greet them immediately."
	defaultFarewell = "Thank you for calling. Have a wonderful day!"

	activityThreshold = 0.008
	watchdogInterval  = time.Second
	drainPadding      = 500 * time.Millisecond
	feedbackDelay     = 2500 * time.Millisecond
)

// Config tunes an Engine. Zero values take the defaults noted per field.
type Config struct {
	// IdleTimeout ends a silent call; default 90s.
	IdleTimeout time.Duration
	// MaxDrain caps the wait for queued playback on hang-up; default 4s.
	MaxDrain time.Duration
	// Currency formats menu order totals when no Settings are wired, or
	// they fail; default UGX.
	Currency string
}

// Deps groups the collaborators of an Engine.
type Deps struct {
	Connector Connector
	Tools     ToolExecutor
	Menu      MenuUI
	Observer  Observer
	Clock     Clock
	// Settings and Audit are optional.
	Settings ConfigSource
	Audit    AuditLog
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Engine is one live call. It is safe for concurrent use; all state is
// guarded by mu and observer callbacks run outside the lock.
type Engine struct {
	connector Connector
	tools     ToolExecutor
	menu      MenuUI
	observer  Observer
	clock     Clock
	settings  ConfigSource
	audit     AuditLog
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cfg       Config

	mu           sync.Mutex
	callID       string
	state        State
	muted        bool
	busy         int
	lastActivity time.Time
	cursor       time.Time
	transcript   []TranscriptEntry
	stream       Stream
	cancel       context.CancelFunc
	ticker       Ticker
}

// New builds an idle engine.
func New(d Deps, cfg Config) *Engine {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 90 * time.Second
	}
	if cfg.MaxDrain <= 0 {
		cfg.MaxDrain = 4 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "UGX"
	}
	if d.Observer == nil {
		d.Observer = nopObserver{}
	}
	if d.Clock == nil {
		d.Clock = SystemClock{}
	}
	return &Engine{
		connector: d.Connector,
		tools:     d.Tools,
		menu:      d.Menu,
		observer:  d.Observer,
		clock:     d.Clock,
		settings:  d.Settings,
		audit:     d.Audit,
		metrics:   d.Metrics,
		logger:    d.Logger.With("component", "session"),
		cfg:       cfg,
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Busy reports whether tool work is pending.
func (e *Engine) Busy() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busy > 0
}

// Transcript returns a copy of the transcript so far.
func (e *Engine) Transcript() []TranscriptEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// Connect opens the model stream, greets the caller and starts the receive
// loop and the inactivity watchdog. ctx bounds the lifetime of the call.
func (e *Engine) Connect(ctx context.Context) error {
	e.mu.Lock()
	if e.state != Disconnected {
		e.mu.Unlock()
		return ErrAlreadyConnected
	}
	e.state = Connecting
	e.mu.Unlock()
	e.observer.OnState(Connecting)

	stream, err := e.connector.Connect(ctx)
	if err != nil {
		e.setState(Disconnected)
		e.countError()
		return fmt.Errorf("connect model: %w", err)
	}

	callCtx, cancel := context.WithCancel(ctx)
	now := e.clock.Now()
	callID := "LIVE-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])

	e.mu.Lock()
	e.callID = callID
	e.state = Connected
	e.stream = stream
	e.cancel = cancel
	e.busy = 0
	e.muted = false
	e.lastActivity = now
	e.cursor = now
	e.transcript = []TranscriptEntry{{Role: RoleSystem, Text: "Connection Established. AI Receptionist Ready.", Complete: true}}
	snapshot := e.snapshotLocked()
	e.mu.Unlock()

	e.observer.OnState(Connected)
	e.observer.OnTranscript(snapshot)

	if err := stream.SendText(callCtx, greeting); err != nil {
		e.release()
		e.setState(Disconnected)
		e.countError()
		return fmt.Errorf("send greeting: %w", err)
	}

	ticker := e.clock.NewTicker(watchdogInterval)
	e.mu.Lock()
	e.ticker = ticker
	e.mu.Unlock()

	go e.receiveLoop(callCtx, stream)
	go e.watchdog(callCtx, ticker)

	if e.metrics != nil {
		e.metrics.Sessions.WithLabelValues("live").Inc()
		e.metrics.ActiveSessions.Inc()
	}
	e.logger.Info("call connected", "call_id", callID)
	e.record(ctx, fmt.Sprintf("Live call connected (ID: %s)", callID))
	e.observer.OnNotification(Notification{Message: "Call Connected - Say Hello!", Kind: "success"})
	return nil
}

// SetMuted stops or resumes forwarding captured audio.
func (e *Engine) SetMuted(muted bool) {
	e.mu.Lock()
	e.muted = muted
	e.mu.Unlock()
}

// CaptureFrame forwards caller audio (PCM16LE mono at InputSampleRate).
// Frames louder than the activity threshold count as activity.
func (e *Engine) CaptureFrame(ctx context.Context, pcm []byte) error {
	e.mu.Lock()
	if e.state != Connected {
		e.mu.Unlock()
		return ErrNotConnected
	}
	if e.muted {
		e.mu.Unlock()
		return nil
	}
	if rms(pcm) > activityThreshold {
		e.lastActivity = e.clock.Now()
	}
	stream := e.stream
	e.mu.Unlock()

	return stream.SendAudio(ctx, pcm)
}

// Disconnect hangs up, letting queued playback finish first. It is a no-op
// unless the call is connected.
func (e *Engine) Disconnect(ctx context.Context, reason string) {
	e.disconnect(ctx, reason, "hangup")
}

// Close tears the call down immediately, without waiting for playback.
func (e *Engine) Close() {
	e.mu.Lock()
	state := e.state
	if state == Connected {
		e.state = Disconnecting
	}
	e.mu.Unlock()

	switch state {
	case Connected:
		e.release()
		e.setState(Disconnected)
		e.recordEnd("closed")
	case Disconnecting:
		// A hang-up is draining playback; cancelling its context ends the wait.
		e.release()
	}
}

func (e *Engine) disconnect(ctx context.Context, reason, cause string) {
	e.mu.Lock()
	if e.state != Connected {
		e.mu.Unlock()
		return
	}
	e.state = Disconnecting
	remaining := e.cursor.Sub(e.clock.Now())
	e.mu.Unlock()
	e.observer.OnState(Disconnecting)

	if remaining > 0 {
		wait := remaining + drainPadding
		if wait > e.cfg.MaxDrain {
			wait = e.cfg.MaxDrain
		}
		if err := e.clock.Sleep(ctx, wait); err != nil {
			e.logger.Debug("playback drain interrupted", "error", err)
		}
	}

	e.release()
	e.setState(Disconnected)
	e.recordEnd(cause)

	if reason == "" {
		reason = defaultFarewell
	}
	e.logger.Info("call ended", "reason", cause)
	e.observer.OnNotification(Notification{Message: reason, Kind: "success"})
	e.clock.AfterFunc(feedbackDelay, e.observer.OnFeedbackPrompt)
}

// fail handles a broken model connection: no drain, immediate teardown.
func (e *Engine) fail(err error) {
	e.mu.Lock()
	if e.state != Connected {
		e.mu.Unlock()
		return
	}
	e.state = Disconnecting
	e.mu.Unlock()

	terr := &TransportError{Err: err}
	e.logger.Error("model stream failed", "error", err)
	e.countError()
	e.release()
	e.setState(Disconnected)
	e.recordEnd("transport_error")
	e.observer.OnNotification(Notification{Message: terr.Error(), Kind: "error"})
}

// release cancels the loops and closes the stream.
func (e *Engine) release() {
	e.mu.Lock()
	cancel, stream, ticker := e.cancel, e.stream, e.ticker
	e.cancel, e.stream, e.ticker = nil, nil, nil
	e.busy = 0
	e.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if stream != nil {
		if err := stream.Close(); err != nil {
			e.logger.Debug("closing model stream", "error", err)
		}
	}
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
	e.observer.OnState(s)
}

func (e *Engine) receiveLoop(ctx context.Context, stream Stream) {
	for {
		ev, err := stream.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.fail(err)
			return
		}
		e.handleEvent(ctx, ev)
	}
}

func (e *Engine) handleEvent(ctx context.Context, ev Event) {
	if len(ev.Audio) > 0 {
		e.schedulePlayback(ev.Audio)
	}
	if ev.Interrupted {
		e.mu.Lock()
		e.cursor = e.clock.Now()
		e.mu.Unlock()
	}
	if ev.InputText != "" {
		e.appendTranscript(RoleUser, ev.InputText)
	}
	if ev.OutputText != "" {
		e.appendTranscript(RoleModel, ev.OutputText)
	}
	if ev.TurnComplete {
		e.completeTurn()
	}
	if len(ev.ToolCalls) > 0 {
		e.beginToolCalls(ev.ToolCalls)
		for _, call := range ev.ToolCalls {
			go e.runTool(ctx, call)
		}
	}
}

func (e *Engine) schedulePlayback(pcm []byte) {
	dur := pcmDuration(len(pcm), OutputSampleRate)
	e.mu.Lock()
	now := e.clock.Now()
	start := e.cursor
	if start.Before(now) {
		start = now
	}
	e.cursor = start.Add(dur)
	e.lastActivity = now
	e.mu.Unlock()

	e.observer.OnAudio(Playback{PCM: pcm, StartAt: start, Duration: dur})
}

// watchdog ends the call after IdleTimeout without activity. Playing audio
// and pending tool work count as activity.
func (e *Engine) watchdog(ctx context.Context, ticker Ticker) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			e.checkInactivity(ctx)
		}
	}
}

func (e *Engine) checkInactivity(ctx context.Context) {
	e.mu.Lock()
	if e.state != Connected {
		e.mu.Unlock()
		return
	}
	now := e.clock.Now()
	if e.cursor.After(now) || e.busy > 0 {
		e.lastActivity = now
		e.mu.Unlock()
		return
	}
	idle := now.Sub(e.lastActivity) > e.cfg.IdleTimeout
	e.mu.Unlock()

	if idle {
		reason := fmt.Sprintf("Call ended due to inactivity (%ds).", int(e.cfg.IdleTimeout/time.Second))
		e.disconnect(ctx, reason, "inactivity")
	}
}

// runTool executes one call. beginToolCalls has already marked it busy.
func (e *Engine) runTool(ctx context.Context, call tools.Call) {
	res := e.tools.Execute(ctx, call)
	if res.Notice != "" {
		e.observer.OnNotification(Notification{Message: res.Notice, Kind: "success"})
	}

	switch {
	case res.EndCall:
		e.doneWithTool()
		e.disconnect(ctx, res.Farewell, "end_call")
		return
	case res.Suspend:
		res.Payload = e.awaitMenu(ctx, call.ID, res.Menu)
	}

	e.respond(ctx, ToolResponse{ID: call.ID, Name: call.Name, Response: map[string]any{"result": res.Payload}})
	e.doneWithTool()
}

func (e *Engine) awaitMenu(ctx context.Context, callID string, menu pricing.Menu) map[string]any {
	if e.menu == nil {
		return map[string]any{"success": false, "message": "The menu display is not available. Please read the menu aloud instead."}
	}
	cart, err := e.menu.OpenMenu(ctx, callID, menu)
	if err != nil {
		if !errors.Is(err, ErrMenuCancelled) {
			e.logger.Warn("menu display failed", "error", err, "call_id", callID)
		}
		return map[string]any{"success": false, "message": "User closed the menu."}
	}
	return MenuOrderResult(menu, cart, e.currency(ctx))
}

func (e *Engine) currency(ctx context.Context) string {
	if e.settings == nil {
		return e.cfg.Currency
	}
	cfg, err := e.settings.Get(ctx)
	if err != nil || cfg.Currency == "" {
		return e.cfg.Currency
	}
	return cfg.Currency
}

// MenuOrderResult is the tool result for a submitted menu cart.
func MenuOrderResult(menu pricing.Menu, cart []pricing.CartLine, currency string) map[string]any {
	order := menu.Order(cart)
	total := pricing.Format(order.Total, currency)
	summary := order.Summary
	msg := "User closed the menu without ordering."
	if order.Empty() {
		summary = "No items selected"
	} else {
		msg = fmt.Sprintf("Order placed for %s. Total is %s.", order.Summary, total)
	}
	return map[string]any{
		"success":      true,
		"itemsOrdered": summary,
		"totalCost":    total,
		"message":      msg,
	}
}

func (e *Engine) respond(ctx context.Context, resp ToolResponse) {
	e.mu.Lock()
	stream := e.stream
	connected := e.state == Connected
	e.mu.Unlock()
	if !connected || stream == nil {
		return
	}
	if err := stream.SendToolResponse(ctx, resp); err != nil {
		e.logger.Warn("failed sending tool response", "error", err, "tool", resp.Name, "call_id", resp.ID)
		e.countError()
	}
}

func (e *Engine) doneWithTool() {
	e.mu.Lock()
	if e.busy > 0 {
		e.busy--
	}
	e.lastActivity = e.clock.Now()
	e.mu.Unlock()
}

func (e *Engine) recordEnd(cause string) {
	e.mu.Lock()
	callID := e.callID
	e.mu.Unlock()
	// the call context is already cancelled here
	e.record(context.Background(), fmt.Sprintf("Live call ended (ID: %s) [Reason: %s]", callID, cause))

	if e.metrics == nil {
		return
	}
	e.metrics.SessionEnds.WithLabelValues(cause).Inc()
	e.metrics.ActiveSessions.Dec()
}

// record appends a voice entry to the audit log. Failures are logged only.
func (e *Engine) record(ctx context.Context, content string) {
	if e.audit == nil {
		return
	}
	e.mu.Lock()
	callID := e.callID
	e.mu.Unlock()
	_, err := e.audit.Append(ctx, hotel.MessageLog{
		Channel:     hotel.ChannelVoice,
		Recipient:   "AI",
		Content:     content,
		Status:      hotel.MessageDelivered,
		ReferenceID: callID,
	})
	if err != nil {
		e.logger.Warn("failed recording call event", "error", err)
	}
}

func (e *Engine) countError() {
	if e.metrics == nil {
		return
	}
	e.metrics.Errors.WithLabelValues("session").Inc()
}
