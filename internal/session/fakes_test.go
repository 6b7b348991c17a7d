package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/logging"
	"hotel-receptionist/internal/metrics"
	"hotel-receptionist/internal/pricing"
	"hotel-receptionist/internal/tools"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	slept  []time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Time
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type fakeTicker struct{ ch chan time.Time }

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	c.slept = append(c.slept, d)
	c.mu.Unlock()
	c.Advance(d)
	return nil
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	return &fakeTicker{ch: make(chan time.Time)}
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if !t.stopped && !t.at.After(c.now) {
			t.stopped = true
			due = append(due, t.f)
		}
	}
	c.mu.Unlock()
	for _, f := range due {
		f()
	}
}

func (c *fakeClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

type fakeStream struct {
	mu        sync.Mutex
	texts     []string
	audio     [][]byte
	responses []ToolResponse
	closed    bool
	sendErr   error

	events chan Event
	errs   chan error
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan Event, 8), errs: make(chan error, 1)}
}

func (s *fakeStream) SendAudio(_ context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audio = append(s.audio, pcm)
	return nil
}

func (s *fakeStream) SendText(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.texts = append(s.texts, text)
	return nil
}

func (s *fakeStream) SendToolResponse(_ context.Context, resp ToolResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = append(s.responses, resp)
	return nil
}

func (s *fakeStream) Receive(ctx context.Context) (Event, error) {
	select {
	case ev := <-s.events:
		return ev, nil
	case err := <-s.errs:
		return Event{}, err
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) Responses() []ToolResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ToolResponse(nil), s.responses...)
}

func (s *fakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeConnector struct {
	stream *fakeStream
	err    error
}

func (c *fakeConnector) Connect(context.Context) (Stream, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.stream, nil
}

type toolFunc func(ctx context.Context, call tools.Call) tools.Result

func (f toolFunc) Execute(ctx context.Context, call tools.Call) tools.Result { return f(ctx, call) }

type menuFunc func(ctx context.Context, callID string, menu pricing.Menu) ([]pricing.CartLine, error)

func (f menuFunc) OpenMenu(ctx context.Context, callID string, menu pricing.Menu) ([]pricing.CartLine, error) {
	return f(ctx, callID, menu)
}

type recorder struct {
	mu            sync.Mutex
	states        []State
	notifications []Notification
	transcript    []TranscriptEntry
	playback      []Playback
	feedback      int
}

func (r *recorder) OnState(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) OnNotification(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recorder) OnTranscript(entries []TranscriptEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcript = entries
}

func (r *recorder) OnAudio(p Playback) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playback = append(r.playback, p)
}

func (r *recorder) OnFeedbackPrompt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.feedback++
}

func (r *recorder) LastNotification() Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notifications) == 0 {
		return Notification{}
	}
	return r.notifications[len(r.notifications)-1]
}

func (r *recorder) Feedback() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.feedback
}

type harness struct {
	engine *Engine
	clock  *fakeClock
	stream *fakeStream
	obs    *recorder
}

type staticSettings struct {
	mu  sync.Mutex
	cfg hotel.Config
}

func (s *staticSettings) Get(context.Context) (hotel.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, nil
}

func (s *staticSettings) SetCurrency(c string) {
	s.mu.Lock()
	s.cfg.Currency = c
	s.mu.Unlock()
}

type auditRecorder struct {
	mu      sync.Mutex
	entries []hotel.MessageLog
}

func (a *auditRecorder) Append(_ context.Context, entry hotel.MessageLog) (hotel.MessageLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return entry, nil
}

func (a *auditRecorder) Entries() []hotel.MessageLog {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]hotel.MessageLog(nil), a.entries...)
}

func newHarness(t *testing.T, exec ToolExecutor, menu MenuUI) *harness {
	t.Helper()
	return newHarnessWith(t, exec, menu, nil)
}

// newHarnessWith lets a test add optional collaborators before the engine is built.
func newHarnessWith(t *testing.T, exec ToolExecutor, menu MenuUI, extra func(*Deps)) *harness {
	t.Helper()
	h := &harness{clock: newFakeClock(), stream: newFakeStream(), obs: &recorder{}}
	if exec == nil {
		exec = toolFunc(func(context.Context, tools.Call) tools.Result {
			return tools.Result{Payload: map[string]any{"success": true}}
		})
	}
	deps := Deps{
		Connector: &fakeConnector{stream: h.stream},
		Tools:     exec,
		Menu:      menu,
		Observer:  h.obs,
		Clock:     h.clock,
		Metrics:   metrics.NewUnregistered(),
		Logger:    logging.Nop(),
	}
	if extra != nil {
		extra(&deps)
	}
	h.engine = New(deps, Config{})
	return h
}

func (h *harness) connect(t *testing.T) {
	t.Helper()
	if err := h.engine.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(h.engine.Close)
}

// waitFor polls cond; goroutines spawned by the engine finish quickly.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// pcm returns silent PCM16 audio lasting d at the model output rate.
func pcm(d time.Duration) []byte {
	samples := int(d.Seconds() * OutputSampleRate)
	return make([]byte, samples*2)
}

func loudFrame() []byte {
	frame := make([]byte, 320)
	for i := 0; i < len(frame); i += 2 {
		frame[i], frame[i+1] = 0x00, 0x40 // 16384
	}
	return frame
}

var errBoom = errors.New("boom")
