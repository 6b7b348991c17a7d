package simulator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"hotel-receptionist/internal/audit"
	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/logging"
	"hotel-receptionist/internal/metrics"
	"hotel-receptionist/internal/settings"
	"hotel-receptionist/internal/storage"
	"hotel-receptionist/internal/tools"
)

type scriptedModel struct {
	mu       sync.Mutex
	replies  []ChatReply
	err      error
	requests []ChatRequest
}

func (m *scriptedModel) Generate(_ context.Context, req ChatRequest) (ChatReply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return ChatReply{}, m.err
	}
	if len(m.replies) == 0 {
		return ChatReply{Text: "fallback"}, nil
	}
	next := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return next, nil
}

type toolFunc func(ctx context.Context, call tools.Call) tools.Result

func (f toolFunc) Execute(ctx context.Context, call tools.Call) tools.Result { return f(ctx, call) }

type harness struct {
	sim     *Simulator
	model   *scriptedModel
	store   storage.Port
	history *MemoryHistory
	calls   []tools.Call
}

func newHarness(t *testing.T, provider hotel.Provider, exec toolFunc) *harness {
	t.Helper()
	ctx := context.Background()
	mem := storage.NewMemory()
	cfg := hotel.DefaultConfig()
	cfg.Telephony.Provider = provider
	set := settings.New(mem)
	if err := set.Put(ctx, cfg); err != nil {
		t.Fatalf("put config: %v", err)
	}

	h := &harness{model: &scriptedModel{}, store: mem, history: NewMemoryHistory(0)}
	if exec == nil {
		exec = func(context.Context, tools.Call) tools.Result {
			return tools.Result{Payload: map[string]any{"success": true}}
		}
	}
	recording := func(ctx context.Context, call tools.Call) tools.Result {
		h.calls = append(h.calls, call)
		res := exec(ctx, call)
		res.CallID, res.Name = call.ID, call.Name
		return res
	}
	now := func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }
	h.sim = New(Deps{
		Model:    h.model,
		Tools:    toolFunc(recording),
		Settings: set,
		Audit:    audit.New(mem, logging.Nop(), audit.Config{Now: now}),
		History:  h.history,
		Metrics:  metrics.NewUnregistered(),
		Logger:   logging.Nop(),
	}, Config{Now: now})
	return h
}

func TestStartSessionLogsIncomingCall(t *testing.T) {
	h := newHarness(t, hotel.ProviderTwilio, nil)
	ctx := context.Background()

	sid, err := h.sim.StartSession(ctx, "+256700123456")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !strings.HasPrefix(sid, "CA") || len(sid) != 32 {
		t.Fatalf("unexpected sid %q", sid)
	}

	var logs []hotel.MessageLog
	if _, err := h.store.Read(ctx, storage.MessageLogs, &logs); err != nil {
		t.Fatalf("read logs: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected one log, got %d", len(logs))
	}
	want := "Incoming Call from +256700123456 (SID: " + sid + ") [Provider: twilio]"
	if logs[0].Content != want || logs[0].Channel != hotel.ChannelVoice || logs[0].Recipient != "AI" {
		t.Fatalf("unexpected log %+v", logs[0])
	}
	if logs[0].ReferenceID != sid || logs[0].Status != hotel.MessageDelivered {
		t.Fatalf("unexpected log %+v", logs[0])
	}

	stored, ok, _ := h.history.Load(ctx, sid)
	if !ok || !strings.Contains(stored.System, "Source Garden Hotel Jinja") || len(stored.Tools) == 0 {
		t.Fatalf("history not initialised: %+v", stored)
	}
}

func TestWelcomeGreetsWithHotelName(t *testing.T) {
	h := newHarness(t, hotel.ProviderTwilio, nil)
	ctx := context.Background()
	sid, _ := h.sim.StartSession(ctx, "+256700000001")

	resp, err := h.sim.Welcome(ctx, sid)
	if err != nil {
		t.Fatalf("welcome: %v", err)
	}
	if resp.Text != "Welcome to Source Garden Hotel Jinja. How may I help you today?" {
		t.Fatalf("unexpected greeting %q", resp.Text)
	}
	if !strings.Contains(resp.ProtocolResponse, "<Gather") {
		t.Fatalf("greeting must gather speech: %s", resp.ProtocolResponse)
	}
}

func TestSubmitTurnTextReply(t *testing.T) {
	h := newHarness(t, hotel.ProviderTwilio, nil)
	ctx := context.Background()
	sid, _ := h.sim.StartSession(ctx, "+256700000001")
	h.model.replies = []ChatReply{{Text: "We have rooms available."}}

	resp, err := h.sim.SubmitTurn(ctx, sid, "Do you have rooms?")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if resp.Ended || resp.Text != "We have rooms available." {
		t.Fatalf("unexpected response %+v", resp)
	}
	for _, want := range []string{"<Say", "We have rooms available.", `input="speech"`, `action="/voice/process"`} {
		if !strings.Contains(resp.ProtocolResponse, want) {
			t.Fatalf("twiml missing %q: %s", want, resp.ProtocolResponse)
		}
	}

	stored, _, _ := h.history.Load(ctx, sid)
	if len(stored.Messages) != 2 || stored.Messages[0].Text != "Do you have rooms?" || stored.Messages[1].Role != RoleModel {
		t.Fatalf("unexpected history %+v", stored.Messages)
	}
}

func TestSubmitTurnRunsToolsThenReplies(t *testing.T) {
	h := newHarness(t, hotel.ProviderTwilio, func(context.Context, tools.Call) tools.Result {
		return tools.Result{Payload: map[string]any{"available": true}}
	})
	ctx := context.Background()
	sid, _ := h.sim.StartSession(ctx, "+256700000001")
	h.model.replies = []ChatReply{
		{ToolCalls: []tools.Call{{ID: "t1", Name: "check_availability", Args: tools.Args{"roomType": "Twin"}}}},
		{Text: "The Twin room is available."},
	}

	resp, err := h.sim.SubmitTurn(ctx, sid, "Is a twin free?")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if resp.Text != "The Twin room is available." {
		t.Fatalf("unexpected reply %q", resp.Text)
	}
	if len(h.calls) != 1 || h.calls[0].Name != "check_availability" {
		t.Fatalf("unexpected tool calls %+v", h.calls)
	}

	last := h.model.requests[len(h.model.requests)-1]
	toolMsg := last.Messages[len(last.Messages)-1]
	if toolMsg.Role != RoleTool || len(toolMsg.ToolResults) != 1 {
		t.Fatalf("tool result not fed back: %+v", toolMsg)
	}
	result := toolMsg.ToolResults[0].Response["result"].(map[string]any)
	if result["available"] != true || toolMsg.ToolResults[0].ID != "t1" {
		t.Fatalf("unexpected tool response %+v", toolMsg.ToolResults[0])
	}
}

func TestSubmitTurnEmptyReplyBecomesEllipsis(t *testing.T) {
	h := newHarness(t, hotel.ProviderTwilio, nil)
	ctx := context.Background()
	sid, _ := h.sim.StartSession(ctx, "+256700000001")
	h.model.replies = []ChatReply{{Text: "  "}}

	resp, err := h.sim.SubmitTurn(ctx, sid, "hello")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if resp.Text != "..." {
		t.Fatalf("expected ellipsis, got %q", resp.Text)
	}
}

func TestSubmitTurnModelFailure(t *testing.T) {
	h := newHarness(t, hotel.ProviderTwilio, nil)
	ctx := context.Background()
	sid, _ := h.sim.StartSession(ctx, "+256700000001")
	h.model.err = errors.New("upstream unavailable")

	resp, err := h.sim.SubmitTurn(ctx, sid, "hello")
	if err != nil {
		t.Fatalf("model failures must still produce a reply: %v", err)
	}
	if resp.Text != modelErrorReply || resp.Ended {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestSubmitTurnBoundsToolRounds(t *testing.T) {
	h := newHarness(t, hotel.ProviderTwilio, nil)
	ctx := context.Background()
	sid, _ := h.sim.StartSession(ctx, "+256700000001")
	h.model.replies = []ChatReply{{ToolCalls: []tools.Call{{ID: "loop", Name: "get_kitchen_status"}}}}

	resp, err := h.sim.SubmitTurn(ctx, sid, "loop forever")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if resp.Text != toolLimitReply {
		t.Fatalf("expected tool limit reply, got %q", resp.Text)
	}
	if len(h.calls) != defaultToolRounds {
		t.Fatalf("expected %d tool executions, got %d", defaultToolRounds, len(h.calls))
	}

	h.model.replies = []ChatReply{{Text: "How else can I help?"}}
	resp, err = h.sim.SubmitTurn(ctx, sid, "never mind")
	if err != nil {
		t.Fatalf("second turn: %v", err)
	}
	if resp.Text != "How else can I help?" {
		t.Fatalf("unexpected second reply %q", resp.Text)
	}
	last := h.model.requests[len(h.model.requests)-1]
	assertToolCallsAnswered(t, last.Messages)
}

func assertToolCallsAnswered(t *testing.T, msgs []Message) {
	t.Helper()
	for i, m := range msgs {
		if len(m.ToolCalls) == 0 {
			continue
		}
		if i+1 >= len(msgs) || msgs[i+1].Role != RoleTool {
			t.Fatalf("message %d: function call not followed by tool results", i)
		}
		if len(msgs[i+1].ToolResults) != len(m.ToolCalls) {
			t.Fatalf("message %d: %d calls but %d results", i, len(m.ToolCalls), len(msgs[i+1].ToolResults))
		}
		for j, call := range m.ToolCalls {
			if msgs[i+1].ToolResults[j].ID != call.ID {
				t.Fatalf("message %d: result %d answers %q, want %q", i, j, msgs[i+1].ToolResults[j].ID, call.ID)
			}
		}
	}
}

func TestSubmitTurnMenuNotAvailableByPhone(t *testing.T) {
	h := newHarness(t, hotel.ProviderTwilio, func(context.Context, tools.Call) tools.Result {
		return tools.Result{Suspend: true, Payload: map[string]any{"success": true}}
	})
	ctx := context.Background()
	sid, _ := h.sim.StartSession(ctx, "+256700000001")
	h.model.replies = []ChatReply{
		{ToolCalls: []tools.Call{{ID: "m", Name: "show_menu_ui"}}},
		{Text: "We have Nile Special Fish."},
	}

	if _, err := h.sim.SubmitTurn(ctx, sid, "show me the menu"); err != nil {
		t.Fatalf("turn: %v", err)
	}
	last := h.model.requests[len(h.model.requests)-1]
	result := last.Messages[len(last.Messages)-1].ToolResults[0].Response["result"].(map[string]any)
	if result["success"] != false || result["message"] != menuUnavailable {
		t.Fatalf("unexpected menu response %+v", result)
	}
}

func TestSubmitTurnEndCallHangsUp(t *testing.T) {
	h := newHarness(t, hotel.ProviderTwilio, func(context.Context, tools.Call) tools.Result {
		return tools.Result{EndCall: true, Farewell: "Call ended. Thank you for calling Source Garden Hotel Jinja!", Payload: map[string]any{"success": true}}
	})
	ctx := context.Background()
	sid, _ := h.sim.StartSession(ctx, "+256700000001")
	h.model.replies = []ChatReply{
		{ToolCalls: []tools.Call{{ID: "e", Name: "end_call"}}},
		{Text: ""},
	}

	resp, err := h.sim.SubmitTurn(ctx, sid, "goodbye")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if !resp.Ended || !strings.Contains(resp.ProtocolResponse, "<Hangup") {
		t.Fatalf("expected hangup, got %+v", resp)
	}
	if resp.Text != "Call ended. Thank you for calling Source Garden Hotel Jinja!" {
		t.Fatalf("unexpected farewell %q", resp.Text)
	}
	if _, ok, _ := h.history.Load(ctx, sid); ok {
		t.Fatalf("history must be removed after hangup")
	}
	if _, err := h.sim.SubmitTurn(ctx, sid, "hello?"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestSubmitTurnUnknownSession(t *testing.T) {
	h := newHarness(t, hotel.ProviderTwilio, nil)
	if _, err := h.sim.SubmitTurn(context.Background(), "CAmissing", "hi"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAfricasTalkingEnvelope(t *testing.T) {
	h := newHarness(t, hotel.ProviderAfricasTalking, nil)
	ctx := context.Background()
	sid, _ := h.sim.StartSession(ctx, "+256700000001")
	h.model.replies = []ChatReply{{Text: "Hello from the front desk."}}

	resp, err := h.sim.SubmitTurn(ctx, sid, "hi")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	for _, want := range []string{`<?xml`, "<Say>Hello from the front desk.</Say>", `callbackUrl="/voice/at/process"`, `maxLength="20"`, `finishOnKey="#"`, `playBeep="true"`} {
		if !strings.Contains(resp.ProtocolResponse, want) {
			t.Fatalf("xml missing %q: %s", want, resp.ProtocolResponse)
		}
	}
}

func TestEnvelopeHangupOmitsGather(t *testing.T) {
	out, err := Envelope(hotel.ProviderTwilio, "Polly.Joanna", "Goodbye now.", true, "")
	if err != nil {
		t.Fatalf("envelope: %v", err)
	}
	if strings.Contains(out, "<Gather") || !strings.Contains(out, `voice="Polly.Joanna"`) {
		t.Fatalf("unexpected twiml %s", out)
	}
	at, _ := Envelope(hotel.ProviderAfricasTalking, "", "Goodbye now.", true, "")
	if strings.Contains(at, "<Record") {
		t.Fatalf("hangup must not record: %s", at)
	}
}

func TestEnvelopePrefixesBasePath(t *testing.T) {
	for _, base := range []string{"/r", "r/", "/r/"} {
		out, err := Envelope(hotel.ProviderTwilio, "Polly.Joanna", "Hello.", false, base)
		if err != nil {
			t.Fatalf("envelope: %v", err)
		}
		if !strings.Contains(out, `action="/r/voice/process"`) {
			t.Fatalf("base %q: unexpected twiml %s", base, out)
		}
		at, _ := Envelope(hotel.ProviderAfricasTalking, "", "Hello.", false, base)
		if !strings.Contains(at, `callbackUrl="/r/voice/at/process"`) {
			t.Fatalf("base %q: unexpected xml %s", base, at)
		}
	}
	out, _ := Envelope(hotel.ProviderTwilio, "Polly.Joanna", "Hello.", false, "/")
	if !strings.Contains(out, `action="/voice/process"`) {
		t.Fatalf("root base: unexpected twiml %s", out)
	}
}

func TestMemoryHistoryExpiresIdleCalls(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	store := NewMemoryHistory(time.Hour)
	store.now = func() time.Time { return now }

	if err := store.Save(ctx, &History{SID: "CAold"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	now = now.Add(50 * time.Minute)
	if err := store.Save(ctx, &History{SID: "CAnew"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, ok, _ := store.Load(ctx, "CAold"); !ok {
		t.Fatal("call within ttl must survive")
	}

	now = now.Add(20 * time.Minute)
	if _, ok, _ := store.Load(ctx, "CAold"); ok {
		t.Fatal("idle call must expire")
	}
	if store.Len() != 1 {
		t.Fatalf("expected one call left, got %d", store.Len())
	}
	if _, ok, _ := store.Load(ctx, "CAnew"); !ok {
		t.Fatal("recent call must survive")
	}
}

func TestSubmitTurnSilenceReprompts(t *testing.T) {
	h := newHarness(t, hotel.ProviderTwilio, nil)
	ctx := context.Background()
	sid, _ := h.sim.StartSession(ctx, "+256700000001")

	resp, err := h.sim.SubmitTurn(ctx, sid, "   ")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if resp.Text != repromptReply || resp.Ended {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(h.model.requests) != 0 {
		t.Fatalf("silence must not reach the model")
	}
}

func TestStartSessionWithProviderSIDAndEnd(t *testing.T) {
	h := newHarness(t, hotel.ProviderTwilio, nil)
	ctx := context.Background()

	sid, err := h.sim.StartSessionWithSID(ctx, "+256700000001", "CAprovider")
	if err != nil || sid != "CAprovider" {
		t.Fatalf("expected provider sid, got %q %v", sid, err)
	}
	if err := h.sim.EndSession(ctx, sid); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, ok, _ := h.history.Load(ctx, sid); ok {
		t.Fatalf("history should be gone")
	}
	if err := h.sim.EndSession(ctx, sid); err != nil {
		t.Fatalf("ending twice should be a no-op: %v", err)
	}
}
