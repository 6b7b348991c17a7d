// Package simulator runs phone calls turn by turn: each caller utterance
// arrives as text from a telephony webhook and the reply goes back as the
// provider's call-control XML.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/metrics"
	"hotel-receptionist/internal/prompt"
	"hotel-receptionist/internal/tools"

	"github.com/google/uuid"
	"google.golang.org/genai"
)

const (
	modelErrorReply   = "I'm sorry, I am having trouble connecting to the system. Please try again later."
	toolLimitReply    = "I'm sorry, I couldn't finish that request. Could you please say it again?"
	emptyReply        = "..."
	menuUnavailable   = "The visual menu is not available on a phone call. Read the menu items and prices aloud instead."
	repromptReply     = "I'm sorry, I didn't catch that. Could you please repeat?"
	defaultToolRounds = 5
	defaultHistoryTTL = time.Hour
)

// ErrSessionNotFound is returned for an unknown or finished call SID.
var ErrSessionNotFound = errors.New("call session not found")

// ChatRequest is one model invocation over the whole conversation.
type ChatRequest struct {
	System   string
	Tools    []*genai.Tool
	Messages []Message
}

// ChatReply is the model's answer: text, tool calls, or both.
type ChatReply struct {
	Text      string
	ToolCalls []tools.Call
}

// ChatModel is a stateless text model.
type ChatModel interface {
	Generate(ctx context.Context, req ChatRequest) (ChatReply, error)
}

// ToolExecutor runs tool calls; it never fails.
type ToolExecutor interface {
	Execute(ctx context.Context, call tools.Call) tools.Result
}

// ConfigSource provides the hotel knowledge base.
type ConfigSource interface {
	Get(ctx context.Context) (hotel.Config, error)
}

// AuditLog records incoming calls.
type AuditLog interface {
	Append(ctx context.Context, entry hotel.MessageLog) (hotel.MessageLog, error)
}

// TurnResponse is the outcome of one caller turn.
type TurnResponse struct {
	SID string
	// ProtocolResponse is the call-control XML for the provider.
	ProtocolResponse string
	Text             string
	Ended            bool
}

// Config tunes the simulator.
type Config struct {
	MaxToolRounds int
	// HistoryTTL expires idle calls in the default in-memory store; default 1h.
	HistoryTTL time.Duration
	// BasePath prefixes the callback paths in rendered envelopes.
	BasePath string
	Now      func() time.Time
}

// Deps groups the collaborators of the simulator.
type Deps struct {
	Model    ChatModel
	Tools    ToolExecutor
	Settings ConfigSource
	Audit    AuditLog
	History  HistoryStore
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
}

// Simulator serves phone calls.
type Simulator struct {
	model    ChatModel
	tools    ToolExecutor
	settings ConfigSource
	audit    AuditLog
	history  HistoryStore
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cfg      Config
}

// New builds a simulator. A nil History keeps calls in memory.
func New(d Deps, cfg Config) *Simulator {
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = defaultToolRounds
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.HistoryTTL <= 0 {
		cfg.HistoryTTL = defaultHistoryTTL
	}
	if d.History == nil {
		d.History = NewMemoryHistory(cfg.HistoryTTL)
	}
	return &Simulator{
		model:    d.Model,
		tools:    d.Tools,
		settings: d.Settings,
		audit:    d.Audit,
		history:  d.History,
		metrics:  d.Metrics,
		logger:   d.Logger.With("component", "simulator"),
		cfg:      cfg,
	}
}

// NewCallSID returns "CA" followed by 30 hex characters.
func NewCallSID() string {
	return "CA" + strings.ReplaceAll(uuid.NewString(), "-", "")[:30]
}

// StartSession opens a call from callerID under a fresh SID and logs it.
func (s *Simulator) StartSession(ctx context.Context, callerID string) (string, error) {
	return s.StartSessionWithSID(ctx, callerID, "")
}

// StartSessionWithSID is StartSession for providers that assign their own
// call identifier. An empty sid generates one.
func (s *Simulator) StartSessionWithSID(ctx context.Context, callerID, sid string) (string, error) {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return "", err
	}
	if sid == "" {
		sid = NewCallSID()
	}
	now := s.cfg.Now()
	h := &History{
		SID:       sid,
		From:      callerID,
		Provider:  providerOf(cfg),
		VoiceID:   cfg.Telephony.VoiceID,
		System:    prompt.SystemInstruction(cfg, now),
		Tools:     prompt.Tools(cfg),
		StartedAt: now,
	}
	if err := s.history.Save(ctx, h); err != nil {
		return "", err
	}

	if _, err := s.audit.Append(ctx, hotel.MessageLog{
		Channel:     hotel.ChannelVoice,
		Recipient:   "AI",
		Content:     fmt.Sprintf("Incoming Call from %s (SID: %s) [Provider: %s]", callerID, h.SID, h.Provider),
		Status:      hotel.MessageDelivered,
		ReferenceID: h.SID,
	}); err != nil {
		return "", err
	}

	if s.metrics != nil {
		s.metrics.Sessions.WithLabelValues("phone").Inc()
	}
	s.logger.Info("incoming call", "call_sid", h.SID, "from", callerID, "provider", h.Provider)
	return h.SID, nil
}

// Welcome renders the opening line of a call.
func (s *Simulator) Welcome(ctx context.Context, sid string) (TurnResponse, error) {
	h, ok, err := s.history.Load(ctx, sid)
	if err != nil {
		return TurnResponse{}, err
	}
	if !ok {
		return TurnResponse{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sid)
	}
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return TurnResponse{}, err
	}
	text := fmt.Sprintf("Welcome to %s. How may I help you today?", cfg.HotelName)
	h.Messages = append(h.Messages, Message{Role: RoleModel, Text: text})
	if err := s.history.Save(ctx, h); err != nil {
		return TurnResponse{}, err
	}
	return s.render(h, text, false)
}

// SubmitTurn feeds one caller utterance to the model, running any tool calls
// it makes, and renders the reply.
func (s *Simulator) SubmitTurn(ctx context.Context, sid, text string) (TurnResponse, error) {
	h, ok, err := s.history.Load(ctx, sid)
	if err != nil {
		return TurnResponse{}, err
	}
	if !ok {
		return TurnResponse{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sid)
	}
	logger := s.logger.With("call_sid", sid)

	if strings.TrimSpace(text) == "" {
		s.observe(h.Provider, "no_input")
		return s.render(h, repromptReply, false)
	}

	h.Messages = append(h.Messages, Message{Role: RoleUser, Text: text})
	reply, ended, outcome := s.converse(ctx, logger, h)
	s.observe(h.Provider, outcome)

	if ended {
		if err := s.history.Delete(ctx, sid); err != nil {
			logger.Warn("failed removing finished call", "error", err)
		}
		if s.metrics != nil {
			s.metrics.SessionEnds.WithLabelValues("end_call").Inc()
		}
		logger.Info("call ended by assistant")
	} else if err := s.history.Save(ctx, h); err != nil {
		return TurnResponse{}, err
	}

	return s.render(h, reply, ended)
}

// EndSession forgets a call the provider reports as finished.
func (s *Simulator) EndSession(ctx context.Context, sid string) error {
	if _, ok, err := s.history.Load(ctx, sid); err != nil || !ok {
		return err
	}
	if err := s.history.Delete(ctx, sid); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SessionEnds.WithLabelValues("hangup").Inc()
	}
	s.logger.Info("call ended by caller", "call_sid", sid)
	return nil
}

// converse runs the bounded tool loop and returns the text to say.
func (s *Simulator) converse(ctx context.Context, logger *slog.Logger, h *History) (string, bool, string) {
	ended := false
	farewell := ""
	for round := 0; ; round++ {
		start := time.Now()
		reply, err := s.model.Generate(ctx, ChatRequest{System: h.System, Tools: h.Tools, Messages: h.Messages})
		s.observeModel(err, time.Since(start))
		if err != nil {
			logger.Error("model request failed", "error", err)
			return modelErrorReply, ended, "model_error"
		}

		h.Messages = append(h.Messages, Message{Role: RoleModel, Text: reply.Text, ToolCalls: reply.ToolCalls})
		if len(reply.ToolCalls) == 0 || ended {
			text := strings.TrimSpace(reply.Text)
			switch {
			case text != "":
			case farewell != "":
				text = farewell
			default:
				text = emptyReply
			}
			return text, ended, "ok"
		}

		if round >= s.cfg.MaxToolRounds {
			logger.Warn("tool round limit reached", "rounds", round)
			h.Messages = append(h.Messages, Message{Role: RoleTool, ToolResults: unanswered(reply.ToolCalls)})
			return toolLimitReply, ended, "tool_limit"
		}

		results := make([]ToolResult, 0, len(reply.ToolCalls))
		for _, call := range reply.ToolCalls {
			logger.Info("executing tool", "tool", call.Name, "call_id", call.ID)
			res := s.tools.Execute(ctx, call)
			payload := res.Payload
			switch {
			case res.EndCall:
				ended = true
				farewell = res.Farewell
			case res.Suspend:
				payload = map[string]any{"success": false, "message": menuUnavailable}
			}
			results = append(results, ToolResult{ID: call.ID, Name: call.Name, Response: map[string]any{"result": payload}})
		}
		h.Messages = append(h.Messages, Message{Role: RoleTool, ToolResults: results})
	}
}

// unanswered closes calls the loop will not run so the next request still
// pairs every function call with a response.
func unanswered(calls []tools.Call) []ToolResult {
	results := make([]ToolResult, 0, len(calls))
	for _, call := range calls {
		results = append(results, ToolResult{ID: call.ID, Name: call.Name, Response: map[string]any{
			"result": map[string]any{"success": false, "error": "tool_limit", "message": "Too many steps for one request; ask the caller to repeat it."},
		}})
	}
	return results
}

func (s *Simulator) render(h *History, text string, hangup bool) (TurnResponse, error) {
	xml, err := Envelope(h.Provider, h.VoiceID, text, hangup, s.cfg.BasePath)
	if err != nil {
		return TurnResponse{}, err
	}
	return TurnResponse{SID: h.SID, ProtocolResponse: xml, Text: text, Ended: hangup}, nil
}

func (s *Simulator) observe(provider hotel.Provider, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.SimulatorTurns.WithLabelValues(string(provider), outcome).Inc()
}

func (s *Simulator) observeModel(err error, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.ModelRequests.WithLabelValues("text", status).Inc()
	s.metrics.ModelLatency.WithLabelValues("text").Observe(elapsed.Seconds())
}

func providerOf(cfg hotel.Config) hotel.Provider {
	if cfg.Telephony.Provider == "" {
		return hotel.ProviderTwilio
	}
	return cfg.Telephony.Provider
}
