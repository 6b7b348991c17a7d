// Package voice serves the telephony provider webhooks that drive phone
// calls through the simulator.
package voice

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"hotel-receptionist/internal/metrics"
	"hotel-receptionist/internal/simulator"

	twclient "github.com/twilio/twilio-go/client"
)

// Webhook paths.
const (
	IncomingPath              = "/voice/incoming"
	StatusPath                = "/voice/status"
	TwilioProcessPath         = simulator.TwilioProcessPath
	AfricasTalkingProcessPath = simulator.AfricasTalkingProcessPath
)

// Calls is the phone conversation surface used by the webhooks.
type Calls interface {
	StartSessionWithSID(ctx context.Context, callerID, sid string) (string, error)
	Welcome(ctx context.Context, sid string) (simulator.TurnResponse, error)
	SubmitTurn(ctx context.Context, sid, text string) (simulator.TurnResponse, error)
	EndSession(ctx context.Context, sid string) error
}

// Options configures request validation.
type Options struct {
	// TwilioAuthToken enables X-Twilio-Signature checks when set.
	TwilioAuthToken string
	// PublicBaseURL is the externally visible origin and base path that the
	// provider signs requests against.
	PublicBaseURL string
}

// Handler routes provider callbacks to the simulator.
type Handler struct {
	calls     Calls
	logger    *slog.Logger
	metrics   *metrics.Metrics
	validator *twclient.RequestValidator
	baseURL   string
}

// NewHandler creates a webhook handler.
func NewHandler(calls Calls, logger *slog.Logger, m *metrics.Metrics, opts Options) *Handler {
	h := &Handler{
		calls:   calls,
		logger:  logger.With("component", "voice_webhook"),
		metrics: m,
		baseURL: strings.TrimSuffix(opts.PublicBaseURL, "/"),
	}
	if opts.TwilioAuthToken != "" {
		v := twclient.NewRequestValidator(opts.TwilioAuthToken)
		h.validator = &v
	}
	return h
}

// Register mounts the webhook routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc(IncomingPath, h.handleIncoming)
	mux.HandleFunc(TwilioProcessPath, h.handleTwilioProcess)
	mux.HandleFunc(AfricasTalkingProcessPath, h.handleAfricasTalkingProcess)
	mux.HandleFunc(StatusPath, h.handleTwilioStatus)
}

func (h *Handler) handleIncoming(w http.ResponseWriter, r *http.Request) {
	if !h.accept(w, r) {
		return
	}
	if africasTalkingEnded(r) {
		h.end(w, r)
		return
	}

	caller := firstForm(r, "From", "callerNumber")
	if caller == "" {
		caller = "Unknown"
	}
	sid, err := h.calls.StartSessionWithSID(r.Context(), caller, callID(r))
	if err != nil {
		h.fail(w, "start call", err)
		return
	}
	resp, err := h.calls.Welcome(r.Context(), sid)
	if err != nil {
		h.fail(w, "welcome", err)
		return
	}
	writeXML(w, resp.ProtocolResponse)
}

func (h *Handler) handleTwilioProcess(w http.ResponseWriter, r *http.Request) {
	if !h.accept(w, r) {
		return
	}
	h.turn(w, r, r.PostForm.Get("SpeechResult"))
}

func (h *Handler) handleAfricasTalkingProcess(w http.ResponseWriter, r *http.Request) {
	if !h.accept(w, r) {
		return
	}
	if africasTalkingEnded(r) {
		h.end(w, r)
		return
	}
	h.turn(w, r, firstForm(r, "transcript", "dtmfDigits"))
}

// handleTwilioStatus receives the call status callback; a terminal status
// frees the call's history.
func (h *Handler) handleTwilioStatus(w http.ResponseWriter, r *http.Request) {
	if !h.accept(w, r) {
		return
	}
	status := r.PostForm.Get("CallStatus")
	if !twilioCallOver(status) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.logger.Info("call status received", "call_sid", callID(r), "status", status)
	h.end(w, r)
}

func (h *Handler) turn(w http.ResponseWriter, r *http.Request, text string) {
	sid := callID(r)
	if sid == "" {
		http.Error(w, "missing call id", http.StatusBadRequest)
		return
	}
	resp, err := h.calls.SubmitTurn(r.Context(), sid, text)
	if errors.Is(err, simulator.ErrSessionNotFound) {
		h.logger.Warn("turn for unknown call", "call_sid", sid)
		http.Error(w, "unknown call", http.StatusNotFound)
		return
	}
	if err != nil {
		h.fail(w, "submit turn", err)
		return
	}
	writeXML(w, resp.ProtocolResponse)
}

func (h *Handler) end(w http.ResponseWriter, r *http.Request) {
	if err := h.calls.EndSession(r.Context(), callID(r)); err != nil {
		h.fail(w, "end call", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// accept checks the method, parses the form and verifies the signature.
func (h *Handler) accept(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return false
	}
	if h.validator == nil {
		return true
	}

	params := make(map[string]string, len(r.PostForm))
	for key, vals := range r.PostForm {
		if len(vals) > 0 {
			params[key] = vals[0]
		}
	}
	url := h.baseURL + r.URL.RequestURI()
	if !h.validator.Validate(url, params, r.Header.Get("X-Twilio-Signature")) {
		if h.metrics != nil {
			h.metrics.Errors.WithLabelValues("voice_webhook_auth").Inc()
		}
		http.Error(w, "invalid signature", http.StatusForbidden)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error("voice webhook failed", "op", op, "error", err)
	if h.metrics != nil {
		h.metrics.Errors.WithLabelValues("voice_webhook").Inc()
	}
	http.Error(w, "failed to process call", http.StatusInternalServerError)
}

// callID prefers the provider's identifier so no per-process mapping is kept.
func callID(r *http.Request) string {
	return firstForm(r, "CallSid", "sessionId", "sid")
}

func twilioCallOver(status string) bool {
	switch status {
	case "completed", "busy", "failed", "no-answer", "canceled":
		return true
	}
	return false
}

func africasTalkingEnded(r *http.Request) bool {
	return r.PostForm.Get("isActive") == "0"
}

func firstForm(r *http.Request, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(r.PostForm.Get(key)); v != "" {
			return v
		}
	}
	return ""
}

func writeXML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
