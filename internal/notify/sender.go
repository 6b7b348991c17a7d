package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Payload mirrors the WhatsApp Cloud API template message body.
type Payload struct {
	MessagingProduct string          `json:"messaging_product"`
	To               string          `json:"to"`
	Type             string          `json:"type"`
	Template         PayloadTemplate `json:"template"`
}

type PayloadTemplate struct {
	Name       string             `json:"name"`
	Language   PayloadLanguage    `json:"language"`
	Components []PayloadComponent `json:"components"`
}

type PayloadLanguage struct {
	Code string `json:"code"`
}

type PayloadComponent struct {
	Type       string             `json:"type"`
	Parameters []PayloadParameter `json:"parameters"`
}

type PayloadParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func buildPayload(msg WhatsAppMessage) Payload {
	lang := msg.Language
	if lang == "" {
		lang = "en_US"
	}
	params := make([]PayloadParameter, 0, len(msg.Params))
	for _, p := range msg.Params {
		params = append(params, PayloadParameter{Type: "text", Text: p})
	}
	return Payload{
		MessagingProduct: "whatsapp",
		To:               msg.To,
		Type:             "template",
		Template: PayloadTemplate{
			Name:       msg.Template,
			Language:   PayloadLanguage{Code: lang},
			Components: []PayloadComponent{{Type: "body", Parameters: params}},
		},
	}
}

// Text flattens the template into a plain message for transports that do
// not support Cloud API templates.
func (p Payload) Text() string {
	var parts []string
	for _, c := range p.Template.Components {
		for _, param := range c.Parameters {
			parts = append(parts, param.Text)
		}
	}
	if len(parts) == 0 {
		return p.Template.Name
	}
	return fmt.Sprintf("[%s] %s", p.Template.Name, strings.Join(parts, " | "))
}

// WhatsAppSender delivers a template payload. It may return the provider
// message ID, or "" to let the dispatcher assign one.
type WhatsAppSender interface {
	Send(ctx context.Context, payload Payload) (string, error)
}

// SimulatedSender only logs the payload.
type SimulatedSender struct {
	logger *slog.Logger
}

// NewSimulatedSender builds the default sender.
func NewSimulatedSender(logger *slog.Logger) *SimulatedSender {
	return &SimulatedSender{logger: logger.With("component", "whatsapp_sim")}
}

func (s *SimulatedSender) Send(_ context.Context, payload Payload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	s.logger.Info("POST /messages", "to", payload.To, "template", payload.Template.Name, "payload", string(body))
	return "", nil
}

// TwilioSender delivers WhatsApp messages over the Twilio Messages API.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioSender builds a Twilio-backed sender. from is the WhatsApp-enabled
// sender number, with or without the "whatsapp:" prefix.
func NewTwilioSender(accountSID, authToken, from string) (*TwilioSender, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("twilio whatsapp sender: account sid, auth token and from number are required")
	}
	if !strings.HasPrefix(from, "whatsapp:") {
		from = "whatsapp:" + from
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{client: client, from: from}, nil
}

func (s *TwilioSender) Send(_ context.Context, payload Payload) (string, error) {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(s.from)
	params.SetTo(fmt.Sprintf("whatsapp:%s", payload.To))
	params.SetBody(payload.Text())

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio create message: %w", err)
	}
	if resp.ErrorCode != nil {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return "", fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)
	}
	if resp.Sid != nil {
		return *resp.Sid, nil
	}
	return "", nil
}
