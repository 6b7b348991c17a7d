// Package notify sends guest notifications over WhatsApp and email and
// records every attempt in the audit log.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/metrics"

	"github.com/google/uuid"
)

// Authorizer is the license gate.
type Authorizer interface {
	Authorize(ctx context.Context) (hotel.License, error)
	AuthorizeChannel(ctx context.Context, channel hotel.Channel) (hotel.License, error)
}

// AuditLog records outbound messages.
type AuditLog interface {
	Append(ctx context.Context, entry hotel.MessageLog) (hotel.MessageLog, error)
}

// ConfigSource provides the hotel knowledge base.
type ConfigSource interface {
	Get(ctx context.Context) (hotel.Config, error)
}

// InfoKind selects the canned WhatsApp template used by SendInfo.
type InfoKind string

const (
	InfoConfirmation InfoKind = "confirmation"
	InfoGeneral      InfoKind = "info"
	InfoLocation     InfoKind = "location"
)

// WhatsAppMessage is a template send request.
type WhatsAppMessage struct {
	To       string
	Template string
	Language string
	Params   []string
}

// EmailMessage is a templated email send request.
type EmailMessage struct {
	To       string
	Subject  string
	Template string
	Vars     map[string]string
}

// Receipt identifies a sent message.
type Receipt struct {
	MessageID string
}

// Config tunes the dispatcher.
type Config struct {
	WhatsAppLatency time.Duration
	EmailLatency    time.Duration
	// Sleep replaces the latency wait; tests pass a no-op.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Dispatcher sends notifications. Delivery is at most once.
type Dispatcher struct {
	gate     Authorizer
	audit    AuditLog
	settings ConfigSource
	sender   WhatsAppSender
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cfg      Config
}

// New builds a dispatcher. A nil sender defaults to the simulated one.
func New(gate Authorizer, audit AuditLog, settings ConfigSource, sender WhatsAppSender, m *metrics.Metrics, logger *slog.Logger, cfg Config) *Dispatcher {
	if cfg.Sleep == nil {
		cfg.Sleep = sleep
	}
	if sender == nil {
		sender = NewSimulatedSender(logger)
	}
	return &Dispatcher{
		gate:     gate,
		audit:    audit,
		settings: settings,
		sender:   sender,
		metrics:  m,
		logger:   logger.With("component", "notify"),
		cfg:      cfg,
	}
}

// SendWhatsApp delivers a template message. The starter plan is rejected.
func (d *Dispatcher) SendWhatsApp(ctx context.Context, msg WhatsAppMessage) (Receipt, error) {
	if _, err := d.gate.AuthorizeChannel(ctx, hotel.ChannelWhatsApp); err != nil {
		d.observe(hotel.ChannelWhatsApp, "rejected")
		return Receipt{}, err
	}
	if err := d.cfg.Sleep(ctx, d.cfg.WhatsAppLatency); err != nil {
		return Receipt{}, err
	}

	payload := buildPayload(msg)
	messageID, err := d.sender.Send(ctx, payload)
	if err != nil {
		d.observe(hotel.ChannelWhatsApp, string(hotel.MessageFailed))
		return Receipt{}, fmt.Errorf("send whatsapp %s: %w", msg.Template, err)
	}
	if messageID == "" {
		messageID = "wamid." + strings.ReplaceAll(uuid.NewString(), "-", "")
	}

	params, err := encodeParams(msg.Params)
	if err != nil {
		return Receipt{}, err
	}
	if _, err := d.audit.Append(ctx, hotel.MessageLog{
		Channel:     hotel.ChannelWhatsApp,
		Recipient:   msg.To,
		Content:     fmt.Sprintf("Template: %s | Params: %s", msg.Template, params),
		Status:      hotel.MessageSent,
		ReferenceID: messageID,
	}); err != nil {
		return Receipt{}, err
	}

	d.observe(hotel.ChannelWhatsApp, string(hotel.MessageSent))
	d.logger.Info("whatsapp sent", "to", msg.To, "template", msg.Template, "message_id", messageID)
	return Receipt{MessageID: messageID}, nil
}

// SendEmail renders and delivers a templated email. Every plan may send email.
func (d *Dispatcher) SendEmail(ctx context.Context, msg EmailMessage) (Receipt, error) {
	if _, err := d.gate.Authorize(ctx); err != nil {
		d.observe(hotel.ChannelEmail, "rejected")
		return Receipt{}, err
	}
	if err := d.cfg.Sleep(ctx, d.cfg.EmailLatency); err != nil {
		return Receipt{}, err
	}

	vars := msg.Vars
	if msg.Template == TemplateGeneralMessage {
		vars = withHotel(vars, d.hotelName(ctx))
	}
	html, err := renderEmail(msg.Template, vars)
	if err != nil {
		d.observe(hotel.ChannelEmail, string(hotel.MessageFailed))
		return Receipt{}, err
	}

	messageID := fmt.Sprintf("<%s@mailer.wachahotel.com>", uuid.NewString())
	if _, err := d.audit.Append(ctx, hotel.MessageLog{
		Channel:     hotel.ChannelEmail,
		Recipient:   msg.To,
		Content:     html,
		Status:      hotel.MessageSent,
		ReferenceID: messageID,
	}); err != nil {
		return Receipt{}, err
	}

	d.observe(hotel.ChannelEmail, string(hotel.MessageSent))
	d.logger.Info("email sent", "to", msg.To, "subject", msg.Subject, "message_id", messageID)
	return Receipt{MessageID: messageID}, nil
}

// SendInfo sends one of the canned informational WhatsApp templates.
func (d *Dispatcher) SendInfo(ctx context.Context, to string, kind InfoKind) (Receipt, error) {
	msg := WhatsAppMessage{
		To:       to,
		Template: "general_info",
		Params:   []string{"Here is the information you requested."},
	}
	if kind == InfoLocation {
		msg.Template = "location_map"
		msg.Params = []string{d.hotelName(ctx)}
	}
	return d.SendWhatsApp(ctx, msg)
}

// SendPlainEmail wraps body in the general message template.
func (d *Dispatcher) SendPlainEmail(ctx context.Context, to, subject, body string) (Receipt, error) {
	return d.SendEmail(ctx, EmailMessage{
		To:       to,
		Subject:  subject,
		Template: TemplateGeneralMessage,
		Vars:     map[string]string{"body": body},
	})
}

func (d *Dispatcher) hotelName(ctx context.Context) string {
	cfg, err := d.settings.Get(ctx)
	if err != nil {
		d.logger.Warn("failed loading config for notification", "error", err)
		return hotel.DefaultConfig().HotelName
	}
	return cfg.HotelName
}

func (d *Dispatcher) observe(channel hotel.Channel, status string) {
	if d.metrics == nil {
		return
	}
	d.metrics.Notifications.WithLabelValues(string(channel), status).Inc()
}

func withHotel(vars map[string]string, name string) map[string]string {
	out := make(map[string]string, len(vars)+1)
	for k, v := range vars {
		out[k] = v
	}
	if _, ok := out["hotel"]; !ok {
		out["hotel"] = name
	}
	return out
}

func encodeParams(params []string) (string, error) {
	if params == nil {
		params = []string{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(params); err != nil {
		return "", fmt.Errorf("encode params: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
