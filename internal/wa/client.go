// Package wa delivers guest notifications from a linked WhatsApp device.
package wa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/metrics"
	"hotel-receptionist/internal/notify"

	"github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	waProto "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotPaired is returned when the device has no linked account.
	ErrNotPaired = errors.New("whatsapp device is not paired")
	// ErrInvalidRecipient is returned for phone numbers without digits.
	ErrInvalidRecipient = errors.New("invalid whatsapp recipient")
)

// Config holds configuration to initialise the WhatsApp client.
type Config struct {
	StorePath string
	LogLevel  string
	// QRPath receives the pairing code as a PNG.
	QRPath  string
	Metrics *metrics.Metrics
}

// Inbox records guest replies.
type Inbox interface {
	Append(ctx context.Context, entry hotel.MessageLog) (hotel.MessageLog, error)
}

// Client wraps the WhatsMeow client and implements notify.WhatsAppSender.
type Client struct {
	client  *whatsmeow.Client
	logger  *slog.Logger
	metrics *metrics.Metrics
	qrPath  string
	inbox   Inbox
}

var _ notify.WhatsAppSender = (*Client)(nil)

// New creates a new WhatsApp client instance backed by an SQLite store.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.StorePath == "" {
		return nil, errors.New("store path is required")
	}

	if err := ensureDir(filepath.Dir(cfg.StorePath)); err != nil {
		return nil, fmt.Errorf("ensure store dir: %w", err)
	}

	storeLogger := waLog.Stdout("whatsmeow/sqlstore", cfg.LogLevel, true)
	container, err := sqlstore.New(ctx, "sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout=10000&_pragma=foreign_keys(ON)", cfg.StorePath), storeLogger)
	if err != nil {
		return nil, fmt.Errorf("create sqlstore: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device: %w", err)
	}

	waLogger := waLog.Stdout("whatsmeow/client", cfg.LogLevel, true)
	client := whatsmeow.NewClient(deviceStore, waLogger)

	wc := &Client{
		client:  client,
		logger:  logger.With("component", "wa"),
		metrics: cfg.Metrics,
		qrPath:  cfg.QRPath,
	}
	client.AddEventHandler(wc.handleEvent)

	return wc, nil
}

// SetInbox registers where guest replies are recorded.
func (c *Client) SetInbox(inbox Inbox) {
	c.inbox = inbox
}

// Paired reports whether the device is linked to an account.
func (c *Client) Paired() bool {
	return c.client.Store.ID != nil
}

// Start connects an already paired device.
func (c *Client) Start(ctx context.Context) error {
	if !c.Paired() {
		return ErrNotPaired
	}
	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("connect wa client: %w", err)
	}
	c.logger.Info("whatsapp client connected")
	return nil
}

// Pair links the device, writing every QR code to the configured PNG, and
// blocks until the scan succeeds or ctx ends.
func (c *Client) Pair(ctx context.Context) error {
	if c.Paired() {
		c.logger.Info("device already paired")
		return c.Start(ctx)
	}
	qrChan, err := c.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("get qr channel: %w", err)
	}
	if err := c.client.Connect(); err != nil {
		return fmt.Errorf("connect wa client: %w", err)
	}

	for evt := range qrChan {
		switch evt.Event {
		case "code":
			if err := c.writeQR(evt.Code); err != nil {
				return err
			}
			c.logger.Info("scan the QR code with WhatsApp", "qr_png", c.qrPath, "qr", evt.Code)
		case "success":
			c.logger.Info("device paired")
			return nil
		default:
			c.logger.Info("pairing event received", "event", evt.Event)
			if evt.Error != nil {
				return fmt.Errorf("pair device: %w", evt.Error)
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.New("pair device: qr channel closed before pairing")
}

func (c *Client) writeQR(code string) error {
	if c.qrPath == "" {
		return nil
	}
	if err := ensureDir(filepath.Dir(c.qrPath)); err != nil {
		return fmt.Errorf("ensure qr dir: %w", err)
	}
	if err := qrcode.WriteFile(code, qrcode.Medium, 256, c.qrPath); err != nil {
		return fmt.Errorf("write qr png: %w", err)
	}
	return nil
}

// Close disconnects the WhatsApp client.
func (c *Client) Close() {
	if c.client != nil {
		c.client.Disconnect()
	}
}

// Send delivers a flattened template to the guest's phone.
func (c *Client) Send(ctx context.Context, payload notify.Payload) (string, error) {
	to, err := JID(payload.To)
	if err != nil {
		return "", err
	}
	return c.SendText(ctx, to, payload.Text())
}

// SendText sends a text message to the specified JID and returns its ID.
func (c *Client) SendText(ctx context.Context, to types.JID, text string) (string, error) {
	message := &waProto.Message{
		Conversation: proto.String(text),
	}
	resp, err := c.client.SendMessage(ctx, to, message)
	if err != nil {
		return "", fmt.Errorf("send text: %w", err)
	}
	if c.metrics != nil {
		c.metrics.WAOutgoingMessages.WithLabelValues("text").Inc()
	}
	return string(resp.ID), nil
}

// JID converts a phone number in any common notation to a user JID.
func JID(phone string) (types.JID, error) {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return types.JID{}, fmt.Errorf("%w: %q", ErrInvalidRecipient, phone)
	}
	return types.NewJID(b.String(), types.DefaultUserServer), nil
}

func (c *Client) handleEvent(evt interface{}) {
	switch v := evt.(type) {
	case *events.Message:
		c.handleMessage(v)
	case *events.Connected:
		c.logger.Info("device connected")
	case *events.Disconnected:
		c.logger.Warn("device disconnected")
	case *events.LoggedOut:
		c.logger.Warn("device logged out; run whatsapp-pair again")
	}
}

func (c *Client) handleMessage(evt *events.Message) {
	if evt.Info.IsFromMe {
		return
	}
	text := messageText(evt.Message)
	if text == "" {
		return
	}
	sender := "+" + evt.Info.Sender.User
	c.logger.Info("received guest reply", "from", sender)

	if c.inbox == nil {
		return
	}
	if _, err := c.inbox.Append(context.Background(), hotel.MessageLog{
		Channel:     hotel.ChannelWhatsApp,
		Recipient:   sender,
		Content:     "Guest reply: " + text,
		Status:      hotel.MessageRead,
		ReferenceID: string(evt.Info.ID),
	}); err != nil {
		c.logger.Warn("failed recording guest reply", "error", err)
	}
}

func messageText(msg *waProto.Message) string {
	switch {
	case msg == nil:
		return ""
	case msg.GetConversation() != "":
		return msg.GetConversation()
	case msg.ExtendedTextMessage != nil:
		return msg.GetExtendedTextMessage().GetText()
	case msg.ImageMessage != nil:
		return msg.GetImageMessage().GetCaption()
	}
	return ""
}

func ensureDir(dir string) error {
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}
