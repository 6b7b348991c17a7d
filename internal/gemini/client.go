// Package gemini adapts the Gemini API to the live session engine and the
// phone simulator.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/metrics"

	"google.golang.org/genai"
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("gemini api key is not configured")

// ConfigSource provides the hotel knowledge base used to build instructions.
type ConfigSource interface {
	Get(ctx context.Context) (hotel.Config, error)
}

// Options configures the client.
type Options struct {
	APIKey    string
	LiveModel string
	TextModel string
	Voice     string
	Now       func() time.Time
}

// Client wraps a genai client.
type Client struct {
	genai    *genai.Client
	settings ConfigSource
	metrics  *metrics.Metrics
	logger   *slog.Logger
	opts     Options
}

// NewClient dials nothing; it only validates options and prepares the SDK client.
func NewClient(ctx context.Context, opts Options, settings ConfigSource, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{
		genai:    gc,
		settings: settings,
		metrics:  m,
		logger:   logger.With("component", "gemini"),
		opts:     opts,
	}, nil
}

func (c *Client) observe(kind string, err error, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		c.metrics.Errors.WithLabelValues("gemini").Inc()
	}
	c.metrics.ModelRequests.WithLabelValues(kind, status).Inc()
	c.metrics.ModelLatency.WithLabelValues(kind).Observe(elapsed.Seconds())
}
