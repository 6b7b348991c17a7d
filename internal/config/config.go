package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds every environment-driven setting of the service.
type Config struct {
	AppEnv           string `envconfig:"APP_ENV" default:"development"`
	LogLevel         string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat        string `envconfig:"LOG_FORMAT" default:"text"`
	MetricsNamespace string `envconfig:"METRICS_NAMESPACE" default:"receptionist"`

	HTTPListenAddr string `envconfig:"HTTP_LISTEN_ADDR" default:":8080"`
	PublicBasePath string `envconfig:"PUBLIC_BASE_PATH"`
	PublicBaseURL  string `envconfig:"PUBLIC_BASE_URL"`

	StorageDriver  string `envconfig:"STORAGE_DRIVER" default:"sqlite"`
	SQLitePath     string `envconfig:"SQLITE_PATH" default:"data/hotel.db"`
	DatabaseURL    string `envconfig:"DATABASE_URL"`
	DatabaseSchema string `envconfig:"DATABASE_SCHEMA" default:"public"`

	RedisAddr           string        `envconfig:"REDIS_ADDR"`
	RedisPassword       string        `envconfig:"REDIS_PASSWORD"`
	RedisDB             int           `envconfig:"REDIS_DB" default:"0"`
	RedisTLS            bool          `envconfig:"REDIS_TLS" default:"false"`
	RedisPrefix         string        `envconfig:"REDIS_PREFIX" default:"receptionist"`
	SimulatorHistoryTTL time.Duration `envconfig:"SIMULATOR_HISTORY_TTL" default:"1h"`

	GeminiAPIKey    string `envconfig:"GEMINI_API_KEY"`
	GeminiLiveModel string `envconfig:"GEMINI_LIVE_MODEL" default:"gemini-2.5-flash-native-audio-preview-12-2025"`
	GeminiTextModel string `envconfig:"GEMINI_TEXT_MODEL" default:"gemini-2.5-flash"`
	GeminiVoice     string `envconfig:"GEMINI_VOICE" default:"Kore"`

	TelephonyProvider       string `envconfig:"TELEPHONY_PROVIDER"`
	TwilioAccountSID        string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken         string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioValidateSignature bool   `envconfig:"TWILIO_VALIDATE_SIGNATURE" default:"false"`

	WhatsAppDriver     string `envconfig:"WHATSAPP_DRIVER" default:"simulated"`
	TwilioWhatsAppFrom string `envconfig:"TWILIO_WHATSAPP_FROM"`
	WhatsAppStorePath  string `envconfig:"WHATSAPP_STORE_PATH" default:"data/whatsapp.db"`
	WhatsAppLogLevel   string `envconfig:"WHATSAPP_LOG_LEVEL" default:"INFO"`
	WhatsAppQRPath     string `envconfig:"WHATSAPP_QR_PATH" default:"data/whatsapp-qr.png"`

	NotifyWhatsAppLatency time.Duration `envconfig:"NOTIFY_WHATSAPP_LATENCY" default:"600ms"`
	NotifyEmailLatency    time.Duration `envconfig:"NOTIFY_EMAIL_LATENCY" default:"1200ms"`

	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"receptionist.audit"`

	SessionIdleTimeout     time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"90s"`
	SessionMaxDrain        time.Duration `envconfig:"SESSION_MAX_DRAIN" default:"4s"`
	SimulatorMaxToolRounds int           `envconfig:"SIMULATOR_MAX_TOOL_ROUNDS" default:"5"`
}

// Load reads the environment into a Config and validates driver choices.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cross-field requirements.
func (c Config) Validate() error {
	switch strings.ToLower(c.StorageDriver) {
	case "memory", "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres storage driver")
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis storage driver")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}

	switch strings.ToLower(c.WhatsAppDriver) {
	case "simulated", "whatsmeow":
	case "twilio":
		if c.TwilioAccountSID == "" || c.TwilioAuthToken == "" || c.TwilioWhatsAppFrom == "" {
			return fmt.Errorf("twilio whatsapp driver needs TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_WHATSAPP_FROM")
		}
	default:
		return fmt.Errorf("unknown WHATSAPP_DRIVER %q", c.WhatsAppDriver)
	}

	if c.TwilioValidateSignature && c.TwilioAuthToken == "" {
		return fmt.Errorf("TWILIO_VALIDATE_SIGNATURE requires TWILIO_AUTH_TOKEN")
	}
	if c.SimulatorMaxToolRounds < 1 {
		return fmt.Errorf("SIMULATOR_MAX_TOOL_ROUNDS must be at least 1")
	}
	return nil
}
