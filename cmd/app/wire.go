package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"hotel-receptionist/internal/audit"
	"hotel-receptionist/internal/backend"
	"hotel-receptionist/internal/cache"
	"hotel-receptionist/internal/config"
	"hotel-receptionist/internal/events"
	"hotel-receptionist/internal/gemini"
	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/logging"
	"hotel-receptionist/internal/metrics"
	"hotel-receptionist/internal/notify"
	"hotel-receptionist/internal/simulator"
	"hotel-receptionist/internal/storage"
	"hotel-receptionist/internal/wa"
	"hotel-receptionist/migrations"
)

// app holds the process-wide dependencies shared by the commands.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics

	store     storage.Backend
	redis     *cache.Redis
	publisher *events.KafkaPublisher
	whatsapp  *wa.Client
	svc       *backend.Service

	closers []func()
}

type bootOptions struct {
	// connectWhatsApp starts the linked device when the whatsmeow driver is used.
	connectWhatsApp bool
}

func bootstrap(ctx context.Context, opts bootOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.Registry(cfg.MetricsNamespace),
	}

	if cfg.RedisAddr != "" {
		a.redis = cache.New(cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			UseTLS:   cfg.RedisTLS,
			Prefix:   cfg.RedisPrefix,
		}, logger)
		if err := a.redis.Ping(ctx); err != nil {
			logger.Warn("redis ping failed", "error", err)
		}
	}

	store, err := openStorage(ctx, cfg, logger, a.redis)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed closing storage", "error", err)
		}
	})
	if err := store.RunMigrations(ctx, migrations.Files); err != nil {
		a.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("storage ready", "driver", cfg.StorageDriver)

	var publisher audit.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		a.publisher = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		publisher = a.publisher
		a.closers = append(a.closers, func() {
			if err := a.publisher.Close(); err != nil {
				logger.Warn("failed closing kafka publisher", "error", err)
			}
		})
	}

	sender, err := a.newSender(ctx, opts)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.svc = backend.New(backend.Options{
		Store:     storage.Instrument(store, a.metrics),
		Sender:    sender,
		Publisher: publisher,
		Notify: notify.Config{
			WhatsAppLatency: cfg.NotifyWhatsAppLatency,
			EmailLatency:    cfg.NotifyEmailLatency,
		},
		Metrics:  a.metrics,
		Logger:   logger,
		Provider: hotel.Provider(strings.ToLower(cfg.TelephonyProvider)),
	})
	if a.whatsapp != nil {
		a.whatsapp.SetInbox(a.svc.Audit)
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	// the redis storage driver closes the shared client itself
	if a.redis != nil && !strings.EqualFold(a.cfg.StorageDriver, "redis") {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed closing redis", "error", err)
		}
		a.redis = nil
	}
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger, redis *cache.Redis) (storage.Backend, error) {
	switch strings.ToLower(cfg.StorageDriver) {
	case "memory":
		return storage.NewMemory(), nil
	case "postgres":
		return storage.NewPostgres(ctx, cfg.DatabaseURL, cfg.DatabaseSchema, logger)
	case "redis":
		if redis == nil {
			return nil, fmt.Errorf("redis storage requires REDIS_ADDR")
		}
		return storage.NewRedis(redis), nil
	default:
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		return storage.NewSQLite(ctx, cfg.SQLitePath, logger)
	}
}

// newSender returns nil for the simulated driver; the notifier then logs
// payloads instead of delivering them.
func (a *app) newSender(ctx context.Context, opts bootOptions) (notify.WhatsAppSender, error) {
	cfg := a.cfg
	switch strings.ToLower(cfg.WhatsAppDriver) {
	case "twilio":
		sender, err := notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioWhatsAppFrom)
		if err != nil {
			return nil, err
		}
		return sender, nil
	case "whatsmeow":
		client, err := a.openWhatsApp(ctx)
		if err != nil {
			return nil, err
		}
		if opts.connectWhatsApp {
			if err := client.Start(ctx); err != nil {
				return nil, fmt.Errorf("start whatsapp client: %w", err)
			}
		}
		return client, nil
	default:
		return nil, nil
	}
}

func (a *app) openWhatsApp(ctx context.Context) (*wa.Client, error) {
	if a.whatsapp != nil {
		return a.whatsapp, nil
	}
	client, err := wa.New(ctx, wa.Config{
		StorePath: a.cfg.WhatsAppStorePath,
		LogLevel:  a.cfg.WhatsAppLogLevel,
		QRPath:    a.cfg.WhatsAppQRPath,
		Metrics:   a.metrics,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("init whatsapp client: %w", err)
	}
	a.whatsapp = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

func (a *app) gemini(ctx context.Context) (*gemini.Client, error) {
	return gemini.NewClient(ctx, gemini.Options{
		APIKey:    a.cfg.GeminiAPIKey,
		LiveModel: a.cfg.GeminiLiveModel,
		TextModel: a.cfg.GeminiTextModel,
		Voice:     a.cfg.GeminiVoice,
	}, a.svc.Settings, a.metrics, a.logger)
}

func (a *app) simulator(model simulator.ChatModel) *simulator.Simulator {
	var history simulator.HistoryStore
	if a.redis != nil {
		history = simulator.NewRedisHistory(a.redis, a.cfg.SimulatorHistoryTTL)
	}
	return simulator.New(simulator.Deps{
		Model:    model,
		Tools:    a.svc.Tools,
		Settings: a.svc.Settings,
		Audit:    a.svc.Audit,
		History:  history,
		Metrics:  a.metrics,
		Logger:   a.logger,
	}, simulator.Config{
		MaxToolRounds: a.cfg.SimulatorMaxToolRounds,
		HistoryTTL:    a.cfg.SimulatorHistoryTTL,
		BasePath:      a.cfg.PublicBasePath,
	})
}
