// Package backend assembles the hotel domain services over one storage port
// and exposes the administrative views.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"hotel-receptionist/internal/audit"
	"hotel-receptionist/internal/clients"
	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/license"
	"hotel-receptionist/internal/metrics"
	"hotel-receptionist/internal/notify"
	"hotel-receptionist/internal/reservations"
	"hotel-receptionist/internal/settings"
	"hotel-receptionist/internal/storage"
	"hotel-receptionist/internal/tools"
)

// ErrInvalidConfig rejects a knowledge base that cannot be served.
var ErrInvalidConfig = errors.New("invalid hotel config")

// Options configures a Service.
type Options struct {
	Store     storage.Port
	Sender    notify.WhatsAppSender
	Publisher audit.Publisher
	Notify    notify.Config
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	Now       func() time.Time
	// Provider, when set, replaces the telephony provider of the stored
	// config on Init.
	Provider hotel.Provider
}

// Service is the long-lived owner of every domain component.
type Service struct {
	store    storage.Port
	logger   *slog.Logger
	now      func() time.Time
	provider hotel.Provider

	Gate         *license.Gate
	Settings     *settings.Store
	Audit        *audit.Log
	Guests       *clients.Registry
	Reservations *reservations.Store
	Notifier     *notify.Dispatcher
	Tools        *tools.Dispatcher
}

// New wires the domain services. Call Init before serving traffic.
func New(opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	store := opts.Store

	gate := license.NewGate(store, opts.Now)
	cfg := settings.New(store)
	log := audit.New(store, logger, audit.Config{Now: opts.Now, Publisher: opts.Publisher})
	registry := clients.New(store, gate, logger, opts.Now)
	notifier := notify.New(gate, log, cfg, opts.Sender, opts.Metrics, logger, opts.Notify)
	res := reservations.New(reservations.Deps{
		Store:    store,
		Gate:     gate,
		Clients:  registry,
		Notifier: notifier,
		Audit:    log,
		Settings: cfg,
		Metrics:  opts.Metrics,
		Logger:   logger,
		Now:      opts.Now,
	})
	dispatcher := tools.New(tools.Deps{
		Clients:      registry,
		Reservations: res,
		Notifier:     notifier,
		Audit:        log,
		Settings:     cfg,
		Metrics:      opts.Metrics,
		Logger:       logger,
		Now:          opts.Now,
	})

	return &Service{
		store:        store,
		logger:       logger.With("component", "backend"),
		now:          opts.Now,
		provider:     opts.Provider,
		Gate:         gate,
		Settings:     cfg,
		Audit:        log,
		Guests:       registry,
		Reservations: res,
		Notifier:     notifier,
		Tools:        dispatcher,
	}
}

// Init seeds every collection that has never been written and applies the
// provider override.
func (s *Service) Init(ctx context.Context) error {
	if err := s.seed(ctx, false); err != nil {
		return err
	}
	if s.provider == "" {
		return nil
	}
	cfg, err := s.Settings.Get(ctx)
	if err != nil {
		return err
	}
	if cfg.Telephony.Provider == s.provider {
		return nil
	}
	cfg.Telephony.Provider = s.provider
	if err := s.Settings.Put(ctx, cfg); err != nil {
		return err
	}
	s.logger.Info("telephony provider overridden", "provider", s.provider)
	return nil
}

// Reset overwrites every collection with the seed data.
func (s *Service) Reset(ctx context.Context) error {
	return s.seed(ctx, true)
}

func (s *Service) seed(ctx context.Context, force bool) error {
	data := hotel.Defaults(s.now())
	docs := []struct {
		collection storage.Collection
		value      any
	}{
		{storage.Config, data.Config},
		{storage.License, data.License},
		{storage.Clients, data.Clients},
		{storage.Bookings, data.Bookings},
		{storage.MessageLogs, data.Logs},
	}
	for _, doc := range docs {
		if !force {
			var raw any
			ok, err := s.store.Read(ctx, doc.collection, &raw)
			if err != nil {
				return fmt.Errorf("check %s: %w", doc.collection, err)
			}
			if ok {
				continue
			}
		}
		if err := s.store.WriteAll(ctx, doc.collection, doc.value); err != nil {
			return fmt.Errorf("seed %s: %w", doc.collection, err)
		}
		s.logger.Info("seeded collection", "collection", doc.collection)
	}
	return nil
}

// Config returns the knowledge base.
func (s *Service) Config(ctx context.Context) (hotel.Config, error) {
	return s.Settings.Get(ctx)
}

// UpdateConfig replaces the knowledge base. It requires a valid license.
func (s *Service) UpdateConfig(ctx context.Context, cfg hotel.Config) (hotel.Config, error) {
	if _, err := s.Gate.Authorize(ctx); err != nil {
		return hotel.Config{}, err
	}
	if cfg.HotelName == "" {
		return hotel.Config{}, fmt.Errorf("%w: hotel name is required", ErrInvalidConfig)
	}
	if err := s.Settings.Put(ctx, cfg); err != nil {
		return hotel.Config{}, err
	}
	if err := s.Audit.System(ctx, "Configuration Updated", cfg.HotelName); err != nil {
		s.logger.Warn("failed to audit config update", "error", err)
	}
	return cfg, nil
}

// Clients lists the guest directory.
func (s *Service) Clients(ctx context.Context) ([]hotel.Client, error) {
	return s.Guests.List(ctx)
}

// Bookings lists every booking.
func (s *Service) Bookings(ctx context.Context) ([]hotel.Booking, error) {
	return s.Reservations.List(ctx)
}

// Logs lists message log entries, newest first.
func (s *Service) Logs(ctx context.Context) ([]hotel.MessageLog, error) {
	return s.Audit.List(ctx)
}

// License returns the stored license.
func (s *Service) License(ctx context.Context) (hotel.License, error) {
	return s.Gate.Current(ctx)
}
