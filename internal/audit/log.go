package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/storage"

	"github.com/google/uuid"
)

// Publisher mirrors appended entries to an external event stream.
type Publisher interface {
	Publish(ctx context.Context, entry hotel.MessageLog) error
}

// Config tunes the audit log.
type Config struct {
	HotelID   string
	Now       func() time.Time
	Publisher Publisher
}

// Log is the append-only record of every external action. Entries are kept
// newest first and are never mutated.
type Log struct {
	store     storage.Port
	logger    *slog.Logger
	hotelID   string
	now       func() time.Time
	publisher Publisher

	mu sync.Mutex
}

// New builds an audit log over the messageLogs collection.
func New(store storage.Port, logger *slog.Logger, cfg Config) *Log {
	if cfg.HotelID == "" {
		cfg.HotelID = hotel.DefaultHotelID
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Log{
		store:     store,
		logger:    logger.With("component", "audit"),
		hotelID:   cfg.HotelID,
		now:       cfg.Now,
		publisher: cfg.Publisher,
	}
}

// Append stores entry at the head of the log, filling ID, hotel and
// timestamp when absent.
func (l *Log) Append(ctx context.Context, entry hotel.MessageLog) (hotel.MessageLog, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.HotelID == "" {
		entry.HotelID = l.hotelID
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}

	l.mu.Lock()
	var logs []hotel.MessageLog
	if _, err := l.store.Read(ctx, storage.MessageLogs, &logs); err != nil {
		l.mu.Unlock()
		return hotel.MessageLog{}, fmt.Errorf("load message logs: %w", err)
	}
	logs = append([]hotel.MessageLog{entry}, logs...)
	err := l.store.WriteAll(ctx, storage.MessageLogs, logs)
	l.mu.Unlock()
	if err != nil {
		return hotel.MessageLog{}, fmt.Errorf("save message logs: %w", err)
	}

	l.logger.Debug("audit entry appended", "channel", entry.Channel, "recipient", entry.Recipient, "reference_id", entry.ReferenceID)

	if l.publisher != nil {
		if err := l.publisher.Publish(ctx, entry); err != nil {
			l.logger.Warn("failed publishing audit entry", "error", err, "id", entry.ID)
		}
	}
	return entry, nil
}

// System records an administrative action as "summary - action".
func (l *Log) System(ctx context.Context, summary, action string) error {
	_, err := l.Append(ctx, hotel.MessageLog{
		Channel:   hotel.ChannelSystem,
		Recipient: "Admin",
		Content:   fmt.Sprintf("%s - %s", summary, action),
		Status:    hotel.MessageDelivered,
	})
	return err
}

// List returns every entry, newest first.
func (l *Log) List(ctx context.Context) ([]hotel.MessageLog, error) {
	var logs []hotel.MessageLog
	if _, err := l.store.Read(ctx, storage.MessageLogs, &logs); err != nil {
		return nil, fmt.Errorf("load message logs: %w", err)
	}
	return logs, nil
}
