// Package reservations tracks bookings and enforces per-room-type capacity.
package reservations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"hotel-receptionist/internal/clients"
	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/metrics"
	"hotel-receptionist/internal/notify"
	"hotel-receptionist/internal/pricing"
	"hotel-receptionist/internal/storage"

	"github.com/google/uuid"
)

// Capacity is the number of concurrent bookings allowed per room type.
const Capacity = 5

// ErrFullyBooked is returned when a room type has no capacity left.
var ErrFullyBooked = errors.New("room type is fully booked for the requested dates")

// Authorizer is the license gate.
type Authorizer interface {
	Authorize(ctx context.Context) (hotel.License, error)
}

// ClientUpserter is the guest registry.
type ClientUpserter interface {
	Upsert(ctx context.Context, p clients.Patch) (*hotel.Client, error)
}

// Notifier sends booking confirmations.
type Notifier interface {
	SendWhatsApp(ctx context.Context, msg notify.WhatsAppMessage) (notify.Receipt, error)
	SendEmail(ctx context.Context, msg notify.EmailMessage) (notify.Receipt, error)
}

// AuditLog records administrative actions.
type AuditLog interface {
	System(ctx context.Context, summary, action string) error
}

// ConfigSource provides the hotel knowledge base.
type ConfigSource interface {
	Get(ctx context.Context) (hotel.Config, error)
}

// BookingRequest is the input to CreateBooking. TotalAmount is in UGX.
type BookingRequest struct {
	GuestName   string
	Phone       string
	Email       string
	RoomType    string
	Start       time.Time
	End         time.Time
	TotalAmount int64
}

// Deps groups the collaborators of the store.
type Deps struct {
	Store    storage.Port
	Gate     Authorizer
	Clients  ClientUpserter
	Notifier Notifier
	Audit    AuditLog
	Settings ConfigSource
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Now      func() time.Time
}

// Store is the booking ledger.
type Store struct {
	store    storage.Port
	gate     Authorizer
	clients  ClientUpserter
	notifier Notifier
	audit    AuditLog
	settings ConfigSource
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
	hotelID  string

	// mu guards the bookings collection; roomLocks serialises
	// check-then-create per room type.
	mu        sync.Mutex
	locksMu   sync.Mutex
	roomLocks map[string]*sync.Mutex
}

// New builds a reservation store.
func New(d Deps) *Store {
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Store{
		store:     d.Store,
		gate:      d.Gate,
		clients:   d.Clients,
		notifier:  d.Notifier,
		audit:     d.Audit,
		settings:  d.Settings,
		metrics:   d.Metrics,
		logger:    d.Logger.With("component", "reservations"),
		now:       d.Now,
		hotelID:   hotel.DefaultHotelID,
		roomLocks: make(map[string]*sync.Mutex),
	}
}

// CheckAvailability reports whether roomType has capacity for [start, end).
func (s *Store) CheckAvailability(ctx context.Context, start, end time.Time, roomType string) (bool, error) {
	if _, err := s.gate.Authorize(ctx); err != nil {
		return false, err
	}
	if !start.Before(end) {
		return false, hotel.ErrInvalidStay
	}
	all, err := s.List(ctx)
	if err != nil {
		return false, err
	}
	return countOverlapping(all, roomType, start, end) < Capacity, nil
}

// CreateBooking confirms a booking, updates the guest profile and sends the
// confirmations. A WhatsApp failure is logged and ignored; an email failure
// is returned after the booking is stored.
func (s *Store) CreateBooking(ctx context.Context, req BookingRequest) (*hotel.Booking, error) {
	if _, err := s.gate.Authorize(ctx); err != nil {
		s.observe(req.RoomType, "rejected")
		return nil, err
	}
	if !req.Start.Before(req.End) {
		s.observe(req.RoomType, "invalid")
		return nil, hotel.ErrInvalidStay
	}

	unlock := s.lockRoom(req.RoomType)
	booking, client, err := s.reserve(ctx, req)
	unlock()
	if err != nil {
		if errors.Is(err, ErrFullyBooked) {
			s.observe(req.RoomType, "fully_booked")
		} else {
			s.observe(req.RoomType, "error")
		}
		return nil, err
	}
	s.observe(req.RoomType, "confirmed")
	s.logger.Info("booking confirmed", "booking_id", booking.ID, "room_type", booking.RoomType, "client_id", client.ID, "total", booking.TotalAmount)

	if err := s.audit.System(ctx, fmt.Sprintf("New Booking: %s for %s", booking.ID, client.Name), fmt.Sprintf("Value: %d UGX", booking.TotalAmount)); err != nil {
		s.logger.Warn("failed writing booking audit entry", "error", err, "booking_id", booking.ID)
	}

	if err := s.sendConfirmations(ctx, booking, client); err != nil {
		return booking, err
	}
	return booking, nil
}

func (s *Store) reserve(ctx context.Context, req BookingRequest) (*hotel.Booking, *hotel.Client, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, nil, err
	}
	if countOverlapping(all, req.RoomType, req.Start, req.End) >= Capacity {
		return nil, nil, fmt.Errorf("%w: %s", ErrFullyBooked, req.RoomType)
	}

	client, err := s.clients.Upsert(ctx, clients.Patch{Phone: req.Phone, Name: req.GuestName, Email: req.Email})
	if err != nil {
		return nil, nil, fmt.Errorf("upsert booking guest: %w", err)
	}

	booking := hotel.Booking{
		ID:          uuid.NewString(),
		HotelID:     s.hotelID,
		ClientID:    client.ID,
		GuestName:   client.Name,
		GuestPhone:  client.Phone,
		RoomType:    req.RoomType,
		CheckIn:     req.Start,
		CheckOut:    req.End,
		TotalAmount: req.TotalAmount,
		Status:      hotel.StatusConfirmed,
		CreatedAt:   s.now(),
	}
	if err := s.insert(ctx, booking); err != nil {
		return nil, nil, err
	}

	updated, err := s.clients.Upsert(ctx, clients.Patch{Phone: client.Phone, StayDelta: 1, SpentDelta: req.TotalAmount})
	if err != nil {
		return nil, nil, fmt.Errorf("update guest stats: %w", err)
	}
	return &booking, updated, nil
}

func (s *Store) insert(ctx context.Context, b hotel.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []hotel.Booking
	if _, err := s.store.Read(ctx, storage.Bookings, &all); err != nil {
		return fmt.Errorf("load bookings: %w", err)
	}
	all = append(all, b)
	if err := s.store.WriteAll(ctx, storage.Bookings, all); err != nil {
		return fmt.Errorf("save bookings: %w", err)
	}
	return nil
}

func (s *Store) sendConfirmations(ctx context.Context, b *hotel.Booking, c *hotel.Client) error {
	cfg, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	checkIn := b.CheckIn.In(cfg.Location()).Format("2006-01-02")
	checkOut := b.CheckOut.In(cfg.Location()).Format("2006-01-02")
	total := pricing.Format(b.TotalAmount, "UGX")

	if c.Phone != "" {
		_, err := s.notifier.SendWhatsApp(ctx, notify.WhatsAppMessage{
			To:       c.Phone,
			Template: "booking_confirmation",
			Params:   []string{c.Name, b.RoomType, checkIn, checkOut, total},
		})
		if err != nil {
			s.logger.Warn("auto whatsapp confirmation skipped", "error", err, "booking_id", b.ID)
		}
	}

	if c.Email == "" {
		return nil
	}
	if _, err := s.notifier.SendEmail(ctx, notify.EmailMessage{
		To:       c.Email,
		Subject:  "Booking Confirmation - " + cfg.HotelName,
		Template: notify.TemplateBookingConfirmation,
		Vars: map[string]string{
			"name":     c.Name,
			"hotel":    cfg.HotelName,
			"room":     b.RoomType,
			"checkIn":  checkIn,
			"checkOut": checkOut,
			"total":    total,
			"policies": truncate(cfg.PolicyInfo, 200) + "...",
		},
	}); err != nil {
		return fmt.Errorf("send booking email: %w", err)
	}
	return nil
}

// List returns every booking.
func (s *Store) List(ctx context.Context) ([]hotel.Booking, error) {
	var all []hotel.Booking
	if _, err := s.store.Read(ctx, storage.Bookings, &all); err != nil {
		return nil, fmt.Errorf("load bookings: %w", err)
	}
	return all, nil
}

func (s *Store) lockRoom(roomType string) func() {
	key := strings.ToLower(strings.TrimSpace(roomType))
	s.locksMu.Lock()
	l, ok := s.roomLocks[key]
	if !ok {
		l = &sync.Mutex{}
		s.roomLocks[key] = l
	}
	s.locksMu.Unlock()
	l.Lock()
	return l.Unlock
}

func (s *Store) observe(roomType, outcome string) {
	if s.metrics == nil {
		return
	}
	s.metrics.Bookings.WithLabelValues(roomType, outcome).Inc()
}

func countOverlapping(all []hotel.Booking, roomType string, start, end time.Time) int {
	count := 0
	for _, b := range all {
		if b.RoomType != roomType || b.Status == hotel.StatusCancelled {
			continue
		}
		if b.Overlaps(start, end) {
			count++
		}
	}
	return count
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
