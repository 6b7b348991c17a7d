package clients

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/storage"

	"github.com/google/uuid"
)

// Authorizer is the subset of the license gate the registry needs.
type Authorizer interface {
	Authorize(ctx context.Context) (hotel.License, error)
}

// Criteria selects a client by phone first, then email.
type Criteria struct {
	Phone string
	Email string
}

// Patch carries the fields to merge into a client. Phone is required.
// Empty strings leave existing values untouched; Preferences are appended.
type Patch struct {
	Phone       string
	Name        string
	Email       string
	Preferences string
	StayDelta   int
	SpentDelta  int64
}

// Registry is the guest CRM.
type Registry struct {
	store   storage.Port
	gate    Authorizer
	logger  *slog.Logger
	hotelID string
	now     func() time.Time

	mu sync.Mutex
}

// New builds a registry over the clients collection.
func New(store storage.Port, gate Authorizer, logger *slog.Logger, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{
		store:   store,
		gate:    gate,
		logger:  logger.With("component", "clients"),
		hotelID: hotel.DefaultHotelID,
		now:     now,
	}
}

// NormalizePhone keeps only digits and '+'.
func NormalizePhone(phone string) string {
	var b strings.Builder
	b.Grow(len(phone))
	for _, r := range phone {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhonesMatch reports whether two numbers are containment-compatible once
// normalized, so "0700123456" style caller IDs still find "+256700123456".
func PhonesMatch(a, b string) bool {
	na, nb := NormalizePhone(a), NormalizePhone(b)
	if na == "" || nb == "" {
		return false
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// Lookup finds a client. A miss returns found=false and no error.
func (r *Registry) Lookup(ctx context.Context, c Criteria) (*hotel.Client, bool, error) {
	if _, err := r.gate.Authorize(ctx); err != nil {
		return nil, false, err
	}
	all, err := r.load(ctx)
	if err != nil {
		return nil, false, err
	}
	idx := find(all, c)
	if idx < 0 {
		r.logger.Info("client lookup missed", "phone", c.Phone, "email", c.Email)
		return nil, false, nil
	}
	found := all[idx]
	r.logger.Info("client found", "client_id", found.ID, "name", found.Name)
	return &found, true, nil
}

// Upsert merges patch into the matching client or creates a new one.
func (r *Registry) Upsert(ctx context.Context, p Patch) (*hotel.Client, error) {
	if strings.TrimSpace(p.Phone) == "" {
		return nil, fmt.Errorf("upsert client: phone is required")
	}
	if _, err := r.gate.Authorize(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.load(ctx)
	if err != nil {
		return nil, err
	}

	now := r.now()
	var result hotel.Client
	if idx := find(all, Criteria{Phone: p.Phone, Email: p.Email}); idx >= 0 {
		result = merge(all[idx], p, now)
		all[idx] = result
	} else {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			name = "Guest"
		}
		result = hotel.Client{
			ID:          uuid.NewString(),
			HotelID:     r.hotelID,
			Name:        name,
			Phone:       p.Phone,
			Email:       p.Email,
			Preferences: p.Preferences,
			StayCount:   p.StayDelta,
			TotalSpent:  p.SpentDelta,
			LastVisit:   &now,
			CreatedAt:   now,
		}
		all = append(all, result)
		r.logger.Info("client created", "client_id", result.ID, "phone", result.Phone)
	}

	if err := r.store.WriteAll(ctx, storage.Clients, all); err != nil {
		return nil, fmt.Errorf("save clients: %w", err)
	}
	return &result, nil
}

// List returns every client.
func (r *Registry) List(ctx context.Context) ([]hotel.Client, error) {
	return r.load(ctx)
}

func (r *Registry) load(ctx context.Context) ([]hotel.Client, error) {
	var all []hotel.Client
	if _, err := r.store.Read(ctx, storage.Clients, &all); err != nil {
		return nil, fmt.Errorf("load clients: %w", err)
	}
	return all, nil
}

func find(all []hotel.Client, c Criteria) int {
	if c.Phone != "" {
		for i := range all {
			if PhonesMatch(all[i].Phone, c.Phone) {
				return i
			}
		}
	}
	if email := strings.TrimSpace(c.Email); email != "" {
		for i := range all {
			if all[i].Email != "" && strings.EqualFold(all[i].Email, email) {
				return i
			}
		}
	}
	return -1
}

func merge(existing hotel.Client, p Patch, now time.Time) hotel.Client {
	out := existing
	if p.Name != "" {
		out.Name = p.Name
	}
	if p.Phone != "" {
		out.Phone = p.Phone
	}
	if p.Email != "" {
		out.Email = p.Email
	}
	if pref := strings.TrimSpace(p.Preferences); pref != "" {
		if existing.Preferences != "" {
			out.Preferences = existing.Preferences + ". " + pref
		} else {
			out.Preferences = pref
		}
	}
	out.StayCount += p.StayDelta
	out.TotalSpent += p.SpentDelta
	out.LastVisit = &now
	return out
}
