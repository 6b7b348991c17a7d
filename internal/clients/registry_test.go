package clients

import (
	"context"
	"errors"
	"testing"
	"time"

	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/license"
	"hotel-receptionist/internal/logging"
	"hotel-receptionist/internal/storage"
)

var now = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func newRegistry(t *testing.T, lic hotel.License, seed []hotel.Client) *Registry {
	t.Helper()
	ctx := context.Background()
	store := storage.NewMemory()
	if err := store.WriteAll(ctx, storage.License, lic); err != nil {
		t.Fatalf("seed license: %v", err)
	}
	if seed != nil {
		if err := store.WriteAll(ctx, storage.Clients, seed); err != nil {
			t.Fatalf("seed clients: %v", err)
		}
	}
	clock := func() time.Time { return now }
	return New(store, license.NewGate(store, clock), logging.Nop(), clock)
}

func activeLicense() hotel.License {
	return hotel.License{Plan: hotel.PlanPro, IsActive: true, ValidUntil: now.Add(24 * time.Hour)}
}

func TestNormalizePhoneIsIdempotent(t *testing.T) {
	inputs := []string{"+256 700-123-456", "(0700) 123 456", "tel:+1.555.0100", ""}
	for _, in := range inputs {
		once := NormalizePhone(in)
		if twice := NormalizePhone(once); twice != once {
			t.Fatalf("normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
	if got := NormalizePhone("+256 700-123-456"); got != "+256700123456" {
		t.Fatalf("unexpected normalized phone %q", got)
	}
}

func TestLookupMatchesPhoneBySubstring(t *testing.T) {
	reg := newRegistry(t, activeLicense(), []hotel.Client{
		{ID: "c1", Name: "John Doe", Phone: "+256700123456", Email: "john.doe@example.com"},
	})

	for _, phone := range []string{"+256 700 123 456", "700123456", "+256700123456"} {
		c, found, err := reg.Lookup(context.Background(), Criteria{Phone: phone})
		if err != nil {
			t.Fatalf("lookup %q: %v", phone, err)
		}
		if !found || c.ID != "c1" {
			t.Fatalf("expected c1 for %q, got found=%v client=%+v", phone, found, c)
		}
	}
}

func TestLookupFallsBackToEmail(t *testing.T) {
	reg := newRegistry(t, activeLicense(), []hotel.Client{
		{ID: "c2", Name: "Sarah", Phone: "+256777112233", Email: "sarah.n@example.com"},
	})

	c, found, err := reg.Lookup(context.Background(), Criteria{Phone: "+1999", Email: "SARAH.N@example.com"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !found || c.ID != "c2" {
		t.Fatalf("expected email match, got found=%v", found)
	}

	_, found, err = reg.Lookup(context.Background(), Criteria{Phone: "+1999"})
	if err != nil || found {
		t.Fatalf("expected clean miss, got found=%v err=%v", found, err)
	}
}

func TestUpsertMergesPreferencesAndStats(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t, activeLicense(), []hotel.Client{
		{ID: "c1", Name: "John Doe", Phone: "+256700123456", Preferences: "Quiet room", StayCount: 3, TotalSpent: 420000},
	})

	c, err := reg.Upsert(ctx, Patch{Phone: "+256700123456", Preferences: "Vegan", StayDelta: 1, SpentDelta: 300000})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if c.Preferences != "Quiet room. Vegan" {
		t.Fatalf("unexpected preferences %q", c.Preferences)
	}
	if c.Name != "John Doe" {
		t.Fatalf("empty patch name must not overwrite, got %q", c.Name)
	}
	if c.StayCount != 4 || c.TotalSpent != 720000 {
		t.Fatalf("unexpected stats %d/%d", c.StayCount, c.TotalSpent)
	}
	if c.LastVisit == nil || !c.LastVisit.Equal(now) {
		t.Fatalf("expected last visit %v, got %v", now, c.LastVisit)
	}

	all, _ := reg.List(ctx)
	if len(all) != 1 {
		t.Fatalf("expected merge into existing client, got %d clients", len(all))
	}
}

func TestUpsertCreatesGuest(t *testing.T) {
	ctx := context.Background()
	reg := newRegistry(t, activeLicense(), nil)

	c, err := reg.Upsert(ctx, Patch{Phone: "+256711000000"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if c.Name != "Guest" || c.ID == "" || c.HotelID != hotel.DefaultHotelID {
		t.Fatalf("unexpected new client %+v", c)
	}
	if !c.CreatedAt.Equal(now) {
		t.Fatalf("unexpected createdAt %v", c.CreatedAt)
	}
}

func TestUpsertRequiresPhone(t *testing.T) {
	reg := newRegistry(t, activeLicense(), nil)
	if _, err := reg.Upsert(context.Background(), Patch{Name: "Nobody"}); err == nil {
		t.Fatal("expected error for missing phone")
	}
}

func TestExpiredLicenseBlocksWithoutSideEffects(t *testing.T) {
	ctx := context.Background()
	lic := activeLicense()
	lic.ValidUntil = now.Add(-time.Hour)
	reg := newRegistry(t, lic, nil)

	if _, err := reg.Upsert(ctx, Patch{Phone: "+256711000000"}); !errors.Is(err, license.ErrLicenseInvalid) {
		t.Fatalf("expected license error, got %v", err)
	}
	all, err := reg.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected no clients written, got %d", len(all))
	}
}
