package pricing

import (
	"testing"
	"time"

	"hotel-receptionist/internal/hotel"
)

func TestRatePerNightReadsConfiguredPrices(t *testing.T) {
	info := hotel.DefaultConfig().RoomInfo
	cases := map[string]int64{
		"Deluxe Single":  120000,
		"deluxe double":  140000,
		"Twin":           150000,
		"Cottage":        170000,
		"Family Cottage": 450000,
	}
	for room, want := range cases {
		if got := RatePerNight(room, info); got != want {
			t.Fatalf("rate for %q: expected %d, got %d", room, want, got)
		}
	}
}

func TestRatePerNightFallsBack(t *testing.T) {
	info := hotel.DefaultConfig().RoomInfo
	for _, room := range []string{"Presidential Suite", "", "Twin (.*"} {
		if got := RatePerNight(room, info); got != FallbackRate {
			t.Fatalf("expected fallback for %q, got %d", room, got)
		}
	}
}

func TestNightsRoundsUpWithMinimumOne(t *testing.T) {
	base := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	if n := Nights(base, base.Add(48*time.Hour)); n != 2 {
		t.Fatalf("expected 2 nights, got %d", n)
	}
	if n := Nights(base, base.Add(49*time.Hour)); n != 3 {
		t.Fatalf("expected 3 nights, got %d", n)
	}
	if n := Nights(base, base.Add(2*time.Hour)); n != 1 {
		t.Fatalf("expected minimum of 1 night, got %d", n)
	}
}

func TestParseMenuSkipsRanges(t *testing.T) {
	menu := ParseMenu(hotel.DefaultConfig().DiningInfo)
	if len(menu) != 10 {
		t.Fatalf("expected 10 priced items, got %d: %+v", len(menu), menu)
	}
	if _, ok := menu.Find("Beers"); ok {
		t.Fatal("price ranges must not be parsed as items")
	}
	item, ok := menu.Find("Nile Special Fish")
	if !ok || item.Price != 40000 {
		t.Fatalf("unexpected item %+v", item)
	}
}

func TestParseMenuFallback(t *testing.T) {
	menu := ParseMenu("Ask the waiter.")
	if len(menu) != 3 || menu[0].Name != "Club Sandwich" {
		t.Fatalf("expected fallback menu, got %+v", menu)
	}
}

func TestMenuOrderSummaryAndTotal(t *testing.T) {
	menu := FallbackMenu()
	order := menu.Order([]CartLine{
		{Name: "Club Sandwich", Quantity: 2},
		{Name: "Fresh Juice", Quantity: 0},
		{Name: "Tilapia Fish & Chips", Quantity: 1},
	})
	if order.Summary != "2x Club Sandwich, 1x Tilapia Fish & Chips" {
		t.Fatalf("unexpected summary %q", order.Summary)
	}
	if order.Total != 105000 {
		t.Fatalf("unexpected total %d", order.Total)
	}
	if !menu.Order(nil).Empty() {
		t.Fatal("expected empty order")
	}
}

func TestFormat(t *testing.T) {
	cases := map[int64]string{0: "0", 999: "999", 1000: "1,000", 300000: "300,000", 1500000: "1,500,000"}
	for in, want := range cases {
		if got := FormatAmount(in); got != want {
			t.Fatalf("FormatAmount(%d) = %q, want %q", in, got, want)
		}
	}
	if got := Format(300000, "UGX"); got != "UGX 300,000" {
		t.Fatalf("unexpected formatted value %q", got)
	}
}
