package tools

import (
	"context"
	"strings"
	"testing"
	"time"

	"hotel-receptionist/internal/audit"
	"hotel-receptionist/internal/clients"
	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/license"
	"hotel-receptionist/internal/logging"
	"hotel-receptionist/internal/metrics"
	"hotel-receptionist/internal/notify"
	"hotel-receptionist/internal/reservations"
	"hotel-receptionist/internal/settings"
	"hotel-receptionist/internal/storage"
)

type fixture struct {
	store   storage.Port
	disp    *Dispatcher
	clients *clients.Registry
	audit   *audit.Log
	now     time.Time
}

func newFixture(t *testing.T, plan hotel.Plan, now time.Time) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := storage.NewMemory()
	seed := hotel.Defaults(now)
	seed.License.Plan = plan
	if err := mem.WriteAll(ctx, storage.License, seed.License); err != nil {
		t.Fatalf("seed license: %v", err)
	}
	if err := mem.WriteAll(ctx, storage.Clients, seed.Clients); err != nil {
		t.Fatalf("seed clients: %v", err)
	}

	f := &fixture{store: mem, now: now}
	clock := func() time.Time { return f.now }
	logger := logging.Nop()
	m := metrics.NewUnregistered()
	gate := license.NewGate(mem, clock)
	cfg := settings.New(mem)
	f.audit = audit.New(mem, logger, audit.Config{Now: clock})
	f.clients = clients.New(mem, gate, logger, clock)
	notifier := notify.New(gate, f.audit, cfg, nil, m, logger, notify.Config{
		Sleep: func(context.Context, time.Duration) error { return nil },
	})
	res := reservations.New(reservations.Deps{
		Store: mem, Gate: gate, Clients: f.clients, Notifier: notifier,
		Audit: f.audit, Settings: cfg, Metrics: m, Logger: logger, Now: clock,
	})
	f.disp = New(Deps{
		Clients: f.clients, Reservations: res, Notifier: notifier,
		Audit: f.audit, Settings: cfg, Metrics: m, Logger: logger, Now: clock,
	})
	return f
}

var morning = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func TestLookupClientFoundAndMissing(t *testing.T) {
	f := newFixture(t, hotel.PlanPro, morning)
	ctx := context.Background()

	res := f.disp.Execute(ctx, Call{ID: "1", Name: "lookup_client", Args: Args{"phoneNumber": "777 112 233"}})
	if res.Payload["found"] != true || res.Payload["name"] != "Sarah Namukasa" {
		t.Fatalf("unexpected payload %+v", res.Payload)
	}
	if res.CallID != "1" || res.Name != "lookup_client" {
		t.Fatalf("result must echo the call, got %+v", res)
	}
	if msg := res.Payload["message"].(string); msg != "Client found: Sarah Namukasa. Favorites/Notes: Allergic to peanuts.." {
		t.Fatalf("unexpected message %q", msg)
	}

	res = f.disp.Execute(ctx, Call{Name: "lookup_client", Args: Args{"phoneNumber": "+44 20 7946 0000"}})
	if res.Payload["found"] != false {
		t.Fatalf("expected miss, got %+v", res.Payload)
	}
}

func TestCreateBookingComputesPrice(t *testing.T) {
	f := newFixture(t, hotel.PlanPro, morning)
	ctx := context.Background()

	res := f.disp.Execute(ctx, Call{Name: "create_booking", Args: Args{
		"guestName": "Jane",
		"phone":     "+256711000000",
		"email":     "jane@example.com",
		"roomType":  "Twin",
		"startDate": "2025-06-10",
		"endDate":   "2025-06-12",
	}})
	if res.Payload["success"] != true {
		t.Fatalf("expected success, got %+v", res.Payload)
	}
	details := res.Payload["details"].(map[string]any)
	if details["nights"] != 2 || details["ratePerNight"] != "UGX 150,000" || details["totalPrice"] != "UGX 300,000" {
		t.Fatalf("unexpected details %+v", details)
	}
	msg := res.Payload["message"].(string)
	id := res.Payload["bookingId"].(string)
	if !strings.HasPrefix(msg, "Booking confirmed (ID: "+id[:6]+").") ||
		!strings.Contains(msg, "WhatsApp confirmation sent automatically to +256711000000.") ||
		!strings.Contains(msg, "Email confirmation sent automatically to jane@example.com.") {
		t.Fatalf("unexpected message %q", msg)
	}

	c, found, _ := f.clients.Lookup(ctx, clients.Criteria{Phone: "+256711000000"})
	if !found || c.TotalSpent != 300000 || c.StayCount != 1 {
		t.Fatalf("unexpected client %+v", c)
	}
}

func TestInvalidArgumentsAreReported(t *testing.T) {
	f := newFixture(t, hotel.PlanPro, morning)
	res := f.disp.Execute(context.Background(), Call{Name: "check_room_availability", Args: Args{
		"roomType": "Twin", "startDate": "next tuesday", "endDate": "2025-06-12",
	}})
	if res.Payload["success"] != false || res.Payload["error"] != KindInvalidArguments {
		t.Fatalf("unexpected payload %+v", res.Payload)
	}
	if !res.Failed() {
		t.Fatal("expected failed result")
	}
}

func TestUnknownToolNeverPanics(t *testing.T) {
	f := newFixture(t, hotel.PlanPro, morning)
	res := f.disp.Execute(context.Background(), Call{Name: "open_pod_bay_doors"})
	if res.Payload["error"] != KindToolExecution {
		t.Fatalf("unexpected payload %+v", res.Payload)
	}
}

type panickingReservations struct{}

func (panickingReservations) CheckAvailability(context.Context, time.Time, time.Time, string) (bool, error) {
	panic("boom")
}

func (panickingReservations) CreateBooking(context.Context, reservations.BookingRequest) (*hotel.Booking, error) {
	panic("boom")
}

func TestHandlerPanicBecomesFailureResult(t *testing.T) {
	mem := storage.NewMemory()
	disp := New(Deps{
		Reservations: panickingReservations{},
		Settings:     settings.New(mem),
		Metrics:      metrics.NewUnregistered(),
		Logger:       logging.Nop(),
	})

	res := disp.Execute(context.Background(), Call{ID: "c1", Name: "check_room_availability", Args: Args{
		"roomType": "Twin", "startDate": "2025-06-10", "endDate": "2025-06-12",
	}})
	if res.Payload["success"] != false || res.Payload["error"] != KindToolExecution {
		t.Fatalf("unexpected payload %+v", res.Payload)
	}
	if msg, _ := res.Payload["message"].(string); !strings.Contains(msg, "boom") {
		t.Fatalf("expected panic value in message, got %q", msg)
	}
	if res.CallID != "c1" || res.Name != "check_room_availability" {
		t.Fatalf("unexpected identity %+v", res)
	}
}

func TestStarterPlanWhatsAppIsPlanRestricted(t *testing.T) {
	f := newFixture(t, hotel.PlanStarter, morning)
	res := f.disp.Execute(context.Background(), Call{Name: "send_whatsapp_info", Args: Args{"phoneNumber": "+1", "messageType": "location"}})
	if res.Payload["error"] != KindPlanRestriction {
		t.Fatalf("unexpected payload %+v", res.Payload)
	}
}

func TestExpiredLicenseIsReported(t *testing.T) {
	f := newFixture(t, hotel.PlanPro, morning)
	f.now = morning.Add(90 * 24 * time.Hour)
	res := f.disp.Execute(context.Background(), Call{Name: "save_client_preference", Args: Args{"phoneNumber": "+256700123456", "preference": "Late checkout"}})
	if res.Payload["error"] != KindLicense {
		t.Fatalf("unexpected payload %+v", res.Payload)
	}
}

func TestKitchenStatusUsesHotelTimezone(t *testing.T) {
	// 08:00 UTC is 11:00 in Kampala.
	open := newFixture(t, hotel.PlanPro, morning)
	res := open.disp.Execute(context.Background(), Call{Name: "check_kitchen_status"})
	if res.Payload["isOpen"] != true || res.Payload["status"] != "Open" {
		t.Fatalf("expected open kitchen, got %+v", res.Payload)
	}

	// 20:00 UTC is 23:00 in Kampala.
	closed := newFixture(t, hotel.PlanPro, time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC))
	res = closed.disp.Execute(context.Background(), Call{Name: "check_kitchen_status"})
	if res.Payload["isOpen"] != false || res.Payload["message"] != "The kitchen is closed. Operating hours are 7 AM to 10 PM." {
		t.Fatalf("expected closed kitchen, got %+v", res.Payload)
	}
}

func TestShowMenuSuspends(t *testing.T) {
	f := newFixture(t, hotel.PlanPro, morning)
	res := f.disp.Execute(context.Background(), Call{Name: "show_menu_ui"})
	if !res.Suspend || len(res.Menu) == 0 {
		t.Fatalf("expected suspended result with menu, got %+v", res)
	}
	if _, ok := res.Menu.Find("Nile Special Fish"); !ok {
		t.Fatalf("expected parsed dining menu, got %+v", res.Menu)
	}
}

func TestEndCallUsesHotelName(t *testing.T) {
	f := newFixture(t, hotel.PlanPro, morning)
	res := f.disp.Execute(context.Background(), Call{Name: "end_call"})
	if !res.EndCall || res.Farewell != "Call ended. Thank you for calling Source Garden Hotel Jinja!" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestServiceRequestsAreAudited(t *testing.T) {
	f := newFixture(t, hotel.PlanPro, morning)
	ctx := context.Background()

	res := f.disp.Execute(ctx, Call{Name: "set_dnd_status", Args: Args{"roomNumber": "12", "status": "enable"}})
	if res.Payload["message"] != "DND mode enabled for Room 12." {
		t.Fatalf("unexpected payload %+v", res.Payload)
	}
	res = f.disp.Execute(ctx, Call{Name: "order_room_service", Args: Args{"roomNumber": "12", "orderItems": "2x Fresh Juices"}})
	if res.Payload["message"] != "Order sent to kitchen. Estimated time: 30-45 mins." {
		t.Fatalf("unexpected payload %+v", res.Payload)
	}

	logs, err := f.audit.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(logs) != 2 || logs[0].Content != "Room Service Order: Room 12 - 2x Fresh Juices" {
		t.Fatalf("unexpected audit log %+v", logs)
	}
}
