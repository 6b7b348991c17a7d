package tools

import (
	"context"
	"fmt"
	"strings"

	"hotel-receptionist/internal/clients"
	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/notify"
	"hotel-receptionist/internal/pricing"
	"hotel-receptionist/internal/reservations"
)

func (d *Dispatcher) endCall(_ context.Context, cfg hotel.Config, _ Call) (Result, error) {
	farewell := fmt.Sprintf("Call ended. Thank you for calling %s!", cfg.HotelName)
	return Result{
		Payload:  map[string]any{"success": true, "message": farewell},
		EndCall:  true,
		Farewell: farewell,
	}, nil
}

func (d *Dispatcher) lookupClient(ctx context.Context, _ hotel.Config, call Call) (Result, error) {
	criteria := clients.Criteria{Phone: call.Args.String("phoneNumber"), Email: call.Args.String("email")}
	if criteria.Phone == "" && criteria.Email == "" {
		return Result{}, missingArg("phoneNumber or email")
	}
	c, found, err := d.clients.Lookup(ctx, criteria)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{Payload: map[string]any{
			"found":   false,
			"message": "Client not found in database. Please ask for their name and email to create a profile.",
		}}, nil
	}
	prefs := c.Preferences
	if prefs == "" {
		prefs = "None recorded"
	}
	return Result{Payload: map[string]any{
		"found":       true,
		"name":        c.Name,
		"email":       c.Email,
		"phone":       c.Phone,
		"preferences": c.Preferences,
		"message":     fmt.Sprintf("Client found: %s. Favorites/Notes: %s.", c.Name, prefs),
	}}, nil
}

func (d *Dispatcher) savePreference(ctx context.Context, _ hotel.Config, call Call) (Result, error) {
	phone, err := call.Args.Require("phoneNumber")
	if err != nil {
		return Result{}, err
	}
	pref, err := call.Args.Require("preference")
	if err != nil {
		return Result{}, err
	}
	if _, err := d.clients.Upsert(ctx, clients.Patch{Phone: phone, Preferences: pref}); err != nil {
		return Result{}, err
	}
	return Result{
		Payload: map[string]any{"success": true, "message": "Preference saved to client profile."},
		Notice:  "Preference saved",
	}, nil
}

func (d *Dispatcher) checkAvailability(ctx context.Context, cfg hotel.Config, call Call) (Result, error) {
	roomType, err := call.Args.Require("roomType")
	if err != nil {
		return Result{}, err
	}
	start, err := call.Args.Date("startDate", cfg.Location())
	if err != nil {
		return Result{}, err
	}
	end, err := call.Args.Date("endDate", cfg.Location())
	if err != nil {
		return Result{}, err
	}
	ok, err := d.reservations.CheckAvailability(ctx, start, end, roomType)
	if err != nil {
		return Result{}, err
	}
	msg := "Room is not available."
	if ok {
		msg = "Room is available."
	}
	return Result{Payload: map[string]any{"available": ok, "message": msg}}, nil
}

func (d *Dispatcher) createBooking(ctx context.Context, cfg hotel.Config, call Call) (Result, error) {
	name, err := call.Args.Require("guestName")
	if err != nil {
		return Result{}, err
	}
	phone, err := call.Args.Require("phone")
	if err != nil {
		return Result{}, err
	}
	roomType, err := call.Args.Require("roomType")
	if err != nil {
		return Result{}, err
	}
	start, err := call.Args.Date("startDate", cfg.Location())
	if err != nil {
		return Result{}, err
	}
	end, err := call.Args.Date("endDate", cfg.Location())
	if err != nil {
		return Result{}, err
	}
	email := call.Args.String("email")

	rate := pricing.RatePerNight(roomType, cfg.RoomInfo)
	nights := pricing.Nights(start, end)
	total := int64(nights) * rate

	booking, err := d.reservations.CreateBooking(ctx, reservations.BookingRequest{
		GuestName:   name,
		Phone:       phone,
		Email:       email,
		RoomType:    roomType,
		Start:       start,
		End:         end,
		TotalAmount: total,
	})
	if err != nil {
		return Result{}, err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "Booking confirmed (ID: %s).", shortID(booking.ID, 6))
	if booking.GuestPhone != "" {
		fmt.Fprintf(&msg, " WhatsApp confirmation sent automatically to %s.", booking.GuestPhone)
	}
	if email != "" {
		fmt.Fprintf(&msg, " Email confirmation sent automatically to %s.", email)
	}

	return Result{
		Payload: map[string]any{
			"success":   true,
			"bookingId": booking.ID,
			"details": map[string]any{
				"nights":       nights,
				"ratePerNight": pricing.Format(rate, cfg.Currency),
				"totalPrice":   pricing.Format(total, cfg.Currency),
			},
			"message": msg.String(),
		},
		Notice: "Booking confirmed and notifications sent",
	}, nil
}

func (d *Dispatcher) sendWhatsAppInfo(ctx context.Context, _ hotel.Config, call Call) (Result, error) {
	phone, err := call.Args.Require("phoneNumber")
	if err != nil {
		return Result{}, err
	}
	kind := notify.InfoKind(call.Args.String("messageType"))
	switch kind {
	case notify.InfoConfirmation, notify.InfoGeneral, notify.InfoLocation:
	case "":
		kind = notify.InfoGeneral
	default:
		return Result{}, fmt.Errorf("%w: messageType %q", ErrInvalidArgument, kind)
	}
	receipt, err := d.notifier.SendInfo(ctx, phone, kind)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Payload: map[string]any{"sent": true, "referenceId": receipt.MessageID},
		Notice:  fmt.Sprintf("WhatsApp sent. Ref: %s...", shortID(receipt.MessageID, 8)),
	}, nil
}

func (d *Dispatcher) sendEmail(ctx context.Context, _ hotel.Config, call Call) (Result, error) {
	to, err := call.Args.Require("emailAddress")
	if err != nil {
		return Result{}, err
	}
	subject, err := call.Args.Require("subject")
	if err != nil {
		return Result{}, err
	}
	body, err := call.Args.Require("body")
	if err != nil {
		return Result{}, err
	}
	receipt, err := d.notifier.SendPlainEmail(ctx, to, subject, body)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Payload: map[string]any{"sent": true, "referenceId": receipt.MessageID},
		Notice:  fmt.Sprintf("Email sent. Ref: %s...", shortID(receipt.MessageID, 8)),
	}, nil
}

func (d *Dispatcher) kitchenStatus(_ context.Context, cfg hotel.Config, _ Call) (Result, error) {
	open := cfg.KitchenOpen(d.now())
	if open {
		return Result{Payload: map[string]any{"isOpen": true, "status": "Open", "message": "The kitchen is open."}}, nil
	}
	from, until := cfg.Kitchen.OpenHour, cfg.Kitchen.CloseHour
	if from == 0 && until == 0 {
		from, until = 7, 22
	}
	return Result{Payload: map[string]any{
		"isOpen":  false,
		"status":  "Closed",
		"message": fmt.Sprintf("The kitchen is closed. Operating hours are %s to %s.", hourLabel(from), hourLabel(until)),
	}}, nil
}

func (d *Dispatcher) showMenu(_ context.Context, cfg hotel.Config, _ Call) (Result, error) {
	menu := pricing.ParseMenu(cfg.DiningInfo)
	return Result{
		Payload: map[string]any{"success": true, "items": menu},
		Suspend: true,
		Menu:    menu,
	}, nil
}

func (d *Dispatcher) orderRoomService(ctx context.Context, _ hotel.Config, call Call) (Result, error) {
	room, err := call.Args.Require("roomNumber")
	if err != nil {
		return Result{}, err
	}
	items, err := call.Args.Require("orderItems")
	if err != nil {
		return Result{}, err
	}
	action := items
	if extra := call.Args.String("specialRequests"); extra != "" {
		action += " (" + extra + ")"
	}
	if err := d.audit.System(ctx, "Room Service Order: Room "+room, action); err != nil {
		return Result{}, err
	}
	return Result{
		Payload: map[string]any{"success": true, "message": "Order sent to kitchen. Estimated time: 30-45 mins."},
		Notice:  "Room service order sent to kitchen",
	}, nil
}

func (d *Dispatcher) airportPickup(ctx context.Context, _ hotel.Config, call Call) (Result, error) {
	var vals [4]string
	for i, key := range []string{"guestName", "phoneNumber", "flightNumber", "arrivalTime"} {
		v, err := call.Args.Require(key)
		if err != nil {
			return Result{}, err
		}
		vals[i] = v
	}
	summary := fmt.Sprintf("Airport Pickup: %s (%s)", vals[0], vals[1])
	if err := d.audit.System(ctx, summary, fmt.Sprintf("Flight %s arriving %s", vals[2], vals[3])); err != nil {
		return Result{}, err
	}
	return Result{
		Payload: map[string]any{"success": true, "message": "Pickup scheduled. Please send a WhatsApp confirmation with the details now."},
		Notice:  "Airport pickup scheduled",
	}, nil
}

func (d *Dispatcher) setReminder(ctx context.Context, _ hotel.Config, call Call) (Result, error) {
	var vals [4]string
	for i, key := range []string{"guestName", "roomNumber", "time", "message"} {
		v, err := call.Args.Require(key)
		if err != nil {
			return Result{}, err
		}
		vals[i] = v
	}
	summary := fmt.Sprintf("Reminder: %s, Room %s", vals[0], vals[1])
	if err := d.audit.System(ctx, summary, vals[2]+": "+vals[3]); err != nil {
		return Result{}, err
	}
	return Result{Payload: map[string]any{"success": true, "message": "Reminder set successfully."}}, nil
}

func (d *Dispatcher) setDND(ctx context.Context, _ hotel.Config, call Call) (Result, error) {
	room, err := call.Args.Require("roomNumber")
	if err != nil {
		return Result{}, err
	}
	status, err := call.Args.Require("status")
	if err != nil {
		return Result{}, err
	}
	if status != "enable" && status != "disable" {
		return Result{}, fmt.Errorf("%w: status %q", ErrInvalidArgument, status)
	}
	msg := fmt.Sprintf("DND mode %sd for Room %s.", status, room)
	if err := d.audit.System(ctx, "DND Update: Room "+room, msg); err != nil {
		return Result{}, err
	}
	return Result{Payload: map[string]any{"success": true, "message": msg}}, nil
}

func hourLabel(h int) string {
	switch {
	case h == 0 || h == 24:
		return "12 AM"
	case h == 12:
		return "12 PM"
	case h > 12:
		return fmt.Sprintf("%d PM", h-12)
	default:
		return fmt.Sprintf("%d AM", h)
	}
}

func shortID(id string, n int) string {
	if len(id) <= n {
		return id
	}
	return id[:n]
}
