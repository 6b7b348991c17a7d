package license

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/storage"
)

var (
	// ErrLicenseInvalid marks an inactive or expired license.
	ErrLicenseInvalid = errors.New("license expired or inactive")
	// ErrPlanRestricted marks a feature the current plan does not include.
	ErrPlanRestricted = errors.New("feature not included in plan")
	// ErrNoLicense is returned when the license collection is empty.
	ErrNoLicense = errors.New("no license configured")
)

// Error reports an inactive or expired license.
type Error struct {
	License hotel.License
}

func (e *Error) Error() string {
	status := "Active"
	if !e.License.IsActive {
		status = "Disabled"
	}
	return fmt.Sprintf("License expired or inactive. Please contact support. Status: %s, Expires: %s",
		status, e.License.ValidUntil.Format("2006-01-02"))
}

func (e *Error) Unwrap() error { return ErrLicenseInvalid }

// PlanRestrictionError reports a channel that the plan does not cover.
type PlanRestrictionError struct {
	Plan    hotel.Plan
	Channel hotel.Channel
}

func (e *PlanRestrictionError) Error() string {
	return fmt.Sprintf("%s integration requires PRO or ENTERPRISE plan (current plan: %s). Please upgrade license.",
		channelTitle(e.Channel), e.Plan)
}

func (e *PlanRestrictionError) Unwrap() error { return ErrPlanRestricted }

// Gate validates the hotel license before gated operations run.
type Gate struct {
	store storage.Port
	now   func() time.Time
}

// NewGate builds a gate reading the license collection. now may be nil.
func NewGate(store storage.Port, now func() time.Time) *Gate {
	if now == nil {
		now = time.Now
	}
	return &Gate{store: store, now: now}
}

// Current returns the stored license without validating it.
func (g *Gate) Current(ctx context.Context) (hotel.License, error) {
	var lic hotel.License
	ok, err := g.store.Read(ctx, storage.License, &lic)
	if err != nil {
		return hotel.License{}, fmt.Errorf("load license: %w", err)
	}
	if !ok {
		return hotel.License{}, ErrNoLicense
	}
	return lic, nil
}

// Authorize fails when the license is inactive or past its validity.
func (g *Gate) Authorize(ctx context.Context) (hotel.License, error) {
	lic, err := g.Current(ctx)
	if err != nil {
		return hotel.License{}, err
	}
	if !lic.IsActive || g.now().After(lic.ValidUntil) {
		return lic, &Error{License: lic}
	}
	return lic, nil
}

// AuthorizeChannel applies Authorize and then the per-plan channel rules.
// WhatsApp is unavailable on the starter plan.
func (g *Gate) AuthorizeChannel(ctx context.Context, channel hotel.Channel) (hotel.License, error) {
	lic, err := g.Authorize(ctx)
	if err != nil {
		return lic, err
	}
	if channel == hotel.ChannelWhatsApp && lic.Plan == hotel.PlanStarter {
		return lic, &PlanRestrictionError{Plan: lic.Plan, Channel: channel}
	}
	return lic, nil
}

func channelTitle(c hotel.Channel) string {
	switch c {
	case hotel.ChannelWhatsApp:
		return "WhatsApp"
	case hotel.ChannelEmail:
		return "Email"
	default:
		return string(c)
	}
}
