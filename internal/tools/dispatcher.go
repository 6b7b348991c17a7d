// Package tools executes the function calls requested by the conversational
// model against the hotel backend.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hotel-receptionist/internal/clients"
	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/metrics"
	"hotel-receptionist/internal/notify"
	"hotel-receptionist/internal/pricing"
	"hotel-receptionist/internal/prompt"
	"hotel-receptionist/internal/reservations"
)

// ClientRegistry is the guest CRM.
type ClientRegistry interface {
	Lookup(ctx context.Context, c clients.Criteria) (*hotel.Client, bool, error)
	Upsert(ctx context.Context, p clients.Patch) (*hotel.Client, error)
}

// Reservations is the booking ledger.
type Reservations interface {
	CheckAvailability(ctx context.Context, start, end time.Time, roomType string) (bool, error)
	CreateBooking(ctx context.Context, req reservations.BookingRequest) (*hotel.Booking, error)
}

// Notifier sends ad-hoc guest messages.
type Notifier interface {
	SendInfo(ctx context.Context, to string, kind notify.InfoKind) (notify.Receipt, error)
	SendPlainEmail(ctx context.Context, to, subject, body string) (notify.Receipt, error)
}

// AuditLog records guest service requests.
type AuditLog interface {
	System(ctx context.Context, summary, action string) error
}

// ConfigSource provides the hotel knowledge base.
type ConfigSource interface {
	Get(ctx context.Context) (hotel.Config, error)
}

// Call is one function call from the model.
type Call struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Args Args   `json:"args,omitempty"`
}

// Result is the outcome of a call. Payload is sent back to the model unless
// Suspend or EndCall asks the caller to take over.
type Result struct {
	CallID  string
	Name    string
	Payload map[string]any

	// Suspend means the response is deferred until the guest finishes with
	// the menu; Menu holds the items to show.
	Suspend bool
	Menu    pricing.Menu

	// EndCall asks the session to hang up after saying Farewell.
	EndCall  bool
	Farewell string

	// Notice is a short operator-facing summary of a side effect.
	Notice string
}

// Failed reports whether the payload carries an error.
func (r Result) Failed() bool {
	ok, present := r.Payload["success"].(bool)
	return present && !ok && r.Payload["error"] != nil
}

// Deps groups the collaborators of the dispatcher.
type Deps struct {
	Clients      ClientRegistry
	Reservations Reservations
	Notifier     Notifier
	Audit        AuditLog
	Settings     ConfigSource
	Metrics      *metrics.Metrics
	Logger       *slog.Logger
	Now          func() time.Time
}

type handler func(ctx context.Context, cfg hotel.Config, call Call) (Result, error)

// Dispatcher routes calls to handlers. Errors and panics never escape Execute.
type Dispatcher struct {
	clients      ClientRegistry
	reservations Reservations
	notifier     Notifier
	audit        AuditLog
	settings     ConfigSource
	metrics      *metrics.Metrics
	logger       *slog.Logger
	now          func() time.Time
	handlers     map[string]handler
}

// New builds a dispatcher.
func New(d Deps) *Dispatcher {
	if d.Now == nil {
		d.Now = time.Now
	}
	disp := &Dispatcher{
		clients:      d.Clients,
		reservations: d.Reservations,
		notifier:     d.Notifier,
		audit:        d.Audit,
		settings:     d.Settings,
		metrics:      d.Metrics,
		logger:       d.Logger.With("component", "tools"),
		now:          d.Now,
	}
	disp.handlers = map[string]handler{
		prompt.ToolEndCall:           disp.endCall,
		prompt.ToolLookupClient:      disp.lookupClient,
		prompt.ToolSavePreference:    disp.savePreference,
		prompt.ToolCheckAvailability: disp.checkAvailability,
		prompt.ToolCreateBooking:     disp.createBooking,
		prompt.ToolSendWhatsAppInfo:  disp.sendWhatsAppInfo,
		prompt.ToolSendEmail:         disp.sendEmail,
		prompt.ToolKitchenStatus:     disp.kitchenStatus,
		prompt.ToolShowMenu:          disp.showMenu,
		prompt.ToolOrderRoomService:  disp.orderRoomService,
		prompt.ToolAirportPickup:     disp.airportPickup,
		prompt.ToolSetReminder:       disp.setReminder,
		prompt.ToolSetDND:            disp.setDND,
	}
	return disp
}

// Execute runs call and always returns a result. Failures become a
// {success:false, error, message} payload.
func (d *Dispatcher) Execute(ctx context.Context, call Call) Result {
	start := time.Now()
	logger := d.logger.With("tool", call.Name, "call_id", call.ID)
	logger.Info("executing tool")

	res, err := d.run(ctx, call)
	if d.metrics != nil {
		d.metrics.ToolLatency.WithLabelValues(call.Name).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		te := classify(call.Name, err)
		logger.Warn("tool failed", "kind", te.Kind, "error", te.Err)
		d.observe(call.Name, te.Kind)
		return Result{
			CallID: call.ID,
			Name:   call.Name,
			Payload: map[string]any{
				"success": false,
				"error":   te.Kind,
				"message": te.Err.Error(),
			},
		}
	}

	d.observe(call.Name, "ok")
	res.CallID = call.ID
	res.Name = call.Name
	return res
}

func (d *Dispatcher) run(ctx context.Context, call Call) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("tool panicked", "tool", call.Name, "panic", r)
			err = fmt.Errorf("%w: %v", ErrToolPanic, r)
		}
	}()
	h, ok := d.handlers[call.Name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
	}
	if call.Args == nil {
		call.Args = Args{}
	}
	cfg, err := d.settings.Get(ctx)
	if err != nil {
		return Result{}, err
	}
	return h(ctx, cfg, call)
}

func (d *Dispatcher) observe(tool, outcome string) {
	if d.metrics == nil {
		return
	}
	d.metrics.ToolCalls.WithLabelValues(tool, outcome).Inc()
}
