package tools

import (
	"errors"
	"fmt"

	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/license"
	"hotel-receptionist/internal/reservations"
)

// Error kinds reported back to the model.
const (
	KindLicense          = "license"
	KindPlanRestriction  = "plan_restriction"
	KindFullyBooked      = "fully_booked"
	KindInvalidArguments = "invalid_arguments"
	KindToolExecution    = "tool_execution"
)

// ErrInvalidArgument marks a missing or malformed tool argument.
var ErrInvalidArgument = errors.New("invalid tool argument")

// ErrUnknownTool is returned for a tool name with no handler.
var ErrUnknownTool = errors.New("unknown tool")

// ErrToolPanic wraps a panic recovered from a tool handler.
var ErrToolPanic = errors.New("tool panicked")

// ToolExecutionError wraps a failure raised while running a tool.
type ToolExecutionError struct {
	Tool string
	Kind string
	Err  error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed (%s): %v", e.Tool, e.Kind, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

func classify(tool string, err error) *ToolExecutionError {
	var te *ToolExecutionError
	if errors.As(err, &te) {
		return te
	}
	kind := KindToolExecution
	switch {
	case errors.Is(err, license.ErrLicenseInvalid), errors.Is(err, license.ErrNoLicense):
		kind = KindLicense
	case errors.Is(err, license.ErrPlanRestricted):
		kind = KindPlanRestriction
	case errors.Is(err, reservations.ErrFullyBooked):
		kind = KindFullyBooked
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, hotel.ErrInvalidStay):
		kind = KindInvalidArguments
	}
	return &ToolExecutionError{Tool: tool, Kind: kind, Err: err}
}

func missingArg(name string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidArgument, name)
}
