package livews

import (
	"hotel-receptionist/internal/pricing"
	"hotel-receptionist/internal/session"
)

// Client message types.
const (
	TypeMute       = "mute"
	TypeMenuSubmit = "menu_submit"
	TypeMenuCancel = "menu_cancel"
	TypeHangup     = "hangup"
)

// Server event types.
const (
	EventState        = "state"
	EventNotification = "notification"
	EventTranscript   = "transcript"
	EventMenuOpen     = "menu_open"
	EventFeedback     = "feedback"
	EventPlayback     = "playback"
)

// ClientMessage is a JSON text frame from the browser.
type ClientMessage struct {
	Type   string             `json:"type"`
	Muted  bool               `json:"muted,omitempty"`
	CallID string             `json:"callId,omitempty"`
	Items  []pricing.CartLine `json:"items,omitempty"`
}

// ServerEvent is a JSON text frame to the browser. Audio travels separately
// as binary frames, each preceded by a playback event.
type ServerEvent struct {
	Type       string                    `json:"type"`
	State      string                    `json:"state,omitempty"`
	Message    string                    `json:"message,omitempty"`
	Kind       string                    `json:"kind,omitempty"`
	Transcript []session.TranscriptEntry `json:"transcript,omitempty"`
	CallID     string                    `json:"callId,omitempty"`
	Menu       pricing.Menu              `json:"menu,omitempty"`
	StartAt    int64                     `json:"startAt,omitempty"`
	DurationMS int64                     `json:"durationMs,omitempty"`
}
