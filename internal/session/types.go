// Package session runs a live voice call between a caller and the
// conversational model: audio capture and playback scheduling, transcript
// accumulation, tool execution, inactivity detection and a polite hang-up.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hotel-receptionist/internal/hotel"
	"hotel-receptionist/internal/pricing"
	"hotel-receptionist/internal/tools"
)

// State is the lifecycle of an Engine.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Disconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrNotConnected is returned by operations that need a live call.
	ErrNotConnected = errors.New("session not connected")
	// ErrAlreadyConnected is returned by Connect on a busy engine.
	ErrAlreadyConnected = errors.New("session already active")
	// ErrMenuCancelled is returned by a MenuUI when the guest closes the menu.
	ErrMenuCancelled = errors.New("menu closed without ordering")
)

// TransportError reports a failure of the model connection mid-call.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return "model connection lost: " + e.Err.Error() }

func (e *TransportError) Unwrap() error { return e.Err }

// Event is one message received from the model. Several fields may be set.
type Event struct {
	// Audio is PCM16LE mono at OutputSampleRate.
	Audio        []byte
	InputText    string
	OutputText   string
	TurnComplete bool
	Interrupted  bool
	ToolCalls    []tools.Call
}

// ToolResponse answers a tool call.
type ToolResponse struct {
	ID       string
	Name     string
	Response map[string]any
}

// Stream is an open bidirectional model connection.
type Stream interface {
	SendAudio(ctx context.Context, pcm []byte) error
	SendText(ctx context.Context, text string) error
	SendToolResponse(ctx context.Context, resp ToolResponse) error
	// Receive blocks for the next event.
	Receive(ctx context.Context) (Event, error)
	Close() error
}

// Connector opens model streams.
type Connector interface {
	Connect(ctx context.Context) (Stream, error)
}

// ToolExecutor runs tool calls; it never fails.
type ToolExecutor interface {
	Execute(ctx context.Context, call tools.Call) tools.Result
}

// ConfigSource supplies the current hotel configuration.
type ConfigSource interface {
	Get(ctx context.Context) (hotel.Config, error)
}

// AuditLog records call start and end.
type AuditLog interface {
	Append(ctx context.Context, entry hotel.MessageLog) (hotel.MessageLog, error)
}

// MenuUI shows the room service menu and blocks until the guest orders or
// closes it, returning ErrMenuCancelled in the latter case.
type MenuUI interface {
	OpenMenu(ctx context.Context, callID string, menu pricing.Menu) ([]pricing.CartLine, error)
}

// Role names a transcript speaker.
type Role string

const (
	RoleUser   Role = "user"
	RoleModel  Role = "model"
	RoleSystem Role = "system"
)

// TranscriptEntry is one line of the call transcript.
type TranscriptEntry struct {
	Role     Role   `json:"role"`
	Text     string `json:"text"`
	Complete bool   `json:"isComplete"`
}

// Notification is a short message for the caller's screen.
type Notification struct {
	Message string `json:"message"`
	Kind    string `json:"type"`
}

// Playback is a chunk of model audio and the moment it should start playing.
type Playback struct {
	PCM      []byte
	StartAt  time.Time
	Duration time.Duration
}

// Observer receives UI updates. Calls may arrive from several goroutines.
type Observer interface {
	OnState(State)
	OnNotification(Notification)
	OnTranscript([]TranscriptEntry)
	OnAudio(Playback)
	OnFeedbackPrompt()
}

type nopObserver struct{}

func (nopObserver) OnState(State)                  {}
func (nopObserver) OnNotification(Notification)    {}
func (nopObserver) OnTranscript([]TranscriptEntry) {}
func (nopObserver) OnAudio(Playback)               {}
func (nopObserver) OnFeedbackPrompt()              {}
