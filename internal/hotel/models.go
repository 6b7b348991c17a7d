package hotel

import (
	"errors"
	"time"
)

// DefaultHotelID is the single tenant served by this process.
const DefaultHotelID = "h1"

// ErrInvalidStay is returned when a stay does not end after it starts.
var ErrInvalidStay = errors.New("check-out must be after check-in")

// Plan is a license tier.
type Plan string

const (
	PlanStarter    Plan = "starter"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusConfirmed  BookingStatus = "Confirmed"
	StatusPending    BookingStatus = "Pending"
	StatusCheckedIn  BookingStatus = "Checked In"
	StatusCheckedOut BookingStatus = "Checked Out"
	StatusCancelled  BookingStatus = "Cancelled"
)

// Channel identifies where a message log entry originated.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
	ChannelVoice    Channel = "voice"
	ChannelSystem   Channel = "system"
)

// MessageStatus is the delivery state recorded for a message log entry.
type MessageStatus string

const (
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageFailed    MessageStatus = "failed"
	MessageRead      MessageStatus = "read"
	MessageQueued    MessageStatus = "queued"
)

// License represents the license collection document.
type License struct {
	ID         string    `json:"id"`
	HotelID    string    `json:"hotelId"`
	Plan       Plan      `json:"plan"`
	ValidUntil time.Time `json:"validUntil"`
	IsActive   bool      `json:"isActive"`
}

// Client represents a row of the clients collection.
type Client struct {
	ID          string     `json:"id"`
	HotelID     string     `json:"hotelId"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone"`
	Email       string     `json:"email,omitempty"`
	Preferences string     `json:"preferences,omitempty"`
	StayCount   int        `json:"stayCount"`
	TotalSpent  int64      `json:"totalSpent"`
	LastVisit   *time.Time `json:"lastVisit,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Booking represents a row of the bookings collection.
type Booking struct {
	ID          string        `json:"id"`
	HotelID     string        `json:"hotelId"`
	ClientID    string        `json:"clientId"`
	GuestName   string        `json:"guestName"`
	GuestPhone  string        `json:"guestPhone"`
	RoomType    string        `json:"roomType"`
	CheckIn     time.Time     `json:"checkIn"`
	CheckOut    time.Time     `json:"checkOut"`
	TotalAmount int64         `json:"totalUGX"`
	Status      BookingStatus `json:"status"`
	Notes       string        `json:"notes,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Overlaps reports whether the booking's [CheckIn, CheckOut) interval intersects [start, end).
func (b Booking) Overlaps(start, end time.Time) bool {
	return start.Before(b.CheckOut) && end.After(b.CheckIn)
}

// MessageLog represents a row of the messageLogs collection.
type MessageLog struct {
	ID          string        `json:"id"`
	HotelID     string        `json:"hotelId"`
	Channel     Channel       `json:"channel"`
	Recipient   string        `json:"recipient"`
	Content     string        `json:"content"`
	Status      MessageStatus `json:"status"`
	ReferenceID string        `json:"referenceId,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
}
