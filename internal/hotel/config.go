package hotel

import "time"

// Provider names a telephony platform.
type Provider string

const (
	ProviderTwilio         Provider = "twilio"
	ProviderAfricasTalking Provider = "africastalking"
	ProviderTelnyx         Provider = "telnyx"
)

// Branding holds white-label settings.
type Branding struct {
	LogoURL      string `json:"logoUrl,omitempty"`
	PrimaryColor string `json:"primaryColor"`
}

// Telephony holds the voice provider settings.
type Telephony struct {
	Provider    Provider `json:"provider"`
	AccountSID  string   `json:"accountSid"`
	AuthToken   string   `json:"authToken"`
	PhoneNumber string   `json:"phoneNumber"`
	VoiceID     string   `json:"voiceId"`
}

// KitchenHours is the room service window in the hotel's local time.
type KitchenHours struct {
	OpenHour  int `json:"openHour"`
	CloseHour int `json:"closeHour"`
}

// Config is the hotel knowledge base. The free-text blocks are fed verbatim
// to the conversational model.
type Config struct {
	HotelName    string    `json:"hotelName"`
	Currency     string    `json:"currency"`
	ContactPhone string    `json:"contactPhone"`
	ContactEmail string    `json:"contactEmail"`
	Branding     Branding  `json:"branding"`
	Telephony    Telephony `json:"telephony"`

	RoomTypes          []string `json:"roomTypes"`
	RoomInfo           string   `json:"roomInfo"`
	DiningInfo         string   `json:"diningInfo"`
	ServicesInfo       string   `json:"servicesInfo"`
	PolicyInfo         string   `json:"policyInfo"`
	LoyaltyProgramInfo string   `json:"loyaltyProgramInfo"`
	CustomInstructions string   `json:"customInstructions"`

	Timezone string       `json:"timezone,omitempty"`
	Kitchen  KitchenHours `json:"kitchen"`
}

// Location resolves the configured timezone, falling back to UTC.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// KitchenOpen reports whether room service is available at t.
func (c Config) KitchenOpen(t time.Time) bool {
	from, until := c.Kitchen.OpenHour, c.Kitchen.CloseHour
	if from == 0 && until == 0 {
		from, until = 7, 22
	}
	hour := t.In(c.Location()).Hour()
	return hour >= from && hour < until
}
