package hotel

import "time"

// Seed bundles the initial contents of every collection.
type Seed struct {
	Config   Config
	License  License
	Clients  []Client
	Bookings []Booking
	Logs     []MessageLog
}

// DefaultConfig returns the knowledge base for Source Garden Hotel Jinja.
func DefaultConfig() Config {
	return Config{
		HotelName:    "Source Garden Hotel Jinja",
		Currency:     "UGX",
		ContactPhone: "0392 832 912 / +256 777 077 422",
		ContactEmail: "wachaexperience@gmail.com",
		Branding:     Branding{PrimaryColor: "#2563EB"},
		Telephony: Telephony{
			Provider:    ProviderTwilio,
			AccountSID:  "AC_SIMULATED_SID_12345",
			AuthToken:   "SIMULATED_TOKEN_XYZ",
			PhoneNumber: "+256700000000",
			VoiceID:     "Polly.Joanna",
		},
		RoomTypes: []string{"Deluxe Single", "Deluxe Double", "Twin", "Cottage", "Family Cottage"},
		RoomInfo: `
- Deluxe Single: 120,000 UGX (Continental Plan). Max 1 Adult, 1 Kid.
- Deluxe Double: 140,000 UGX (Continental Plan). Max 2 Adults, 2 Kids.
- Twin: 150,000 UGX (Continental Plan). Max 2 Adults, 2 Kids.
- Cottage: 170,000 UGX (Continental Plan). Themed cottages (Elephant, Giraffe, Horse, Leopard, Zebra). Max 2 Adults, 2 Kids.
- Family Cottage: 450,000 UGX (Continental Plan). Max 5 Adults, 4 Kids.
`,
		DiningInfo: `
--- STARTERS & SALADS ---
- Chefs Caesar Salad: 25,000 UGX
- Ovacado Sunrise: 25,000 UGX
- Chicken Salads: 25,000 UGX

--- MAIN COURSE ---
- Nile Special Fish: 40,000 UGX
- Premium Whole Fish: 35,000 UGX
- Fish Fingers: 25,000 UGX
- Supreme of Chicken: 30,000 UGX
- Pan-Fried Goat: 30,000 UGX

--- BEVERAGES ---
- Fresh Juices: 10,000 UGX
- Beers: 6,000 - 10,000 UGX
- Soft Drinks: 3,000 UGX
`,
		ServicesInfo: `
- Accommodation: Unpretentiously Luxurious rooms and cottages.
- Bar & Restaurant: Extensive menu featuring local and international cuisine.
- Gym: Fitness center available.
- Spa & Sauna: Wellness services available.
`,
		PolicyInfo: `
- Check-in: 2:00 PM.
- Check-out: 11:00 AM.
- Payment: Cash (UGX/USD), Mobile Money, Visa.
- Cancellation: Free up to 24h before check-in.
`,
		LoyaltyProgramInfo: `
- Silver Tier (0-5 nights): Free Wi-Fi.
- Gold Tier (6-20 nights): Room upgrade, 10% dining discount.
- Platinum Tier (20+ nights): Free airport pickup, 20% dining discount.
`,
		CustomInstructions: `
You are the AI Receptionist for Source Garden Hotel Jinja.
Your motto is "Unpretentiously Luxurious".
Your tone should be warm, welcoming, and professional.
Always check availability before confirming a booking.
When quoting prices, always use UGX unless asked otherwise.
`,
		Timezone: "Africa/Kampala",
		Kitchen:  KitchenHours{OpenHour: 7, CloseHour: 22},
	}
}

// Defaults builds the seed data relative to now.
func Defaults(now time.Time) Seed {
	day := 24 * time.Hour
	visit := func(s string) *time.Time {
		t, _ := time.Parse("2006-01-02", s)
		return &t
	}
	created := func(s string) time.Time {
		t, _ := time.Parse(time.RFC3339, s)
		return t
	}

	return Seed{
		Config: DefaultConfig(),
		License: License{
			ID:         "lic_1",
			HotelID:    DefaultHotelID,
			Plan:       PlanPro,
			ValidUntil: now.Add(30 * day),
			IsActive:   true,
		},
		Clients: []Client{
			{
				ID:          "c1",
				HotelID:     DefaultHotelID,
				Name:        "John Doe",
				Phone:       "+256700123456",
				Email:       "john.doe@example.com",
				Preferences: "Prefers quiet rooms away from the pool.",
				LastVisit:   visit("2023-11-15"),
				TotalSpent:  420000,
				StayCount:   3,
				CreatedAt:   created("2023-01-01T00:00:00Z"),
			},
			{
				ID:          "c2",
				HotelID:     DefaultHotelID,
				Name:        "Sarah Namukasa",
				Phone:       "+256777112233",
				Email:       "sarah.n@example.com",
				Preferences: "Allergic to peanuts.",
				LastVisit:   visit("2023-12-01"),
				TotalSpent:  1500000,
				StayCount:   5,
				CreatedAt:   created("2023-02-01T00:00:00Z"),
			},
		},
		Bookings: []Booking{
			{
				ID:          "b1",
				HotelID:     DefaultHotelID,
				ClientID:    "c1",
				GuestName:   "John Doe",
				GuestPhone:  "+256700123456",
				RoomType:    "Deluxe Double",
				CheckIn:     now.Add(day),
				CheckOut:    now.Add(3 * day),
				Status:      StatusConfirmed,
				TotalAmount: 420000,
				CreatedAt:   now,
			},
			{
				ID:          "b2",
				HotelID:     DefaultHotelID,
				ClientID:    "c2",
				GuestName:   "Sarah Namukasa",
				GuestPhone:  "+256777112233",
				RoomType:    "Family Cottage",
				CheckIn:     now,
				CheckOut:    now.Add(2 * day),
				Status:      StatusCheckedIn,
				TotalAmount: 900000,
				CreatedAt:   now,
			},
		},
		Logs: []MessageLog{
			{
				ID:          "l1",
				HotelID:     DefaultHotelID,
				Channel:     ChannelWhatsApp,
				Recipient:   "+256700123456",
				Content:     "Template: info - Inquiry about pool hours",
				Status:      MessageRead,
				ReferenceID: "wamid.123456",
				CreatedAt:   now,
			},
			{
				ID:        "l2",
				HotelID:   DefaultHotelID,
				Channel:   ChannelSystem,
				Recipient: "Admin",
				Content:   "Booking created via Voice AI",
				Status:    MessageDelivered,
				CreatedAt: now.Add(-time.Hour),
			},
		},
	}
}
