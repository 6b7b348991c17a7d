package prompt

import (
	"hotel-receptionist/internal/hotel"

	"google.golang.org/genai"
)

// Tool names understood by the tool dispatcher.
const (
	ToolEndCall           = "end_call"
	ToolLookupClient      = "lookup_client"
	ToolSavePreference    = "save_client_preference"
	ToolCheckAvailability = "check_room_availability"
	ToolCreateBooking     = "create_booking"
	ToolSendWhatsAppInfo  = "send_whatsapp_info"
	ToolSendEmail         = "send_email"
	ToolKitchenStatus     = "check_kitchen_status"
	ToolShowMenu          = "show_menu_ui"
	ToolOrderRoomService  = "order_room_service"
	ToolAirportPickup     = "book_airport_pickup"
	ToolSetReminder       = "set_reminder"
	ToolSetDND            = "set_dnd_status"
)

func str(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: desc}
}

func enum(values []string, desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Enum: values, Description: desc}
}

func object(props map[string]*genai.Schema, required ...string) *genai.Schema {
	if props == nil {
		props = map[string]*genai.Schema{}
	}
	return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: required}
}

// Declarations lists every tool the model may call. Room type arguments are
// restricted to the configured room types.
func Declarations(cfg hotel.Config) []*genai.FunctionDeclaration {
	rooms := append([]string(nil), cfg.RoomTypes...)

	return []*genai.FunctionDeclaration{
		{
			Name:        ToolEndCall,
			Description: "Ends the voice call session. Use this when the user says goodbye or indicates they are done.",
			Parameters:  object(nil),
		},
		{
			Name:        ToolLookupClient,
			Description: "Look up a client by phone number OR email to retrieve their name and preferences. Try phone first.",
			Parameters: object(map[string]*genai.Schema{
				"phoneNumber": str(""),
				"email":       str(""),
			}),
		},
		{
			Name:        ToolSavePreference,
			Description: "Save a new preference, favorite, or note about the client for future visits.",
			Parameters: object(map[string]*genai.Schema{
				"phoneNumber": str(""),
				"preference":  str(`The detail to remember, e.g., "Allergic to shellfish" or "Loves the garden view".`),
			}, "phoneNumber", "preference"),
		},
		{
			Name:        ToolCheckAvailability,
			Description: "Check if a specific room type is available for a date range.",
			Parameters: object(map[string]*genai.Schema{
				"startDate": str("YYYY-MM-DD format"),
				"endDate":   str("YYYY-MM-DD format"),
				"roomType":  enum(rooms, ""),
			}, "startDate", "endDate", "roomType"),
		},
		{
			Name:        ToolCreateBooking,
			Description: "Create a new reservation for a guest.",
			Parameters: object(map[string]*genai.Schema{
				"guestName": str(""),
				"phone":     str(""),
				"email":     str(""),
				"startDate": str(""),
				"endDate":   str(""),
				"roomType":  enum(rooms, ""),
			}, "guestName", "phone", "startDate", "endDate", "roomType", "email"),
		},
		{
			Name:        ToolSendWhatsAppInfo,
			Description: "Send hotel information or confirmation via WhatsApp.",
			Parameters: object(map[string]*genai.Schema{
				"phoneNumber": str(""),
				"messageType": enum([]string{"confirmation", "info", "location"}, ""),
			}, "phoneNumber", "messageType"),
		},
		{
			Name:        ToolSendEmail,
			Description: "Send an email to a guest.",
			Parameters: object(map[string]*genai.Schema{
				"emailAddress": str(""),
				"subject":      str(""),
				"body":         str(""),
			}, "emailAddress", "subject", "body"),
		},
		{
			Name:        ToolKitchenStatus,
			Description: "Check if the kitchen is currently open for room service.",
			Parameters:  object(nil),
		},
		{
			Name:        ToolShowMenu,
			Description: "Display the interactive food menu UI to the user. Use this when the user wants to see the menu or place an order.",
			Parameters:  object(nil),
		},
		{
			Name:        ToolOrderRoomService,
			Description: "Place a food or drink order for a specific room (manual entry by AI). Use show_menu_ui preferentially if the user is undecided.",
			Parameters: object(map[string]*genai.Schema{
				"roomNumber":      str(""),
				"orderItems":      str("Details of food/drinks ordered"),
				"specialRequests": str(""),
			}, "roomNumber", "orderItems"),
		},
		{
			Name:        ToolAirportPickup,
			Description: "Schedule an airport pickup for a guest.",
			Parameters: object(map[string]*genai.Schema{
				"guestName":    str(""),
				"phoneNumber":  str(""),
				"flightNumber": str(""),
				"arrivalTime":  str(""),
			}, "guestName", "phoneNumber", "flightNumber", "arrivalTime"),
		},
		{
			Name:        ToolSetReminder,
			Description: "Set a wake-up call or reminder for a guest.",
			Parameters: object(map[string]*genai.Schema{
				"guestName":  str(""),
				"roomNumber": str(""),
				"time":       str("Time of reminder (e.g. 7:00 AM)"),
				"message":    str("Content of the reminder"),
			}, "guestName", "roomNumber", "time", "message"),
		},
		{
			Name:        ToolSetDND,
			Description: "Enable or disable Do Not Disturb (DND) status for a room.",
			Parameters: object(map[string]*genai.Schema{
				"roomNumber": str(""),
				"status":     enum([]string{"enable", "disable"}, "Set to enable or disable DND"),
			}, "roomNumber", "status"),
		},
	}
}

// Tools wraps Declarations for a model request.
func Tools(cfg hotel.Config) []*genai.Tool {
	return []*genai.Tool{{FunctionDeclarations: Declarations(cfg)}}
}
