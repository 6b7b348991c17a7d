package prompt

import (
	"strings"
	"testing"
	"time"

	"hotel-receptionist/internal/hotel"
)

func TestSystemInstructionIncludesKnowledgeBase(t *testing.T) {
	cfg := hotel.DefaultConfig()
	cfg.Timezone = ""
	now := time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

	text := SystemInstruction(cfg, now)
	for _, want := range []string{
		"You are the AI Receptionist for Source Garden Hotel Jinja.",
		"Name: Source Garden Hotel Jinja",
		"Currency: UGX",
		"Family Cottage: 450,000 UGX",
		"--- PROCEDURES ---",
		"=== CURRENT DATE ===\nSunday, 1 June 2025, 09:30 UTC",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in system instruction", want)
		}
	}
}

func TestDeclarationsCoverEveryTool(t *testing.T) {
	cfg := hotel.DefaultConfig()
	decls := Declarations(cfg)
	if len(decls) != 13 {
		t.Fatalf("expected 13 tools, got %d", len(decls))
	}

	byName := map[string]int{}
	for i, d := range decls {
		byName[d.Name] = i
	}
	for _, name := range []string{ToolEndCall, ToolLookupClient, ToolCreateBooking, ToolShowMenu, ToolSetDND} {
		if _, ok := byName[name]; !ok {
			t.Fatalf("missing declaration %s", name)
		}
	}

	booking := decls[byName[ToolCreateBooking]]
	if got := booking.Parameters.Properties["roomType"].Enum; len(got) != len(cfg.RoomTypes) || got[0] != "Deluxe Single" {
		t.Fatalf("unexpected roomType enum %v", got)
	}
	if len(booking.Parameters.Required) != 6 {
		t.Fatalf("expected 6 required booking args, got %v", booking.Parameters.Required)
	}

	if tools := Tools(cfg); len(tools) != 1 || len(tools[0].FunctionDeclarations) != 13 {
		t.Fatal("expected a single tool bundle with every declaration")
	}
}
