package simulator

import (
	"encoding/xml"
	"fmt"
	"strings"

	"hotel-receptionist/internal/hotel"

	"github.com/twilio/twilio-go/twiml"
)

// Webhook paths the provider calls back with the caller's next utterance.
const (
	TwilioProcessPath          = "/voice/process"
	AfricasTalkingProcessPath  = "/voice/at/process"
	africasTalkingRecordLength = 20
)

// Envelope renders say as the provider's call-control XML. When hangup is
// set the call ends after the reply; otherwise the provider is asked to
// collect the next utterance at basePath plus the process path.
func Envelope(provider hotel.Provider, voiceID, say string, hangup bool, basePath string) (string, error) {
	base := CallbackBase(basePath)
	if provider == hotel.ProviderAfricasTalking {
		return africasTalkingEnvelope(say, hangup, base+AfricasTalkingProcessPath)
	}
	return twilioEnvelope(voiceID, say, hangup, base+TwilioProcessPath)
}

// CallbackBase normalises a public base path to "" or "/prefix".
func CallbackBase(basePath string) string {
	base := strings.TrimSpace(basePath)
	if base == "" || base == "/" {
		return ""
	}
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	return strings.TrimSuffix(base, "/")
}

func twilioEnvelope(voiceID, say string, hangup bool, action string) (string, error) {
	elements := []twiml.Element{&twiml.VoiceSay{Message: say, Voice: voiceID}}
	if hangup {
		elements = append(elements, &twiml.VoiceHangup{})
	} else {
		elements = append(elements, &twiml.VoiceGather{
			Input:   "speech",
			Timeout: "5",
			Action:  action,
		})
	}
	out, err := twiml.Voice(elements)
	if err != nil {
		return "", fmt.Errorf("render twiml: %w", err)
	}
	return out, nil
}

type atResponse struct {
	XMLName xml.Name  `xml:"Response"`
	Say     atSay     `xml:"Say"`
	Record  *atRecord `xml:"Record,omitempty"`
}

type atSay struct {
	Text string `xml:",chardata"`
}

type atRecord struct {
	CallbackURL string `xml:"callbackUrl,attr"`
	MaxLength   int    `xml:"maxLength,attr"`
	FinishOnKey string `xml:"finishOnKey,attr"`
	PlayBeep    bool   `xml:"playBeep,attr"`
}

func africasTalkingEnvelope(say string, hangup bool, callback string) (string, error) {
	resp := atResponse{Say: atSay{Text: say}}
	if !hangup {
		resp.Record = &atRecord{
			CallbackURL: callback,
			MaxLength:   africasTalkingRecordLength,
			FinishOnKey: "#",
			PlayBeep:    true,
		}
	}
	out, err := xml.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("render africastalking xml: %w", err)
	}
	return xml.Header + string(out), nil
}
