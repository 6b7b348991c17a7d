package notify

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
)

// Email template names.
const (
	TemplateBookingConfirmation = "booking-confirmation"
	TemplateGeneralMessage      = "general-message"
)

// ErrUnknownTemplate is returned for an email template that is not defined.
var ErrUnknownTemplate = errors.New("unknown email template")

var emailTemplates = template.Must(template.New("email").Parse(`
{{- define "booking-confirmation" -}}
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
    <h2>Booking Confirmation</h2>
    <p>Hello {{.name}},</p>
    <p>Your booking at <strong>{{.hotel}}</strong> is confirmed.</p>
    <table>
    <tr><td>Room:</td><td>{{.room}}</td></tr>
    <tr><td>Check-in:</td><td>{{.checkIn}}</td></tr>
    <tr><td>Check-out:</td><td>{{.checkOut}}</td></tr>
    <tr><td>Total:</td><td><strong>{{.total}}</strong></td></tr>
    </table>
    <p>{{.policies}}</p>
    <p>We look forward to hosting you.</p>
</body>
</html>
{{- end -}}
{{- define "general-message" -}}
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif;">
    <p>{{.body}}</p>
    <hr />
    <p><small>{{.hotel}}</small></p>
</body>
</html>
{{- end -}}
`))

func renderEmail(name string, vars map[string]string) (string, error) {
	if emailTemplates.Lookup(name) == nil || name == "email" {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	if vars == nil {
		vars = map[string]string{}
	}
	var buf bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&buf, name, vars); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
