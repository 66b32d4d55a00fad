// Package whatsapp builds wa.me deep links and renders the message
// templates stored in settings. It only consumes appointment snapshots;
// no delivery happens here.
package whatsapp

import (
	"net/url"
	"strings"
)

// Link builds a wa.me deep link that opens a chat with the given number
// and the message pre-filled.
func Link(number, text string) string {
	return "https://wa.me/" + number + "?text=" + url.QueryEscape(text)
}

// Render substitutes {{key}} placeholders in a settings template.
func Render(template string, vars map[string]string) string {
	out := template
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}

const cancellationTemplate = `Hello, I have cancelled my appointment.

Confirmation No: {{code}}
Name: {{name}}
Date: {{date}}
Time: {{time}}
`

// CancellationMessage is the text handed to the doctor's chat when a
// patient cancels. Snapshot fields come from the cancel transaction, not
// a post-commit re-read.
func CancellationMessage(code, name, date, slotTime string) string {
	return Render(cancellationTemplate, map[string]string{
		"code": code,
		"name": name,
		"date": date,
		"time": slotTime,
	})
}
