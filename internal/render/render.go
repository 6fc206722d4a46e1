// Package render produces the per-recipient HTML and plain-text bodies
// for a campaign email. Rendering is pure string work: no I/O, no
// escaping of author-supplied content (campaign authors are trusted).
package render

import (
	"fmt"
	"strings"
)

// Fields are the dynamic values substituted into a campaign skeleton.
type Fields struct {
	RecipientName  string
	RecipientEmail string
	FromName       string
	ProfileName    string
	UnsubscribeURL string
}

// Message is a fully rendered per-recipient email.
type Message struct {
	HTML    string
	Text    string
	Headers map[string]string
}

const (
	htmlFooter = `<p style="font-size:12px;color:#8a8a8a;margin-top:32px">You are receiving this because you subscribed to %s on Flmlnk. <a href="%s">Unsubscribe</a></p>`
	textFooter = "\n\n--\nYou are receiving this because you subscribed to %s on Flmlnk.\nUnsubscribe: %s\n"
)

// Apply substitutes {placeholder} tokens in template with the given values.
func Apply(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// Render produces the HTML and text bodies for one recipient. Both
// bodies always end with a visible unsubscribe footer, and the headers
// always carry the one-click unsubscribe declaration mailbox providers
// require.
func Render(htmlBody, textBody string, f Fields) Message {
	name := f.RecipientName
	if name == "" {
		name = "there"
	}
	sender := f.ProfileName
	if sender == "" {
		sender = f.FromName
	}

	data := map[string]string{
		"name":         name,
		"email":        f.RecipientEmail,
		"from_name":    f.FromName,
		"profile_name": f.ProfileName,
	}

	html := Apply(htmlBody, data) + fmt.Sprintf(htmlFooter, sender, f.UnsubscribeURL)
	text := Apply(textBody, data) + fmt.Sprintf(textFooter, sender, f.UnsubscribeURL)

	return Message{
		HTML: html,
		Text: text,
		Headers: map[string]string{
			"List-Unsubscribe":      fmt.Sprintf("<%s>", f.UnsubscribeURL),
			"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
		},
	}
}
