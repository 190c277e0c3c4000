package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	brevo "github.com/getbrevo/brevo-go/lib"
)

// Email sends alerts to the owner through Brevo's transactional API.
type Email struct {
	client    *brevo.APIClient
	fromName  string
	fromEmail string
}

// NewEmail returns nil when apiKey is empty so callers can add it to Multi
// unconditionally. basePath overrides the API endpoint and may be empty.
func NewEmail(apiKey, fromEmail, fromName, basePath string) *Email {
	if apiKey == "" {
		return nil
	}
	cfg := brevo.NewConfiguration()
	cfg.AddDefaultHeader("api-key", apiKey)
	if basePath != "" {
		cfg.BasePath = basePath
	}
	return &Email{
		client:    brevo.NewAPIClient(cfg),
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (e *Email) Send(ctx context.Context, msg Message) error {
	if e == nil || msg.Recipient == "" {
		return nil
	}
	_, _, err := e.client.TransactionalEmailsApi.SendTransacEmail(ctx, brevo.SendSmtpEmail{
		Sender:      &brevo.SendSmtpEmailSender{Name: e.fromName, Email: e.fromEmail},
		To:          []brevo.SendSmtpEmailTo{{Email: msg.Recipient}},
		Subject:     msg.Subject,
		HtmlContent: renderHTML(msg),
		TextContent: msg.Body,
	})
	if err != nil {
		return fmt.Errorf("brevo send to %s: %w", msg.Recipient, err)
	}
	return nil
}

func renderHTML(msg Message) string {
	color := "#dc3545"
	if msg.Event.Kind == KindUp {
		color = "#28a745"
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<h2 style="color:%s">%s</h2><table>`, color, html.EscapeString(msg.Subject))
	for _, line := range strings.Split(msg.Body, "\n") {
		k, v, ok := strings.Cut(line, ": ")
		if !ok {
			fmt.Fprintf(&b, `<tr><td colspan="2">%s</td></tr>`, html.EscapeString(line))
			continue
		}
		fmt.Fprintf(&b, `<tr><td><strong>%s</strong></td><td>%s</td></tr>`, html.EscapeString(k), html.EscapeString(v))
	}
	b.WriteString(`</table>`)
	return b.String()
}
