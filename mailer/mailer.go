// Package mailer envia o formulário de contato por e-mail via Resend.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/tekimax/tekimax-api/config"
	"github.com/tekimax/tekimax-api/upstream"

	"github.com/resend/resend-go/v2"
)

const service = "resend"

var ErrNotConfigured = errors.New("mailer: resend not configured")

type Message struct {
	Name    string
	Email   string
	Subject string
	Message string
}

type emailAPI interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

type Resend struct {
	emails emailAPI
	from   string
	to     []string
}

func NewResend(cfg config.MailConfig) *Resend {
	r := &Resend{from: cfg.From}
	for _, to := range strings.Split(cfg.To, ",") {
		if to = strings.TrimSpace(to); to != "" {
			r.to = append(r.to, to)
		}
	}
	if cfg.ResendAPIKey != "" {
		r.emails = resend.NewClient(cfg.ResendAPIKey).Emails
	}
	return r
}

func (r *Resend) Configured() bool { return r.emails != nil && len(r.to) > 0 && r.from != "" }

var body = template.Must(template.New("contact").Parse(`<h2>{{.Subject}}</h2>
<p><strong>{{.Name}}</strong> &lt;{{.Email}}&gt;</p>
<p style="white-space:pre-wrap">{{.Message}}</p>
`))

// Send devolve o id do e-mail no Resend. Reply-To é o remetente do formulário.
func (r *Resend) Send(ctx context.Context, m Message) (string, error) {
	if !r.Configured() {
		return "", ErrNotConfigured
	}
	if m.Subject == "" {
		m.Subject = "New contact: " + m.Name
	}

	var html bytes.Buffer
	if err := body.Execute(&html, m); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}

	resp, err := r.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    r.from,
		To:      r.to,
		Subject: m.Subject,
		Html:    html.String(),
		Text:    m.Name + " <" + m.Email + ">\n\n" + m.Message,
		ReplyTo: m.Email,
	})
	if err != nil {
		return "", upstream.Wrap(service, err)
	}
	return resp.Id, nil
}
