// Package billing cria sessões de Checkout do Stripe e verifica webhooks.
package billing

import (
	"context"
	"errors"

	"github.com/tekimax/tekimax-api/config"
	"github.com/tekimax/tekimax-api/upstream"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

const service = "stripe"

var (
	ErrNotConfigured    = errors.New("billing: stripe not configured")
	ErrInvalidSignature = errors.New("billing: invalid webhook signature")
)

type CheckoutRequest struct {
	PriceID  string
	Email    string
	Quantity int64
}

type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Event é o recorte do evento que a API registra.
type Event struct {
	ID   string
	Type string
}

type sessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type Stripe struct {
	sessions      sessionAPI
	webhookSecret string
	successURL    string
	cancelURL     string
}

func NewStripe(cfg config.StripeConfig) *Stripe {
	s := &Stripe{
		webhookSecret: cfg.WebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}
	if cfg.SecretKey != "" {
		sc := &client.API{}
		sc.Init(cfg.SecretKey, nil)
		s.sessions = sc.CheckoutSessions
	}
	return s
}

func (s *Stripe) Configured() bool        { return s.sessions != nil }
func (s *Stripe) WebhookConfigured() bool { return s.webhookSecret != "" }

// Checkout abre uma sessão em modo assinatura.
func (s *Stripe) Checkout(ctx context.Context, in CheckoutRequest) (CheckoutSession, error) {
	if !s.Configured() {
		return CheckoutSession{}, ErrNotConfigured
	}
	qty := in.Quantity
	if qty <= 0 {
		qty = 1
	}
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(in.PriceID), Quantity: stripe.Int64(qty)},
		},
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.cancelURL),
	}
	if in.Email != "" {
		params.CustomerEmail = stripe.String(in.Email)
	}
	params.Context = ctx

	cs, err := s.sessions.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) {
			return CheckoutSession{}, &upstream.Error{Service: service, Status: se.HTTPStatusCode, Message: se.Msg, Err: err}
		}
		return CheckoutSession{}, upstream.Wrap(service, err)
	}
	return CheckoutSession{ID: cs.ID, URL: cs.URL}, nil
}

// VerifyWebhook checa o header Stripe-Signature (tolerância padrão de 5 min).
func (s *Stripe) VerifyWebhook(payload []byte, signature string) (Event, error) {
	if !s.WebhookConfigured() {
		return Event{}, ErrNotConfigured
	}
	ev, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, errors.Join(ErrInvalidSignature, err)
	}
	return Event{ID: ev.ID, Type: string(ev.Type)}, nil
}
