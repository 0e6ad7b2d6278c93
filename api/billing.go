package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/tekimax/tekimax-api/billing"

	"github.com/rs/zerolog"
)

const maxWebhookBody = 64 << 10

type checkoutBody struct {
	PriceID  string `json:"price_id" validate:"required,startswith=price_,max=255"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Quantity int64  `json:"quantity" validate:"omitempty,min=1,max=100"`
}

func (s *server) checkout(w http.ResponseWriter, r *http.Request) {
	if s.Billing == nil {
		notConfigured(w, "billing")
		return
	}
	var body checkoutBody
	if !decode(w, r, &body) {
		return
	}
	if fields := fieldErrors(validate.Struct(body)); fields != nil {
		writeValidation(w, fields)
		return
	}

	cs, err := s.Billing.Checkout(r.Context(), billing.CheckoutRequest{PriceID: body.PriceID, Email: body.Email, Quantity: body.Quantity})
	if errors.Is(err, billing.ErrNotConfigured) {
		notConfigured(w, "billing")
		return
	}
	if err != nil {
		upstreamFailed(w, r, "billing", err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

// webhook precisa do corpo cru: a assinatura cobre os bytes exatos.
func (s *server) webhook(w http.ResponseWriter, r *http.Request) {
	if s.Billing == nil {
		notConfigured(w, "billing")
		return
	}
	log := zerolog.Ctx(r.Context())

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	ev, err := s.Billing.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, billing.ErrNotConfigured):
		notConfigured(w, "billing webhook")
		return
	case err != nil:
		log.Warn().Err(err).Msg("stripe webhook rejected")
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	log.Info().Str("event_id", ev.ID).Str("event_type", ev.Type).Msg("stripe webhook")
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
