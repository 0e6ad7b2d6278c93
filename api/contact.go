package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tekimax/tekimax-api/forms"
	"github.com/tekimax/tekimax-api/mailer"
)

type sendBody struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Subject string `json:"subject" validate:"max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

func (s *server) send(w http.ResponseWriter, r *http.Request) {
	if s.Mail == nil {
		notConfigured(w, "email")
		return
	}
	var body sendBody
	if !decode(w, r, &body) {
		return
	}

	body.Name = forms.CleanLine(body.Name)
	body.Email = strings.ToLower(forms.CleanLine(body.Email))
	body.Subject = forms.CleanLine(body.Subject)
	body.Message = forms.CleanText(body.Message)

	if fields := fieldErrors(validate.Struct(body)); fields != nil {
		writeValidation(w, fields)
		return
	}

	id, err := s.Mail.Send(r.Context(), mailer.Message{
		Name:    body.Name,
		Email:   body.Email,
		Subject: body.Subject,
		Message: body.Message,
	})
	if errors.Is(err, mailer.ErrNotConfigured) {
		notConfigured(w, "email")
		return
	}
	if err != nil {
		upstreamFailed(w, r, "email", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}
