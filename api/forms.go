package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/tekimax/tekimax-api/forms"
	"github.com/tekimax/tekimax-api/middleware/ratelimit"

	"github.com/rs/zerolog"
)

const defaultFormWindow = 15 * time.Minute

// buildSubmission decodifica e valida; false significa "já respondido".
func (s *server) buildSubmission(w http.ResponseWriter, r *http.Request) (forms.Submission, bool) {
	var in forms.Input
	if !decode(w, r, &in) {
		return forms.Submission{}, false
	}
	sub, err := forms.Build(in, s.clientIP(r), r.UserAgent(), s.now())
	if err != nil {
		var verr *forms.ValidationError
		if errors.As(err, &verr) {
			writeValidation(w, verr.Fields)
			return forms.Submission{}, false
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return forms.Submission{}, false
	}
	return sub, true
}

func (s *server) saveFailed(w http.ResponseWriter, r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Error().Err(err).Msg("save submission")
	if errors.Is(err, forms.ErrStoreUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "storage unavailable, please try again later")
		return
	}
	writeError(w, http.StatusInternalServerError, "could not save submission")
}

// submitFormKV grava no store durável configurado.
func (s *server) submitFormKV(w http.ResponseWriter, r *http.Request) {
	if s.Forms == nil {
		notConfigured(w, "form storage")
		return
	}
	sub, ok := s.buildSubmission(w, r)
	if !ok {
		return
	}
	if err := s.Forms.Save(r.Context(), sub); err != nil {
		s.saveFailed(w, r, err)
		return
	}
	zerolog.Ctx(r.Context()).Info().Str("submission_id", sub.ID).Str("type", string(sub.Type)).Msg("form submitted")
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "id": sub.ID})
}

// submitFormSimple roda atrás da janela fixa por IP e grava em memória.
func (s *server) submitFormSimple(w http.ResponseWriter, r *http.Request) {
	if s.SimpleForms == nil {
		notConfigured(w, "form storage")
		return
	}
	sub, ok := s.buildSubmission(w, r)
	if !ok {
		return
	}
	if err := s.SimpleForms.Save(r.Context(), sub); err != nil {
		s.saveFailed(w, r, err)
		return
	}

	resp := map[string]any{"success": true, "id": sub.ID}
	if n, ok := ratelimit.Remaining(r.Context()); ok {
		resp["remaining"] = n
	}
	writeJSON(w, http.StatusOK, resp)
}

// listSubmissions lê o store durável; ?store=simple lê o que chegou por
// /submit-form-simple.
func (s *server) listSubmissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var src forms.Store
	switch q.Get("store") {
	case "", "durable":
		src = s.Forms
	case "simple":
		src = s.SimpleForms
	default:
		writeValidation(w, map[string]string{"store": "must be one of: durable simple"})
		return
	}
	if src == nil {
		notConfigured(w, "form storage")
		return
	}

	f := forms.Filter{Type: forms.Type(q.Get("type"))}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > forms.MaxListLimit {
			writeValidation(w, map[string]string{"limit": "must be between 1 and " + strconv.Itoa(forms.MaxListLimit)})
			return
		}
		f.Limit = n
	}
	switch f.Type {
	case "", forms.TypeContact, forms.TypeOnboarding, forms.TypeNewsletter:
	default:
		writeValidation(w, map[string]string{"type": "must be one of: contact onboarding newsletter"})
		return
	}

	subs, err := src.List(r.Context(), f)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("list submissions")
		if errors.Is(err, forms.ErrStoreUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "storage unavailable, please try again later")
			return
		}
		writeError(w, http.StatusInternalServerError, "could not list submissions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": subs})
}
