package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/tekimax/tekimax-api/upstream"

	"github.com/rs/zerolog"
)

const defaultMaxBody = 1 << 20

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

func writeValidation(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: fields})
}

func notConfigured(w http.ResponseWriter, service string) {
	writeError(w, http.StatusServiceUnavailable, service+" is not configured")
}

// requestError carrega o status que o decode quer devolver.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

var errEmptyBody = &requestError{status: http.StatusBadRequest, msg: "request body is required"}

// decodeJSON lê no máximo maxBytes. Campos desconhecidos são aceitos.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any, maxBytes int64) error {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBody
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "json") {
		return &requestError{status: http.StatusUnsupportedMediaType, msg: "content type must be application/json"}
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return errEmptyBody
		case errors.As(err, &maxErr):
			return &requestError{status: http.StatusRequestEntityTooLarge, msg: "request body too large"}
		case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
			return &requestError{status: http.StatusBadRequest, msg: "malformed JSON"}
		case errors.As(err, &typeErr):
			return &requestError{status: http.StatusBadRequest, msg: "invalid value for field " + typeErr.Field}
		default:
			return &requestError{status: http.StatusBadRequest, msg: "invalid request body"}
		}
	}
	if dec.More() {
		return &requestError{status: http.StatusBadRequest, msg: "request body must contain a single JSON object"}
	}
	return nil
}

// decode é decodeJSON + resposta de erro. false significa "já respondido".
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := decodeJSON(w, r, v, defaultMaxBody)
	if err == nil {
		return true
	}
	var re *requestError
	if errors.As(err, &re) {
		writeError(w, re.status, re.msg)
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid request body")
	return false
}

// upstreamFailed registra a falha e traduz para a resposta HTTP.
func upstreamFailed(w http.ResponseWriter, r *http.Request, service string, err error) {
	log := zerolog.Ctx(r.Context())

	var ue *upstream.Error
	switch {
	case errors.Is(err, upstream.ErrNotConfigured):
		notConfigured(w, service)
		return
	case errors.Is(err, context.Canceled):
		log.Debug().Err(err).Str("service", service).Msg("client went away")
		writeError(w, http.StatusBadGateway, service+" request canceled")
		return
	case errors.Is(err, context.DeadlineExceeded):
		log.Error().Err(err).Str("service", service).Msg("upstream timeout")
		writeError(w, http.StatusGatewayTimeout, service+" timed out")
		return
	case errors.As(err, &ue):
		log.Error().Err(err).Str("service", service).Int("upstream_status", ue.Status).Msg("upstream request failed")
		msg := ue.Message
		if msg == "" {
			msg = service + " request failed"
		}
		writeError(w, http.StatusBadGateway, msg)
		return
	}
	log.Error().Err(err).Str("service", service).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal server error")
}
