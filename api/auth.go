package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"sync"

	"github.com/tekimax/tekimax-api/middleware/session"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

type loginBody struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=256"`
}

// dummyHash mantém o custo do bcrypt quando o e-mail não confere.
var dummyHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("tekimax-dummy-password"), bcrypt.DefaultCost)
	return h
})

func (s *server) authConfigured() bool {
	return s.Sessions != nil && s.Admin.Email != "" && s.Admin.PasswordHash != ""
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	if !s.authConfigured() {
		notConfigured(w, "auth")
		return
	}
	var body loginBody
	if !decode(w, r, &body) {
		return
	}
	if fields := fieldErrors(validate.Struct(body)); fields != nil {
		writeValidation(w, fields)
		return
	}

	email := strings.ToLower(strings.TrimSpace(body.Email))
	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(s.Admin.Email)) == 1
	hash := []byte(s.Admin.PasswordHash)
	if !emailOK {
		hash = dummyHash()
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(body.Password)); err != nil || !emailOK {
		zerolog.Ctx(r.Context()).Warn().Str("email", email).Msg("login failed")
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	user := session.User{ID: "admin", Email: s.Admin.Email, Role: "admin"}
	exp, err := s.Sessions.Issue(w, user)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("issue session")
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user, "expires_at": exp.UTC()})
}

func (s *server) logout(w http.ResponseWriter, r *http.Request) {
	if s.Sessions != nil {
		s.Sessions.Clear(w)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *server) me(w http.ResponseWriter, r *http.Request) {
	if s.Sessions == nil {
		notConfigured(w, "auth")
		return
	}
	claims, err := s.Sessions.Parse(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": claims.User()})
}
