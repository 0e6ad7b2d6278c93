// Package session emite e valida o cookie de sessão do operador.
//
// O cookie carrega um JWT HS256 assinado com SESSION_SECRET; não há estado no
// servidor. Logout apenas expira o cookie no navegador.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

const issuer = "tekimax-api"

var (
	ErrNoSession      = errors.New("session: no cookie")
	ErrInvalidSession = errors.New("session: invalid token")
)

// User é o registro mínimo de quem está logado.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) User() User {
	return User{ID: c.Subject, Email: c.Email, Role: c.Role}
}

type Manager struct {
	Secret     []byte
	TTL        time.Duration
	CookieName string
	Secure     bool
	Now        func() time.Time
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

func (m *Manager) cookieName() string {
	if m.CookieName == "" {
		return "tekimax_session"
	}
	return m.CookieName
}

// Issue assina um token para u e grava o cookie.
func (m *Manager) Issue(w http.ResponseWriter, u User) (time.Time, error) {
	now := m.now()
	exp := now.Add(m.TTL)

	claims := Claims{
		Email: u.Email,
		Role:  u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.Secret)
	if err != nil {
		return time.Time{}, fmt.Errorf("sign session: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName(),
		Value:    signed,
		Path:     "/",
		Expires:  exp,
		MaxAge:   int(m.TTL.Seconds()),
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return exp, nil
}

// Clear expira o cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName(),
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Parse lê e valida o cookie da request.
func (m *Manager) Parse(r *http.Request) (*Claims, error) {
	c, err := r.Cookie(m.cookieName())
	if err != nil || c.Value == "" {
		return nil, ErrNoSession
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(c.Value, claims, func(t *jwt.Token) (any, error) {
		return m.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return claims, nil
}

type ctxKey struct{}

// FromContext devolve as claims colocadas por Require.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Claims)
	return c, ok
}

// Require bloqueia com 401 quem não tem sessão válida.
func (m *Manager) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.Parse(r)
		if err != nil {
			zerolog.Ctx(r.Context()).Debug().Err(err).Str("path", r.URL.Path).Msg("session rejected")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
	})
}
