// Package livekit emite access tokens do LiveKit (JWT HS256 assinado com o
// API secret) sem depender do SDK do servidor.
package livekit

import (
	"errors"
	"regexp"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidRoom     = errors.New("livekit: invalid room name")
	ErrInvalidIdentity = errors.New("livekit: invalid identity")
	ErrNotConfigured   = errors.New("livekit: api key/secret not configured")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidName aplica a regra de nomes de sala e identidade.
func ValidName(s string) bool { return namePattern.MatchString(s) }

// VideoGrant segue o formato de claims "video" do LiveKit.
type VideoGrant struct {
	Room           string `json:"room"`
	RoomJoin       bool   `json:"roomJoin"`
	CanPublish     bool   `json:"canPublish"`
	CanSubscribe   bool   `json:"canSubscribe"`
	CanPublishData bool   `json:"canPublishData"`
}

type Claims struct {
	Name     string     `json:"name,omitempty"`
	Metadata string     `json:"metadata,omitempty"`
	Video    VideoGrant `json:"video"`
	jwt.RegisteredClaims
}

// Grant descreve quem entra em qual sala.
type Grant struct {
	Room     string
	Identity string
	Name     string
	Metadata string
}

type TokenIssuer struct {
	APIKey    string
	APISecret string
	TTL       time.Duration
	Now       func() time.Time
}

func (t *TokenIssuer) Configured() bool { return t.APIKey != "" && t.APISecret != "" }

// Issue devolve o token assinado e o instante de expiração.
func (t *TokenIssuer) Issue(g Grant) (string, time.Time, error) {
	if !t.Configured() {
		return "", time.Time{}, ErrNotConfigured
	}
	if !ValidName(g.Room) {
		return "", time.Time{}, ErrInvalidRoom
	}
	if !ValidName(g.Identity) {
		return "", time.Time{}, ErrInvalidIdentity
	}

	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	ttl := t.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	issued := now().Truncate(time.Second)
	exp := issued.Add(ttl)

	claims := Claims{
		Name:     g.Name,
		Metadata: g.Metadata,
		Video: VideoGrant{
			Room:           g.Room,
			RoomJoin:       true,
			CanPublish:     true,
			CanSubscribe:   true,
			CanPublishData: true,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.APIKey,
			Subject:   g.Identity,
			ID:        g.Identity,
			NotBefore: jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(t.APISecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}
