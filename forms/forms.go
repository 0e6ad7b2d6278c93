// Package forms define as submissões dos formulários do site (contato,
// onboarding, newsletter), sua validação/sanitização e o contrato de
// armazenamento.
package forms

import (
	"context"
	"errors"
	"time"
)

type Type string

const (
	TypeContact    Type = "contact"
	TypeOnboarding Type = "onboarding"
	TypeNewsletter Type = "newsletter"
)

// Submission é o registro persistido. IP e UserAgent vêm da request, nunca do corpo.
type Submission struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Company   string    `json:"company,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Role      string    `json:"role,omitempty"`
	Message   string    `json:"message,omitempty"`
	Interests []string  `json:"interests,omitempty"`
	Source    string    `json:"source,omitempty"`
	IP        string    `json:"ip,omitempty"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filter restringe List. Limit <= 0 usa DefaultListLimit.
type Filter struct {
	Type  Type
	Limit int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return f
}

// Matches aplica o filtro de tipo.
func (f Filter) Matches(s Submission) bool {
	return f.Type == "" || f.Type == s.Type
}

// Store persiste submissões. List devolve as mais recentes primeiro.
type Store interface {
	Save(ctx context.Context, s Submission) error
	List(ctx context.Context, f Filter) ([]Submission, error)
}

var ErrStoreUnavailable = errors.New("forms: store unavailable")
