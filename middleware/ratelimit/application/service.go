package application

import (
	"time"

	"github.com/tekimax/tekimax-api/middleware/ratelimit/domain"
)

// Service aplica o token bucket por chave e devolve só a decisão; headers e
// status ficam com o middleware.
//
// No bloqueio, RetryAfter é a espera real até o próximo token, com
// s.RetryAfter como piso.
type Service struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
	Now        func() time.Time
}

func (s Service) Decide(key domain.Key) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	lim := s.Store.Get(key)
	if lim == nil {
		return domain.Decision{Allowed: true}
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ok, wait := lim.Take(now())
	if ok {
		return domain.Decision{Allowed: true}
	}

	floor := s.RetryAfter
	if floor <= 0 {
		floor = time.Second
	}
	return domain.Decision{Allowed: false, RetryAfter: max(wait, floor)}
}
