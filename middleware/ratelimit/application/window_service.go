package application

import (
	"context"
	"time"

	"github.com/tekimax/tekimax-api/middleware/ratelimit/domain"
)

// WindowService aplica a regra de janela fixa sobre um domain.WindowCounter.
//
// Falha do contador não bloqueia o cliente: a decisão é "permitido" e o erro
// volta para quem chamou registrar.
type WindowService struct {
	Counter domain.WindowCounter
	Now     func() time.Time
}

func (s WindowService) Decide(ctx context.Context, key domain.Key) (domain.Decision, error) {
	if s.Counter == nil {
		return domain.Decision{Allowed: true}, nil
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}

	res, err := s.Counter.Hit(ctx, key)
	if err != nil {
		return domain.Decision{Allowed: true}, err
	}

	dec := domain.Decision{
		Allowed:   !res.Exceeded(),
		Limit:     res.Limit,
		Remaining: res.Remaining(),
	}
	if !dec.Allowed {
		dec.RetryAfter = res.ResetAt.Sub(now())
		if dec.RetryAfter < time.Second {
			dec.RetryAfter = time.Second
		}
	}
	return dec, nil
}
