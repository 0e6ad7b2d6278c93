package application

import (
	"context"
	"time"

	"github.com/tekimax/tekimax-api/middleware/ratelimit/domain"
)

// ConcurrencyService aplica o prazo de espera por vaga, sem saber nada de HTTP.
type ConcurrencyService struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

// Acquire devolve um release não nulo em caso de sucesso. Falhas:
//   - ctx.Err() quando o próprio chamador desistiu (cliente desconectou);
//   - domain.ErrBusy quando o prazo AcquireTimeout estourou.
//
// AcquireTimeout <= 0 espera enquanto o ctx durar.
func (s ConcurrencyService) Acquire(ctx context.Context) (func(), error) {
	if s.Pool == nil {
		return func() {}, nil
	}

	acqCtx := ctx
	if s.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		acqCtx, cancel = context.WithTimeout(ctx, s.AcquireTimeout)
		defer cancel()
	}

	release, ok := s.Pool.Acquire(acqCtx)
	if ok {
		return release, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, domain.ErrBusy
}
