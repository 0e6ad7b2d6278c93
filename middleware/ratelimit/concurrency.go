package ratelimit

import (
	"errors"
	"net/http"
	"time"

	"github.com/tekimax/tekimax-api/middleware/ratelimit/application"
	"github.com/tekimax/tekimax-api/middleware/ratelimit/domain"
	"github.com/tekimax/tekimax-api/middleware/ratelimit/infra"

	"github.com/rs/zerolog"
)

// ConcurrencyOptions limita quantas chamadas a upstreams pagos (OpenAI, OCR,
// Ollama) ficam em andamento ao mesmo tempo.
type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	// RetryAfter enviado junto da recusa; padrão 1s.
	RetryAfter time.Duration
}

func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.RetryAfter <= 0 {
		opts.RetryAfter = time.Second
	}

	pool := infra.NewChanPool(opts.Max)
	svc := application.ConcurrencyService{
		Pool:           pool,
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := svc.Acquire(r.Context())
			if err != nil {
				log := zerolog.Ctx(r.Context())
				if !errors.Is(err, domain.ErrBusy) {
					// cliente foi embora; não há para quem responder
					log.Debug().Err(err).Str("path", r.URL.Path).Msg("request abandoned waiting for slot")
					return
				}
				log.Warn().
					Str("path", r.URL.Path).
					Int("in_use", pool.InUse()).
					Int("cap", pool.Cap()).
					Msg("concurrency limit reached")
				w.Header().Set("Retry-After", retryAfterSeconds(opts.RetryAfter))
				reject(w, opts.RejectStatus, "service busy")
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
