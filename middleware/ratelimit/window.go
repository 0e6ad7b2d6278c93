package ratelimit

import (
	"context"
	"net/http"
	"time"

	"github.com/tekimax/tekimax-api/middleware/ratelimit/application"
	"github.com/tekimax/tekimax-api/middleware/ratelimit/domain"

	"github.com/rs/zerolog"
)

// WindowOptions configura o limite de janela fixa (formulários).
type WindowOptions struct {
	Counter      domain.WindowCounter
	Stats        domain.StatsStore
	Scope        string
	KeyFn        KeyFunc
	RejectStatus int
	Now          func() time.Time
}

// WindowMiddleware aplica a janela fixa por chave. Sempre informa
// X-RateLimit-Limit/Remaining; no bloqueio também Retry-After.
func WindowMiddleware(opts WindowOptions) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc("", false)
	}
	if opts.Scope == "" {
		opts.Scope = "window"
	}

	svc := application.WindowService{Counter: opts.Counter, Now: opts.Now}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)
			log := zerolog.Ctx(r.Context())

			dec, err := svc.Decide(r.Context(), domain.Key(key))
			if err != nil {
				log.Error().Err(err).Str("scope", opts.Scope).Msg("window counter unavailable, allowing request")
			}
			record(r, opts.Stats, opts.Scope, key, dec.Allowed)

			if dec.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", formatInt(dec.Limit))
				w.Header().Set("X-RateLimit-Remaining", formatInt(dec.Remaining))
			}
			if !dec.Allowed {
				log.Warn().Str("scope", opts.Scope).Str("key", key).Msg("submission window exceeded")
				w.Header().Set("Retry-After", retryAfterSeconds(dec.RetryAfter))
				reject(w, opts.RejectStatus, "too many submissions, please try again later")
				return
			}

			if dec.Limit > 0 {
				r = r.WithContext(context.WithValue(r.Context(), remainingKey{}, dec.Remaining))
			}
			next.ServeHTTP(w, r)
		})
	}
}

type remainingKey struct{}

// Remaining devolve quantos envios ainda cabem na janela da request atual.
func Remaining(ctx context.Context) (int, bool) {
	n, ok := ctx.Value(remainingKey{}).(int)
	return n, ok
}
