package ratelimit

import (
	"net/http"
	"time"

	"github.com/tekimax/tekimax-api/middleware/ratelimit/application"
	"github.com/tekimax/tekimax-api/middleware/ratelimit/domain"

	"github.com/rs/zerolog"
)

type Options struct {
	Store               domain.LimiterStore
	Stats               domain.StatsStore
	Scope               string
	KeyFn               KeyFunc
	KeyHeader           string
	TrustXForwardedFor  bool
	RejectStatus        int
	RetryAfter          time.Duration
	AddRateLimitHeaders bool
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

// Middleware aplica o token bucket por chave. Bloqueio responde RejectStatus
// (429 por padrão) com Retry-After e corpo JSON.
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.KeyHeader, opts.TrustXForwardedFor)
	}
	if opts.Scope == "" {
		opts.Scope = "api"
	}

	svc := application.Service{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				if ri, ok := opts.Store.(rateInfo); ok {
					w.Header().Set("X-RateLimit-RPS", formatFloat(ri.RPS()))
					w.Header().Set("X-RateLimit-Burst", formatInt(ri.Burst()))
				}
			}

			dec := svc.Decide(domain.Key(key))
			record(r, opts.Stats, opts.Scope, key, dec.Allowed)
			if !dec.Allowed {
				zerolog.Ctx(r.Context()).Warn().
					Str("scope", opts.Scope).
					Str("key", key).
					Str("path", r.URL.Path).
					Msg("rate limit exceeded")
				w.Header().Set("Retry-After", retryAfterSeconds(dec.RetryAfter))
				reject(w, opts.RejectStatus, "too many requests")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func record(r *http.Request, stats domain.StatsStore, scope, key string, allowed bool) {
	if stats == nil {
		return
	}
	err := stats.Record(r.Context(), domain.StatsEvent{
		Scope:   scope,
		Key:     domain.Key(key),
		Allowed: allowed,
		Method:  r.Method,
		Path:    r.URL.Path,
		At:      time.Now(),
	})
	if err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("rate limit stats")
	}
}
