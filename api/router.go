package api

import (
	"net/http"

	"github.com/tekimax/tekimax-api/middleware/observability"
	"github.com/tekimax/tekimax-api/middleware/ratelimit"
	"github.com/tekimax/tekimax-api/middleware/ratelimit/domain"
	"github.com/tekimax/tekimax-api/middleware/ratelimit/infra"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter monta a cadeia: Recover -> Logger -> Metrics -> CORS, e em /api
// o token bucket por IP. As rotas de IA passam também pelo limite de
// concorrência.
func NewRouter(d Deps) http.Handler {
	s := &server{
		Deps:     d,
		clientIP: ratelimit.DefaultKeyFunc("", d.Rate.TrustXForwardedFor),
		rateKey:  ratelimit.DefaultKeyFunc(d.Rate.KeyHeader, d.Rate.TrustXForwardedFor),
	}
	if s.Registry == nil {
		s.Registry = prometheus.NewRegistry()
	}
	metrics := observability.NewMetrics(s.Registry)

	r := chi.NewRouter()
	r.Use(observability.Recover)
	r.Use(observability.Logger(s.Logger))
	r.Use(metrics.Handler)
	r.Use(observability.CORS(observability.DefaultCORSConfig(s.Origins)))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{Registry: s.Registry}))

	r.Route("/api", func(r chi.Router) {
		if s.Rate.Store != nil {
			r.Use(ratelimit.Middleware(ratelimit.Options{
				Store:               s.Rate.Store,
				Stats:               s.Rate.Stats,
				Scope:               domain.ScopeAPI,
				KeyFn:               s.rateKey,
				RetryAfter:          s.Rate.RetryAfter,
				AddRateLimitHeaders: s.Rate.AddHeaders,
			}))
		}

		// IA: chamadas lentas e caras
		r.Group(func(r chi.Router) {
			r.Use(ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
				Max:            s.Rate.ConcurrencyMax,
				RejectStatus:   http.StatusServiceUnavailable,
				AcquireTimeout: s.Rate.ConcurrencyTimeout,
			}))
			r.Post("/chat", s.chat)
			r.Post("/audio/transcribe", s.transcribe)
			r.Post("/og/pronounce", s.pronounce)
			r.Post("/ocr", s.ocr)
			r.Get("/gpt-oss-proxy", s.ossTags)
			r.Post("/gpt-oss-proxy", s.ossChat)
			r.Post("/realtime/session", s.realtimeSession)
		})

		// a conexão websocket seguraria um slot de concorrência enquanto durar
		r.Get("/realtime/ws", s.realtimeWS)
		r.Post("/livekit/token", s.livekitToken)

		r.Post("/submit-form-kv", s.submitFormKV)
		r.With(s.formWindow()).Post("/submit-form-simple", s.submitFormSimple)
		r.With(s.requireSession).Get("/submissions", s.listSubmissions)
		r.With(s.requireSession).Get("/ratelimit/stats", s.rateStats)

		r.Post("/send", s.send)
		r.Post("/billing/checkout", s.checkout)
		r.Post("/billing/webhook", s.webhook)

		r.Post("/auth/login", s.login)
		r.Post("/auth/logout", s.logout)
		r.Get("/auth/me", s.me)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (s *server) formWindow() func(http.Handler) http.Handler {
	counter := s.FormWindow
	if counter == nil {
		counter = infra.NewMemoryWindow(5, defaultFormWindow)
	}
	return ratelimit.WindowMiddleware(ratelimit.WindowOptions{
		Counter: counter,
		Stats:   s.Rate.Stats,
		Scope:   domain.ScopeForm,
		KeyFn:   s.rateKey,
		Now:     s.Now,
	})
}

func (s *server) requireSession(next http.Handler) http.Handler {
	if s.Sessions == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			notConfigured(w, "auth")
		})
	}
	return s.Sessions.Require(next)
}
