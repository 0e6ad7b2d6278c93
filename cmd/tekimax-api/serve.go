package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/tekimax/tekimax-api/api"
	"github.com/tekimax/tekimax-api/billing"
	"github.com/tekimax/tekimax-api/config"
	"github.com/tekimax/tekimax-api/forms/store"
	"github.com/tekimax/tekimax-api/logging"
	"github.com/tekimax/tekimax-api/mailer"
	"github.com/tekimax/tekimax-api/middleware/ratelimit/domain"
	"github.com/tekimax/tekimax-api/middleware/ratelimit/infra"
	"github.com/tekimax/tekimax-api/middleware/session"
	"github.com/tekimax/tekimax-api/upstream/livekit"
	"github.com/tekimax/tekimax-api/upstream/ollama"
	"github.com/tekimax/tekimax-api/upstream/openai"
	"github.com/tekimax/tekimax-api/upstream/realtime"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func serve(ctx context.Context, envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		_, err := rdb.Ping(pingCtx).Result()
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps, err := buildDeps(cfg, log, reg, rdb)
	if err != nil {
		return err
	}

	limiter := infra.NewStore(cfg.Rate.RPS, cfg.Rate.Burst,
		infra.WithIdleTTL(cfg.Rate.IdleTTL),
		infra.WithCleanupEvery(cfg.Rate.CleanupEvery),
	)
	limiter.StartJanitor(ctx)
	if cfg.Rate.Enabled {
		deps.Rate.Store = limiter
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// TTS e gpt-oss podem demorar mais que os 30s do gateway
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}()

	log.Info().
		Str("addr", cfg.ListenAddr).
		Str("version", version).
		Str("form_store", string(cfg.Forms.Store)).
		Bool("redis", rdb != nil).
		Msg("tekimax-api listening")
	log.Info().
		Bool("enabled", cfg.Rate.Enabled).
		Float64("rps", cfg.Rate.RPS).
		Int("burst", cfg.Rate.Burst).
		Bool("trust_xff", cfg.TrustXFF).
		Int("concurrency_max", cfg.Rate.ConcurrencyMax).
		Dur("form_window", cfg.Rate.FormWindow).
		Int("form_window_max", cfg.Rate.FormWindowMax).
		Msg("rate limits")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

// buildDeps instancia só os upstreams configurados; o resto fica nil e a
// rota responde 503.
func buildDeps(cfg config.Config, log zerolog.Logger, reg *prometheus.Registry, rdb *redis.Client) (api.Deps, error) {
	d := api.Deps{
		Logger:   log,
		Registry: reg,
		Origins:  cfg.CORSOrigins,
		Rate: api.RateOptions{
			TrustXForwardedFor: cfg.TrustXFF,
			KeyHeader:          cfg.Rate.KeyHeader,
			RetryAfter:         cfg.Rate.RetryAfter,
			AddHeaders:         cfg.Rate.AddHeaders,
			ConcurrencyMax:     cfg.Rate.ConcurrencyMax,
			ConcurrencyTimeout: cfg.Rate.ConcurrencyTimeout,
		},
	}

	stats := infra.MultiStats{infra.NewPrometheusStats(reg)}
	if cfg.Rate.StatsEnabled && rdb != nil {
		rs := infra.NewRedisStatsStore(rdb,
			infra.WithStatsPrefix(cfg.Rate.StatsPrefix),
			infra.WithStatsTTL(cfg.Rate.StatsTTL),
			infra.WithStatsBucket(cfg.Rate.StatsBucket),
			infra.WithStatsTrackKeys(cfg.Rate.StatsTrackKeys),
		)
		stats = append(stats, rs)
		d.Rate.StatsReader = rs
	} else {
		mem := infra.NewMemoryStatsStore()
		stats = append(stats, mem)
		d.Rate.StatsReader = mem
	}
	d.Rate.Stats = stats

	var window domain.WindowCounter = infra.NewMemoryWindow(cfg.Rate.FormWindowMax, cfg.Rate.FormWindow)
	if rdb != nil {
		window = infra.NewRedisWindow(rdb, cfg.Rate.FormWindowMax, cfg.Rate.FormWindow, infra.WithWindowPrefix("ratelimit:form"))
	}
	d.FormWindow = window

	if cfg.OpenAI.APIKey != "" {
		oc := openai.New(cfg.OpenAI, nil)
		d.Chat, d.Transcriber, d.Speaker, d.Realtime = oc, oc, oc, oc
		d.RealtimeWS = &realtime.Relay{
			URL:    cfg.RealtimeURL,
			APIKey: cfg.OpenAI.APIKey,
			Model:  cfg.OpenAI.RealtimeModel,
			Upgrader: websocket.Upgrader{
				ReadBufferSize:  16 << 10,
				WriteBufferSize: 16 << 10,
				CheckOrigin:     checkOrigin(cfg.CORSOrigins),
			},
		}
	}
	if cfg.OCRURL != "" {
		h, err := api.NewOCRProxy(cfg.OCRURL)
		if err != nil {
			return api.Deps{}, err
		}
		d.OCR = h
	}
	if cfg.Ollama.URL != "" {
		d.OSS = ollama.New(cfg.Ollama.URL, cfg.Ollama.Model)
	}
	if cfg.LiveKit.APIKey != "" && cfg.LiveKit.APISecret != "" {
		d.LiveKit = &livekit.TokenIssuer{APIKey: cfg.LiveKit.APIKey, APISecret: cfg.LiveKit.APISecret, TTL: cfg.LiveKit.TokenTTL}
		d.LiveKitURL = cfg.LiveKit.URL
	}
	if m := mailer.NewResend(cfg.Mail); m.Configured() {
		d.Mail = m
	}
	if b := billing.NewStripe(cfg.Stripe); b.Configured() || b.WebhookConfigured() {
		d.Billing = b
	}

	durable, err := store.Open(cfg.Forms, rdb)
	if err != nil {
		return api.Deps{}, fmt.Errorf("form store: %w", err)
	}
	d.Forms = durable
	d.SimpleForms = store.NewMemory(store.DefaultMemoryRetention)

	if cfg.Session.Secret != "" {
		d.Sessions = &session.Manager{
			Secret:     []byte(cfg.Session.Secret),
			TTL:        cfg.Session.TTL,
			CookieName: cfg.Session.CookieName,
			Secure:     cfg.Session.SecureCookie,
		}
	}
	d.Admin = api.Admin{Email: cfg.Session.AdminEmail, PasswordHash: cfg.Session.AdminPasswordHash}
	return d, nil
}

// checkOrigin aplica a mesma lista do CORS ao upgrade do websocket.
// Sem header Origin (clientes não-browser) a conexão é aceita.
func checkOrigin(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			return false
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}
