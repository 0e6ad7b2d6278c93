// Package api monta o roteador HTTP e os handlers de /api/*. Cada handler
// valida a entrada, chama um upstream e remodela o JSON de resposta.
//
// Dependências nulas em Deps significam serviço não configurado: a rota
// responde 503 {"error":"<serviço> is not configured"}.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/tekimax/tekimax-api/billing"
	"github.com/tekimax/tekimax-api/forms"
	"github.com/tekimax/tekimax-api/mailer"
	"github.com/tekimax/tekimax-api/middleware/ratelimit/domain"
	"github.com/tekimax/tekimax-api/middleware/session"
	"github.com/tekimax/tekimax-api/upstream/livekit"
	"github.com/tekimax/tekimax-api/upstream/ollama"
	"github.com/tekimax/tekimax-api/upstream/openai"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

type Chatter interface {
	Chat(ctx context.Context, req openai.ChatRequest) (openai.ChatResult, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, req openai.TranscribeRequest) (string, error)
}

type Speaker interface {
	Speak(ctx context.Context, req openai.SpeechRequest) (io.ReadCloser, error)
}

type RealtimeSessions interface {
	RealtimeSession(ctx context.Context, model, voice string) ([]byte, error)
}

// OSSModel é o servidor compatível com Ollama atrás de /api/gpt-oss-proxy.
type OSSModel interface {
	Tags(ctx context.Context) ([]byte, error)
	Chat(ctx context.Context, req ollama.ChatRequest) (json.RawMessage, error)
}

type TokenIssuer interface {
	Issue(g livekit.Grant) (string, time.Time, error)
}

type Mailer interface {
	Send(ctx context.Context, m mailer.Message) (string, error)
}

type Billing interface {
	Checkout(ctx context.Context, in billing.CheckoutRequest) (billing.CheckoutSession, error)
	VerifyWebhook(payload []byte, signature string) (billing.Event, error)
}

// Admin é a credencial única de operador aceita por /api/auth/login.
type Admin struct {
	Email        string
	PasswordHash string
}

type RateOptions struct {
	Store              domain.LimiterStore
	Stats              domain.StatsStore
	StatsReader        domain.StatsReader
	TrustXForwardedFor bool
	// KeyHeader tem precedência sobre o IP na chave dos limitadores
	KeyHeader          string
	RetryAfter         time.Duration
	AddHeaders         bool
	ConcurrencyMax     int
	ConcurrencyTimeout time.Duration
}

type Deps struct {
	Logger   zerolog.Logger
	Registry *prometheus.Registry
	Origins  []string
	Rate     RateOptions

	Chat        Chatter
	Transcriber Transcriber
	Speaker     Speaker
	Realtime    RealtimeSessions
	RealtimeWS  http.Handler
	OCR         http.Handler
	OSS         OSSModel
	LiveKit     TokenIssuer
	LiveKitURL  string
	Mail        Mailer
	Billing     Billing

	// Forms é o store durável (kv/cosmos/redis); SimpleForms o de memória.
	Forms       forms.Store
	SimpleForms forms.Store
	FormWindow  domain.WindowCounter

	Sessions *session.Manager
	Admin    Admin

	Now func() time.Time
}

type server struct {
	Deps
	clientIP func(*http.Request) string
	rateKey  func(*http.Request) string
}

func (s *server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
