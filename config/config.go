// Package config carrega a configuração do serviço a partir de variáveis de
// ambiente (e de um .env opcional). Chaves vazias de upstreams significam
// "não configurado": a rota correspondente responde 503.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FormStore seleciona onde o formulário "kv" persiste.
type FormStore string

const (
	FormStoreMemory FormStore = "memory"
	FormStoreRedis  FormStore = "redis"
	FormStoreKV     FormStore = "kv"
	FormStoreCosmos FormStore = "cosmos"
)

type Config struct {
	ListenAddr  string
	LogLevel    string
	LogFormat   string
	CORSOrigins []string
	TrustXFF    bool

	Rate        RateConfig
	Redis       RedisConfig
	OpenAI      OpenAIConfig
	OCRURL      string
	Ollama      OllamaConfig
	RealtimeURL string
	LiveKit     LiveKitConfig
	Mail        MailConfig
	Stripe      StripeConfig
	Forms       FormsConfig
	Session     SessionConfig
}

type RateConfig struct {
	Enabled            bool
	RPS                float64
	Burst              int
	RetryAfter         time.Duration
	IdleTTL            time.Duration
	CleanupEvery       time.Duration
	AddHeaders         bool
	// KeyHeader identifica o cliente no limite antes do IP (ex.: X-API-Key)
	KeyHeader          string
	ConcurrencyMax     int
	ConcurrencyTimeout time.Duration
	FormWindow         time.Duration
	FormWindowMax      int

	StatsEnabled   bool
	StatsPrefix    string
	StatsTTL       time.Duration
	StatsBucket    string
	// contador por chave no Redis; cuidado com cardinalidade
	StatsTrackKeys bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func (c RedisConfig) Enabled() bool { return strings.TrimSpace(c.Addr) != "" }

type OpenAIConfig struct {
	APIKey        string
	BaseURL       string
	ChatModel     string
	TTSModel      string
	TTSVoice      string
	RealtimeModel string
}

type OllamaConfig struct {
	URL   string
	Model string
}

type LiveKitConfig struct {
	APIKey    string
	APISecret string
	URL       string
	TokenTTL  time.Duration
}

type MailConfig struct {
	ResendAPIKey string
	From         string
	To           string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

type FormsConfig struct {
	Store FormStore

	CloudflareAPIToken    string
	CloudflareAccountID   string
	CloudflareNamespaceID string

	CosmosEndpoint  string
	CosmosKey       string
	CosmosDatabase  string
	CosmosContainer string
}

type SessionConfig struct {
	Secret            string
	TTL               time.Duration
	CookieName        string
	SecureCookie      bool
	AdminEmail        string
	AdminPasswordHash string
}

// AuthEnabled indica se há uma credencial de operador para /api/auth/login.
func (c SessionConfig) AuthEnabled() bool { return c.AdminEmail != "" }

func setDefaults(v *viper.Viper) {
	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "auto")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("TRUST_XFF", false)

	v.SetDefault("RATE_ENABLED", true)
	v.SetDefault("RATE_RPS", 5.0)
	v.SetDefault("RATE_BURST", 20)
	v.SetDefault("RATE_RETRY_AFTER", time.Second)
	v.SetDefault("RATE_IDLE_TTL", 15*time.Minute)
	v.SetDefault("RATE_CLEANUP_EVERY", 2*time.Minute)
	v.SetDefault("ADD_RATELIMIT_HEADERS", false)
	v.SetDefault("CONCURRENCY_MAX", 32)
	v.SetDefault("CONCURRENCY_TIMEOUT", 5*time.Second)
	v.SetDefault("FORM_WINDOW", 15*time.Minute)
	v.SetDefault("FORM_WINDOW_MAX", 5)
	v.SetDefault("RATE_STATS_ENABLED", false)
	v.SetDefault("RATE_STATS_PREFIX", "ratelimit:stats")
	v.SetDefault("RATE_STATS_TTL", 24*time.Hour)
	v.SetDefault("RATE_STATS_BUCKET", "minute")
	v.SetDefault("RATE_STATS_TRACK_KEYS", false)
	v.SetDefault("RATE_KEY_HEADER", "")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_CHAT_MODEL", "gpt-4o-mini")
	v.SetDefault("OPENAI_TTS_MODEL", "tts-1")
	v.SetDefault("OPENAI_TTS_VOICE", "alloy")
	v.SetDefault("OPENAI_REALTIME_MODEL", "gpt-4o-realtime-preview")

	v.SetDefault("OCR_SERVICE_URL", "")
	v.SetDefault("OLLAMA_URL", "http://localhost:11434")
	v.SetDefault("OLLAMA_MODEL", "gpt-oss:20b")
	v.SetDefault("REALTIME_WS_URL", "wss://api.openai.com/v1/realtime")

	v.SetDefault("LIVEKIT_API_KEY", "")
	v.SetDefault("LIVEKIT_API_SECRET", "")
	v.SetDefault("LIVEKIT_URL", "")
	v.SetDefault("LIVEKIT_TOKEN_TTL", time.Hour)

	v.SetDefault("RESEND_API_KEY", "")
	v.SetDefault("MAIL_FROM", "TEKIMAX <noreply@tekimax.com>")
	v.SetDefault("MAIL_TO", "")

	v.SetDefault("STRIPE_SECRET_KEY", "")
	v.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	v.SetDefault("STRIPE_SUCCESS_URL", "http://localhost:3000/billing/success?session_id={CHECKOUT_SESSION_ID}")
	v.SetDefault("STRIPE_CANCEL_URL", "http://localhost:3000/pricing")

	v.SetDefault("FORM_STORE", string(FormStoreMemory))
	v.SetDefault("CF_API_TOKEN", "")
	v.SetDefault("CF_ACCOUNT_ID", "")
	v.SetDefault("CF_KV_NAMESPACE_ID", "")
	v.SetDefault("COSMOS_ENDPOINT", "")
	v.SetDefault("COSMOS_KEY", "")
	v.SetDefault("COSMOS_DATABASE", "tekimax")
	v.SetDefault("COSMOS_CONTAINER", "submissions")

	v.SetDefault("SESSION_SECRET", "")
	v.SetDefault("SESSION_TTL", 24*time.Hour)
	v.SetDefault("SESSION_COOKIE", "tekimax_session")
	v.SetDefault("SESSION_SECURE", true)
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD_HASH", "")
}

// Load lê o .env em envFile (se existir) e depois o ambiente do processo.
// Variáveis já definidas no ambiente têm precedência sobre o arquivo.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func fromViper(v *viper.Viper) Config {
	return Config{
		ListenAddr:  v.GetString("LISTEN_ADDR"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		LogFormat:   v.GetString("LOG_FORMAT"),
		CORSOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		TrustXFF:    v.GetBool("TRUST_XFF"),
		Rate: RateConfig{
			Enabled:            v.GetBool("RATE_ENABLED"),
			RPS:                v.GetFloat64("RATE_RPS"),
			Burst:              v.GetInt("RATE_BURST"),
			RetryAfter:         v.GetDuration("RATE_RETRY_AFTER"),
			IdleTTL:            v.GetDuration("RATE_IDLE_TTL"),
			CleanupEvery:       v.GetDuration("RATE_CLEANUP_EVERY"),
			AddHeaders:         v.GetBool("ADD_RATELIMIT_HEADERS"),
			KeyHeader:          strings.TrimSpace(v.GetString("RATE_KEY_HEADER")),
			ConcurrencyMax:     v.GetInt("CONCURRENCY_MAX"),
			ConcurrencyTimeout: v.GetDuration("CONCURRENCY_TIMEOUT"),
			FormWindow:         v.GetDuration("FORM_WINDOW"),
			FormWindowMax:      v.GetInt("FORM_WINDOW_MAX"),
			StatsEnabled:       v.GetBool("RATE_STATS_ENABLED"),
			StatsPrefix:        v.GetString("RATE_STATS_PREFIX"),
			StatsTTL:           v.GetDuration("RATE_STATS_TTL"),
			StatsBucket:        v.GetString("RATE_STATS_BUCKET"),
			StatsTrackKeys:     v.GetBool("RATE_STATS_TRACK_KEYS"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		OpenAI: OpenAIConfig{
			APIKey:        v.GetString("OPENAI_API_KEY"),
			BaseURL:       strings.TrimRight(v.GetString("OPENAI_BASE_URL"), "/"),
			ChatModel:     v.GetString("OPENAI_CHAT_MODEL"),
			TTSModel:      v.GetString("OPENAI_TTS_MODEL"),
			TTSVoice:      v.GetString("OPENAI_TTS_VOICE"),
			RealtimeModel: v.GetString("OPENAI_REALTIME_MODEL"),
		},
		OCRURL: strings.TrimRight(v.GetString("OCR_SERVICE_URL"), "/"),
		Ollama: OllamaConfig{
			URL:   strings.TrimRight(v.GetString("OLLAMA_URL"), "/"),
			Model: v.GetString("OLLAMA_MODEL"),
		},
		RealtimeURL: v.GetString("REALTIME_WS_URL"),
		LiveKit: LiveKitConfig{
			APIKey:    v.GetString("LIVEKIT_API_KEY"),
			APISecret: v.GetString("LIVEKIT_API_SECRET"),
			URL:       v.GetString("LIVEKIT_URL"),
			TokenTTL:  v.GetDuration("LIVEKIT_TOKEN_TTL"),
		},
		Mail: MailConfig{
			ResendAPIKey: v.GetString("RESEND_API_KEY"),
			From:         v.GetString("MAIL_FROM"),
			To:           v.GetString("MAIL_TO"),
		},
		Stripe: StripeConfig{
			SecretKey:     v.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret: v.GetString("STRIPE_WEBHOOK_SECRET"),
			SuccessURL:    v.GetString("STRIPE_SUCCESS_URL"),
			CancelURL:     v.GetString("STRIPE_CANCEL_URL"),
		},
		Forms: FormsConfig{
			Store:                 FormStore(strings.ToLower(strings.TrimSpace(v.GetString("FORM_STORE")))),
			CloudflareAPIToken:    v.GetString("CF_API_TOKEN"),
			CloudflareAccountID:   v.GetString("CF_ACCOUNT_ID"),
			CloudflareNamespaceID: v.GetString("CF_KV_NAMESPACE_ID"),
			CosmosEndpoint:        v.GetString("COSMOS_ENDPOINT"),
			CosmosKey:             v.GetString("COSMOS_KEY"),
			CosmosDatabase:        v.GetString("COSMOS_DATABASE"),
			CosmosContainer:       v.GetString("COSMOS_CONTAINER"),
		},
		Session: SessionConfig{
			Secret:            v.GetString("SESSION_SECRET"),
			TTL:               v.GetDuration("SESSION_TTL"),
			CookieName:        v.GetString("SESSION_COOKIE"),
			SecureCookie:      v.GetBool("SESSION_SECURE"),
			AdminEmail:        strings.ToLower(strings.TrimSpace(v.GetString("ADMIN_EMAIL"))),
			AdminPasswordHash: v.GetString("ADMIN_PASSWORD_HASH"),
		},
	}
}

// Validate devolve todos os problemas encontrados de uma vez.
func (c Config) Validate() error {
	var errs []error
	if c.Rate.RPS <= 0 {
		errs = append(errs, errors.New("RATE_RPS must be > 0"))
	}
	if c.Rate.Burst <= 0 {
		errs = append(errs, errors.New("RATE_BURST must be > 0"))
	}
	if c.Rate.ConcurrencyMax < 0 {
		errs = append(errs, errors.New("CONCURRENCY_MAX must be >= 0"))
	}
	if c.Rate.FormWindowMax <= 0 {
		errs = append(errs, errors.New("FORM_WINDOW_MAX must be > 0"))
	}
	if c.Rate.FormWindow <= 0 {
		errs = append(errs, errors.New("FORM_WINDOW must be > 0"))
	}
	if c.Rate.StatsEnabled && !c.Redis.Enabled() {
		errs = append(errs, errors.New("REDIS_ADDR is required when RATE_STATS_ENABLED=true"))
	}

	switch c.Forms.Store {
	case FormStoreMemory:
	case FormStoreRedis:
		if !c.Redis.Enabled() {
			errs = append(errs, errors.New("REDIS_ADDR is required when FORM_STORE=redis"))
		}
	case FormStoreKV:
		if c.Forms.CloudflareAPIToken == "" || c.Forms.CloudflareAccountID == "" || c.Forms.CloudflareNamespaceID == "" {
			errs = append(errs, errors.New("CF_API_TOKEN, CF_ACCOUNT_ID and CF_KV_NAMESPACE_ID are required when FORM_STORE=kv"))
		}
	case FormStoreCosmos:
		if c.Forms.CosmosEndpoint == "" {
			errs = append(errs, errors.New("COSMOS_ENDPOINT is required when FORM_STORE=cosmos"))
		}
	default:
		errs = append(errs, fmt.Errorf("FORM_STORE %q is not one of memory, redis, kv, cosmos", c.Forms.Store))
	}

	if c.Session.AuthEnabled() {
		if len(c.Session.Secret) < 32 {
			errs = append(errs, errors.New("SESSION_SECRET must be at least 32 bytes when ADMIN_EMAIL is set"))
		}
		if c.Session.AdminPasswordHash == "" {
			errs = append(errs, errors.New("ADMIN_PASSWORD_HASH is required when ADMIN_EMAIL is set"))
		}
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
