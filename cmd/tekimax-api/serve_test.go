package main

import (
	"bytes"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tekimax/tekimax-api/api"
	"github.com/tekimax/tekimax-api/config"
	"github.com/tekimax/tekimax-api/forms/store"
	"github.com/tekimax/tekimax-api/middleware/ratelimit/infra"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDeps_OnlyConfiguredUpstreams(t *testing.T) {
	cfg := config.Config{
		Rate: config.RateConfig{RPS: 1, Burst: 1, FormWindow: 60e9, FormWindowMax: 5},
		OpenAI: config.OpenAIConfig{
			APIKey:  "sk-test",
			BaseURL: "https://api.openai.com/v1",
		},
		RealtimeURL: "wss://api.openai.com/v1/realtime",
		Ollama:      config.OllamaConfig{URL: "http://localhost:11434", Model: "gpt-oss:20b"},
		Forms:       config.FormsConfig{Store: config.FormStoreMemory},
	}

	d, err := buildDeps(cfg, zerolog.Nop(), prometheus.NewRegistry(), nil)
	require.NoError(t, err)

	assert.NotNil(t, d.Chat)
	assert.NotNil(t, d.RealtimeWS)
	assert.NotNil(t, d.OSS)
	assert.Nil(t, d.OCR)
	assert.Nil(t, d.LiveKit)
	assert.Nil(t, d.Mail)
	assert.Nil(t, d.Billing)
	assert.Nil(t, d.Sessions)
	assert.IsType(t, &store.Memory{}, d.Forms)
	assert.IsType(t, &infra.MemoryWindow{}, d.FormWindow)
	assert.IsType(t, &infra.MemoryStatsStore{}, d.Rate.StatsReader)
}

func TestBuildDeps_RedisBackedLimits(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.Config{
		Rate: config.RateConfig{
			RPS: 1, Burst: 1, FormWindow: 60e9, FormWindowMax: 5,
			StatsEnabled: true, StatsPrefix: "ratelimit:stats", StatsBucket: "none",
		},
		Forms: config.FormsConfig{Store: config.FormStoreRedis},
	}
	d, err := buildDeps(cfg, zerolog.Nop(), prometheus.NewRegistry(), rdb)
	require.NoError(t, err)

	assert.IsType(t, &infra.RedisWindow{}, d.FormWindow)
	assert.IsType(t, &infra.RedisStatsStore{}, d.Rate.StatsReader)
	assert.IsType(t, &store.Redis{}, d.Forms)
}

func TestBuildDeps_KeyHeaderAndTrackedKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.Config{
		Rate: config.RateConfig{
			RPS:            1,
			Burst:          1,
			FormWindow:     60e9,
			FormWindowMax:  5,
			KeyHeader:      "X-API-Key",
			StatsEnabled:   true,
			StatsPrefix:    "ratelimit:stats",
			StatsBucket:    "none",
			StatsTrackKeys: true,
		},
		Forms: config.FormsConfig{Store: config.FormStoreMemory},
	}
	d, err := buildDeps(cfg, zerolog.Nop(), prometheus.NewRegistry(), rdb)
	require.NoError(t, err)
	assert.Equal(t, "X-API-Key", d.Rate.KeyHeader)
	d.Rate.Store = infra.NewStore(cfg.Rate.RPS, cfg.Rate.Burst)

	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("X-API-Key", "client-a")
	api.NewRouter(d).ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, mr.Exists("ratelimit:stats:api:key:client-a"), "keys: %v", mr.Keys())
}

func TestBuildDeps_BadOCRURL(t *testing.T) {
	cfg := config.Config{
		Rate:   config.RateConfig{RPS: 1, Burst: 1, FormWindow: 60e9, FormWindowMax: 5},
		OCRURL: "ocr-without-scheme",
		Forms:  config.FormsConfig{Store: config.FormStoreMemory},
	}
	_, err := buildDeps(cfg, zerolog.Nop(), prometheus.NewRegistry(), nil)
	assert.Error(t, err)
}

func TestCheckOrigin(t *testing.T) {
	check := checkOrigin([]string{"https://tekimax.com"})

	r := httptest.NewRequest("GET", "/api/realtime/ws", nil)
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://tekimax.com")
	assert.True(t, check(r))

	r.Header.Set("Origin", "https://evil.example")
	assert.False(t, check(r))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "tekimax-api dev"))
}
