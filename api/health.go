package api

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	services := map[string]bool{
		"openai":   s.Chat != nil,
		"ocr":      s.OCR != nil,
		"gpt-oss":  s.OSS != nil,
		"realtime": s.RealtimeWS != nil,
		"livekit":  s.LiveKit != nil,
		"email":    s.Mail != nil,
		"billing":  s.Billing != nil,
		"forms":    s.Forms != nil,
		"auth":     s.authConfigured(),
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"time":     s.now().UTC().Format(time.RFC3339),
		"services": services,
	})
}

// rateStats devolve os totais de decisão por escopo ("api", "form").
func (s *server) rateStats(w http.ResponseWriter, r *http.Request) {
	if s.Rate.StatsReader == nil {
		notConfigured(w, "rate limit stats")
		return
	}
	totals, err := s.Rate.StatsReader.Totals(r.Context())
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("read rate limit stats")
		writeError(w, http.StatusServiceUnavailable, "stats unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scopes": totals})
}
