package observability

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const RequestIDHeader = "X-Request-ID"

// Logger anexa ao contexto um logger filho com o request ID e registra uma
// linha por requisição ao final.
func Logger(base zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
			if reqID == "" || len(reqID) > 128 {
				reqID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, reqID)

			log := base.With().Str("request_id", reqID).Logger()
			r = r.WithContext(log.WithContext(r.Context()))

			sw := newStatusWriter(w)
			next.ServeHTTP(sw, r)

			ev := log.Info()
			switch {
			case sw.status >= 500:
				ev = log.Error()
			case sw.status >= 400:
				ev = log.Warn()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", sw.status).
				Int("bytes", sw.bytes).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}
