package observability

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_SetsRequestIDAndLogsStatus(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	h := Logger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		zerolog.Ctx(r.Context()).Info().Msg("inside")
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))

	reqID := w.Header().Get(RequestIDHeader)
	require.NotEmpty(t, reqID)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var inside, summary map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &inside))
	require.NoError(t, json.Unmarshal(lines[1], &summary))
	assert.Equal(t, reqID, inside["request_id"])
	assert.Equal(t, float64(http.StatusTeapot), summary["status"])
	assert.Equal(t, "warn", summary["level"])
}

func TestLogger_KeepsIncomingRequestID(t *testing.T) {
	h := Logger(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestRecover_ReturnsJSON500(t *testing.T) {
	h := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, w.Body.String())
}

func TestCORS_AllowedOriginGetsCredentials(t *testing.T) {
	h := CORS(DefaultCORSConfig([]string{"https://tekimax.com"}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	r := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	r.Header.Set("Origin", "https://tekimax.com")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, "https://tekimax.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_Preflight(t *testing.T) {
	h := CORS(DefaultCORSConfig([]string{"https://tekimax.com"}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("preflight should not reach handler")
	}))

	allowed := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	allowed.Header.Set("Origin", "https://tekimax.com")
	allowed.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, allowed)
	assert.Equal(t, http.StatusNoContent, w.Code)

	denied := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	denied.Header.Set("Origin", "https://evil.example")
	denied.Header.Set("Access-Control-Request-Method", "POST")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, denied)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	r := chi.NewRouter()
	r.Use(m.Handler)
	r.Get("/api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	for _, id := range []string{"1", "2"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/items/"+id, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/items/{id}", "202")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inFlight))
}

func TestStatusWriter_HijackThroughNestedWrappers(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Errorf("%T is not a http.Hijacker", w)
			return
		}
		conn, buf, err := hj.Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		defer conn.Close()
		_, _ = buf.WriteString("HTTP/1.1 200 OK\r\nContent-Length: 2\r\nConnection: close\r\n\r\nok")
		_ = buf.Flush()
	})
	srv := httptest.NewServer(Logger(zerolog.Nop())(NewMetrics(prometheus.NewRegistry()).Handler(h)))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body bytes.Buffer
	_, _ = body.ReadFrom(resp.Body)
	assert.Equal(t, "ok", body.String())

	// sem suporte embaixo, erro em vez de panic
	_, _, err = newStatusWriter(newStatusWriter(httptest.NewRecorder())).Hijack()
	assert.Error(t, err)
}
