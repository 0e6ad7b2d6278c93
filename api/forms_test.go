package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tekimax/tekimax-api/forms"
	"github.com/tekimax/tekimax-api/forms/store"
	"github.com/tekimax/tekimax-api/middleware/ratelimit/infra"
	"github.com/tekimax/tekimax-api/middleware/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type brokenStore struct{}

func (brokenStore) Save(context.Context, forms.Submission) error {
	return fmt.Errorf("%w: timeout", forms.ErrStoreUnavailable)
}

func (brokenStore) List(context.Context, forms.Filter) ([]forms.Submission, error) {
	return nil, fmt.Errorf("%w: timeout", forms.ErrStoreUnavailable)
}

var contactForm = map[string]any{
	"type":    "contact",
	"name":    "Ada Lovelace",
	"email":   "ada@example.com",
	"company": "Analytical Engines",
	"message": "Gostaria de uma demonstração.",
}

func TestSubmitFormKV(t *testing.T) {
	mem := store.NewMemory(time.Hour)
	d := baseDeps()
	d.Forms = mem
	h := NewRouter(d)

	rec := do(t, h, http.MethodPost, "/api/submit-form-kv", contactForm, "User-Agent", "jest/1.0")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	saved, err := mem.List(context.Background(), forms.Filter{})
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, id, saved[0].ID)
	assert.Equal(t, "192.0.2.1", saved[0].IP)
	assert.Equal(t, "jest/1.0", saved[0].UserAgent)
	assert.True(t, saved[0].CreatedAt.Equal(fixedNow))
}

func TestSubmitFormKV_ValidationAndStoreErrors(t *testing.T) {
	d := baseDeps()
	d.Forms = brokenStore{}
	h := NewRouter(d)

	rec := do(t, h, http.MethodPost, "/api/submit-form-kv", map[string]any{"type": "contact", "email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "validation failed", body["error"])
	fields := body["fields"].(map[string]any)
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "message")

	rec = do(t, h, http.MethodPost, "/api/submit-form-kv", contactForm)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, NewRouter(baseDeps()), http.MethodPost, "/api/submit-form-kv", contactForm)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "form storage is not configured", decodeBody(t, rec)["error"])
}

func TestSubmitFormSimple_FixedWindow(t *testing.T) {
	now := fixedNow
	d := baseDeps()
	d.SimpleForms = store.NewMemory(time.Hour)
	d.FormWindow = infra.NewMemoryWindow(5, 15*time.Minute, infra.WithWindowClock(func() time.Time { return now }))
	h := NewRouter(d)

	for i := 0; i < 5; i++ {
		rec := do(t, h, http.MethodPost, "/api/submit-form-simple", contactForm)
		require.Equal(t, http.StatusOK, rec.Code, "submission %d: %s", i+1, rec.Body.String())
		body := decodeBody(t, rec)
		assert.Equal(t, true, body["success"])
		assert.EqualValues(t, 4-i, body["remaining"])
		assert.Equal(t, "5", rec.Header().Get("X-RateLimit-Limit"))
	}

	rec := do(t, h, http.MethodPost, "/api/submit-form-simple", contactForm)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "900", rec.Header().Get("Retry-After"))
	assert.NotEmpty(t, decodeBody(t, rec)["error"])

	// outro IP tem a própria janela
	req := httptest.NewRequest(http.MethodPost, "/api/submit-form-simple", strings.NewReader(`{"name":"Bob","email":"bob@example.com","message":"oi"}`))
	req.RemoteAddr = "198.51.100.7:4321"
	other := httptest.NewRecorder()
	h.ServeHTTP(other, req)
	assert.Equal(t, http.StatusOK, other.Code, other.Body.String())

	now = now.Add(15 * time.Minute)
	rec = do(t, h, http.MethodPost, "/api/submit-form-simple", contactForm)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func authDeps(t *testing.T) Deps {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	d := baseDeps()
	d.Sessions = &session.Manager{
		Secret: []byte("0123456789abcdef0123456789abcdef"),
		TTL:    time.Hour,
		Now:    func() time.Time { return fixedNow },
	}
	d.Admin = Admin{Email: "ops@tekimax.com", PasswordHash: string(hash)}
	return d
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "tekimax_session" {
			return c.Name + "=" + c.Value
		}
	}
	t.Fatalf("no session cookie in %v", rec.Header())
	return ""
}

func TestAuth_LoginMeLogout(t *testing.T) {
	h := NewRouter(authDeps(t))

	rec := do(t, h, http.MethodPost, "/api/auth/login", map[string]string{"email": "ops@tekimax.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	rec = do(t, h, http.MethodPost, "/api/auth/login", map[string]string{"email": "eve@tekimax.com", "password": "correct horse"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/auth/login", map[string]string{"email": "OPS@tekimax.com", "password": "correct horse"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	cookie := sessionCookie(t, rec)
	user := decodeBody(t, rec)["user"].(map[string]any)
	assert.Equal(t, "ops@tekimax.com", user["email"])

	rec = do(t, h, http.MethodGet, "/api/auth/me", nil, "Cookie", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", decodeBody(t, rec)["user"].(map[string]any)["role"])

	rec = do(t, h, http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeBody(t, rec)["error"])

	rec = do(t, h, http.MethodPost, "/api/auth/logout", nil, "Cookie", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Less(t, cleared[0].MaxAge, 0)
}

func TestSubmissions_RequiresSession(t *testing.T) {
	mem := store.NewMemory(time.Hour)
	require.NoError(t, mem.Save(context.Background(), forms.Submission{ID: "s1", Type: forms.TypeNewsletter, Name: "A", Email: "a@x.io", CreatedAt: fixedNow}))
	require.NoError(t, mem.Save(context.Background(), forms.Submission{ID: "s2", Type: forms.TypeContact, Name: "B", Email: "b@x.io", CreatedAt: fixedNow.Add(time.Minute)}))

	d := authDeps(t)
	d.Forms = mem
	h := NewRouter(d)

	rec := do(t, h, http.MethodGet, "/api/submissions", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	login := do(t, h, http.MethodPost, "/api/auth/login", map[string]string{"email": "ops@tekimax.com", "password": "correct horse"})
	require.Equal(t, http.StatusOK, login.Code)
	cookie := sessionCookie(t, login)

	rec = do(t, h, http.MethodGet, "/api/submissions", nil, "Cookie", cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	subs := decodeBody(t, rec)["submissions"].([]any)
	require.Len(t, subs, 2)
	assert.Equal(t, "s2", subs[0].(map[string]any)["id"])

	rec = do(t, h, http.MethodGet, "/api/submissions?type=newsletter&limit=10", nil, "Cookie", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	subs = decodeBody(t, rec)["submissions"].([]any)
	require.Len(t, subs, 1)
	assert.Equal(t, "s1", subs[0].(map[string]any)["id"])

	rec = do(t, h, http.MethodGet, "/api/submissions?limit=0", nil, "Cookie", cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/submissions?type=spam", nil, "Cookie", cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmissions_SimpleStoreIsListable(t *testing.T) {
	d := authDeps(t)
	d.Forms = store.NewMemory(time.Hour)
	d.SimpleForms = store.NewMemory(time.Hour)
	h := NewRouter(d)

	rec := do(t, h, http.MethodPost, "/api/submit-form-simple", contactForm)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	id := decodeBody(t, rec)["id"]

	rec = do(t, h, http.MethodGet, "/api/submissions?store=simple", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	login := do(t, h, http.MethodPost, "/api/auth/login", map[string]string{"email": "ops@tekimax.com", "password": "correct horse"})
	require.Equal(t, http.StatusOK, login.Code)
	cookie := sessionCookie(t, login)

	rec = do(t, h, http.MethodGet, "/api/submissions?store=simple", nil, "Cookie", cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	subs := decodeBody(t, rec)["submissions"].([]any)
	require.Len(t, subs, 1)
	assert.Equal(t, id, subs[0].(map[string]any)["id"])

	// o durável não vê o simples
	rec = do(t, h, http.MethodGet, "/api/submissions", nil, "Cookie", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody(t, rec)["submissions"])

	rec = do(t, h, http.MethodGet, "/api/submissions?store=redis", nil, "Cookie", cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["fields"], "store")
}

func TestRateStats(t *testing.T) {
	mem := infra.NewMemoryStatsStore()
	d := authDeps(t)
	d.Rate.Stats = mem
	d.Rate.StatsReader = mem
	h := NewRouter(d)

	for i := 0; i < 6; i++ {
		do(t, h, http.MethodPost, "/api/submit-form-simple", contactForm)
	}

	rec := do(t, h, http.MethodGet, "/api/ratelimit/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	login := do(t, h, http.MethodPost, "/api/auth/login", map[string]string{"email": "ops@tekimax.com", "password": "correct horse"})
	require.Equal(t, http.StatusOK, login.Code)

	rec = do(t, h, http.MethodGet, "/api/ratelimit/stats", nil, "Cookie", sessionCookie(t, login))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	form := decodeBody(t, rec)["scopes"].(map[string]any)["form"].(map[string]any)
	assert.EqualValues(t, 5, form["allowed"])
	assert.EqualValues(t, 1, form["denied"])
}

func TestRateStats_NotConfigured(t *testing.T) {
	d := authDeps(t)
	h := NewRouter(d)
	login := do(t, h, http.MethodPost, "/api/auth/login", map[string]string{"email": "ops@tekimax.com", "password": "correct horse"})
	require.Equal(t, http.StatusOK, login.Code)

	rec := do(t, h, http.MethodGet, "/api/ratelimit/stats", nil, "Cookie", sessionCookie(t, login))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
