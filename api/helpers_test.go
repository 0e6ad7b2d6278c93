package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tekimax/tekimax-api/billing"
	"github.com/tekimax/tekimax-api/mailer"
	"github.com/tekimax/tekimax-api/upstream/livekit"
	"github.com/tekimax/tekimax-api/upstream/openai"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func baseDeps() Deps {
	return Deps{
		Logger:  zerolog.Nop(),
		Origins: []string{"http://localhost:3000"},
		Now:     func() time.Time { return fixedNow },
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = strings.NewReader(b)
	case []byte:
		rdr = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m), "body: %s", rec.Body.String())
	return m
}

type fakeChat struct {
	got openai.ChatRequest
	res openai.ChatResult
	err error
}

func (f *fakeChat) Chat(_ context.Context, req openai.ChatRequest) (openai.ChatResult, error) {
	f.got = req
	return f.res, f.err
}

type fakeTranscriber struct {
	got   openai.TranscribeRequest
	audio []byte
}

func (f *fakeTranscriber) Transcribe(_ context.Context, req openai.TranscribeRequest) (string, error) {
	f.got = req
	f.audio, _ = io.ReadAll(req.Audio)
	return "olá mundo", nil
}

type fakeSpeaker struct{ got openai.SpeechRequest }

func (f *fakeSpeaker) Speak(_ context.Context, req openai.SpeechRequest) (io.ReadCloser, error) {
	f.got = req
	return io.NopCloser(strings.NewReader("ID3-fake-mp3")), nil
}

type fakeRealtime struct{ model, voice string }

func (f *fakeRealtime) RealtimeSession(_ context.Context, model, voice string) ([]byte, error) {
	f.model, f.voice = model, voice
	return []byte(`{"id":"sess_1","client_secret":{"value":"ek_1"}}`), nil
}

type fakeIssuer struct{ got livekit.Grant }

func (f *fakeIssuer) Issue(g livekit.Grant) (string, time.Time, error) {
	f.got = g
	return "lk-token", fixedNow.Add(time.Hour), nil
}

type fakeMailer struct {
	got mailer.Message
	err error
}

func (f *fakeMailer) Send(_ context.Context, m mailer.Message) (string, error) {
	f.got = m
	if f.err != nil {
		return "", f.err
	}
	return "em_1", nil
}

type fakeBilling struct {
	got       billing.CheckoutRequest
	verifyErr error
}

func (f *fakeBilling) Checkout(_ context.Context, in billing.CheckoutRequest) (billing.CheckoutSession, error) {
	f.got = in
	return billing.CheckoutSession{ID: "cs_1", URL: "https://checkout.stripe.com/c/pay/cs_1"}, nil
}

func (f *fakeBilling) VerifyWebhook(payload []byte, sig string) (billing.Event, error) {
	if f.verifyErr != nil {
		return billing.Event{}, f.verifyErr
	}
	return billing.Event{ID: "evt_1", Type: "checkout.session.completed"}, nil
}
