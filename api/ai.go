package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/tekimax/tekimax-api/upstream/openai"

	"github.com/rs/zerolog"
)

const maxAudioBytes = 25 << 20

type chatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required,max=32000"`
}

type chatBody struct {
	Messages    []chatMessage `json:"messages" validate:"required,min=1,max=100,dive"`
	Model       string        `json:"model" validate:"max=100"`
	Temperature *float32      `json:"temperature" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int           `json:"max_tokens" validate:"omitempty,min=1,max=16384"`
}

func (s *server) chat(w http.ResponseWriter, r *http.Request) {
	if s.Chat == nil {
		notConfigured(w, "openai")
		return
	}
	var body chatBody
	if !decode(w, r, &body) {
		return
	}
	if fields := fieldErrors(validate.Struct(body)); fields != nil {
		writeValidation(w, fields)
		return
	}

	msgs := make([]openai.Message, len(body.Messages))
	for i, m := range body.Messages {
		msgs[i] = openai.Message{Role: m.Role, Content: m.Content}
	}
	res, err := s.Chat.Chat(r.Context(), openai.ChatRequest{
		Messages:    msgs,
		Model:       body.Model,
		Temperature: body.Temperature,
		MaxTokens:   body.MaxTokens,
	})
	if err != nil {
		upstreamFailed(w, r, "openai", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *server) transcribe(w http.ResponseWriter, r *http.Request) {
	if s.Transcriber == nil {
		notConfigured(w, "openai")
		return
	}

	// folga para os outros campos e o envelope multipart
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes+(1<<20))
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "audio file exceeds 25 MiB")
			return
		}
		writeError(w, http.StatusBadRequest, "multipart form with a file field is required")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, hdr, err := r.FormFile("file")
	if err != nil {
		writeValidation(w, map[string]string{"file": "is required"})
		return
	}
	defer func() { _ = file.Close() }()
	if hdr.Size > maxAudioBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "audio file exceeds 25 MiB")
		return
	}

	text, err := s.Transcriber.Transcribe(r.Context(), openai.TranscribeRequest{
		Filename: hdr.Filename,
		Audio:    file,
		Language: r.FormValue("language"),
		Prompt:   r.FormValue("prompt"),
	})
	if err != nil {
		upstreamFailed(w, r, "openai", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

type pronounceBody struct {
	Text  string  `json:"text" validate:"required,max=4096"`
	Voice string  `json:"voice" validate:"omitempty,max=32"`
	Speed float64 `json:"speed" validate:"omitempty,gte=0.25,lte=4"`
}

func (s *server) pronounce(w http.ResponseWriter, r *http.Request) {
	if s.Speaker == nil {
		notConfigured(w, "openai")
		return
	}
	var body pronounceBody
	if !decode(w, r, &body) {
		return
	}
	fields := fieldErrors(validate.Struct(body))
	if body.Voice != "" && !openai.Voices[body.Voice] {
		if fields == nil {
			fields = map[string]string{}
		}
		fields["voice"] = "is not a supported voice"
	}
	if fields != nil {
		writeValidation(w, fields)
		return
	}

	audio, err := s.Speaker.Speak(r.Context(), openai.SpeechRequest{Text: body.Text, Voice: body.Voice, Speed: body.Speed})
	if err != nil {
		upstreamFailed(w, r, "openai", err)
		return
	}
	defer func() { _ = audio.Close() }()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, audio); err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("pronounce: copy audio")
	}
}

type realtimeBody struct {
	Model string `json:"model" validate:"max=100"`
	Voice string `json:"voice" validate:"max=32"`
}

func (s *server) realtimeSession(w http.ResponseWriter, r *http.Request) {
	if s.Realtime == nil {
		notConfigured(w, "openai")
		return
	}
	var body realtimeBody
	// corpo opcional
	if err := decodeJSON(w, r, &body, defaultMaxBody); err != nil && err != errEmptyBody {
		var re *requestError
		if errors.As(err, &re) {
			writeError(w, re.status, re.msg)
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return
	}
	if fields := fieldErrors(validate.Struct(body)); fields != nil {
		writeValidation(w, fields)
		return
	}

	raw, err := s.Realtime.RealtimeSession(r.Context(), body.Model, body.Voice)
	if err != nil {
		upstreamFailed(w, r, "openai", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *server) realtimeWS(w http.ResponseWriter, r *http.Request) {
	if s.RealtimeWS == nil {
		notConfigured(w, "realtime")
		return
	}
	s.RealtimeWS.ServeHTTP(w, r)
}
