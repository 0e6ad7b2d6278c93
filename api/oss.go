package api

import (
	"encoding/json"
	"net/http"

	"github.com/tekimax/tekimax-api/upstream/ollama"
)

type ossMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant tool"`
	Content string `json:"content" validate:"max=32000"`
}

type ossBody struct {
	Messages []ossMessage    `json:"messages" validate:"required_without=Prompt,max=100,dive"`
	Prompt   string          `json:"prompt" validate:"required_without=Messages,max=32000"`
	Model    string          `json:"model" validate:"max=100"`
	Options  json.RawMessage `json:"options"`
}

func (s *server) ossTags(w http.ResponseWriter, r *http.Request) {
	if s.OSS == nil {
		notConfigured(w, "gpt-oss")
		return
	}
	raw, err := s.OSS.Tags(r.Context())
	if err != nil {
		upstreamFailed(w, r, "gpt-oss", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

// ossChat manda a conversa em streaming e devolve um único objeto remontado.
func (s *server) ossChat(w http.ResponseWriter, r *http.Request) {
	if s.OSS == nil {
		notConfigured(w, "gpt-oss")
		return
	}
	var body ossBody
	if !decode(w, r, &body) {
		return
	}
	if fields := fieldErrors(validate.Struct(body)); fields != nil {
		writeValidation(w, fields)
		return
	}

	req := ollama.ChatRequest{Model: body.Model, Options: body.Options}
	for _, m := range body.Messages {
		req.Messages = append(req.Messages, ollama.Message{Role: m.Role, Content: m.Content})
	}
	if body.Prompt != "" {
		req.Messages = append(req.Messages, ollama.Message{Role: "user", Content: body.Prompt})
	}

	out, err := s.OSS.Chat(r.Context(), req)
	if err != nil {
		upstreamFailed(w, r, "gpt-oss", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}
