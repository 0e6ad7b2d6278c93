// Package ollama fala com uma API compatível com Ollama (/api/tags e
// /api/chat) e remonta respostas em streaming num único objeto.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tekimax/tekimax-api/upstream"
)

const service = "ollama"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest é o corpo enviado ao /api/chat. Stream é sempre true.
type ChatRequest struct {
	Model    string          `json:"model"`
	Messages []Message       `json:"messages"`
	Options  json.RawMessage `json:"options,omitempty"`
}

type Client struct {
	BaseURL      string
	DefaultModel string
	HTTP         *http.Client
}

func New(baseURL, model string) *Client {
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		DefaultModel: model,
		// respostas longas em streaming
		HTTP: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Tags devolve o JSON de /api/tags como veio.
func (c *Client) Tags(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, upstream.Wrap(service, err)
	}
	return raw, nil
}

// Chat envia a conversa com stream=true e remonta as linhas NDJSON.
func (c *Client) Chat(ctx context.Context, in ChatRequest) (json.RawMessage, error) {
	if in.Model == "" {
		in.Model = c.DefaultModel
	}
	body, err := json.Marshal(struct {
		ChatRequest
		Stream bool `json:"stream"`
	}{in, true})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	out, err := Reassemble(resp.Body)
	if err != nil {
		return nil, &upstream.Error{Service: service, Message: "invalid stream", Err: err}
	}
	return out, nil
}

// do executa req e transforma status não-2xx em *upstream.Error.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, upstream.Wrap(service, err)
	}
	if resp.StatusCode/100 != 2 {
		defer func() { _ = resp.Body.Close() }()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, &upstream.Error{Service: service, Status: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
	}
	return resp, nil
}

// Ollama responde {"error":"..."}.
func errorMessage(raw []byte, fallback string) string {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		return body.Error
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		return s
	}
	return fallback
}
