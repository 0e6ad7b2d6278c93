// Package openai embrulha o SDK go-openai nas três chamadas usadas pela API
// (chat, transcrição, TTS) e cria sessões realtime via HTTP.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/tekimax/tekimax-api/config"
	"github.com/tekimax/tekimax-api/upstream"

	goopenai "github.com/sashabaranov/go-openai"
)

const service = "openai"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Messages    []Message
	Model       string
	Temperature *float32
	MaxTokens   int
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type ChatResult struct {
	Message Message `json:"message"`
	Model   string  `json:"model"`
	Usage   Usage   `json:"usage"`
}

type TranscribeRequest struct {
	Filename string
	Audio    io.Reader
	Language string
	Prompt   string
}

type SpeechRequest struct {
	Text  string
	Voice string
	Speed float64
}

// Voices aceitas pelo endpoint de TTS.
var Voices = map[string]bool{
	"alloy": true, "ash": true, "coral": true, "echo": true, "fable": true,
	"onyx": true, "nova": true, "sage": true, "shimmer": true,
}

type Client struct {
	api  *goopenai.Client
	http *http.Client

	apiKey        string
	baseURL       string
	chatModel     string
	ttsModel      string
	ttsVoice      string
	realtimeModel string
}

func New(cfg config.OpenAIConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	c := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		c.BaseURL = cfg.BaseURL
	}
	c.HTTPClient = httpClient

	return &Client{
		api:           goopenai.NewClientWithConfig(c),
		http:          httpClient,
		apiKey:        cfg.APIKey,
		baseURL:       c.BaseURL,
		chatModel:     cfg.ChatModel,
		ttsModel:      cfg.TTSModel,
		ttsVoice:      cfg.TTSVoice,
		realtimeModel: cfg.RealtimeModel,
	}
}

func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatResult, error) {
	model := req.Model
	if model == "" {
		model = c.chatModel
	}
	msgs := make([]goopenai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = goopenai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	creq := goopenai.ChatCompletionRequest{
		Model:     model,
		Messages:  msgs,
		MaxTokens: req.MaxTokens,
	}
	if req.Temperature != nil {
		creq.Temperature = *req.Temperature
		// omitempty no SDK descartaria o zero explícito
		if creq.Temperature == 0 {
			creq.Temperature = math.SmallestNonzeroFloat32
		}
	}

	resp, err := c.api.CreateChatCompletion(ctx, creq)
	if err != nil {
		return ChatResult{}, asUpstream(err)
	}
	if len(resp.Choices) == 0 {
		return ChatResult{}, &upstream.Error{Service: service, Message: "no choices in completion"}
	}
	choice := resp.Choices[0].Message
	return ChatResult{
		Message: Message{Role: choice.Role, Content: choice.Content},
		Model:   resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

func (c *Client) Transcribe(ctx context.Context, req TranscribeRequest) (string, error) {
	name := req.Filename
	if name == "" {
		name = "audio.webm"
	}
	resp, err := c.api.CreateTranscription(ctx, goopenai.AudioRequest{
		Model:    goopenai.Whisper1,
		FilePath: name,
		Reader:   req.Audio,
		Prompt:   req.Prompt,
		Language: req.Language,
		Format:   goopenai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", asUpstream(err)
	}
	return resp.Text, nil
}

// Speak devolve o corpo MP3; quem chama fecha.
func (c *Client) Speak(ctx context.Context, req SpeechRequest) (io.ReadCloser, error) {
	voice := req.Voice
	if voice == "" {
		voice = c.ttsVoice
	}
	resp, err := c.api.CreateSpeech(ctx, goopenai.CreateSpeechRequest{
		Model:          goopenai.SpeechModel(c.ttsModel),
		Input:          req.Text,
		Voice:          goopenai.SpeechVoice(voice),
		ResponseFormat: goopenai.SpeechResponseFormatMp3,
		Speed:          req.Speed,
	})
	if err != nil {
		return nil, asUpstream(err)
	}
	return resp, nil
}

// RealtimeSession cria uma sessão efêmera e devolve o JSON do upstream
// intacto (contém client_secret para o browser).
func (c *Client) RealtimeSession(ctx context.Context, model, voice string) ([]byte, error) {
	if model == "" {
		model = c.realtimeModel
	}
	if voice == "" {
		voice = c.ttsVoice
	}
	body, err := json.Marshal(map[string]string{"model": model, "voice": voice})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/realtime/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("OpenAI-Beta", "realtime=v1")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, upstream.Wrap(service, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, upstream.Wrap(service, err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, &upstream.Error{Service: service, Status: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
	}
	return raw, nil
}

func asUpstream(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return &upstream.Error{Service: service, Status: apiErr.HTTPStatusCode, Message: apiErr.Message, Err: err}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return &upstream.Error{Service: service, Status: reqErr.HTTPStatusCode, Err: err}
	}
	return upstream.Wrap(service, err)
}

// errorMessage extrai {"error":{"message":...}} ou usa fallback.
func errorMessage(raw []byte, fallback string) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	return fallback
}
