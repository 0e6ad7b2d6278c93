// Package realtime faz o relay WebSocket entre o browser e a API realtime
// da OpenAI, mantendo a chave no servidor.
package realtime

import (
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const writeWait = 10 * time.Second

// Relay é um http.Handler: abre a conexão com o upstream, faz o upgrade do
// cliente e copia frames nos dois sentidos até um dos lados fechar.
type Relay struct {
	URL      string
	APIKey   string
	Model    string
	Dialer   *websocket.Dialer
	Upgrader websocket.Upgrader
}

func (rl *Relay) upstreamURL(r *http.Request) (string, error) {
	u, err := url.Parse(rl.URL)
	if err != nil {
		return "", err
	}
	model := r.URL.Query().Get("model")
	if model == "" {
		model = rl.Model
	}
	q := u.Query()
	if model != "" {
		q.Set("model", model)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := zerolog.Ctx(r.Context())

	target, err := rl.upstreamURL(r)
	if err != nil {
		log.Error().Err(err).Msg("realtime: bad upstream url")
		writeError(w, http.StatusInternalServerError, "realtime relay misconfigured")
		return
	}

	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+rl.APIKey)
	hdr.Set("OpenAI-Beta", "realtime=v1")

	dialer := rl.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	up, resp, err := dialer.DialContext(r.Context(), target, hdr)
	if err != nil {
		ev := log.Warn().Err(err)
		if resp != nil {
			ev = ev.Int("upstream_status", resp.StatusCode)
		}
		ev.Msg("realtime: upstream dial failed")
		writeError(w, http.StatusBadGateway, "realtime upstream unavailable")
		return
	}

	client, err := rl.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade já respondeu ao cliente
		_ = up.Close()
		log.Debug().Err(err).Msg("realtime: client upgrade failed")
		return
	}

	started := time.Now()
	code := pipe(client, up)
	log.Info().Int("close_code", code).Dur("duration", time.Since(started)).Msg("realtime: session closed")
}

// pipe copia nos dois sentidos e devolve o código de fechamento observado.
func pipe(a, b *websocket.Conn) int {
	var once sync.Once
	codeCh := make(chan int, 2)
	closeBoth := func() {
		once.Do(func() {
			_ = a.Close()
			_ = b.Close()
		})
	}

	go func() { codeCh <- copyFrames(b, a); closeBoth() }()
	go func() { codeCh <- copyFrames(a, b); closeBoth() }()

	code := <-codeCh
	<-codeCh
	return code
}

// copyFrames lê de src e escreve em dst. Ao terminar, repassa o close
// frame de src para dst.
func copyFrames(dst, src *websocket.Conn) int {
	for {
		mt, data, err := src.ReadMessage()
		if err != nil {
			code, text := websocket.CloseNormalClosure, ""
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				code, text = ce.Code, ce.Text
			} else {
				code = websocket.CloseGoingAway
			}
			if code == websocket.CloseNoStatusReceived || code == websocket.CloseAbnormalClosure {
				code = websocket.CloseGoingAway
			}
			msg := websocket.FormatCloseMessage(code, text)
			_ = dst.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return code
		}
		_ = dst.SetWriteDeadline(time.Now().Add(writeWait))
		if err := dst.WriteMessage(mt, data); err != nil {
			return websocket.CloseGoingAway
		}
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
