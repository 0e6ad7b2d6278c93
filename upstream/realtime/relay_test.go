package realtime

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsURL(httpURL string) string { return "ws" + strings.TrimPrefix(httpURL, "http") }

func TestRelay_PumpsBothWaysAndPropagatesClose(t *testing.T) {
	type seen struct {
		auth, beta, model string
	}
	seenCh := make(chan seen, 1)
	closedCh := make(chan int, 1)

	var up websocket.Upgrader
	upstreamSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenCh <- seen{r.Header.Get("Authorization"), r.Header.Get("OpenAI-Beta"), r.URL.Query().Get("model")}
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			mt, data, err := c.ReadMessage()
			if err != nil {
				if ce, ok := err.(*websocket.CloseError); ok {
					closedCh <- ce.Code
				}
				return
			}
			_ = c.WriteMessage(mt, []byte("echo:"+string(data)))
		}
	}))
	defer upstreamSrv.Close()

	relay := &Relay{
		URL:    wsURL(upstreamSrv.URL) + "/v1/realtime",
		APIKey: "sk-test",
		Model:  "gpt-4o-realtime-preview",
	}
	relaySrv := httptest.NewServer(relay)
	defer relaySrv.Close()

	client, _, err := websocket.DefaultDialer.Dial(wsURL(relaySrv.URL), nil)
	require.NoError(t, err)

	s := <-seenCh
	assert.Equal(t, "Bearer sk-test", s.auth)
	assert.Equal(t, "realtime=v1", s.beta)
	assert.Equal(t, "gpt-4o-realtime-preview", s.model)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"type":"session.update"}`)))
	_ = client.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.Equal(t, `echo:{"type":"session.update"}`, string(data))

	require.NoError(t, client.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second)))

	select {
	case code := <-closedCh:
		assert.Equal(t, websocket.CloseNormalClosure, code)
	case <-time.After(2 * time.Second):
		t.Fatal("upstream never saw the close")
	}
	_ = client.Close()
}

func TestRelay_UpstreamDownIs502(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := wsURL(dead.URL)
	dead.Close()

	relaySrv := httptest.NewServer(&Relay{URL: deadURL, APIKey: "k"})
	defer relaySrv.Close()

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(relaySrv.URL), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}
