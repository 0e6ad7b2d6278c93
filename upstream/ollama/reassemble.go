package ollama

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"
)

var ErrNoMessages = errors.New("ollama: stream has no valid objects")

const maxLine = 1 << 20

// Reassemble lê NDJSON de /api/chat e devolve um único objeto: o último com
// done=true (ou, se nenhum tiver, o último válido) com message.content
// trocado pela concatenação de todos os fragmentos, na ordem recebida.
// Linhas vazias ou que não são objetos JSON são ignoradas.
func Reassemble(r io.Reader) (json.RawMessage, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)

	var (
		content   strings.Builder
		final     string
		finalDone bool
	)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || !gjson.Valid(line) {
			continue
		}
		obj := gjson.Parse(line)
		if !obj.IsObject() {
			continue
		}

		content.WriteString(obj.Get("message.content").String())

		done := obj.Get("done").Bool()
		if done || !finalDone {
			final = line
			finalDone = done
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	if final == "" {
		return nil, ErrNoMessages
	}
	return withContent(final, content.String())
}

func withContent(obj, content string) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return nil, err
	}

	msg := map[string]json.RawMessage{}
	if raw, ok := fields["message"]; ok {
		// message pode vir null ou com outro formato
		_ = json.Unmarshal(raw, &msg)
		if msg == nil {
			msg = map[string]json.RawMessage{}
		}
	}
	if _, ok := msg["role"]; !ok {
		msg["role"] = json.RawMessage(`"assistant"`)
	}
	c, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	msg["content"] = c

	if fields["message"], err = json.Marshal(msg); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}
