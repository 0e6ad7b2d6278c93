package ollama

import (
	"errors"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func TestReassemble_ConcatenatesInOrder(t *testing.T) {
	stream := strings.Join([]string{
		`{"model":"gpt-oss:20b","message":{"role":"assistant","content":"Olá"},"done":false}`,
		`{"model":"gpt-oss:20b","message":{"role":"assistant","content":", "},"done":false}`,
		`{"model":"gpt-oss:20b","message":{"role":"assistant","content":"mundo"},"done":false}`,
		`{"model":"gpt-oss:20b","message":{"role":"assistant","content":""},"done":true,"total_duration":42}`,
	}, "\n")

	out, err := Reassemble(strings.NewReader(stream))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got := gjson.ParseBytes(out)
	if c := got.Get("message.content").String(); c != "Olá, mundo" {
		t.Fatalf("content = %q", c)
	}
	if !got.Get("done").Bool() || got.Get("total_duration").Int() != 42 {
		t.Fatalf("final object not preserved: %s", out)
	}
	if got.Get("message.role").String() != "assistant" {
		t.Fatalf("role lost: %s", out)
	}
}

func TestReassemble_SkipsBlankAndInvalidLines(t *testing.T) {
	stream := "\n" +
		`{"message":{"content":"a"},"done":false}` + "\n" +
		"   \n" +
		"not json\n" +
		`[1,2]` + "\n" +
		`{"message":{"content":"b"},"done":true}` + "\n\n"

	out, err := Reassemble(strings.NewReader(stream))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if c := gjson.GetBytes(out, "message.content").String(); c != "ab" {
		t.Fatalf("content = %q", c)
	}
}

func TestReassemble_UsesLastDoneObject(t *testing.T) {
	stream := `{"id":1,"message":{"content":"x"},"done":true}
{"id":2,"message":{"content":"y"},"done":false}
{"id":3,"message":{"content":"z"},"done":true}
{"id":4,"message":{"content":"w"},"done":false}`

	out, err := Reassemble(strings.NewReader(stream))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got := gjson.ParseBytes(out)
	if got.Get("id").Int() != 3 {
		t.Fatalf("expected last done object, got %s", out)
	}
	if c := got.Get("message.content").String(); c != "xyzw" {
		t.Fatalf("content = %q", c)
	}
}

func TestReassemble_WithoutDoneUsesLastValid(t *testing.T) {
	stream := `{"id":1,"message":{"content":"par"},"done":false}
{"id":2,"message":{"content":"cial"},"done":false}
{broken`

	out, err := Reassemble(strings.NewReader(stream))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got := gjson.ParseBytes(out)
	if got.Get("id").Int() != 2 || got.Get("message.content").String() != "parcial" {
		t.Fatalf("got %s", out)
	}
}

func TestReassemble_AddsMessageWhenMissing(t *testing.T) {
	stream := `{"message":{"content":"oi"},"done":false}
{"done":true,"done_reason":"stop"}`

	out, err := Reassemble(strings.NewReader(stream))
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	got := gjson.ParseBytes(out)
	if got.Get("message.content").String() != "oi" || got.Get("message.role").String() != "assistant" {
		t.Fatalf("got %s", out)
	}
	if got.Get("done_reason").String() != "stop" {
		t.Fatalf("got %s", out)
	}
}

func TestReassemble_NoValidObjects(t *testing.T) {
	for _, stream := range []string{"", "\n\n", "garbage\n{nope"} {
		_, err := Reassemble(strings.NewReader(stream))
		if !errors.Is(err, ErrNoMessages) {
			t.Fatalf("stream %q: err = %v", stream, err)
		}
	}
}
