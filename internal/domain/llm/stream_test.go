package llm

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func frame(content string) string {
	return `data: {"choices":[{"delta":{"content":` + quote(content) + `}}]}` + "\n\n"
}

func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

func TestDecodeAccumulates(t *testing.T) {
	body := frame("A: hi\n") + frame("B: yo")

	var progress []string
	got, err := NewDecoder(nil).Decode(strings.NewReader(body), func(s string) {
		progress = append(progress, s)
	})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "A: hi\nB: yo" {
		t.Fatalf("got %q", got)
	}
	want := []string{"A: hi\n", "A: hi\nB: yo"}
	if len(progress) != len(want) || progress[0] != want[0] || progress[1] != want[1] {
		t.Fatalf("progress=%q want %q", progress, want)
	}
}

func TestDecodeIgnoresDoneAndContinues(t *testing.T) {
	body := frame("x") + "data: [DONE]\n\n" + frame("y")
	got, err := NewDecoder(nil).Decode(strings.NewReader(body), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "xy" {
		t.Fatalf("got %q, want xy", got)
	}
}

func TestDecodeSkipsMalformedFrames(t *testing.T) {
	body := frame("x") + "data: {not json\n\n" + `data: {"choices":"oops"}` + "\n\n" + frame("y")
	calls := 0
	got, err := NewDecoder(nil).Decode(strings.NewReader(body), func(string) { calls++ })
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "xy" || calls != 2 {
		t.Fatalf("got %q calls=%d", got, calls)
	}
}

func TestDecodeNoCallbackForEmptyDelta(t *testing.T) {
	body := `data: {"choices":[{"delta":{}}]}` + "\n\n" + `data: {"choices":[]}` + "\n\n" + frame("")
	calls := 0
	got, err := NewDecoder(nil).Decode(strings.NewReader(body), func(string) { calls++ })
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "" || calls != 0 {
		t.Fatalf("got %q calls=%d", got, calls)
	}
}

func TestDecodeIgnoresNonDataLines(t *testing.T) {
	body := ": keep-alive\nevent: message\ndata:{\"choices\":[{\"delta\":{\"content\":\"nospace\"}}]}\n" + frame("ok")
	got, err := NewDecoder(nil).Decode(strings.NewReader(body), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "ok" {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeHandlesSplitReadsAndCRLF(t *testing.T) {
	body := strings.ReplaceAll(frame("hello ")+frame("world"), "\n", "\r\n")
	got, err := NewDecoder(nil).Decode(iotest.OneByteReader(strings.NewReader(body)), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeFinalLineWithoutNewline(t *testing.T) {
	body := strings.TrimSuffix(frame("tail"), "\n\n")
	got, err := NewDecoder(nil).Decode(strings.NewReader(body), nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "tail" {
		t.Fatalf("got %q", got)
	}
}

func TestDecodeReadErrorIsTransportError(t *testing.T) {
	reset := errors.New("connection reset by peer")
	body := io.MultiReader(strings.NewReader(frame("partial")), iotest.ErrReader(reset))

	_, err := NewDecoder(nil).Decode(body, nil)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !errors.Is(err, reset) {
		t.Fatalf("expected wrapped reset error, got %v", err)
	}
}

func TestDecodeNilBody(t *testing.T) {
	_, err := NewDecoder(nil).Decode(nil, nil)
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}
