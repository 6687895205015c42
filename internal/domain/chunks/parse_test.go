package chunks

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestParseChunksFencedObject(t *testing.T) {
	got, err := ParseChunks("```json\n{\"chunks\":[{\"chunk\":\"break a leg\"}]}\n```")
	if err != nil {
		t.Fatalf("ParseChunks: %v", err)
	}
	want := []Chunk{{Chunk: "break a leg", Pronunciation: "", ChineseMeaning: "", SuitableScenes: []string{}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestParseChunksBareArrayWithAliases(t *testing.T) {
	got, err := ParseChunks(`[{"chunk":"hang on","meaning":"等一下","scenes":["casual"]}]`)
	if err != nil {
		t.Fatalf("ParseChunks: %v", err)
	}
	want := []Chunk{{Chunk: "hang on", ChineseMeaning: "等一下", SuitableScenes: []string{"casual"}}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}

func TestParseChunksObjectWithoutChunks(t *testing.T) {
	_, err := ParseChunks(`{"note":"no data"}`)
	if !errors.Is(err, ErrInvalidChunkFormat) {
		t.Fatalf("expected ErrInvalidChunkFormat, got %v", err)
	}
}

func TestParseChunksErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(error) bool
	}{
		{name: "empty", content: "", check: func(err error) bool { return errors.Is(err, ErrEmptyResponse) }},
		{name: "whitespace", content: "  \n ", check: func(err error) bool { return errors.Is(err, ErrEmptyResponse) }},
		{name: "prose", content: "Sure! Here are your chunks.", check: isParseError},
		{name: "truncated", content: "```json\n[{\"chunk\": \"a\"", check: isParseError},
		{name: "chunks not array", content: `{"chunks":"nope"}`, check: func(err error) bool { return errors.Is(err, ErrInvalidChunkFormat) }},
		{name: "scalar", content: `42`, check: func(err error) bool { return errors.Is(err, ErrInvalidChunkFormat) }},
		{name: "string", content: `"hello"`, check: func(err error) bool { return errors.Is(err, ErrInvalidChunkFormat) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseChunks(tt.content)
			if err == nil {
				t.Fatalf("expected error, got %v", got)
			}
			if !tt.check(err) {
				t.Fatalf("unexpected error type: %T %v", err, err)
			}
		})
	}
}

func isParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

func TestParseChunksAliasPriority(t *testing.T) {
	content := `[{"chunk":"x","chinese_meaning":"canonical","meaning":"alias",
		"suitable_scenes":["a"],"scenes":["b"]}]`
	got, err := ParseChunks(content)
	if err != nil {
		t.Fatalf("ParseChunks: %v", err)
	}
	if got[0].ChineseMeaning != "canonical" {
		t.Errorf("meaning=%q, canonical key must win", got[0].ChineseMeaning)
	}
	if !reflect.DeepEqual(got[0].SuitableScenes, []string{"a"}) {
		t.Errorf("scenes=%v, canonical key must win", got[0].SuitableScenes)
	}
}

func TestParseChunksWrongTypedFieldsDefault(t *testing.T) {
	content := `[{"chunk":"x","scenes":"casual","meaning":{"zh":"?"}}, "loose", 3]`
	got, err := ParseChunks(content)
	if err != nil {
		t.Fatalf("ParseChunks: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len=%d, every element must map to a record", len(got))
	}
	if got[0].ChineseMeaning != "" || !reflect.DeepEqual(got[0].SuitableScenes, []string{}) {
		t.Errorf("wrong typed fields must default: %#v", got[0])
	}
	for _, c := range got[1:] {
		if !reflect.DeepEqual(c, Chunk{SuitableScenes: []string{}}) {
			t.Errorf("non-object element must be all defaults: %#v", c)
		}
	}
}

func TestParseChunksKeepsOrderAndDuplicates(t *testing.T) {
	got, err := ParseChunks(`{"chunks":[{"chunk":"b"},{"chunk":"a"},{"chunk":"b"}]}`)
	if err != nil {
		t.Fatalf("ParseChunks: %v", err)
	}
	var names []string
	for _, c := range got {
		names = append(names, c.Chunk)
	}
	if !reflect.DeepEqual(names, []string{"b", "a", "b"}) {
		t.Fatalf("order=%v", names)
	}
}

func TestParseChunksEmptyArrayEncodesAsList(t *testing.T) {
	got, err := ParseChunks(`[]`)
	if err != nil {
		t.Fatalf("ParseChunks: %v", err)
	}
	raw, _ := json.Marshal(got)
	if string(raw) != "[]" {
		t.Fatalf("encoded=%s", raw)
	}
	one, _ := ParseChunks(`[{}]`)
	raw, _ = json.Marshal(one)
	if string(raw) != `[{"chunk":"","pronunciation":"","chinese_meaning":"","suitable_scenes":[]}]` {
		t.Fatalf("encoded=%s", raw)
	}
}

func TestStripFence(t *testing.T) {
	tests := map[string]string{
		"```json\n[1]\n```":   "[1]",
		"  ```json [1] ```  ": "[1]",
		"[1]":                 "[1]",
		"```json\n[1]":        "[1]",
		"[1]\n```":            "[1]",
		"x ```json [1]":       "x ```json [1]",
	}
	for in, want := range tests {
		if got := StripFence(in); got != want {
			t.Errorf("StripFence(%q) = %q, want %q", in, got, want)
		}
	}
}
