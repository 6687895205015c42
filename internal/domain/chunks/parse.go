package chunks

import (
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// Candidate keys per canonical field, first match wins.
var (
	chunkKeys         = []string{"chunk"}
	pronunciationKeys = []string{"pronunciation"}
	meaningKeys       = []string{"chinese_meaning", "meaning"}
	sceneKeys         = []string{"suitable_scenes", "scenes"}
)

// ParseChunks turns raw model content into normalized chunks. It strips an
// optional ```json ... ``` fence, accepts a bare array or an object with a
// "chunks" array, and fills every missing field with its default.
func ParseChunks(content string) ([]Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyResponse
	}

	cleaned := StripFence(content)

	var parsed any
	if err := sonic.ConfigStd.UnmarshalFromString(cleaned, &parsed); err != nil {
		return nil, &ParseError{Content: content, Err: err}
	}

	items, err := chunkArray(parsed)
	if err != nil {
		return nil, err
	}

	out := make([]Chunk, 0, len(items))
	for _, item := range items {
		out = append(out, normalize(item))
	}
	return out, nil
}

// StripFence removes a leading "```json" and a trailing "```" from content,
// trimming surrounding whitespace. Either fence may be absent.
func StripFence(content string) string {
	s := strings.TrimSpace(content)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func chunkArray(parsed any) ([]any, error) {
	switch v := parsed.(type) {
	case []any:
		return v, nil
	case map[string]any:
		if arr, ok := v["chunks"].([]any); ok {
			return arr, nil
		}
	}
	return nil, ErrInvalidChunkFormat
}

func normalize(item any) Chunk {
	obj, _ := item.(map[string]any)
	return Chunk{
		Chunk:          firstString(obj, chunkKeys),
		Pronunciation:  firstString(obj, pronunciationKeys),
		ChineseMeaning: firstString(obj, meaningKeys),
		SuitableScenes: firstList(obj, sceneKeys),
	}
}

// firstString returns the first candidate holding a non-empty scalar. Numbers
// and booleans are rendered; objects and arrays count as absent.
func firstString(obj map[string]any, keys []string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64, bool:
			return fmt.Sprint(v)
		}
	}
	return ""
}

// firstList returns the first candidate holding an array, keeping its string
// elements. A present but non-array value counts as absent.
func firstList(obj map[string]any, keys []string) []string {
	for _, k := range keys {
		arr, ok := obj[k].([]any)
		if !ok {
			continue
		}
		out := make([]string, 0, len(arr))
		for _, el := range arr {
			if s, ok := el.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return []string{}
}
