package chunks

import (
	"errors"
	"fmt"
)

// Chunk is one extracted phrase. Every field is always populated; lists
// encode as [] when empty.
type Chunk struct {
	Chunk          string   `json:"chunk"`
	Pronunciation  string   `json:"pronunciation"`
	ChineseMeaning string   `json:"chinese_meaning"`
	SuitableScenes []string `json:"suitable_scenes"`
}

var (
	// ErrEmptyResponse means the model reply carried no message content.
	ErrEmptyResponse = errors.New("model response has no content")
	// ErrInvalidChunkFormat means the reply was JSON but neither an array nor
	// an object holding a "chunks" array.
	ErrInvalidChunkFormat = errors.New("invalid chunks format in response")
)

// ParseError means the reply could not be understood as JSON at all.
type ParseError struct {
	Content string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not understand model output: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
