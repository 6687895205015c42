package dialogue

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"

	"chunks-server-go/internal/domain/llm"
	"chunks-server-go/internal/platform/logging"
)

// Streamer is the slice of llm.Client the generator needs.
type Streamer interface {
	Stream(ctx context.Context, cfg llm.Config, model string, messages []openai.ChatCompletionMessage, onProgress func(string)) (string, error)
}

// Generator streams a dialogue for a scene.
type Generator struct {
	client Streamer
	model  string
	logger *logging.Logger
}

func NewGenerator(client Streamer, model string, logger *logging.Logger) *Generator {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Generator{client: client, model: model, logger: logger}
}

// Generate streams the dialogue. onProgress receives the raw transcript so
// far; callers format it with Format. The returned transcript is raw.
func (g *Generator) Generate(ctx context.Context, cfg llm.Config, scene string, onProgress func(raw string)) (string, error) {
	scene = strings.TrimSpace(scene)
	g.logger.InfoTag("LLM", "开始生成对话 model=%s scene=%q", g.model, scene)

	transcript, err := g.client.Stream(ctx, cfg, g.model, llm.UserMessage(Prompt(scene)), onProgress)
	if err != nil {
		g.logger.ErrorTag("LLM", "对话生成失败: %v", err)
		return "", err
	}

	g.logger.InfoTag("LLM", "对话生成完成 chars=%d", len([]rune(transcript)))
	return transcript, nil
}
