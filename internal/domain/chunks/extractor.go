package chunks

import (
	"context"
	"errors"

	"github.com/sashabaranov/go-openai"

	"chunks-server-go/internal/domain/llm"
	"chunks-server-go/internal/platform/logging"
)

const extractInstruction = "Extract all English chunks (not complete sentences, please understand the requirements carefully) " +
	"suitable for English beginners from this, and the output format is JSON, including fields that you organize yourself " +
	"(including chunks themselves, pronunciation phonetic symbols, Chinese meanings and a list of suitable scenes):\n\n"

// Completer is the non-streaming slice of llm.Client.
type Completer interface {
	Complete(ctx context.Context, cfg llm.Config, model string, messages []openai.ChatCompletionMessage) (*openai.ChatCompletionResponse, error)
}

// Extractor asks the model for chunks found in a finished dialogue.
type Extractor struct {
	client Completer
	model  string
	logger *logging.Logger
}

func NewExtractor(client Completer, model string, logger *logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Extractor{client: client, model: model, logger: logger}
}

// Extract performs one call and parses the reply. It never returns an empty
// list with a nil error for an unusable reply.
func (e *Extractor) Extract(ctx context.Context, cfg llm.Config, dialogue string) ([]Chunk, error) {
	e.logger.InfoTag("Chunks", "开始提取英语块 model=%s", e.model)

	resp, err := e.client.Complete(ctx, cfg, e.model, llm.UserMessage(extractInstruction+dialogue))
	if err != nil {
		e.logger.ErrorTag("Chunks", "英语块请求失败: %v", err)
		return nil, err
	}

	content := llm.ContentOf(resp)
	chunks, err := ParseChunks(content)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			e.logger.ErrorTag("Chunks", "无法解析模型输出: %v content=%q", err, pe.Content)
		} else {
			e.logger.ErrorTag("Chunks", "英语块格式错误: %v", err)
		}
		return nil, err
	}

	e.logger.InfoTag("Chunks", "提取完成 count=%d", len(chunks))
	return chunks, nil
}
