package chunks

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"chunks-server-go/internal/domain/llm"
	"chunks-server-go/internal/platform/logging"
)

const convertInstruction = "Extract all English chunks (not complete sentences, please understand the requirements carefully) " +
	"suitable for English beginners from this, and the output format is JSON, including fields that you organize yourself " +
	"(including chunks themselves, pronunciation phonetic symbols, Chinese meanings and a list of suitable scenes).\n\nText content:\n"

var jsonObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)

// ErrNoJSONObject means the conversion reply held no brace-delimited text.
var ErrNoJSONObject = errors.New("未能从响应中提取到JSON数据")

// Conversion is a downloadable JSON document produced from an uploaded text.
type Conversion struct {
	Filename string
	Data     []byte
}

// Converter turns free text into a chunks JSON document in one call. The
// reply is returned as matched, without normalization.
type Converter struct {
	client Completer
	model  string
	logger *logging.Logger
	now    func() time.Time
}

func NewConverter(client Completer, model string, logger *logging.Logger) *Converter {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Converter{client: client, model: model, logger: logger, now: time.Now}
}

func (c *Converter) Convert(ctx context.Context, cfg llm.Config, text string) (*Conversion, error) {
	c.logger.InfoTag("Convert", "开始转换文本 model=%s bytes=%d", c.model, len(text))

	resp, err := c.client.Complete(ctx, cfg, c.model, llm.UserMessage(convertInstruction+text))
	if err != nil {
		return nil, err
	}

	content := llm.ContentOf(resp)
	if content == "" {
		return nil, ErrEmptyResponse
	}

	match := ExtractJSONObject(content)
	if match == "" {
		return nil, ErrNoJSONObject
	}

	return &Conversion{
		Filename: fmt.Sprintf("chunks_%d.json", c.now().UnixMilli()),
		Data:     []byte(match),
	}, nil
}

// ExtractJSONObject returns the span from the first "{" to the last "}".
func ExtractJSONObject(content string) string {
	return jsonObjectPattern.FindString(content)
}
