package llm

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/sashabaranov/go-openai"

	"chunks-server-go/internal/platform/logging"
)

const (
	dataPrefix   = "data: "
	doneSentinel = "[DONE]"
)

var errNoBody = errors.New("response has no readable body")

// Decoder reassembles a server-sent-events chat stream into one transcript.
type Decoder struct {
	logger *logging.Logger
}

func NewDecoder(logger *logging.Logger) *Decoder {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Decoder{logger: logger}
}

// Decode reads body until EOF. Only "data: " lines are considered; [DONE] is
// skipped without ending the loop and malformed frames are logged and
// skipped. A read failure other than EOF is a TransportError.
func (d *Decoder) Decode(body io.Reader, onProgress func(transcript string)) (string, error) {
	if body == nil {
		return "", &TransportError{Op: "stream", Err: errNoBody}
	}

	reader := bufio.NewReader(body)
	var full strings.Builder

	for {
		line, readErr := reader.ReadString('\n')
		if line != "" {
			delta, err := parseLine(line)
			if err != nil {
				d.logger.WarnTag("Stream", "跳过无法解析的数据帧: %v", err)
			} else if delta != "" {
				full.WriteString(delta)
				if onProgress != nil {
					onProgress(full.String())
				}
			}
		}

		if readErr == nil {
			continue
		}
		if errors.Is(readErr, io.EOF) {
			return full.String(), nil
		}
		return "", &TransportError{Op: "stream", Err: readErr}
	}
}

// parseLine extracts the delta text carried by one stream line.
func parseLine(line string) (string, error) {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, dataPrefix) {
		return "", nil
	}
	payload := strings.TrimPrefix(line, dataPrefix)
	if strings.TrimSpace(payload) == doneSentinel {
		return "", nil
	}

	var frame openai.ChatCompletionStreamResponse
	if err := sonic.ConfigStd.UnmarshalFromString(payload, &frame); err != nil {
		return "", &FrameDecodeError{Payload: payload, Err: err}
	}
	if len(frame.Choices) == 0 {
		return "", nil
	}
	return frame.Choices[0].Delta.Content, nil
}
