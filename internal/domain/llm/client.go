package llm

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/sashabaranov/go-openai"

	"chunks-server-go/internal/platform/logging"
	"chunks-server-go/internal/platform/observability"
)

// ChatCompletionsPath is appended to the configured base URL.
const ChatCompletionsPath = "/v1beta/chat/completions"

const maxErrorBody = 1 << 20

// Config is the per-call endpoint configuration. It is resolved from the
// caller's settings and never stored by the client.
type Config struct {
	BaseURL string
	APIKey  string
}

// Endpoint returns the chat completions URL for c.
func (c Config) Endpoint() string {
	return strings.TrimRight(strings.TrimSpace(c.BaseURL), "/") + ChatCompletionsPath
}

// Options tunes the HTTP client. Zero timeouts mean no deadline.
type Options struct {
	RequestTimeout time.Duration
	StreamTimeout  time.Duration
}

// Request is the chat envelope. Stream is always serialized.
type Request struct {
	Model    string                         `json:"model"`
	Messages []openai.ChatCompletionMessage `json:"messages"`
	Stream   bool                           `json:"stream"`
}

// UserMessage builds a single-message conversation.
func UserMessage(content string) []openai.ChatCompletionMessage {
	return []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, Content: content}}
}

// Client talks to an OpenAI-compatible chat endpoint. One attempt per call.
type Client struct {
	opts       Options
	httpClient *http.Client
	logger     *logging.Logger
}

// New builds a client with a pooled transport.
func New(opts Options, logger *logging.Logger) *Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return NewWithHTTPClient(opts, &http.Client{Transport: tr}, logger)
}

// NewWithHTTPClient is intended for tests; it avoids network access by using
// a custom RoundTripper.
func NewWithHTTPClient(opts Options, httpClient *http.Client, logger *logging.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Client{opts: opts, httpClient: httpClient, logger: logger}
}

// Send posts req and returns the response once the status is known to be
// 2xx. The caller owns resp.Body.
func (c *Client) Send(ctx context.Context, cfg Config, req Request) (*http.Response, error) {
	op := "complete"
	accept := "application/json"
	if req.Stream {
		op = "stream"
		accept = "text/event-stream"
	}

	payload, err := sonic.ConfigStd.Marshal(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.Endpoint(), bytes.NewReader(payload))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	setHeaders(httpReq, cfg.APIKey, accept)

	c.logger.DebugTag("LLM", "POST %s model=%s stream=%t", cfg.Endpoint(), req.Model, req.Stream)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body string
		if resp.Body != nil {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			_ = resp.Body.Close()
			body = string(raw)
		}
		c.logger.WarnTag("LLM", "上游返回错误状态 %s: %s", resp.Status, body)
		return nil, &TransportError{Op: op, Status: resp.Status, StatusCode: resp.StatusCode, Body: body}
	}
	return resp, nil
}

// Complete performs a non-streaming call and decodes the reply envelope.
func (c *Client) Complete(ctx context.Context, cfg Config, model string, messages []openai.ChatCompletionMessage) (resp *openai.ChatCompletionResponse, err error) {
	ctx, end := observability.StartSpan(ctx, "llm", "complete")
	defer func() { end(err) }()

	if c.opts.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.RequestTimeout)
		defer cancel()
	}

	httpResp, err := c.Send(ctx, cfg, Request{Model: model, Messages: messages, Stream: false})
	if err != nil {
		return nil, err
	}
	if httpResp.Body == nil || httpResp.Body == http.NoBody {
		return nil, &TransportError{Op: "complete", Status: httpResp.Status, StatusCode: httpResp.StatusCode, Err: errNoBody}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &TransportError{Op: "complete", Status: httpResp.Status, StatusCode: httpResp.StatusCode, Err: err}
	}

	var out openai.ChatCompletionResponse
	if err := sonic.ConfigStd.Unmarshal(raw, &out); err != nil {
		return nil, &TransportError{Op: "complete", Status: httpResp.Status, StatusCode: httpResp.StatusCode, Body: string(raw), Err: err}
	}
	return &out, nil
}

// Stream performs a streaming call. onProgress receives the full transcript
// after every frame that added text; the final transcript is returned at end
// of stream.
func (c *Client) Stream(ctx context.Context, cfg Config, model string, messages []openai.ChatCompletionMessage, onProgress func(transcript string)) (transcript string, err error) {
	ctx, end := observability.StartSpan(ctx, "llm", "stream")
	defer func() { end(err) }()

	if c.opts.StreamTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.StreamTimeout)
		defer cancel()
	}

	httpResp, err := c.Send(ctx, cfg, Request{Model: model, Messages: messages, Stream: true})
	if err != nil {
		return "", err
	}
	if httpResp.Body == nil || httpResp.Body == http.NoBody {
		return "", &TransportError{Op: "stream", Status: httpResp.Status, StatusCode: httpResp.StatusCode, Err: errNoBody}
	}
	defer httpResp.Body.Close()

	return NewDecoder(c.logger).Decode(httpResp.Body, onProgress)
}

// ContentOf returns choices[0].message.content, or "" when absent.
func ContentOf(resp *openai.ChatCompletionResponse) string {
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}
	return resp.Choices[0].Message.Content
}

func setHeaders(req *http.Request, apiKey, accept string) {
	req.Header.Set("Content-Type", "application/json")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(apiKey))
}
