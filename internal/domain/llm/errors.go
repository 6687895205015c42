package llm

import (
	"fmt"
)

// TransportError reports a failed exchange with the chat endpoint: a non-2xx
// status, a missing body, a broken connection or an unreadable reply. Body is
// the provider's reply kept for logs; it never appears in Error().
type TransportError struct {
	Op         string
	Status     string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e == nil {
		return "llm transport error"
	}
	switch {
	case e.Status != "" && e.Err != nil:
		return fmt.Sprintf("llm %s failed: status=%s: %v", e.Op, e.Status, e.Err)
	case e.Status != "":
		return fmt.Sprintf("llm %s failed: status=%s", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("llm %s failed: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("llm %s failed", e.Op)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// FrameDecodeError describes one stream frame whose payload was not valid
// JSON. The decoder logs and skips these.
type FrameDecodeError struct {
	Payload string
	Err     error
}

func (e *FrameDecodeError) Error() string {
	return fmt.Sprintf("malformed stream frame %q: %v", truncate(e.Payload, 120), e.Err)
}

func (e *FrameDecodeError) Unwrap() error { return e.Err }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
