package ws

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"chunks-server-go/internal/domain/session"
	"chunks-server-go/internal/platform/logging"
)

// SnapshotSource returns a client's current session state.
type SnapshotSource interface {
	Snapshot(clientID string) session.Snapshot
}

// snapshotHandler greets the peer with the current snapshot, then answers
// pings until the peer goes away. Updates arrive through Hub.PublishSnapshot.
type snapshotHandler struct {
	conn   *Connection
	source SnapshotSource
	logger *logging.Logger
}

// SnapshotHandlerBuilder builds handlers that serve source's snapshots.
func SnapshotHandlerBuilder(source SnapshotSource, logger *logging.Logger) HandlerBuilder {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return func(conn *Connection, _ *http.Request) (SessionHandler, error) {
		if source == nil {
			return nil, errors.New("snapshot source is required")
		}
		return &snapshotHandler{conn: conn, source: source, logger: logger}, nil
	}
}

func (h *snapshotHandler) Handle() error {
	payload, err := EncodeSnapshot(h.source.Snapshot(h.conn.ClientID()))
	if err != nil {
		return err
	}
	if err := h.conn.WriteMessage(textMessage, payload); err != nil {
		return err
	}

	for {
		messageType, data, err := h.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) ||
				h.conn.IsClosed() {
				return nil
			}
			return err
		}
		if messageType != textMessage {
			continue
		}
		if err := h.reply(data); err != nil {
			return err
		}
	}
}

func (h *snapshotHandler) reply(data []byte) error {
	var in struct {
		Type string `json:"type"`
	}
	text := strings.TrimSpace(string(data))
	if text != "ping" {
		if err := sonic.Unmarshal(data, &in); err != nil {
			in.Type = ""
		}
		text = in.Type
	}

	var out Message
	switch text {
	case "ping":
		out = Message{Type: MessagePong}
	case MessageSnapshot:
		out = Message{Type: MessageSnapshot, Data: h.source.Snapshot(h.conn.ClientID())}
	default:
		h.logger.DebugTag("WebSocket", "忽略未知消息 client=%s: %s", h.conn.ClientID(), text)
		out = Message{Type: MessageError, Data: "unsupported message"}
	}

	payload, err := encode(out)
	if err != nil {
		return err
	}
	return h.conn.WriteMessage(textMessage, payload)
}

func (h *snapshotHandler) Close() {}
