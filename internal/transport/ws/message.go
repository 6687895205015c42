package ws

import (
	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"chunks-server-go/internal/domain/session"
)

const textMessage = websocket.TextMessage

const (
	MessageSnapshot = "snapshot"
	MessagePong     = "pong"
	MessageError    = "error"
	// MessageSettings tells the client to reload its settings.
	MessageSettings = "settings"
)

// Message is the envelope of every server-to-client frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// EncodeSnapshot renders snap as a snapshot frame.
func EncodeSnapshot(snap session.Snapshot) ([]byte, error) {
	return sonic.ConfigStd.Marshal(Message{Type: MessageSnapshot, Data: snap})
}

func encode(msg Message) ([]byte, error) {
	return sonic.ConfigStd.Marshal(msg)
}
