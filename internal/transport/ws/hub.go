package ws

import (
	"sync"

	"chunks-server-go/internal/domain/session"
	"chunks-server-go/internal/platform/logging"
)

// Hub tracks the active websocket sessions and fans snapshots out to them.
type Hub struct {
	logger   *logging.Logger
	sessions sync.Map // map[string]*Session
}

// NewHub builds a fresh session hub.
func NewHub(logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Hub{
		logger: logger,
	}
}

// Register adds a new session to the hub.
func (h *Hub) Register(s *Session) {
	if s == nil {
		return
	}
	h.sessions.Store(s.ID(), s)
}

// Unregister removes the session from the hub.
func (h *Hub) Unregister(id string) {
	if id == "" {
		return
	}
	h.sessions.Delete(id)
}

// CloseAll terminates all active sessions and waits for their shutdown.
func (h *Hub) CloseAll(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}

	h.sessions.Range(func(key, value any) bool {
		if s, ok := value.(*Session); ok {
			s.Close(reason)
		}
		h.sessions.Delete(key)
		return true
	})
}

// Counts exposes the number of distinct clients and open sessions.
func (h *Hub) Counts() (clients int, sessions int) {
	seen := make(map[string]struct{})
	h.sessions.Range(func(_, value any) bool {
		if s, ok := value.(*Session); ok {
			seen[s.ClientID()] = struct{}{}
			sessions++
		}
		return true
	})
	return len(seen), sessions
}

// each calls fn for every session of clientID and returns how many it saw.
func (h *Hub) each(clientID string, fn func(*Session)) int {
	n := 0
	h.sessions.Range(func(_, value any) bool {
		if s, ok := value.(*Session); ok && s.ClientID() == clientID {
			fn(s)
			n++
		}
		return true
	})
	return n
}

// PublishSnapshot is subscribed to session updates on the event bus. It only
// queues the frame on each session, so one slow peer never delays others.
func (h *Hub) PublishSnapshot(snap session.Snapshot) {
	payload, err := EncodeSnapshot(snap)
	if err != nil {
		h.logger.ErrorTag("WebSocket", "编码快照失败 client=%s: %v", snap.ClientID, err)
		return
	}
	h.each(snap.ClientID, func(s *Session) { s.PushSnapshot(payload) })
}

// NotifySettingsChanged is subscribed to settings changes on the event bus.
func (h *Hub) NotifySettingsChanged(clientID string) {
	payload, err := encode(Message{Type: MessageSettings})
	if err != nil {
		h.logger.ErrorTag("WebSocket", "编码设置通知失败 client=%s: %v", clientID, err)
		return
	}
	h.each(clientID, func(s *Session) { s.Notify(payload) })
}
