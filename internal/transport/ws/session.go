package ws

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"chunks-server-go/internal/platform/logging"
)

const defaultCloseTimeout = 5 * time.Second

// SessionHandler drives one upgraded connection until it ends.
type SessionHandler interface {
	Handle() error
	Close()
}

// Session encapsulates the lifecycle of a single websocket connection.
type Session struct {
	id      string
	handler SessionHandler
	conn    *Connection
	logger  *logging.Logger

	ctx    context.Context
	cancel context.CancelCauseFunc

	// pushed frames are written by writeLoop; each slot keeps only the newest
	snapshots *latestSlot
	notices   *latestSlot
	writer    sync.Once

	closed atomic.Bool
}

// latestSlot holds at most one pending frame. Offering replaces it.
type latestSlot struct {
	mu sync.Mutex
	ch chan []byte
}

func newLatestSlot() *latestSlot {
	return &latestSlot{ch: make(chan []byte, 1)}
}

func (l *latestSlot) offer(payload []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.ch:
	default:
	}
	l.ch <- payload
}

// NewSession constructs a managed websocket session.
func NewSession(parent context.Context, id string, handler SessionHandler, conn *Connection, logger *logging.Logger) *Session {
	sessionCtx, cancel := context.WithCancelCause(parent)
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Session{
		id:        id,
		handler:   handler,
		conn:      conn,
		logger:    logger,
		ctx:       sessionCtx,
		cancel:    cancel,
		snapshots: newLatestSlot(),
		notices:   newLatestSlot(),
	}
}

// Context returns the session context.
func (s *Session) Context() context.Context {
	return s.ctx
}

// ID exposes the session identifier.
func (s *Session) ID() string {
	return s.id
}

// ClientID is the client whose snapshots the session receives.
func (s *Session) ClientID() string {
	return s.conn.ClientID()
}

// PushSnapshot queues a snapshot frame without blocking. A snapshot not yet
// written is replaced, so a slow peer only ever skips to the newest one.
func (s *Session) PushSnapshot(payload []byte) {
	if s.closed.Load() {
		return
	}
	s.snapshots.offer(payload)
	s.startWriter()
}

// Notify queues a notice frame; notices coalesce like snapshots but never
// replace them.
func (s *Session) Notify(payload []byte) {
	if s.closed.Load() {
		return
	}
	s.notices.offer(payload)
	s.startWriter()
}

// Run executes the session handler and invokes onDone once exiting.
func (s *Session) Run(onDone func(error)) {
	var runErr error
	defer func() {
		s.Close(runErr)
		if onDone != nil {
			onDone(runErr)
		}
	}()

	s.startWriter()
	runErr = s.handler.Handle()
}

func (s *Session) startWriter() {
	s.writer.Do(func() { go s.writeLoop() })
}

// writeLoop owns pushed writes so a stalled peer blocks only its session.
func (s *Session) writeLoop() {
	for {
		var payload []byte
		select {
		case <-s.ctx.Done():
			return
		case payload = <-s.snapshots.ch:
		case payload = <-s.notices.ch:
		}

		if err := s.conn.WriteMessage(textMessage, payload); err != nil {
			if !errors.Is(err, ErrConnectionClosed) {
				s.logger.WarnTag("WebSocket", "推送失败 session=%s: %v", s.id, err)
			}
			s.Close(err)
			return
		}
	}
}

// Close attempts to gracefully terminate the session.
func (s *Session) Close(reason error) {
	if reason == nil {
		reason = ErrSessionShutdown
	}

	if !s.closed.CompareAndSwap(false, true) {
		return
	}

	if s.cancel != nil {
		s.cancel(reason)
	}

	shutdownCtx, cancel := context.WithTimeoutCause(context.Background(), defaultCloseTimeout, reason)
	defer cancel()

	if s.handler != nil {
		done := make(chan struct{})
		go func() {
			s.handler.Close()
			close(done)
		}()

		select {
		case <-done:
		case <-shutdownCtx.Done():
			s.logger.Warn("session %s handler close timed out: %v", s.id, context.Cause(shutdownCtx))
		}
	}

	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("session %s connection close failed: %v", s.id, err)
		}
	}
}
