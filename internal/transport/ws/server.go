package ws

import (
	"github.com/gin-gonic/gin"

	"chunks-server-go/internal/platform/logging"
)

// Server mounts the websocket router on the HTTP engine and owns its hub.
type Server struct {
	path   string
	hub    *Hub
	router *Router
	logger *logging.Logger
}

// NewServer builds a websocket transport served at path.
func NewServer(path string, router *Router, hub *Hub, logger *logging.Logger) *Server {
	if path == "" {
		path = "/ws"
	}
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Server{
		path:   path,
		router: router,
		hub:    hub,
		logger: logger,
	}
}

// SetHandlerBuilder wires the handler construction callback.
func (s *Server) SetHandlerBuilder(builder HandlerBuilder) {
	s.router.SetHandlerBuilder(builder)
}

// Mount registers the upgrade endpoint on engine.
func (s *Server) Mount(engine *gin.Engine) {
	engine.GET(s.path, gin.WrapF(s.router.Handle))
	s.logger.InfoTag("WebSocket", "监听路径 %s", s.path)
}

// Stop closes every active session.
func (s *Server) Stop() {
	s.hub.CloseAll(ErrSessionShutdown)
}

// Counts exposes active client and session counts.
func (s *Server) Counts() (int, int) {
	return s.hub.Counts()
}

func (s *Server) Hub() *Hub {
	return s.hub
}
