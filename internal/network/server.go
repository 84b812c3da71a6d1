package network

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"souls/internal/logging"
)

// Server exposes the connection manager over HTTP: /ws upgrades to a
// websocket, other routes are added by the caller through Router.
type Server struct {
	engine  *gin.Engine
	manager *Manager
	log     *zap.Logger
	http    *http.Server
}

func NewServer(address string, m *Manager, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), logging.RequestLogger(log.Named("http")))

	s := &Server{
		engine:  engine,
		manager: m,
		log:     log,
		http:    &http.Server{Addr: address, Handler: engine},
	}
	engine.GET("/ws", s.wsHandler)
	return s
}

func (s *Server) Router() gin.IRouter { return s.engine }

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) wsHandler(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	s.manager.Serve(NewWebSocketTransport(conn))
}

// Listen blocks serving HTTP on the server's address until Shutdown.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve blocks serving HTTP on ln until Shutdown. A server shut down
// before Serve returns nil at once.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("listening", zap.String("address", ln.Addr().String()))
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and closes every live connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.manager.CloseAll()
	return s.http.Shutdown(ctx)
}
