package network

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second

	// PingPeriod must stay below pongWait.
	PingPeriod = (pongWait * 9) / 10

	maxFrameSize = 64 * 1024
)

// Transport is one accepted client stream carrying opaque frames.
type Transport interface {
	ReadFrame() ([]byte, error)
	WriteFrame([]byte) error
	Close() error
	RemoteAddr() string
}

// pinger is implemented by transports that need keepalives.
type pinger interface {
	Ping() error
}

type wsTransport struct {
	conn *websocket.Conn
}

// NewWebSocketTransport wraps an upgraded connection. Reads time out unless
// a pong or a frame arrives within pongWait.
func NewWebSocketTransport(conn *websocket.Conn) Transport {
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadFrame() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	_ = t.conn.SetReadDeadline(time.Now().Add(pongWait))
	return data, nil
}

func (t *wsTransport) WriteFrame(frame []byte) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.TextMessage, frame)
}

func (t *wsTransport) Ping() error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return t.conn.WriteMessage(websocket.PingMessage, nil)
}

func (t *wsTransport) Close() error {
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	return t.conn.Close()
}

func (t *wsTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

func isUnexpectedClose(err error) bool {
	return websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure)
}
