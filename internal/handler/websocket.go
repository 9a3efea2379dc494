package handler

import (
	"net/http"
	"sync"
	"time"

	"inkwell-go/internal/service"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源，鉴权依靠路径中的 token
	},
}

// wsSink 每个事件发送一个文本帧，结束时发送 [DONE] 帧。连接在多轮对话之间复用。
type wsSink struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	started bool
	closed  bool
}

func newWSSink(conn *websocket.Conn) *wsSink {
	return &wsSink{conn: conn}
}

func (s *wsSink) writeText(b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	s.started = true
	return s.conn.WriteMessage(websocket.TextMessage, b)
}

func (s *wsSink) Send(ev service.StreamEvent) error {
	if s.closed {
		return errSinkClosed
	}
	payload, err := service.EncodeEvent(ev)
	if err != nil {
		return err
	}
	return s.writeText(payload)
}

func (s *wsSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.writeText([]byte(service.DoneSentinel))
}

func (s *wsSink) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
