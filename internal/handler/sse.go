package handler

import (
	"errors"
	"fmt"
	"net/http"

	"inkwell-go/internal/service"

	"github.com/gin-gonic/gin"
)

var errSinkClosed = errors.New("event sink already closed")

// sseSink 把事件写成 `data: <json>\n\n`。响应头在第一次写入时才发送，
// 因此在此之前失败的请求仍然可以返回普通的 JSON 错误。
type sseSink struct {
	w       gin.ResponseWriter
	started bool
	closed  bool
}

func newSSESink(w gin.ResponseWriter) *sseSink {
	return &sseSink{w: w}
}

func (s *sseSink) start() {
	if s.started {
		return
	}
	h := s.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.w.WriteHeader(http.StatusOK)
	s.started = true
}

func (s *sseSink) write(payload []byte) error {
	s.start()
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", payload); err != nil {
		return err
	}
	s.w.Flush()
	return nil
}

func (s *sseSink) Send(ev service.StreamEvent) error {
	if s.closed {
		return errSinkClosed
	}
	payload, err := service.EncodeEvent(ev)
	if err != nil {
		return err
	}
	return s.write(payload)
}

func (s *sseSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.write([]byte(service.DoneSentinel))
}

func (s *sseSink) Started() bool { return s.started }
