package session

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/raoulx24/snapkeeper/internal/logging"
	"github.com/raoulx24/snapkeeper/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// Dispatcher turns one text message into a reply.
type Dispatcher interface {
	Handle(ctx context.Context, line string) protocol.Reply
}

// Session is one open connection.
type Session struct {
	id      string
	conn    *websocket.Conn
	send    chan string
	done    chan struct{}
	limiter *rate.Limiter

	closeOnce sync.Once
	reg       *Registry
	log       logging.Logger
}

func (s *Session) ID() string { return s.id }

// Serve reads messages until the connection closes and dispatches them
// one at a time, so replies go out in request order.
func (s *Session) Serve(ctx context.Context, d Dispatcher) {
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		// a dead writer ends the session, releasing a reader blocked in Deliver
		defer s.reg.Close(s.id)
		s.writePump()
	}()

	s.readPump(ctx, d)

	s.reg.Close(s.id)
	<-writerDone
	s.reg.wg.Done()
}

func (s *Session) readPump(ctx context.Context, d Dispatcher) {
	s.conn.SetReadLimit(maxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.log.Error("failed to set read deadline", "error", err)
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	s.conn.SetPingHandler(s.answerPing)

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.log.Warn("unexpected websocket close", "error", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		if s.limiter != nil && !s.limiter.Allow() {
			if !s.reg.Deliver(s.id, protocol.ReplyRateLimited) {
				return
			}
			continue
		}

		reply := d.Handle(ctx, string(data))
		if !s.reg.Deliver(s.id, reply.Text) {
			return
		}
		if reply.Then != nil {
			reply.Then()
		}
	}
}

// answerPing replies with the current Unix time in milliseconds, encoded
// as 8 little-endian bytes.
func (s *Session) answerPing(string) error {
	err := s.conn.WriteControl(websocket.PongMessage, pongPayload(time.Now()), time.Now().Add(s.reg.writeWait))
	if errors.Is(err, websocket.ErrCloseSent) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.conn.SetReadDeadline(time.Now().Add(pongWait))
}

func pongPayload(now time.Time) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(now.UnixMilli()))
	return b
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case text := <-s.send:
			if err := s.write(text); err != nil {
				s.log.Debug("write failed", "error", err)
				return
			}

		case <-s.done:
			s.flush()
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.reg.writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(s.reg.writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// flush writes replies queued before the session was closed.
func (s *Session) flush() {
	for {
		select {
		case text := <-s.send:
			if err := s.write(text); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) write(text string) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.reg.writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, []byte(text))
}
