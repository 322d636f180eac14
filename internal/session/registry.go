// Package session tracks open websocket connections and routes each reply
// back to the connection that sent the command.
package session

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/raoulx24/snapkeeper/internal/logging"
	"github.com/raoulx24/snapkeeper/internal/metrics"
)

// ErrClosed is returned by Open once the registry is draining.
var ErrClosed = errors.New("session registry closed")

// Registry owns every live Session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
	wg       sync.WaitGroup

	rps       float64 // per-session command rate, 0 = unlimited
	writeWait time.Duration
	log       logging.Logger
}

func NewRegistry(commandsPerSecond float64, log logging.Logger) *Registry {
	return &Registry{
		sessions:  make(map[string]*Session),
		rps:       commandsPerSecond,
		writeWait: writeWait,
		log:       log.With("component", "sessions"),
	}
}

// Open registers conn under a fresh id. The caller must run Serve on the
// returned session.
func (r *Registry) Open(conn *websocket.Conn) (*Session, error) {
	s := &Session{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan string, sendBuffer),
		done: make(chan struct{}),
		reg:  r,
	}
	if r.rps > 0 {
		burst := int(math.Ceil(r.rps))
		s.limiter = rate.NewLimiter(rate.Limit(r.rps), burst)
	}
	s.log = r.log.With("session", s.id)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrClosed
	}
	r.sessions[s.id] = s
	r.wg.Add(1)
	r.mu.Unlock()

	metrics.SessionsActive.Inc()
	s.log.Debug("session opened", "remote", conn.RemoteAddr().String())
	return s, nil
}

// Close removes the session. Replies already queued are still flushed;
// later Deliver calls for id are dropped.
func (r *Registry) Close(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return
	}
	s.closeOnce.Do(func() { close(s.done) })
	metrics.SessionsActive.Dec()
	s.log.Debug("session closed")
}

// Deliver queues text for exactly the session id. It reports false when
// the session is gone.
func (r *Registry) Deliver(id, text string) bool {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()

	if !ok {
		metrics.RepliesDropped.Inc()
		return false
	}

	select {
	case s.send <- text:
		return true
	case <-s.done:
		metrics.RepliesDropped.Inc()
		return false
	}
}

// CloseAll closes every session and refuses new ones.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	r.closed = true
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Close(id)
	}
}

// Wait blocks until every opened session has finished serving or ctx ends.
func (r *Registry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len is the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
