package websocket

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/nfrund/parley/internal/domain"
)

var (
	// ErrSessionClosed is returned by Deliver after the session has disconnected.
	ErrSessionClosed = errors.New("session closed")
	// ErrSendQueueFull is returned by Deliver when the client is not keeping up.
	ErrSendQueueFull = errors.New("send queue full")
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second
	// Largest inbound frame accepted from a client.
	maxFrameSize = 64 << 10
)

// Session is one authenticated websocket connection. It is bound to a single
// user for its whole lifetime and satisfies rooms.Member.
type Session struct {
	id     string
	user   *domain.User
	conn   *websocket.Conn
	logger *slog.Logger

	// mu guards send: Deliver holds it for reading, close for writing, so a
	// frame is never sent on a closed channel.
	mu   sync.RWMutex
	send chan []byte

	cancel context.CancelFunc
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// User returns the user the session was authenticated as.
func (s *Session) User() *domain.User { return s.user }

// Deliver queues payload without blocking. A full queue drops the frame.
func (s *Session) Deliver(payload []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.send == nil {
		return ErrSessionClosed
	}
	select {
	case s.send <- payload:
		return nil
	default:
		s.logger.Warn("Session send queue full, dropping frame")
		return ErrSendQueueFull
	}
}

// close stops further deliveries. Frames already queued are still written.
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.send != nil {
		close(s.send)
		s.send = nil
	}
}

// readPump reads frames and hands each one to dispatch, one at a time, until
// the connection fails or ctx ends.
func (s *Session) readPump(ctx context.Context, dispatch func(context.Context, []byte)) {
	s.conn.SetReadLimit(maxFrameSize)
	for {
		typ, raw, err := s.conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			switch {
			case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
				s.logger.Info("WebSocket closed normally by client")
			case errors.Is(err, io.EOF) || ctx.Err() != nil:
				s.logger.Debug("WebSocket read loop stopped", "error", err)
			default:
				s.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			_ = s.Deliver(errorFrame("Only text frames are supported"))
			continue
		}
		dispatch(ctx, raw)
	}
}

// writePump drains the send queue onto the connection and keeps it alive
// with pings. It closes the connection once the queue is closed.
func (s *Session) writePump(ctx context.Context, done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	s.mu.RLock()
	send := s.send
	s.mu.RUnlock()

	for {
		select {
		case frame, ok := <-send:
			if !ok {
				s.conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			wctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := s.conn.Write(wctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				s.logger.Warn("WebSocket write error", "error", err)
				s.cancel()
				s.drain(send)
				return
			}

		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := s.conn.Ping(pctx)
			cancel()
			if err != nil {
				s.logger.Info("WebSocket ping failed", "error", err)
				s.cancel()
				s.drain(send)
				return
			}
		}
	}
}

// drain discards queued frames until the queue is closed.
func (s *Session) drain(send <-chan []byte) {
	for range send {
	}
}
