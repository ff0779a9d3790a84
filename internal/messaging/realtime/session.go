package realtime

import (
	"errors"
	"sync"
	"time"

	"secure_messaging_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// websocket frame opcodes (RFC 6455)
const (
	textMessage = 1
	pingMessage = 9
)

const (
	// WriteWait longest a single socket write may take
	WriteWait = 10 * time.Second

	sendBuffer = 64
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSendQueueFull = errors.New("send queue full")
)

// Conn write side of a websocket connection, satisfied by both the fiber and gorilla conns
type Conn interface {
	WriteMessage(messageType int, data []byte) error
}

// both the fiber and gorilla conns have it, test conns may not
type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

type outbound struct {
	kind int
	data []byte
}

// Session one connected socket of a user.
//
// Frames are queued and written by a single writer goroutine, so a slow
// socket never blocks the publisher. A full queue is reported to the caller.
type Session struct {
	ID     string
	UserID string

	conn      Conn
	send      chan outbound
	closing   chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

// NewSession wrap conn for userID and start its writer
func NewSession(userID string, conn Conn) *Session {
	return newSession(userID, conn, sendBuffer)
}

func newSession(userID string, conn Conn, buffer int) *Session {
	s := &Session{
		ID:      uuid.NewString(),
		UserID:  userID,
		conn:    conn,
		send:    make(chan outbound, buffer),
		closing: make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go s.writePump()
	return s
}

// Send queue one text frame without blocking
func (s *Session) Send(frame []byte) error {
	return s.enqueue(outbound{kind: textMessage, data: frame})
}

// Ping queue a ping control frame
func (s *Session) Ping() error {
	return s.enqueue(outbound{kind: pingMessage, data: []byte("ping")})
}

func (s *Session) enqueue(o outbound) error {
	select {
	case <-s.closing:
		return ErrSessionClosed
	default:
	}
	select {
	case s.send <- o:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close stop accepting frames, the writer flushes what is queued and exits
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.closing) })
}

// Done closed once the writer has exited
func (s *Session) Done() <-chan struct{} {
	return s.stopped
}

func (s *Session) writePump() {
	defer close(s.stopped)
	for {
		select {
		case o := <-s.send:
			if err := s.write(o); err != nil {
				logger.Log.Warn("session write failed",
					zap.String("userID", s.UserID), zap.String("session", s.ID), zap.Error(err))
				s.Close()
				return
			}
		case <-s.closing:
			s.flush()
			return
		}
	}
}

func (s *Session) flush() {
	for {
		select {
		case o := <-s.send:
			if err := s.write(o); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (s *Session) write(o outbound) error {
	if d, ok := s.conn.(writeDeadliner); ok {
		if err := d.SetWriteDeadline(time.Now().Add(WriteWait)); err != nil {
			return err
		}
	}
	return s.conn.WriteMessage(o.kind, o.data)
}
