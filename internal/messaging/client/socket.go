package client

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"secure_messaging_service/internal/messaging/domain"
	"secure_messaging_service/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Socket realtime connection of one user
type Socket struct {
	userID string
	conn   *websocket.Conn
	mu     sync.Mutex
}

// DialSocket connect to <baseURL>/ws and join the caller's own room.
// baseURL may use http(s) or ws(s).
func DialSocket(ctx context.Context, baseURL, token, userID string) (*Socket, error) {
	u := strings.TrimRight(baseURL, "/")
	u = strings.Replace(u, "http://", "ws://", 1)
	u = strings.Replace(u, "https://", "wss://", 1)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u+"/ws?auth="+url.QueryEscape(token), nil)
	if err != nil {
		return nil, err
	}

	s := &Socket{userID: userID, conn: conn}
	if err := s.write(domain.EventJoin, domain.JoinPayload{UserID: userID}); err != nil {
		conn.Close()
		return nil, err
	}
	return s, nil
}

// Typing tell the other participants of threadID that the user is typing
func (s *Socket) Typing(threadID string) error {
	return s.write(domain.EventTyping, domain.TypingPayload{ThreadID: threadID})
}

func (s *Socket) write(event domain.Event, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(domain.Envelope{Event: event, Payload: payload})
}

// Run feed every received frame to c until ctx is done or the connection drops
func (s *Socket) Run(ctx context.Context, c *Controller) error {
	stop := context.AfterFunc(ctx, func() { s.conn.Close() })
	defer stop()

	for {
		var env domain.RawEnvelope
		if err := s.conn.ReadJSON(&env); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.HandleEvent(ctx, env); err != nil {
			logger.Log.Warn("handle event", zap.String("userID", s.userID), zap.String("event", string(env.Event)), zap.Error(err))
		}
	}
}

// Close the connection
func (s *Socket) Close() error {
	return s.conn.Close()
}
