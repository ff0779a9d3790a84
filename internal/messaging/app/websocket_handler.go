package app

import (
	"context"
	"encoding/json"
	"time"

	"secure_messaging_service/internal/messaging/domain"
	"secure_messaging_service/internal/messaging/realtime"
	errprocess "secure_messaging_service/pkg/err"
	"secure_messaging_service/pkg/logger"
	"secure_messaging_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

// RoomRegistry local sessions per user room, implemented by realtime.Hub
type RoomRegistry interface {
	Join(userID string, s *realtime.Session)
	Leave(userID string, s *realtime.Session)
}

type typingFrame struct {
	ThreadID string `json:"threadId"`
}

// WebsocketHandler socket side of the fan-out channel
type WebsocketHandler struct {
	rooms        RoomRegistry
	typingUC     *TypingUseCase
	pingInterval time.Duration
}

// NewWebsocketHandler create WebsocketHandler, pingInterval <= 0 disables server pings
func NewWebsocketHandler(rooms RoomRegistry, typingUC *TypingUseCase, pingInterval time.Duration) *WebsocketHandler {
	return &WebsocketHandler{
		rooms:        rooms,
		typingUC:     typingUC,
		pingInterval: pingInterval,
	}
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *WebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	memberID, _ := conn.Locals(middlewares.TokenMemberID).(string)
	session := realtime.NewSession(memberID, conn)
	logger.Log.Info("websocket connected", zap.String("userID", memberID), zap.String("session", session.ID))

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		h.rooms.Leave(memberID, session)
		// let queued frames (e.g. the unauthorized error) reach the peer first
		session.Close()
		select {
		case <-session.Done():
		case <-time.After(realtime.WriteWait):
		}
		conn.Close()
		logger.Log.Info("websocket close", zap.String("userID", memberID), zap.String("session", session.ID))
	}()

	if memberID == "" {
		h.sendError(session, "unauthorized")
		return
	}

	//server發出ping之後client連線正常會回pong
	conn.SetPongHandler(func(appData string) error {
		logger.Log.Debug("Received PONG", zap.String("userID", memberID))
		return nil
	})

	if h.pingInterval > 0 {
		go h.keepAlive(ctx, session)
	}

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Debug("Connection closed", zap.String("userID", memberID))
			} else {
				//直接斷線 1006
				logger.Log.Warn("websocket read error", zap.String("userID", memberID), zap.Error(err))
			}
			return
		}
		if mt != websocket.TextMessage {
			h.sendError(session, "unsupported frame")
			continue
		}
		h.handleFrame(ctx, session, message)
	}
}

// 定期發送 Ping
func (h *WebsocketHandler) keepAlive(ctx context.Context, s *realtime.Session) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.Ping(); err != nil {
				logger.Log.Warn("Ping error", zap.String("userID", s.UserID), zap.Error(err))
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *WebsocketHandler) handleFrame(ctx context.Context, s *realtime.Session, raw []byte) {
	var env domain.RawEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.sendError(s, "invalid frame")
		return
	}

	switch env.Event {
	case domain.EventJoin:
		var p domain.JoinPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.UserID == "" {
			h.sendError(s, "userId is required")
			return
		}
		// 只能加入自己的 room
		if p.UserID != s.UserID {
			logger.Log.Warn("join rejected", zap.String("userID", s.UserID), zap.String("room", p.UserID))
			h.sendError(s, "cannot join another user's room")
			return
		}
		h.rooms.Join(s.UserID, s)

	case domain.EventTyping:
		var p typingFrame
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			h.sendError(s, "invalid typing payload")
			return
		}
		if err := h.typingUC.Typing(ctx, s.UserID, p.ThreadID); err != nil {
			h.sendError(s, errprocess.PublicMessage(err))
		}

	default:
		h.sendError(s, "unknown event")
	}
}

// sendError - 發送 error frame 給前端
func (h *WebsocketHandler) sendError(s *realtime.Session, msg string) {
	b, _ := json.Marshal(domain.Envelope{Event: domain.EventError, Payload: domain.ErrorPayload{Error: msg}})
	if err := s.Send(b); err != nil {
		logger.Log.Warn("write message error", zap.String("userID", s.UserID), zap.Error(err))
	}
}
