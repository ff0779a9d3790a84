package app

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"secure_messaging_service/internal/messaging/domain"
	"secure_messaging_service/internal/messaging/realtime"
	"secure_messaging_service/pkg/logger"
	"secure_messaging_service/pkg/middlewares"
	"secure_messaging_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	fws "github.com/gofiber/websocket/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startSocketServer serve the websocket handler on a random port
func startSocketServer(t *testing.T, hub *realtime.Hub, typingUC *TypingUseCase) string {
	t.Helper()
	ws := NewWebsocketHandler(hub, typingUC, 50*time.Millisecond)

	r := fiber.New()
	r.Use(middlewares.JWTMiddleware())
	r.Get("/ws", fws.New(func(c *fws.Conn) {
		ws.HandleConnection(context.Background(), c)
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = r.Listener(ln) }()
	t.Cleanup(func() { _ = r.Shutdown() })
	return ln.Addr().String()
}

func dial(t *testing.T, addr, memberID string) *websocket.Conn {
	t.Helper()
	tk, err := token.GenerateJWT(memberID, "practitioner", "test")
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws?auth="+tk, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *websocket.Conn, event domain.Event, payload any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(domain.Envelope{Event: event, Payload: payload}))
}

func readFrame(t *testing.T, conn *websocket.Conn) domain.RawEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env domain.RawEnvelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestWebsocketHandler(t *testing.T) {
	logger.SetNewNop()
	svc := newService(testCodec(t), ann, bob, cat)
	hub := realtime.NewHub(nil)
	svc.typing = NewTypingUseCase(memThreads{svc.store}, memPractitioners{svc.store}, hub)
	addr := startSocketServer(t, hub, svc.typing)

	thread, err := svc.threads.CreateThread(context.Background(), "p1", []string{"p2"}, nil)
	require.NoError(t, err)

	annConn := dial(t, addr, "p1")
	bobConn := dial(t, addr, "p2")

	t.Run("join own room and receive events", func(t *testing.T) {
		sendFrame(t, annConn, domain.EventJoin, domain.JoinPayload{UserID: "p1"})
		sendFrame(t, bobConn, domain.EventJoin, domain.JoinPayload{UserID: "p2"})
		require.Eventually(t, func() bool {
			return hub.Sessions("p1") == 1 && hub.Sessions("p2") == 1
		}, 2*time.Second, 10*time.Millisecond)

		require.NoError(t, hub.Publish(context.Background(), "p1", domain.EventThreadParticipants,
			domain.ParticipantsPayload{ThreadID: thread.ID, ParticipantIDs: []string{"p1", "p2"}}))

		env := readFrame(t, annConn)
		assert.Equal(t, domain.EventThreadParticipants, env.Event)
		var p domain.ParticipantsPayload
		require.NoError(t, json.Unmarshal(env.Payload, &p))
		assert.Equal(t, thread.ID, p.ThreadID)
	})

	t.Run("joining someone else's room is refused", func(t *testing.T) {
		sendFrame(t, annConn, domain.EventJoin, domain.JoinPayload{UserID: "p2"})
		env := readFrame(t, annConn)
		assert.Equal(t, domain.EventError, env.Event)
		assert.Equal(t, 1, hub.Sessions("p2"))
	})

	t.Run("typing reaches the other participant", func(t *testing.T) {
		sendFrame(t, annConn, domain.EventTyping, fiber.Map{"threadId": thread.ID})
		env := readFrame(t, bobConn)
		assert.Equal(t, domain.EventTyping, env.Event)
		var p domain.TypingPayload
		require.NoError(t, json.Unmarshal(env.Payload, &p))
		assert.Equal(t, domain.TypingPayload{ThreadID: thread.ID, UserID: "p1", Name: "Ann"}, p)
	})

	t.Run("typing in a foreign thread is refused", func(t *testing.T) {
		catConn := dial(t, addr, "p3")
		sendFrame(t, catConn, domain.EventTyping, fiber.Map{"threadId": thread.ID})
		env := readFrame(t, catConn)
		assert.Equal(t, domain.EventError, env.Event)
		assert.JSONEq(t, `{"error":"not a participant of this thread"}`, string(env.Payload))
	})

	t.Run("unknown event", func(t *testing.T) {
		sendFrame(t, bobConn, domain.Event("dance"), nil)
		env := readFrame(t, bobConn)
		assert.Equal(t, domain.EventError, env.Event)
	})

	t.Run("closed session leaves its room", func(t *testing.T) {
		require.NoError(t, bobConn.Close())
		require.Eventually(t, func() bool { return hub.Sessions("p2") == 0 }, 2*time.Second, 10*time.Millisecond)
	})
}
