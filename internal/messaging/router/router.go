package router

import (
	"context"

	"secure_messaging_service/internal/messaging/app"
	"secure_messaging_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes 注册 messaging 相关的路由
func RegisterRoutes(r *fiber.App, h *app.MessagingHandler, ws *app.WebsocketHandler, gatherer prometheus.Gatherer) {
	r.Get("/healthz", app.Healthz)
	r.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	r.Use(middlewares.JWTMiddleware())
	r.Post("/debug", app.DebugLogFlag)

	r.Get("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, websocket.New(func(c *websocket.Conn) {
		ws.HandleConnection(context.Background(), c)
	}))

	r.Post("/thread", h.CreateThread)
	r.Get("/threads", h.ListThreads)
	r.Get("/thread/:id", h.ListMessages)
	r.Post("/thread/:id/participants", h.AddParticipants)
	r.Delete("/thread/:id/participants/:practitionerId", h.RemoveParticipant)
	r.Get("/practitioners", h.ListPractitioners)
	r.Get("/unread", h.UnreadCounts)

	r.Post("/", h.SendMessage)
	r.Post("/:messageId/read", h.MarkRead)
	r.Get("/:messageId/readers", h.ListReaders)
}
