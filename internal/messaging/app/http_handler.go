package app

import (
	"fmt"
	"strconv"

	"secure_messaging_service/internal/messaging/domain"
	errprocess "secure_messaging_service/pkg/err"
	"secure_messaging_service/pkg/logger"
	"secure_messaging_service/pkg/middlewares"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var validate = validator.New()

// CreateThreadReq body of POST /thread
type CreateThreadReq struct {
	ParticipantIDs []string `json:"participantIds" validate:"dive,max=64"`
	ClientID       *string  `json:"clientId" validate:"omitempty,max=64"`
}

// SendMessageReq body of POST /
type SendMessageReq struct {
	ThreadID string  `json:"threadId" validate:"required"`
	Content  string  `json:"content" validate:"required"`
	ClientID *string `json:"clientId" validate:"omitempty,max=64"`
}

// AddParticipantsReq body of POST /thread/:id/participants
type AddParticipantsReq struct {
	ParticipantIDs []string `json:"participantIds" validate:"required,min=1,dive,required"`
}

// MessagingHandler 处理 messaging 相关的 HTTP 请求
type MessagingHandler struct {
	threadUC  *ThreadUseCase
	messageUC *MessageUseCase
	readUC    *ReadUseCase
}

// NewMessagingHandler create MessagingHandler
func NewMessagingHandler(threadUC *ThreadUseCase, messageUC *MessageUseCase, readUC *ReadUseCase) *MessagingHandler {
	return &MessagingHandler{
		threadUC:  threadUC,
		messageUC: messageUC,
		readUC:    readUC,
	}
}

func respondErr(c *fiber.Ctx, err error) error {
	status := errprocess.Status(err)
	if status >= fiber.StatusInternalServerError {
		logger.Log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	} else {
		logger.Log.Debug("request rejected", zap.String("path", c.Path()), zap.Int("status", status), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": errprocess.PublicMessage(err)})
}

// parseBody decode and validate the JSON body into req
func parseBody(c *fiber.Ctx, req interface{}) error {
	if err := c.BodyParser(req); err != nil {
		return errprocess.Validation("invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return errprocess.Validation(err.Error())
	}
	return nil
}

// CreateThread POST /thread 建立 thread
func (h *MessagingHandler) CreateThread(c *fiber.Ctx) error {
	var req CreateThreadReq
	if err := parseBody(c, &req); err != nil {
		return respondErr(c, err)
	}

	thread, err := h.threadUC.CreateThread(c.UserContext(), middlewares.MemberID(c), req.ParticipantIDs, req.ClientID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(thread)
}

// SendMessage POST / 傳送訊息
func (h *MessagingHandler) SendMessage(c *fiber.Ctx) error {
	var req SendMessageReq
	if err := parseBody(c, &req); err != nil {
		return respondErr(c, err)
	}

	msg, err := h.messageUC.SendMessage(c.UserContext(), middlewares.MemberID(c), req.ThreadID, req.Content, req.ClientID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

// ListThreads GET /threads inbox of the caller
func (h *MessagingHandler) ListThreads(c *fiber.Ctx) error {
	threads, err := h.threadUC.ListThreads(c.UserContext(), middlewares.MemberID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(threads)
}

// ListMessages GET /thread/:id messages of one thread
func (h *MessagingHandler) ListMessages(c *fiber.Ctx) error {
	msgs, err := h.messageUC.ListMessages(c.UserContext(), middlewares.MemberID(c), c.Params("id"))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(msgs)
}

// AddParticipants POST /thread/:id/participants
func (h *MessagingHandler) AddParticipants(c *fiber.Ctx) error {
	var req AddParticipantsReq
	if err := parseBody(c, &req); err != nil {
		return respondErr(c, err)
	}

	added, err := h.threadUC.AddParticipants(c.UserContext(), middlewares.MemberID(c), c.Params("id"), req.ParticipantIDs)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"added": added})
}

// RemoveParticipant DELETE /thread/:id/participants/:practitionerId
func (h *MessagingHandler) RemoveParticipant(c *fiber.Ctx) error {
	target := c.Params("practitionerId")
	if err := h.threadUC.RemoveParticipant(c.UserContext(), middlewares.MemberID(c), c.Params("id"), target); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"removed": target})
}

// MarkRead POST /:messageId/read
func (h *MessagingHandler) MarkRead(c *fiber.Ctx) error {
	if _, err := h.readUC.MarkMessageRead(c.UserContext(), middlewares.MemberID(c), c.Params("messageId")); err != nil {
		return respondErr(c, err)
	}
	return c.JSON(fiber.Map{"message": "Marked as read"})
}

// ListReaders GET /:messageId/readers
func (h *MessagingHandler) ListReaders(c *fiber.Ctx) error {
	readers, err := h.readUC.ListReaders(c.UserContext(), middlewares.MemberID(c), c.Params("messageId"))
	if err != nil {
		return respondErr(c, err)
	}
	if readers == nil {
		readers = []domain.Reader{}
	}
	return c.JSON(readers)
}

// ListPractitioners GET /practitioners participant picker
func (h *MessagingHandler) ListPractitioners(c *fiber.Ctx) error {
	ps, err := h.threadUC.ListPractitioners(c.UserContext())
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(ps)
}

// UnreadCounts GET /unread inbox badges
func (h *MessagingHandler) UnreadCounts(c *fiber.Ctx) error {
	counts, err := h.messageUC.UnreadCounts(c.UserContext(), middlewares.MemberID(c))
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(counts)
}

// Healthz liveness
func Healthz(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// DebugLogFlag POST /debug?status=bool toggle debug log flag
func DebugLogFlag(c *fiber.Ctx) error {
	statusStr := c.Query("status")
	logger.Log.Info("debug", zap.String("status", statusStr))
	status, err := strconv.ParseBool(statusStr)
	if err != nil {
		return c.SendStatus(fiber.StatusBadRequest)
	}
	logger.Log.SetDebugMode(status)
	return c.SendString(fmt.Sprintf("debug mode is : %t", status))
}
